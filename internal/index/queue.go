package index

import (
	"sync"
	"time"
)

// workQueue is an unbounded FIFO of batches with completion tracking:
// every enqueued batch must be acknowledged with markDone, and Join
// blocks until all enqueued batches have been acknowledged, not merely
// dequeued. One batch is one queue element regardless of how many jobs
// it carries, so its jobs are processed back to back.
type workQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*batch
	pending int

	signal chan struct{}
}

func newWorkQueue() *workQueue {
	q := &workQueue{signal: make(chan struct{}, 1)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) enqueue(b *batch) {
	q.mu.Lock()
	q.items = append(q.items, b)
	q.pending++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// dequeue pops the oldest batch, waiting at most timeout for one to
// arrive. The timeout keeps the worker responsive to stop requests.
func (q *workQueue) dequeue(timeout time.Duration) (*batch, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			b := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return b, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return nil, false
		}
	}
}

// markDone acknowledges one dequeued batch.
func (q *workQueue) markDone() {
	q.mu.Lock()
	q.pending--
	if q.pending <= 0 {
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Join blocks until every batch enqueued so far has been acknowledged.
func (q *workQueue) Join() {
	q.mu.Lock()
	for q.pending > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *workQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending == 0
}
