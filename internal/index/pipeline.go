package index

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contentdex/contentdex/internal/convert"
	"github.com/contentdex/contentdex/internal/engine"
)

// job is one queued full-text conversion: read the source file, convert
// it to plain text, append the chunks to the prepared document and
// replace it in the engine. Metadata is already committed by the time a
// job is enqueued; only the full text arrives late.
type job struct {
	docID  string
	repr   *engine.DocRepr
	source string
	mime   string

	// unlink reclaims the source file after indexing. Stores that keep
	// content in place never set it.
	unlink bool
}

// batch is an ordered group of jobs processed back to back, with a
// single commit at the end.
type batch struct {
	jobs []job
}

// pipeline owns the background worker goroutine. Failures are contained:
// a job that cannot convert is logged and dropped, and a panic abandons
// the batch, never the worker.
type pipeline struct {
	queue     *workQueue
	eng       *engine.Engine
	conv      *convert.Registry
	log       *slog.Logger
	chunkSize int
	interval  time.Duration

	// writeMu is the repository write lock, shared with the manager so
	// synchronous writes and worker batches never interleave.
	writeMu *sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
	forced atomic.Bool
}

func newPipeline(eng *engine.Engine, conv *convert.Registry, writeMu *sync.Mutex, chunkSize int, interval time.Duration, log *slog.Logger) *pipeline {
	return &pipeline{
		queue:     newWorkQueue(),
		eng:       eng,
		conv:      conv,
		log:       log,
		chunkSize: chunkSize,
		interval:  interval,
		writeMu:   writeMu,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (p *pipeline) start() {
	go p.run()
}

// stop shuts the worker down. Graceful stop drains the queue first; a
// forced stop abandons everything still pending.
func (p *pipeline) stop(force bool) {
	if force {
		p.forced.Store(true)
	}
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	<-p.doneCh
}

func (p *pipeline) enqueue(jobs ...job) {
	p.queue.enqueue(&batch{jobs: jobs})
}

func (p *pipeline) run() {
	defer close(p.doneCh)

	for {
		b, ok := p.queue.dequeue(p.interval)
		if !ok {
			select {
			case <-p.stopCh:
				if p.queue.empty() {
					return
				}
			default:
			}
			continue
		}

		if p.forced.Load() {
			p.log.Debug("abandoning batch", "jobs", len(b.jobs))
			p.queue.markDone()
			continue
		}

		p.process(b)
		p.queue.markDone()
	}
}

// process converts every job in the batch with the write lock released,
// then stages and commits all of them inside one critical section, so a
// concurrent synchronous write can never flush a half-applied batch.
// Individual job failures are logged and skipped.
func (p *pipeline) process(b *batch) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("indexing batch panicked", "panic", fmt.Sprint(r))
		}
	}()

	converted := make([]job, 0, len(b.jobs))
	for _, j := range b.jobs {
		if err := p.convertOne(j); err != nil {
			if stderrors.Is(err, convert.ErrUnsupported) {
				p.log.Debug("no converter for source", "doc", j.docID, "mime", j.mime)
			} else {
				p.log.Warn("full-text indexing failed",
					"doc", j.docID, "source", j.source, "error", err)
			}
			continue
		}
		converted = append(converted, j)
	}

	if len(converted) > 0 {
		p.writeMu.Lock()
		dirty := false
		for _, j := range converted {
			// The document may have been deleted while queued; replacing
			// it now would resurrect it.
			hit, err := p.eng.Read().Get(j.docID)
			if err != nil {
				p.log.Warn("looking up queued document failed", "doc", j.docID, "error", err)
				continue
			}
			if hit == nil {
				p.log.Debug("skipping conversion for deleted document", "doc", j.docID)
				continue
			}
			if err := p.eng.Write().Replace(j.docID, j.repr); err != nil {
				p.log.Warn("staging full text failed", "doc", j.docID, "error", err)
				continue
			}
			dirty = true
		}
		var err error
		if dirty {
			err = p.eng.Write().Flush()
		}
		p.writeMu.Unlock()
		if err != nil {
			p.log.Error("batch commit failed", "error", err)
			return
		}
		if dirty {
			p.eng.Read().Reopen()
		}
	}

	for _, j := range b.jobs {
		if j.unlink {
			if err := os.Remove(j.source); err != nil && !os.IsNotExist(err) {
				p.log.Warn("reclaiming source failed", "source", j.source, "error", err)
			}
		}
	}
}

// convertOne reads and converts the job's source, appending the text
// chunks to its prepared document. It never touches the engine; staging
// happens later under the batch's single lock acquisition.
func (p *pipeline) convertOne(j job) error {
	r, err := p.conv.Convert(j.source, j.mime)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if err := convert.ReadChunks(r, p.chunkSize, func(chunk string) error {
		j.repr.AppendFulltext(chunk)
		return nil
	}); err != nil {
		return fmt.Errorf("read %s: %w", j.source, err)
	}
	return nil
}
