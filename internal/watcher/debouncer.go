package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces rapid events for the same path within a window,
// so editors that write in bursts trigger one re-index instead of many.
// Coalescing rules:
//   - CREATE then MODIFY stays CREATE (the file is still new)
//   - CREATE then DELETE cancels out
//   - MODIFY then DELETE becomes DELETE
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
type debouncer struct {
	window time.Duration
	output chan []FileEvent

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

func newDebouncer(window time.Duration, buffer int) *debouncer {
	return &debouncer{
		window:  window,
		output:  make(chan []FileEvent, buffer),
		pending: make(map[string]*pendingEvent),
	}
}

func (d *debouncer) add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged := coalesce(existing.firstOp, ev)
		if merged == nil {
			delete(d.pending, ev.Path)
		} else {
			existing.event = *merged
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(first Operation, next FileEvent) *FileEvent {
	switch {
	case first == OpCreate && next.Operation == OpModify:
		next.Operation = OpCreate
		return &next
	case first == OpCreate && next.Operation == OpDelete:
		return nil
	case first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return &next
	default:
		return &next
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		// Consumer fell behind; dropping is better than blocking the
		// event loop.
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
