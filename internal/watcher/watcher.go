// Package watcher observes a content directory and reports debounced
// file changes, so changed files can be re-indexed without rescanning.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation classifies a file change.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options tunes the watcher. Zero values fall back to defaults.
type Options struct {
	// DebounceWindow is how long to coalesce rapid events for the same
	// path before emitting them.
	DebounceWindow time.Duration

	// BufferSize is the capacity of the batch output channel.
	BufferSize int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 16
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher watches a directory tree recursively. Hidden entries and the
// index's own files are skipped. Events arrive as debounced batches on
// Batches.
type Watcher struct {
	opts Options
	log  *slog.Logger

	fsw  *fsnotify.Watcher
	deb  *debouncer
	root string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a watcher rooted at dir. Call Start to begin.
func New(dir string, opts Options) (*Watcher, error) {
	opts = opts.withDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		opts:   opts,
		log:    opts.Logger,
		fsw:    fsw,
		deb:    newDebouncer(opts.DebounceWindow, opts.BufferSize),
		root:   dir,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Batches returns the debounced event batches. The channel closes when
// the watcher stops.
func (w *Watcher) Batches() <-chan []FileEvent {
	return w.deb.output
}

// Start registers the directory tree and begins dispatching events
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.run(ctx)
	w.log.Info("watching content directory", "path", w.root)
	return nil
}

// Stop halts the watcher and closes the batch channel. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		_ = w.fsw.Close()
		w.deb.stop()
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if skipPath(ev.Name) {
		return
	}

	// New directories join the watch set so the tree stays covered.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watching new directory failed", "path", ev.Name, "error", err)
			}
			return
		}
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.deb.add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipPath(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// skipPath filters hidden entries and the index's own on-disk state.
func skipPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return base == "index.bleve" || base == "registry.db"
}
