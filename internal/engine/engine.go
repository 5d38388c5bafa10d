// Package engine binds contentdex to the underlying full-text engine
// (bleve). It exposes two connections onto one index: a write connection
// that stages mutations invisibly until flushed, and a read connection
// that only ever observes committed state.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	"github.com/contentdex/contentdex/internal/errors"
)

// Engine owns the index handle and hands out the two connections.
type Engine struct {
	mu     sync.Mutex
	idx    bleve.Index
	path   string
	closed bool

	// committed counts flush cycles; the read connection reports the
	// generation it last reopened onto.
	committed atomic.Uint64

	write *WriteConn
	read  *ReadConn
}

// Open opens or creates the index at path. An empty path creates an
// in-memory index (used by tests). language selects the analyzer for
// free-text fields.
func Open(path, language string) (*Engine, error) {
	m, err := buildIndexMapping(language)
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	e := &Engine{idx: idx, path: path}
	e.write = &WriteConn{engine: e, pending: idx.NewBatch()}
	e.read = &ReadConn{engine: e}
	return e, nil
}

// Write returns the mutation connection.
func (e *Engine) Write() *WriteConn { return e.write }

// Read returns the search connection.
func (e *Engine) Read() *ReadConn { return e.read }

// Close flushes nothing and shuts the index; pending staged mutations
// are discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.idx.Close()
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New(errors.ErrCodeClosed, "engine is closed")
	}
	return nil
}

// WriteConn stages document mutations into a pending batch. Nothing a
// WriteConn does is visible to readers until Flush commits the batch.
type WriteConn struct {
	mu      sync.Mutex
	engine  *Engine
	pending *bleve.Batch
}

// Add stages a new document. The engine treats add and replace
// identically; the distinction matters only for caller-side logging.
func (w *WriteConn) Add(id string, doc *DocRepr) error {
	return w.stage(id, doc)
}

// Replace stages a full overwrite of the document with identity id.
func (w *WriteConn) Replace(id string, doc *DocRepr) error {
	return w.stage(id, doc)
}

func (w *WriteConn) stage(id string, doc *DocRepr) error {
	if err := w.engine.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("document id must not be empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.pending.Index(id, doc.engineMap()); err != nil {
		return fmt.Errorf("stage document %q: %w", id, err)
	}
	return nil
}

// Delete stages removal of the document with identity id.
func (w *WriteConn) Delete(id string) error {
	if err := w.engine.checkOpen(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Delete(id)
	return nil
}

// Pending reports the number of staged, uncommitted operations.
func (w *WriteConn) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Size()
}

// Flush commits every staged mutation and starts a fresh batch. After
// Flush returns, a reopened read connection observes the new state.
func (w *WriteConn) Flush() error {
	if err := w.engine.checkOpen(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Size() > 0 {
		if err := w.engine.idx.Batch(w.pending); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		w.pending = w.engine.idx.NewBatch()
	}
	w.engine.committed.Add(1)
	return nil
}

// ReadConn is the search side of the engine. It needs no lock: it only
// observes committed snapshots, and Reopen merely refreshes onto the
// latest committed generation.
type ReadConn struct {
	engine     *Engine
	generation atomic.Uint64
}

// Reopen refreshes the connection onto the last committed state.
func (r *ReadConn) Reopen() {
	r.generation.Store(r.engine.committed.Load())
}

// Generation identifies the committed state this connection last
// reopened onto.
func (r *ReadConn) Generation() uint64 {
	return r.generation.Load()
}

// Hit is one raw engine match: the document identity plus its stored
// fields, flattened with dotted paths.
type Hit struct {
	ID     string
	Fields map[string]any
}

// Get fetches a single document's stored fields by engine identity.
// Returns nil when the identity is unknown.
func (r *ReadConn) Get(id string) (*Hit, error) {
	if err := r.engine.checkOpen(); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = []string{"*"}

	res, err := r.engine.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	return &Hit{ID: res.Hits[0].ID, Fields: res.Hits[0].Fields}, nil
}

// Search executes q over the committed snapshot, returning hits in
// [start, end) plus the engine's estimated total match count. The count
// is an estimate, not an exact total.
func (r *ReadConn) Search(q Query, start, end int, sortBy string) ([]*Hit, uint64, error) {
	if err := r.engine.checkOpen(); err != nil {
		return nil, 0, err
	}
	if end < start {
		return nil, 0, fmt.Errorf("invalid range [%d, %d)", start, end)
	}

	req := bleve.NewSearchRequestOptions(q, end-start, start, false)
	req.Fields = []string{"*"}
	if sortBy != "" {
		req.SortBy([]string{sortBy})
	}

	res, err := r.engine.idx.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}

	hits := make([]*Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, &Hit{ID: h.ID, Fields: h.Fields})
	}
	return hits, res.Total, nil
}

// Terms enumerates the distinct committed terms under fieldPath. For
// exact fields the terms are the original values, which makes this the
// unique-value enumeration primitive.
func (r *ReadConn) Terms(fieldPath string) ([]string, error) {
	if err := r.engine.checkOpen(); err != nil {
		return nil, err
	}

	dict, err := r.engine.idx.FieldDict(fieldPath)
	if err != nil {
		return nil, fmt.Errorf("field dict %q: %w", fieldPath, err)
	}
	defer func() { _ = dict.Close() }()

	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate field dict %q: %w", fieldPath, err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}
