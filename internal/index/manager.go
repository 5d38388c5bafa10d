// Package index is the synchronization layer between a content store
// and the search engine: synchronous metadata writes, a background
// full-text conversion queue, version-aware retrieval and tag updates.
package index

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/contentdex/contentdex/internal/convert"
	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/errors"
	"github.com/contentdex/contentdex/internal/model"
	"github.com/contentdex/contentdex/internal/query"
	"github.com/contentdex/contentdex/internal/store"
)

// Options tunes a manager. Zero values fall back to sensible defaults.
type Options struct {
	ChunkSize       int
	DequeueInterval time.Duration
	QueryCacheSize  int
	Converters      *convert.Registry
	Logger          *slog.Logger
}

func (o *Options) fill() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 2048
	}
	if o.DequeueInterval <= 0 {
		o.DequeueInterval = 25 * time.Millisecond
	}
	if o.QueryCacheSize <= 0 {
		o.QueryCacheSize = 256
	}
	if o.Converters == nil {
		o.Converters = convert.DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Manager coordinates all index access. Metadata writes are synchronous
// and committed before returning; full-text conversion runs on the
// background pipeline. A single write lock orders synchronous writes,
// worker batches and tag updates.
type Manager struct {
	log  *slog.Logger
	eng  *engine.Engine
	pipe *pipeline

	// writeMu is the repository write lock.
	writeMu sync.Mutex

	// mu guards manager state: the data model, the store binding and
	// the closed flag.
	mu        sync.Mutex
	dm        *model.DataModel
	schemaGen uint64
	schema    atomic.Pointer[model.Schema]
	st        store.BackingStore
	versioned bool
	inplace   bool
	closed    bool

	translator *query.Translator
}

// New wraps an open engine in a manager and starts the background
// worker. The caller keeps ownership of nothing: Close tears the engine
// down too.
func New(eng *engine.Engine, opts Options) (*Manager, error) {
	opts.fill()

	m := &Manager{
		log: opts.Logger,
		eng: eng,
		dm:  model.DefaultModel(),
	}
	m.recompileLocked()

	tr, err := query.New(opts.QueryCacheSize, m.Schema)
	if err != nil {
		return nil, err
	}
	m.translator = tr

	m.pipe = newPipeline(eng, opts.Converters, &m.writeMu, opts.ChunkSize, opts.DequeueInterval, opts.Logger)
	m.pipe.start()

	return m, nil
}

// Schema returns the current immutable schema snapshot.
func (m *Manager) Schema() *model.Schema {
	return m.schema.Load()
}

// recompileLocked rebuilds the snapshot from the data model. Callers
// hold m.mu (or have exclusive access during construction).
func (m *Manager) recompileLocked() {
	m.schemaGen++
	m.schema.Store(model.NewSchema(m.dm.Descriptors(), m.schemaGen))
}

// RegisterField adds or replaces a field descriptor and recompiles the
// schema snapshot. Registration is global: it applies to all documents
// indexed afterwards.
func (m *Manager) RegisterField(desc model.FieldDesc) error {
	if _, err := model.ByKind(desc.Kind); err != nil {
		return errors.Wrap(errors.ErrCodeBadKind, fmt.Sprintf("field %s", desc.Key), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dm.Add(desc)
	m.recompileLocked()
	m.log.Debug("field registered", "key", desc.Key, "kind", string(desc.Kind), "generation", m.schemaGen)
	return nil
}

var _ model.Registrar = (*Manager)(nil)

// Connect binds the backing content store. Binding twice is tolerated
// (some stores reinitialize during their own lifecycle) but logged, and
// the new store wins.
func (m *Manager) Connect(st store.BackingStore) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st != nil {
		m.log.Warn("already connected to a backing store, rebinding")
	}
	m.st = st
	caps := st.Capabilities()
	m.versioned = store.HasCapability(caps, store.CapVersions)
	m.inplace = store.HasCapability(caps, store.CapInPlace)
	m.log.Info("backing store connected", "versioned", m.versioned, "inplace", m.inplace)
}

func (m *Manager) requireStore() (store.BackingStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New(errors.ErrCodeClosed, "index manager is closed")
	}
	if m.st == nil {
		return nil, errors.New(errors.ErrCodeNotConnected, "no backing store connected")
	}
	return m.st, nil
}

// Close stops the worker and shuts the engine down. A graceful close
// drains the conversion queue first; force abandons pending work.
func (m *Manager) Close(force bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.pipe.stop(force)
	return m.eng.Close()
}

// Index writes one content entry. Metadata is parsed, staged and
// committed before Index returns; when filename names a source file its
// full text is converted and indexed in the background. Unknown
// property keys register dynamically as exact string fields.
//
// The returned document carries the assigned uid and vid.
func (m *Manager) Index(props map[string]string, filename string) (*model.Document, error) {
	st, err := m.requireStore()
	if err != nil {
		return nil, err
	}

	uid := props["uid"]
	if uid == "" {
		uid = uuid.NewString()
	}
	vid, err := m.resolveNewVID(st, uid, props["vid"])
	if err != nil {
		return nil, err
	}

	doc := model.NewDocument(m.docID(uid, vid), uid, vid)
	doc.AddField("uid", model.KindString, uid)
	doc.AddField("vid", model.KindInt, vid)

	keys := make([]string, 0, len(props))
	for k := range props {
		if k != "uid" && k != "vid" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	m.mu.Lock()
	recompile := false
	for _, k := range keys {
		prop, added, err := m.dm.FromString(k, props[k], true)
		if err != nil {
			m.mu.Unlock()
			return nil, errors.Wrap(errors.ErrCodeBadKind, "parse property", err)
		}
		recompile = recompile || added
		doc.AddField(prop.Key, prop.Kind, prop.Value)
	}
	if recompile {
		m.recompileLocked()
	}
	m.mu.Unlock()

	// Tags are lowercase by definition, whatever casing the caller sent.
	if raw, ok := props["tags"]; ok {
		tags := strings.Fields(strings.ToLower(raw))
		sort.Strings(tags)
		doc.SetTags(tags)
		if len(tags) > 0 {
			doc.SetField("tags", model.KindText, strings.Join(tags, " "))
		}
	}

	schema := m.Schema()
	repr, dropped, err := engine.BuildDoc(doc, schema)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		m.log.Warn("dropped unregistered fields", "uid", uid, "keys", dropped)
	}

	m.writeMu.Lock()
	if err := m.eng.Write().Replace(doc.ID, repr); err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	if err := m.eng.Write().Flush(); err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	m.writeMu.Unlock()
	m.eng.Read().Reopen()

	if filename != "" {
		m.pipe.enqueue(job{
			docID:  doc.ID,
			repr:   repr,
			source: filename,
			mime:   props["mime_type"],
			unlink: m.reclaims(),
		})
	}

	m.log.Debug("content indexed", "uid", uid, "vid", vid, "fulltext", filename != "")
	return doc, nil
}

// resolveNewVID picks the version id for a fresh write: an explicit vid
// property wins; otherwise versioned stores continue the chain from the
// tip, flat stores always use version 1.
func (m *Manager) resolveNewVID(st store.BackingStore, uid, explicit string) (int64, error) {
	if explicit != "" {
		vid, err := strconv.ParseInt(explicit, 10, 64)
		if err != nil {
			return 0, errors.Newf(errors.ErrCodeBadKind, "invalid vid %q", explicit)
		}
		return vid, nil
	}
	if !m.isVersioned() {
		return 1, nil
	}
	tip, err := st.Tip(uid)
	switch {
	case stderrors.Is(err, store.ErrUnknownUID):
		return 1, nil
	case err != nil:
		return 0, fmt.Errorf("resolve tip for %s: %w", uid, err)
	default:
		return tip + 1, nil
	}
}

func (m *Manager) isVersioned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versioned
}

// reclaims reports whether indexed source files should be removed after
// conversion. Stores that keep content in place own their files.
func (m *Manager) reclaims() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versioned && !m.inplace
}

// docID maps (uid, vid) to the engine document identity. Flat stores
// overwrite in place; versioned stores get one engine document per
// version.
func (m *Manager) docID(uid string, vid int64) string {
	if m.isVersioned() {
		return fmt.Sprintf("%s:%d", uid, vid)
	}
	return uid
}

// Delete removes content synchronously: all versions of uid disappear
// from the index before Delete returns. Queued conversion work for the
// uid becomes a harmless overwrite of nothing and is skipped when it
// fails.
func (m *Manager) Delete(uid string) error {
	if _, err := m.requireStore(); err != nil {
		return err
	}

	ids, err := m.versionDocIDs(uid)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.NotFound(uid)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for _, id := range ids {
		if err := m.eng.Write().Delete(id); err != nil {
			return err
		}
	}
	if err := m.eng.Write().Flush(); err != nil {
		return err
	}
	m.eng.Read().Reopen()
	m.log.Info("content deleted", "uid", uid, "versions", len(ids))
	return nil
}

// versionDocIDs returns every engine document id for uid, newest first.
func (m *Manager) versionDocIDs(uid string) ([]string, error) {
	desc, _ := m.Schema().Get("uid")
	vidDesc, _ := m.Schema().Get("vid")
	q := engine.Term(engine.FieldPath(desc), uid)

	hits, _, err := m.eng.Read().Search(q, 0, 10000, "-"+engine.SortPath(vidDesc))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// Get returns the tip version of uid.
func (m *Manager) Get(uid string) (*model.Document, error) {
	return m.GetVersion(uid, "tip")
}

// GetVersion returns one version of uid. rev is a numeric version id or
// the literal "tip" for the newest version the store knows about.
func (m *Manager) GetVersion(uid, rev string) (*model.Document, error) {
	st, err := m.requireStore()
	if err != nil {
		return nil, err
	}

	if !m.isVersioned() {
		return m.getDoc(m.docID(uid, 1), uid)
	}

	var vid int64
	if rev == "" || rev == "tip" {
		vid, err = st.Tip(uid)
		if stderrors.Is(err, store.ErrUnknownUID) {
			// Not recorded in the store; fall back to the newest
			// version the index itself holds.
			return m.newestIndexed(uid)
		}
		if err != nil {
			return nil, err
		}
	} else {
		vid, err = strconv.ParseInt(rev, 10, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeBadKind, "invalid revision %q", rev)
		}
	}

	return m.getDoc(fmt.Sprintf("%s:%d", uid, vid), uid)
}

func (m *Manager) getDoc(docID, uid string) (*model.Document, error) {
	hit, err := m.eng.Read().Get(docID)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, errors.NotFound(uid)
	}
	return engine.DecodeHit(hit, m.Schema())
}

func (m *Manager) newestIndexed(uid string) (*model.Document, error) {
	ids, err := m.versionDocIDs(uid)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.NotFound(uid)
	}
	return m.getDoc(ids[0], uid)
}

// GetByUID resolves the version chain of uid, newest first, optionally
// filtered to a single revision (a numeric version id or "tip"). The
// count is the engine's estimate.
func (m *Manager) GetByUID(uid, rev string) (*Results, uint64, error) {
	st, err := m.requireStore()
	if err != nil {
		return nil, 0, err
	}

	schema := m.Schema()
	uidDesc, _ := schema.Get("uid")
	vidDesc, _ := schema.Get("vid")

	q := engine.Term(engine.FieldPath(uidDesc), uid)
	newestOnly := false
	if rev != "" {
		vid, err := m.resolveRev(st, uid, rev)
		if err != nil {
			return nil, 0, err
		}
		if vid >= 0 {
			q = engine.And(q, engine.Term(engine.FieldPath(vidDesc), strconv.FormatInt(vid, 10)))
		} else {
			// The store has no record of uid; "tip" falls back to the
			// newest version the index holds.
			newestOnly = true
		}
	}

	hits, total, err := m.eng.Read().Search(q, 0, 10000, "-"+engine.SortPath(vidDesc))
	if err != nil {
		return nil, 0, err
	}
	if len(hits) == 0 {
		return nil, 0, errors.NotFound(uid)
	}
	if newestOnly {
		hits = hits[:1]
		total = 1
	}
	return newResults(hits, schema), total, nil
}

// resolveRev maps a revision string to a version id. A negative return
// means "newest indexed", used when the store has no record of uid.
func (m *Manager) resolveRev(st store.BackingStore, uid, rev string) (int64, error) {
	if rev != "tip" {
		vid, err := strconv.ParseInt(rev, 10, 64)
		if err != nil {
			return 0, errors.Newf(errors.ErrCodeBadKind, "invalid revision %q", rev)
		}
		return vid, nil
	}
	tip, err := st.Tip(uid)
	if stderrors.Is(err, store.ErrUnknownUID) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return tip, nil
}

// Search runs a query (nil, web-style text or a structured map) over
// the committed index. Results decode lazily; total is the engine's
// estimate and may overcount documents whose deletion has not committed
// yet.
func (m *Manager) Search(q any, start, end int, orderBy string) (*Results, uint64, error) {
	if _, err := m.requireStore(); err != nil {
		return nil, 0, err
	}

	eq, err := m.translator.Translate(q)
	if err != nil {
		return nil, 0, err
	}

	sortBy, err := m.resolveOrder(orderBy)
	if err != nil {
		return nil, 0, err
	}

	hits, total, err := m.eng.Read().Search(eq, start, end, sortBy)
	if err != nil {
		return nil, 0, err
	}
	return newResults(hits, m.Schema()), total, nil
}

// resolveOrder maps a logical sort key ("timestamp", "-vid") to the
// engine sort path. Empty means relevance order.
func (m *Manager) resolveOrder(orderBy string) (string, error) {
	if orderBy == "" {
		return "", nil
	}
	desc := false
	key := orderBy
	if strings.HasPrefix(key, "-") {
		desc = true
		key = key[1:]
	}
	fd, ok := m.Schema().Get(key)
	if !ok {
		return "", errors.Newf(errors.ErrCodeUnknownField, "cannot sort by unknown field %q", key)
	}
	if !fd.Sortable {
		return "", errors.Newf(errors.ErrCodeBadKind, "field %q is not sortable", key)
	}
	path := engine.SortPath(fd)
	if desc {
		path = "-" + path
	}
	return path, nil
}

// UniqueValues enumerates every distinct indexed value of a field, the
// basis for tag clouds and activity lists.
func (m *Manager) UniqueValues(key string) ([]string, error) {
	if _, err := m.requireStore(); err != nil {
		return nil, err
	}
	desc, ok := m.Schema().Get(key)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownField, "unknown field %q", key)
	}
	terms, err := m.eng.Read().Terms(engine.FieldPath(desc))
	if err != nil {
		return nil, err
	}

	// Terms come back as raw index strings; convert each through the
	// field's kind so callers see canonical values.
	impl, err := model.ByKind(desc.Kind)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		v, err := impl.Parse(t)
		if err != nil {
			m.log.Debug("skipping unparsable term", "field", key, "term", t, "error", err)
			continue
		}
		out = append(out, impl.Format(v))
	}
	return out, nil
}

// CompleteIndexing blocks until every queued conversion batch has been
// processed and committed. Callers use it before backup or shutdown to
// guarantee the index reflects all accepted writes.
func (m *Manager) CompleteIndexing() error {
	m.pipe.queue.Join()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.eng.Write().Pending() > 0 {
		if err := m.eng.Write().Flush(); err != nil {
			return err
		}
	}
	m.eng.Read().Reopen()
	return nil
}
