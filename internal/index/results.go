package index

import (
	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/model"
)

// Results iterates search hits, decoding each document only when the
// caller reaches it. Hit ids are available up front without decoding.
type Results struct {
	hits   []*engine.Hit
	schema *model.Schema
	pos    int
}

func newResults(hits []*engine.Hit, schema *model.Schema) *Results {
	return &Results{hits: hits, schema: schema}
}

// Len returns the number of hits in this page.
func (r *Results) Len() int { return len(r.hits) }

// IDs returns the engine document ids of this page, in result order.
func (r *Results) IDs() []string {
	ids := make([]string, len(r.hits))
	for i, h := range r.hits {
		ids[i] = h.ID
	}
	return ids
}

// Next decodes and returns the next document, or nil when the page is
// exhausted.
func (r *Results) Next() (*model.Document, error) {
	if r.pos >= len(r.hits) {
		return nil, nil
	}
	hit := r.hits[r.pos]
	r.pos++
	return engine.DecodeHit(hit, r.schema)
}

// All decodes the remaining documents.
func (r *Results) All() ([]*model.Document, error) {
	docs := make([]*model.Document, 0, len(r.hits)-r.pos)
	for {
		doc, err := r.Next()
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return docs, nil
		}
		docs = append(docs, doc)
	}
}
