package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/contentdex/contentdex/internal/model"
)

// Field namespaces inside the engine document. Exact-indexed values live
// under exact.<key> with the keyword analyzer, free text under text.<key>
// with the language analyzer, sortable numerics under num.<key>.
// Converted file content accumulates in fulltext, and the opaque data
// blob is stored unanalyzed under data.
const (
	nsExact    = "exact"
	nsText     = "text"
	nsNum      = "num"
	fieldFull  = "fulltext"
	fieldData  = "data"
	maxDataLen = 1 << 20
)

// buildIndexMapping compiles the namespaced document layout once at index
// creation. Per-field behavior is decided at document build time by the
// schema snapshot, so field registration never mutates the engine mapping.
func buildIndexMapping(language string) (mapping.IndexMapping, error) {
	textAnalyzer := analyzerFor(language)

	exact := bleve.NewDocumentMapping()
	exact.DefaultAnalyzer = keyword.Name

	text := bleve.NewDocumentMapping()
	text.DefaultAnalyzer = textAnalyzer

	num := bleve.NewDocumentMapping()

	// Full text is stored as well as indexed: replacing a document (tag
	// updates do this) must not lose the converted content, and stored
	// chunks are the only way to carry it across a replace.
	full := bleve.NewTextFieldMapping()
	full.Analyzer = textAnalyzer
	full.Store = true
	full.IncludeInAll = true

	data := bleve.NewTextFieldMapping()
	data.Index = false
	data.Store = true
	data.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddSubDocumentMapping(nsExact, exact)
	doc.AddSubDocumentMapping(nsText, text)
	doc.AddSubDocumentMapping(nsNum, num)
	doc.AddFieldMappingsAt(fieldFull, full)
	doc.AddFieldMappingsAt(fieldData, data)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = textAnalyzer
	return im, nil
}

// analyzerFor maps a language hint onto a registered analyzer. Only
// English ships a dedicated analyzer here; everything else falls back to
// the standard analyzer.
func analyzerFor(language string) string {
	if strings.EqualFold(language, "en") {
		return en.AnalyzerName
	}
	return standard.Name
}

// FieldPath resolves where a registered field's match terms live.
func FieldPath(desc model.FieldDesc) string {
	if desc.Key == fieldFull {
		return fieldFull
	}
	if desc.Exact {
		return nsExact + "." + desc.Key
	}
	return nsText + "." + desc.Key
}

// NumPath resolves where a field's sortable numeric value lives, or ""
// when the field has no numeric representation.
func NumPath(desc model.FieldDesc) string {
	if !numericKind(desc.Kind) {
		return ""
	}
	return nsNum + "." + desc.Key
}

// SortPath resolves the engine path used for ordering by a field.
func SortPath(desc model.FieldDesc) string {
	if p := NumPath(desc); p != "" {
		return p
	}
	return FieldPath(desc)
}

func numericKind(k model.Kind) bool {
	return k == model.KindInt || k == model.KindNumber || k == model.KindDate
}

// DocRepr is the engine-side representation of a document, built from a
// model.Document against a schema snapshot.
type DocRepr struct {
	exact    map[string]any
	text     map[string]any
	num      map[string]any
	fulltext []string
	data     string
}

// BuildDoc lays a model document out into engine namespaces. Fields whose
// key has no descriptor in the schema are dropped: writing them anyway
// would poison the engine schema, so losing the value is the lesser harm.
// Dropped keys are returned for the caller to log.
func BuildDoc(doc *model.Document, schema *model.Schema) (*DocRepr, []string, error) {
	repr := &DocRepr{
		exact: make(map[string]any),
		text:  make(map[string]any),
		num:   make(map[string]any),
	}

	var dropped []string
	for _, f := range doc.Fields {
		if f.Key == fieldFull {
			repr.AppendFulltext(fmt.Sprintf("%v", f.Value))
			continue
		}
		desc, ok := schema.Get(f.Key)
		if !ok {
			dropped = append(dropped, f.Key)
			continue
		}

		impl, err := model.ByKind(desc.Kind)
		if err != nil {
			return nil, dropped, err
		}
		if desc.Exact {
			repr.exact[f.Key] = impl.Format(f.Value)
		} else {
			repr.text[f.Key] = impl.Format(f.Value)
		}
		if numericKind(desc.Kind) {
			repr.num[f.Key] = impl.EngineValue(f.Value)
		}
	}

	if len(doc.Data) > 0 {
		blob, err := json.Marshal(doc.Data)
		if err != nil {
			return nil, dropped, fmt.Errorf("encode data blob: %w", err)
		}
		if len(blob) > maxDataLen {
			return nil, dropped, fmt.Errorf("data blob too large: %d bytes", len(blob))
		}
		repr.data = string(blob)
	}

	return repr, dropped, nil
}

// AppendFulltext adds one chunk of converted plain-text content.
func (r *DocRepr) AppendFulltext(chunk string) {
	r.fulltext = append(r.fulltext, chunk)
}

// FulltextChunks returns the accumulated full-text chunks.
func (r *DocRepr) FulltextChunks() int { return len(r.fulltext) }

// engineMap flattens the representation into what bleve indexes.
func (r *DocRepr) engineMap() map[string]any {
	m := make(map[string]any, 5)
	if len(r.exact) > 0 {
		m[nsExact] = r.exact
	}
	if len(r.text) > 0 {
		m[nsText] = r.text
	}
	if len(r.num) > 0 {
		m[nsNum] = r.num
	}
	if len(r.fulltext) > 0 {
		m[fieldFull] = r.fulltext
	}
	if r.data != "" {
		m[fieldData] = r.data
	}
	return m
}

// DecodeHit reconstructs a model document from a hit's stored fields.
// Values come back through the schema so numerics and dates regain their
// native types.
func DecodeHit(hit *Hit, schema *model.Schema) (*model.Document, error) {
	doc := &model.Document{ID: hit.ID, Data: make(map[string]any)}

	for path, raw := range hit.Fields {
		switch {
		case path == fieldFull:
			switch v := raw.(type) {
			case string:
				doc.AddField(fieldFull, model.KindText, v)
			case []any:
				for _, chunk := range v {
					doc.AddField(fieldFull, model.KindText, fmt.Sprintf("%v", chunk))
				}
			}
		case path == fieldData:
			blob, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("data blob has unexpected type %T", raw)
			}
			if err := json.Unmarshal([]byte(blob), &doc.Data); err != nil {
				return nil, fmt.Errorf("decode data blob: %w", err)
			}
		case strings.HasPrefix(path, nsExact+".") || strings.HasPrefix(path, nsText+"."):
			key := path[strings.Index(path, ".")+1:]
			desc, ok := schema.Get(key)
			if !ok {
				// Field registered by an older schema; keep it stringly.
				doc.AddField(key, model.KindString, stringValue(raw))
				continue
			}
			impl, err := model.ByKind(desc.Kind)
			if err != nil {
				return nil, err
			}
			v, err := impl.Parse(stringValue(raw))
			if err != nil {
				return nil, fmt.Errorf("decode field %s: %w", key, err)
			}
			doc.AddField(key, desc.Kind, v)
		}
		// num.* duplicates exact/text values for sorting; skip it.
	}

	if v, ok := doc.FieldValue("uid"); ok {
		doc.UID = fmt.Sprintf("%v", v)
	}
	if v, ok := doc.FieldValue("vid"); ok {
		if n, ok := v.(int64); ok {
			doc.VID = n
		}
	}
	return doc, nil
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			return fmt.Sprintf("%v", v[0])
		}
		return ""
	default:
		return fmt.Sprintf("%v", raw)
	}
}
