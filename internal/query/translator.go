// Package query translates user queries, either a web-style text grammar
// or a structured mapping, into the engine's composite query tree.
package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/errors"
	"github.com/contentdex/contentdex/internal/model"
)

var (
	nextWord = regexp.MustCompile(`(\S+)`)
	endQuote = regexp.MustCompile(`"`)
)

// Translator turns caller queries into engine queries against the
// current schema snapshot. Text parses are cached per schema generation.
type Translator struct {
	schema func() *model.Schema
	cache  *lru.Cache[string, engine.Query]
}

// New builds a translator. schema must return the active snapshot; the
// translator re-resolves it on every call so recompiled schemas take
// effect immediately.
func New(cacheSize int, schema func() *model.Schema) (*Translator, error) {
	cache, err := lru.New[string, engine.Query](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	return &Translator{schema: schema, cache: cache}, nil
}

// Translate accepts the three query shapes: nil or empty string
// (match everything), a structured map, or web-style query text.
func (t *Translator) Translate(q any) (engine.Query, error) {
	switch v := q.(type) {
	case nil:
		return engine.MatchAll(), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return engine.MatchAll(), nil
		}
		return t.ParseText(v)
	case map[string]any:
		return t.translateMap(v)
	default:
		return nil, errors.Newf(errors.ErrCodeQueryParse, "unsupported query type %T", q)
	}
}

// translateMap joins one clause per key with AND. Range maps become
// numeric range clauses, lists become OR fans, scalars become field
// matches, and a nested "query" key is parsed with the text grammar.
func (t *Translator) translateMap(m map[string]any) (engine.Query, error) {
	var clauses []engine.Query

	if raw, ok := m["query"]; ok {
		text, isStr := raw.(string)
		if !isStr {
			return nil, errors.Newf(errors.ErrCodeQueryParse, "nested query must be a string, got %T", raw)
		}
		q, err := t.ParseText(text)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, q)
	}

	schema := t.schema()
	for key, value := range m {
		if key == "query" {
			continue
		}
		desc, ok := schema.Get(key)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeQueryParse, "unknown field %q", key)
		}

		switch v := value.(type) {
		case map[string]any:
			q, err := rangeClause(desc, v)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, q)
		case []any:
			ors := make([]engine.Query, 0, len(v))
			for _, item := range v {
				ors = append(ors, fieldClause(desc, fmt.Sprintf("%v", item)))
			}
			if len(ors) == 0 {
				return nil, errors.Newf(errors.ErrCodeQueryParse, "empty list for field %q", key)
			}
			clauses = append(clauses, engine.Or(ors...))
		case []string:
			ors := make([]engine.Query, 0, len(v))
			for _, item := range v {
				ors = append(ors, fieldClause(desc, item))
			}
			if len(ors) == 0 {
				return nil, errors.Newf(errors.ErrCodeQueryParse, "empty list for field %q", key)
			}
			clauses = append(clauses, engine.Or(ors...))
		default:
			clauses = append(clauses, fieldClause(desc, fmt.Sprintf("%v", v)))
		}
	}

	if len(clauses) == 0 {
		return engine.MatchAll(), nil
	}
	return engine.And(clauses...), nil
}

// rangeClause builds a numeric range from a {"start": x, "end": y} map.
// Bounds parse as timestamp-or-float; missing bounds default to
// [0, +inf).
func rangeClause(desc model.FieldDesc, bounds map[string]any) (engine.Query, error) {
	path := engine.NumPath(desc)
	if path == "" {
		return nil, errors.Newf(errors.ErrCodeQueryParse, "field %q does not support range queries", desc.Key)
	}

	start, err := boundValue(bounds, "start", 0)
	if err != nil {
		return nil, err
	}
	end, err := boundValue(bounds, "end", math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	return engine.Range(path, start, end), nil
}

func boundValue(bounds map[string]any, key string, def float64) (float64, error) {
	raw, ok := bounds[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := model.ParseTimestampOrFloat(v)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeQueryParse, fmt.Sprintf("range %s", key), err)
		}
		return f, nil
	default:
		return 0, errors.Newf(errors.ErrCodeQueryParse, "range %s has unsupported type %T", key, raw)
	}
}

// fieldClause matches one value against a registered field: exact fields
// take unanalyzed terms, text fields take analyzed matches.
func fieldClause(desc model.FieldDesc, value string) engine.Query {
	if desc.Exact {
		return engine.Term(engine.FieldPath(desc), value)
	}
	return engine.Match(engine.FieldPath(desc), value)
}

// ParseText parses the web-style grammar left to right: whitespace
// separates terms; field:term qualifies a registered field; quotes make
// phrases; a trailing * enables wildcard matching; unqualified terms go
// through the engine's boolean-term grammar (+required, -excluded), and
// a parse failure is retried once with boolean interpretation disabled.
func (t *Translator) ParseText(text string) (engine.Query, error) {
	schema := t.schema()
	cacheKey := fmt.Sprintf("%d:%s", schema.Generation(), text)
	if q, ok := t.cache.Get(cacheKey); ok {
		return q, nil
	}

	var clauses []engine.Query
	start := 0
	for start < len(text) {
		loc := nextWord.FindStringIndex(text[start:])
		if loc == nil {
			break
		}
		wordStart := start + loc[0]
		wordEnd := start + loc[1]
		word := text[wordStart:wordEnd]
		start = wordEnd + 1

		field := ""
		if i := strings.Index(word, ":"); i >= 0 {
			if name := word[:i]; schema.Has(name) {
				field = name
				word = word[i+1:]
				wordStart += i + 1
			}
		}

		phrase := false
		if strings.HasPrefix(word, `"`) {
			if qloc := endQuote.FindStringIndex(text[wordStart+1:]); qloc != nil {
				closing := wordStart + 1 + qloc[1]
				word = text[wordStart+1 : closing-1]
				phrase = true
				start = closing + 1
			}
		}

		wildcard := strings.HasSuffix(word, "*")

		if word == "" {
			continue
		}

		clause, err := t.termClause(schema, field, word, phrase, wildcard)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 {
		return engine.MatchAll(), nil
	}

	q := engine.And(clauses...)
	t.cache.Add(cacheKey, q)
	return q, nil
}

func (t *Translator) termClause(schema *model.Schema, field, word string, phrase, wildcard bool) (engine.Query, error) {
	if field != "" {
		desc, _ := schema.Get(field)
		path := engine.FieldPath(desc)
		switch {
		case phrase && !desc.Exact:
			return engine.Phrase(path, word), nil
		case wildcard:
			// Wildcards match term-level; analyzed fields hold
			// lowercased terms.
			if !desc.Exact {
				word = strings.ToLower(word)
			}
			return engine.Wildcard(path, word), nil
		default:
			return fieldClause(desc, word), nil
		}
	}

	switch {
	case phrase:
		return engine.Phrase("", word), nil
	case wildcard:
		return engine.Wildcard("", strings.ToLower(word)), nil
	default:
		q, err := engine.ParseTerms(word)
		if err != nil {
			// Ambiguous punctuation usually means boolean operators;
			// retry with them disabled rather than failing the caller.
			return engine.MatchPlain(word), nil
		}
		return q, nil
	}
}
