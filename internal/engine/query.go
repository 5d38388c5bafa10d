package engine

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Query is the engine's composite query tree node.
type Query = query.Query

// MatchAll matches every committed document.
func MatchAll() Query {
	return bleve.NewMatchAllQuery()
}

// Term matches the exact, unanalyzed term value at path. This is the
// primitive for exact-indexed (keyword) fields.
func Term(path, value string) Query {
	q := bleve.NewTermQuery(value)
	q.SetField(path)
	return q
}

// Match runs text through the field's analyzer and matches the resulting
// terms. An empty path targets the composite _all field.
func Match(path, text string) Query {
	q := bleve.NewMatchQuery(text)
	if path != "" {
		q.SetField(path)
	}
	return q
}

// Phrase matches text as an exact analyzed phrase at path.
func Phrase(path, text string) Query {
	q := bleve.NewMatchPhraseQuery(text)
	if path != "" {
		q.SetField(path)
	}
	return q
}

// Wildcard matches the term-level pattern (with * globs) at path.
func Wildcard(path, pattern string) Query {
	q := bleve.NewWildcardQuery(pattern)
	if path != "" {
		q.SetField(path)
	}
	return q
}

// Range matches numeric values in [start, end] at path.
func Range(path string, start, end float64) Query {
	truthy := true
	q := bleve.NewNumericRangeInclusiveQuery(&start, &end, &truthy, &truthy)
	q.SetField(path)
	return q
}

// And joins clauses conjunctively. A single clause passes through.
func And(qs ...Query) Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewConjunctionQuery(qs...)
}

// Or joins clauses disjunctively. A single clause passes through.
func Or(qs ...Query) Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// ParseTerms runs text through the engine's own boolean-term grammar
// (+required, -excluded, quoted phrases, field:term). The error return
// is a parse error in the caller's query text.
func ParseTerms(text string) (Query, error) {
	qs := bleve.NewQueryStringQuery(text)
	parsed, err := qs.Parse()
	if err != nil {
		return nil, err
	}
	// A purely negative term list ("-spam") parses but cannot search
	// without a positive clause; anchor it on match-all.
	if bq, ok := parsed.(*query.BooleanQuery); ok && bq.Must == nil && bq.Should == nil && bq.MustNot != nil {
		bq.AddMust(bleve.NewMatchAllQuery())
	}
	return parsed, nil
}

// MatchPlain matches text with boolean-operator interpretation disabled.
// It is the relaxed fallback when ParseTerms rejects the input.
func MatchPlain(text string) Query {
	return Match("", text)
}
