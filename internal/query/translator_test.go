package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/errors"
	"github.com/contentdex/contentdex/internal/model"
)

func testTranslator(t *testing.T) (*Translator, *engine.Engine, *model.Schema) {
	t.Helper()

	schema := model.NewSchema(model.DefaultModel().Descriptors(), 1)
	tr, err := New(16, func() *model.Schema { return schema })
	require.NoError(t, err)

	e, err := engine.Open("", "english")
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return tr, e, schema
}

func indexDoc(t *testing.T, e *engine.Engine, schema *model.Schema, id string, fields map[string]string) {
	t.Helper()
	doc := model.NewDocument(id, id, 1)
	for k, v := range fields {
		desc, ok := schema.Get(k)
		require.True(t, ok, "field %q not in schema", k)
		impl, err := model.ByKind(desc.Kind)
		require.NoError(t, err)
		val, err := impl.Parse(v)
		require.NoError(t, err)
		doc.AddField(k, desc.Kind, val)
	}
	repr, _, err := engine.BuildDoc(doc, schema)
	require.NoError(t, err)
	require.NoError(t, e.Write().Replace(id, repr))
	require.NoError(t, e.Write().Flush())
	e.Read().Reopen()
}

func search(t *testing.T, e *engine.Engine, q engine.Query) []string {
	t.Helper()
	hits, _, err := e.Read().Search(q, 0, 100, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestTranslateNilMatchesEverything(t *testing.T) {
	// Given an index with two documents
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "first note"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "second note"})

	// When translating a nil query
	q, err := tr.Translate(nil)
	require.NoError(t, err)

	// Then every document matches
	assert.Len(t, search(t, e, q), 2)
}

func TestTranslateEmptyStringMatchesEverything(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "alpha"})

	q, err := tr.Translate("   ")
	require.NoError(t, err)
	assert.Len(t, search(t, e, q), 1)
}

func TestParseTextUnqualifiedTerm(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "garden drawing"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "school report"})

	q, err := tr.ParseText("garden")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextFieldQualifier(t *testing.T) {
	// Given documents by different activities
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"activity": "org.laptop.Write", "title": "essay"})
	indexDoc(t, e, schema, "b", map[string]string{"activity": "org.laptop.Paint", "title": "essay"})

	// When qualifying by the exact-indexed activity field
	q, err := tr.ParseText("activity:org.laptop.Write")
	require.NoError(t, err)

	// Then only the matching activity is returned
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextUnknownFieldPrefixIsLiteral(t *testing.T) {
	tr, _, _ := testTranslator(t)

	// "nosuch:" is not a registered field, so the whole token goes
	// through the term grammar instead of field resolution.
	q, err := tr.ParseText("nosuch:value")
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestParseTextQuotedPhrase(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "hello world essay"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "world hello essay"})

	q, err := tr.ParseText(`title:"hello world"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextPhraseWithExclusion(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "hello world"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "hello world spam"})

	q, err := tr.ParseText(`title:"hello world" -spam`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextWildcard(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "gardening"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "report"})

	q, err := tr.ParseText("title:garden*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextMultipleTermsAreConjoined(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "garden drawing"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "garden report"})

	q, err := tr.ParseText("garden drawing")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestParseTextCachesPerGeneration(t *testing.T) {
	tr, _, schema := testTranslator(t)

	q1, err := tr.ParseText("garden")
	require.NoError(t, err)
	q2, err := tr.ParseText("garden")
	require.NoError(t, err)

	// Same generation returns the cached tree.
	assert.Same(t, q1, q2)
	assert.Equal(t, uint64(1), schema.Generation())
}

func TestTranslateMapScalarField(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"mime_type": "text/plain"})
	indexDoc(t, e, schema, "b", map[string]string{"mime_type": "image/png"})

	q, err := tr.Translate(map[string]any{"mime_type": "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestTranslateMapListIsDisjunction(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"mime_type": "text/plain"})
	indexDoc(t, e, schema, "b", map[string]string{"mime_type": "image/png"})
	indexDoc(t, e, schema, "c", map[string]string{"mime_type": "audio/ogg"})

	q, err := tr.Translate(map[string]any{
		"mime_type": []any{"text/plain", "image/png"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, search(t, e, q))
}

func TestTranslateMapRange(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"timestamp": "100"})
	indexDoc(t, e, schema, "b", map[string]string{"timestamp": "200"})
	indexDoc(t, e, schema, "c", map[string]string{"timestamp": "300"})

	q, err := tr.Translate(map[string]any{
		"timestamp": map[string]any{"start": 150, "end": 250},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, search(t, e, q))
}

func TestTranslateMapRangeDefaultsToOpenEnd(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"timestamp": "100"})
	indexDoc(t, e, schema, "b", map[string]string{"timestamp": "300"})

	q, err := tr.Translate(map[string]any{
		"timestamp": map[string]any{"start": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, search(t, e, q))
}

func TestTranslateMapRangeOnNonNumericFieldFails(t *testing.T) {
	tr, _, _ := testTranslator(t)

	_, err := tr.Translate(map[string]any{
		"title": map[string]any{"start": 1, "end": 2},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryParse))
}

func TestTranslateMapUnknownFieldFails(t *testing.T) {
	tr, _, _ := testTranslator(t)

	_, err := tr.Translate(map[string]any{"bogus": "x"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryParse))
}

func TestTranslateMapNestedQueryText(t *testing.T) {
	tr, e, schema := testTranslator(t)
	indexDoc(t, e, schema, "a", map[string]string{"title": "garden plan", "mime_type": "text/plain"})
	indexDoc(t, e, schema, "b", map[string]string{"title": "garden plan", "mime_type": "image/png"})

	q, err := tr.Translate(map[string]any{
		"query":     "garden",
		"mime_type": "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, search(t, e, q))
}

func TestTranslateUnsupportedTypeFails(t *testing.T) {
	tr, _, _ := testTranslator(t)

	_, err := tr.Translate(42)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryParse))
}
