package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentdex/contentdex/internal/model"
)

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	return model.NewSchema(model.DefaultModel().Descriptors(), 1)
}

func testDoc(t *testing.T, schema *model.Schema, id, uid string, vid int64, title string) *DocRepr {
	t.Helper()
	doc := model.NewDocument(id, uid, vid)
	doc.AddField("uid", model.KindString, uid)
	doc.AddField("vid", model.KindInt, vid)
	doc.AddField("title", model.KindText, title)

	repr, dropped, err := BuildDoc(doc, schema)
	require.NoError(t, err)
	require.Empty(t, dropped)
	return repr
}

func TestWriteConn_StagedMutationsInvisibleUntilFlush(t *testing.T) {
	// Given: an open engine and a staged document
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	require.NoError(t, e.Write().Add("d1", testDoc(t, schema, "d1", "u1", 1, "hello world")))

	// Then: the read connection does not see it before flush
	hit, err := e.Read().Get("d1")
	require.NoError(t, err)
	assert.Nil(t, hit)
	assert.Equal(t, 1, e.Write().Pending())

	// When: the write connection flushes and the reader reopens
	require.NoError(t, e.Write().Flush())
	e.Read().Reopen()

	// Then: the document is visible
	hit, err = e.Read().Get("d1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "d1", hit.ID)
	assert.Equal(t, uint64(1), e.Read().Generation())
	assert.Zero(t, e.Write().Pending())
}

func TestWriteConn_DeleteRemovesDocument(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	require.NoError(t, e.Write().Add("d1", testDoc(t, schema, "d1", "u1", 1, "doomed")))
	require.NoError(t, e.Write().Flush())

	require.NoError(t, e.Write().Delete("d1"))
	require.NoError(t, e.Write().Flush())
	e.Read().Reopen()

	hit, err := e.Read().Get("d1")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestReadConn_SearchSortedByVersionDescending(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	for vid := int64(1); vid <= 3; vid++ {
		id := fmt.Sprintf("u1:%d", vid)
		require.NoError(t, e.Write().Add(id, testDoc(t, schema, id, "u1", vid, "versioned thing")))
	}
	require.NoError(t, e.Write().Flush())
	e.Read().Reopen()

	uidDesc, _ := schema.Get("uid")
	vidDesc, _ := schema.Get("vid")

	hits, total, err := e.Read().Search(Term(FieldPath(uidDesc), "u1"), 0, 10, "-"+SortPath(vidDesc))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, hits, 3)
	assert.Equal(t, "u1:3", hits[0].ID)
	assert.Equal(t, "u1:1", hits[2].ID)
}

func TestReadConn_SearchRange(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	for vid := int64(1); vid <= 5; vid++ {
		id := fmt.Sprintf("u1:%d", vid)
		require.NoError(t, e.Write().Add(id, testDoc(t, schema, id, "u1", vid, "ranged")))
	}
	require.NoError(t, e.Write().Flush())

	vidDesc, _ := schema.Get("vid")
	hits, _, err := e.Read().Search(Range(NumPath(vidDesc), 2, 4), 0, 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestReadConn_SearchPagination(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("u%d", i)
		require.NoError(t, e.Write().Add(id, testDoc(t, schema, id, id, 1, "page me")))
	}
	require.NoError(t, e.Write().Flush())

	hits, total, err := e.Read().Search(MatchAll(), 3, 7, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), total)
	assert.Len(t, hits, 4)

	_, _, err = e.Read().Search(MatchAll(), 7, 3, "")
	assert.Error(t, err)
}

func TestReadConn_FulltextSearchableAfterReplace(t *testing.T) {
	// Given: a metadata-only document
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	require.NoError(t, e.Write().Add("d1", testDoc(t, schema, "d1", "u1", 1, "plain")))
	require.NoError(t, e.Write().Flush())

	hits, _, err := e.Read().Search(Match("", "xylophone"), 0, 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// When: the document is replaced with full-text chunks appended
	repr := testDoc(t, schema, "d1", "u1", 1, "plain")
	repr.AppendFulltext("the quick xylophone")
	repr.AppendFulltext("jumped over the lazy theremin")
	require.NoError(t, e.Write().Replace("d1", repr))
	require.NoError(t, e.Write().Flush())

	// Then: terms from both chunks match
	hits, _, err = e.Read().Search(Match("", "xylophone"), 0, 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, _, err = e.Read().Search(Match("", "theremin"), 0, 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestReadConn_TermsEnumeratesExactValues(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	schema := testSchema(t)
	for i, mime := range []string{"text/plain", "text/html", "text/plain"} {
		id := fmt.Sprintf("d%d", i)
		doc := model.NewDocument(id, id, 1)
		doc.AddField("uid", model.KindString, id)
		doc.AddField("mime_type", model.KindString, mime)
		repr, _, err := BuildDoc(doc, schema)
		require.NoError(t, err)
		require.NoError(t, e.Write().Add(id, repr))
	}
	require.NoError(t, e.Write().Flush())

	mimeDesc, _ := schema.Get("mime_type")
	terms, err := e.Read().Terms(FieldPath(mimeDesc))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"text/plain", "text/html"}, terms)
}

func TestEngine_ClosedOperationsFail(t *testing.T) {
	e, err := Open("", "en")
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.NoError(t, e.Close()) // idempotent

	schema := testSchema(t)
	assert.Error(t, e.Write().Add("d1", testDoc(t, schema, "d1", "u1", 1, "x")))
	assert.Error(t, e.Write().Flush())
	_, err = e.Read().Get("d1")
	assert.Error(t, err)
	_, _, err = e.Read().Search(MatchAll(), 0, 1, "")
	assert.Error(t, err)
}

func TestOpen_PersistsOnDisk(t *testing.T) {
	path := t.TempDir() + "/index.bleve"

	e, err := Open(path, "en")
	require.NoError(t, err)
	schema := testSchema(t)
	require.NoError(t, e.Write().Add("d1", testDoc(t, schema, "d1", "u1", 1, "durable")))
	require.NoError(t, e.Write().Flush())
	require.NoError(t, e.Close())

	// Reopen the same path and find the document.
	e2, err := Open(path, "en")
	require.NoError(t, err)
	defer func() { _ = e2.Close() }()

	hit, err := e2.Read().Get("d1")
	require.NoError(t, err)
	assert.NotNil(t, hit)
}
