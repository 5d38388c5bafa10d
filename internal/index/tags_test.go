package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentdex/contentdex/internal/errors"
	"github.com/contentdex/contentdex/internal/store"
)

func TestParseTagUpdate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		add    []string
		remove []string
		clear  bool
	}{
		{name: "single add", raw: "fun", add: []string{"fun"}},
		{name: "multiple adds", raw: "fun school", add: []string{"fun", "school"}},
		{name: "remove", raw: "-fun", remove: []string{"fun"}},
		{name: "mixed", raw: "fun -school", add: []string{"fun"}, remove: []string{"school"}},
		{name: "clear all", raw: "-", clear: true},
		{name: "clear then add", raw: "- fresh", add: []string{"fresh"}, clear: true},
		{name: "refcount suffix stripped", raw: "fun:0 -school:0", add: []string{"fun"}, remove: []string{"school"}},
		{name: "mixed case lowered", raw: "Fun -SCHOOL", add: []string{"fun"}, remove: []string{"school"}},
		{name: "bare suffix clears", raw: "-:0", clear: true},
		{name: "empty", raw: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := parseTagUpdate(tt.raw)
			assert.Equal(t, tt.add, u.add)
			assert.Equal(t, tt.remove, u.remove)
			assert.Equal(t, tt.clear, u.clear)
		})
	}
}

func TestTagUpdateApply(t *testing.T) {
	current := []string{"alpha", "beta"}

	assert.Equal(t, []string{"alpha", "beta", "gamma"},
		parseTagUpdate("gamma").apply(current))
	assert.Equal(t, []string{"beta"},
		parseTagUpdate("-alpha").apply(current))
	assert.Equal(t, []string{"fresh"},
		parseTagUpdate("- fresh").apply(current))
	assert.Empty(t, parseTagUpdate("-").apply(current))
	// Adding an existing tag is idempotent.
	assert.Equal(t, []string{"alpha", "beta"},
		parseTagUpdate("alpha").apply(current))
}

func TestUpdateTagsAddAndSearch(t *testing.T) {
	// Given indexed content
	m, _ := newTestManager(t)
	doc, err := m.Index(map[string]string{"uid": "tagged", "title": "my drawing"}, "")
	require.NoError(t, err)

	// When adding tags
	tags, err := m.UpdateTags(doc.UID, "art school")
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "school"}, tags)

	// Then the content is findable by tag
	assert.Equal(t, []string{"tagged"}, searchUIDs(t, m, "tags:art"))

	// And the stored document carries the tag set
	got, err := m.Get("tagged")
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "school"}, got.Tags())
}

func TestUpdateTagsRemove(t *testing.T) {
	m, _ := newTestManager(t)
	doc, err := m.Index(map[string]string{"uid": "tg", "tags": "art school"}, "")
	require.NoError(t, err)

	tags, err := m.UpdateTags(doc.UID, "-art")
	require.NoError(t, err)
	assert.Equal(t, []string{"school"}, tags)
	assert.Empty(t, searchUIDs(t, m, "tags:art"))
}

func TestUpdateTagsClearAll(t *testing.T) {
	m, _ := newTestManager(t)
	doc, err := m.Index(map[string]string{"uid": "tc", "tags": "one two three"}, "")
	require.NoError(t, err)

	tags, err := m.UpdateTags(doc.UID, "-")
	require.NoError(t, err)
	assert.Empty(t, tags)

	got, err := m.Get("tc")
	require.NoError(t, err)
	assert.Empty(t, got.Tags())
}

func TestUpdateTagsAppliesToWholeVersionChain(t *testing.T) {
	// Given two versions of one uid
	m, fs := newTestManager(t, store.CapVersions)
	for i := 0; i < 2; i++ {
		doc, err := m.Index(map[string]string{"uid": "chain", "title": "versioned"}, "")
		require.NoError(t, err)
		fs.record(doc.UID, doc.VID)
	}

	// When tagging the content
	_, err := m.UpdateTags("chain", "keeper")
	require.NoError(t, err)

	// Then every version carries the tag
	for _, rev := range []string{"1", "2"} {
		doc, err := m.GetVersion("chain", rev)
		require.NoError(t, err)
		assert.Equal(t, []string{"keeper"}, doc.Tags(), "version %s", rev)
	}
}

func TestTagsAreCaseInsensitive(t *testing.T) {
	// Given content tagged with mixed casing
	m, _ := newTestManager(t)
	doc, err := m.Index(map[string]string{"uid": "cased", "tags": "Art"}, "")
	require.NoError(t, err)
	tags, err := m.UpdateTags(doc.UID, "Alpha beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "art", "beta"}, tags)

	// When removing with different casing
	tags, err = m.UpdateTags(doc.UID, "-alpha -ART")
	require.NoError(t, err)

	// Then the lowercase set reflects both removals
	assert.Equal(t, []string{"beta"}, tags)
	got, err := m.Get("cased")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, got.Tags())
}

func TestIndexLowercasesTagsProperty(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Index(map[string]string{"uid": "shouty", "tags": "MUSIC Art"}, "")
	require.NoError(t, err)

	got, err := m.Get("shouty")
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "music"}, got.Tags())
	assert.Equal(t, []string{"shouty"}, searchUIDs(t, m, "tags:music"))
}

func TestUpdateTagsUnknownUID(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.UpdateTags("missing", "whatever")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestUpdateTagsPreservesFulltext(t *testing.T) {
	// Given content whose full text has been indexed
	m, _ := newTestManager(t)
	src := writeSource(t, "an unrepeatable glockenspiel solo")
	doc, err := m.Index(map[string]string{"uid": "ft", "mime_type": "text/plain"}, src)
	require.NoError(t, err)
	require.NoError(t, m.CompleteIndexing())
	require.Equal(t, []string{"ft"}, searchUIDs(t, m, "glockenspiel"))

	// When updating tags, which rewrites the engine document
	_, err = m.UpdateTags(doc.UID, "music")
	require.NoError(t, err)

	// Then the full text is still searchable
	assert.Equal(t, []string{"ft"}, searchUIDs(t, m, "glockenspiel"))
}
