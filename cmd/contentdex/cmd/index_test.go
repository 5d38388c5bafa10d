package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMime(t *testing.T) {
	assert.Contains(t, detectMime("notes.html"), "text/html")
	assert.Contains(t, detectMime("photo.png"), "image/png")
	assert.Equal(t, "text/plain", detectMime("no-extension"))
}

func TestFileProps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "field-trip.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes"), 0o644))

	props, err := fileProps(path, indexOptions{tags: "school"}, map[string]string{
		"activity": "org.laptop.Write",
	})
	require.NoError(t, err)

	assert.Equal(t, "field-trip.txt", props["filename"])
	assert.Equal(t, "field-trip", props["title"])
	assert.Contains(t, props["mime_type"], "text/plain")
	assert.Equal(t, "school", props["tags"])
	assert.Equal(t, "org.laptop.Write", props["activity"])
	assert.NotEmpty(t, props["timestamp"])
}

func TestFilePropsMissingFile(t *testing.T) {
	_, err := fileProps("/no/such/file", indexOptions{}, nil)
	require.Error(t, err)
}
