package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, Options{
		DebounceWindow: 30 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func waitForPath(t *testing.T, w *Watcher, path string) FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-w.Batches():
			for _, ev := range batch {
				if ev.Path == path {
					return ev
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcherReportsNewFile(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ev := waitForPath(t, w, path)
	assert.Equal(t, OpCreate, ev.Operation)
}

func TestWatcherReportsDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := startWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	ev := waitForPath(t, w, path)
	assert.Equal(t, OpDelete, ev.Operation)
}

func TestWatcherCoversNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "nested.txt")
	require.NoError(t, os.WriteFile(path, []byte("deep"), 0o644))

	ev := waitForPath(t, w, path)
	assert.Equal(t, OpCreate, ev.Operation)
}

func TestWatcherIgnoresHiddenAndIndexFiles(t *testing.T) {
	assert.True(t, skipPath("/repo/.hidden"))
	assert.True(t, skipPath("/repo/index.bleve"))
	assert.True(t, skipPath("/repo/registry.db"))
	assert.False(t, skipPath("/repo/story.txt"))
}

func TestWatcherStopClosesBatches(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	w.Stop()

	select {
	case _, open := <-w.Batches():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("batch channel not closed after Stop")
	}
}
