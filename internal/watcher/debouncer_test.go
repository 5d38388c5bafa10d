package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.output:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncerEmitsAfterWindow(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(FileEvent{Path: "/a", Operation: OpCreate})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/a", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	d := newDebouncer(30*time.Millisecond, 4)
	defer d.stop()

	// A burst of writes to one file collapses into a single event.
	for i := 0; i < 5; i++ {
		d.add(FileEvent{Path: "/burst", Operation: OpModify})
	}

	batch := collectBatch(t, d)
	assert.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncerCreateThenModifyStaysCreate(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(FileEvent{Path: "/new", Operation: OpCreate})
	d.add(FileEvent{Path: "/new", Operation: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncerCreateThenDeleteCancels(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(FileEvent{Path: "/tmp1", Operation: OpCreate})
	d.add(FileEvent{Path: "/tmp1", Operation: OpDelete})
	d.add(FileEvent{Path: "/other", Operation: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/other", batch[0].Path)
}

func TestDebouncerDeleteThenCreateIsModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(FileEvent{Path: "/swap", Operation: OpDelete})
	d.add(FileEvent{Path: "/swap", Operation: OpCreate})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncerSeparatePathsInOneBatch(t *testing.T) {
	d := newDebouncer(30*time.Millisecond, 4)
	defer d.stop()

	d.add(FileEvent{Path: "/x", Operation: OpCreate})
	d.add(FileEvent{Path: "/y", Operation: OpModify})

	batch := collectBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncerAddAfterStopIsNoop(t *testing.T) {
	d := newDebouncer(10*time.Millisecond, 4)
	d.stop()

	d.add(FileEvent{Path: "/late", Operation: OpCreate})

	_, open := <-d.output
	assert.False(t, open)
}
