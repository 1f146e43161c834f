package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, flushEvery int) (*Tracker, string) {
	path := filepath.Join(t.TempDir(), "upload_tracking.json")
	tr, err := New(context.Background(), NewFileStore(path), flushEvery)
	require.NoError(t, err)
	return tr, path
}

func TestNewStartsEmptyWhenFileMissing(t *testing.T) {
	tr, path := newTestTracker(t, 10)
	assert.Equal(t, 0, tr.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file should be created before Flush")
}

func TestRecordAndReload(t *testing.T) {
	ctx := context.Background()
	tr, path := newTestTracker(t, 10)

	tr.Record(ctx, "fp-1")
	tr.Record(ctx, "fp-2")
	assert.True(t, tr.Contains("fp-1"))
	assert.False(t, tr.Contains("fp-3"))
	require.NoError(t, tr.Flush(ctx))

	reloaded, err := New(ctx, NewFileStore(path), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Contains("fp-1"))
	assert.True(t, reloaded.Contains("fp-2"))
}

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, 10)

	tr.Record(ctx, "fp-1")
	tr.Record(ctx, "fp-1")
	assert.Equal(t, 1, tr.Len())
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload_tracking.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tr, err := New(context.Background(), NewFileStore(path), 10)
	require.NoError(t, err, "corrupt store must not crash the caller")
	assert.Equal(t, 0, tr.Len())
}

func TestPeriodicFlush(t *testing.T) {
	ctx := context.Background()
	tr, path := newTestTracker(t, 3)

	tr.Record(ctx, "fp-1")
	tr.Record(ctx, "fp-2")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "below the threshold nothing is written")

	tr.Record(ctx, "fp-3")
	_, err = os.Stat(path)
	assert.NoError(t, err, "the third insert triggers a flush")
}

func TestFlushIsNoopWhenClean(t *testing.T) {
	ctx := context.Background()
	tr, path := newTestTracker(t, 10)

	tr.Record(ctx, "fp-1")
	require.NoError(t, tr.Flush(ctx))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A clean flush must not rewrite the store (dry runs depend on this).
	require.NoError(t, tr.Flush(ctx))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	tr, path := newTestTracker(t, 10)

	tr.Record(ctx, "fp-1")
	require.NoError(t, tr.Flush(ctx))
	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, 0, tr.Len())

	reloaded, err := New(ctx, NewFileStore(path), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len(), "reset must persist the empty set")
}
