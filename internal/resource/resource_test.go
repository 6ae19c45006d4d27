package resource

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempFileStore(t *testing.T) {
	store, err := NewTempFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	h, err := store.Acquire([]byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.ID, "blob:"))
	assert.True(t, strings.HasSuffix(h.URI, ".png"))
	assert.Equal(t, 9, h.Size)

	path := strings.TrimPrefix(h.URI, "file://")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Release(h))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, store.Release(h), ErrNotLive)
}

func TestTempFileStoreClose(t *testing.T) {
	store, err := NewTempFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Acquire([]byte("x"), "application/octet-stream")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	h, err := store.Acquire([]byte("abc"), "image/jpeg")
	require.NoError(t, err)

	b, ok := store.Bytes(h)
	require.True(t, ok)
	assert.Equal(t, "abc", string(b))

	require.NoError(t, store.Release(h))
	_, ok = store.Bytes(h)
	assert.False(t, ok)
	assert.ErrorIs(t, store.Release(h), ErrNotLive)
}

func TestTrackerExactlyOnce(t *testing.T) {
	tracker := Track(NewMemoryStore())

	a, err := tracker.Acquire([]byte("a"), "image/png")
	require.NoError(t, err)
	b, err := tracker.Acquire([]byte("b"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.Acquired())
	assert.Len(t, tracker.Live(), 2)

	require.NoError(t, tracker.Release(a))
	assert.False(t, tracker.IsLive(a))
	assert.True(t, tracker.IsLive(b))

	err = tracker.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), b.ID)

	require.NoError(t, tracker.Release(b))
	assert.NoError(t, tracker.Check())
	assert.Equal(t, 2, tracker.Released())
}

func TestTrackerDoubleRelease(t *testing.T) {
	tracker := Track(NewMemoryStore())
	h, err := tracker.Acquire([]byte("a"), "image/png")
	require.NoError(t, err)

	require.NoError(t, tracker.Release(h))
	assert.ErrorIs(t, tracker.Release(h), ErrNotLive)
	assert.Equal(t, 1, tracker.Released())

	err = tracker.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released twice")
}
