package objectstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listcart/pkg/platform/sentinel"
)

func TestFilesystemStore_PutOpenStat(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ref := mustRef(t, "alice/1700000000000.jpg")
	ctx := context.Background()

	n, err := store.Put(ctx, ref, strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	meta, err := store.Stat(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 10, meta.Size)
}

func TestFilesystemStore_WriteOnce(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ref := mustRef(t, "alice/1700000000000.jpg")
	ctx := context.Background()

	_, err = store.Put(ctx, ref, strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Put(ctx, ref, strings.NewReader("second"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(data))
}

func TestFilesystemStore_ConcurrentWritersOneWins(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ref := mustRef(t, "alice/1700000000000.jpg")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Put(context.Background(), ref, bytes.NewReader([]byte{byte(i)}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestFilesystemStore_NotFound(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ref := mustRef(t, "alice/1700000000000.jpg")

	_, err = store.Open(context.Background(), ref)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.Stat(context.Background(), ref)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFilesystemStore_CancelledContext(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ref := mustRef(t, "alice/1700000000000.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, ref, strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Open(context.Background(), ref)
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "cancelled upload must not leave an object")
}
