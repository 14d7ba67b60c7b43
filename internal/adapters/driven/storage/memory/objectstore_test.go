package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

func TestObjectStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewObjectStore()

	url, err := store.Put(ctx, "demo-bucket", "demo/file.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "s3://demo-bucket/demo/file.txt", url)

	data, err := store.Get(ctx, "demo-bucket", "demo/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Returned bytes are a copy.
	data[0] = 'j'
	again, err := store.Get(ctx, "demo-bucket", "demo/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again))

	require.NoError(t, store.Delete(ctx, "demo-bucket", "demo/file.txt"))
	_, err = store.Get(ctx, "demo-bucket", "demo/file.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "demo-bucket", "missing"))
}

func TestObjectStore_Errors(t *testing.T) {
	store := NewObjectStore()

	_, err := store.Put(context.Background(), "", "k", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectStore_URLs(t *testing.T) {
	ctx := context.Background()
	store := NewObjectStore()
	_, _ = store.Put(ctx, "b", "z.txt", nil)
	_, _ = store.Put(ctx, "a", "y.txt", nil)

	assert.Equal(t, []string{"s3://a/y.txt", "s3://b/z.txt"}, store.URLs())
}
