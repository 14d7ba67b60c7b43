package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("pipeline.workers", 8))

	val, ok := store.Get("pipeline.workers")
	assert.True(t, ok)
	assert.Equal(t, 8, val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_GetInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 4, 4},
		{"int64", int64(7), 7},
		{"float64", 3.9, 3},
		{"string", " 12 ", 12},
		{"bad string", "twelve", 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewConfigStore()
			require.NoError(t, store.Set("k", tt.value))
			assert.Equal(t, tt.want, store.GetInt("k"))
		})
	}

	assert.Zero(t, NewConfigStore().GetInt("missing"))
}

func TestConfigStore_GetFloat(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("a", 0.2)
	_ = store.Set("b", 3)
	_ = store.Set("c", "1.5")
	_ = store.Set("d", "x")

	assert.InDelta(t, 0.2, store.GetFloat("a"), 1e-9)
	assert.InDelta(t, 3.0, store.GetFloat("b"), 1e-9)
	assert.InDelta(t, 1.5, store.GetFloat("c"), 1e-9)
	assert.Zero(t, store.GetFloat("d"))
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_GetBool(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("a", true)
	_ = store.Set("b", "true")
	_ = store.Set("c", "nope")
	_ = store.Set("d", 1)

	assert.True(t, store.GetBool("a"))
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("c"))
	assert.False(t, store.GetBool("d"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_GetStringAndSlice(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("s", "hello")
	_ = store.Set("n", 5)
	_ = store.Set("list", []any{"chunker", 3, "normalise"})
	_ = store.Set("csv", "extract, chunk,,embed")
	_ = store.Set("typed", []string{"index"})

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Empty(t, store.GetString("n"))
	assert.Equal(t, []string{"chunker", "normalise"}, store.GetStringSlice("list"))
	assert.Equal(t, []string{"extract", "chunk", "embed"}, store.GetStringSlice("csv"))
	assert.Equal(t, []string{"index"}, store.GetStringSlice("typed"))
	assert.Nil(t, store.GetStringSlice("n"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_KeysSorted(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("vector.backend", "bolt")
	_ = store.Set("app.name", "RAG")
	_ = store.Set("pipeline.workers", 2)

	assert.Equal(t, []string{"app.name", "pipeline.workers", "vector.backend"}, store.Keys())
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", i), i)
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 50)
	assert.Equal(t, 42, store.GetInt("key.42"))
}
