package embed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reached the inner embedder.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls += len(texts)
	c.mu.Unlock()
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func newTestCache(t *testing.T, model string) *SQLiteCache {
	t.Helper()
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), model)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachedEmbedder_MemoryHit(t *testing.T) {
	ctx := context.Background()
	counter := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counter, nil, 16, nil)

	first, err := cached.Embed(ctx, "photosynthesis")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "photosynthesis")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counter.calls)
}

func TestCachedEmbedder_DiskSurvivesNewInstance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	disk, err := NewSQLiteCache(path, "static-hash-v1")
	require.NoError(t, err)
	counter := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counter, disk, 16, nil)

	_, err = cached.Embed(ctx, "mitochondria")
	require.NoError(t, err)
	require.NoError(t, disk.Close())

	// Fresh instance, fresh LRU: only the SQLite layer can answer.
	disk2, err := NewSQLiteCache(path, "static-hash-v1")
	require.NoError(t, err)
	defer disk2.Close()
	counter2 := &countingEmbedder{inner: NewStaticEmbedder()}
	cached2 := NewCachedEmbedder(counter2, disk2, 16, nil)

	_, err = cached2.Embed(ctx, "mitochondria")
	require.NoError(t, err)
	assert.Equal(t, 0, counter2.calls)
}

func TestCachedEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	disk := newTestCache(t, "static-hash-v1")
	counter := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counter, disk, 16, nil)

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, counter.calls)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// Only beta and gamma were misses.
	assert.Equal(t, 3, counter.calls)

	// Order is preserved.
	want, _ := NewStaticEmbedder().Embed(ctx, "beta")
	assert.Equal(t, want, vecs[1])
}

func TestSQLiteCache_ModelNamespacing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	cacheA, err := NewSQLiteCache(path, "model-a")
	require.NoError(t, err)
	defer cacheA.Close()
	require.NoError(t, cacheA.Put(ctx, "text", []float32{1, 2, 3}))

	cacheB, err := NewSQLiteCache(path, "model-b")
	require.NoError(t, err)
	defer cacheB.Close()

	got, err := cacheB.Get(ctx, "text")
	require.NoError(t, err)
	assert.Nil(t, got, "different model must not see cached vectors")

	same, err := cacheA.Get(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, same)
}

func TestSQLiteCache_GetBatch(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, "m")

	require.NoError(t, cache.PutBatch(ctx,
		[]string{"one", "three"},
		[][]float32{{1}, {3}}))

	hits, err := cache.GetBatch(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, map[int][]float32{0: {1}, 2: {3}}, hits)
}
