package embed

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize is the in-memory cache capacity in entries.
const DefaultLRUSize = 4096

// CachedEmbedder wraps an Embedder with two cache levels: an in-memory LRU
// for hot queries and the persistent SQLite cache underneath. Misses fall
// through to the inner embedder and are written back to both levels.
// Cache write failures are logged, never surfaced.
type CachedEmbedder struct {
	inner  Embedder
	disk   *SQLiteCache
	memory *lru.Cache[string, []float32]
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with the given persistent cache. disk may be
// nil, leaving only the LRU layer.
func NewCachedEmbedder(inner Embedder, disk *SQLiteCache, lruSize int, logger *slog.Logger) *CachedEmbedder {
	if lruSize <= 0 {
		lruSize = DefaultLRUSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	memory, _ := lru.New[string, []float32](lruSize)
	return &CachedEmbedder{inner: inner, disk: disk, memory: memory, logger: logger}
}

// Embed returns a cached embedding when available.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.memory.Get(text); ok {
		return vec, nil
	}
	if c.disk != nil {
		vec, err := c.disk.Get(ctx, text)
		if err != nil {
			c.logger.Warn("embedding cache read failed", slog.String("error", err.Error()))
		} else if vec != nil {
			c.memory.Add(text, vec)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.memory.Add(text, vec)
	if c.disk != nil {
		if err := c.disk.Put(ctx, text, vec); err != nil {
			c.logger.Warn("embedding cache write failed", slog.String("error", err.Error()))
		}
	}
	return vec, nil
}

// EmbedBatch checks both cache levels per text and embeds only the misses,
// preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	remaining := make([]int, 0, len(texts))
	for i, text := range texts {
		if vec, ok := c.memory.Get(text); ok {
			results[i] = vec
		} else {
			remaining = append(remaining, i)
		}
	}

	if len(remaining) > 0 && c.disk != nil {
		missTexts := make([]string, len(remaining))
		for j, i := range remaining {
			missTexts[j] = texts[i]
		}
		hits, err := c.disk.GetBatch(ctx, missTexts)
		if err != nil {
			c.logger.Warn("embedding cache batch read failed", slog.String("error", err.Error()))
		} else {
			stillMissing := remaining[:0]
			for j, i := range remaining {
				if vec, ok := hits[j]; ok {
					results[i] = vec
					c.memory.Add(texts[i], vec)
				} else {
					stillMissing = append(stillMissing, i)
				}
			}
			remaining = stillMissing
		}
	}

	if len(remaining) == 0 {
		return results, nil
	}

	missTexts := make([]string, len(remaining))
	for j, i := range remaining {
		missTexts[j] = texts[i]
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range remaining {
		results[i] = vecs[j]
		c.memory.Add(texts[i], vecs[j])
	}
	if c.disk != nil {
		if err := c.disk.PutBatch(ctx, missTexts, vecs); err != nil {
			c.logger.Warn("embedding cache batch write failed", slog.String("error", err.Error()))
		}
	}

	c.logger.Debug("embedded with cache",
		slog.Int("total", len(texts)),
		slog.Int("misses", len(remaining)))
	return results, nil
}

// Dimensions returns the inner embedder's width.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the inner embedder's model identifier.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
