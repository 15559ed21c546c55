// Package embed provides text embedding: an OpenAI-compatible HTTP client,
// a deterministic offline embedder, and a two-level cache (in-memory LRU over
// a content-addressed SQLite store).
package embed

import (
	"context"
	"time"
)

// Embedder generates dense vectors for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

const (
	// DefaultBatchSize is the per-request batch size for the HTTP embedder.
	DefaultBatchSize = 100

	// DefaultRequestTimeout bounds a single embedding HTTP request.
	DefaultRequestTimeout = 60 * time.Second
)
