package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// StaticDimensions is the embedding width of the static embedder.
const StaticDimensions = 256

// Feature weights for the static vector.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates deterministic hash-based embeddings with no
// network or model dependency. Semantic quality is poor; it exists for
// tests and offline operation where only rough lexical similarity matters.
type StaticEmbedder struct{}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates the offline embedder.
func NewStaticEmbedder() *StaticEmbedder { return &StaticEmbedder{} }

// Embed produces a deterministic unit vector for text. Empty or
// whitespace-only input yields the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, StaticDimensions)

	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return vec, nil
	}

	tokens := staticTokenRegex.FindAllString(trimmed, -1)
	for _, tok := range tokens {
		vec[bucket(tok)] += tokenWeight

		// Character n-grams give partial credit to near-matches.
		for i := 0; i+ngramSize <= len(tok); i++ {
			vec[bucket(tok[i:i+ngramSize])] += ngramWeight
		}
	}

	normalizeStatic(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

func bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}

func normalizeStatic(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
