package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	a, err := e.Embed(ctx, "photosynthesis in plants")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "photosynthesis in plants")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "cellular respiration")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedder_EmptyInputIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	for _, input := range []string{"", "   ", "\t\n"} {
		vec, err := e.Embed(context.Background(), input)
		require.NoError(t, err)
		for _, x := range vec {
			assert.Zero(t, x)
		}
	}
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	base, _ := e.Embed(ctx, "the photosynthesis process in green plants")
	similar, _ := e.Embed(ctx, "photosynthesis process in plants")
	different, _ := e.Embed(ctx, "quarterly revenue grew by twelve percent")

	assert.Greater(t, dot(base, similar), dot(base, different))
}

func TestStaticEmbedder_EmbedBatchOrder(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		assert.Equal(t, single, batch[i])
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
