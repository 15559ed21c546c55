package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

func mkChunk(id, text string) *store.Chunk {
	return &store.Chunk{ID: id, DocID: "d1", Text: text}
}

func TestFilterGarbage(t *testing.T) {
	good := mkChunk("good", "This is a perfectly reasonable chunk of prose with enough length and variety.")
	short := mkChunk("short", "too short")
	symbols := mkChunk("symbols", strings.Repeat("=#-|%$ 0123 ", 10))
	repetitive := mkChunk("rep", strings.Repeat("same same same same ", 10))

	filtered := FilterGarbage([]*store.Chunk{good, short, symbols, repetitive}, nil)
	require.Len(t, filtered, 1)
	assert.Equal(t, "good", filtered[0].ID)
}

func TestNearDuplicates(t *testing.T) {
	a := mkChunk("a", "the quick brown fox jumps over the lazy dog near the river bank")
	b := mkChunk("b", "the quick brown fox jumps over the lazy dog near the river bank today")
	c := mkChunk("c", "an entirely different passage about cooking pasta with garlic and olive oil")

	pairs := NearDuplicates([]*store.Chunk{a, b, c})
	require.Len(t, pairs, 1)
	assert.Equal(t, DupPair{A: "a", B: "b"}, pairs[0])
}

func TestNearDuplicatesNeedTwo(t *testing.T) {
	assert.Nil(t, NearDuplicates([]*store.Chunk{mkChunk("a", "lone chunk")}))
}

func TestCoverage(t *testing.T) {
	original := "alpha beta gamma delta"

	full := Coverage([]*store.Chunk{mkChunk("a", "alpha beta"), mkChunk("b", "gamma delta")}, original)
	assert.InDelta(t, 1.0, full, 1e-9)

	half := Coverage([]*store.Chunk{mkChunk("a", "alpha beta")}, original)
	assert.InDelta(t, 0.5, half, 1e-9)

	assert.Equal(t, 0.0, Coverage(nil, ""))
}

func TestJaccard(t *testing.T) {
	a := wordSet("one two three")
	b := wordSet("two three four")
	assert.InDelta(t, 2.0/4.0, jaccard(a, b), 1e-9)
	assert.Equal(t, 0.0, jaccard(a, wordSet("")))
}
