package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewStructureChunker(0, 0.15)

	chunks := c.Chunk("A short document that fits in one chunk.", "d1", nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, "d1", chunks[0].DocID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.NotEmpty(t, chunks[0].ID)
	assert.Greater(t, chunks[0].TokenCount, 0)
}

func TestChunkSplitsByHeadings(t *testing.T) {
	text := "# Intro\n\n" + strings.Repeat("Intro sentence. ", 200) +
		"\n\n## Details\n\n" + strings.Repeat("Detail sentence. ", 200)
	c := NewStructureChunker(100, 0)

	chunks := c.Chunk(text, "d1", nil)
	require.Greater(t, len(chunks), 2)

	var introPath, detailPath bool
	for _, chunk := range chunks {
		switch chunk.Metadata["heading_path"] {
		case "Intro":
			introPath = true
		case "Intro > Details":
			detailPath = true
		}
	}
	assert.True(t, introPath, "chunks under # Intro carry its path")
	assert.True(t, detailPath, "chunks under ## Details carry the nested path")
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	text := strings.Repeat("This is a sentence of reasonable length for testing. ", 100)
	c := NewStructureChunker(50, 0)

	chunks := c.Chunk(text, "d1", nil)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		// Budget applies to the pre-overlap text; with no overlap the
		// chunk itself must fit.
		assert.LessOrEqual(t, chunk.TokenCount, 50, chunk.Text)
	}
}

func TestChunkOverlapPrepended(t *testing.T) {
	text := "First paragraph with several words in it here.\n\nSecond paragraph follows with more words."
	c := NewStructureChunker(10, 0.5)

	chunks := c.Chunk(text, "d1", nil)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The second chunk starts with the tail of the first.
	firstWords := strings.Fields(chunks[0].Text)
	lastWord := firstWords[len(firstWords)-1]
	assert.True(t, strings.Contains(strings.SplitN(chunks[1].Text, "\n", 2)[0], lastWord),
		"second chunk should start with overlap from the first")
}

func TestChunkEmptyText(t *testing.T) {
	c := NewStructureChunker(0, 0)
	assert.Empty(t, c.Chunk("   \n\n  ", "d1", nil))
}

func TestSplitSentencesKeepsPunctuation(t *testing.T) {
	sentences := splitSentences("First one. Second one! Third one? Trailing")
	require.Len(t, sentences, 4)
	assert.Equal(t, "First one.", sentences[0])
	assert.Equal(t, "Second one!", sentences[1])
	assert.Equal(t, "Third one?", sentences[2])
	assert.Equal(t, "Trailing", sentences[3])
}

func TestTrailingOverlap(t *testing.T) {
	assert.Equal(t, "", trailingOverlap("", 0.15))
	assert.Equal(t, "ten", trailingOverlap("one two three four five six seven eight nine ten", 0.1))
	assert.Equal(t, "nine ten", trailingOverlap("one two three four five six seven eight nine ten", 0.2))
}
