package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
)

func TestRegistryDispatch(t *testing.T) {
	r := DefaultRegistry()

	for _, name := range []string{"notes.txt", "README.md", "guide.markdown", "page.html", "page.htm"} {
		_, err := r.ParserFor(name)
		assert.NoError(t, err, name)
	}
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.ParserFor("report.pdf")
	require.Error(t, err)

	var perr *errors.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, errors.ErrCodeUnsupportedFile, perr.Code)
}

func TestTextParserUTF8(t *testing.T) {
	text, meta, err := TextParser{}.Parse("a.txt", []byte("plain text content"), map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "plain text content", text)
	assert.Equal(t, "utf-8", meta["encoding"])
	assert.Equal(t, "v", meta["k"])
}

func TestTextParserLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 but invalid as a standalone UTF-8 byte.
	text, meta, err := TextParser{}.Parse("a.txt", []byte{'c', 'a', 'f', 0xE9}, nil)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
	assert.Equal(t, "latin-1", meta["encoding"])
}

func TestMarkdownParserFrontMatterAndTitle(t *testing.T) {
	src := "---\nauthor: someone\n---\n# The Title\n\nBody text here.\n"
	text, meta, err := MarkdownParser{}.Parse("a.md", []byte(src), nil)
	require.NoError(t, err)

	assert.NotContains(t, text, "author: someone")
	assert.Contains(t, text, "# The Title")
	assert.Equal(t, "The Title", meta["title"])
}

func TestMarkdownParserNoFrontMatter(t *testing.T) {
	text, meta, err := MarkdownParser{}.Parse("a.md", []byte("just a paragraph"), nil)
	require.NoError(t, err)
	assert.Equal(t, "just a paragraph", text)
	assert.NotContains(t, meta, "title")
}

func TestHTMLParserExtractsStructure(t *testing.T) {
	src := `<html><head><title>Page Title</title><style>body{}</style></head>
<body>
<nav>skip this nav</nav>
<h1>Main Heading</h1>
<p>First paragraph.</p>
<h2>Sub Heading</h2>
<ul><li>item one</li></ul>
<script>alert("skip")</script>
<footer>skip footer</footer>
</body></html>`

	text, meta, err := HTMLParser{}.Parse("a.html", []byte(src), nil)
	require.NoError(t, err)

	assert.Equal(t, "Page Title", meta["title"])
	assert.Contains(t, text, "# Main Heading")
	assert.Contains(t, text, "## Sub Heading")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "item one")
	assert.NotContains(t, text, "skip this nav")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "skip footer")
}
