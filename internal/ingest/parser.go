// Package ingest turns uploaded files into indexed, searchable chunks:
// parse, chunk, quality-filter, embed, and index.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
)

// Parser extracts plain text from one file format.
type Parser interface {
	// Parse returns the extracted text and metadata enriched with
	// format-specific fields such as title.
	Parse(name string, data []byte, metadata map[string]string) (string, map[string]string, error)
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds an extension (with leading dot) to a parser.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

// ParserFor returns the parser for the file's extension.
func (r *Registry) ParserFor(name string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	p, ok := r.parsers[ext]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedFile,
			fmt.Sprintf("no parser registered for extension %q (supported: %s)",
				ext, strings.Join(r.SupportedTypes(), ", ")), nil)
	}
	return p, nil
}

// SupportedTypes lists the registered extensions sorted for display.
func (r *Registry) SupportedTypes() []string {
	out := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with the built-in parsers. PDF is
// recognized but deliberately unsupported until a native extractor is
// wired in, so it reports a typed unsupported-file error.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".txt", TextParser{})
	r.Register(".md", MarkdownParser{})
	r.Register(".markdown", MarkdownParser{})
	r.Register(".html", HTMLParser{})
	r.Register(".htm", HTMLParser{})
	return r
}

// TextParser handles plain .txt files.
type TextParser struct{}

// Parse decodes the file as UTF-8, falling back to a Latin-1 reading for
// legacy files.
func (TextParser) Parse(_ string, data []byte, metadata map[string]string) (string, map[string]string, error) {
	enriched := cloneMeta(metadata)
	if utf8.Valid(data) {
		enriched["encoding"] = "utf-8"
		return string(data), enriched, nil
	}

	// Latin-1 maps every byte to the code point of the same value.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	enriched["encoding"] = "latin-1"
	return string(runes), enriched, nil
}

var (
	frontMatterPattern = regexp.MustCompile(`(?s)^---\s*\n.*?\n---\s*\n`)
	titlePattern       = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// MarkdownParser handles .md and .markdown files.
type MarkdownParser struct{}

// Parse strips YAML front matter and lifts the first top-level heading
// into the title metadata.
func (MarkdownParser) Parse(_ string, data []byte, metadata map[string]string) (string, map[string]string, error) {
	text := frontMatterPattern.ReplaceAllString(string(data), "")

	enriched := cloneMeta(metadata)
	if m := titlePattern.FindStringSubmatch(text); m != nil {
		enriched["title"] = strings.TrimSpace(m[1])
	}
	return text, enriched, nil
}

// HTMLParser extracts readable text from .html and .htm files.
type HTMLParser struct{}

// Parse strips script, style, and chrome elements, keeps headings as
// markdown-style markers so the chunker sees document structure, and
// lifts the page title into metadata.
func (HTMLParser) Parse(name string, data []byte, metadata map[string]string) (string, map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return "", nil, errors.New(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("parse html %s: %v", name, err), err)
	}

	doc.Find("script, style, nav, footer, header").Remove()

	enriched := cloneMeta(metadata)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		enriched["title"] = title
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		tag := goquery.NodeName(sel)
		if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
			level := int(tag[1] - '0')
			lines = append(lines, strings.Repeat("#", level)+" "+text)
		} else {
			lines = append(lines, text)
		}
		lines = append(lines, "")
	})

	return strings.Join(lines, "\n"), enriched, nil
}

func cloneMeta(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
