package ingest

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Chunking defaults.
const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapPct     = 0.15

	// tokensPerChar approximates one token per four characters of text.
	tokensPerChar = 4
)

var (
	headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`[.!?]\s+`)
)

// StructureChunker splits text along document structure: headings first,
// then paragraphs, then sentences, only descending when a unit exceeds the
// token budget. Consecutive chunks share a trailing-word overlap.
type StructureChunker struct {
	maxTokens  int
	overlapPct float64
}

// NewStructureChunker builds a chunker; zero values take the defaults.
func NewStructureChunker(maxTokens int, overlapPct float64) *StructureChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	if overlapPct < 0 || overlapPct >= 1 {
		overlapPct = DefaultOverlapPct
	}
	return &StructureChunker{maxTokens: maxTokens, overlapPct: overlapPct}
}

type section struct {
	headingPath []string
	text        string
}

type rawChunk struct {
	text        string
	headingPath []string
}

// Chunk splits text into ordered chunks for docID. Each chunk records its
// heading path and estimated token count.
func (c *StructureChunker) Chunk(text, docID string, metadata map[string]string) []*store.Chunk {
	var raw []rawChunk
	for _, sec := range splitByHeadings(text) {
		raw = append(raw, c.chunkSection(sec)...)
	}

	chunks := make([]*store.Chunk, 0, len(raw))
	for i, rc := range raw {
		withOverlap := rc.text
		if i > 0 && c.overlapPct > 0 {
			if overlap := trailingOverlap(raw[i-1].text, c.overlapPct); overlap != "" {
				withOverlap = overlap + "\n" + rc.text
			}
		}
		if strings.TrimSpace(withOverlap) == "" {
			continue
		}

		meta := cloneMeta(metadata)
		if len(rc.headingPath) > 0 {
			meta["heading_path"] = strings.Join(rc.headingPath, " > ")
		}
		chunks = append(chunks, &store.Chunk{
			ID:         uuid.NewString(),
			DocID:      docID,
			Text:       withOverlap,
			Index:      i,
			Metadata:   meta,
			TokenCount: estimateTokens(withOverlap),
		})
	}
	return chunks
}

func (c *StructureChunker) chunkSection(sec section) []rawChunk {
	if estimateTokens(sec.text) <= c.maxTokens {
		return []rawChunk{{text: strings.TrimSpace(sec.text), headingPath: sec.headingPath}}
	}

	var out []rawChunk
	for _, para := range splitParagraphs(sec.text) {
		if estimateTokens(para) <= c.maxTokens {
			out = append(out, rawChunk{text: strings.TrimSpace(para), headingPath: sec.headingPath})
			continue
		}
		out = append(out, c.packSentences(para, sec.headingPath)...)
	}
	return out
}

// packSentences greedily fills the token budget with whole sentences. A
// single oversized sentence still becomes its own chunk.
func (c *StructureChunker) packSentences(para string, headingPath []string) []rawChunk {
	var out []rawChunk
	var buffer string
	for _, sent := range splitSentences(para) {
		candidate := sent
		if buffer != "" {
			candidate = buffer + " " + sent
		}
		if estimateTokens(candidate) <= c.maxTokens {
			buffer = candidate
			continue
		}
		if buffer != "" {
			out = append(out, rawChunk{text: strings.TrimSpace(buffer), headingPath: headingPath})
		}
		buffer = sent
	}
	if strings.TrimSpace(buffer) != "" {
		out = append(out, rawChunk{text: strings.TrimSpace(buffer), headingPath: headingPath})
	}
	return out
}

// splitByHeadings divides text at markdown headings, tracking the heading
// stack so each section knows its path. Heading-free text is one section.
func splitByHeadings(text string) []section {
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)
	var sections []section
	var stack []string
	last := 0

	for _, m := range matches {
		if m[0] > last {
			if body := text[last:m[0]]; strings.TrimSpace(body) != "" {
				sections = append(sections, section{headingPath: append([]string(nil), stack...), text: body})
			}
		}
		level := m[3] - m[2]
		title := strings.TrimSpace(text[m[4]:m[5]])
		if level-1 < len(stack) {
			stack = stack[:level-1]
		}
		stack = append(stack, title)
		last = m[1]
	}

	if rest := text[last:]; strings.TrimSpace(rest) != "" {
		sections = append(sections, section{headingPath: append([]string(nil), stack...), text: rest})
	}
	if len(sections) == 0 {
		sections = []section{{text: text}}
	}
	return sections
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	// Split points sit after terminal punctuation; the punctuation is
	// re-attached to the preceding sentence.
	var out []string
	rest := text
	for {
		loc := sentenceSplit.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if s := strings.TrimSpace(rest[:loc[0]+1]); s != "" {
			out = append(out, s)
		}
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		out = append(out, s)
	}
	return out
}

// trailingOverlap returns the last overlapPct of the previous chunk's
// words, at least one.
func trailingOverlap(prev string, overlapPct float64) string {
	words := strings.Fields(prev)
	if len(words) == 0 {
		return ""
	}
	n := int(float64(len(words)) * overlapPct)
	if n < 1 {
		n = 1
	}
	return strings.Join(words[len(words)-n:], " ")
}

func estimateTokens(text string) int {
	return len(text) / tokensPerChar
}
