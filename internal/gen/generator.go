package gen

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/query"
	"github.com/groundcheck-ai/groundcheck/internal/search"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Generation modes. Strict mode swaps in the tighter system prompt.
const (
	ModeNormal = "normal"
	ModeStrict = "strict"
)

// citationSnippetLen bounds the text carried in each cited span.
const citationSnippetLen = 200

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// CitedSpan points a citation marker back at its source chunk.
type CitedSpan struct {
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
}

// Result is a generated answer with its resolved citations.
type Result struct {
	Answer      string
	CitedChunks []*store.Chunk
	CitedSpans  []CitedSpan
}

// Generator turns a query plus evidence into a cited answer.
type Generator struct {
	llm    llm.LLM
	logger *slog.Logger
}

// NewGenerator wires the generator to its model.
func NewGenerator(model llm.LLM, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: model, logger: logger}
}

// Generate produces a complete answer. Citation markers in the answer are
// resolved against the evidence numbering; out-of-range markers are
// ignored.
func (g *Generator) Generate(ctx context.Context, q string, evidence []search.Candidate, decomp *query.Decomposed, mode string) (*Result, error) {
	prompt, system := g.buildPrompt(q, evidence, decomp, mode)

	answer, err := g.llm.Generate(ctx, llm.Request{Prompt: prompt, System: system})
	if err != nil {
		return nil, errors.GenerationError(err)
	}

	result := resolveCitations(answer, evidence)
	g.logger.Info("generated answer",
		slog.Int("query_len", len(q)),
		slog.Int("answer_len", len(answer)),
		slog.Int("citations", len(result.CitedChunks)))
	return result, nil
}

// GenerateStream streams answer fragments through onChunk and returns the
// terminal result with citations resolved from the full text.
func (g *Generator) GenerateStream(ctx context.Context, q string, evidence []search.Candidate, decomp *query.Decomposed, mode string, onChunk func(text string) error) (*Result, error) {
	prompt, system := g.buildPrompt(q, evidence, decomp, mode)

	var full []byte
	err := g.llm.GenerateStream(ctx, llm.Request{Prompt: prompt, System: system}, func(text string) error {
		full = append(full, text...)
		return onChunk(text)
	})
	if err != nil {
		return nil, errors.GenerationError(err)
	}

	result := resolveCitations(string(full), evidence)
	g.logger.Info("generated answer",
		slog.Int("query_len", len(q)),
		slog.Int("answer_len", len(full)),
		slog.Int("citations", len(result.CitedChunks)))
	return result, nil
}

func (g *Generator) buildPrompt(q string, evidence []search.Candidate, decomp *query.Decomposed, mode string) (prompt, system string) {
	var decompContext string
	if decomp != nil {
		decompContext = decompositionContext(decomp.SubQuestions, decomp.SynthesisInstruction)
	}

	prompt = fmt.Sprintf(answerPrompt, q, EvidenceBlock(evidence), decompContext)
	system = answerSystem
	if mode == ModeStrict {
		system = answerStrictSystem
	}
	return prompt, system
}

// resolveCitations extracts distinct [n] markers and maps them back to
// evidence chunks. Markers are 1-indexed; anything outside the evidence
// range is dropped.
func resolveCitations(answer string, evidence []search.Candidate) *Result {
	indices := make(map[int]struct{})
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		if idx, err := strconv.Atoi(m[1]); err == nil {
			indices[idx] = struct{}{}
		}
	}

	sorted := make([]int, 0, len(indices))
	for idx := range indices {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	result := &Result{Answer: answer}
	for _, idx := range sorted {
		if idx < 1 || idx > len(evidence) {
			continue
		}
		chunk := evidence[idx-1].Chunk
		snippet := chunk.Text
		if len(snippet) > citationSnippetLen {
			snippet = snippet[:citationSnippetLen]
		}
		result.CitedChunks = append(result.CitedChunks, chunk)
		result.CitedSpans = append(result.CitedSpans, CitedSpan{ChunkID: chunk.ID, Text: snippet})
	}
	return result
}
