package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/search"
)

// NeutralSelfConsistency is the fallback when the regeneration fails.
const NeutralSelfConsistency = 0.5

// selfConsistencyTemperature pins the regeneration to its most likely
// output so the comparison measures the model, not sampling noise.
const selfConsistencyTemperature = 0.0

const selfConsistencyPrompt = `Answer the following question briefly and directly based on the evidence.

Question: %s

Evidence:
%s

Provide a concise answer (1-3 sentences).`

// SelfConsistencyChecker regenerates a brief answer and measures how much
// it agrees with the original.
type SelfConsistencyChecker struct {
	llm    llm.LLM
	logger *slog.Logger
}

// NewSelfConsistencyChecker wires the checker to its model.
func NewSelfConsistencyChecker(model llm.LLM, logger *slog.Logger) *SelfConsistencyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelfConsistencyChecker{llm: model, logger: logger}
}

// Check returns a text similarity in [0,1] between the original answer and
// a fresh brief answer to the same question. Failure degrades to neutral.
func (c *SelfConsistencyChecker) Check(ctx context.Context, query string, evidence []search.Candidate, originalAnswer string) float64 {
	prompt := fmt.Sprintf(selfConsistencyPrompt, query, gen.EvidenceBlock(evidence))

	brief, err := c.llm.Generate(ctx, llm.Request{Prompt: prompt, Temperature: selfConsistencyTemperature})
	if err != nil {
		c.logger.Warn("self-consistency check failed", slog.String("error", err.Error()))
		return NeutralSelfConsistency
	}

	similarity := textSimilarity(originalAnswer, brief)
	c.logger.Info("self-consistency", slog.Float64("score", similarity))
	return similarity
}

// textSimilarity is the matched-character ratio 2M/T over a character
// diff of the lowercased, trimmed answers.
func textSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len(d.Text)
		}
	}
	return clamp01(2.0 * float64(matched) / float64(len(a)+len(b)))
}
