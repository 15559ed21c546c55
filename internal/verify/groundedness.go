// Package verify checks generated answers against their evidence:
// groundedness, contradiction, optional self-consistency, and the
// verification decision that combines them.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/search"
)

// NeutralGroundedness is returned when the check itself fails. It neither
// boosts nor sinks confidence.
const NeutralGroundedness = 0.5

const groundednessPrompt = `Evaluate how well the following answer is grounded in the provided evidence.

Answer: %s

Evidence:
%s

For each claim in the answer, determine if it is directly supported by the evidence.
Return a JSON object:
- "score": float between 0.0 (not grounded) and 1.0 (fully grounded)
- "unsupported_claims": list of claims not supported by evidence`

type groundednessResponse struct {
	Score             float64  `json:"score"`
	UnsupportedClaims []string `json:"unsupported_claims"`
}

// GroundednessChecker scores how well an answer's claims are supported by
// the evidence it cites.
type GroundednessChecker struct {
	llm    llm.LLM
	logger *slog.Logger
}

// NewGroundednessChecker wires the checker to its judge model.
func NewGroundednessChecker(model llm.LLM, logger *slog.Logger) *GroundednessChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroundednessChecker{llm: model, logger: logger}
}

// Check returns a groundedness score in [0,1]. A failed check degrades to
// the neutral score rather than erroring: verification must never take the
// pipeline down.
func (c *GroundednessChecker) Check(ctx context.Context, answer string, evidence []search.Candidate) float64 {
	prompt := fmt.Sprintf(groundednessPrompt, answer, gen.EvidenceBlock(evidence))

	var resp groundednessResponse
	if err := c.llm.GenerateJSON(ctx, llm.Request{Prompt: prompt}, &resp); err != nil {
		c.logger.Warn("groundedness check failed", slog.String("error", err.Error()))
		return NeutralGroundedness
	}

	score := clamp01(resp.Score)
	if len(resp.UnsupportedClaims) > 0 {
		c.logger.Debug("unsupported claims", slog.Int("count", len(resp.UnsupportedClaims)))
	}
	c.logger.Info("groundedness", slog.Float64("score", score))
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
