package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groundcheck-ai/groundcheck/internal/llm"
)

// MaxSubQuestions caps how many sub-questions a decomposition may produce.
const MaxSubQuestions = 5

const decompositionPrompt = `Break the following complex question into simpler, independent sub-questions that can be answered individually.
Return a JSON object with:
- "sub_questions": list of simple questions (max 5)
- "synthesis_instruction": how to combine the sub-answers into a final answer

If the question is already simple, return it as the only sub-question.

Question: %s`

// Decomposed is a decomposition plan for a complex question.
type Decomposed struct {
	Original             string
	SubQuestions         []string
	SynthesisInstruction string
}

// Decomposer splits complex questions using the LLM.
type Decomposer struct {
	llm    llm.LLM
	logger *slog.Logger
}

// NewDecomposer creates a decomposer.
func NewDecomposer(model llm.LLM, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{llm: model, logger: logger}
}

type decompositionResponse struct {
	SubQuestions         []string `json:"sub_questions"`
	SynthesisInstruction string   `json:"synthesis_instruction"`
}

// Decompose asks the LLM for a plan. Failure is never fatal: the original
// query becomes the single sub-question.
func (d *Decomposer) Decompose(ctx context.Context, query string) Decomposed {
	req := llm.Request{
		Prompt:      fmt.Sprintf(decompositionPrompt, query),
		Temperature: 0.0,
	}

	var resp decompositionResponse
	if err := d.llm.GenerateJSON(ctx, req, &resp); err != nil {
		d.logger.Warn("query decomposition failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return Decomposed{Original: query, SubQuestions: []string{query}}
	}

	subs := resp.SubQuestions
	if len(subs) > MaxSubQuestions {
		subs = subs[:MaxSubQuestions]
	}
	if len(subs) == 0 {
		subs = []string{query}
	}

	d.logger.Debug("query decomposed",
		slog.String("original", query),
		slog.Int("sub_questions", len(subs)))

	return Decomposed{
		Original:             query,
		SubQuestions:         subs,
		SynthesisInstruction: resp.SynthesisInstruction,
	}
}
