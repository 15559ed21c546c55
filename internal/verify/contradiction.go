package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/search"
)

// maxConflictPassages bounds the doc-vs-doc comparison to the top chunks.
const maxConflictPassages = 5

const docConflictPrompt = `Analyze the following passages for contradictions.

%s

Identify any factual contradictions between the passages.
Return a JSON object:
- "contradictions": list of {"passage_a": int, "passage_b": int, "description": str}
- "contradiction_rate": float between 0.0 (no contradictions) and 1.0 (many contradictions)`

const answerConflictPrompt = `Does the following answer contradict any of the evidence?

Answer: %s

Evidence:
%s

Return a JSON object:
- "contradictions": list of {"claim": str, "evidence_num": int, "description": str}
- "contradiction_rate": float between 0.0 and 1.0`

// DocConflict is one contradiction between two evidence passages.
type DocConflict struct {
	PassageA    int    `json:"passage_a"`
	PassageB    int    `json:"passage_b"`
	Description string `json:"description"`
}

type docConflictResponse struct {
	Contradictions    []DocConflict `json:"contradictions"`
	ContradictionRate float64       `json:"contradiction_rate"`
}

type answerConflictResponse struct {
	Contradictions    []struct {
		Claim       string `json:"claim"`
		EvidenceNum int    `json:"evidence_num"`
		Description string `json:"description"`
	} `json:"contradictions"`
	ContradictionRate float64 `json:"contradiction_rate"`
}

// ContradictionDetector finds conflicts within the evidence and between the
// answer and the evidence.
type ContradictionDetector struct {
	llm    llm.LLM
	logger *slog.Logger
}

// NewContradictionDetector wires the detector to its judge model.
func NewContradictionDetector(model llm.LLM, logger *slog.Logger) *ContradictionDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContradictionDetector{llm: model, logger: logger}
}

// DetectDocConflicts looks for factual contradictions among the top
// evidence passages. Fewer than two passages cannot conflict; a failed
// check returns no conflicts.
func (d *ContradictionDetector) DetectDocConflicts(ctx context.Context, evidence []search.Candidate) []DocConflict {
	if len(evidence) < 2 {
		return nil
	}

	n := len(evidence)
	if n > maxConflictPassages {
		n = maxConflictPassages
	}
	passages := make([]string, n)
	for i := 0; i < n; i++ {
		passages[i] = fmt.Sprintf("Passage %d: %s", i+1, evidence[i].Chunk.Text)
	}

	var resp docConflictResponse
	err := d.llm.GenerateJSON(ctx, llm.Request{
		Prompt: fmt.Sprintf(docConflictPrompt, strings.Join(passages, "\n\n")),
	}, &resp)
	if err != nil {
		d.logger.Warn("doc conflict detection failed", slog.String("error", err.Error()))
		return nil
	}
	return resp.Contradictions
}

// DetectAnswerConflicts returns the rate in [0,1] at which the answer
// contradicts its evidence. A failed check degrades to 0.0 so confidence
// stays unaffected.
func (d *ContradictionDetector) DetectAnswerConflicts(ctx context.Context, answer string, evidence []search.Candidate) float64 {
	prompt := fmt.Sprintf(answerConflictPrompt, answer, gen.EvidenceBlock(evidence))

	var resp answerConflictResponse
	if err := d.llm.GenerateJSON(ctx, llm.Request{Prompt: prompt}, &resp); err != nil {
		d.logger.Warn("answer conflict detection failed", slog.String("error", err.Error()))
		return 0.0
	}

	rate := clamp01(resp.ContradictionRate)
	d.logger.Info("answer contradiction rate", slog.Float64("rate", rate))
	return rate
}
