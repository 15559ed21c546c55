// Package gen produces cited answers from evidence chunks.
package gen

import (
	"fmt"
	"strings"

	"github.com/groundcheck-ai/groundcheck/internal/search"
)

// MaxEvidenceChunks caps how many chunks appear in a prompt's evidence
// block.
const MaxEvidenceChunks = 10

const answerSystem = `You are a precise, factual assistant. Answer questions using ONLY the provided evidence.
Rules:
- Cite evidence using [1], [2], etc. markers matching the evidence numbers.
- If the evidence doesn't contain enough information, say so clearly.
- Never make up information not present in the evidence.
- Be concise and direct.`

const answerStrictSystem = `You are a precise, factual assistant operating in STRICT mode.
Rules:
- ONLY state facts that are DIRECTLY and EXPLICITLY supported by the evidence.
- Cite every claim with [1], [2], etc.
- If ANY doubt exists about whether the evidence supports a claim, do NOT include it.
- If evidence is insufficient, state exactly what information is missing.
- Never infer, extrapolate, or generalize beyond the evidence.`

const answerPrompt = `Question: %s

Evidence:
%s

%s

Provide a clear, well-cited answer based on the evidence above.`

// EvidenceBlock numbers the first MaxEvidenceChunks chunks as "[n] text"
// paragraphs. The numbering is what citation markers refer back to.
func EvidenceBlock(evidence []search.Candidate) string {
	n := len(evidence)
	if n > MaxEvidenceChunks {
		n = MaxEvidenceChunks
	}
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = fmt.Sprintf("[%d] %s", i+1, evidence[i].Chunk.Text)
	}
	return strings.Join(lines, "\n\n")
}

// decompositionContext renders the sub-question plan for the generation
// prompt. A trivial decomposition renders as nothing.
func decompositionContext(subQuestions []string, synthesis string) string {
	if len(subQuestions) <= 1 {
		return ""
	}
	lines := []string{"Consider these aspects:"}
	for i, sq := range subQuestions {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, sq))
	}
	if synthesis != "" {
		lines = append(lines, fmt.Sprintf("\nSynthesis approach: %s", synthesis))
	}
	return strings.Join(lines, "\n")
}
