package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/search"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

func evidenceOf(texts ...string) []search.Candidate {
	out := make([]search.Candidate, len(texts))
	for i, text := range texts {
		out[i] = search.Candidate{Chunk: &store.Chunk{ID: "c", DocID: "d", Text: text}}
	}
	return out
}

func TestGroundednessScore(t *testing.T) {
	model := llm.NewStub(`{"score": 0.85, "unsupported_claims": []}`)
	checker := NewGroundednessChecker(model, nil)

	score := checker.Check(context.Background(), "the answer", evidenceOf("the evidence"))
	assert.Equal(t, 0.85, score)

	require.Len(t, model.Requests, 1)
	assert.Contains(t, model.Requests[0].Prompt, "Answer: the answer")
	assert.Contains(t, model.Requests[0].Prompt, "[1] the evidence")
}

func TestGroundednessClampsScore(t *testing.T) {
	model := llm.NewStub(`{"score": 1.7}`)
	checker := NewGroundednessChecker(model, nil)
	assert.Equal(t, 1.0, checker.Check(context.Background(), "a", evidenceOf("e")))
}

func TestGroundednessNeutralOnFailure(t *testing.T) {
	model := llm.NewStub()
	model.Err = assert.AnError
	checker := NewGroundednessChecker(model, nil)

	assert.Equal(t, NeutralGroundedness, checker.Check(context.Background(), "a", evidenceOf("e")))
}

func TestGroundednessRecoversFencedJSON(t *testing.T) {
	model := llm.NewStub("Here you go:\n```json\n{\"score\": 0.6}\n```")
	checker := NewGroundednessChecker(model, nil)
	assert.Equal(t, 0.6, checker.Check(context.Background(), "a", evidenceOf("e")))
}

func TestAnswerConflictRate(t *testing.T) {
	model := llm.NewStub(`{"contradictions": [{"claim": "x", "evidence_num": 1, "description": "conflicts"}], "contradiction_rate": 0.4}`)
	detector := NewContradictionDetector(model, nil)

	rate := detector.DetectAnswerConflicts(context.Background(), "the answer", evidenceOf("the evidence"))
	assert.Equal(t, 0.4, rate)
}

func TestAnswerConflictZeroOnFailure(t *testing.T) {
	model := llm.NewStub()
	model.Err = assert.AnError
	detector := NewContradictionDetector(model, nil)

	assert.Equal(t, 0.0, detector.DetectAnswerConflicts(context.Background(), "a", evidenceOf("e")))
}

func TestDocConflicts(t *testing.T) {
	model := llm.NewStub(`{"contradictions": [{"passage_a": 1, "passage_b": 2, "description": "dates disagree"}], "contradiction_rate": 0.5}`)
	detector := NewContradictionDetector(model, nil)

	conflicts := detector.DetectDocConflicts(context.Background(), evidenceOf("founded in 1990", "founded in 1995"))
	require.Len(t, conflicts, 1)
	assert.Equal(t, 1, conflicts[0].PassageA)
	assert.Equal(t, 2, conflicts[0].PassageB)
}

func TestDocConflictsNeedTwoPassages(t *testing.T) {
	model := llm.NewStub(`{"contradictions": []}`)
	detector := NewContradictionDetector(model, nil)

	assert.Nil(t, detector.DetectDocConflicts(context.Background(), evidenceOf("lone passage")))
	assert.Equal(t, 0, model.CallCount())
}

func TestDocConflictsCapsPassages(t *testing.T) {
	model := llm.NewStub(`{"contradictions": []}`)
	detector := NewContradictionDetector(model, nil)

	detector.DetectDocConflicts(context.Background(), evidenceOf("a", "b", "c", "d", "e", "f", "g"))
	require.Len(t, model.Requests, 1)
	assert.Contains(t, model.Requests[0].Prompt, "Passage 5:")
	assert.NotContains(t, model.Requests[0].Prompt, "Passage 6:")
}

func TestSelfConsistencyIdenticalAnswers(t *testing.T) {
	model := llm.NewStub("The answer is 42.")
	checker := NewSelfConsistencyChecker(model, nil)

	score := checker.Check(context.Background(), "q", evidenceOf("e"), "The answer is 42.")
	assert.Equal(t, 1.0, score)
}

func TestSelfConsistencyDivergentAnswers(t *testing.T) {
	model := llm.NewStub("Completely unrelated text about weather patterns.")
	checker := NewSelfConsistencyChecker(model, nil)

	score := checker.Check(context.Background(), "q", evidenceOf("e"), "The answer is 42.")
	assert.Less(t, score, 0.5)
}

func TestSelfConsistencyNeutralOnFailure(t *testing.T) {
	model := llm.NewStub()
	model.Err = assert.AnError
	checker := NewSelfConsistencyChecker(model, nil)

	assert.Equal(t, NeutralSelfConsistency, checker.Check(context.Background(), "q", evidenceOf("e"), "original"))
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, textSimilarity("", "something"))
	assert.Equal(t, 0.0, textSimilarity("something", "  "))
	assert.Equal(t, 1.0, textSimilarity("Same Text", "same text"))

	partial := textSimilarity("the aurora is caused by solar wind", "the aurora is caused by magnetic storms")
	assert.Greater(t, partial, 0.5)
	assert.Less(t, partial, 1.0)
}
