package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/llm"
)

// scriptedScorer returns a fixed sequence of quality scores; the last one
// repeats.
type scriptedScorer struct {
	scores []float64
	calls  int
}

func (s *scriptedScorer) Score(candidates []Candidate) (float64, []string) {
	i := s.calls
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	}
	s.calls++
	score := s.scores[i]
	if score < 0.4 {
		return score, []string{"LOW_RELEVANCE"}
	}
	return score, nil
}

func newFallbackManager(t *testing.T, scorer Scorer, model llm.LLM) *FallbackManager {
	t.Helper()
	retriever, _ := newTestCorpus(t, testChunks())
	cfg := FallbackConfig{
		ExpandK:          100,
		RerankTopN:       10,
		ProceedThreshold: 0.55,
		AbstainThreshold: 0.25,
	}
	return NewFallbackManager(retriever, NoopReranker{}, scorer, model, cfg, nil)
}

func TestFallbackExpansionShortCircuits(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.8}}
	model := llm.NewStub(`{"rewrites": ["unused"]}`)
	mgr := newFallbackManager(t, scorer, model)

	result, err := mgr.Retrieve(context.Background(), "aurora borealis cause")
	require.NoError(t, err)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.8, result.RQ)
	assert.NotEmpty(t, result.Candidates)
	assert.Equal(t, 0, model.CallCount(), "expansion success must skip rewrites")
}

func TestFallbackRewritesKeepBest(t *testing.T) {
	// Expansion scores 0.30; the second rewrite scores best at 0.50.
	scorer := &scriptedScorer{scores: []float64{0.30, 0.20, 0.50, 0.10}}
	model := llm.NewStub(`{"rewrites": ["solar wind aurora", "charged particles atmosphere", "northern lights physics"]}`)
	mgr := newFallbackManager(t, scorer, model)

	result, err := mgr.Retrieve(context.Background(), "aurora")
	require.NoError(t, err)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.50, result.RQ)
	assert.Equal(t, 4, scorer.calls, "expansion plus three rewrites")
}

func TestFallbackAbstainsBelowFloor(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.10}}
	model := llm.NewStub(`{"rewrites": ["still no luck", "nothing here"]}`)
	mgr := newFallbackManager(t, scorer, model)

	result, err := mgr.Retrieve(context.Background(), "completely unrelated topic")
	require.NoError(t, err)

	assert.Equal(t, DecisionAbstain, result.Decision)
	assert.Equal(t, 0.10, result.RQ)
	assert.Contains(t, result.ReasonCodes, "LOW_RELEVANCE")
}

func TestFallbackRewriteFailureUsesExpansion(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.30}}
	model := llm.NewStub()
	model.Err = assert.AnError
	mgr := newFallbackManager(t, scorer, model)

	result, err := mgr.Retrieve(context.Background(), "aurora")
	require.NoError(t, err, "rewrite failure degrades, never errors")

	// Expansion result stands; 0.30 clears the abstain floor.
	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.30, result.RQ)
	assert.Equal(t, 1, scorer.calls)
}

func TestFallbackCapsRewrites(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.30, 0.31, 0.32, 0.33, 0.34, 0.35}}
	model := llm.NewStub(`{"rewrites": ["one", "two", "three", "four", "five"]}`)
	mgr := newFallbackManager(t, scorer, model)

	_, err := mgr.Retrieve(context.Background(), "aurora")
	require.NoError(t, err)

	assert.Equal(t, 1+MaxRewrites, scorer.calls)
}
