package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/search"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

func defaultRQScorer() *RQScorer {
	return NewRQScorer(config.DefaultConfig().Scoring)
}

// cands builds a candidate list from parallel score and doc-id slices.
func cands(scores []float64, docIDs []string) []search.Candidate {
	out := make([]search.Candidate, len(scores))
	for i, s := range scores {
		out[i] = search.Candidate{
			Chunk: &store.Chunk{ID: fmt.Sprintf("c%d", i), DocID: docIDs[i]},
			Score: s,
		}
	}
	return out
}

func TestRQEmptyCandidates(t *testing.T) {
	rq, reasons := defaultRQScorer().Score(nil)
	assert.Equal(t, 0.0, rq)
	assert.Equal(t, []string{ReasonNoResults}, reasons)
}

func TestRQSingleCandidate(t *testing.T) {
	// Margin, coverage, and consistency all default to 1.0 for a lone
	// candidate, so only relevance varies.
	rq, reasons := defaultRQScorer().Score(cands([]float64{0.9}, []string{"d1"}))

	// 0.45*sigmoid(4) + 0.20 + 0.15 + 0.20
	assert.InDelta(t, 0.991906, rq, 1e-5)
	assert.Empty(t, reasons)
}

func TestRQBlendedComponents(t *testing.T) {
	rq, reasons := defaultRQScorer().Score(cands(
		[]float64{0.9, 0.6, 0.5},
		[]string{"d1", "d2", "d1"},
	))

	// relevance=0.982014, margin=0.333333, coverage=2/3,
	// consistency=0.745049 under the default weights.
	assert.InDelta(t, 0.757583, rq, 1e-5)
	assert.Empty(t, reasons)
}

func TestRQClampedToUnitInterval(t *testing.T) {
	rq, _ := defaultRQScorer().Score(cands([]float64{50.0}, []string{"d1"}))
	assert.LessOrEqual(t, rq, 1.0)
	assert.GreaterOrEqual(t, rq, 0.0)
}

func TestRQReasonCodes(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		docs   []string
		want   string
	}{
		{
			name:   "low relevance",
			scores: []float64{0.1},
			docs:   []string{"d1"},
			want:   ReasonLowRelevance,
		},
		{
			name:   "low margin",
			scores: []float64{0.5001, 0.5},
			docs:   []string{"d1", "d2"},
			want:   ReasonLowMargin,
		},
		{
			name:   "low coverage",
			scores: []float64{0.9, 0.6, 0.58, 0.57, 0.56},
			docs:   []string{"d1", "d1", "d1", "d1", "d1"},
			want:   ReasonLowCoverage,
		},
		{
			name:   "low consistency",
			scores: []float64{0.9, 0.05},
			docs:   []string{"d1", "d2"},
			want:   ReasonLowConsistency,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reasons := defaultRQScorer().Score(cands(tt.scores, tt.docs))
			assert.Contains(t, reasons, tt.want)
		})
	}
}

func TestRQConsistencyWindowIgnoresTail(t *testing.T) {
	// The dispersion window only covers the top five; a wild score at
	// position six must not change the result.
	top := []float64{0.8, 0.79, 0.78, 0.77, 0.76}
	docs := []string{"d1", "d2", "d3", "d4", "d5"}

	base, _ := defaultRQScorer().Score(cands(top, docs))
	extended, _ := defaultRQScorer().Score(cands(
		append(append([]float64{}, top...), 0.0001),
		append(append([]string{}, docs...), "d6"),
	))

	// Coverage stays at 1.0 in both lists, so only the window matters.
	assert.InDelta(t, base, extended, 1e-9)
}
