package scoring

import (
	"math"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/search"
)

// Component floors below which a reason code is attached.
const (
	lowRelevance   = 0.4
	lowMargin      = 0.1
	lowCoverage    = 0.3
	lowConsistency = 0.3
)

// consistencyWindow is the number of top scores the dispersion component
// looks at.
const consistencyWindow = 5

const epsilon = 1e-8

// RQScorer computes the retrieval quality score: a weighted blend of
// relevance, winner margin, document coverage, and score consistency.
type RQScorer struct {
	wRelevance   float64
	wMargin      float64
	wCoverage    float64
	wConsistency float64
}

var _ search.Scorer = (*RQScorer)(nil)

// NewRQScorer builds a scorer from the configured component weights.
func NewRQScorer(cfg config.ScoringConfig) *RQScorer {
	return &RQScorer{
		wRelevance:   cfg.WRelevance,
		wMargin:      cfg.WMargin,
		wCoverage:    cfg.WCoverage,
		wConsistency: cfg.WConsistency,
	}
}

// Score returns the retrieval quality in [0,1] and the reason codes for any
// weak components. An empty candidate list scores zero with NO_RESULTS.
func (s *RQScorer) Score(candidates []search.Candidate) (float64, []string) {
	if len(candidates) == 0 {
		return 0.0, []string{ReasonNoResults}
	}

	relevance := relevanceComponent(candidates[0].Score)
	margin := marginComponent(candidates)
	coverage := coverageComponent(candidates)
	consistency := consistencyComponent(candidates)

	rq := s.wRelevance*relevance +
		s.wMargin*margin +
		s.wCoverage*coverage +
		s.wConsistency*consistency
	rq = clamp01(rq)

	var reasons []string
	if relevance < lowRelevance {
		reasons = append(reasons, ReasonLowRelevance)
	}
	if margin < lowMargin {
		reasons = append(reasons, ReasonLowMargin)
	}
	if coverage < lowCoverage {
		reasons = append(reasons, ReasonLowCoverage)
	}
	if consistency < lowConsistency {
		reasons = append(reasons, ReasonLowConsistency)
	}
	return rq, reasons
}

// relevanceComponent squashes the top score through a sigmoid centered at
// 0.5 so mid-range scores spread out and extremes saturate.
func relevanceComponent(top float64) float64 {
	return 1.0 / (1.0 + math.Exp(-10.0*(top-0.5)))
}

// marginComponent measures how decisively the winner beats the runner-up.
// A lone candidate has nothing to lose to, so it gets full margin.
func marginComponent(candidates []search.Candidate) float64 {
	if len(candidates) < 2 {
		return 1.0
	}
	top, second := candidates[0].Score, candidates[1].Score
	return clamp01((top - second) / (math.Abs(top) + epsilon))
}

// coverageComponent is the fraction of candidates drawn from distinct
// documents.
func coverageComponent(candidates []search.Candidate) float64 {
	docs := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		docs[c.Chunk.DocID] = struct{}{}
	}
	return clamp01(float64(len(docs)) / float64(len(candidates)))
}

// consistencyComponent penalizes high dispersion among the top scores.
func consistencyComponent(candidates []search.Candidate) float64 {
	n := len(candidates)
	if n < 2 {
		return 1.0
	}
	if n > consistencyWindow {
		n = consistencyWindow
	}

	mean := 0.0
	for i := 0; i < n; i++ {
		mean += candidates[i].Score
	}
	mean /= float64(n)

	variance := 0.0
	for i := 0; i < n; i++ {
		d := candidates[i].Score - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(n))

	return clamp01(1.0 - std/(mean+epsilon))
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
