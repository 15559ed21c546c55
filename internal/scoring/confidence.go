package scoring

import (
	"github.com/groundcheck-ai/groundcheck/internal/config"
)

// ConfidenceCalculator blends retrieval quality with verification signals
// into the single confidence score the decision gate acts on.
type ConfidenceCalculator struct {
	alpha float64 // retrieval quality weight
	beta  float64 // groundedness weight
	gamma float64 // contradiction penalty weight
}

// NewConfidenceCalculator builds the calculator from configured weights.
func NewConfidenceCalculator(cfg config.ScoringConfig) *ConfidenceCalculator {
	return &ConfidenceCalculator{alpha: cfg.Alpha, beta: cfg.Beta, gamma: cfg.Gamma}
}

// Confidence returns clamp(alpha*rq + beta*groundedness - gamma*contradiction)
// in [0,1]. All three inputs are expected in [0,1]; out-of-range inputs are
// clamped first so a misbehaving verifier cannot push confidence outside the
// scale.
func (c *ConfidenceCalculator) Confidence(rq, groundedness, contradiction float64) float64 {
	rq = clamp01(rq)
	groundedness = clamp01(groundedness)
	contradiction = clamp01(contradiction)
	return clamp01(c.alpha*rq + c.beta*groundedness - c.gamma*contradiction)
}
