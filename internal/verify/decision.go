package verify

import (
	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/scoring"
)

// Verification decisions.
const (
	DecisionPass    = "pass"
	DecisionWarn    = "warn"
	DecisionAbstain = "abstain"
)

// selfInconsistencyFloor marks a regenerated answer that disagrees too much
// with the original.
const selfInconsistencyFloor = 0.4

// Result carries the verification signals plus the combined decision.
type Result struct {
	Groundedness      float64
	ContradictionRate float64

	// SelfConsistency is nil when the check was skipped for budget.
	SelfConsistency *float64

	Decision    string
	ReasonCodes []string
}

// DecisionMaker applies the configured thresholds to the verification
// signals. Pass thresholds tighten in strict mode; warn thresholds do not.
type DecisionMaker struct {
	cfg config.VerifyConfig
}

// NewDecisionMaker builds the decision maker from configured thresholds.
func NewDecisionMaker(cfg config.VerifyConfig) *DecisionMaker {
	return &DecisionMaker{cfg: cfg}
}

// Decide combines the signals into pass, warn, or abstain, with reason
// codes for each weak signal.
func (m *DecisionMaker) Decide(groundedness, contradictionRate float64, selfConsistency *float64, mode string) Result {
	groundPass := m.cfg.GroundednessPass
	contraPass := m.cfg.ContradictionPass
	if mode == gen.ModeStrict {
		groundPass = m.cfg.StrictGroundednessPass
		contraPass = m.cfg.StrictContradictionPass
	}

	var reasons []string
	if groundedness < m.cfg.GroundednessWarn {
		reasons = append(reasons, scoring.ReasonLowGroundedness)
	}
	if contradictionRate > m.cfg.ContradictionWarn {
		reasons = append(reasons, scoring.ReasonContradiction)
	}
	if selfConsistency != nil && *selfConsistency < selfInconsistencyFloor {
		reasons = append(reasons, scoring.ReasonSelfInconsistent)
	}

	var decision string
	switch {
	case groundedness >= groundPass && contradictionRate <= contraPass:
		decision = DecisionPass
	case groundedness >= m.cfg.GroundednessWarn && contradictionRate <= m.cfg.ContradictionWarn:
		decision = DecisionWarn
	default:
		decision = DecisionAbstain
	}

	return Result{
		Groundedness:      groundedness,
		ContradictionRate: contradictionRate,
		SelfConsistency:   selfConsistency,
		Decision:          decision,
		ReasonCodes:       reasons,
	}
}
