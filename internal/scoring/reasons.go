// Package scoring computes retrieval quality and final answer confidence.
// Both scores live in [0,1] and carry machine-readable reason codes drawn
// from a closed vocabulary.
package scoring

// Reason codes explaining low scores and pipeline decisions. The set is
// closed: clients match on these strings.
const (
	ReasonNoResults       = "NO_RESULTS"
	ReasonLowRelevance    = "LOW_RELEVANCE"
	ReasonLowMargin       = "LOW_MARGIN"
	ReasonLowCoverage     = "LOW_COVERAGE"
	ReasonLowConsistency  = "LOW_CONSISTENCY"
	ReasonFallbackUsed    = "FALLBACK_USED"
	ReasonFallbackFailed  = "FALLBACK_FAILED"
	ReasonLowGroundedness = "LOW_GROUNDEDNESS"
	ReasonContradiction   = "CONTRADICTION_FOUND"
	ReasonSelfInconsistent = "SELF_INCONSISTENCY"
)
