package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundcheck-ai/groundcheck/internal/config"
)

func TestConfidenceBlend(t *testing.T) {
	calc := NewConfidenceCalculator(config.DefaultConfig().Scoring)

	// 0.50*0.8 + 0.35*0.9 - 0.15*0.1
	assert.InDelta(t, 0.700, calc.Confidence(0.8, 0.9, 0.1), 1e-9)
}

func TestConfidencePerfectSignals(t *testing.T) {
	calc := NewConfidenceCalculator(config.DefaultConfig().Scoring)

	// No contradiction penalty leaves alpha+beta as the ceiling.
	assert.InDelta(t, 0.85, calc.Confidence(1.0, 1.0, 0.0), 1e-9)
}

func TestConfidenceClampedAtZero(t *testing.T) {
	calc := NewConfidenceCalculator(config.DefaultConfig().Scoring)

	assert.Equal(t, 0.0, calc.Confidence(0.0, 0.0, 1.0))
}

func TestConfidenceClampsInputs(t *testing.T) {
	calc := NewConfidenceCalculator(config.DefaultConfig().Scoring)

	// Out-of-range verifier output is clamped before blending.
	assert.InDelta(t, 0.85, calc.Confidence(1.5, 2.0, -1.0), 1e-9)
}

func TestConfidenceContradictionPenalty(t *testing.T) {
	calc := NewConfidenceCalculator(config.DefaultConfig().Scoring)

	clean := calc.Confidence(0.7, 0.8, 0.0)
	contradicted := calc.Confidence(0.7, 0.8, 0.6)
	assert.InDelta(t, 0.15*0.6, clean-contradicted, 1e-9)
}
