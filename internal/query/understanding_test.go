package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Normalization(t *testing.T) {
	p := Process("  What   is\tphotosynthesis?  ")
	assert.Equal(t, "What is photosynthesis?", p.Normalized)
}

func TestProcess_NFKC(t *testing.T) {
	// Fullwidth characters fold to ASCII under NFKC.
	p := Process("ｗｈａｔ ｉｓ ＤＮＡ？")
	assert.Equal(t, "what is DNA?", p.Normalized)
}

func TestProcess_IntentClassification(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"compare mitosis and meiosis", IntentComparison},
		{"difference between RNA and DNA", IntentComparison},
		{"how to titrate an acid", IntentHowTo},
		{"what is cellular respiration", IntentFactual},
		{"explain the krebs cycle", IntentFactual},
		{"why do leaves change color", IntentCausal},
		{"list the noble gases", IntentList},
		{"photosynthesis in desert plants", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Process(tt.query).Intent)
		})
	}
}

func TestProcess_YearExtraction(t *testing.T) {
	p := Process("emissions targets between 2020 and 2030")
	assert.Equal(t, []string{"2020", "2030"}, p.Years)

	assert.Empty(t, Process("the 1990s housing market").Years)
}

func TestProcess_TimeFilter(t *testing.T) {
	p := Process("papers published after 2021")
	require.NotNil(t, p.TimeFilter)
	assert.Equal(t, "after", p.TimeFilter.Type)
	assert.Equal(t, "2021", p.TimeFilter.Value)

	assert.Nil(t, Process("general question with no dates").TimeFilter)
}

func TestProcess_LanguageFallback(t *testing.T) {
	assert.Equal(t, "en", Process("").Language)
	assert.Equal(t, "en", Process("What is the mitochondria of the cell?").Language)
}
