package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits",
			input: "Photosynthesis Converts Light",
			want:  []string{"photosynthesis", "converts", "light"},
		},
		{
			name:  "strips punctuation",
			input: "carbon-dioxide, water; glucose!",
			want:  []string{"carbon", "dioxide", "water", "glucose"},
		},
		{
			name:  "drops stopwords",
			input: "the cat is on the mat",
			want:  []string{"cat", "mat"},
		},
		{
			name:  "drops single characters",
			input: "a b c vitamin d levels",
			want:  []string{"vitamin", "levels"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "only stopwords",
			input: "the and of to",
			want:  nil,
		},
		{
			name:  "keeps digits and underscores",
			input: "model_v2 released in 2024",
			want:  []string{"model_v2", "released", "2024"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// Tokenize must be idempotent: running it over its own joined output
// changes nothing.
func TestTokenize_Idempotent(t *testing.T) {
	first := Tokenize("The Mitochondria is the Power-House of the cell!")
	joined := ""
	for i, tok := range first {
		if i > 0 {
			joined += " "
		}
		joined += tok
	}
	assert.Equal(t, first, Tokenize(joined))
}
