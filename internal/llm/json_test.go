package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rewriteList struct {
	Rewrites []string `json:"rewrites"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "clean json",
			raw:  `{"rewrites": ["a", "b"]}`,
			want: []string{"a", "b"},
		},
		{
			name: "json code fence",
			raw:  "Here you go:\n```json\n{\"rewrites\": [\"a\"]}\n```\nHope that helps!",
			want: []string{"a"},
		},
		{
			name: "bare code fence",
			raw:  "```\n{\"rewrites\": [\"x\", \"y\"]}\n```",
			want: []string{"x", "y"},
		},
		{
			name: "json embedded in prose",
			raw:  `Sure! The result is {"rewrites": ["q"]} as requested.`,
			want: []string{"q"},
		},
		{
			name: "leading and trailing whitespace",
			raw:  "\n\n  {\"rewrites\": []}  \n",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out rewriteList
			require.NoError(t, ExtractJSON(tt.raw, &out))
			assert.Equal(t, tt.want, out.Rewrites)
		})
	}
}

func TestExtractJSON_Arrays(t *testing.T) {
	var out []string
	require.NoError(t, ExtractJSON(`The phrasings: ["one", "two"] done.`, &out))
	assert.Equal(t, []string{"one", "two"}, out)
}

func TestExtractJSON_Failures(t *testing.T) {
	var out rewriteList
	assert.Error(t, ExtractJSON("", &out))
	assert.Error(t, ExtractJSON("no json here at all", &out))
	assert.Error(t, ExtractJSON(`{"rewrites": [truncated`, &out))
}
