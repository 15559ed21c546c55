package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/llm"
)

func TestDecomposer_SplitsComplexQuery(t *testing.T) {
	stub := llm.NewStub(`{
		"sub_questions": ["What is mitosis?", "What is meiosis?"],
		"synthesis_instruction": "Contrast the two processes."
	}`)
	d := NewDecomposer(stub, nil)

	got := d.Decompose(context.Background(), "compare mitosis and meiosis")

	assert.Equal(t, "compare mitosis and meiosis", got.Original)
	assert.Equal(t, []string{"What is mitosis?", "What is meiosis?"}, got.SubQuestions)
	assert.Equal(t, "Contrast the two processes.", got.SynthesisInstruction)
}

func TestDecomposer_CapsSubQuestions(t *testing.T) {
	subs := ""
	for i := 0; i < 8; i++ {
		if i > 0 {
			subs += ","
		}
		subs += fmt.Sprintf(`"q%d"`, i)
	}
	stub := llm.NewStub(`{"sub_questions": [` + subs + `], "synthesis_instruction": "x"}`)
	d := NewDecomposer(stub, nil)

	got := d.Decompose(context.Background(), "huge question")
	assert.Len(t, got.SubQuestions, MaxSubQuestions)
}

func TestDecomposer_LLMFailureFallsBackToOriginal(t *testing.T) {
	stub := llm.NewStub()
	stub.Err = fmt.Errorf("provider down")
	d := NewDecomposer(stub, nil)

	got := d.Decompose(context.Background(), "what is glucose")
	require.Equal(t, []string{"what is glucose"}, got.SubQuestions)
	assert.Empty(t, got.SynthesisInstruction)
}

func TestDecomposer_EmptySubQuestionsFallsBack(t *testing.T) {
	stub := llm.NewStub(`{"sub_questions": [], "synthesis_instruction": ""}`)
	d := NewDecomposer(stub, nil)

	got := d.Decompose(context.Background(), "what is glucose")
	assert.Equal(t, []string{"what is glucose"}, got.SubQuestions)
}
