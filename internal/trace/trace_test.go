package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanRecording(t *testing.T) {
	tc := New()

	done := tc.StartSpan("retrieval")
	time.Sleep(5 * time.Millisecond)
	done(StatusOK)

	spans := tc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "retrieval", spans[0].Name)
	assert.Equal(t, StatusOK, spans[0].Status)
	assert.GreaterOrEqual(t, spans[0].DurationMS, 4.0)
	assert.GreaterOrEqual(t, spans[0].StartMS, 0.0)
}

func TestSpansOrderedByStart(t *testing.T) {
	tc := New()

	first := tc.StartSpan("first")
	first(StatusOK)
	second := tc.StartSpan("second")
	second(StatusError)

	spans := tc.Spans()
	require.Len(t, spans, 2)
	assert.LessOrEqual(t, spans[0].StartMS, spans[1].StartMS)
	assert.Equal(t, StatusError, spans[1].Status)
}

func TestSkippedSpan(t *testing.T) {
	tc := New()
	tc.Skip("self_consistency")

	spans := tc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, StatusSkipped, spans[0].Status)
	assert.Equal(t, 0.0, spans[0].DurationMS)
}

func TestToTrace(t *testing.T) {
	tc := New()
	done := tc.StartSpan("generation")
	done(StatusOK)

	trace := tc.ToTrace("what is x", 0.72, 0.66, "answer", []string{"FALLBACK_USED"})

	assert.Equal(t, tc.ID(), trace.ID)
	assert.NotEmpty(t, trace.ID)
	assert.Equal(t, "what is x", trace.Query)
	assert.Equal(t, 0.72, trace.RQScore)
	assert.Equal(t, 0.66, trace.Confidence)
	assert.Equal(t, "answer", trace.Decision)
	assert.Equal(t, []string{"FALLBACK_USED"}, trace.ReasonCodes)
	assert.Len(t, trace.Spans, 1)
	assert.Greater(t, trace.LatencyMS, 0.0)
	assert.False(t, trace.Timestamp.IsZero())
}

func TestUniqueTraceIDs(t *testing.T) {
	assert.NotEqual(t, New().ID(), New().ID())
}
