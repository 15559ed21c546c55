// Package trace records per-query timing as named spans and materializes
// them into persistent trace records.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Span statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Context accumulates spans for one query. Span offsets come from the
// monotonic clock so wall-clock jumps cannot produce negative durations.
// Safe for concurrent use.
type Context struct {
	id    string
	epoch time.Time // wall clock, for the trace timestamp
	start time.Time // monotonic reference for span offsets

	mu    sync.Mutex
	spans []store.Span
}

// New starts a trace with a fresh id.
func New() *Context {
	now := time.Now()
	return &Context{id: uuid.NewString(), epoch: now, start: now}
}

// ID returns the trace id.
func (c *Context) ID() string { return c.id }

// ElapsedMS is the time since the trace started.
func (c *Context) ElapsedMS() float64 {
	return float64(time.Since(c.start)) / float64(time.Millisecond)
}

// StartSpan begins a timed stage. The returned function records the span
// with the given terminal status.
func (c *Context) StartSpan(name string) func(status string) {
	startMS := c.ElapsedMS()
	return func(status string) {
		endMS := c.ElapsedMS()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.spans = append(c.spans, store.Span{
			Name:       name,
			StartMS:    startMS,
			DurationMS: endMS - startMS,
			Status:     status,
		})
	}
}

// Skip records a zero-duration span for a stage that did not run.
func (c *Context) Skip(name string) {
	offset := c.ElapsedMS()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, store.Span{Name: name, StartMS: offset, Status: StatusSkipped})
}

// Spans returns a copy of the spans recorded so far.
func (c *Context) Spans() []store.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Span, len(c.spans))
	copy(out, c.spans)
	return out
}

// ToTrace materializes the persistent record for this query.
func (c *Context) ToTrace(query string, rqScore, confidence float64, decision string, reasonCodes []string) *store.Trace {
	return &store.Trace{
		ID:          c.id,
		Query:       query,
		Timestamp:   c.epoch.UTC(),
		LatencyMS:   c.ElapsedMS(),
		RQScore:     rqScore,
		Confidence:  confidence,
		Decision:    decision,
		ReasonCodes: reasonCodes,
		Spans:       c.Spans(),
	}
}
