package llm

import (
	"context"
	"sync"
)

// Stub is an in-memory LLM for tests. Responses are served in order; when
// the queue is exhausted the last response repeats. A non-nil Err is
// returned from every call instead.
type Stub struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	next      int

	// Requests records every request for assertions.
	Requests []Request
}

var _ LLM = (*Stub)(nil)

// NewStub creates a stub serving the given responses.
func NewStub(responses ...string) *Stub {
	return &Stub{Responses: responses}
}

func (s *Stub) take(req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	resp := s.Responses[s.next]
	if s.next < len(s.Responses)-1 {
		s.next++
	}
	return resp, nil
}

func (s *Stub) Generate(_ context.Context, req Request) (string, error) {
	return s.take(req)
}

func (s *Stub) GenerateStream(_ context.Context, req Request, onChunk func(text string) error) error {
	text, err := s.take(req)
	if err != nil {
		return err
	}
	// Emit in two fragments so stream consumers see assembly.
	half := len(text) / 2
	if half > 0 {
		if err := onChunk(text[:half]); err != nil {
			return err
		}
	}
	return onChunk(text[half:])
}

func (s *Stub) GenerateJSON(_ context.Context, req Request, out any) error {
	text, err := s.take(req)
	if err != nil {
		return err
	}
	return ExtractJSON(text, out)
}

func (s *Stub) ModelName() string { return "stub" }

// CallCount returns how many requests the stub has served.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
