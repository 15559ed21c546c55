// Package llm provides the generation-model contract and a Gemini-style
// HTTP client with synchronous, streaming, and structured-output modes.
package llm

import (
	"context"
	"time"
)

// Request is one generation call.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// LLM is the generation provider contract.
type LLM interface {
	// Generate returns the full completion text.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream invokes onChunk for each text fragment as it arrives.
	// A non-nil error from onChunk aborts the stream.
	GenerateStream(ctx context.Context, req Request, onChunk func(text string) error) error

	// GenerateJSON asks for a JSON-mode completion and unmarshals it into
	// out. Implementations recover JSON embedded in prose or code fences.
	GenerateJSON(ctx context.Context, req Request, out any) error

	// ModelName returns the model identifier.
	ModelName() string
}

const (
	// DefaultMaxTokens bounds completions when the request does not.
	DefaultMaxTokens = 4096

	// DefaultRequestTimeout bounds a single generation HTTP request.
	DefaultRequestTimeout = 120 * time.Second
)
