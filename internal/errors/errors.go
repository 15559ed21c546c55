package errors

import (
	"fmt"
)

// PipelineError is the structured error type surfaced at the core boundary.
// Recoverable signal degradation never becomes a PipelineError; it collapses
// to neutral defaults inside the stage that detected it.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_301_EMBEDDING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches PipelineErrors by code so errors.Is works across wrapping.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a PipelineError with the given code and message.
// Category, severity, and retryability are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PipelineError from an existing error, keeping its message.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// EmbeddingError marks a hard embedding-provider failure.
func EmbeddingError(err error) *PipelineError {
	return Wrap(ErrCodeEmbeddingFailed, err)
}

// LLMError marks a total LLM failure.
func LLMError(err error) *PipelineError {
	return Wrap(ErrCodeLLMFailed, err)
}

// StoreError marks a chunk-store or trace-store failure.
func StoreError(err error) *PipelineError {
	return Wrap(ErrCodeStoreUnavailable, err)
}

// GenerationError marks a failed answer generation. A failed generation is
// fatal for the request; no partial answer is returned.
func GenerationError(err error) *PipelineError {
	return Wrap(ErrCodeGenerationFailed, err)
}
