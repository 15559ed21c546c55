// Package errors provides structured error handling for the query pipeline.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (SQLite, index files)
//   - 3XX: Provider errors (embedder, LLM, reranker)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates chunk store, trace store, and index errors.
	CategoryStorage Category = "STORAGE"
	// CategoryProvider indicates embedder/LLM/reranker provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; the request aborts.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing with defaults.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeCorruptIndex     = "ERR_202_CORRUPT_INDEX"
	ErrCodeTraceWrite       = "ERR_203_TRACE_WRITE"

	// Provider errors (300-399)
	ErrCodeEmbeddingFailed  = "ERR_301_EMBEDDING_FAILED"
	ErrCodeLLMFailed        = "ERR_302_LLM_FAILED"
	ErrCodeRerankerFailed   = "ERR_303_RERANKER_FAILED"
	ErrCodeProviderTimeout  = "ERR_304_PROVIDER_TIMEOUT"
	ErrCodeStructuredOutput = "ERR_305_STRUCTURED_OUTPUT"

	// Validation errors (400-499)
	ErrCodeInvalidQuery    = "ERR_401_INVALID_QUERY"
	ErrCodeInvalidDocument = "ERR_402_INVALID_DOCUMENT"
	ErrCodeUnsupportedFile = "ERR_403_UNSUPPORTED_FILE"
	ErrCodeUnauthorized    = "ERR_404_UNAUTHORIZED"
	ErrCodeRateLimited     = "ERR_405_RATE_LIMITED"

	// Internal errors (500-599)
	ErrCodeGenerationFailed = "ERR_501_GENERATION_FAILED"
	ErrCodeInternal         = "ERR_502_INTERNAL"
)

// categoryFromCode derives the category from the numeric range of the code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives a default severity from the code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeTraceWrite, ErrCodeStructuredOutput:
		return SeverityWarning
	case ErrCodeStoreUnavailable, ErrCodeCorruptIndex, ErrCodeGenerationFailed:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the operation behind the code may succeed
// on retry. Provider timeouts and transient provider failures are retryable.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeLLMFailed, ErrCodeRerankerFailed, ErrCodeProviderTimeout:
		return true
	default:
		return false
	}
}
