// Package errors provides standardized error handling for the chat pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// A generative call returned text that does not match the expected schema.
	// Always recovered locally with a component default, never surfaced.
	ErrCodeStructuredOutputParse ErrorCode = "STRUCTURED_OUTPUT_PARSE_FAILED"

	// Provider rate/quota exhaustion; retried with backoff before surfacing.
	ErrCodeProviderQuota ErrorCode = "PROVIDER_QUOTA_EXCEEDED"

	// Other provider failures; the calling component degrades to its fallback.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"

	// Semantic index disabled or unreachable; degrades to keyword scoring.
	ErrCodeRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"

	// Durable store unreachable at startup; degrades to the in-process store.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	// Catalog data not loaded yet; requests are rejected until it is.
	ErrCodeCatalogNotReady ErrorCode = "CATALOG_NOT_READY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewStructuredOutputParseError creates a non-retryable parse error.
func NewStructuredOutputParseError(component string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStructuredOutputParse,
		Message:   "Generative output did not match the expected schema",
		Details:   fmt.Sprintf("component: %s, error: %s", component, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderQuotaError creates a retryable quota/rate-limit error.
func NewProviderQuotaError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderQuota,
		Message:   "Language model quota or rate limit exhausted",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError creates a non-retryable provider error.
func NewProviderError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProvider,
		Message:   "Language model provider error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalUnavailableError creates a non-retryable retrieval error.
func NewRetrievalUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalUnavailable,
		Message:   "Semantic index unavailable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a non-retryable cache backend error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Durable cache store unreachable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogNotReadyError creates a non-retryable not-ready error.
func NewCatalogNotReadyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogNotReady,
		Message:   "Catalog data not loaded yet",
		Details:   "service starting up, retry shortly",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsQuota reports whether err is a quota/rate-limit provider error.
func IsQuota(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == ErrCodeProviderQuota
	}
	return false
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the error code, or "INTERNAL_ERROR" for unknown errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}
