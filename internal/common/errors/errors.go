// Package errors provides standardized error handling for the job pipelines.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Template errors. A missing template is retryable: the template may be
	// upserted or re-activated before the retry budget runs out.
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateRender   ErrorCode = "TEMPLATE_RENDER_FAILED"

	// Channel / provider errors.
	ErrCodeChannelNotConfigured ErrorCode = "CHANNEL_NOT_CONFIGURED"
	ErrCodeProviderError        ErrorCode = "PROVIDER_ERROR"

	// Job store errors.
	ErrCodeJobNotFound          ErrorCode = "JOB_NOT_FOUND"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"

	// Export errors.
	ErrCodeInvalidExportType   ErrorCode = "INVALID_EXPORT_TYPE"
	ErrCodeStorageUploadFailed ErrorCode = "STORAGE_UPLOAD_FAILED"

	// Queue / payload errors.
	ErrCodePayloadValidationFailed ErrorCode = "PAYLOAD_VALIDATION_FAILED"
)

// StandardError represents a structured application error. Retryable drives
// the queue-level retry decision: non-retryable errors drop the task
// immediately, retryable ones re-enter via the backoff schedule.
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

// IsRetryable reports whether err should be rescheduled by the queue.
// Unknown error types default to retryable so transient infrastructure
// faults are not silently dropped.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}

// CodeOf extracts the error code from err, or "UNKNOWN_ERROR".
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return "UNKNOWN_ERROR"
}

// NewTemplateNotFoundError creates a retryable missing-template error.
func NewTemplateNotFoundError(key, locale string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "No active template for key and locale",
		Details:   fmt.Sprintf("key: %s, locale: %s", key, locale),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateRenderError creates a non-retryable render error.
func NewTemplateRenderError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateRender,
		Message:   "Template failed to compile or execute",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError creates a retryable provider transport error.
func NewProviderError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderError,
		Message:   "Channel provider call failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobNotFoundError creates a fatal non-retryable lookup error. A missing
// job record means the producer and consumer disagree about the payload,
// so retrying cannot help.
func NewJobNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Job record not found",
		Details:   fmt.Sprintf("%s: %s", kind, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidExportTypeError creates a non-retryable export type error.
func NewInvalidExportTypeError(exportType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidExportType,
		Message:   "Unsupported export type",
		Details:   fmt.Sprintf("type: %s", exportType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageUploadError creates a retryable object-storage error.
func NewStorageUploadError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUploadFailed,
		Message:   "Object storage upload failed",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadValidationError creates a non-retryable task payload error.
func NewPayloadValidationError(queue, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadValidationFailed,
		Message:   "Task payload failed schema validation",
		Details:   fmt.Sprintf("queue: %s, %s", queue, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
