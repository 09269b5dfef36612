// Package errors provides structured error types and handling utilities
// for the time zone resolution service.
package errors

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrorCode represents a specific error condition
type ErrorCode string

// Error codes for different types of failures
const (
	// Client errors (4xx)
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeZoneNotFound         ErrorCode = "ZONE_NOT_FOUND"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeAmbiguousLocalTime   ErrorCode = "AMBIGUOUS_LOCAL_TIME"
	ErrCodeNonexistentLocalTime ErrorCode = "NONEXISTENT_LOCAL_TIME"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"

	// Server errors (5xx)
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeBackendError       ErrorCode = "BACKEND_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// ErrorCategory represents the type of error for handling strategy
type ErrorCategory string

const (
	// CategoryClientError represents user/client mistakes (4xx HTTP errors)
	CategoryClientError ErrorCategory = "CLIENT_ERROR"
	// CategoryConflictError represents civil times that do not map to a
	// single instant
	CategoryConflictError ErrorCategory = "CONFLICT_ERROR"
	// CategoryServerError represents our system errors (5xx HTTP errors)
	CategoryServerError ErrorCategory = "SERVER_ERROR"
	// CategoryBackendError represents calendar backend failures
	CategoryBackendError ErrorCategory = "BACKEND_ERROR"
	// CategoryRateLimitError represents rate limiting errors
	CategoryRateLimitError ErrorCategory = "RATE_LIMIT_ERROR"
	// CategoryTimeoutError represents timeout related errors
	CategoryTimeoutError ErrorCategory = "TIMEOUT_ERROR"
)

// Severity levels for error classification
type Severity string

const (
	// SeverityLow represents minor issues with degraded functionality
	SeverityLow Severity = "LOW"
	// SeverityMedium represents significant issues with some functionality lost
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh represents major issues with primary functionality affected
	SeverityHigh Severity = "HIGH"
	// SeverityCritical represents system-wide issues with service unavailable
	SeverityCritical Severity = "CRITICAL"
)

// ServiceError represents a structured error with context
type ServiceError struct {
	Code        ErrorCode              `json:"code"`
	Category    ErrorCategory          `json:"category"`
	Severity    Severity               `json:"severity"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Cause       error                  `json:"-"` // Original error, not serialized
	Timestamp   time.Time              `json:"timestamp"`
	RequestID   string                 `json:"request_id,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
	RetryAfter  *time.Duration         `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with wrapped errors
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsServerError returns true if the error is a server-side error
func (e *ServiceError) IsServerError() bool {
	return e.Category == CategoryServerError || e.Category == CategoryBackendError
}

// HTTPStatusCode returns the appropriate HTTP status code for the error
func (e *ServiceError) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeZoneNotFound, ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAmbiguousLocalTime, ErrCodeNonexistentLocalTime:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeBackendError:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBuilder helps construct ServiceError instances
type ErrorBuilder struct {
	error *ServiceError
}

// NewError creates a new ErrorBuilder
func NewError(code ErrorCode) *ErrorBuilder {
	return &ErrorBuilder{
		error: &ServiceError{
			Code:      code,
			Timestamp: time.Now(),
			Context:   make(map[string]interface{}),
		},
	}
}

// WithSeverity sets the error severity
func (b *ErrorBuilder) WithSeverity(severity Severity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithMessage sets the error message
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	b.error.Message = message
	return b
}

// WithDetails sets additional error details
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithCause sets the underlying cause
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// WithContext adds context information
func (b *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if b.error.Context == nil {
		b.error.Context = make(map[string]interface{})
	}
	b.error.Context[key] = value
	return b
}

// WithRetryAfter sets retry-after duration for rate limiting
func (b *ErrorBuilder) WithRetryAfter(duration time.Duration) *ErrorBuilder {
	b.error.RetryAfter = &duration
	return b
}

// Build returns the constructed ServiceError
func (b *ErrorBuilder) Build() *ServiceError {
	if b.error.Category == "" {
		b.error.Category = getDefaultCategory(b.error.Code)
	}
	if b.error.Severity == "" {
		b.error.Severity = getDefaultSeverity(b.error.Code)
	}
	return b.error
}

// ErrorResponse represents the JSON response format for API errors
type ErrorResponse struct {
	Error       ErrorCode              `json:"error"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	RequestID   string                 `json:"request_id,omitempty"`
	RetryAfter  *int                   `json:"retry_after_seconds,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
}

// ToErrorResponse converts ServiceError to ErrorResponse for API responses
func (e *ServiceError) ToErrorResponse() *ErrorResponse {
	resp := &ErrorResponse{
		Error:     e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Context:   e.Context,
		Timestamp: e.Timestamp,
		RequestID: e.RequestID,
	}

	if e.UserMessage != "" {
		resp.UserMessage = e.UserMessage
	} else {
		resp.UserMessage = getUserFriendlyMessage(e.Code)
	}

	if e.RetryAfter != nil {
		seconds := retryAfterSeconds(*e.RetryAfter)
		resp.RetryAfter = &seconds
	}

	return resp
}

// MarshalJSON implements json.Marshaler for structured logging
func (e *ServiceError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToErrorResponse())
}

// getDefaultCategory returns default category for error code
func getDefaultCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeZoneNotFound, ErrCodeNotFound:
		return CategoryClientError
	case ErrCodeAmbiguousLocalTime, ErrCodeNonexistentLocalTime:
		return CategoryConflictError
	case ErrCodeRateLimited:
		return CategoryRateLimitError
	case ErrCodeTimeout:
		return CategoryTimeoutError
	case ErrCodeBackendUnavailable, ErrCodeBackendError:
		return CategoryBackendError
	default:
		return CategoryServerError
	}
}

// getDefaultSeverity returns default severity for error code
func getDefaultSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeZoneNotFound, ErrCodeNotFound,
		ErrCodeAmbiguousLocalTime, ErrCodeNonexistentLocalTime:
		return SeverityLow
	case ErrCodeRateLimited, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeBackendError:
		return SeverityHigh
	case ErrCodeBackendUnavailable, ErrCodeInternalError:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// getUserFriendlyMessage returns user-friendly error messages
func getUserFriendlyMessage(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidRequest:
		return "The request contains invalid data. Please check your input and try again."
	case ErrCodeZoneNotFound:
		return "The time zone is not known. Use a tz database name such as Europe/Berlin."
	case ErrCodeNotFound:
		return "The requested resource was not found."
	case ErrCodeAmbiguousLocalTime:
		return "The local time occurs twice in this time zone. Choose the earliest or latest occurrence."
	case ErrCodeNonexistentLocalTime:
		return "The local time is skipped in this time zone. Choose the earliest or latest policy to map it."
	case ErrCodeRateLimited:
		return "Too many requests. Please wait and try again later."
	case ErrCodeBackendUnavailable:
		return "The time zone database is not available."
	case ErrCodeBackendError:
		return "The time zone database returned an error for this request."
	case ErrCodeTimeout:
		return "Request timed out. Please try again."
	default:
		return "An unexpected error occurred. Please try again or contact support."
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
