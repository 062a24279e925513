// Package errors provides a structured error system for keydrill with error
// codes, categories, and context.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure in the content pipeline.
type ErrorCode string

const (
	// Caller errors
	ErrCodeInvalidLevel ErrorCode = "INVALID_LEVEL"
	ErrCodeInvalidSeed  ErrorCode = "INVALID_SEED"

	// Generation errors
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"

	// Validation errors
	ErrCodeSecurityIssue        ErrorCode = "SECURITY_ISSUE"
	ErrCodeCompositionMismatch  ErrorCode = "COMPOSITION_MISMATCH"
	ErrCodeProgressionViolation ErrorCode = "PROGRESSION_VIOLATION"

	// Cache errors
	ErrCodeCacheError ErrorCode = "CACHE_ERROR"
	ErrCodeCacheFull  ErrorCode = "CACHE_FULL"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory groups error codes by the subsystem that raises them.
type ErrorCategory string

const (
	CategoryCaller        ErrorCategory = "caller"
	CategoryGeneration    ErrorCategory = "generation"
	CategoryValidation    ErrorCategory = "validation"
	CategoryCache         ErrorCategory = "cache"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// Error is a structured error with code, category, and context metadata.
type Error struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Retryable indicates the caller may retry the same request and expect
	// a different outcome. Security rejections are never retryable.
	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error-wrapping compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is with sentinel
// instances created via NewError(code, "").
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed representation for logging.
func (e *Error) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("Error{%s}", strings.Join(parts, ", "))
}

// NewError creates a new structured error with defaults derived from the code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: isRetryableByDefault(code),
	}
}

// Newf creates a new structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidLevel, ErrCodeInvalidSeed:
		return CategoryCaller
	case ErrCodeGenerationFailed:
		return CategoryGeneration
	case ErrCodeSecurityIssue, ErrCodeCompositionMismatch, ErrCodeProgressionViolation:
		return CategoryValidation
	case ErrCodeCacheError, ErrCodeCacheFull:
		return CategoryCache
	case ErrCodeInvalidConfig, ErrCodeConfigLoad:
		return CategoryConfiguration
	default:
		return CategoryInternal
	}
}

func isRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeCompositionMismatch, ErrCodeCacheError, ErrCodeCacheFull:
		return true
	default:
		return false
	}
}

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the originating component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithOperation sets the operation during which the error occurred.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
