package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type returned by valkey-search packages.
// It carries enough context for logging and for callers that need to
// branch on the failure class.
type Error struct {
	// Code is the unique error code (e.g., "ERR_402_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel values for errors.Is comparisons.
var (
	ErrIndexNotFound     = New(ErrCodeIndexNotFound, "index not found", nil)
	ErrDimensionMismatch = New(ErrCodeDimensionMismatch, "vector dimension mismatch", nil)
	ErrInvalidInput      = New(ErrCodeInvalidInput, "invalid input", nil)
	ErrNotInitialized    = New(ErrCodeNotInitialized, "index not initialized", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// CommandError wraps a failed engine command. The command name is kept as a
// detail so log lines and CLI output can name it.
func CommandError(command string, cause error) *Error {
	return New(ErrCodeCommandFailed, command+" failed", cause).WithDetail("command", command)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if err is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
