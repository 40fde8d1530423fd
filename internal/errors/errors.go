package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"time"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypePolicy        ErrorType = "policy"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeInternal      ErrorType = "internal"
)

// ErrorSeverity represents the severity level of errors
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError represents a structured application error. For client-facing
// rejections Message is exactly the reason string put on the wire.
type AppError struct {
	Type       ErrorType     `json:"type"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Severity   ErrorSeverity `json:"severity"`
	Timestamp  time.Time     `json:"timestamp"`
	Cause      error         `json:"-"`
	StackTrace string        `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the Unwrap interface for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same type and code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// New creates a new AppError with stack trace capture
func New(errorType ErrorType, code string, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Severity:   SeverityMedium,
		Timestamp:  time.Now(),
		StackTrace: captureStackTrace(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errorType ErrorType, code string, message string) *AppError {
	appErr := New(errorType, code, message)
	appErr.Cause = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Reject builds a low-severity client rejection. No stack is captured
// since these are raised on every bad frame.
func Reject(errorType ErrorType, code string, reason string) *AppError {
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  reason,
		Severity: SeverityLow,
	}
}

// WithSeverity sets the severity level of an error
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithDetails adds additional details to an error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// As extracts the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// TypeOf returns the error type of err, or ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
