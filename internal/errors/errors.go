// Package errors provides structured error handling for the chronicle CLI.
// It includes categorized errors with actionable remediation guidance.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the type of error that occurred.
type ErrorCategory int

const (
	// Argument errors are caused by invalid or missing command arguments.
	Argument ErrorCategory = iota
	// Configuration errors are caused by invalid or missing configuration.
	Configuration
	// NotFound errors occur when a target version or a required prior
	// release is absent from the release list.
	NotFound
	// InvalidState errors occur when persisted data cannot support the
	// requested operation (non-concrete dependency pin, unplaceable
	// changelog section).
	InvalidState
	// Transport errors occur when the revision or metadata source cannot
	// be reached, or returns an incomplete result.
	Transport
)

// String returns a human-readable name for the error category.
func (c ErrorCategory) String() string {
	switch c {
	case Argument:
		return "Argument Error"
	case Configuration:
		return "Configuration Error"
	case NotFound:
		return "Not Found"
	case InvalidState:
		return "Invalid State"
	case Transport:
		return "Transport Error"
	default:
		return "Error"
	}
}

// CLIError is a structured error with category and remediation guidance.
type CLIError struct {
	// Category is the type of error (Argument, NotFound, etc.)
	Category ErrorCategory
	// Message is a human-readable description of what went wrong.
	Message string
	// Remediation is a list of actionable steps to resolve the error.
	Remediation []string
	// Usage shows the correct command syntax (optional, for argument errors).
	Usage string
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewArgumentError creates a new argument error with the given message and remediation steps.
func NewArgumentError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Argument,
		Message:     message,
		Remediation: remediation,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Configuration,
		Message:     message,
		Remediation: remediation,
	}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    NotFound,
		Message:     message,
		Remediation: remediation,
	}
}

// NewInvalidStateError creates a new invalid-state error.
func NewInvalidStateError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    InvalidState,
		Message:     message,
		Remediation: remediation,
	}
}

// NewTransportError creates a new transport error.
func NewTransportError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Transport,
		Message:     message,
		Remediation: remediation,
	}
}

// Wrap wraps an existing error with a CLIError, preserving the original message.
func Wrap(err error, category ErrorCategory, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     err.Error(),
		Remediation: remediation,
		Err:         err,
	}
}

// WrapWithMessage wraps an error with a custom message and category.
func WrapWithMessage(err error, category ErrorCategory, message string, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     fmt.Sprintf("%s: %v", message, err),
		Remediation: remediation,
		Err:         err,
	}
}

// IsCLIError checks if an error is a CLIError.
func IsCLIError(err error) bool {
	var cliErr *CLIError
	return stderrors.As(err, &cliErr)
}

// AsCLIError attempts to convert an error to a CLIError.
// Returns nil if the error is not a CLIError anywhere in its chain.
func AsCLIError(err error) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}
	return nil
}

// IsCategory reports whether err is a CLIError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	cliErr := AsCLIError(err)
	return cliErr != nil && cliErr.Category == category
}
