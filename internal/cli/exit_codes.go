package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/changelog-tools/chronicle/internal/errors"
)

// Exit codes for the chronicle CLI.
// These codes support programmatic composition and CI/CD integration.
const (
	// ExitSuccess indicates successful command execution
	ExitSuccess = 0

	// ExitRuntime indicates an unclassified runtime failure
	ExitRuntime = 1

	// ExitNotFound indicates a target version or required release was absent
	ExitNotFound = 2

	// ExitInvalidArguments indicates invalid command arguments or configuration
	ExitInvalidArguments = 3

	// ExitInvalidState indicates persisted data cannot support the operation
	ExitInvalidState = 4

	// ExitTransport indicates the revision or metadata source was unreachable
	ExitTransport = 5
)

// ExitError carries an explicit exit code through cobra's error return.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an error that maps to the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// exitCodeFor maps an error to its process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	if cliErr := errors.AsCLIError(err); cliErr != nil {
		switch cliErr.Category {
		case errors.Argument, errors.Configuration:
			return ExitInvalidArguments
		case errors.NotFound:
			return ExitNotFound
		case errors.InvalidState:
			return ExitInvalidState
		case errors.Transport:
			return ExitTransport
		}
	}
	return ExitRuntime
}
