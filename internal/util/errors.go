package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for the opsbook CLI
var (
	// ErrUsage indicates the command line was malformed (missing playbook
	// argument, mutually exclusive flags combined)
	ErrUsage = errors.New("usage error")

	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidLimit indicates a host limit pattern matched no hosts
	// even though the unfiltered inventory was non-empty
	ErrInvalidLimit = errors.New("limit matched no hosts")

	// ErrConnectionFailed indicates an SSH connection failure
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates an operation was cancelled by the user
	ErrCancelled = errors.New("operation cancelled")

	// ErrUnknownAction indicates a task references an action the engine
	// does not implement
	ErrUnknownAction = errors.New("unknown action")
)

// Process exit codes. Fatal errors always exit 1; per-host outcomes are
// folded into ExitHostFailed / ExitUnreachable by the stats reporter.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitHostFailed  = 2
	ExitUnreachable = 3
)

// ExitError carries a process exit code through the cobra error return.
// Codes other than ExitFatal have already been reported via the recap
// table, so main prints nothing for them.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError wraps an error with an explicit process exit code
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// ExitCode extracts the process exit code from an error chain.
// A nil error is ExitOK; anything without an explicit code is fatal.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFatal
}

// PlaybookError wraps an error with the playbook path it occurred in
type PlaybookError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *PlaybookError) Error() string {
	return fmt.Sprintf("playbook %q: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *PlaybookError) Unwrap() error {
	return e.Err
}

// WrapPlaybookError wraps an error with playbook context
func WrapPlaybookError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &PlaybookError{Path: path, Err: err}
}

// ValidationError represents a playbook or inventory validation failure.
// Validation errors are fatal for the whole invocation.
type ValidationError struct {
	Subject string
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Subject != "" {
		return fmt.Sprintf("validation failed for %s: %s", v.Subject, v.Message)
	}
	return fmt.Sprintf("validation failed: %s", v.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(subject, message string) *ValidationError {
	return &ValidationError{Subject: subject, Message: message}
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 { // Limit to first 10 errors in the message
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// IsUsage checks if an error is a usage error
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidLimit):
		return "The --limit pattern did not match any hosts in the inventory."
	case errors.Is(err, ErrTimeout):
		return "Operation timed out. Please try again or increase the timeout value with --timeout flag."
	case IsCancelled(err):
		return "Operation was cancelled."
	case IsConnectionError(err):
		return "Failed to connect to host. Please check your inventory and network connectivity."
	case errors.Is(err, ErrInvalidConfig):
		return "Invalid configuration. Please check your config file and command-line flags."
	default:
		return err.Error()
	}
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
