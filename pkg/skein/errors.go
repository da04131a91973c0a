package skein

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
)

// MultiError ...
type MultiError struct {
	Errors []error
}

// Error ...
func (e MultiError) Error() string {
	s := []string{}
	for _, err := range e.Errors {
		s = append(s, fmt.Sprintf(" - %s\n", err))
	}

	sort.Strings(s)
	return ansi.Sprintf("@r{%d} error(s) detected:\n%s\n", len(e.Errors), strings.Join(s, ""))
}

// Count ...
func (e *MultiError) Count() int {
	return len(e.Errors)
}

// Append ...
func (e *MultiError) Append(err error) {
	if err == nil {
		return
	}

	if mult, ok := err.(MultiError); ok {
		e.Errors = append(e.Errors, mult.Errors...)
	} else {
		e.Errors = append(e.Errors, err)
	}
}

// SkeinError is the base error type for runtime failures
type SkeinError struct {
	Type    ErrorType
	Message string
	Path    string
	Cause   error
}

func (e *SkeinError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *SkeinError) Unwrap() error {
	return e.Cause
}

// ErrorType represents different categories of errors
type ErrorType string

const (
	// InvariantError indicates a programming invariant was violated
	// (scheduling a node twice, releasing a non-held write, releasing
	// a compression value twice). These are fatal to the host.
	InvariantError ErrorType = "invariant_error"

	// InputError indicates a user-input mismatch (targeting an area
	// that does not exist, focussing an area with no input element).
	// The offending operation reports failure and the run continues.
	InputError ErrorType = "input_error"

	// ConfigurationError indicates an invalid configuration
	ConfigurationError ErrorType = "configuration_error"

	// EvaluationError indicates a failure inside an evaluation node's
	// recomputation; it is reported through the node's result
	// diagnostic, never thrown across the scheduler.
	EvaluationError ErrorType = "evaluation_error"
)

// NewInvariantError creates a new invariant violation error
func NewInvariantError(message string, args ...interface{}) *SkeinError {
	return &SkeinError{
		Type:    InvariantError,
		Message: fmt.Sprintf(message, args...),
	}
}

// NewInputError creates a new user-input mismatch error
func NewInputError(message string, args ...interface{}) *SkeinError {
	return &SkeinError{
		Type:    InputError,
		Message: fmt.Sprintf(message, args...),
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string) *SkeinError {
	return &SkeinError{
		Type:    ConfigurationError,
		Message: message,
	}
}

// NewEvaluationError creates a new evaluation error with path context
func NewEvaluationError(path, message string, cause error) *SkeinError {
	return &SkeinError{
		Type:    EvaluationError,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// IsSkeinError checks if an error is a SkeinError
func IsSkeinError(err error) bool {
	_, ok := err.(*SkeinError)
	return ok
}

// GetErrorType returns the error type if it's a SkeinError, empty string otherwise
func GetErrorType(err error) ErrorType {
	if serr, ok := err.(*SkeinError); ok {
		return serr.Type
	}
	return ""
}
