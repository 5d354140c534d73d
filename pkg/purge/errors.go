package purge

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument matches every InvalidArgumentError via errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError reports a configuration or input problem. These are
// never retried.
type InvalidArgumentError struct {
	Field   string // Configuration field or parameter name
	UUID    string // Offending uuid, when there is one
	Message string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// Is reports whether target is ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func newInvalidArgument(field, uuid, format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{
		Field:   field,
		UUID:    uuid,
		Message: fmt.Sprintf(format, args...),
	}
}

// StepError wraps a store failure with the step that raised it. The store
// error stays reachable through errors.Is and errors.As.
type StepError struct {
	Step  string
	Cause error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("purge step %q failed: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying store error.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// ListenerError wraps a failure returned by a Listener callback.
type ListenerError struct {
	Callback    string
	ProjectUUID string
	Cause       error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s failed for project %s: %v", e.Callback, e.ProjectUUID, e.Cause)
}

// Unwrap returns the listener's error.
func (e *ListenerError) Unwrap() error {
	return e.Cause
}
