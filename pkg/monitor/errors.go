package monitor

import (
	"errors"
	"fmt"
)

// ErrPanic marks a CycleError caused by a recovered panic.
var ErrPanic = errors.New("panic during policy cycle")

// CycleError reports why one policy cycle ended in StateErrored.
type CycleError struct {
	PolicyID string // Policy being processed
	State    State  // Last state reached before the failure
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("policy cycle error [policy=%s, state=%s]: %v", e.PolicyID, e.State, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *CycleError) Unwrap() error {
	return e.Cause
}

// RunError reports a monitoring run that could not list its policies.
type RunError struct {
	RunID string
	Cause error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("monitoring run error [run=%s]: %v", e.RunID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RunError) Unwrap() error {
	return e.Cause
}
