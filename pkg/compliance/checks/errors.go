package checks

import "fmt"

// Evaluation error kinds.
const (
	KindUnknownCheck = "unknown_check"
	KindCriteria     = "criteria"
	KindUnavailable  = "unavailable"
	KindClassifier   = "classifier"
	KindReply        = "reply"
	KindPanic        = "panic"
)

// UnknownCheckError is returned by Parse for a check name no evaluator exists for.
type UnknownCheckError struct {
	CheckName string
}

// Error implements the error interface.
func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("unknown check %q", e.CheckName)
}

// CriteriaError is returned by Parse when a check's criteria cannot be decoded
// into the shape its name requires.
type CriteriaError struct {
	CheckName string
	Cause     error
}

// Error implements the error interface.
func (e *CriteriaError) Error() string {
	return fmt.Sprintf("invalid criteria for %q: %v", e.CheckName, e.Cause)
}

// Unwrap returns the underlying decode error.
func (e *CriteriaError) Unwrap() error {
	return e.Cause
}

// EvaluationError means the evaluator could not produce a verdict. It is
// distinct from a check that ran and failed.
type EvaluationError struct {
	CheckID   string
	CheckName string

	// Kind classifies the failure (KindUnknownCheck, KindClassifier, ...).
	Kind string

	Cause error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("check %q (%s) %s error: %v", e.CheckName, e.CheckID, e.Kind, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
