package monitor

import (
	"time"

	"mercator-hq/warden/pkg/compliance"
)

// State is a step of the per-policy cycle.
type State string

const (
	StateStart           State = "start"
	StateVersionsLoaded  State = "versions_loaded"
	StateChangesDetected State = "changes_detected"
	StateChecksEvaluated State = "checks_evaluated"
	StateDone            State = "done"
	StateErrored         State = "errored"
)

// CycleReport describes one policy cycle.
type CycleReport struct {
	PolicyID string `json:"policy_id"`

	// State is StateDone or StateErrored.
	State State `json:"state"`

	// Err is set when State is StateErrored; Err.State is where it happened.
	Err *CycleError `json:"-"`

	// Versions is how many versions were loaded (0, 1 or 2).
	Versions int `json:"versions"`

	// ChangeSource is empty when detection was skipped.
	ChangeSource   compliance.ChangeSource `json:"change_source,omitempty"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
	Changes        int                     `json:"changes"`

	// Results counts persisted check results by status.
	Results map[compliance.CheckStatus]int `json:"results"`

	Violations    int `json:"violations"`
	Notifications int `json:"notifications"`

	// WriteFailures counts store writes that failed and were skipped.
	WriteFailures int `json:"write_failures"`

	Duration time.Duration `json:"duration"`
}

// Failed reports whether the cycle ended in StateErrored.
func (r *CycleReport) Failed() bool {
	return r.State == StateErrored
}

// ErrorMessage returns the cycle error text, or "".
func (r *CycleReport) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunReport describes one monitoring run over all monitored policies.
type RunReport struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	// Skipped is true when another run was already in progress.
	Skipped bool `json:"skipped"`

	// Err is set when the monitored policies could not be listed.
	Err *RunError `json:"-"`

	// Policies holds one report per monitored policy, in list order.
	Policies []CycleReport `json:"policies"`

	Duration time.Duration `json:"duration"`
}

// Outcome is the metrics label of the run.
func (r *RunReport) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Err != nil:
		return "failed"
	default:
		return "completed"
	}
}

// Errored returns the number of policy cycles that ended in StateErrored.
func (r *RunReport) Errored() int {
	n := 0
	for i := range r.Policies {
		if r.Policies[i].Failed() {
			n++
		}
	}
	return n
}

// Totals sums the per-policy counters.
func (r *RunReport) Totals() (changes, violations, notifications int) {
	for i := range r.Policies {
		changes += r.Policies[i].Changes
		violations += r.Policies[i].Violations
		notifications += r.Policies[i].Notifications
	}
	return changes, violations, notifications
}
