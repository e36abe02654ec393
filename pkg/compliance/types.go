package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImpactLevel classifies how significant a detected document change is.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// Rank orders impact levels from 1 (low) to 4 (critical). Unknown levels rank 0.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactLow:
		return 1
	case ImpactMedium:
		return 2
	case ImpactHigh:
		return 3
	case ImpactCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether l is one of the known impact levels.
func (l ImpactLevel) Valid() bool {
	return l.Rank() > 0
}

// AtLeast reports whether l is as severe as min.
func (l ImpactLevel) AtLeast(min ImpactLevel) bool {
	return l.Valid() && l.Rank() >= min.Rank()
}

// ParseImpactLevel normalizes s into an ImpactLevel.
func ParseImpactLevel(s string) (ImpactLevel, error) {
	level := ImpactLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("unknown impact level %q", s)
	}
	return level, nil
}

// ChangeType is the kind of a detected textual change.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeDeletion     ChangeType = "deletion"
	ChangeModification ChangeType = "modification"
)

// Valid reports whether t is one of the known change types.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeAddition, ChangeDeletion, ChangeModification:
		return true
	}
	return false
}

// ChangeSource records which path of the change detector produced a change.
type ChangeSource string

const (
	// SourceClassifier marks changes reported by the semantic-diff service.
	SourceClassifier ChangeSource = "classifier"
	// SourceTextDiff marks changes produced by the line differ.
	SourceTextDiff ChangeSource = "text_diff"
)

// CheckType distinguishes machine-evaluated checks from checks a human performs.
type CheckType string

const (
	CheckAutomated CheckType = "automated"
	CheckManual    CheckType = "manual"
)

// CheckStatus is the outcome recorded for one check execution.
type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusFail    CheckStatus = "fail"
	StatusPending CheckStatus = "pending"
	StatusError   CheckStatus = "error"
)

// ViolationStatus is the lifecycle state of a violation. The engine only ever
// creates open violations; the other states are set by reviewers.
type ViolationStatus string

const (
	ViolationOpen         ViolationStatus = "open"
	ViolationAcknowledged ViolationStatus = "acknowledged"
	ViolationResolved     ViolationStatus = "resolved"
)

// NotificationType is the presentation class of a notification.
type NotificationType string

const (
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// EventKind names the domain event a notification fan-out is about.
type EventKind string

const (
	EventPolicyChange EventKind = "policy_change"
	EventViolation    EventKind = "violation"
)

// DefaultSeverity is applied to violations whose check carries no severity.
const DefaultSeverity = "medium"

// Details is the structured payload attached to a check result.
type Details map[string]any

// Message returns the "message" entry when it is a non-empty string.
func (d Details) Message() string {
	if msg, ok := d["message"].(string); ok {
		return msg
	}
	return ""
}

// Policy is a compliance document under monitoring.
type Policy struct {
	ID                 string `json:"id"`
	Name               string `json:"name,omitempty"`
	PolicyType         string `json:"policy_type"`
	MonitoringEnabled  bool   `json:"monitoring_enabled"`
	CurrentDocumentRef string `json:"current_document_ref,omitempty"`
}

// PolicyVersion is an immutable snapshot of a policy's extracted text.
type PolicyVersion struct {
	ID        string    `json:"id"`
	PolicyID  string    `json:"policy_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Change is one detected difference between two policy versions.
type Change struct {
	ID          string       `json:"id,omitempty"`
	PolicyID    string       `json:"policy_id,omitempty"`
	VersionID   string       `json:"version_id,omitempty"`
	Type        ChangeType   `json:"type"`
	Description string       `json:"description"`
	ImpactLevel ImpactLevel  `json:"impact_level"`
	Source      ChangeSource `json:"source,omitempty"`
	DetectedAt  time.Time    `json:"detected_at,omitempty"`
}

// CheckDefinition is a named rule evaluated against the text of every policy
// of a given type. CheckCriteria is kept raw; its shape depends on CheckName.
type CheckDefinition struct {
	ID            string          `json:"id"`
	CheckName     string          `json:"check_name"`
	CheckType     CheckType       `json:"check_type"`
	CheckCriteria json.RawMessage `json:"check_criteria,omitempty"`
	IsActive      bool            `json:"is_active"`
	PolicyType    string          `json:"policy_type"`
	Severity      string          `json:"severity,omitempty"`
}

// CheckResult is one append-only audit row for a (check, policy, run).
type CheckResult struct {
	ID         string      `json:"id"`
	RunID      string      `json:"run_id,omitempty"`
	CheckID    string      `json:"check_id"`
	PolicyID   string      `json:"policy_id"`
	Status     CheckStatus `json:"status"`
	Details    Details     `json:"details"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// Violation is a recorded failure of a check against a specific policy.
type Violation struct {
	ID            string          `json:"id"`
	RunID         string          `json:"run_id,omitempty"`
	PolicyID      string          `json:"policy_id"`
	CheckID       string          `json:"check_id"`
	CheckResultID string          `json:"check_result_id,omitempty"`
	Description   string          `json:"description"`
	Severity      string          `json:"severity"`
	Status        ViolationStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Subscription links a user to the policies they want alerts for.
type Subscription struct {
	PolicyID string `json:"policy_id"`
	UserID   string `json:"user_id"`
}

// Notification is a write-once alert addressed to one user.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	RelatedType string           `json:"related_type"`
	RelatedID   string           `json:"related_id"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewID returns a fresh random identifier for rows created by the engine.
func NewID() string {
	return uuid.New().String()
}

// HighestImpact returns the most severe impact level among changes, or "" when
// changes is empty.
func HighestImpact(changes []Change) ImpactLevel {
	var highest ImpactLevel
	for _, c := range changes {
		if c.ImpactLevel.Rank() > highest.Rank() {
			highest = c.ImpactLevel
		}
	}
	return highest
}
