package compliance

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// Query filters the history tables (check results, violations, changes and
// notifications). Fields that do not apply to a table are ignored.
type Query struct {
	PolicyID string `json:"policy_id,omitempty"`
	CheckID  string `json:"check_id,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`

	// Status matches CheckResult.Status or Violation.Status.
	Status string `json:"status,omitempty"`

	Since *time.Time `json:"since,omitempty"` // Inclusive
	Until *time.Time `json:"until,omitempty"` // Exclusive

	// Limit caps the number of rows returned, newest first. 0 means the
	// backend default.
	Limit int `json:"limit,omitempty"`
}

// MonitorStore is the part of the persistent store the monitoring cycle needs.
// Reads of versions are ordered by creation time, newest first.
type MonitorStore interface {
	ListMonitoredPolicies(ctx context.Context) ([]*Policy, error)
	LatestVersions(ctx context.Context, policyID string, n int) ([]*PolicyVersion, error)
	ActiveChecks(ctx context.Context, policyType string) ([]*CheckDefinition, error)
	Subscriptions(ctx context.Context, policyID string) ([]*Subscription, error)

	SaveChange(ctx context.Context, change *Change) error
	SaveCheckResult(ctx context.Context, result *CheckResult) error
	SaveViolation(ctx context.Context, violation *Violation) error
	SaveNotification(ctx context.Context, notification *Notification) error
}

// CatalogStore receives the externally owned rows imported from a catalog file.
// All operations are idempotent.
type CatalogStore interface {
	UpsertPolicy(ctx context.Context, policy *Policy) error
	// AddVersion inserts a version unless one with the same ID already exists.
	AddVersion(ctx context.Context, version *PolicyVersion) error
	UpsertCheck(ctx context.Context, check *CheckDefinition) error
	AddSubscription(ctx context.Context, sub *Subscription) error
}

// HistoryStore answers reporting queries and enforces retention.
type HistoryStore interface {
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	ListCheckResults(ctx context.Context, q *Query) ([]*CheckResult, error)
	ListViolations(ctx context.Context, q *Query) ([]*Violation, error)
	ListChanges(ctx context.Context, q *Query) ([]*Change, error)
	ListNotifications(ctx context.Context, q *Query) ([]*Notification, error)
	CountViolations(ctx context.Context, q *Query) (int64, error)

	// PruneCheckResults deletes check results executed before the cutoff.
	PruneCheckResults(ctx context.Context, before time.Time) (int64, error)
	// PruneNotifications deletes notifications created before the cutoff.
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full persistent store. Implementations must be safe for
// concurrent use.
type Store interface {
	MonitorStore
	CatalogStore
	HistoryStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
