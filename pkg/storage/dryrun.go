package storage

import (
	"context"
	"sync"
	"time"

	"mercator-hq/warden/pkg/compliance"
)

// DryRun wraps a store so reads pass through and writes are discarded. It
// counts the discarded writes per operation so a dry run can report what it
// would have persisted.
type DryRun struct {
	compliance.Store

	mu        sync.Mutex
	discarded map[string]int
}

// NewDryRun wraps store.
func NewDryRun(store compliance.Store) *DryRun {
	return &DryRun{Store: store, discarded: make(map[string]int)}
}

// Discarded returns a copy of the per-operation discard counts.
func (d *DryRun) Discarded() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]int, len(d.discarded))
	for op, n := range d.discarded {
		out[op] = n
	}
	return out
}

func (d *DryRun) discard(op string) {
	d.mu.Lock()
	d.discarded[op]++
	d.mu.Unlock()
}

func (d *DryRun) SaveChange(ctx context.Context, c *compliance.Change) error {
	d.discard("save_change")
	return nil
}

func (d *DryRun) SaveCheckResult(ctx context.Context, r *compliance.CheckResult) error {
	d.discard("save_check_result")
	return nil
}

func (d *DryRun) SaveViolation(ctx context.Context, v *compliance.Violation) error {
	d.discard("save_violation")
	return nil
}

func (d *DryRun) SaveNotification(ctx context.Context, n *compliance.Notification) error {
	d.discard("save_notification")
	return nil
}

func (d *DryRun) UpsertPolicy(ctx context.Context, p *compliance.Policy) error {
	d.discard("upsert_policy")
	return nil
}

func (d *DryRun) AddVersion(ctx context.Context, v *compliance.PolicyVersion) error {
	d.discard("add_version")
	return nil
}

func (d *DryRun) UpsertCheck(ctx context.Context, c *compliance.CheckDefinition) error {
	d.discard("upsert_check")
	return nil
}

func (d *DryRun) AddSubscription(ctx context.Context, s *compliance.Subscription) error {
	d.discard("add_subscription")
	return nil
}

func (d *DryRun) PruneCheckResults(ctx context.Context, before time.Time) (int64, error) {
	d.discard("prune_check_results")
	return 0, nil
}

func (d *DryRun) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	d.discard("prune_notifications")
	return 0, nil
}
