package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/warden/pkg/compliance"
)

// Memory implements compliance.Store in process memory. Rows are copied on
// the way in and out so callers cannot mutate stored state. It is meant for
// tests and for the "memory" driver of short-lived dry runs.
type Memory struct {
	mu sync.RWMutex

	policies      map[string]*compliance.Policy
	versions      map[string]*compliance.PolicyVersion
	checks        map[string]*compliance.CheckDefinition
	subscriptions map[string]map[string]bool

	changes       []*compliance.Change
	results       []*compliance.CheckResult
	violations    []*compliance.Violation
	notifications []*compliance.Notification

	closed bool
}

var _ compliance.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		policies:      make(map[string]*compliance.Policy),
		versions:      make(map[string]*compliance.PolicyVersion),
		checks:        make(map[string]*compliance.CheckDefinition),
		subscriptions: make(map[string]map[string]bool),
	}
}

// Ping fails once the store is closed.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return compliance.NewStorageError("memory", "ping", fmt.Errorf("store closed"))
	}
	return nil
}

// Close marks the store closed. Data is kept for inspection.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) ListMonitoredPolicies(ctx context.Context) ([]*compliance.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*compliance.Policy
	for _, p := range m.policies {
		if p.MonitoringEnabled {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetPolicy(ctx context.Context, id string) (*compliance.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, compliance.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) LatestVersions(ctx context.Context, policyID string, n int) ([]*compliance.PolicyVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*compliance.PolicyVersion
	for _, v := range m.versions {
		if v.PolicyID == policyID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) ActiveChecks(ctx context.Context, policyType string) ([]*compliance.CheckDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*compliance.CheckDefinition
	for _, d := range m.checks {
		if d.IsActive && d.PolicyType == policyType {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Subscriptions(ctx context.Context, policyID string) ([]*compliance.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*compliance.Subscription
	for user := range m.subscriptions[policyID] {
		out = append(out, &compliance.Subscription{PolicyID: policyID, UserID: user})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) SaveChange(ctx context.Context, c *compliance.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.changes = append(m.changes, &cp)
	return nil
}

func (m *Memory) SaveCheckResult(ctx context.Context, r *compliance.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *Memory) SaveViolation(ctx context.Context, v *compliance.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.violations = append(m.violations, &cp)
	return nil
}

func (m *Memory) SaveNotification(ctx context.Context, n *compliance.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *Memory) UpsertPolicy(ctx context.Context, p *compliance.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *Memory) AddVersion(ctx context.Context, v *compliance.PolicyVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[v.ID]; ok {
		return nil
	}
	cp := *v
	m.versions[v.ID] = &cp
	return nil
}

func (m *Memory) UpsertCheck(ctx context.Context, d *compliance.CheckDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.checks[d.ID] = &cp
	return nil
}

func (m *Memory) AddSubscription(ctx context.Context, sub *compliance.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users, ok := m.subscriptions[sub.PolicyID]
	if !ok {
		users = make(map[string]bool)
		m.subscriptions[sub.PolicyID] = users
	}
	users[sub.UserID] = true
	return nil
}

func (m *Memory) ListCheckResults(ctx context.Context, q *compliance.Query) ([]*compliance.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*compliance.CheckResult{}
	for _, r := range m.results {
		if matches(q, resultColumns, fields{policy: r.PolicyID, check: r.CheckID, run: r.RunID, status: string(r.Status), at: r.ExecutedAt}) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return limit(out, q), nil
}

func (m *Memory) ListViolations(ctx context.Context, q *compliance.Query) ([]*compliance.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*compliance.Violation{}
	for _, v := range m.violations {
		if matches(q, violationColumns, fields{policy: v.PolicyID, check: v.CheckID, run: v.RunID, status: string(v.Status), at: v.CreatedAt}) {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, q), nil
}

func (m *Memory) ListChanges(ctx context.Context, q *compliance.Query) ([]*compliance.Change, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*compliance.Change{}
	for _, c := range m.changes {
		if matches(q, changeColumns, fields{policy: c.PolicyID, at: c.DetectedAt}) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return limit(out, q), nil
}

func (m *Memory) ListNotifications(ctx context.Context, q *compliance.Query) ([]*compliance.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*compliance.Notification{}
	for _, n := range m.notifications {
		if matches(q, notificationColumns, fields{user: n.UserID, at: n.CreatedAt}) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, q), nil
}

func (m *Memory) CountViolations(ctx context.Context, q *compliance.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, v := range m.violations {
		if matches(q, violationColumns, fields{policy: v.PolicyID, check: v.CheckID, run: v.RunID, status: string(v.Status), at: v.CreatedAt}) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) PruneCheckResults(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.results[:0]
	for _, r := range m.results {
		if !r.ExecutedAt.Before(before) {
			kept = append(kept, r)
		}
	}
	pruned := int64(len(m.results) - len(kept))
	m.results = kept
	return pruned, nil
}

func (m *Memory) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if !n.CreatedAt.Before(before) {
			kept = append(kept, n)
		}
	}
	pruned := int64(len(m.notifications) - len(kept))
	m.notifications = kept
	return pruned, nil
}

// fields are the filterable values of one row.
type fields struct {
	policy, check, run, user, status string
	at                               time.Time
}

// matches applies q the way buildWhere does for the SQL backend: filters on
// columns the table lacks are ignored.
func matches(q *compliance.Query, cols columns, f fields) bool {
	if q == nil {
		return true
	}
	eq := func(column, want, got string) bool {
		return column == "" || want == "" || want == got
	}
	if !eq(cols.policy, q.PolicyID, f.policy) ||
		!eq(cols.check, q.CheckID, f.check) ||
		!eq(cols.run, q.RunID, f.run) ||
		!eq(cols.user, q.UserID, f.user) ||
		!eq(cols.status, q.Status, f.status) {
		return false
	}
	if q.Since != nil && f.at.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !f.at.Before(*q.Until) {
		return false
	}
	return true
}

func limit[T any](rows []T, q *compliance.Query) []T {
	n := defaultLimit
	if q != nil && q.Limit > 0 {
		n = q.Limit
	}
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
