// Package report builds read-only views over the monitoring history: the
// daily compliance summary and the per-policy status shown by the CLI.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"mercator-hq/warden/pkg/compliance"
)

// Store is the part of the persistent store reports read.
type Store interface {
	ListMonitoredPolicies(ctx context.Context) ([]*compliance.Policy, error)
	GetPolicy(ctx context.Context, id string) (*compliance.Policy, error)
	ListCheckResults(ctx context.Context, q *compliance.Query) ([]*compliance.CheckResult, error)
	ListViolations(ctx context.Context, q *compliance.Query) ([]*compliance.Violation, error)
	CountViolations(ctx context.Context, q *compliance.Query) (int64, error)
}

// summaryResultLimit bounds the results scanned per policy for a summary.
const summaryResultLimit = 1000

// PolicySummary is one policy's line in a Summary.
type PolicySummary struct {
	PolicyID       string                         `json:"policy_id"`
	Name           string                         `json:"name,omitempty"`
	Results        map[compliance.CheckStatus]int `json:"results"`
	OpenViolations int64                          `json:"open_violations"`
}

// Summary aggregates check results since a point in time and the currently
// open violations of every monitored policy.
type Summary struct {
	GeneratedAt    time.Time                      `json:"generated_at"`
	Since          time.Time                      `json:"since"`
	Results        map[compliance.CheckStatus]int `json:"results"`
	OpenViolations int64                          `json:"open_violations"`
	Policies       []PolicySummary                `json:"policies"`
}

// Build computes the summary for results executed at or after since.
func Build(ctx context.Context, store Store, since, now time.Time) (*Summary, error) {
	policies, err := store.ListMonitoredPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitored policies: %w", err)
	}

	s := &Summary{
		GeneratedAt: now,
		Since:       since,
		Results:     make(map[compliance.CheckStatus]int),
		Policies:    make([]PolicySummary, 0, len(policies)),
	}

	for _, p := range policies {
		results, err := store.ListCheckResults(ctx, &compliance.Query{PolicyID: p.ID, Since: &since, Limit: summaryResultLimit})
		if err != nil {
			return nil, fmt.Errorf("list results for %s: %w", p.ID, err)
		}
		open, err := store.CountViolations(ctx, &compliance.Query{PolicyID: p.ID, Status: string(compliance.ViolationOpen)})
		if err != nil {
			return nil, fmt.Errorf("count violations for %s: %w", p.ID, err)
		}

		ps := PolicySummary{PolicyID: p.ID, Name: p.Name, Results: make(map[compliance.CheckStatus]int), OpenViolations: open}
		for _, r := range results {
			ps.Results[r.Status]++
			s.Results[r.Status]++
		}
		s.OpenViolations += open
		s.Policies = append(s.Policies, ps)
	}

	return s, nil
}

// LogArgs flattens the summary into slog key/value pairs.
func (s *Summary) LogArgs() []any {
	return []any{
		"policies", len(s.Policies),
		"since", s.Since,
		"pass", s.Results[compliance.StatusPass],
		"fail", s.Results[compliance.StatusFail],
		"pending", s.Results[compliance.StatusPending],
		"error", s.Results[compliance.StatusError],
		"open_violations", s.OpenViolations,
	}
}

// Headers implements cli.Tabular.
func (s *Summary) Headers() []string {
	return []string{"POLICY", "PASS", "FAIL", "PENDING", "ERROR", "OPEN VIOLATIONS"}
}

// Rows implements cli.Tabular.
func (s *Summary) Rows() [][]string {
	rows := make([][]string, 0, len(s.Policies))
	for _, p := range s.Policies {
		rows = append(rows, []string{
			p.PolicyID,
			strconv.Itoa(p.Results[compliance.StatusPass]),
			strconv.Itoa(p.Results[compliance.StatusFail]),
			strconv.Itoa(p.Results[compliance.StatusPending]),
			strconv.Itoa(p.Results[compliance.StatusError]),
			strconv.FormatInt(p.OpenViolations, 10),
		})
	}
	return rows
}

// PolicyStatus is the recent history of one policy.
type PolicyStatus struct {
	Policy         *compliance.Policy        `json:"policy"`
	RecentResults  []*compliance.CheckResult `json:"recent_results"`
	OpenViolations []*compliance.Violation   `json:"open_violations"`
}

// Status loads the latest limit check results and the open violations of a
// policy. A missing policy returns an error wrapping compliance.ErrNotFound.
func Status(ctx context.Context, store Store, policyID string, limit int) (*PolicyStatus, error) {
	p, err := store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	results, err := store.ListCheckResults(ctx, &compliance.Query{PolicyID: policyID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	violations, err := store.ListViolations(ctx, &compliance.Query{PolicyID: policyID, Status: string(compliance.ViolationOpen)})
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}

	return &PolicyStatus{Policy: p, RecentResults: results, OpenViolations: violations}, nil
}

// Headers implements cli.Tabular.
func (s *PolicyStatus) Headers() []string {
	return []string{"KIND", "ID", "CHECK", "STATUS", "AT", "DETAIL"}
}

// Rows implements cli.Tabular. Open violations come first, then results.
func (s *PolicyStatus) Rows() [][]string {
	rows := make([][]string, 0, len(s.OpenViolations)+len(s.RecentResults))

	violations := append([]*compliance.Violation(nil), s.OpenViolations...)
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].CreatedAt.After(violations[j].CreatedAt) })
	for _, v := range violations {
		rows = append(rows, []string{
			"violation", v.ID, v.CheckID, v.Severity, v.CreatedAt.Format(time.RFC3339), v.Description,
		})
	}

	for _, r := range s.RecentResults {
		detail := r.Details.Message()
		if detail == "" {
			if msg, ok := r.Details["error"].(string); ok {
				detail = msg
			}
		}
		rows = append(rows, []string{
			"result", r.ID, r.CheckID, string(r.Status), r.ExecutedAt.Format(time.RFC3339), detail,
		})
	}
	return rows
}
