// Package retention prunes old monitoring history.
//
// Check results and notifications older than their configured retention
// period are deleted. Violations and detected changes are the audit record
// and are never pruned. A retention period of 0 keeps rows forever.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// Table names used in logs and metrics.
const (
	TableCheckResults  = "check_results"
	TableNotifications = "notifications"
)

// Store is the part of the persistent store the pruner uses.
type Store interface {
	PruneCheckResults(ctx context.Context, before time.Time) (int64, error)
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)
}

// Error reports a failed prune of one table.
type Error struct {
	Table         string // Table being pruned
	RetentionDays int    // Configured retention period
	Cause         error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("retention error [table=%s, retention_days=%d]: %v", e.Table, e.RetentionDays, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Result counts the rows deleted by one Prune call.
type Result struct {
	CheckResults  int64 `json:"check_results"`
	Notifications int64 `json:"notifications"`
}

// Total returns the number of rows deleted across tables.
func (r Result) Total() int64 {
	return r.CheckResults + r.Notifications
}

// Pruner enforces the retention periods.
type Pruner struct {
	store   Store
	config  config.RetentionConfig
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner. collector may be nil.
func NewPruner(store Store, cfg config.RetentionConfig, collector *metrics.Collector, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:   store,
		config:  cfg,
		metrics: collector,
		logger:  logger.With("component", "retention"),
		now:     time.Now,
	}
}

// Prune deletes expired check results, then expired notifications. A failure
// on the first table still lets the second run; the first error is returned
// alongside the partial counts.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	var res Result
	var firstErr error

	n, err := p.pruneTable(ctx, TableCheckResults, p.config.CheckResultDays, p.store.PruneCheckResults)
	res.CheckResults = n
	if err != nil {
		firstErr = err
	}

	n, err = p.pruneTable(ctx, TableNotifications, p.config.NotificationDays, p.store.PruneNotifications)
	res.Notifications = n
	if err != nil && firstErr == nil {
		firstErr = err
	}

	if res.Total() == 0 {
		p.logger.DebugContext(ctx, "no rows pruned",
			"check_result_days", p.config.CheckResultDays,
			"notification_days", p.config.NotificationDays,
		)
	} else {
		p.logger.InfoContext(ctx, "retention pruning completed",
			"check_results", res.CheckResults,
			"notifications", res.Notifications,
		)
	}

	return res, firstErr
}

func (p *Pruner) pruneTable(ctx context.Context, table string, days int, prune func(context.Context, time.Time) (int64, error)) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	cutoff := p.now().AddDate(0, 0, -days)
	p.logger.DebugContext(ctx, "pruning by age", "table", table, "cutoff_time", cutoff, "retention_days", days)

	n, err := prune(ctx, cutoff)
	if err != nil {
		p.logger.ErrorContext(ctx, "pruning failed", "table", table, "error", err)
		return 0, &Error{Table: table, RetentionDays: days, Cause: err}
	}

	p.metrics.RecordPruned(table, n)
	return n, nil
}
