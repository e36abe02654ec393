// Package schedule drives the monitoring engine from cron expressions: an
// hourly job runs a monitoring cycle and a daily job prunes old history and
// logs a compliance summary.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/monitor"
	"mercator-hq/warden/pkg/report"
	"mercator-hq/warden/pkg/retention"
)

// Job names used in logs and NextRuns.
const (
	JobHourly = "hourly"
	JobDaily  = "daily"
)

// summaryWindow is how far back the daily summary looks.
const summaryWindow = 24 * time.Hour

// Runner runs one monitoring cycle over every monitored policy.
type Runner interface {
	RunMonitoringCycle(ctx context.Context) monitor.RunReport
}

// Pruner deletes history older than the retention window.
type Pruner interface {
	Prune(ctx context.Context) (retention.Result, error)
}

// Scheduler runs the hourly and daily jobs on their cron schedules.
type Scheduler struct {
	runner  Runner
	pruner  Pruner
	reports report.Store
	config  config.MonitorConfig

	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a scheduler. pruner and reports may be nil, in which case the
// daily job skips pruning or the summary respectively.
func New(runner Runner, pruner Pruner, reports report.Store, cfg config.MonitorConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:  runner,
		pruner:  pruner,
		reports: reports,
		config:  cfg,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		logger:  logger.With("component", "monitor.scheduler"),
		now:     time.Now,
	}
}

// Start validates and registers the configured jobs and starts the cron
// loop. A job with an empty schedule is not registered; when both are empty
// the scheduler does nothing. The scheduler stops when ctx is cancelled.
//
// Common cron expressions:
//   - "0 * * * *"    - Hourly, on the hour
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/15 * * * *" - Every 15 minutes
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{JobHourly, s.config.HourlySchedule, s.RunHourly},
		{JobDaily, s.config.DailySchedule, s.RunDaily},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if _, err := cron.ParseStandard(job.schedule); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", job.name, job.schedule, err)
		}
	}

	for _, job := range jobs {
		if job.schedule == "" {
			s.logger.Info("job schedule not configured, skipping", "job", job.name)
			continue
		}
		run := job.run
		id, err := s.cron.AddFunc(job.schedule, func() { run(ctx) })
		if err != nil {
			s.removeAll()
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.entries[job.name] = id
	}

	if len(s.entries) == 0 {
		s.logger.Info("no schedules configured, scheduler not started")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started",
		"hourly_schedule", s.config.HourlySchedule,
		"daily_schedule", s.config.DailySchedule,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) removeAll() {
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// RunHourly runs one monitoring cycle.
func (s *Scheduler) RunHourly(ctx context.Context) {
	s.logger.Debug("starting scheduled monitoring cycle")
	rep := s.runner.RunMonitoringCycle(ctx)
	if rep.Skipped {
		return
	}
	if rep.Err != nil {
		s.logger.Error("scheduled monitoring cycle failed", "run_id", rep.RunID, "error", rep.Err)
	}
}

// RunDaily prunes old history and logs the compliance summary of the last
// day. A pruning failure does not prevent the summary.
func (s *Scheduler) RunDaily(ctx context.Context) {
	s.logger.Info("starting daily batch")

	if s.pruner != nil {
		res, err := s.pruner.Prune(ctx)
		if err != nil {
			s.logger.Error("scheduled pruning failed", "error", err)
		} else if res.Total() > 0 {
			s.logger.Info("scheduled pruning completed",
				"check_results", res.CheckResults,
				"notifications", res.Notifications,
			)
		} else {
			s.logger.Debug("scheduled pruning completed, no rows deleted")
		}
	}

	if s.reports == nil {
		return
	}
	now := s.now()
	summary, err := report.Build(ctx, s.reports, now.Add(-summaryWindow), now)
	if err != nil {
		s.logger.Error("failed to build compliance summary", "error", err)
		return
	}
	s.logger.Info("daily compliance summary", summary.LogArgs()...)
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRuns returns the next fire time of each registered job.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		next[name] = s.cron.Entry(id).Next
	}
	return next
}
