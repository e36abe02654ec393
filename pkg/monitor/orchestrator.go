package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/compliance/checks"
	"mercator-hq/warden/pkg/compliance/detector"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// ChangeDetector finds changes between two policy texts.
type ChangeDetector interface {
	DetectChanges(ctx context.Context, oldText, newText string) ([]compliance.Change, detector.Detection)
}

// CheckEvaluator runs one check definition against a policy text.
type CheckEvaluator interface {
	Evaluate(ctx context.Context, policyText string, def *compliance.CheckDefinition) checks.Result
}

// Notifier fans a domain event out to a policy's subscribers.
type Notifier interface {
	Notify(ctx context.Context, policyID string, kind compliance.EventKind, payload any) int
}

// Config configures an Orchestrator.
type Config struct {
	// Workers is the number of policies processed concurrently.
	// Default: 1 (sequential)
	Workers int

	// NotifyMinImpact is the lowest change impact that triggers a
	// policy_change notification.
	// Default: high
	NotifyMinImpact compliance.ImpactLevel
}

// Dependencies are the collaborators of an Orchestrator. Metrics and Tracer
// may be nil.
type Dependencies struct {
	Store     compliance.MonitorStore
	Detector  ChangeDetector
	Evaluator CheckEvaluator
	Notifier  Notifier
	Metrics   *metrics.Collector
	Tracer    trace.Tracer
}

// Orchestrator runs monitoring cycles over the monitored policies.
type Orchestrator struct {
	store     compliance.MonitorStore
	detector  ChangeDetector
	evaluator CheckEvaluator
	notifier  Notifier
	metrics   *metrics.Collector
	tracer    trace.Tracer
	config    Config
	logger    *slog.Logger

	running atomic.Bool
	now     func() time.Time
}

// New creates an orchestrator.
func New(deps Dependencies, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if !cfg.NotifyMinImpact.Valid() {
		cfg.NotifyMinImpact = compliance.ImpactHigh
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:     deps.Store,
		detector:  deps.Detector,
		evaluator: deps.Evaluator,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		tracer:    tracing.Or(deps.Tracer),
		config:    cfg,
		logger:    logger.With("component", "monitor"),
		now:       time.Now,
	}
}

// Running reports whether a monitoring run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// RunMonitoringCycle processes every monitored policy once. A call made while
// another run is in progress returns immediately with Skipped set. Failures of
// individual policies are reported per policy; only a failure to list the
// policies fails the run.
func (o *Orchestrator) RunMonitoringCycle(ctx context.Context) RunReport {
	report := RunReport{RunID: compliance.NewID(), StartedAt: o.now()}
	ctx = logging.WithRunID(ctx, report.RunID)

	if !o.running.CompareAndSwap(false, true) {
		report.Skipped = true
		o.logger.WarnContext(ctx, "monitoring run skipped, previous run still in progress")
		o.metrics.RecordRun(report.Outcome(), 0)
		return report
	}
	defer o.running.Store(false)

	ctx, span := o.tracer.Start(ctx, "monitor.run", trace.WithAttributes(tracing.RunID(report.RunID)))
	defer span.End()

	o.logger.InfoContext(ctx, "monitoring run started", "workers", o.config.Workers)

	policies, err := o.store.ListMonitoredPolicies(ctx)
	if err != nil {
		report.Err = &RunError{RunID: report.RunID, Cause: err}
		tracing.SetStatus(span, report.Err)
		report.Duration = o.now().Sub(report.StartedAt)
		o.logger.ErrorContext(ctx, "failed to list monitored policies", "error", err)
		o.metrics.RecordRun(report.Outcome(), report.Duration)
		return report
	}

	report.Policies = o.runPolicies(ctx, report.RunID, policies)
	report.Duration = o.now().Sub(report.StartedAt)

	changes, violations, notifications := report.Totals()
	o.logger.InfoContext(ctx, "monitoring run completed",
		"policies", len(report.Policies),
		"errored", report.Errored(),
		"changes", changes,
		"violations", violations,
		"notifications", notifications,
		"duration", report.Duration,
	)
	o.metrics.RecordRun(report.Outcome(), report.Duration)
	span.SetAttributes(
		attribute.Int(tracing.AttrPolicies, len(report.Policies)),
		attribute.Int(tracing.AttrErrored, report.Errored()),
	)
	tracing.SetStatus(span, nil)

	return report
}

// runPolicies fans the policies out to the worker pool. Each policy is owned
// by one worker for its whole cycle; reports keep the input order.
func (o *Orchestrator) runPolicies(ctx context.Context, runID string, policies []*compliance.Policy) []CycleReport {
	reports := make([]CycleReport, len(policies))

	workers := o.config.Workers
	if workers > len(policies) {
		workers = len(policies)
	}
	if workers <= 1 {
		for i, p := range policies {
			reports[i] = o.RunPolicyCycle(ctx, runID, p)
		}
		return reports
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i] = o.RunPolicyCycle(ctx, runID, policies[i])
			}
		}()
	}
	for i := range policies {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return reports
}

// cycle carries the mutable state of one policy cycle.
type cycle struct {
	runID  string
	policy *compliance.Policy
	state  State
	report *CycleReport
}

// RunPolicyCycle runs the state machine for one policy. It never panics and
// never returns an error: failures end the cycle in StateErrored and are
// described by the report.
func (o *Orchestrator) RunPolicyCycle(ctx context.Context, runID string, policy *compliance.Policy) (report CycleReport) {
	start := o.now()
	ctx = logging.WithPolicyID(logging.WithRunID(ctx, runID), policy.ID)

	report = CycleReport{
		PolicyID: policy.ID,
		Results:  make(map[compliance.CheckStatus]int),
	}
	c := &cycle{runID: runID, policy: policy, state: StateStart, report: &report}

	ctx, span := o.tracer.Start(ctx, "monitor.policy_cycle", trace.WithAttributes(
		tracing.RunID(runID),
		tracing.PolicyID(policy.ID),
		attribute.String(tracing.AttrPolicyType, policy.PolicyType),
	))

	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, c, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		report.Duration = o.now().Sub(start)
		o.metrics.RecordPolicyCycle(string(report.State))

		span.SetAttributes(
			attribute.String(tracing.AttrState, string(report.State)),
			attribute.String(tracing.AttrChangeSource, string(report.ChangeSource)),
			attribute.Int(tracing.AttrChanges, report.Changes),
			attribute.Int(tracing.AttrViolations, report.Violations),
			attribute.Int(tracing.AttrNotifications, report.Notifications),
		)
		if report.Err != nil {
			tracing.SetStatus(span, report.Err)
		} else {
			tracing.SetStatus(span, nil)
		}
		span.End()
	}()

	if err := o.step(ctx, c); err != nil {
		o.fail(ctx, c, err)
		return report
	}

	report.State = StateDone
	o.logger.DebugContext(ctx, "policy cycle completed",
		"changes", report.Changes,
		"violations", report.Violations,
		"notifications", report.Notifications,
	)
	return report
}

func (o *Orchestrator) fail(ctx context.Context, c *cycle, err error) {
	c.report.State = StateErrored
	c.report.Err = &CycleError{PolicyID: c.policy.ID, State: c.state, Cause: err}
	o.logger.ErrorContext(ctx, "policy cycle failed",
		"state", c.state,
		"error", err,
	)
}

// step drives the cycle from StateStart to StateChecksEvaluated.
func (o *Orchestrator) step(ctx context.Context, c *cycle) error {
	versions, err := o.store.LatestVersions(ctx, c.policy.ID, 2)
	if err != nil {
		return fmt.Errorf("load versions: %w", err)
	}
	c.report.Versions = len(versions)
	c.state = StateVersionsLoaded

	if len(versions) >= 2 {
		o.detectChanges(ctx, c, versions[1], versions[0])
	}
	c.state = StateChangesDetected

	if len(versions) == 0 {
		o.logger.WarnContext(ctx, "policy has no versions, skipping checks")
		c.state = StateChecksEvaluated
		return nil
	}

	failed, err := o.evaluateChecks(ctx, c, versions[0])
	if err != nil {
		return err
	}
	c.state = StateChecksEvaluated

	o.raiseViolations(ctx, c, failed)
	return nil
}

// detectChanges persists the changes from previous to current and notifies
// subscribers when one of them reaches the notify threshold. A failed change
// write abandons the notification for this cycle.
func (o *Orchestrator) detectChanges(ctx context.Context, c *cycle, previous, current *compliance.PolicyVersion) {
	changes, detection := o.detector.DetectChanges(ctx, previous.Content, current.Content)
	c.report.ChangeSource = detection.Source
	c.report.FallbackReason = detection.FallbackReason
	if len(changes) == 0 {
		return
	}

	now := o.now()
	for i := range changes {
		ch := &changes[i]
		ch.ID = compliance.NewID()
		ch.PolicyID = c.policy.ID
		ch.VersionID = current.ID
		if ch.Source == "" {
			ch.Source = detection.Source
		}
		ch.DetectedAt = now

		if err := o.store.SaveChange(ctx, ch); err != nil {
			c.report.WriteFailures++
			o.logger.ErrorContext(ctx, "failed to persist change, skipping change notification",
				"version_id", current.ID,
				"change_id", ch.ID,
				"error", err,
			)
			return
		}
		c.report.Changes++
	}

	highest := compliance.HighestImpact(changes)
	if !highest.AtLeast(o.config.NotifyMinImpact) {
		o.logger.DebugContext(ctx, "changes below notify threshold",
			"changes", len(changes),
			"highest_impact", highest,
			"threshold", o.config.NotifyMinImpact,
		)
		return
	}
	c.report.Notifications += o.notifier.Notify(ctx, c.policy.ID, compliance.EventPolicyChange, changes)
}

// pendingViolation pairs a persisted failing result with its definition.
type pendingViolation struct {
	check  *compliance.CheckDefinition
	result *compliance.CheckResult
}

// evaluateChecks runs and persists every active check for the policy type.
// It returns the persisted failing results. Only loading the checks can fail
// the cycle; a failed result write abandons that check alone.
func (o *Orchestrator) evaluateChecks(ctx context.Context, c *cycle, current *compliance.PolicyVersion) ([]pendingViolation, error) {
	defs, err := o.store.ActiveChecks(ctx, c.policy.PolicyType)
	if err != nil {
		return nil, fmt.Errorf("load active checks: %w", err)
	}

	var failed []pendingViolation
	for _, def := range defs {
		res := o.evaluate(ctx, current.Content, def)
		status, details := res.Record()
		if res.Err != nil {
			o.logger.WarnContext(ctx, "check evaluation errored",
				"check_id", def.ID,
				"check_name", def.CheckName,
				"kind", res.Err.Kind,
				"error", res.Err,
			)
		}

		result := &compliance.CheckResult{
			ID:         compliance.NewID(),
			RunID:      c.runID,
			CheckID:    def.ID,
			PolicyID:   c.policy.ID,
			Status:     status,
			Details:    details,
			ExecutedAt: o.now(),
		}
		if err := o.store.SaveCheckResult(ctx, result); err != nil {
			c.report.WriteFailures++
			o.logger.ErrorContext(ctx, "failed to persist check result",
				"check_id", def.ID,
				"error", err,
			)
			continue
		}

		c.report.Results[status]++
		o.metrics.RecordCheckResult(def.CheckName, string(status))

		if status == compliance.StatusFail {
			failed = append(failed, pendingViolation{check: def, result: result})
		}
	}

	return failed, nil
}

// evaluate runs one check and turns a panic in the evaluator into an
// errored result, so the check is still recorded and its siblings still run.
func (o *Orchestrator) evaluate(ctx context.Context, text string, def *compliance.CheckDefinition) (res checks.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = checks.Result{Err: &checks.EvaluationError{
				CheckID:   def.ID,
				CheckName: def.CheckName,
				Kind:      checks.KindPanic,
				Cause:     fmt.Errorf("%w: %v", ErrPanic, r),
			}}
		}
	}()
	return o.evaluator.Evaluate(ctx, text, def)
}

// raiseViolations creates one violation per persisted failing result and
// notifies the policy's subscribers of each.
func (o *Orchestrator) raiseViolations(ctx context.Context, c *cycle, failed []pendingViolation) {
	for _, f := range failed {
		v := compliance.NewViolation(c.policy, f.check, f.result)
		if err := o.store.SaveViolation(ctx, v); err != nil {
			c.report.WriteFailures++
			o.logger.ErrorContext(ctx, "failed to persist violation",
				"check_id", f.check.ID,
				"check_result_id", f.result.ID,
				"error", err,
			)
			continue
		}

		c.report.Violations++
		o.metrics.RecordViolation(v.Severity)
		c.report.Notifications += o.notifier.Notify(ctx, c.policy.ID, compliance.EventViolation, v)
	}
}

// ConfigFrom builds the orchestrator config from the validated monitor
// section.
func ConfigFrom(mc config.MonitorConfig) Config {
	impact, _ := compliance.ParseImpactLevel(mc.NotifyMinImpact)
	return Config{Workers: mc.Workers, NotifyMinImpact: impact}
}
