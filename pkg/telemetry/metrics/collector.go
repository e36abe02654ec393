package metrics

import (
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric Warden exports. All Record methods
// are safe on a nil *Collector and when metrics are disabled, so components
// can take an optional collector without guarding each call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics          *RunMetrics
	policyMetrics       *PolicyMetrics
	detectionMetrics    *DetectionMetrics
	notificationMetrics *NotificationMetrics
	maintenanceMetrics  *MaintenanceMetrics
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh registry is created, which keeps tests independent.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	http.Handle("/metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:              cfg,
		registry:            registry,
		runMetrics:          NewRunMetrics(cfg, registry),
		policyMetrics:       NewPolicyMetrics(cfg, registry),
		detectionMetrics:    NewDetectionMetrics(cfg, registry),
		notificationMetrics: NewNotificationMetrics(cfg, registry),
		maintenanceMetrics:  NewMaintenanceMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRun records a finished monitoring run.
//
// Parameters:
//   - outcome: "completed", "failed" (policy listing failed) or "skipped"
//   - duration: wall time of the run; ignored for skipped runs
func (c *Collector) RecordRun(outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.runMetrics.RecordRun(outcome, duration)
}

// RecordPolicyCycle records the terminal state of one policy cycle
// ("done" or "errored").
func (c *Collector) RecordPolicyCycle(state string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordCycle(state)
}

// RecordCheckResult records one persisted check result.
func (c *Collector) RecordCheckResult(checkName, status string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordCheckResult(checkName, status)
}

// RecordViolation records one persisted violation.
func (c *Collector) RecordViolation(severity string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordViolation(severity)
}

// RecordChangeDetection records which path produced a change set
// ("classifier" or "text_diff").
func (c *Collector) RecordChangeDetection(source string) {
	if !c.enabled() {
		return
	}
	c.detectionMetrics.RecordDetection(source)
}

// RecordClassifierFallback records why the change detector fell back to the
// line differ ("no_classifier", "timeout", "parse", ...).
func (c *Collector) RecordClassifierFallback(reason string) {
	if !c.enabled() {
		return
	}
	c.detectionMetrics.RecordFallback(reason)
}

// RecordNotification records one notification write attempt.
//
// Parameters:
//   - kind: "policy_change" or "violation"
//   - outcome: "sent" or "failed"
func (c *Collector) RecordNotification(kind, outcome string) {
	if !c.enabled() {
		return
	}
	c.notificationMetrics.RecordNotification(kind, outcome)
}

// RecordEventPublish records one event bus publish ("published" or "failed").
func (c *Collector) RecordEventPublish(kind, outcome string) {
	if !c.enabled() {
		return
	}
	c.notificationMetrics.RecordPublish(kind, outcome)
}

// RecordPruned records rows removed by retention from table.
func (c *Collector) RecordPruned(table string, rows int64) {
	if !c.enabled() {
		return
	}
	c.maintenanceMetrics.RecordPruned(table, rows)
}

// RecordCatalogImport records a catalog import ("success", "invalid" or "error").
func (c *Collector) RecordCatalogImport(outcome string) {
	if !c.enabled() {
		return
	}
	c.maintenanceMetrics.RecordImport(outcome)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
