package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks per-policy work inside a run.
//
// Metrics:
//   - warden_monitor_policy_cycles_total: finished policy cycles by terminal state
//   - warden_monitor_check_results_total: persisted check results by check and status
//   - warden_monitor_violations_total: persisted violations by severity
type PolicyMetrics struct {
	cyclesTotal       *prometheus.CounterVec
	checkResultsTotal *prometheus.CounterVec
	violationsTotal   *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_cycles_total",
				Help:      "Total number of policy cycles by terminal state",
			},
			[]string{"state"},
		),

		checkResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_results_total",
				Help:      "Total number of persisted check results",
			},
			[]string{"check_name", "status"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "violations_total",
				Help:      "Total number of violations raised",
			},
			[]string{"severity"},
		),
	}

	registry.MustRegister(pm.cyclesTotal, pm.checkResultsTotal, pm.violationsTotal)

	return pm
}

// RecordCycle records a finished policy cycle.
func (pm *PolicyMetrics) RecordCycle(state string) {
	pm.cyclesTotal.WithLabelValues(state).Inc()
}

// RecordCheckResult records a persisted check result. Check names come from
// the check catalog, whose size bounds the label cardinality.
func (pm *PolicyMetrics) RecordCheckResult(checkName, status string) {
	pm.checkResultsTotal.WithLabelValues(checkName, status).Inc()
}

// RecordViolation records a persisted violation.
func (pm *PolicyMetrics) RecordViolation(severity string) {
	pm.violationsTotal.WithLabelValues(severity).Inc()
}
