package metrics

import (
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks monitoring runs.
//
// Metrics:
//   - warden_monitor_runs_total: runs by outcome
//   - warden_monitor_run_duration_seconds: run wall time
type RunMetrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_total",
				Help:      "Total number of monitoring runs by outcome",
			},
			[]string{"outcome"},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of monitoring runs in seconds",
				// A run makes external classifier calls per policy: 100ms to ~30min
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
			},
		),
	}

	registry.MustRegister(rm.runsTotal, rm.runDuration)

	return rm
}

// RecordRun records one run. Skipped runs do not observe a duration.
func (rm *RunMetrics) RecordRun(outcome string, duration time.Duration) {
	rm.runsTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		rm.runDuration.Observe(duration.Seconds())
	}
}
