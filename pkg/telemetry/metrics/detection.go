package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics tracks the change detector.
//
// Metrics:
//   - warden_monitor_change_detections_total: detections by source
//   - warden_monitor_classifier_fallbacks_total: fallbacks to the line differ by reason
type DetectionMetrics struct {
	detectionsTotal *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
}

// NewDetectionMetrics creates and registers detection metrics with the provided registry.
func NewDetectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DetectionMetrics {
	dm := &DetectionMetrics{
		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "change_detections_total",
				Help:      "Total number of change detections by source",
			},
			[]string{"source"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "classifier_fallbacks_total",
				Help:      "Total number of fallbacks from the classifier to the line differ",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(dm.detectionsTotal, dm.fallbacksTotal)

	return dm
}

// RecordDetection records a completed detection.
func (dm *DetectionMetrics) RecordDetection(source string) {
	dm.detectionsTotal.WithLabelValues(source).Inc()
}

// RecordFallback records a fallback.
func (dm *DetectionMetrics) RecordFallback(reason string) {
	dm.fallbacksTotal.WithLabelValues(reason).Inc()
}
