package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks notification fan-out and event publishing.
//
// Metrics:
//   - warden_monitor_notifications_total: notification writes by kind and outcome
//   - warden_monitor_events_published_total: event bus publishes by kind and outcome
type NotificationMetrics struct {
	notificationsTotal *prometheus.CounterVec
	publishedTotal     *prometheus.CounterVec
}

// NewNotificationMetrics creates and registers notification metrics with the provided registry.
func NewNotificationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *NotificationMetrics {
	nm := &NotificationMetrics{
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "notifications_total",
				Help:      "Total number of notification writes",
			},
			[]string{"kind", "outcome"},
		),

		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_published_total",
				Help:      "Total number of domain events published to the event bus",
			},
			[]string{"kind", "outcome"},
		),
	}

	registry.MustRegister(nm.notificationsTotal, nm.publishedTotal)

	return nm
}

// RecordNotification records a notification write.
func (nm *NotificationMetrics) RecordNotification(kind, outcome string) {
	nm.notificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPublish records an event publish.
func (nm *NotificationMetrics) RecordPublish(kind, outcome string) {
	nm.publishedTotal.WithLabelValues(kind, outcome).Inc()
}
