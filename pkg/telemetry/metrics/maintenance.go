package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceMetrics tracks retention pruning and catalog imports.
//
// Metrics:
//   - warden_monitor_pruned_rows_total: rows deleted by retention per table
//   - warden_monitor_catalog_imports_total: catalog imports by outcome
type MaintenanceMetrics struct {
	prunedTotal  *prometheus.CounterVec
	importsTotal *prometheus.CounterVec
}

// NewMaintenanceMetrics creates and registers maintenance metrics with the provided registry.
func NewMaintenanceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *MaintenanceMetrics {
	mm := &MaintenanceMetrics{
		prunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pruned_rows_total",
				Help:      "Total number of history rows deleted by retention",
			},
			[]string{"table"},
		),

		importsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "catalog_imports_total",
				Help:      "Total number of catalog imports by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(mm.prunedTotal, mm.importsTotal)

	return mm
}

// RecordPruned adds rows to the pruned counter for table.
func (mm *MaintenanceMetrics) RecordPruned(table string, rows int64) {
	if rows <= 0 {
		return
	}
	mm.prunedTotal.WithLabelValues(table).Add(float64(rows))
}

// RecordImport records a catalog import.
func (mm *MaintenanceMetrics) RecordImport(outcome string) {
	mm.importsTotal.WithLabelValues(outcome).Inc()
}
