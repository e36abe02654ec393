package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector(enabled bool) *Collector {
	return NewCollector(&config.MetricsConfig{Enabled: enabled}, nil)
}

func TestCollector_RecordRun(t *testing.T) {
	c := newTestCollector(true)

	c.RecordRun("completed", 2*time.Second)
	c.RecordRun("skipped", 0)
	c.RecordRun("completed", time.Second)

	if got := testutil.ToFloat64(c.runMetrics.runsTotal.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runMetrics.runsTotal.WithLabelValues("skipped")); got != 1 {
		t.Errorf("skipped runs = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.runMetrics.runDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := newTestCollector(true)

	c.RecordPolicyCycle("done")
	c.RecordPolicyCycle("errored")
	c.RecordCheckResult("keyword_check", "fail")
	c.RecordViolation("high")
	c.RecordChangeDetection("text_diff")
	c.RecordClassifierFallback("timeout")
	c.RecordNotification("violation", "sent")
	c.RecordNotification("violation", "failed")
	c.RecordEventPublish("violation", "published")
	c.RecordPruned("check_results", 5)
	c.RecordPruned("notifications", 0)
	c.RecordCatalogImport("success")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"cycles done", testutil.ToFloat64(c.policyMetrics.cyclesTotal.WithLabelValues("done")), 1},
		{"check results", testutil.ToFloat64(c.policyMetrics.checkResultsTotal.WithLabelValues("keyword_check", "fail")), 1},
		{"violations", testutil.ToFloat64(c.policyMetrics.violationsTotal.WithLabelValues("high")), 1},
		{"detections", testutil.ToFloat64(c.detectionMetrics.detectionsTotal.WithLabelValues("text_diff")), 1},
		{"fallbacks", testutil.ToFloat64(c.detectionMetrics.fallbacksTotal.WithLabelValues("timeout")), 1},
		{"notifications sent", testutil.ToFloat64(c.notificationMetrics.notificationsTotal.WithLabelValues("violation", "sent")), 1},
		{"notifications failed", testutil.ToFloat64(c.notificationMetrics.notificationsTotal.WithLabelValues("violation", "failed")), 1},
		{"published", testutil.ToFloat64(c.notificationMetrics.publishedTotal.WithLabelValues("violation", "published")), 1},
		{"pruned", testutil.ToFloat64(c.maintenanceMetrics.prunedTotal.WithLabelValues("check_results")), 5},
		{"imports", testutil.ToFloat64(c.maintenanceMetrics.importsTotal.WithLabelValues("success")), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_DisabledAndNil(t *testing.T) {
	c := newTestCollector(false)
	c.RecordRun("completed", time.Second)

	if got := testutil.ToFloat64(c.runMetrics.runsTotal.WithLabelValues("completed")); got != 0 {
		t.Errorf("disabled collector recorded %v runs", got)
	}

	var nilCollector *Collector
	nilCollector.RecordRun("completed", time.Second)
	nilCollector.RecordViolation("high")
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(true)
	c.RecordViolation("critical")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `warden_monitor_violations_total{severity="critical"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}
