package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeHealther bool

func (h fakeHealther) Healthy() bool { return bool(h) }

func TestNew_DefaultTimeout(t *testing.T) {
	if c := New(0); c.checkTimeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.checkTimeout)
	}
	if c := New(time.Second); c.checkTimeout != time.Second {
		t.Errorf("timeout = %v, want 1s", c.checkTimeout)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
	}{
		{name: "no checks", checks: nil, wantStatus: "ready"},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"storage":    StoreCheck(fakePinger{}),
				"classifier": ClassifierCheck(fakeHealther(true)),
			},
			wantStatus: "ready",
		},
		{
			name: "store down",
			checks: map[string]CheckFunc{
				"storage":    StoreCheck(fakePinger{err: errors.New("database is locked")}),
				"classifier": ClassifierCheck(fakeHealther(true)),
			},
			wantStatus: "degraded",
		},
		{
			name: "classifier unhealthy",
			checks: map[string]CheckFunc{
				"classifier": ClassifierCheck(fakeHealther(false)),
			},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (%+v)", status.Status, tt.wantStatus, status.Checks)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	block := make(chan struct{})
	defer close(block)

	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-block
		return nil
	})

	status := c.CheckReadiness(context.Background())
	if status.Checks["slow"].Message != ErrCheckTimeout.Error() {
		t.Errorf("expected timeout message, got %+v", status.Checks["slow"])
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("storage", StoreCheck(fakePinger{err: errors.New("down")}))

	mux := http.NewServeMux()
	c.Register(mux, config.HealthConfig{LivenessPath: "/health", ReadinessPath: "/ready"})

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodHead, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if rec.Code != tt.wantCode {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantCode)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("invalid readiness body: %v", err)
	}
	if status.Checks["storage"].Message != "down" {
		t.Errorf("unexpected check result: %+v", status.Checks["storage"])
	}
}

func TestListChecks(t *testing.T) {
	c := New(0)
	c.RegisterCheck("storage", StoreCheck(fakePinger{}))
	c.RegisterCheck("classifier", ClassifierCheck(fakeHealther(true)))

	names := c.ListChecks()
	if len(names) != 2 || names[0] != "classifier" || names[1] != "storage" {
		t.Errorf("ListChecks() = %v", names)
	}
}
