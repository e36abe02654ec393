package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/warden/pkg/config"
)

// LivenessHandler returns the handler for the liveness probe.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2025-11-20T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns the handler for the readiness probe. It answers
// 503 when any registered check is unhealthy.
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "storage": {"status": "ok"},
//	        "classifier": {"status": "unhealthy", "message": "3 consecutive classifier failures"}
//	    },
//	    "timestamp": "2025-11-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status Status) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}

// Register mounts the liveness and readiness handlers on mux at the paths
// from cfg.
func (c *Checker) Register(mux *http.ServeMux, cfg config.HealthConfig) {
	mux.HandleFunc(cfg.LivenessPath, c.LivenessHandler())
	mux.HandleFunc(cfg.ReadinessPath, c.ReadinessHandler())
}

// Pinger is implemented by stores that can verify their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck reports the store unhealthy when Ping fails.
func StoreCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// Healther is implemented by the classifier backends.
type Healther interface {
	Healthy() bool
}

// ClassifierCheck reports the classifier unhealthy after it has failed
// several requests in a row.
func ClassifierCheck(h Healther) CheckFunc {
	return func(ctx context.Context) error {
		if !h.Healthy() {
			return errors.New("3 consecutive classifier failures")
		}
		return nil
	}
}
