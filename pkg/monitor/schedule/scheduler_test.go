package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/monitor"
	"mercator-hq/warden/pkg/retention"
	"mercator-hq/warden/pkg/storage"
	"mercator-hq/warden/pkg/telemetry/logging"
)

type fakeRunner struct {
	calls atomic.Int32
}

func (r *fakeRunner) RunMonitoringCycle(ctx context.Context) monitor.RunReport {
	r.calls.Add(1)
	return monitor.RunReport{RunID: "run-1"}
}

type fakePruner struct {
	calls  int
	result retention.Result
	err    error
}

func (p *fakePruner) Prune(ctx context.Context) (retention.Result, error) {
	p.calls++
	return p.result, p.err
}

func discard() *slog.Logger { return logging.Discard() }

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		hourly      string
		daily       string
		wantRunning bool
		wantJobs    []string
		wantError   bool
	}{
		{
			name:        "both schedules",
			hourly:      "0 * * * *",
			daily:       "0 3 * * *",
			wantRunning: true,
			wantJobs:    []string{JobHourly, JobDaily},
		},
		{
			name:        "hourly only",
			hourly:      "*/15 * * * *",
			wantRunning: true,
			wantJobs:    []string{JobHourly},
		},
		{
			name:        "daily only",
			daily:       "0 3 * * *",
			wantRunning: true,
			wantJobs:    []string{JobDaily},
		},
		{
			name: "empty schedules - no error, not running",
		},
		{
			name:      "invalid hourly schedule",
			hourly:    "invalid cron",
			daily:     "0 3 * * *",
			wantError: true,
		},
		{
			name:      "invalid daily schedule",
			hourly:    "0 * * * *",
			daily:     "61 * * * *",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MonitorConfig{HourlySchedule: tt.hourly, DailySchedule: tt.daily}
			s := New(&fakeRunner{}, nil, nil, cfg, discard())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			defer s.Stop()

			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			next := s.NextRuns()
			if len(next) != len(tt.wantJobs) {
				t.Fatalf("NextRuns() = %v, want jobs %v", next, tt.wantJobs)
			}
			for _, job := range tt.wantJobs {
				at, ok := next[job]
				if !ok {
					t.Errorf("NextRuns() missing %s", job)
					continue
				}
				if !at.After(time.Now()) {
					t.Errorf("next %s run %v should be in the future", job, at)
				}
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(&fakeRunner{}, nil, nil, config.MonitorConfig{HourlySchedule: "0 * * * *"}, discard())
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New(&fakeRunner{}, nil, nil, config.MonitorConfig{HourlySchedule: "0 * * * *"}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_RunHourly(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, nil, nil, config.MonitorConfig{}, discard())

	s.RunHourly(context.Background())
	s.RunHourly(context.Background())

	if got := runner.calls.Load(); got != 2 {
		t.Errorf("runner calls = %d, want 2", got)
	}
}

func TestScheduler_RunDaily(t *testing.T) {
	tests := []struct {
		name   string
		pruner *fakePruner
	}{
		{name: "prunes rows", pruner: &fakePruner{result: retention.Result{CheckResults: 3, Notifications: 1}}},
		{name: "nothing to prune", pruner: &fakePruner{}},
		{name: "prune failure still summarizes", pruner: &fakePruner{err: errors.New("disk full")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemory()
			ctx := context.Background()
			if err := store.UpsertPolicy(ctx, &compliance.Policy{ID: "pol-1", PolicyType: "security", MonitoringEnabled: true}); err != nil {
				t.Fatalf("UpsertPolicy() failed: %v", err)
			}

			s := New(&fakeRunner{}, tt.pruner, store, config.MonitorConfig{}, discard())
			s.RunDaily(ctx)

			if tt.pruner.calls != 1 {
				t.Errorf("pruner calls = %d, want 1", tt.pruner.calls)
			}
		})
	}
}

func TestScheduler_RunDailyWithoutDependencies(t *testing.T) {
	s := New(&fakeRunner{}, nil, nil, config.MonitorConfig{}, discard())
	s.RunDaily(context.Background())
}
