// Package telemetry groups Warden's observability packages.
//
//   - logging: slog logger construction and run/policy context fields
//   - metrics: Prometheus collector for monitoring runs
//   - tracing: OpenTelemetry spans for runs and policy cycles
//   - health: liveness and readiness endpoints
//
// The run command serves metrics and health on the address configured in
// telemetry.metrics.listen:
//
//	mux := http.NewServeMux()
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//	checker.Register(mux, cfg.Telemetry.Health)
package telemetry
