// Package metrics exports Warden's Prometheus metrics.
//
// All metrics share the namespace and subsystem from telemetry.metrics
// (default "warden_monitor_"). A Collector is created once by the CLI and
// passed to the detector, evaluator, dispatcher, orchestrator and scheduler.
// A nil *Collector records nothing.
package metrics
