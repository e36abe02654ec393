// Package health serves liveness and readiness probes for the run command.
//
// Readiness aggregates named checks (the store ping and the classifier's
// consecutive-failure state) that run concurrently under a per-check timeout.
package health
