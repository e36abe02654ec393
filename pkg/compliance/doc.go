// Package compliance defines the domain model of the policy compliance
// monitor: policies and their versions, detected changes, check definitions,
// check results, violations, subscriptions and notifications.
//
// It also declares the storage contracts the engine depends on. The store is
// split by consumer:
//
//   - MonitorStore: what one monitoring cycle reads and writes
//   - CatalogStore: idempotent import of externally owned rows
//   - HistoryStore: reporting queries and retention
//
// Store combines the three. Implementations live in pkg/storage.
//
// # Violations
//
// NewViolation is the only constructor for violations. The engine raises
// exactly one violation per persisted check result with status fail:
//
//	if result.Status == compliance.StatusFail {
//	    v := compliance.NewViolation(policy, check, result)
//	    err := store.SaveViolation(ctx, v)
//	}
package compliance
