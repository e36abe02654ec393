// Package logging builds the structured slog logger used across Warden.
//
// Components receive a *slog.Logger and scope it with a component field:
//
//	logger = logger.With("component", "monitor")
//
// Monitoring code stores the run and policy identifiers in the context with
// WithRunID and WithPolicyID; loggers created by New add them to every record
// logged through the *Context methods (InfoContext, WarnContext, ...).
package logging
