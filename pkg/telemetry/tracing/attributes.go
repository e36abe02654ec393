package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRunID         = "warden.run_id"
	AttrPolicyID      = "warden.policy.id"
	AttrPolicyType    = "warden.policy.type"
	AttrState         = "warden.cycle.state"
	AttrPolicies      = "warden.run.policies"
	AttrErrored       = "warden.run.errored"
	AttrChanges       = "warden.changes"
	AttrChangeSource  = "warden.change.source"
	AttrViolations    = "warden.violations"
	AttrNotifications = "warden.notifications"
)

// RunID returns the run id attribute.
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// PolicyID returns the policy id attribute.
func PolicyID(id string) attribute.KeyValue {
	return attribute.String(AttrPolicyID, id)
}

// SetStatus records err on span and marks it failed, or marks it OK when
// err is nil.
func SetStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
