package notify

import (
	"fmt"

	"mercator-hq/warden/pkg/compliance"
)

// Related types recorded on notifications.
const (
	RelatedPolicy    = "policy"
	RelatedViolation = "violation"
)

// message is the rendered, recipient-independent part of a notification.
type message struct {
	Title       string
	Body        string
	Type        compliance.NotificationType
	RelatedType string
	RelatedID   string
}

// render builds the message for kind. policy_change expects a []Change
// payload and violation a *Violation; other payloads still render with a
// generic body.
func render(policyID string, kind compliance.EventKind, payload any) (message, error) {
	switch kind {
	case compliance.EventPolicyChange:
		msg := message{
			Title:       "Policy change detected",
			Type:        compliance.NotificationWarning,
			RelatedType: RelatedPolicy,
			RelatedID:   policyID,
		}
		changes, _ := payload.([]compliance.Change)
		if len(changes) == 0 {
			msg.Body = fmt.Sprintf("Policy %s has changed.", policyID)
			return msg, nil
		}
		msg.Body = fmt.Sprintf("%d change(s) detected in policy %s (highest impact: %s). %s",
			len(changes), policyID, compliance.HighestImpact(changes), changes[0].Description)
		return msg, nil

	case compliance.EventViolation:
		msg := message{
			Title:       "Compliance violation",
			Type:        compliance.NotificationError,
			RelatedType: RelatedViolation,
			RelatedID:   policyID,
		}
		v, _ := payload.(*compliance.Violation)
		if v == nil {
			msg.Body = fmt.Sprintf("A compliance check failed for policy %s.", policyID)
			return msg, nil
		}
		msg.RelatedID = v.ID
		msg.Body = fmt.Sprintf("[%s] %s", v.Severity, v.Description)
		return msg, nil

	default:
		return message{}, fmt.Errorf("unknown event kind %q", kind)
	}
}
