// Package notify fans domain events out to the subscribers of a policy.
//
// Every subscriber gets one Notification row per event. A failed write for
// one subscriber is logged and skipped; it never stops the fan-out or fails
// the caller. An optional Publisher additionally emits one event per fan-out
// to an event bus.
package notify

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// Store is the part of the persistent store the dispatcher uses.
type Store interface {
	Subscriptions(ctx context.Context, policyID string) ([]*compliance.Subscription, error)
	SaveNotification(ctx context.Context, notification *compliance.Notification) error
}

// Event is what a Publisher emits after a fan-out.
type Event struct {
	Kind       compliance.EventKind `json:"kind"`
	PolicyID   string               `json:"policy_id"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	RelatedID  string               `json:"related_id"`
	Recipients int                  `json:"recipients"`
	Payload    any                  `json:"payload,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Publisher emits domain events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Dispatcher writes notifications for domain events.
type Dispatcher struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. publisher and collector may be nil.
func NewDispatcher(store Store, publisher Publisher, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		metrics:   collector,
		logger:    logger.With("component", "notify"),
		now:       time.Now,
	}
}

// Notify writes one notification per subscriber of policyID and returns how
// many were written. No subscribers, or a failure to load them, yields 0.
func (d *Dispatcher) Notify(ctx context.Context, policyID string, kind compliance.EventKind, payload any) int {
	msg, err := render(policyID, kind, payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "cannot render notification", "policy_id", policyID, "error", err)
		return 0
	}

	subs, err := d.store.Subscriptions(ctx, policyID)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load subscriptions",
			"policy_id", policyID,
			"kind", kind,
			"error", err,
		)
		return 0
	}
	now := d.now()
	if len(subs) == 0 {
		d.logger.DebugContext(ctx, "no subscribers", "policy_id", policyID, "kind", kind)
		d.publish(ctx, newEvent(policyID, kind, msg, 0, payload, now))
		return 0
	}

	sent := 0
	for _, sub := range subs {
		n := &compliance.Notification{
			ID:          compliance.NewID(),
			UserID:      sub.UserID,
			Title:       msg.Title,
			Message:     msg.Body,
			Type:        msg.Type,
			RelatedType: msg.RelatedType,
			RelatedID:   msg.RelatedID,
			CreatedAt:   now,
		}

		if err := d.store.SaveNotification(ctx, n); err != nil {
			d.logger.ErrorContext(ctx, "failed to write notification",
				"policy_id", policyID,
				"user_id", sub.UserID,
				"kind", kind,
				"error", err,
			)
			d.metrics.RecordNotification(string(kind), "failed")
			continue
		}

		d.metrics.RecordNotification(string(kind), "sent")
		sent++
	}

	d.logger.InfoContext(ctx, "notifications dispatched",
		"policy_id", policyID,
		"kind", kind,
		"sent", sent,
		"subscribers", len(subs),
	)

	d.publish(ctx, newEvent(policyID, kind, msg, sent, payload, now))

	return sent
}

func newEvent(policyID string, kind compliance.EventKind, msg message, recipients int, payload any, at time.Time) *Event {
	return &Event{
		Kind:       kind,
		PolicyID:   policyID,
		Title:      msg.Title,
		Message:    msg.Body,
		RelatedID:  msg.RelatedID,
		Recipients: recipients,
		Payload:    payload,
		OccurredAt: at,
	}
}

func (d *Dispatcher) publish(ctx context.Context, event *Event) {
	if d.publisher == nil {
		return
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.WarnContext(ctx, "failed to publish event",
			"policy_id", event.PolicyID,
			"kind", event.Kind,
			"error", err,
		)
		d.metrics.RecordEventPublish(string(event.Kind), "failed")
		return
	}
	d.metrics.RecordEventPublish(string(event.Kind), "published")
}
