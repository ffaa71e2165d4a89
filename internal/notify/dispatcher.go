// Package notify turns friend request transitions into live events.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/metrics"
	"github.com/HammerMeetNail/lingopals/internal/models"
	"github.com/HammerMeetNail/lingopals/internal/presence"
)

// Locator finds the live connection of a user.
type Locator interface {
	Lookup(userID uuid.UUID) (presence.Handle, bool)
}

// Dispatcher delivers at most one event per transition, and only to a user
// who is online at that moment. Nothing is queued or retried.
type Dispatcher struct {
	locator Locator
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func NewDispatcher(locator Locator, m *metrics.Metrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default
	}
	return &Dispatcher{
		locator: locator,
		metrics: m,
		logger:  logger.WithField("component", "notify"),
	}
}

// BuildEvent returns the user to notify and the event for a transition.
func BuildEvent(t models.Transition) (target uuid.UUID, event models.Event, ok bool) {
	name := t.Actor.FullName
	if name == "" {
		name = "Someone"
	}

	switch t.Kind {
	case models.TransitionCreated:
		return t.Request.RecipientID, models.Event{
			Type: string(t.Kind),
			Data: models.RequestCreatedPayload{
				Message: name + " sent you a friend request",
				Sender:  t.Actor,
			},
		}, true
	case models.TransitionAccepted:
		return t.Request.SenderID, models.Event{
			Type: string(t.Kind),
			Data: models.RequestAcceptedPayload{
				Message: name + " accepted your friend request",
				Friend:  t.Actor,
			},
		}, true
	case models.TransitionRejected:
		return t.Request.SenderID, models.Event{
			Type: string(t.Kind),
			Data: models.RequestRejectedPayload{
				Message: "Your friend request was declined",
			},
		}, true
	}
	return uuid.Nil, models.Event{}, false
}

func (d *Dispatcher) Notify(ctx context.Context, t models.Transition) {
	target, event, ok := BuildEvent(t)
	if !ok {
		d.logger.Warn("Unknown transition kind", logging.Fields{"kind": string(t.Kind)})
		return
	}

	h, online := d.locator.Lookup(target)
	if !online {
		d.metrics.Notification(event.Type, metrics.Offline)
		d.logger.Debug("Recipient offline, dropping event", logging.Fields{
			"event":   event.Type,
			"user_id": target.String(),
		})
		return
	}

	if err := h.Push(event); err != nil {
		d.metrics.Notification(event.Type, metrics.Failed)
		d.logger.Warn("Push failed, dropping event", logging.Fields{
			"event":   event.Type,
			"user_id": target.String(),
			"error":   err.Error(),
		})
		return
	}
	d.metrics.Notification(event.Type, metrics.Delivered)
}
