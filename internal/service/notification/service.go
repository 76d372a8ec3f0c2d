package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/repository"
)

// Notifier is the engine's outbound contract. Implementations are
// best-effort: the engine records the intent and moves on, it never retries
// deliveries itself and a notifier failure never affects a booking.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// Event is the payload handed to the notifier. Exactly one of Appointment
// and QueueEntry is set, depending on the kind.
type Event struct {
	Kind        model.NotificationKind `json:"kind"`
	Recipient   string                 `json:"recipient"`
	Appointment *model.Appointment     `json:"appointment,omitempty"`
	QueueEntry  *model.QueueEntry      `json:"queue_entry,omitempty"`
}

// outboxNotifier records events in the outbox table; the worker drains the
// table and delivers via email and the message broker. Engine services call
// Notify only after their owning transaction has committed.
type outboxNotifier struct {
	outbox repository.OutboxRepository
}

func NewOutboxNotifier(outbox repository.OutboxRepository) Notifier {
	return &outboxNotifier{outbox: outbox}
}

func (n *outboxNotifier) Notify(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	outboxEvent := &model.OutboxEvent{
		EventType: string(event.Kind),
		Payload:   payload,
	}
	if err := n.outbox.Create(ctx, outboxEvent); err != nil {
		return fmt.Errorf("failed to record notification event: %w", err)
	}
	return nil
}
