package application

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/ports"
)

// enqueueEvent records a notification trigger in the outbox. Delivery is
// fire-and-forget: an enqueue failure is logged and never fails the money
// operation that produced the event.
func (s *Service) enqueueEvent(ctx context.Context, eventType, partitionKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "event payload marshal failed",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
		return
	}
	record := ports.OutboxRecord{
		OutboxID:     uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      body,
		CreatedAt:    s.nowFn(),
	}
	if err := s.outbox.Enqueue(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "outbox enqueue failed",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", eventType,
			"partition_key", partitionKey,
			"error", err,
		)
	}
}
