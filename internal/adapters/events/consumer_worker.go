package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

// ConsumerWorker applies task and user domain events to the payments core:
// an approved task submission releases one escrow slot to the worker, and a
// user's first qualifying action activates their referral.
type ConsumerWorker struct {
	logger   *slog.Logger
	consumer *KafkaConsumer
	service  *application.Service
	topics   map[string]string
	interval time.Duration
	batch    int
}

// NewConsumerWorker wires the consumer loop. topicByEvent maps event types
// to the topics they arrive on, mirroring the publisher-side mapping.
func NewConsumerWorker(logger *slog.Logger, consumer *KafkaConsumer, service *application.Service, topicByEvent map[string]string, interval time.Duration, batch int) *ConsumerWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	eventByTopic := make(map[string]string, len(topicByEvent))
	for eventType, topic := range topicByEvent {
		if topic == "" {
			topic = eventType
		}
		eventByTopic[topic] = eventType
	}
	return &ConsumerWorker{
		logger:   logger,
		consumer: consumer,
		service:  service,
		topics:   eventByTopic,
		interval: interval,
		batch:    batch,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		messages, err := w.consumer.Poll(ctx, w.batch)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer poll failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "poll",
				"outcome", "failure",
				"error", err,
			)
		}
		for _, msg := range messages {
			w.handle(ctx, msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) handle(ctx context.Context, msg Message) {
	eventType, ok := w.topics[msg.Topic]
	if !ok {
		eventType = msg.Topic
	}
	var err error
	switch eventType {
	case domain.EventTaskApproved:
		err = w.handleTaskApproved(ctx, msg.Payload)
	case domain.EventUserFirstAction:
		err = w.handleUserFirstAction(ctx, msg.Payload)
	default:
		w.logger.WarnContext(ctx, "unhandled event type",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "handle",
			"event_type", eventType,
		)
		return
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "event handling failed",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "handle",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
	}
}

func (w *ConsumerWorker) handleTaskApproved(ctx context.Context, payload []byte) error {
	var event struct {
		TaskID   uuid.UUID `json:"task_id"`
		WorkerID uuid.UUID `json:"worker_id"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	_, err := w.service.ReleaseSlot(ctx, event.TaskID, event.WorkerID)
	// A redelivered approval collides with the per-worker payout reference;
	// that is a completed release, not a failure.
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}

func (w *ConsumerWorker) handleUserFirstAction(ctx context.Context, payload []byte) error {
	var event struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	_, err := w.service.ActivateReferral(ctx, event.UserID)
	return err
}
