package ports

import (
	"context"

	"github.com/earnforge/payments-core/internal/domain"
)

// PayoutGateway abstracts the external payment processor. Implementations
// carry a bounded timeout; callers treat a timeout as retryable failure,
// never as success.
type PayoutGateway interface {
	Charge(ctx context.Context, amount float64, method string) (domain.GatewayResult, error)
	Payout(ctx context.Context, w domain.Withdrawal) (domain.GatewayResult, error)
}

// EventPublisher delivers outbox payloads to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
