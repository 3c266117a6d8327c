package ports

import (
	"context"
	"net/url"
	"time"

	"github.com/earnforge/payments-core/internal/domain"
)

// ProviderAdapter is the capability contract every external reward source
// implements. One registered singleton per provider; adapters hold no
// per-request state.
type ProviderAdapter interface {
	ProviderID() string
	Authenticate(ctx context.Context) error
	RefreshToken(ctx context.Context) error
	FetchTasks(ctx context.Context, filters domain.TaskFilters) ([]domain.ProviderTask, error)
	GetTaskDetails(ctx context.Context, externalID string) (domain.ProviderTask, error)
	SubmitCompletion(ctx context.Context, externalID string, proof []byte) error
	CheckTaskStatus(ctx context.Context, externalID string) (string, error)
	CheckPayoutStatus(ctx context.Context, externalID string) (string, error)

	// Health is a lightweight reachability probe. The periodic evaluation
	// job records its result into the rolling health window so derived
	// status keeps moving even when no fetch traffic ran.
	Health(ctx context.Context) error

	// ParsePostback normalizes the provider's wire parameters; it validates
	// shape only. VerifyPostback checks the authentication token against the
	// shared secret and must pass before any money operation reads the
	// payload.
	ParsePostback(values url.Values) (domain.Postback, error)
	VerifyPostback(p domain.Postback, secret string) error
}

// AdapterRegistry resolves provider identifiers to registered adapters. It
// is constructed once at process start and passed by reference; there is no
// package-level registry.
type AdapterRegistry interface {
	Get(providerID string) (ProviderAdapter, bool)
	All() []ProviderAdapter
}

// ProviderHealthStore keeps the rolling success/failure window backing
// health derivation.
type ProviderHealthStore interface {
	RecordSuccess(ctx context.Context, providerID string) error
	RecordFailure(ctx context.Context, providerID string) error
	Counters(ctx context.Context, providerID string) (domain.HealthCounters, error)
}

// PostbackLockStore provides short-lived mutual exclusion per idempotency
// key so the duplicate check and the credit run as one unit even across
// processes. The database unique key remains the durable backstop.
type PostbackLockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
