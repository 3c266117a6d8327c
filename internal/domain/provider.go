package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProviderHealthHealthy   = "healthy"
	ProviderHealthDegraded  = "degraded"
	ProviderHealthUnhealthy = "unhealthy"
	ProviderHealthStale     = "stale"
)

// ExternalProvider is the stored identity and configuration of one external
// reward source (offer wall, ad network). Secret is the shared key used to
// verify postback signatures.
type ExternalProvider struct {
	ProviderID       string
	Name             string
	Category         string
	CommissionRate   float64
	Secret           string
	Enabled          bool
	TotalCompletions int64
	TotalRevenue     float64
	LastSyncAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProviderTask is a normalized task offered by an external provider.
type ProviderTask struct {
	ProviderID string
	ExternalID string
	Title      string
	Category   string
	Reward     float64
	Currency   string
	URL        string
	FetchedAt  time.Time
}

// TaskFilters narrows provider task fetches. A non-empty ProviderID turns
// the fan-out into a targeted fetch against that one provider.
type TaskFilters struct {
	ProviderID string
	Category   string
	MinReward  float64
	Limit      int
}

// Postback is a provider completion callback after adapter normalization.
// Signature carries whichever verification token the provider sent.
type Postback struct {
	ProviderID            string
	ExternalTransactionID string
	UserID                uuid.UUID
	Amount                float64
	Currency              string
	OfferName             string
	Signature             string
	Raw                   map[string]string
}

// ProviderReward is the durable record of one reconciled external
// completion. The (ProviderID, ExternalTransactionID) pair is the
// idempotency key: at most one reward row, and therefore at most one wallet
// credit, exists per external transaction.
type ProviderReward struct {
	RewardID              uuid.UUID
	ProviderID            string
	ExternalTransactionID string
	UserID                uuid.UUID
	GrossAmount           float64
	CommissionAmount      float64
	NetAmount             float64
	OfferName             string
	Status                string
	ProcessedAt           *time.Time
	CreatedAt             time.Time
}

// PostbackLog is the immutable audit record of one inbound callback attempt.
type PostbackLog struct {
	LogID                 uuid.UUID
	ProviderID            string
	ExternalTransactionID string
	UserID                *uuid.UUID
	Payload               []byte
	Outcome               string
	ErrorReason           *string
	LatencyMS             int64
	ReceivedAt            time.Time
}

// HealthCounters is a rolling success/failure window for one provider.
type HealthCounters struct {
	Successes int64
	Failures  int64
}

// ErrorRate returns the failure share of the rolling window, zero when the
// window is empty.
func (c HealthCounters) ErrorRate() float64 {
	total := c.Successes + c.Failures
	if total == 0 {
		return 0
	}
	return float64(c.Failures) / float64(total)
}

// DeriveProviderHealth folds the rolling error rate and sync recency into a
// single status. Order matters: staleness masks error-rate judgments because
// a silent provider has no meaningful window.
func DeriveProviderHealth(counters HealthCounters, lastSyncAt *time.Time, now time.Time, staleAfter time.Duration) string {
	if lastSyncAt == nil || now.Sub(*lastSyncAt) > staleAfter {
		return ProviderHealthStale
	}
	switch rate := counters.ErrorRate(); {
	case rate >= 0.5:
		return ProviderHealthUnhealthy
	case rate >= 0.2:
		return ProviderHealthDegraded
	default:
		return ProviderHealthHealthy
	}
}
