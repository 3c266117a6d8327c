package application

import (
	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
)

type CreditInput struct {
	UserID      uuid.UUID
	Amount      float64
	Kind        domain.TransactionKind
	Reference   string
	Description string
}

type DebitInput struct {
	UserID      uuid.UUID
	Amount      float64
	Kind        domain.TransactionKind
	Reference   string
	Description string
}

type FundTaskInput struct {
	SponsorID     uuid.UUID
	TaskID        uuid.UUID
	TotalSlots    int
	AmountPerSlot float64
	PlatformFee   float64
}

type WithdrawalRequestInput struct {
	UserID         uuid.UUID
	Amount         float64
	Method         string
	AccountDetails domain.AccountDetails
}

type ApplyReferralInput struct {
	ReferrerID     uuid.UUID
	ReferredUserID uuid.UUID
	ReferralCode   string
}

// ReferralStats summarizes one referrer's program standing for the user
// domain.
type ReferralStats struct {
	TotalReferrals  int
	ActiveReferrals int
	TotalCommission float64
	Referrals       []domain.Referral
}

// ProviderStatus pairs a stored provider with its derived health.
type ProviderStatus struct {
	Provider domain.ExternalProvider
	Health   string
	Counters domain.HealthCounters
}

// PostbackResult is what the HTTP postback endpoint reports back to the
// provider. Accepted responses are terminal on the provider side, so a
// duplicate delivery is Accepted with Duplicate set and no new credit.
type PostbackResult struct {
	Accepted  bool
	Duplicate bool
	RewardID  uuid.UUID
	NetAmount float64
	Reason    string
}
