package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReferralStatusPending   = "pending"
	ReferralStatusActive    = "active"
	ReferralStatusExpired   = "expired"
	ReferralStatusCancelled = "cancelled"
)

// Referral links a referrer to one referred user and accrues commission on
// the referred user's earnings for a bounded period after activation.
type Referral struct {
	ReferralID           uuid.UUID
	ReferrerID           uuid.UUID
	ReferredUserID       uuid.UUID
	ReferralCode         string
	Status               string
	CommissionRate       float64
	CommissionPeriodDays int
	ExpiresAt            time.Time
	ActivatedAt          *time.Time
	TotalEarnings        float64
	TotalCommission      float64
	CreatedAt            time.Time
}

// ActiveAt is the authoritative commission-eligibility check. The periodic
// expiry sweep only updates stored status for reporting; callers must use
// this check so a referral cannot be active for one reader and expired for
// another within the same instant.
func (r Referral) ActiveAt(now time.Time) bool {
	return r.Status == ReferralStatusActive && r.ActivatedAt != nil && now.Before(r.ExpiresAt)
}

// CommissionOn returns the commission owed to the referrer for an earning.
func (r Referral) CommissionOn(earning float64) float64 {
	return earning * r.CommissionRate / 100
}
