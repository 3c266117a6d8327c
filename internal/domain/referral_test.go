package domain

import (
	"testing"
	"time"
)

func TestReferralActiveAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	activated := now.Add(-24 * time.Hour)

	tests := []struct {
		name     string
		referral Referral
		at       time.Time
		want     bool
	}{
		{
			"active inside window",
			Referral{Status: ReferralStatusActive, ActivatedAt: &activated, ExpiresAt: now.Add(time.Hour)},
			now, true,
		},
		{
			"active at exact expiry instant",
			Referral{Status: ReferralStatusActive, ActivatedAt: &activated, ExpiresAt: now},
			now, false,
		},
		{
			"active past expiry regardless of stored status",
			Referral{Status: ReferralStatusActive, ActivatedAt: &activated, ExpiresAt: now.Add(-time.Second)},
			now, false,
		},
		{
			"pending never accrues",
			Referral{Status: ReferralStatusPending, ExpiresAt: now.Add(time.Hour)},
			now, false,
		},
		{
			"expired status",
			Referral{Status: ReferralStatusExpired, ActivatedAt: &activated, ExpiresAt: now.Add(time.Hour)},
			now, false,
		},
		{
			"active without activation timestamp",
			Referral{Status: ReferralStatusActive, ExpiresAt: now.Add(time.Hour)},
			now, false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.referral.ActiveAt(tt.at); got != tt.want {
				t.Fatalf("ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReferralCommissionOn(t *testing.T) {
	t.Parallel()

	r := Referral{CommissionRate: 5}
	if got := r.CommissionOn(200); got != 10 {
		t.Fatalf("CommissionOn(200) = %v, want 10", got)
	}
	if got := r.CommissionOn(0); got != 0 {
		t.Fatalf("CommissionOn(0) = %v, want 0", got)
	}
}
