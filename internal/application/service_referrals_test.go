package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

func setupActiveReferral(t *testing.T, f *fixture, referrerID, referredID uuid.UUID) domain.Referral {
	t.Helper()
	ctx := context.Background()
	if err := f.seedWallet(ctx, referrerID, 0); err != nil {
		t.Fatalf("seed referrer failed: %v", err)
	}
	if err := f.seedWallet(ctx, referredID, 0); err != nil {
		t.Fatalf("seed referred failed: %v", err)
	}
	if _, err := f.service.ApplyReferralCode(ctx, application.ApplyReferralInput{
		ReferrerID:     referrerID,
		ReferredUserID: referredID,
		ReferralCode:   "FRIEND20",
	}); err != nil {
		t.Fatalf("apply referral failed: %v", err)
	}
	referral, err := f.service.ActivateReferral(ctx, referredID)
	if err != nil {
		t.Fatalf("activate referral failed: %v", err)
	}
	if referral.Status != domain.ReferralStatusActive {
		t.Fatalf("referral status = %s, want active", referral.Status)
	}
	return referral
}

func TestApplyReferralCodeRejectsSelfReferral(t *testing.T) {
	t.Parallel()

	f := newFixture()
	userID := uuid.New()
	_, err := f.service.ApplyReferralCode(context.Background(), application.ApplyReferralInput{
		ReferrerID:     userID,
		ReferredUserID: userID,
		ReferralCode:   "SELF",
	})
	if !errors.Is(err, domain.ErrSelfReferral) {
		t.Fatalf("error = %v, want ErrSelfReferral", err)
	}
}

func TestApplyReferralCodeRejectsSecondReferrer(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	referredID := uuid.New()
	if _, err := f.service.ApplyReferralCode(ctx, application.ApplyReferralInput{
		ReferrerID:     uuid.New(),
		ReferredUserID: referredID,
		ReferralCode:   "FIRST",
	}); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	_, err := f.service.ApplyReferralCode(ctx, application.ApplyReferralInput{
		ReferrerID:     uuid.New(),
		ReferredUserID: referredID,
		ReferralCode:   "SECOND",
	})
	if !errors.Is(err, domain.ErrAlreadyReferred) {
		t.Fatalf("error = %v, want ErrAlreadyReferred", err)
	}
}

func TestAccrueCommissionPaysFivePercent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	referrerID := uuid.New()
	referredID := uuid.New()
	setupActiveReferral(t, f, referrerID, referredID)

	if err := f.service.AccrueCommission(ctx, referredID, 200, "task:abc"); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}

	referrer, err := f.service.Balance(ctx, referrerID)
	if err != nil {
		t.Fatalf("referrer balance failed: %v", err)
	}
	if referrer.AvailableBalance != 10 {
		t.Fatalf("referrer balance = %.2f, want 10 (5%% of 200)", referrer.AvailableBalance)
	}

	stats, err := f.service.ReferralStatsFor(ctx, referrerID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalReferrals != 1 || stats.ActiveReferrals != 1 {
		t.Fatalf("stats referrals = %d/%d, want 1/1", stats.TotalReferrals, stats.ActiveReferrals)
	}
	if stats.TotalCommission != 10 {
		t.Fatalf("stats commission = %.2f, want 10", stats.TotalCommission)
	}

	// A replayed earning reference never pays commission twice.
	if err := f.service.AccrueCommission(ctx, referredID, 200, "task:abc"); err != nil {
		t.Fatalf("replayed accrue failed: %v", err)
	}
	referrer, err = f.service.Balance(ctx, referrerID)
	if err != nil {
		t.Fatalf("referrer balance failed: %v", err)
	}
	if referrer.AvailableBalance != 10 {
		t.Fatalf("referrer balance after replay = %.2f, want 10", referrer.AvailableBalance)
	}
}

func TestAccrueCommissionSkipsPendingReferral(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	referrerID := uuid.New()
	referredID := uuid.New()
	if err := f.seedWallet(ctx, referrerID, 0); err != nil {
		t.Fatalf("seed referrer failed: %v", err)
	}
	if err := f.seedWallet(ctx, referredID, 0); err != nil {
		t.Fatalf("seed referred failed: %v", err)
	}
	if _, err := f.service.ApplyReferralCode(ctx, application.ApplyReferralInput{
		ReferrerID:     referrerID,
		ReferredUserID: referredID,
		ReferralCode:   "PENDING",
	}); err != nil {
		t.Fatalf("apply referral failed: %v", err)
	}

	if err := f.service.AccrueCommission(ctx, referredID, 100, "task:pending"); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	referrer, err := f.service.Balance(ctx, referrerID)
	if err != nil {
		t.Fatalf("referrer balance failed: %v", err)
	}
	if referrer.AvailableBalance != 0 {
		t.Fatalf("pending referral earned %.2f, want 0", referrer.AvailableBalance)
	}
}

func TestAccrueCommissionSkipsExpiredWindow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	referrerID := uuid.New()
	referredID := uuid.New()
	setupActiveReferral(t, f, referrerID, referredID)

	// Push the window into the past; stored status alone must not matter.
	f.store.mu.Lock()
	f.store.referrals[referredID].ExpiresAt = time.Now().Add(-time.Minute)
	f.store.mu.Unlock()

	if err := f.service.AccrueCommission(ctx, referredID, 100, "task:late"); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	referrer, err := f.service.Balance(ctx, referrerID)
	if err != nil {
		t.Fatalf("referrer balance failed: %v", err)
	}
	if referrer.AvailableBalance != 0 {
		t.Fatalf("expired referral earned %.2f, want 0", referrer.AvailableBalance)
	}
}

func TestActivateWithoutPendingReferralIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture()
	referral, err := f.service.ActivateReferral(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if referral.ReferralID != uuid.Nil {
		t.Fatalf("expected zero referral for user without pending referral")
	}
}

func TestExpireReferralsSweep(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	referrerID := uuid.New()
	referredID := uuid.New()
	setupActiveReferral(t, f, referrerID, referredID)

	f.store.mu.Lock()
	f.store.referrals[referredID].ExpiresAt = time.Now().Add(-time.Minute)
	f.store.mu.Unlock()

	expired, err := f.service.ExpireReferrals(ctx)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	stats, err := f.service.ReferralStatsFor(ctx, referrerID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ActiveReferrals != 0 || stats.TotalReferrals != 1 {
		t.Fatalf("stats after expiry = %d active / %d total, want 0/1", stats.ActiveReferrals, stats.TotalReferrals)
	}
}
