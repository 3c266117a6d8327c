package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
)

// ApplyReferralCode binds a new user to their referrer. The referral starts
// pending and earns nothing until the referred user's first qualifying
// action activates it.
func (s *Service) ApplyReferralCode(ctx context.Context, in ApplyReferralInput) (domain.Referral, error) {
	if in.ReferrerID == uuid.Nil || in.ReferredUserID == uuid.Nil {
		return domain.Referral{}, fmt.Errorf("%w: referrer and referred ids required", domain.ErrInvalidInput)
	}
	if in.ReferrerID == in.ReferredUserID {
		return domain.Referral{}, domain.ErrSelfReferral
	}
	if _, err := s.referrals.GetByReferredUser(ctx, in.ReferredUserID); err == nil {
		return domain.Referral{}, domain.ErrAlreadyReferred
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Referral{}, err
	}

	now := s.nowFn()
	referral := domain.Referral{
		ReferralID:           uuid.New(),
		ReferrerID:           in.ReferrerID,
		ReferredUserID:       in.ReferredUserID,
		ReferralCode:         in.ReferralCode,
		Status:               domain.ReferralStatusPending,
		CommissionRate:       s.cfg.DefaultCommissionRate,
		CommissionPeriodDays: s.cfg.CommissionPeriodDays,
		ExpiresAt:            now.AddDate(0, 0, s.cfg.CommissionPeriodDays),
		CreatedAt:            now,
	}
	if err := s.referrals.Create(ctx, referral); err != nil {
		return domain.Referral{}, err
	}
	return referral, nil
}

// ActivateReferral flips a pending referral to active on the referred
// user's first qualifying action and restarts the commission window from
// the activation instant. Users without a pending referral are a no-op.
func (s *Service) ActivateReferral(ctx context.Context, referredUserID uuid.UUID) (domain.Referral, error) {
	referral, err := s.referrals.Activate(ctx, referredUserID, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Referral{}, nil
		}
		return domain.Referral{}, err
	}
	s.logger.InfoContext(ctx, "referral activated",
		"operation", "activate_referral",
		"outcome", "success",
		"referral_id", referral.ReferralID,
		"referrer_id", referral.ReferrerID,
	)
	return referral, nil
}

// AccrueCommission pays the referrer their share of one earning by the
// referred user. Eligibility is decided here, at accrual time, against the
// stored expiry; the commission credit reference is derived from the source
// earning so a replayed earning can never pay commission twice.
func (s *Service) AccrueCommission(ctx context.Context, earnerID uuid.UUID, earning float64, sourceReference string) error {
	if earning <= 0 {
		return nil
	}
	referral, err := s.referrals.GetByReferredUser(ctx, earnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !referral.ActiveAt(s.nowFn()) {
		return nil
	}

	commission := referral.CommissionOn(earning)
	if commission <= 0 {
		return nil
	}

	txn, err := s.Credit(ctx, CreditInput{
		UserID:      referral.ReferrerID,
		Amount:      commission,
		Kind:        domain.TxnReferralBonus,
		Reference:   fmt.Sprintf("referral:%s:%s", referral.ReferralID, sourceReference),
		Description: "referral commission",
	})
	if err != nil {
		return fmt.Errorf("credit referral commission: %w", err)
	}
	if err := s.referrals.RecordCommission(ctx, referral.ReferralID, earning, commission); err != nil {
		s.logger.ErrorContext(ctx, "commission accumulator update failed",
			"operation", "accrue_commission",
			"outcome", "partial",
			"referral_id", referral.ReferralID,
			"error", err,
		)
	}

	s.enqueueEvent(ctx, domain.EventReferralCommissionPaid, referral.ReferrerID.String(), map[string]any{
		"referral_id":    referral.ReferralID.String(),
		"referrer_id":    referral.ReferrerID.String(),
		"earner_id":      earnerID.String(),
		"earning":        earning,
		"commission":     commission,
		"transaction_id": txn.TransactionID.String(),
	})
	return nil
}

// ExpireReferrals updates stored status on referrals past their window.
// This sweep is bookkeeping for reporting; accrual never consults stored
// status alone.
func (s *Service) ExpireReferrals(ctx context.Context) (int64, error) {
	return s.referrals.ExpireStale(ctx, s.nowFn())
}

// ReferralStatsFor summarizes one referrer's standing.
func (s *Service) ReferralStatsFor(ctx context.Context, referrerID uuid.UUID) (ReferralStats, error) {
	referrals, err := s.referrals.ListByReferrer(ctx, referrerID)
	if err != nil {
		return ReferralStats{}, err
	}
	stats := ReferralStats{Referrals: referrals, TotalReferrals: len(referrals)}
	now := s.nowFn()
	for _, r := range referrals {
		if r.ActiveAt(now) {
			stats.ActiveReferrals++
		}
		stats.TotalCommission += r.TotalCommission
	}
	return stats, nil
}
