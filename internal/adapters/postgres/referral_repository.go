package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/earnforge/payments-core/internal/domain"
)

type referralRepository struct {
	db *gorm.DB
}

func (r *referralRepository) Create(ctx context.Context, referral domain.Referral) error {
	rec := referralModel{
		ReferralID:           referral.ReferralID,
		ReferrerID:           referral.ReferrerID,
		ReferredUserID:       referral.ReferredUserID,
		ReferralCode:         referral.ReferralCode,
		Status:               referral.Status,
		CommissionRate:       referral.CommissionRate,
		CommissionPeriodDays: referral.CommissionPeriodDays,
		ExpiresAt:            referral.ExpiresAt,
		ActivatedAt:          referral.ActivatedAt,
		CreatedAt:            referral.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyReferred
		}
		return err
	}
	return nil
}

func (r *referralRepository) GetByReferredUser(ctx context.Context, referredUserID uuid.UUID) (domain.Referral, error) {
	var rec referralModel
	if err := r.db.WithContext(ctx).Where("referred_user_id = ?", referredUserID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Referral{}, domain.ErrNotFound
		}
		return domain.Referral{}, err
	}
	return toDomainReferral(rec), nil
}

func (r *referralRepository) Activate(ctx context.Context, referredUserID uuid.UUID, at time.Time) (domain.Referral, error) {
	// The commission window restarts from activation, not from signup.
	var rec referralModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("referred_user_id = ?", referredUserID).
			Where("status = ?", domain.ReferralStatusPending).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		rec.Status = domain.ReferralStatusActive
		rec.ActivatedAt = &at
		rec.ExpiresAt = at.AddDate(0, 0, rec.CommissionPeriodDays)
		return tx.Model(&referralModel{}).
			Where("referral_id = ?", rec.ReferralID).
			Updates(map[string]any{
				"status":       rec.Status,
				"activated_at": at,
				"expires_at":   rec.ExpiresAt,
			}).Error
	})
	if err != nil {
		return domain.Referral{}, err
	}
	return toDomainReferral(rec), nil
}

func (r *referralRepository) RecordCommission(ctx context.Context, referralID uuid.UUID, earning, commission float64) error {
	res := r.db.WithContext(ctx).Model(&referralModel{}).
		Where("referral_id = ?", referralID).
		Updates(map[string]any{
			"total_earnings":   gorm.Expr("total_earnings + ?", earning),
			"total_commission": gorm.Expr("total_commission + ?", commission),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *referralRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&referralModel{}).
		Where("status IN ?", []string{domain.ReferralStatusPending, domain.ReferralStatusActive}).
		Where("expires_at <= ?", now).
		Update("status", domain.ReferralStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]domain.Referral, error) {
	var rows []referralModel
	if err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Referral, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainReferral(row))
	}
	return out, nil
}
