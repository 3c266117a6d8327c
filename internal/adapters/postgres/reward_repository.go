package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

type rewardRepository struct {
	db *gorm.DB
}

func (r *rewardRepository) RecordWithCredit(ctx context.Context, p ports.RewardCreditParams, now time.Time) (domain.ProviderReward, error) {
	var result domain.ProviderReward
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := providerRewardModel{
			RewardID:              p.Reward.RewardID,
			ProviderID:            p.Reward.ProviderID,
			ExternalTransactionID: p.Reward.ExternalTransactionID,
			UserID:                p.Reward.UserID,
			GrossAmount:           p.Reward.GrossAmount,
			CommissionAmount:      p.Reward.CommissionAmount,
			NetAmount:             p.Reward.NetAmount,
			OfferName:             p.Reward.OfferName,
			Status:                p.Reward.Status,
			ProcessedAt:           p.Reward.ProcessedAt,
			CreatedAt:             p.Reward.CreatedAt,
		}
		// The unique (provider_id, external_transaction_id) key makes this
		// insert the durable duplicate gate for the whole postback pipeline.
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		if _, err := applyEntryTx(tx, p.Credit, now); err != nil {
			return err
		}
		result = toDomainReward(rec)
		return nil
	})
	if err != nil {
		return domain.ProviderReward{}, err
	}
	return result, nil
}

func (r *rewardRepository) GetByExternalID(ctx context.Context, providerID, externalTransactionID string) (domain.ProviderReward, error) {
	var rec providerRewardModel
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("external_transaction_id = ?", externalTransactionID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProviderReward{}, domain.ErrNotFound
		}
		return domain.ProviderReward{}, err
	}
	return toDomainReward(rec), nil
}
