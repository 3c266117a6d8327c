package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/earnforge/payments-core/internal/domain"
)

type providerRepository struct {
	db *gorm.DB
}

func (r *providerRepository) GetByID(ctx context.Context, providerID string) (domain.ExternalProvider, error) {
	var rec providerModel
	if err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ExternalProvider{}, domain.ErrUnknownProvider
		}
		return domain.ExternalProvider{}, err
	}
	return toDomainProvider(rec), nil
}

func (r *providerRepository) List(ctx context.Context, enabledOnly bool) ([]domain.ExternalProvider, error) {
	query := r.db.WithContext(ctx).Model(&providerModel{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	var rows []providerModel
	if err := query.Order("provider_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ExternalProvider, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainProvider(row))
	}
	return out, nil
}

func (r *providerRepository) Upsert(ctx context.Context, provider domain.ExternalProvider) error {
	rec := providerModel{
		ProviderID:     provider.ProviderID,
		Name:           provider.Name,
		Category:       provider.Category,
		CommissionRate: provider.CommissionRate,
		Secret:         provider.Secret,
		Enabled:        provider.Enabled,
		LastSyncAt:     provider.LastSyncAt,
		CreatedAt:      provider.CreatedAt,
		UpdatedAt:      provider.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "commission_rate", "secret", "enabled", "updated_at",
		}),
	}).Create(&rec).Error
}

func (r *providerRepository) BumpMetrics(ctx context.Context, providerID string, revenue float64) error {
	res := r.db.WithContext(ctx).Model(&providerModel{}).
		Where("provider_id = ?", providerID).
		Updates(map[string]any{
			"total_completions": gorm.Expr("total_completions + 1"),
			"total_revenue":     gorm.Expr("total_revenue + ?", revenue),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUnknownProvider
	}
	return nil
}

func (r *providerRepository) TouchSync(ctx context.Context, providerID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&providerModel{}).
		Where("provider_id = ?", providerID).
		Updates(map[string]any{
			"last_sync_at": at,
			"updated_at":   at,
		}).Error
}
