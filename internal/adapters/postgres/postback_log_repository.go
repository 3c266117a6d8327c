package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/earnforge/payments-core/internal/domain"
)

type postbackLogRepository struct {
	db *gorm.DB
}

func (r *postbackLogRepository) Append(ctx context.Context, log domain.PostbackLog) error {
	payload := string(log.Payload)
	if payload == "" {
		payload = "{}"
	}
	rec := postbackLogModel{
		LogID:                 log.LogID,
		ProviderID:            log.ProviderID,
		ExternalTransactionID: log.ExternalTransactionID,
		UserID:                log.UserID,
		Payload:               payload,
		Outcome:               log.Outcome,
		ErrorReason:           log.ErrorReason,
		LatencyMS:             log.LatencyMS,
		ReceivedAt:            log.ReceivedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *postbackLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&postbackLogModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
