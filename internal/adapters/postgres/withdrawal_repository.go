package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

type withdrawalRepository struct {
	db *gorm.DB
}

func (r *withdrawalRepository) CreateWithDebit(ctx context.Context, p ports.WithdrawalCreateParams, now time.Time) (domain.Withdrawal, error) {
	details, err := json.Marshal(p.AccountDetails)
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("marshal account details: %w", err)
	}

	withdrawalID := uuid.New()
	var result domain.Withdrawal
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := applyEntryTx(tx, ports.LedgerEntryParams{
			UserID:      p.UserID,
			Amount:      -p.Amount,
			Kind:        domain.TxnWithdrawal,
			Reference:   fmt.Sprintf("withdrawal:%s", withdrawalID),
			Description: "withdrawal request",
		}, now)
		if err != nil {
			return err
		}

		rec := withdrawalModel{
			WithdrawalID:   withdrawalID,
			UserID:         p.UserID,
			WalletID:       txn.WalletID,
			Amount:         p.Amount,
			Fee:            p.Fee,
			NetAmount:      p.NetAmount,
			Method:         p.Method,
			AccountDetails: string(details),
			Status:         domain.WithdrawalStatusPending,
			RequestedAt:    now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		result = toDomainWithdrawal(rec)
		return nil
	})
	if txErr != nil {
		return domain.Withdrawal{}, txErr
	}
	return result, nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, withdrawalID uuid.UUID) (domain.Withdrawal, error) {
	var rec withdrawalModel
	if err := r.db.WithContext(ctx).Where("withdrawal_id = ?", withdrawalID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Withdrawal{}, domain.ErrNotFound
		}
		return domain.Withdrawal{}, err
	}
	return toDomainWithdrawal(rec), nil
}

func (r *withdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]domain.Withdrawal, int64, error) {
	query := r.db.WithContext(ctx).Model(&withdrawalModel{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []withdrawalModel
	if err := query.
		Order("requested_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Withdrawal, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainWithdrawal(row))
	}
	return out, total, nil
}

func (r *withdrawalRepository) MarkProcessing(ctx context.Context, withdrawalID uuid.UUID, attempts int) (domain.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, uuid.Nil, []string{domain.WithdrawalStatusPending}, map[string]any{
		"status":   domain.WithdrawalStatusProcessing,
		"attempts": attempts,
	}, nil)
}

func (r *withdrawalRepository) Complete(ctx context.Context, withdrawalID uuid.UUID, gatewayReference string, now time.Time) (domain.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, uuid.Nil, []string{domain.WithdrawalStatusProcessing}, map[string]any{
		"status":            domain.WithdrawalStatusCompleted,
		"gateway_reference": gatewayReference,
		"processed_at":      now,
	}, nil)
}

func (r *withdrawalRepository) SetGatewayReference(ctx context.Context, withdrawalID uuid.UUID, gatewayReference string) (domain.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, uuid.Nil, []string{domain.WithdrawalStatusProcessing}, map[string]any{
		"gateway_reference": gatewayReference,
	}, nil)
}

func (r *withdrawalRepository) FailWithRefund(ctx context.Context, withdrawalID uuid.UUID, reason string, now time.Time) (domain.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, uuid.Nil,
		[]string{domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing},
		map[string]any{
			"status":         domain.WithdrawalStatusFailed,
			"failure_reason": reason,
			"processed_at":   now,
		},
		func(tx *gorm.DB, rec withdrawalModel) error {
			return refundWithdrawalTx(tx, rec, "withdrawal failed", now)
		})
}

func (r *withdrawalRepository) CancelWithRefund(ctx context.Context, withdrawalID, userID uuid.UUID, now time.Time) (domain.Withdrawal, error) {
	w, err := r.transition(ctx, withdrawalID, userID,
		[]string{domain.WithdrawalStatusPending},
		map[string]any{
			"status":       domain.WithdrawalStatusCancelled,
			"processed_at": now,
		},
		func(tx *gorm.DB, rec withdrawalModel) error {
			return refundWithdrawalTx(tx, rec, "withdrawal cancelled", now)
		})
	if errors.Is(err, domain.ErrConflict) {
		return w, fmt.Errorf("%w: withdrawal is %s", domain.ErrWithdrawalNotCancellable, w.Status)
	}
	return w, err
}

func (r *withdrawalRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Withdrawal, error) {
	var rows []withdrawalModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.WithdrawalStatusPending).
		Where("requested_at < ?", cutoff).
		Order("requested_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Withdrawal, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainWithdrawal(row))
	}
	return out, nil
}

// transition locks the withdrawal row, enforces the allowed source statuses
// and applies the update plus an optional side effect in one transaction. A
// row not in an allowed status comes back with domain.ErrConflict and its
// stored state, so callers can distinguish replays from genuine races.
func (r *withdrawalRepository) transition(ctx context.Context, withdrawalID, userID uuid.UUID, from []string, updates map[string]any, side func(tx *gorm.DB, rec withdrawalModel) error) (domain.Withdrawal, error) {
	var result domain.Withdrawal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("withdrawal_id = ?", withdrawalID)
		if userID != uuid.Nil {
			query = query.Where("user_id = ?", userID)
		}
		var rec withdrawalModel
		if err := query.Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		allowed := false
		for _, status := range from {
			if rec.Status == status {
				allowed = true
				break
			}
		}
		if !allowed {
			result = toDomainWithdrawal(rec)
			return domain.ErrConflict
		}

		if side != nil {
			if err := side(tx, rec); err != nil {
				return err
			}
		}
		if err := tx.Model(&withdrawalModel{}).
			Where("withdrawal_id = ?", withdrawalID).
			Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("withdrawal_id = ?", withdrawalID).Take(&rec).Error; err != nil {
			return err
		}
		result = toDomainWithdrawal(rec)
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func refundWithdrawalTx(tx *gorm.DB, rec withdrawalModel, description string, now time.Time) error {
	_, err := applyEntryTx(tx, ports.LedgerEntryParams{
		UserID:      rec.UserID,
		Amount:      rec.Amount,
		Kind:        domain.TxnRefund,
		Reference:   fmt.Sprintf("withdrawal:refund:%s", rec.WithdrawalID),
		Description: description,
	}, now)
	return err
}
