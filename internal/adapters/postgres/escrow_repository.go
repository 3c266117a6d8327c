package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) FundTask(ctx context.Context, p ports.FundTaskParams, now time.Time) (domain.Escrow, error) {
	slotValue := float64(p.TotalSlots) * p.AmountPerSlot
	gross := slotValue + p.PlatformFee

	var result domain.Escrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The platform fee leaves the wallet entirely; only the slot value
		// is held in the escrow projection.
		_, err := applyEntryTx(tx, ports.LedgerEntryParams{
			UserID:      p.SponsorID,
			Amount:      -gross,
			EscrowDelta: slotValue,
			Kind:        domain.TxnTaskFunding,
			Reference:   fmt.Sprintf("escrow:fund:%s", p.TaskID),
			Description: "task funding",
		}, now)
		if err != nil {
			return err
		}

		rec := escrowModel{
			EscrowID:      uuid.New(),
			SponsorID:     p.SponsorID,
			TaskID:        p.TaskID,
			Amount:        slotValue,
			TotalSlots:    p.TotalSlots,
			AmountPerSlot: p.AmountPerSlot,
			PlatformFee:   p.PlatformFee,
			Status:        domain.EscrowStatusHeld,
			HeldAt:        now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		result = toDomainEscrow(rec)
		return nil
	})
	if err != nil {
		return domain.Escrow{}, err
	}
	return result, nil
}

func (r *escrowRepository) ReleaseSlot(ctx context.Context, taskID, workerID uuid.UUID, now time.Time) (ports.SlotRelease, error) {
	var result ports.SlotRelease
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var escrow escrowModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_id = ?", taskID).
			Take(&escrow).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if escrow.Status != domain.EscrowStatusHeld && escrow.Status != domain.EscrowStatusPartiallyReleased {
			return domain.ErrEscrowNotHeld
		}
		if escrow.ReleasedSlots >= escrow.TotalSlots {
			return domain.ErrEscrowExhausted
		}

		slotIndex := escrow.ReleasedSlots + 1
		escrow.ReleasedSlots = slotIndex
		escrow.Status = domain.EscrowStatusPartiallyReleased
		if slotIndex == escrow.TotalSlots {
			escrow.Status = domain.EscrowStatusReleased
			escrow.ReleasedAt = &now
		}
		if err := tx.Model(&escrowModel{}).
			Where("escrow_id = ?", escrow.EscrowID).
			Updates(map[string]any{
				"released_slots": escrow.ReleasedSlots,
				"status":         escrow.Status,
				"released_at":    escrow.ReleasedAt,
			}).Error; err != nil {
			return err
		}

		// Release the slot value from the sponsor's escrow projection. No
		// ledger entry on the sponsor side: their available balance already
		// dropped at funding time.
		if err := decrementEscrowTx(tx, escrow.SponsorID, escrow.AmountPerSlot, now); err != nil {
			return err
		}

		txn, err := applyEntryTx(tx, ports.LedgerEntryParams{
			UserID:      workerID,
			Amount:      escrow.AmountPerSlot,
			Kind:        domain.TxnTaskEarning,
			// One payout per worker per task. A redelivered approval hits
			// this unique reference and rolls the whole release back.
			Reference:   fmt.Sprintf("escrow:%s:worker:%s", escrow.EscrowID, workerID),
			Description: "task slot payout",
		}, now)
		if err != nil {
			return err
		}

		result = ports.SlotRelease{
			Escrow:    toDomainEscrow(escrow),
			SlotIndex: slotIndex,
			WorkerTxn: txn,
		}
		return nil
	})
	if err != nil {
		return ports.SlotRelease{}, err
	}
	return result, nil
}

func (r *escrowRepository) RefundRemaining(ctx context.Context, taskID uuid.UUID, reason string, now time.Time) (domain.Escrow, float64, error) {
	var (
		result   domain.Escrow
		refunded float64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var escrow escrowModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_id = ?", taskID).
			Take(&escrow).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		// An already-refunded escrow is a replay; a fully released one never
		// had anything left to refund.
		if escrow.Status == domain.EscrowStatusRefunded {
			result = toDomainEscrow(escrow)
			return domain.ErrConflict
		}
		if escrow.Status == domain.EscrowStatusReleased {
			return domain.ErrEscrowNotHeld
		}

		refunded = float64(escrow.TotalSlots-escrow.ReleasedSlots) * escrow.AmountPerSlot
		if refunded > 0 {
			if _, err := applyEntryTx(tx, ports.LedgerEntryParams{
				UserID:      escrow.SponsorID,
				Amount:      refunded,
				EscrowDelta: -refunded,
				Kind:        domain.TxnRefund,
				Reference:   fmt.Sprintf("escrow:refund:%s", escrow.EscrowID),
				Description: reason,
			}, now); err != nil {
				return err
			}
		}

		escrow.Status = domain.EscrowStatusRefunded
		escrow.RefundedAt = &now
		if err := tx.Model(&escrowModel{}).
			Where("escrow_id = ?", escrow.EscrowID).
			Updates(map[string]any{
				"status":      escrow.Status,
				"refunded_at": now,
			}).Error; err != nil {
			return err
		}
		result = toDomainEscrow(escrow)
		return nil
	})
	if err != nil {
		return result, 0, err
	}
	return result, refunded, nil
}

func (r *escrowRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.Escrow, error) {
	var rec escrowModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Escrow{}, domain.ErrNotFound
		}
		return domain.Escrow{}, err
	}
	return toDomainEscrow(rec), nil
}

// decrementEscrowTx moves funds out of a wallet's escrow projection without
// touching its available balance.
func decrementEscrowTx(tx *gorm.DB, userID uuid.UUID, amount float64, now time.Time) error {
	var wallet walletModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	if wallet.EscrowBalance-amount < 0 {
		return domain.ErrEscrowExhausted
	}
	return tx.Model(&walletModel{}).
		Where("wallet_id = ?", wallet.WalletID).
		Updates(map[string]any{
			"escrow_balance": wallet.EscrowBalance - amount,
			"updated_at":     now,
		}).Error
}
