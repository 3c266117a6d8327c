package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) Create(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	rec := walletModel{
		WalletID:  uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Wallet{}, domain.ErrConflict
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(rec), nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	var rec walletModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Wallet{}, domain.ErrNotFound
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(rec), nil
}

func (r *walletRepository) ApplyEntry(ctx context.Context, p ports.LedgerEntryParams, now time.Time) (domain.Transaction, error) {
	var result domain.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := applyEntryTx(tx, p, now)
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return result, nil
}

// applyEntryTx is the single write path for wallet balances. Every composite
// repository operation that moves money funnels through it inside its own
// transaction, so the funds check, the ledger append and the balance update
// stay one unit under the wallet row lock.
func applyEntryTx(tx *gorm.DB, p ports.LedgerEntryParams, now time.Time) (domain.Transaction, error) {
	var wallet walletModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", p.UserID).
		Take(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}

	newBalance := wallet.AvailableBalance + p.Amount
	if newBalance < 0 {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	newEscrow := wallet.EscrowBalance + p.EscrowDelta
	if newEscrow < 0 {
		return domain.Transaction{}, domain.ErrEscrowExhausted
	}

	rec := transactionModel{
		TransactionID: uuid.New(),
		WalletID:      wallet.WalletID,
		UserID:        wallet.UserID,
		Amount:        p.Amount,
		Kind:          string(p.Kind),
		Reference:     nullableRef(p.Reference),
		Description:   p.Description,
		BalanceBefore: wallet.AvailableBalance,
		BalanceAfter:  newBalance,
		CreatedAt:     now,
	}
	if err := tx.Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Transaction{}, domain.ErrConflict
		}
		return domain.Transaction{}, err
	}

	updates := map[string]any{
		"available_balance": newBalance,
		"escrow_balance":    newEscrow,
		"updated_at":        now,
	}
	if p.Amount > 0 && p.Kind != domain.TxnRefund {
		updates["lifetime_earnings"] = gorm.Expr("lifetime_earnings + ?", p.Amount)
	}
	if p.Amount < 0 && p.Kind != domain.TxnRefund {
		updates["lifetime_spending"] = gorm.Expr("lifetime_spending + ?", -p.Amount)
	}
	if err := tx.Model(&walletModel{}).
		Where("wallet_id = ?", wallet.WalletID).
		Updates(updates).Error; err != nil {
		return domain.Transaction{}, err
	}
	return toDomainTransaction(rec), nil
}

func (r *walletRepository) TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	var rec transactionModel
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	return toDomainTransaction(rec), nil
}

func (r *walletRepository) History(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind, page, limit int) ([]domain.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&transactionModel{}).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []transactionModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainTransaction(row))
	}
	return out, total, nil
}
