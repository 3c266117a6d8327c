package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger entry by its business origin.
type TransactionKind string

const (
	TxnTaskEarning    TransactionKind = "task_earning"
	TxnTaskFunding    TransactionKind = "task_funding"
	TxnWithdrawal     TransactionKind = "withdrawal"
	TxnRefund         TransactionKind = "refund"
	TxnFee            TransactionKind = "fee"
	TxnBonus          TransactionKind = "bonus"
	TxnReferralBonus  TransactionKind = "referral_bonus"
	TxnProviderReward TransactionKind = "provider_reward"
)

// Wallet is a cached projection over the transaction log. The log is the
// source of truth; AvailableBalance must equal the sum of transaction
// amounts at all times and never goes negative.
type Wallet struct {
	WalletID         uuid.UUID
	UserID           uuid.UUID
	AvailableBalance float64
	EscrowBalance    float64
	LifetimeEarnings float64
	LifetimeSpending float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transaction is an immutable ledger entry. Amount is signed: credits are
// positive, debits negative. Reference, when set, is unique across the
// ledger and makes the entry an idempotency anchor for replays.
type Transaction struct {
	TransactionID uuid.UUID
	WalletID      uuid.UUID
	UserID        uuid.UUID
	Amount        float64
	Kind          TransactionKind
	Reference     string
	Description   string
	BalanceBefore float64
	BalanceAfter  float64
	CreatedAt     time.Time
}

// IsDebit reports whether the entry removed funds from the wallet.
func (t Transaction) IsDebit() bool { return t.Amount < 0 }
