package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
)

// LedgerEntryParams describes one atomic wallet mutation. Amount is signed;
// a negative amount requires sufficient available balance. EscrowDelta moves
// value between the available and escrow projections in the same statement.
type LedgerEntryParams struct {
	UserID      uuid.UUID
	Amount      float64
	EscrowDelta float64
	Kind        domain.TransactionKind
	Reference   string
	Description string
}

type WalletRepository interface {
	Create(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error)
	// ApplyEntry serializes on the wallet row, re-checks funds under the
	// lock, writes the transaction record and the balance update as one
	// unit. A duplicate non-empty Reference fails with domain.ErrConflict
	// without applying anything.
	ApplyEntry(ctx context.Context, p LedgerEntryParams, now time.Time) (domain.Transaction, error)
	TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error)
	History(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind, page, limit int) ([]domain.Transaction, int64, error)
}

// FundTaskParams creates an escrow together with the sponsor debit.
type FundTaskParams struct {
	SponsorID     uuid.UUID
	TaskID        uuid.UUID
	TotalSlots    int
	AmountPerSlot float64
	PlatformFee   float64
}

// SlotRelease is the result of one successful escrow slot claim.
type SlotRelease struct {
	Escrow    domain.Escrow
	SlotIndex int
	WorkerTxn domain.Transaction
}

type EscrowRepository interface {
	// FundTask debits the sponsor wallet and creates the held escrow in one
	// transaction. Insufficient sponsor balance fails the whole unit.
	FundTask(ctx context.Context, p FundTaskParams, now time.Time) (domain.Escrow, error)
	// ReleaseSlot claims one slot with a bounded compare-and-increment and
	// credits the worker wallet in the same transaction, so concurrent
	// approvals can never over-release.
	ReleaseSlot(ctx context.Context, taskID, workerID uuid.UUID, now time.Time) (SlotRelease, error)
	// RefundRemaining returns unreleased slot value to the sponsor and
	// closes the escrow. Already-refunded escrows return the stored record
	// with domain.ErrConflict so callers can treat the replay as a no-op.
	RefundRemaining(ctx context.Context, taskID uuid.UUID, reason string, now time.Time) (domain.Escrow, float64, error)
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.Escrow, error)
}

// WithdrawalCreateParams reserves funds and opens the request as one unit.
type WithdrawalCreateParams struct {
	UserID         uuid.UUID
	Amount         float64
	Fee            float64
	NetAmount      float64
	Method         string
	AccountDetails domain.AccountDetails
}

type WithdrawalRepository interface {
	// CreateWithDebit debits the wallet for the gross amount and creates the
	// pending record in one transaction.
	CreateWithDebit(ctx context.Context, p WithdrawalCreateParams, now time.Time) (domain.Withdrawal, error)
	GetByID(ctx context.Context, withdrawalID uuid.UUID) (domain.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]domain.Withdrawal, int64, error)
	// MarkProcessing transitions pending -> processing; any other stored
	// status fails with domain.ErrConflict.
	MarkProcessing(ctx context.Context, withdrawalID uuid.UUID, attempts int) (domain.Withdrawal, error)
	Complete(ctx context.Context, withdrawalID uuid.UUID, gatewayReference string, now time.Time) (domain.Withdrawal, error)
	// SetGatewayReference stores the gateway's reference on a processing
	// withdrawal whose final outcome is still pending on the gateway side.
	SetGatewayReference(ctx context.Context, withdrawalID uuid.UUID, gatewayReference string) (domain.Withdrawal, error)
	// FailWithRefund marks the withdrawal failed and re-credits the gross
	// amount through an explicit refund transaction, atomically.
	FailWithRefund(ctx context.Context, withdrawalID uuid.UUID, reason string, now time.Time) (domain.Withdrawal, error)
	// CancelWithRefund succeeds only while the row is still pending.
	// Already-cancelled rows return the record with domain.ErrConflict.
	CancelWithRefund(ctx context.Context, withdrawalID, userID uuid.UUID, now time.Time) (domain.Withdrawal, error)
	// ListStalePending returns pending withdrawals requested before cutoff,
	// for the crash-recovery dispatch sweep.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Withdrawal, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, referral domain.Referral) error
	GetByReferredUser(ctx context.Context, referredUserID uuid.UUID) (domain.Referral, error)
	// Activate flips pending -> active; returns domain.ErrNotFound when the
	// user has no pending referral.
	Activate(ctx context.Context, referredUserID uuid.UUID, at time.Time) (domain.Referral, error)
	// RecordCommission adds to the earnings/commission accumulators.
	RecordCommission(ctx context.Context, referralID uuid.UUID, earning, commission float64) error
	// ExpireStale flips pending/active rows past their expiry to expired and
	// reports how many changed. Reporting convenience only.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]domain.Referral, error)
}

type ProviderRepository interface {
	GetByID(ctx context.Context, providerID string) (domain.ExternalProvider, error)
	List(ctx context.Context, enabledOnly bool) ([]domain.ExternalProvider, error)
	Upsert(ctx context.Context, provider domain.ExternalProvider) error
	BumpMetrics(ctx context.Context, providerID string, revenue float64) error
	TouchSync(ctx context.Context, providerID string, at time.Time) error
}

// RewardCreditParams records a reconciled external completion and credits
// the worker in one transaction keyed on (ProviderID, ExternalTransactionID).
type RewardCreditParams struct {
	Reward domain.ProviderReward
	Credit LedgerEntryParams
}

type ProviderRewardRepository interface {
	// RecordWithCredit inserts the reward row and applies the wallet credit
	// atomically. A duplicate idempotency key fails with domain.ErrConflict
	// and applies nothing.
	RecordWithCredit(ctx context.Context, p RewardCreditParams, now time.Time) (domain.ProviderReward, error)
	GetByExternalID(ctx context.Context, providerID, externalTransactionID string) (domain.ProviderReward, error)
}

type PostbackLogRepository interface {
	Append(ctx context.Context, log domain.PostbackLog) error
	// PurgeOlderThan enforces the 30-day retention window.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRecord is a pending notification event written in the same database
// transaction as the money operation that produced it.
type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	RetryCount   int
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken string, reason string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken string, reason string, at time.Time) error
}
