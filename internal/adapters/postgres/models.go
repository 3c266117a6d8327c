package postgres

import (
	"time"

	"github.com/google/uuid"
)

type walletModel struct {
	WalletID         uuid.UUID `gorm:"column:wallet_id;type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid"`
	AvailableBalance float64   `gorm:"column:available_balance"`
	EscrowBalance    float64   `gorm:"column:escrow_balance"`
	LifetimeEarnings float64   `gorm:"column:lifetime_earnings"`
	LifetimeSpending float64   `gorm:"column:lifetime_spending"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type transactionModel struct {
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;primaryKey"`
	WalletID      uuid.UUID `gorm:"column:wallet_id;type:uuid"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid"`
	Amount        float64   `gorm:"column:amount"`
	Kind          string    `gorm:"column:kind"`
	Reference     *string   `gorm:"column:reference"`
	Description   string    `gorm:"column:description"`
	BalanceBefore float64   `gorm:"column:balance_before"`
	BalanceAfter  float64   `gorm:"column:balance_after"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (transactionModel) TableName() string { return "wallet_transactions" }

type escrowModel struct {
	EscrowID      uuid.UUID  `gorm:"column:escrow_id;type:uuid;primaryKey"`
	SponsorID     uuid.UUID  `gorm:"column:sponsor_id;type:uuid"`
	TaskID        uuid.UUID  `gorm:"column:task_id;type:uuid"`
	Amount        float64    `gorm:"column:amount"`
	TotalSlots    int        `gorm:"column:total_slots"`
	ReleasedSlots int        `gorm:"column:released_slots"`
	AmountPerSlot float64    `gorm:"column:amount_per_slot"`
	PlatformFee   float64    `gorm:"column:platform_fee"`
	Status        string     `gorm:"column:status"`
	HeldAt        time.Time  `gorm:"column:held_at"`
	ReleasedAt    *time.Time `gorm:"column:released_at"`
	RefundedAt    *time.Time `gorm:"column:refunded_at"`
}

func (escrowModel) TableName() string { return "escrows" }

type withdrawalModel struct {
	WithdrawalID     uuid.UUID  `gorm:"column:withdrawal_id;type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid"`
	WalletID         uuid.UUID  `gorm:"column:wallet_id;type:uuid"`
	Amount           float64    `gorm:"column:amount"`
	Fee              float64    `gorm:"column:fee"`
	NetAmount        float64    `gorm:"column:net_amount"`
	Method           string     `gorm:"column:method"`
	AccountDetails   string     `gorm:"column:account_details;type:jsonb"`
	Status           string     `gorm:"column:status"`
	GatewayReference *string    `gorm:"column:gateway_reference"`
	FailureReason    *string    `gorm:"column:failure_reason"`
	Attempts         int        `gorm:"column:attempts"`
	RequestedAt      time.Time  `gorm:"column:requested_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
}

func (withdrawalModel) TableName() string { return "withdrawals" }

type referralModel struct {
	ReferralID           uuid.UUID  `gorm:"column:referral_id;type:uuid;primaryKey"`
	ReferrerID           uuid.UUID  `gorm:"column:referrer_id;type:uuid"`
	ReferredUserID       uuid.UUID  `gorm:"column:referred_user_id;type:uuid"`
	ReferralCode         string     `gorm:"column:referral_code"`
	Status               string     `gorm:"column:status"`
	CommissionRate       float64    `gorm:"column:commission_rate"`
	CommissionPeriodDays int        `gorm:"column:commission_period_days"`
	ExpiresAt            time.Time  `gorm:"column:expires_at"`
	ActivatedAt          *time.Time `gorm:"column:activated_at"`
	TotalEarnings        float64    `gorm:"column:total_earnings"`
	TotalCommission      float64    `gorm:"column:total_commission"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
}

func (referralModel) TableName() string { return "referrals" }

type providerModel struct {
	ProviderID       string     `gorm:"column:provider_id;primaryKey"`
	Name             string     `gorm:"column:name"`
	Category         string     `gorm:"column:category"`
	CommissionRate   float64    `gorm:"column:commission_rate"`
	Secret           string     `gorm:"column:secret"`
	Enabled          bool       `gorm:"column:enabled"`
	TotalCompletions int64      `gorm:"column:total_completions"`
	TotalRevenue     float64    `gorm:"column:total_revenue"`
	LastSyncAt       *time.Time `gorm:"column:last_sync_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (providerModel) TableName() string { return "external_providers" }

type providerRewardModel struct {
	RewardID              uuid.UUID  `gorm:"column:reward_id;type:uuid;primaryKey"`
	ProviderID            string     `gorm:"column:provider_id"`
	ExternalTransactionID string     `gorm:"column:external_transaction_id"`
	UserID                uuid.UUID  `gorm:"column:user_id;type:uuid"`
	GrossAmount           float64    `gorm:"column:gross_amount"`
	CommissionAmount      float64    `gorm:"column:commission_amount"`
	NetAmount             float64    `gorm:"column:net_amount"`
	OfferName             string     `gorm:"column:offer_name"`
	Status                string     `gorm:"column:status"`
	ProcessedAt           *time.Time `gorm:"column:processed_at"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
}

func (providerRewardModel) TableName() string { return "provider_rewards" }

type postbackLogModel struct {
	LogID                 uuid.UUID  `gorm:"column:log_id;type:uuid;primaryKey"`
	ProviderID            string     `gorm:"column:provider_id"`
	ExternalTransactionID string     `gorm:"column:external_transaction_id"`
	UserID                *uuid.UUID `gorm:"column:user_id"`
	Payload               string     `gorm:"column:payload;type:jsonb"`
	Outcome               string     `gorm:"column:outcome"`
	ErrorReason           *string    `gorm:"column:error_reason"`
	LatencyMS             int64      `gorm:"column:latency_ms"`
	ReceivedAt            time.Time  `gorm:"column:received_at"`
}

func (postbackLogModel) TableName() string { return "postback_logs" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "payments_outbox" }
