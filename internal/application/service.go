package application

import (
	"log/slog"
	"time"

	"github.com/earnforge/payments-core/internal/ports"
)

// Config carries the tunable business parameters of the payments core.
type Config struct {
	MinimumWithdrawal     float64
	WithdrawalFeeRate     float64
	DefaultCommissionRate float64
	CommissionPeriodDays  int

	GatewayTimeout     time.Duration
	GatewayMaxAttempts int
	GatewayBackoffBase time.Duration

	ProviderFetchTimeout time.Duration
	ProviderStaleAfter   time.Duration
	PostbackLockTTL      time.Duration
	PostbackRetention    time.Duration

	// PendingDispatchGrace is how long a withdrawal may sit pending before
	// the sweep re-dispatches it (covers crashes between request and
	// dispatch).
	PendingDispatchGrace time.Duration
}

// Service implements every money operation of the payments core: ledger
// credit/debit, escrow lifecycle, withdrawal state machine, referral
// commission accrual and postback reconciliation.
type Service struct {
	cfg          Config
	logger       *slog.Logger
	wallets      ports.WalletRepository
	escrows      ports.EscrowRepository
	withdrawals  ports.WithdrawalRepository
	referrals    ports.ReferralRepository
	providers    ports.ProviderRepository
	rewards      ports.ProviderRewardRepository
	postbackLogs ports.PostbackLogRepository
	outbox       ports.OutboxRepository
	registry     ports.AdapterRegistry
	health       ports.ProviderHealthStore
	locks        ports.PostbackLockStore
	gateway      ports.PayoutGateway
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Logger       *slog.Logger
	Wallets      ports.WalletRepository
	Escrows      ports.EscrowRepository
	Withdrawals  ports.WithdrawalRepository
	Referrals    ports.ReferralRepository
	Providers    ports.ProviderRepository
	Rewards      ports.ProviderRewardRepository
	PostbackLogs ports.PostbackLogRepository
	Outbox       ports.OutboxRepository
	Registry     ports.AdapterRegistry
	Health       ports.ProviderHealthStore
	Locks        ports.PostbackLockStore
	Gateway      ports.PayoutGateway
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.GatewayMaxAttempts <= 0 {
		cfg.GatewayMaxAttempts = 3
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.GatewayBackoffBase <= 0 {
		cfg.GatewayBackoffBase = time.Second
	}
	if cfg.ProviderFetchTimeout <= 0 {
		cfg.ProviderFetchTimeout = 10 * time.Second
	}
	if cfg.ProviderStaleAfter <= 0 {
		cfg.ProviderStaleAfter = 24 * time.Hour
	}
	if cfg.PostbackLockTTL <= 0 {
		cfg.PostbackLockTTL = 30 * time.Second
	}
	if cfg.PostbackRetention <= 0 {
		cfg.PostbackRetention = 30 * 24 * time.Hour
	}
	if cfg.PendingDispatchGrace <= 0 {
		cfg.PendingDispatchGrace = 5 * time.Minute
	}
	if cfg.CommissionPeriodDays <= 0 {
		cfg.CommissionPeriodDays = 30
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		logger:       logger.With("module", "application", "layer", "service"),
		wallets:      deps.Wallets,
		escrows:      deps.Escrows,
		withdrawals:  deps.Withdrawals,
		referrals:    deps.Referrals,
		providers:    deps.Providers,
		rewards:      deps.Rewards,
		postbackLogs: deps.PostbackLogs,
		outbox:       deps.Outbox,
		registry:     deps.Registry,
		health:       deps.Health,
		locks:        deps.Locks,
		gateway:      deps.Gateway,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
