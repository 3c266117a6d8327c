package postgres

import (
	"gorm.io/gorm"

	"github.com/earnforge/payments-core/internal/ports"
)

type Repositories struct {
	Wallets      ports.WalletRepository
	Escrows      ports.EscrowRepository
	Withdrawals  ports.WithdrawalRepository
	Referrals    ports.ReferralRepository
	Providers    ports.ProviderRepository
	Rewards      ports.ProviderRewardRepository
	PostbackLogs ports.PostbackLogRepository
	Outbox       ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Wallets:      &walletRepository{db: db},
		Escrows:      &escrowRepository{db: db},
		Withdrawals:  &withdrawalRepository{db: db},
		Referrals:    &referralRepository{db: db},
		Providers:    &providerRepository{db: db},
		Rewards:      &rewardRepository{db: db},
		PostbackLogs: &postbackLogRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
