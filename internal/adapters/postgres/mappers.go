package postgres

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/earnforge/payments-core/internal/domain"
)

func toDomainWallet(m walletModel) domain.Wallet {
	return domain.Wallet{
		WalletID:         m.WalletID,
		UserID:           m.UserID,
		AvailableBalance: m.AvailableBalance,
		EscrowBalance:    m.EscrowBalance,
		LifetimeEarnings: m.LifetimeEarnings,
		LifetimeSpending: m.LifetimeSpending,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toDomainTransaction(m transactionModel) domain.Transaction {
	ref := ""
	if m.Reference != nil {
		ref = *m.Reference
	}
	return domain.Transaction{
		TransactionID: m.TransactionID,
		WalletID:      m.WalletID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Kind:          domain.TransactionKind(m.Kind),
		Reference:     ref,
		Description:   m.Description,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		CreatedAt:     m.CreatedAt,
	}
}

func toDomainEscrow(m escrowModel) domain.Escrow {
	return domain.Escrow{
		EscrowID:      m.EscrowID,
		SponsorID:     m.SponsorID,
		TaskID:        m.TaskID,
		Amount:        m.Amount,
		TotalSlots:    m.TotalSlots,
		ReleasedSlots: m.ReleasedSlots,
		AmountPerSlot: m.AmountPerSlot,
		PlatformFee:   m.PlatformFee,
		Status:        m.Status,
		HeldAt:        m.HeldAt,
		ReleasedAt:    m.ReleasedAt,
		RefundedAt:    m.RefundedAt,
	}
}

func toDomainWithdrawal(m withdrawalModel) domain.Withdrawal {
	var details domain.AccountDetails
	if err := json.Unmarshal([]byte(m.AccountDetails), &details); err != nil {
		details = domain.AccountDetails{Raw: []byte(m.AccountDetails)}
	}
	return domain.Withdrawal{
		WithdrawalID:     m.WithdrawalID,
		UserID:           m.UserID,
		WalletID:         m.WalletID,
		Amount:           m.Amount,
		Fee:              m.Fee,
		NetAmount:        m.NetAmount,
		Method:           m.Method,
		AccountDetails:   details,
		Status:           m.Status,
		GatewayReference: m.GatewayReference,
		FailureReason:    m.FailureReason,
		Attempts:         m.Attempts,
		RequestedAt:      m.RequestedAt,
		ProcessedAt:      m.ProcessedAt,
	}
}

func toDomainReferral(m referralModel) domain.Referral {
	return domain.Referral{
		ReferralID:           m.ReferralID,
		ReferrerID:           m.ReferrerID,
		ReferredUserID:       m.ReferredUserID,
		ReferralCode:         m.ReferralCode,
		Status:               m.Status,
		CommissionRate:       m.CommissionRate,
		CommissionPeriodDays: m.CommissionPeriodDays,
		ExpiresAt:            m.ExpiresAt,
		ActivatedAt:          m.ActivatedAt,
		TotalEarnings:        m.TotalEarnings,
		TotalCommission:      m.TotalCommission,
		CreatedAt:            m.CreatedAt,
	}
}

func toDomainProvider(m providerModel) domain.ExternalProvider {
	return domain.ExternalProvider{
		ProviderID:       m.ProviderID,
		Name:             m.Name,
		Category:         m.Category,
		CommissionRate:   m.CommissionRate,
		Secret:           m.Secret,
		Enabled:          m.Enabled,
		TotalCompletions: m.TotalCompletions,
		TotalRevenue:     m.TotalRevenue,
		LastSyncAt:       m.LastSyncAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toDomainReward(m providerRewardModel) domain.ProviderReward {
	return domain.ProviderReward{
		RewardID:              m.RewardID,
		ProviderID:            m.ProviderID,
		ExternalTransactionID: m.ExternalTransactionID,
		UserID:                m.UserID,
		GrossAmount:           m.GrossAmount,
		CommissionAmount:      m.CommissionAmount,
		NetAmount:             m.NetAmount,
		OfferName:             m.OfferName,
		Status:                m.Status,
		ProcessedAt:           m.ProcessedAt,
		CreatedAt:             m.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func nullableRef(reference string) *string {
	if reference == "" {
		return nil
	}
	return &reference
}
