package domain

// Event types published through the transactional outbox. Consumers are the
// notification and task domains; delivery is fire-and-forget and never part
// of the money operation that produced the event.
const (
	EventWalletCredited          = "wallet.credited"
	EventWalletDebited           = "wallet.debited"
	EventEscrowFunded            = "escrow.funded"
	EventEscrowSlotReleased      = "escrow.slot_released"
	EventEscrowRefunded          = "escrow.refunded"
	EventWithdrawalStatusChanged = "withdrawal.status_changed"
	EventWithdrawalNeedsReview   = "withdrawal.needs_review"
	EventReferralCommissionPaid  = "referral.commission_accrued"
	EventProviderRewardCredited  = "provider.reward_credited"
	EventProviderHealthChanged   = "provider.health_changed"
)

// Event types consumed from the task and user domains.
const (
	EventTaskApproved    = "task.approved"
	EventUserFirstAction = "user.first_action"
)
