package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusCancelled  = "cancelled"
)

// AccountDetails is the payout destination for a withdrawal. Fields are
// method-specific; unrecognized provider payloads stay in Raw and are never
// read by money operations.
type AccountDetails struct {
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	Raw           []byte `json:"-"`
}

// Withdrawal is one payout request. The wallet is debited for Amount at
// creation time, so a pending or processing withdrawal always has its funds
// reserved; failure and cancellation reverse the debit with an explicit
// refund transaction.
type Withdrawal struct {
	WithdrawalID     uuid.UUID
	UserID           uuid.UUID
	WalletID         uuid.UUID
	Amount           float64
	Fee              float64
	NetAmount        float64
	Method           string
	AccountDetails   AccountDetails
	Status           string
	GatewayReference *string
	FailureReason    *string
	Attempts         int
	RequestedAt      time.Time
	ProcessedAt      *time.Time
}

// Finalized reports whether the withdrawal reached a terminal status.
func (w Withdrawal) Finalized() bool {
	switch w.Status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// GatewayResult is the normalized outcome of a payout or charge call against
// the external payment gateway.
type GatewayResult struct {
	Success   bool
	Pending   bool
	Reference string
	Message   string
}
