package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusHeld              = "held"
	EscrowStatusPartiallyReleased = "partially_released"
	EscrowStatusReleased          = "released"
	EscrowStatusRefunded          = "refunded"
)

// Escrow holds sponsor funds against one task until released per completed
// slot or refunded. ReleasedSlots never exceeds TotalSlots and
// ReleasedSlots*AmountPerSlot never exceeds Amount.
type Escrow struct {
	EscrowID      uuid.UUID
	SponsorID     uuid.UUID
	TaskID        uuid.UUID
	Amount        float64
	TotalSlots    int
	ReleasedSlots int
	AmountPerSlot float64
	PlatformFee   float64
	Status        string
	HeldAt        time.Time
	ReleasedAt    *time.Time
	RefundedAt    *time.Time
}

// Terminal reports whether no further releases or refunds are possible.
func (e Escrow) Terminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}

// RemainingValue is the unreleased slot value still held.
func (e Escrow) RemainingValue() float64 {
	return float64(e.TotalSlots-e.ReleasedSlots) * e.AmountPerSlot
}
