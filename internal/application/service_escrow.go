package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

// FundTask debits the sponsor for the full slot value plus platform fee and
// opens the escrow in held status. The debit and the escrow row are written
// in one repository transaction, so a sponsor can never fund a task their
// balance cannot cover.
func (s *Service) FundTask(ctx context.Context, in FundTaskInput) (domain.Escrow, error) {
	if in.SponsorID == uuid.Nil || in.TaskID == uuid.Nil {
		return domain.Escrow{}, fmt.Errorf("%w: sponsor and task ids required", domain.ErrInvalidInput)
	}
	if in.TotalSlots <= 0 || in.AmountPerSlot <= 0 || in.PlatformFee < 0 {
		return domain.Escrow{}, fmt.Errorf("%w: invalid funding parameters", domain.ErrInvalidInput)
	}

	escrow, err := s.escrows.FundTask(ctx, ports.FundTaskParams{
		SponsorID:     in.SponsorID,
		TaskID:        in.TaskID,
		TotalSlots:    in.TotalSlots,
		AmountPerSlot: in.AmountPerSlot,
		PlatformFee:   in.PlatformFee,
	}, s.nowFn())
	if err != nil {
		return domain.Escrow{}, err
	}

	s.enqueueEvent(ctx, domain.EventEscrowFunded, in.SponsorID.String(), map[string]any{
		"escrow_id":   escrow.EscrowID.String(),
		"task_id":     in.TaskID.String(),
		"sponsor_id":  in.SponsorID.String(),
		"amount":      escrow.Amount,
		"total_slots": escrow.TotalSlots,
	})
	return escrow, nil
}

// ReleaseSlot pays one completed slot to the worker. The slot claim and the
// worker credit are one repository transaction; the referral accrual that
// follows is deliberately outside it and retryable from the transaction log,
// so a crash between the two loses at most a commission opportunity, never
// money.
func (s *Service) ReleaseSlot(ctx context.Context, taskID, workerID uuid.UUID) (domain.Escrow, error) {
	if taskID == uuid.Nil || workerID == uuid.Nil {
		return domain.Escrow{}, fmt.Errorf("%w: task and worker ids required", domain.ErrInvalidInput)
	}

	release, err := s.escrows.ReleaseSlot(ctx, taskID, workerID, s.nowFn())
	if err != nil {
		return domain.Escrow{}, err
	}

	if err := s.AccrueCommission(ctx, workerID, release.Escrow.AmountPerSlot, release.WorkerTxn.Reference); err != nil {
		s.logger.ErrorContext(ctx, "referral accrual failed after slot release",
			"operation", "release_slot",
			"outcome", "partial",
			"task_id", taskID,
			"worker_id", workerID,
			"reference", release.WorkerTxn.Reference,
			"error", err,
		)
	}

	s.enqueueEvent(ctx, domain.EventEscrowSlotReleased, workerID.String(), map[string]any{
		"escrow_id":      release.Escrow.EscrowID.String(),
		"task_id":        taskID.String(),
		"worker_id":      workerID.String(),
		"slot_index":     release.SlotIndex,
		"amount":         release.Escrow.AmountPerSlot,
		"released_slots": release.Escrow.ReleasedSlots,
		"status":         release.Escrow.Status,
	})
	return release.Escrow, nil
}

// RefundRemaining returns unreleased slot value to the sponsor and closes
// the escrow. Refunding an already-refunded escrow is a successful no-op.
func (s *Service) RefundRemaining(ctx context.Context, taskID uuid.UUID, reason string) (domain.Escrow, error) {
	if taskID == uuid.Nil {
		return domain.Escrow{}, fmt.Errorf("%w: task id required", domain.ErrInvalidInput)
	}
	if reason == "" {
		reason = "task closed"
	}

	escrow, refunded, err := s.escrows.RefundRemaining(ctx, taskID, reason, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && escrow.Status == domain.EscrowStatusRefunded {
			return escrow, nil
		}
		return domain.Escrow{}, err
	}

	s.enqueueEvent(ctx, domain.EventEscrowRefunded, escrow.SponsorID.String(), map[string]any{
		"escrow_id":  escrow.EscrowID.String(),
		"task_id":    taskID.String(),
		"sponsor_id": escrow.SponsorID.String(),
		"refunded":   refunded,
		"reason":     reason,
	})
	return escrow, nil
}

// GetEscrow returns the escrow bound to one task.
func (s *Service) GetEscrow(ctx context.Context, taskID uuid.UUID) (domain.Escrow, error) {
	return s.escrows.GetByTaskID(ctx, taskID)
}
