package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

// RequestWithdrawal reserves funds for a payout. The gross amount is debited
// immediately so the balance a user sees never includes money already
// committed to an in-flight withdrawal.
func (s *Service) RequestWithdrawal(ctx context.Context, in WithdrawalRequestInput) (domain.Withdrawal, error) {
	if in.UserID == uuid.Nil {
		return domain.Withdrawal{}, fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	if in.Amount < s.cfg.MinimumWithdrawal {
		return domain.Withdrawal{}, fmt.Errorf("%w: minimum is %.2f", domain.ErrWithdrawalBelowMinimum, s.cfg.MinimumWithdrawal)
	}
	if in.Method == "" {
		return domain.Withdrawal{}, fmt.Errorf("%w: withdrawal method required", domain.ErrInvalidInput)
	}

	fee := in.Amount * s.cfg.WithdrawalFeeRate
	net := in.Amount - fee
	if net <= 0 {
		return domain.Withdrawal{}, fmt.Errorf("%w: amount does not cover the fee", domain.ErrInvalidInput)
	}

	w, err := s.withdrawals.CreateWithDebit(ctx, ports.WithdrawalCreateParams{
		UserID:         in.UserID,
		Amount:         in.Amount,
		Fee:            fee,
		NetAmount:      net,
		Method:         in.Method,
		AccountDetails: in.AccountDetails,
	}, s.nowFn())
	if err != nil {
		return domain.Withdrawal{}, err
	}

	s.emitWithdrawalStatus(ctx, w, "")
	return w, nil
}

// DispatchWithdrawal pushes one pending withdrawal to the payment gateway
// with bounded retries. Transient gateway errors back off exponentially; a
// rejection fails the withdrawal and refunds the reserved funds; exhausting
// every attempt leaves the row in processing and flags it for manual review,
// because at that point the gateway may or may not have moved the money.
func (s *Service) DispatchWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (domain.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if w.Status != domain.WithdrawalStatusPending {
		return w, fmt.Errorf("%w: withdrawal is %s", domain.ErrConflict, w.Status)
	}

	w, err = s.withdrawals.MarkProcessing(ctx, withdrawalID, w.Attempts+1)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	s.emitWithdrawalStatus(ctx, w, "")

	var lastErr error
	for attempt := 1; attempt <= s.cfg.GatewayMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		result, gwErr := s.gateway.Payout(callCtx, w)
		cancel()

		switch {
		case gwErr == nil && result.Success:
			done, err := s.withdrawals.Complete(ctx, withdrawalID, result.Reference, s.nowFn())
			if err != nil {
				return domain.Withdrawal{}, err
			}
			s.emitWithdrawalStatus(ctx, done, "")
			return done, nil
		case gwErr == nil && result.Pending:
			pending, err := s.withdrawals.SetGatewayReference(ctx, withdrawalID, result.Reference)
			if err != nil {
				return domain.Withdrawal{}, err
			}
			s.logger.InfoContext(ctx, "withdrawal pending on gateway",
				"operation", "dispatch_withdrawal",
				"outcome", "pending",
				"withdrawal_id", withdrawalID,
				"gateway_reference", result.Reference,
			)
			return pending, nil
		case gwErr == nil:
			failed, err := s.withdrawals.FailWithRefund(ctx, withdrawalID, result.Message, s.nowFn())
			if err != nil {
				return domain.Withdrawal{}, err
			}
			s.emitWithdrawalStatus(ctx, failed, result.Message)
			return failed, nil
		case errors.Is(gwErr, domain.ErrGatewayRejected):
			failed, err := s.withdrawals.FailWithRefund(ctx, withdrawalID, gwErr.Error(), s.nowFn())
			if err != nil {
				return domain.Withdrawal{}, err
			}
			s.emitWithdrawalStatus(ctx, failed, gwErr.Error())
			return failed, nil
		default:
			lastErr = gwErr
			s.logger.WarnContext(ctx, "gateway payout attempt failed",
				"operation", "dispatch_withdrawal",
				"outcome", "retry",
				"withdrawal_id", withdrawalID,
				"attempt", attempt,
				"error", gwErr,
			)
			if attempt < s.cfg.GatewayMaxAttempts {
				if err := sleepCtx(ctx, s.cfg.GatewayBackoffBase<<(attempt-1)); err != nil {
					return w, err
				}
			}
		}
	}

	s.enqueueEvent(ctx, domain.EventWithdrawalNeedsReview, w.UserID.String(), map[string]any{
		"withdrawal_id": withdrawalID.String(),
		"user_id":       w.UserID.String(),
		"amount":        w.Amount,
		"attempts":      s.cfg.GatewayMaxAttempts,
		"last_error":    lastErr.Error(),
	})
	return w, fmt.Errorf("dispatch withdrawal %s: %w", withdrawalID, lastErr)
}

// ResolveGatewayResult finalizes a processing withdrawal from an
// asynchronous gateway callback or an operator decision.
func (s *Service) ResolveGatewayResult(ctx context.Context, withdrawalID uuid.UUID, result domain.GatewayResult) (domain.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if w.Finalized() {
		return w, fmt.Errorf("%w: withdrawal is %s", domain.ErrConflict, w.Status)
	}

	if result.Success {
		done, err := s.withdrawals.Complete(ctx, withdrawalID, result.Reference, s.nowFn())
		if err != nil {
			return domain.Withdrawal{}, err
		}
		s.emitWithdrawalStatus(ctx, done, "")
		return done, nil
	}
	failed, err := s.withdrawals.FailWithRefund(ctx, withdrawalID, result.Message, s.nowFn())
	if err != nil {
		return domain.Withdrawal{}, err
	}
	s.emitWithdrawalStatus(ctx, failed, result.Message)
	return failed, nil
}

// CancelWithdrawal lets the owner withdraw a request that has not been
// dispatched yet. Cancelling an already-cancelled withdrawal succeeds
// without a second refund.
func (s *Service) CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (domain.Withdrawal, error) {
	w, err := s.withdrawals.CancelWithRefund(ctx, withdrawalID, userID, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrWithdrawalNotCancellable) && w.Status == domain.WithdrawalStatusCancelled {
			return w, nil
		}
		return domain.Withdrawal{}, err
	}
	s.emitWithdrawalStatus(ctx, w, "")
	return w, nil
}

// GetWithdrawal returns one withdrawal by id.
func (s *Service) GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (domain.Withdrawal, error) {
	return s.withdrawals.GetByID(ctx, withdrawalID)
}

// ListWithdrawals pages through a user's withdrawal history, optionally
// filtered by status.
func (s *Service) ListWithdrawals(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]domain.Withdrawal, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.withdrawals.ListByUser(ctx, userID, status, page, limit)
}

// DispatchStalePending re-dispatches withdrawals that stayed pending past
// the grace window, which covers a crash between request and dispatch.
func (s *Service) DispatchStalePending(ctx context.Context, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	cutoff := s.nowFn().Add(-s.cfg.PendingDispatchGrace)
	stale, err := s.withdrawals.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "stale withdrawal scan failed",
			"operation", "dispatch_stale_pending",
			"outcome", "failure",
			"error", err,
		)
		return 0
	}

	dispatched := 0
	for _, w := range stale {
		if _, err := s.DispatchWithdrawal(ctx, w.WithdrawalID); err != nil {
			s.logger.ErrorContext(ctx, "stale withdrawal dispatch failed",
				"operation", "dispatch_stale_pending",
				"outcome", "failure",
				"withdrawal_id", w.WithdrawalID,
				"error", err,
			)
			continue
		}
		dispatched++
	}
	return dispatched
}

func (s *Service) emitWithdrawalStatus(ctx context.Context, w domain.Withdrawal, reason string) {
	payload := map[string]any{
		"withdrawal_id": w.WithdrawalID.String(),
		"user_id":       w.UserID.String(),
		"status":        w.Status,
		"amount":        w.Amount,
		"net_amount":    w.NetAmount,
		"method":        w.Method,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	s.enqueueEvent(ctx, domain.EventWithdrawalStatusChanged, w.UserID.String(), payload)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
