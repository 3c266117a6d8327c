package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

// CreateWallet provisions the zero-balance wallet for a new user.
func (s *Service) CreateWallet(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	if userID == uuid.Nil {
		return domain.Wallet{}, fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	return s.wallets.Create(ctx, userID, s.nowFn())
}

// Credit adds funds to a wallet with a paired transaction record. A reused
// reference returns the prior transaction instead of double-applying, which
// makes the operation safe under postback replay and gateway retries.
func (s *Service) Credit(ctx context.Context, in CreditInput) (domain.Transaction, error) {
	if in.Amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidInput)
	}
	txn, err := s.applyEntry(ctx, ports.LedgerEntryParams{
		UserID:      in.UserID,
		Amount:      in.Amount,
		Kind:        in.Kind,
		Reference:   in.Reference,
		Description: in.Description,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.enqueueEvent(ctx, domain.EventWalletCredited, in.UserID.String(), map[string]any{
		"user_id":        in.UserID.String(),
		"amount":         in.Amount,
		"kind":           in.Kind,
		"transaction_id": txn.TransactionID.String(),
	})
	return txn, nil
}

// Debit removes funds from a wallet, failing with ErrInsufficientFunds when
// the available balance cannot cover the amount. Serialization against
// concurrent debits happens under the wallet row lock in the repository.
func (s *Service) Debit(ctx context.Context, in DebitInput) (domain.Transaction, error) {
	if in.Amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: debit amount must be positive", domain.ErrInvalidInput)
	}
	txn, err := s.applyEntry(ctx, ports.LedgerEntryParams{
		UserID:      in.UserID,
		Amount:      -in.Amount,
		Kind:        in.Kind,
		Reference:   in.Reference,
		Description: in.Description,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.enqueueEvent(ctx, domain.EventWalletDebited, in.UserID.String(), map[string]any{
		"user_id":        in.UserID.String(),
		"amount":         in.Amount,
		"kind":           in.Kind,
		"transaction_id": txn.TransactionID.String(),
	})
	return txn, nil
}

// applyEntry funnels every balance mutation through the repository's atomic
// entry write and resolves duplicate references to their prior result.
func (s *Service) applyEntry(ctx context.Context, p ports.LedgerEntryParams) (domain.Transaction, error) {
	txn, err := s.wallets.ApplyEntry(ctx, p, s.nowFn())
	if err == nil {
		return txn, nil
	}
	if errors.Is(err, domain.ErrConflict) && p.Reference != "" {
		prior, lookupErr := s.wallets.TransactionByReference(ctx, p.Reference)
		if lookupErr != nil {
			return domain.Transaction{}, err
		}
		s.logger.InfoContext(ctx, "ledger entry replayed",
			"operation", "apply_entry",
			"outcome", "replay",
			"reference", p.Reference,
			"transaction_id", prior.TransactionID,
		)
		return prior, nil
	}
	return domain.Transaction{}, err
}

// Balance returns the wallet snapshot for one user.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

// History pages through a wallet's transaction log, optionally filtered by
// kind.
func (s *Service) History(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind, page, limit int) ([]domain.Transaction, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.wallets.History(ctx, userID, kind, page, limit)
}
