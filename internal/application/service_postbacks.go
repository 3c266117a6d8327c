package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

const (
	postbackOutcomeCredited  = "credited"
	postbackOutcomeDuplicate = "duplicate"
	postbackOutcomeRejected  = "rejected"
	postbackOutcomeError     = "error"
)

// ProcessPostback reconciles one provider completion callback into a wallet
// credit. The pipeline is resolve adapter, parse, verify signature, lock the
// idempotency key, then record-and-credit in one transaction. Every attempt
// is appended to the postback log regardless of outcome.
func (s *Service) ProcessPostback(ctx context.Context, providerID string, values url.Values) (PostbackResult, error) {
	started := s.nowFn()

	adapter, ok := s.registry.Get(providerID)
	if !ok {
		s.appendPostbackLog(ctx, providerID, domain.Postback{}, values, postbackOutcomeRejected, "unknown provider", started)
		return PostbackResult{Reason: "unknown provider"}, domain.ErrUnknownProvider
	}

	postback, err := adapter.ParsePostback(values)
	if err != nil {
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeRejected, err.Error(), started)
		return PostbackResult{Reason: "malformed postback"}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeError, err.Error(), started)
		return PostbackResult{Reason: "provider lookup failed"}, err
	}
	if !provider.Enabled {
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeRejected, "provider disabled", started)
		return PostbackResult{Reason: "provider disabled"}, domain.ErrUnknownProvider
	}

	if err := adapter.VerifyPostback(postback, provider.Secret); err != nil {
		s.noteProviderFailure(ctx, providerID)
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeRejected, "signature mismatch", started)
		return PostbackResult{Reason: "invalid signature"}, domain.ErrInvalidPostbackSignature
	}

	lockKey := fmt.Sprintf("postback:%s:%s", providerID, postback.ExternalTransactionID)
	acquired, err := s.locks.Acquire(ctx, lockKey, s.cfg.PostbackLockTTL)
	if err != nil {
		// Lock store down: proceed anyway, the unique reward key still
		// guards against a double credit.
		s.logger.WarnContext(ctx, "postback lock unavailable",
			"operation", "process_postback",
			"provider_id", providerID,
			"error", err,
		)
	} else if !acquired {
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeDuplicate, "concurrent delivery", started)
		return s.duplicateResult(ctx, providerID, postback, nil)
	} else {
		defer func() {
			if err := s.locks.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.WarnContext(ctx, "postback lock release failed", "key", lockKey, "error", err)
			}
		}()
	}

	commission := postback.Amount * provider.CommissionRate / 100
	net := postback.Amount - commission
	now := s.nowFn()
	reward := domain.ProviderReward{
		RewardID:              uuid.New(),
		ProviderID:            providerID,
		ExternalTransactionID: postback.ExternalTransactionID,
		UserID:                postback.UserID,
		GrossAmount:           postback.Amount,
		CommissionAmount:      commission,
		NetAmount:             net,
		OfferName:             postback.OfferName,
		Status:                "credited",
		ProcessedAt:           &now,
		CreatedAt:             now,
	}

	stored, err := s.rewards.RecordWithCredit(ctx, ports.RewardCreditParams{
		Reward: reward,
		Credit: ports.LedgerEntryParams{
			UserID:      postback.UserID,
			Amount:      net,
			Kind:        domain.TxnProviderReward,
			Reference:   fmt.Sprintf("provider:%s:%s", providerID, postback.ExternalTransactionID),
			Description: postback.OfferName,
		},
	}, now)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeDuplicate, "already credited", started)
			return s.duplicateResult(ctx, providerID, postback, err)
		}
		s.noteProviderFailure(ctx, providerID)
		s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeError, err.Error(), started)
		return PostbackResult{Reason: "credit failed"}, err
	}

	s.noteProviderSuccess(ctx, providerID)
	if err := s.providers.BumpMetrics(ctx, providerID, postback.Amount); err != nil {
		s.logger.WarnContext(ctx, "provider metrics update failed",
			"operation", "process_postback",
			"provider_id", providerID,
			"error", err,
		)
	}
	if err := s.AccrueCommission(ctx, postback.UserID, net, fmt.Sprintf("provider:%s:%s", providerID, postback.ExternalTransactionID)); err != nil {
		s.logger.ErrorContext(ctx, "referral accrual failed after reward credit",
			"operation", "process_postback",
			"outcome", "partial",
			"provider_id", providerID,
			"user_id", postback.UserID,
			"error", err,
		)
	}
	s.appendPostbackLog(ctx, providerID, postback, values, postbackOutcomeCredited, "", started)

	s.enqueueEvent(ctx, domain.EventProviderRewardCredited, postback.UserID.String(), map[string]any{
		"reward_id":   stored.RewardID.String(),
		"provider_id": providerID,
		"user_id":     postback.UserID.String(),
		"gross":       postback.Amount,
		"net":         net,
		"offer":       postback.OfferName,
	})

	return PostbackResult{
		Accepted:  true,
		RewardID:  stored.RewardID,
		NetAmount: net,
	}, nil
}

// duplicateResult reports a replayed delivery as accepted. Providers retry
// until they see success, so a duplicate must not look like an error.
func (s *Service) duplicateResult(ctx context.Context, providerID string, postback domain.Postback, cause error) (PostbackResult, error) {
	result := PostbackResult{Accepted: true, Duplicate: true, Reason: "duplicate"}
	prior, err := s.rewards.GetByExternalID(ctx, providerID, postback.ExternalTransactionID)
	if err == nil {
		result.RewardID = prior.RewardID
		result.NetAmount = prior.NetAmount
	} else if cause != nil && !errors.Is(err, domain.ErrNotFound) {
		return PostbackResult{Reason: "duplicate lookup failed"}, err
	}
	return result, nil
}

// PurgePostbackLogs enforces the audit retention window.
func (s *Service) PurgePostbackLogs(ctx context.Context) (int64, error) {
	cutoff := s.nowFn().Add(-s.cfg.PostbackRetention)
	return s.postbackLogs.PurgeOlderThan(ctx, cutoff)
}

func (s *Service) appendPostbackLog(ctx context.Context, providerID string, postback domain.Postback, values url.Values, outcome, reason string, started time.Time) {
	payload, err := json.Marshal(flattenValues(values))
	if err != nil {
		payload = nil
	}
	log := domain.PostbackLog{
		LogID:                 uuid.New(),
		ProviderID:            providerID,
		ExternalTransactionID: postback.ExternalTransactionID,
		Payload:               payload,
		Outcome:               outcome,
		LatencyMS:             s.nowFn().Sub(started).Milliseconds(),
		ReceivedAt:            started,
	}
	if postback.UserID != uuid.Nil {
		userID := postback.UserID
		log.UserID = &userID
	}
	if reason != "" {
		log.ErrorReason = &reason
	}
	if err := s.postbackLogs.Append(ctx, log); err != nil {
		s.logger.ErrorContext(ctx, "postback log append failed",
			"operation", "process_postback",
			"provider_id", providerID,
			"error", err,
		)
	}
}

func flattenValues(values url.Values) map[string]string {
	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}
	return flat
}
