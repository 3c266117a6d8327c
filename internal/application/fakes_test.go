package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
	"github.com/earnforge/payments-core/internal/ports"
)

// memStore backs every repository fake with one mutex so composite
// operations (debit+escrow, reward+credit) stay atomic the way the real
// database transactions are.
type memStore struct {
	mu sync.Mutex

	wallets     map[uuid.UUID]*domain.Wallet
	txns        []domain.Transaction
	txnByRef    map[string]domain.Transaction
	escrows     map[uuid.UUID]*domain.Escrow
	withdrawals map[uuid.UUID]*domain.Withdrawal
	referrals   map[uuid.UUID]*domain.Referral
	providers   map[string]*domain.ExternalProvider
	rewards     map[string]domain.ProviderReward
	logs        []domain.PostbackLog
	outbox      []ports.OutboxRecord
	counters    map[string]*domain.HealthCounters
	locks       map[string]bool
	syncAt      map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		wallets:     map[uuid.UUID]*domain.Wallet{},
		txnByRef:    map[string]domain.Transaction{},
		escrows:     map[uuid.UUID]*domain.Escrow{},
		withdrawals: map[uuid.UUID]*domain.Withdrawal{},
		referrals:   map[uuid.UUID]*domain.Referral{},
		providers:   map[string]*domain.ExternalProvider{},
		rewards:     map[string]domain.ProviderReward{},
		counters:    map[string]*domain.HealthCounters{},
		locks:       map[string]bool{},
		syncAt:      map[string]time.Time{},
	}
}

// applyEntryLocked mirrors the ledger write contract: duplicate references
// conflict, balances never go negative, refunds stay out of the lifetime
// accumulators. Callers hold s.mu.
func (s *memStore) applyEntryLocked(p ports.LedgerEntryParams, now time.Time) (domain.Transaction, error) {
	w, ok := s.wallets[p.UserID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if p.Reference != "" {
		if _, exists := s.txnByRef[p.Reference]; exists {
			return domain.Transaction{}, domain.ErrConflict
		}
	}
	newBalance := w.AvailableBalance + p.Amount
	if newBalance < 0 {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	newEscrow := w.EscrowBalance + p.EscrowDelta
	if newEscrow < 0 {
		return domain.Transaction{}, domain.ErrEscrowExhausted
	}

	txn := domain.Transaction{
		TransactionID: uuid.New(),
		WalletID:      w.WalletID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Kind:          p.Kind,
		Reference:     p.Reference,
		Description:   p.Description,
		BalanceBefore: w.AvailableBalance,
		BalanceAfter:  newBalance,
		CreatedAt:     now,
	}
	w.AvailableBalance = newBalance
	w.EscrowBalance = newEscrow
	if p.Kind != domain.TxnRefund {
		if p.Amount > 0 {
			w.LifetimeEarnings += p.Amount
		} else {
			w.LifetimeSpending += -p.Amount
		}
	}
	w.UpdatedAt = now
	s.txns = append(s.txns, txn)
	if p.Reference != "" {
		s.txnByRef[p.Reference] = txn
	}
	return txn, nil
}

type fakeWallets struct{ s *memStore }

func (f *fakeWallets) Create(_ context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, exists := f.s.wallets[userID]; exists {
		return domain.Wallet{}, domain.ErrConflict
	}
	w := &domain.Wallet{WalletID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	f.s.wallets[userID] = w
	return *w, nil
}

func (f *fakeWallets) GetByUserID(_ context.Context, userID uuid.UUID) (domain.Wallet, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return *w, nil
}

func (f *fakeWallets) ApplyEntry(_ context.Context, p ports.LedgerEntryParams, now time.Time) (domain.Transaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.applyEntryLocked(p, now)
}

func (f *fakeWallets) TransactionByReference(_ context.Context, reference string) (domain.Transaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	txn, ok := f.s.txnByRef[reference]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return txn, nil
}

func (f *fakeWallets) History(_ context.Context, userID uuid.UUID, kind domain.TransactionKind, page, limit int) ([]domain.Transaction, int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var matched []domain.Transaction
	for _, txn := range f.s.txns {
		if txn.UserID != userID {
			continue
		}
		if kind != "" && txn.Kind != kind {
			continue
		}
		matched = append(matched, txn)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type fakeEscrows struct{ s *memStore }

func (f *fakeEscrows) FundTask(_ context.Context, p ports.FundTaskParams, now time.Time) (domain.Escrow, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, exists := f.s.escrows[p.TaskID]; exists {
		return domain.Escrow{}, domain.ErrConflict
	}
	slotValue := float64(p.TotalSlots) * p.AmountPerSlot
	if _, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
		UserID:      p.SponsorID,
		Amount:      -(slotValue + p.PlatformFee),
		EscrowDelta: slotValue,
		Kind:        domain.TxnTaskFunding,
		Reference:   fmt.Sprintf("escrow:fund:%s", p.TaskID),
		Description: "task funding",
	}, now); err != nil {
		return domain.Escrow{}, err
	}
	e := &domain.Escrow{
		EscrowID:      uuid.New(),
		SponsorID:     p.SponsorID,
		TaskID:        p.TaskID,
		Amount:        slotValue,
		TotalSlots:    p.TotalSlots,
		AmountPerSlot: p.AmountPerSlot,
		PlatformFee:   p.PlatformFee,
		Status:        domain.EscrowStatusHeld,
		HeldAt:        now,
	}
	f.s.escrows[p.TaskID] = e
	return *e, nil
}

func (f *fakeEscrows) ReleaseSlot(_ context.Context, taskID, workerID uuid.UUID, now time.Time) (ports.SlotRelease, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.escrows[taskID]
	if !ok {
		return ports.SlotRelease{}, domain.ErrNotFound
	}
	if e.Status != domain.EscrowStatusHeld && e.Status != domain.EscrowStatusPartiallyReleased {
		return ports.SlotRelease{}, domain.ErrEscrowNotHeld
	}
	if e.ReleasedSlots >= e.TotalSlots {
		return ports.SlotRelease{}, domain.ErrEscrowExhausted
	}

	reference := fmt.Sprintf("escrow:%s:worker:%s", e.EscrowID, workerID)
	if _, exists := f.s.txnByRef[reference]; exists {
		return ports.SlotRelease{}, domain.ErrConflict
	}
	sponsor, ok := f.s.wallets[e.SponsorID]
	if !ok || sponsor.EscrowBalance < e.AmountPerSlot {
		return ports.SlotRelease{}, domain.ErrEscrowExhausted
	}
	txn, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
		UserID:      workerID,
		Amount:      e.AmountPerSlot,
		Kind:        domain.TxnTaskEarning,
		Reference:   reference,
		Description: "task slot payout",
	}, now)
	if err != nil {
		return ports.SlotRelease{}, err
	}
	sponsor.EscrowBalance -= e.AmountPerSlot

	e.ReleasedSlots++
	e.Status = domain.EscrowStatusPartiallyReleased
	if e.ReleasedSlots == e.TotalSlots {
		e.Status = domain.EscrowStatusReleased
		e.ReleasedAt = &now
	}
	return ports.SlotRelease{Escrow: *e, SlotIndex: e.ReleasedSlots, WorkerTxn: txn}, nil
}

func (f *fakeEscrows) RefundRemaining(_ context.Context, taskID uuid.UUID, reason string, now time.Time) (domain.Escrow, float64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.escrows[taskID]
	if !ok {
		return domain.Escrow{}, 0, domain.ErrNotFound
	}
	if e.Status == domain.EscrowStatusRefunded {
		return *e, 0, domain.ErrConflict
	}
	if e.Status == domain.EscrowStatusReleased {
		return domain.Escrow{}, 0, domain.ErrEscrowNotHeld
	}
	remaining := e.RemainingValue()
	if remaining > 0 {
		if _, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
			UserID:      e.SponsorID,
			Amount:      remaining,
			EscrowDelta: -remaining,
			Kind:        domain.TxnRefund,
			Reference:   fmt.Sprintf("escrow:refund:%s", e.EscrowID),
			Description: reason,
		}, now); err != nil {
			return domain.Escrow{}, 0, err
		}
	}
	e.Status = domain.EscrowStatusRefunded
	e.RefundedAt = &now
	return *e, remaining, nil
}

func (f *fakeEscrows) GetByTaskID(_ context.Context, taskID uuid.UUID) (domain.Escrow, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.escrows[taskID]
	if !ok {
		return domain.Escrow{}, domain.ErrNotFound
	}
	return *e, nil
}

type fakeWithdrawals struct{ s *memStore }

func (f *fakeWithdrawals) CreateWithDebit(_ context.Context, p ports.WithdrawalCreateParams, now time.Time) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	id := uuid.New()
	txn, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
		UserID:      p.UserID,
		Amount:      -p.Amount,
		Kind:        domain.TxnWithdrawal,
		Reference:   fmt.Sprintf("withdrawal:%s", id),
		Description: "withdrawal request",
	}, now)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	w := &domain.Withdrawal{
		WithdrawalID:   id,
		UserID:         p.UserID,
		WalletID:       txn.WalletID,
		Amount:         p.Amount,
		Fee:            p.Fee,
		NetAmount:      p.NetAmount,
		Method:         p.Method,
		AccountDetails: p.AccountDetails,
		Status:         domain.WithdrawalStatusPending,
		RequestedAt:    now,
	}
	f.s.withdrawals[id] = w
	return *w, nil
}

func (f *fakeWithdrawals) GetByID(_ context.Context, withdrawalID uuid.UUID) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	return *w, nil
}

func (f *fakeWithdrawals) ListByUser(_ context.Context, userID uuid.UUID, status string, page, limit int) ([]domain.Withdrawal, int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var matched []domain.Withdrawal
	for _, w := range f.s.withdrawals {
		if w.UserID != userID {
			continue
		}
		if status != "" && w.Status != status {
			continue
		}
		matched = append(matched, *w)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RequestedAt.After(matched[j].RequestedAt) })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeWithdrawals) MarkProcessing(_ context.Context, withdrawalID uuid.UUID, attempts int) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	if w.Status != domain.WithdrawalStatusPending {
		return *w, domain.ErrConflict
	}
	w.Status = domain.WithdrawalStatusProcessing
	w.Attempts = attempts
	return *w, nil
}

func (f *fakeWithdrawals) Complete(_ context.Context, withdrawalID uuid.UUID, gatewayReference string, now time.Time) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	if w.Status != domain.WithdrawalStatusProcessing {
		return *w, domain.ErrConflict
	}
	w.Status = domain.WithdrawalStatusCompleted
	w.GatewayReference = &gatewayReference
	w.ProcessedAt = &now
	return *w, nil
}

func (f *fakeWithdrawals) SetGatewayReference(_ context.Context, withdrawalID uuid.UUID, gatewayReference string) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	if w.Status != domain.WithdrawalStatusProcessing {
		return *w, domain.ErrConflict
	}
	w.GatewayReference = &gatewayReference
	return *w, nil
}

func (f *fakeWithdrawals) FailWithRefund(_ context.Context, withdrawalID uuid.UUID, reason string, now time.Time) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	if w.Finalized() {
		return *w, domain.ErrConflict
	}
	if _, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
		UserID:      w.UserID,
		Amount:      w.Amount,
		Kind:        domain.TxnRefund,
		Reference:   fmt.Sprintf("withdrawal:refund:%s", w.WithdrawalID),
		Description: reason,
	}, now); err != nil {
		return domain.Withdrawal{}, err
	}
	w.Status = domain.WithdrawalStatusFailed
	w.FailureReason = &reason
	w.ProcessedAt = &now
	return *w, nil
}

func (f *fakeWithdrawals) CancelWithRefund(_ context.Context, withdrawalID, userID uuid.UUID, now time.Time) (domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[withdrawalID]
	if !ok || w.UserID != userID {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	if w.Status != domain.WithdrawalStatusPending {
		return *w, fmt.Errorf("%w: withdrawal is %s", domain.ErrWithdrawalNotCancellable, w.Status)
	}
	if _, err := f.s.applyEntryLocked(ports.LedgerEntryParams{
		UserID:      w.UserID,
		Amount:      w.Amount,
		Kind:        domain.TxnRefund,
		Reference:   fmt.Sprintf("withdrawal:refund:%s", w.WithdrawalID),
		Description: "withdrawal cancelled",
	}, now); err != nil {
		return domain.Withdrawal{}, err
	}
	w.Status = domain.WithdrawalStatusCancelled
	w.ProcessedAt = &now
	return *w, nil
}

func (f *fakeWithdrawals) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]domain.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var stale []domain.Withdrawal
	for _, w := range f.s.withdrawals {
		if w.Status == domain.WithdrawalStatusPending && w.RequestedAt.Before(cutoff) {
			stale = append(stale, *w)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].RequestedAt.Before(stale[j].RequestedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

type fakeReferrals struct{ s *memStore }

func (f *fakeReferrals) Create(_ context.Context, referral domain.Referral) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, exists := f.s.referrals[referral.ReferredUserID]; exists {
		return domain.ErrAlreadyReferred
	}
	stored := referral
	f.s.referrals[referral.ReferredUserID] = &stored
	return nil
}

func (f *fakeReferrals) GetByReferredUser(_ context.Context, referredUserID uuid.UUID) (domain.Referral, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.referrals[referredUserID]
	if !ok {
		return domain.Referral{}, domain.ErrNotFound
	}
	return *r, nil
}

func (f *fakeReferrals) Activate(_ context.Context, referredUserID uuid.UUID, at time.Time) (domain.Referral, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.referrals[referredUserID]
	if !ok || r.Status != domain.ReferralStatusPending {
		return domain.Referral{}, domain.ErrNotFound
	}
	r.Status = domain.ReferralStatusActive
	r.ActivatedAt = &at
	r.ExpiresAt = at.AddDate(0, 0, r.CommissionPeriodDays)
	return *r, nil
}

func (f *fakeReferrals) RecordCommission(_ context.Context, referralID uuid.UUID, earning, commission float64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.referrals {
		if r.ReferralID == referralID {
			r.TotalEarnings += earning
			r.TotalCommission += commission
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeReferrals) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var expired int64
	for _, r := range f.s.referrals {
		if (r.Status == domain.ReferralStatusPending || r.Status == domain.ReferralStatusActive) && !now.Before(r.ExpiresAt) {
			r.Status = domain.ReferralStatusExpired
			expired++
		}
	}
	return expired, nil
}

func (f *fakeReferrals) ListByReferrer(_ context.Context, referrerID uuid.UUID) ([]domain.Referral, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Referral
	for _, r := range f.s.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeProviders struct{ s *memStore }

func (f *fakeProviders) GetByID(_ context.Context, providerID string) (domain.ExternalProvider, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.providers[providerID]
	if !ok {
		return domain.ExternalProvider{}, domain.ErrUnknownProvider
	}
	return *p, nil
}

func (f *fakeProviders) List(_ context.Context, enabledOnly bool) ([]domain.ExternalProvider, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.ExternalProvider
	for _, p := range f.s.providers {
		if enabledOnly && !p.Enabled {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (f *fakeProviders) Upsert(_ context.Context, provider domain.ExternalProvider) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored := provider
	f.s.providers[provider.ProviderID] = &stored
	return nil
}

func (f *fakeProviders) BumpMetrics(_ context.Context, providerID string, revenue float64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.providers[providerID]
	if !ok {
		return domain.ErrUnknownProvider
	}
	p.TotalCompletions++
	p.TotalRevenue += revenue
	return nil
}

func (f *fakeProviders) TouchSync(_ context.Context, providerID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.providers[providerID]
	if !ok {
		return domain.ErrUnknownProvider
	}
	p.LastSyncAt = &at
	f.s.syncAt[providerID] = at
	return nil
}

type fakeRewards struct{ s *memStore }

func rewardKey(providerID, externalTransactionID string) string {
	return providerID + "|" + externalTransactionID
}

func (f *fakeRewards) RecordWithCredit(_ context.Context, p ports.RewardCreditParams, now time.Time) (domain.ProviderReward, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	key := rewardKey(p.Reward.ProviderID, p.Reward.ExternalTransactionID)
	if _, exists := f.s.rewards[key]; exists {
		return domain.ProviderReward{}, domain.ErrConflict
	}
	if _, err := f.s.applyEntryLocked(p.Credit, now); err != nil {
		return domain.ProviderReward{}, err
	}
	f.s.rewards[key] = p.Reward
	return p.Reward, nil
}

func (f *fakeRewards) GetByExternalID(_ context.Context, providerID, externalTransactionID string) (domain.ProviderReward, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	reward, ok := f.s.rewards[rewardKey(providerID, externalTransactionID)]
	if !ok {
		return domain.ProviderReward{}, domain.ErrNotFound
	}
	return reward, nil
}

type fakePostbackLogs struct{ s *memStore }

func (f *fakePostbackLogs) Append(_ context.Context, log domain.PostbackLog) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.logs = append(f.s.logs, log)
	return nil
}

func (f *fakePostbackLogs) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	kept := f.s.logs[:0]
	var purged int64
	for _, log := range f.s.logs {
		if log.ReceivedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, log)
	}
	f.s.logs = kept
	return purged, nil
}

type fakeOutbox struct{ s *memStore }

func (f *fakeOutbox) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.outbox = append(f.s.outbox, record)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeHealthStore struct{ s *memStore }

func (f *fakeHealthStore) RecordSuccess(_ context.Context, providerID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.countersLocked(providerID).Successes++
	return nil
}

func (f *fakeHealthStore) RecordFailure(_ context.Context, providerID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.countersLocked(providerID).Failures++
	return nil
}

func (f *fakeHealthStore) Counters(_ context.Context, providerID string) (domain.HealthCounters, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return *f.countersLocked(providerID), nil
}

func (f *fakeHealthStore) countersLocked(providerID string) *domain.HealthCounters {
	c, ok := f.s.counters[providerID]
	if !ok {
		c = &domain.HealthCounters{}
		f.s.counters[providerID] = c
	}
	return c
}

type fakeLocks struct{ s *memStore }

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.locks[key] {
		return false, nil
	}
	f.s.locks[key] = true
	return true, nil
}

func (f *fakeLocks) Release(_ context.Context, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.locks, key)
	return nil
}

// payoutOutcome scripts one gateway call for fakeGateway.
type payoutOutcome struct {
	result domain.GatewayResult
	err    error
}

type fakeGateway struct {
	mu       sync.Mutex
	script   []payoutOutcome
	payouts  int
	lastSeen domain.Withdrawal
}

func (g *fakeGateway) Charge(context.Context, float64, string) (domain.GatewayResult, error) {
	return domain.GatewayResult{Success: true, Reference: "charge-ref"}, nil
}

func (g *fakeGateway) Payout(_ context.Context, w domain.Withdrawal) (domain.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payouts++
	g.lastSeen = w
	if len(g.script) == 0 {
		return domain.GatewayResult{Success: true, Reference: "payout-ref"}, nil
	}
	next := g.script[0]
	g.script = g.script[1:]
	return next.result, next.err
}

// fakeAdapter is a scriptable provider adapter. ParsePostback reads the
// generic user_id / transaction_id / amount / signature parameters and
// VerifyPostback does a plain secret comparison, which is all the service
// pipeline needs.
type fakeAdapter struct {
	id        string
	tasks     []domain.ProviderTask
	fetchErr  error
	authErr   error
	healthErr error
	fetchHang time.Duration
}

func (a *fakeAdapter) ProviderID() string                 { return a.id }
func (a *fakeAdapter) Authenticate(context.Context) error { return a.authErr }
func (a *fakeAdapter) RefreshToken(context.Context) error { return nil }
func (a *fakeAdapter) Health(context.Context) error       { return a.healthErr }

func (a *fakeAdapter) SubmitCompletion(context.Context, string, []byte) error {
	return domain.ErrInvalidInput
}

func (a *fakeAdapter) CheckTaskStatus(context.Context, string) (string, error) {
	return "active", nil
}

func (a *fakeAdapter) CheckPayoutStatus(context.Context, string) (string, error) {
	return "paid", nil
}

func (a *fakeAdapter) FetchTasks(ctx context.Context, _ domain.TaskFilters) ([]domain.ProviderTask, error) {
	if a.fetchHang > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.fetchHang):
		}
	}
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.tasks, nil
}

func (a *fakeAdapter) GetTaskDetails(_ context.Context, externalID string) (domain.ProviderTask, error) {
	for _, task := range a.tasks {
		if task.ExternalID == externalID {
			return task, nil
		}
	}
	return domain.ProviderTask{}, domain.ErrNotFound
}

func (a *fakeAdapter) ParsePostback(values url.Values) (domain.Postback, error) {
	userID, err := uuid.Parse(values.Get("user_id"))
	if err != nil {
		return domain.Postback{}, fmt.Errorf("%w: bad user_id", domain.ErrInvalidInput)
	}
	txnID := values.Get("transaction_id")
	if txnID == "" {
		return domain.Postback{}, fmt.Errorf("%w: missing transaction_id", domain.ErrInvalidInput)
	}
	var amount float64
	if _, err := fmt.Sscanf(values.Get("amount"), "%f", &amount); err != nil || amount <= 0 {
		return domain.Postback{}, fmt.Errorf("%w: bad amount", domain.ErrInvalidInput)
	}
	return domain.Postback{
		ProviderID:            a.id,
		ExternalTransactionID: txnID,
		UserID:                userID,
		Amount:                amount,
		OfferName:             values.Get("offer_name"),
		Signature:             values.Get("signature"),
	}, nil
}

func (a *fakeAdapter) VerifyPostback(p domain.Postback, secret string) error {
	if !strings.EqualFold(p.Signature, secret) {
		return domain.ErrInvalidPostbackSignature
	}
	return nil
}

type fakeRegistry struct{ adapters map[string]ports.ProviderAdapter }

func (r *fakeRegistry) Get(providerID string) (ports.ProviderAdapter, bool) {
	a, ok := r.adapters[providerID]
	return a, ok
}

func (r *fakeRegistry) All() []ports.ProviderAdapter {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ports.ProviderAdapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.adapters[id])
	}
	return out
}

type fixture struct {
	service  *application.Service
	store    *memStore
	gateway  *fakeGateway
	registry *fakeRegistry
}

func defaultTestConfig() application.Config {
	return application.Config{
		MinimumWithdrawal:     1000,
		WithdrawalFeeRate:     0.02,
		DefaultCommissionRate: 5,
		CommissionPeriodDays:  30,
		GatewayTimeout:        100 * time.Millisecond,
		GatewayMaxAttempts:    3,
		GatewayBackoffBase:    time.Millisecond,
		ProviderFetchTimeout:  100 * time.Millisecond,
		ProviderStaleAfter:    24 * time.Hour,
		PostbackLockTTL:       time.Second,
		PostbackRetention:     30 * 24 * time.Hour,
		PendingDispatchGrace:  5 * time.Minute,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	store := newMemStore()
	gateway := &fakeGateway{}
	registry := &fakeRegistry{adapters: map[string]ports.ProviderAdapter{}}

	svc := application.NewService(application.Dependencies{
		Config:       cfg,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Wallets:      &fakeWallets{s: store},
		Escrows:      &fakeEscrows{s: store},
		Withdrawals:  &fakeWithdrawals{s: store},
		Referrals:    &fakeReferrals{s: store},
		Providers:    &fakeProviders{s: store},
		Rewards:      &fakeRewards{s: store},
		PostbackLogs: &fakePostbackLogs{s: store},
		Outbox:       &fakeOutbox{s: store},
		Registry:     registry,
		Health:       &fakeHealthStore{s: store},
		Locks:        &fakeLocks{s: store},
		Gateway:      gateway,
	})
	return &fixture{service: svc, store: store, gateway: gateway, registry: registry}
}

// seedWallet creates a funded wallet through the service so the transaction
// log stays consistent with the balance.
func (f *fixture) seedWallet(ctx context.Context, userID uuid.UUID, balance float64) error {
	if _, err := f.service.CreateWallet(ctx, userID); err != nil {
		return err
	}
	if balance <= 0 {
		return nil
	}
	_, err := f.service.Credit(ctx, application.CreditInput{
		UserID:      userID,
		Amount:      balance,
		Kind:        domain.TxnBonus,
		Description: "seed",
	})
	return err
}

// ledgerSum recomputes a user's balance from the transaction log.
func (f *fixture) ledgerSum(userID uuid.UUID) float64 {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var sum float64
	for _, txn := range f.store.txns {
		if txn.UserID == userID {
			sum += txn.Amount
		}
	}
	return sum
}

func (f *fixture) outboxEvents(eventType string) []ports.OutboxRecord {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []ports.OutboxRecord
	for _, rec := range f.store.outbox {
		if rec.EventType == eventType {
			out = append(out, rec)
		}
	}
	return out
}

func (f *fixture) lastLogOutcome() string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if len(f.store.logs) == 0 {
		return ""
	}
	return f.store.logs[len(f.store.logs)-1].Outcome
}
