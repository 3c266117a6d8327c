package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/earnforge/payments-core/internal/application"
)

// Config holds the cadence of each background sweep.
type Config struct {
	ReferralExpiryInterval   time.Duration
	PostbackPurgeInterval    time.Duration
	StaleWithdrawalInterval  time.Duration
	ProviderHealthInterval   time.Duration
	StaleWithdrawalBatchSize int
}

// Scheduler owns the periodic maintenance jobs of the payments core. Every
// job receives the scheduler's context, so Stop both halts scheduling and
// cancels in-flight runs.
type Scheduler struct {
	logger    *slog.Logger
	service   *application.Service
	scheduler gocron.Scheduler
	cfg       Config

	cancel context.CancelFunc

	// lastHealth carries provider health between runs so the job can emit
	// change events. Only the health job goroutine touches it.
	lastHealth map[string]string
}

func NewScheduler(logger *slog.Logger, service *application.Service, cfg Config) (*Scheduler, error) {
	if cfg.ReferralExpiryInterval <= 0 {
		cfg.ReferralExpiryInterval = time.Hour
	}
	if cfg.PostbackPurgeInterval <= 0 {
		cfg.PostbackPurgeInterval = 24 * time.Hour
	}
	if cfg.StaleWithdrawalInterval <= 0 {
		cfg.StaleWithdrawalInterval = 10 * time.Minute
	}
	if cfg.ProviderHealthInterval <= 0 {
		cfg.ProviderHealthInterval = 5 * time.Minute
	}
	if cfg.StaleWithdrawalBatchSize <= 0 {
		cfg.StaleWithdrawalBatchSize = 50
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		logger:     logger.With("module", "jobs", "layer", "adapter"),
		service:    service,
		scheduler:  s,
		cfg:        cfg,
		lastHealth: map[string]string{},
	}, nil
}

// Start registers every job and begins scheduling. The provided context
// bounds all job executions.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"referral_expiry_sweep", s.cfg.ReferralExpiryInterval, s.runReferralExpiry},
		{"postback_log_purge", s.cfg.PostbackPurgeInterval, s.runPostbackPurge},
		{"stale_withdrawal_dispatch", s.cfg.StaleWithdrawalInterval, s.runStaleWithdrawals},
		{"provider_health_check", s.cfg.ProviderHealthInterval, s.runProviderHealth},
	}
	for _, job := range jobs {
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.run, runCtx),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return fmt.Errorf("register job %s: %w", job.name, err)
		}
	}

	s.scheduler.Start()
	s.logger.InfoContext(ctx, "job scheduler started",
		"operation", "start",
		"outcome", "success",
		"job_count", len(jobs),
	)
	return nil
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runReferralExpiry(ctx context.Context) {
	expired, err := s.service.ExpireReferrals(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "referral expiry sweep failed",
			"operation", "referral_expiry_sweep",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "referrals expired",
			"operation", "referral_expiry_sweep",
			"outcome", "success",
			"expired_count", expired,
		)
	}
}

func (s *Scheduler) runPostbackPurge(ctx context.Context) {
	purged, err := s.service.PurgePostbackLogs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "postback log purge failed",
			"operation", "postback_log_purge",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "postback logs purged",
		"operation", "postback_log_purge",
		"outcome", "success",
		"purged_count", purged,
	)
}

func (s *Scheduler) runStaleWithdrawals(ctx context.Context) {
	dispatched := s.service.DispatchStalePending(ctx, s.cfg.StaleWithdrawalBatchSize)
	if dispatched > 0 {
		s.logger.InfoContext(ctx, "stale withdrawals dispatched",
			"operation", "stale_withdrawal_dispatch",
			"outcome", "success",
			"dispatched_count", dispatched,
		)
	}
}

func (s *Scheduler) runProviderHealth(ctx context.Context) {
	current, err := s.service.EvaluateProviderHealth(ctx, s.lastHealth)
	if err != nil {
		s.logger.ErrorContext(ctx, "provider health check failed",
			"operation", "provider_health_check",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	s.lastHealth = current
}
