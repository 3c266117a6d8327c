package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/earnforge/payments-core/internal/adapters/cache"
	eventadapter "github.com/earnforge/payments-core/internal/adapters/events"
	gatewayadapter "github.com/earnforge/payments-core/internal/adapters/gateway"
	httpadapter "github.com/earnforge/payments-core/internal/adapters/http"
	"github.com/earnforge/payments-core/internal/adapters/jobs"
	"github.com/earnforge/payments-core/internal/adapters/postgres"
	provideradapter "github.com/earnforge/payments-core/internal/adapters/providers"
	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

// publishTopicByEvent routes outbox events onto domain-grouped topics.
var publishTopicByEvent = map[string]string{
	domain.EventWalletCredited:          "payments.wallet",
	domain.EventWalletDebited:           "payments.wallet",
	domain.EventEscrowFunded:            "payments.escrow",
	domain.EventEscrowSlotReleased:      "payments.escrow",
	domain.EventEscrowRefunded:          "payments.escrow",
	domain.EventWithdrawalStatusChanged: "payments.withdrawal",
	domain.EventWithdrawalNeedsReview:   "payments.withdrawal",
	domain.EventReferralCommissionPaid:  "payments.referral",
	domain.EventProviderRewardCredited:  "payments.provider",
	domain.EventProviderHealthChanged:   "payments.provider",
}

// consumeTopicByEvent maps upstream events to the topics they arrive on.
var consumeTopicByEvent = map[string]string{
	domain.EventTaskApproved:    "tasks.lifecycle",
	domain.EventUserFirstAction: "users.activity",
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	scheduler  *jobs.Scheduler
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping payments core", "http_port", cfg.HTTPPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)
	locks := cacheadapter.NewRedisPostbackLockStore(redisClient)
	health := cacheadapter.NewRedisProviderHealthStore(redisClient, cfg.HealthWindow)

	registry := provideradapter.NewRegistry(
		provideradapter.NewCPAGripAdapter(provideradapter.CPAGripConfig{
			BaseURL: cfg.CPAGripBaseURL,
			APIKey:  cfg.CPAGripAPIKey,
			Timeout: cfg.ProviderFetchTimeout,
		}),
		provideradapter.NewOGAdsAdapter(provideradapter.OGAdsConfig{
			BaseURL: cfg.OGAdsBaseURL,
			APIKey:  cfg.OGAdsAPIKey,
			Timeout: cfg.ProviderFetchTimeout,
		}),
	)

	payoutGateway := gatewayadapter.NewPaystackGateway(gatewayadapter.Config{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   cfg.GatewayTimeout,
	})

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			MinimumWithdrawal:     cfg.MinimumWithdrawal,
			WithdrawalFeeRate:     cfg.WithdrawalFeeRate,
			DefaultCommissionRate: cfg.DefaultCommissionRate,
			CommissionPeriodDays:  cfg.CommissionPeriodDays,
			GatewayTimeout:        cfg.GatewayTimeout,
			GatewayMaxAttempts:    cfg.GatewayMaxAttempts,
			GatewayBackoffBase:    cfg.GatewayBackoffBase,
			ProviderFetchTimeout:  cfg.ProviderFetchTimeout,
			ProviderStaleAfter:    cfg.ProviderStaleAfter,
			PostbackLockTTL:       cfg.PostbackLockTTL,
			PostbackRetention:     cfg.PostbackRetention,
			PendingDispatchGrace:  cfg.PendingDispatchGrace,
		},
		Logger:       logger,
		Wallets:      repos.Wallets,
		Escrows:      repos.Escrows,
		Withdrawals:  repos.Withdrawals,
		Referrals:    repos.Referrals,
		Providers:    repos.Providers,
		Rewards:      repos.Rewards,
		PostbackLogs: repos.PostbackLogs,
		Outbox:       repos.Outbox,
		Registry:     registry,
		Health:       health,
		Locks:        locks,
		Gateway:      payoutGateway,
	})

	if err := seedProviders(ctx, repos, cfg); err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed providers: %w", err)
	}

	ready := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	handler := httpadapter.NewHandler(svc, ready)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	publisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, publishTopicByEvent)
	if err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	consumeTopics := make([]string, 0, len(consumeTopicByEvent))
	seen := make(map[string]struct{}, len(consumeTopicByEvent))
	for _, topic := range consumeTopicByEvent {
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		consumeTopics = append(consumeTopics, topic)
	}
	kafkaConsumer, err := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.ConsumerGroupID, consumeTopics)
	if err != nil {
		_ = publisher.Close()
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := eventadapter.NewConsumerWorker(logger, kafkaConsumer, svc, consumeTopicByEvent, cfg.ConsumerPollInterval, cfg.ConsumerBatchSize)

	scheduler, err := jobs.NewScheduler(logger, svc, jobs.Config{
		ReferralExpiryInterval:  cfg.ReferralExpiryInterval,
		PostbackPurgeInterval:   cfg.PostbackPurgeInterval,
		StaleWithdrawalInterval: cfg.StaleWithdrawalInterval,
		ProviderHealthInterval:  cfg.ProviderHealthInterval,
	})
	if err != nil {
		_ = kafkaConsumer.Close()
		_ = publisher.Close()
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		outbox:     outbox,
		consumer:   consumer,
		scheduler:  scheduler,
		cleanupFn: func(ctx context.Context) {
			_ = kafkaConsumer.Close()
			_ = publisher.Close()
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// seedProviders upserts the adapters the build ships with so postbacks for
// them are accepted immediately after first boot. Secrets live in provider
// rows, not the adapter config, so operators can rotate them without a
// redeploy.
func seedProviders(ctx context.Context, repos postgres.Repositories, cfg Config) error {
	defaults := []domain.ExternalProvider{
		{
			ProviderID:     "cpagrip",
			Name:           "CPAGrip",
			Category:       "offerwall",
			CommissionRate: cfg.DefaultCommissionRate,
			Secret:         cfg.CPAGripAPIKey,
			Enabled:        true,
		},
		{
			ProviderID:     "ogads",
			Name:           "OGAds",
			Category:       "content_locker",
			CommissionRate: cfg.DefaultCommissionRate,
			Secret:         cfg.OGAdsAPIKey,
			Enabled:        true,
		},
	}
	for _, p := range defaults {
		if err := repos.Providers.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert %s: %w", p.ProviderID, err)
		}
	}
	return nil
}

// RunAPI serves HTTP and runs the background sweeps until a shutdown signal.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	_ = r.scheduler.Stop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker runs the outbox publisher and the upstream event consumer.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("outbox worker started")
		errCh <- r.outbox.Run(ctx)
	}()
	go func() {
		r.logger.Info("consumer worker started")
		errCh <- r.consumer.Run(ctx)
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
			stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return firstErr
}
