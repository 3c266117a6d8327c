package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the payments core.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string
	HTTPPort  int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers    []string
	ConsumerGroupID string

	MinimumWithdrawal     float64
	WithdrawalFeeRate     float64
	DefaultCommissionRate float64
	CommissionPeriodDays  int

	PaystackBaseURL   string
	PaystackSecretKey string

	GatewayTimeout     time.Duration
	GatewayMaxAttempts int
	GatewayBackoffBase time.Duration

	CPAGripBaseURL string
	CPAGripAPIKey  string
	OGAdsBaseURL   string
	OGAdsAPIKey    string

	ProviderFetchTimeout time.Duration
	ProviderStaleAfter   time.Duration
	HealthWindow         time.Duration
	PostbackLockTTL      time.Duration
	PostbackRetention    time.Duration
	PendingDispatchGrace time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	ConsumerPollInterval time.Duration
	ConsumerBatchSize    int

	ReferralExpiryInterval  time.Duration
	PostbackPurgeInterval   time.Duration
	StaleWithdrawalInterval time.Duration
	ProviderHealthInterval  time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Payments struct {
		MinimumWithdrawal     float64 `yaml:"minimum_withdrawal"`
		WithdrawalFeeRate     float64 `yaml:"withdrawal_fee_rate"`
		DefaultCommissionRate float64 `yaml:"default_commission_rate"`
		CommissionPeriodDays  int     `yaml:"commission_period_days"`
	} `yaml:"payments"`
	Gateway struct {
		BaseURL   string `yaml:"base_url"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"gateway"`
	Providers struct {
		CPAGrip struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"cpagrip"`
		OGAds struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"ogads"`
	} `yaml:"providers"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "payments-core",
		HTTPPort:                8080,
		ConsumerGroupID:         "payments-core",
		MinimumWithdrawal:       1000,
		WithdrawalFeeRate:       0.02,
		DefaultCommissionRate:   5,
		CommissionPeriodDays:    30,
		PaystackBaseURL:         "https://api.paystack.co",
		GatewayTimeout:          15 * time.Second,
		GatewayMaxAttempts:      3,
		GatewayBackoffBase:      time.Second,
		ProviderFetchTimeout:    10 * time.Second,
		ProviderStaleAfter:      24 * time.Hour,
		HealthWindow:            time.Hour,
		PostbackLockTTL:         30 * time.Second,
		PostbackRetention:       30 * 24 * time.Hour,
		PendingDispatchGrace:    5 * time.Minute,
		MaxDBConns:              20,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxClaimTTL:          30 * time.Second,
		OutboxMaxRetries:        5,
		ConsumerPollInterval:    time.Second,
		ConsumerBatchSize:       50,
		ReferralExpiryInterval:  time.Hour,
		PostbackPurgeInterval:   24 * time.Hour,
		StaleWithdrawalInterval: 10 * time.Minute,
		ProviderHealthInterval:  5 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Payments.MinimumWithdrawal > 0 {
			cfg.MinimumWithdrawal = f.Payments.MinimumWithdrawal
		}
		if f.Payments.WithdrawalFeeRate > 0 {
			cfg.WithdrawalFeeRate = f.Payments.WithdrawalFeeRate
		}
		if f.Payments.DefaultCommissionRate > 0 {
			cfg.DefaultCommissionRate = f.Payments.DefaultCommissionRate
		}
		if f.Payments.CommissionPeriodDays > 0 {
			cfg.CommissionPeriodDays = f.Payments.CommissionPeriodDays
		}
		if f.Gateway.BaseURL != "" {
			cfg.PaystackBaseURL = f.Gateway.BaseURL
		}
		if f.Gateway.SecretKey != "" {
			cfg.PaystackSecretKey = f.Gateway.SecretKey
		}
		if f.Providers.CPAGrip.BaseURL != "" {
			cfg.CPAGripBaseURL = f.Providers.CPAGrip.BaseURL
		}
		if f.Providers.CPAGrip.APIKey != "" {
			cfg.CPAGripAPIKey = f.Providers.CPAGrip.APIKey
		}
		if f.Providers.OGAds.BaseURL != "" {
			cfg.OGAdsBaseURL = f.Providers.OGAds.BaseURL
		}
		if f.Providers.OGAds.APIKey != "" {
			cfg.OGAdsAPIKey = f.Providers.OGAds.APIKey
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ConsumerGroupID = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.ConsumerGroupID)
	cfg.PaystackBaseURL = envOrDefault("PAYSTACK_BASE_URL", cfg.PaystackBaseURL)
	cfg.PaystackSecretKey = envOrDefault("PAYSTACK_SECRET_KEY", cfg.PaystackSecretKey)
	cfg.CPAGripBaseURL = envOrDefault("CPAGRIP_BASE_URL", cfg.CPAGripBaseURL)
	cfg.CPAGripAPIKey = envOrDefault("CPAGRIP_API_KEY", cfg.CPAGripAPIKey)
	cfg.OGAdsBaseURL = envOrDefault("OGADS_BASE_URL", cfg.OGAdsBaseURL)
	cfg.OGAdsAPIKey = envOrDefault("OGADS_API_KEY", cfg.OGAdsAPIKey)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.MinimumWithdrawal = envFloat("MINIMUM_WITHDRAWAL", cfg.MinimumWithdrawal)
	cfg.WithdrawalFeeRate = envFloat("WITHDRAWAL_FEE_RATE", cfg.WithdrawalFeeRate)
	cfg.DefaultCommissionRate = envFloat("REFERRAL_COMMISSION_RATE", cfg.DefaultCommissionRate)
	cfg.CommissionPeriodDays = envInt("REFERRAL_COMMISSION_PERIOD_DAYS", cfg.CommissionPeriodDays)
	cfg.GatewayMaxAttempts = envInt("GATEWAY_MAX_ATTEMPTS", cfg.GatewayMaxAttempts)

	cfg.GatewayTimeout = time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", int(cfg.GatewayTimeout.Seconds()))) * time.Second
	cfg.GatewayBackoffBase = time.Duration(envInt("GATEWAY_BACKOFF_SECONDS", int(cfg.GatewayBackoffBase.Seconds()))) * time.Second
	cfg.ProviderFetchTimeout = time.Duration(envInt("PROVIDER_FETCH_TIMEOUT_SECONDS", int(cfg.ProviderFetchTimeout.Seconds()))) * time.Second
	cfg.ProviderStaleAfter = time.Duration(envInt("PROVIDER_STALE_AFTER_HOURS", int(cfg.ProviderStaleAfter.Hours()))) * time.Hour
	cfg.HealthWindow = time.Duration(envInt("PROVIDER_HEALTH_WINDOW_MINUTES", int(cfg.HealthWindow.Minutes()))) * time.Minute
	cfg.PostbackLockTTL = time.Duration(envInt("POSTBACK_LOCK_TTL_SECONDS", int(cfg.PostbackLockTTL.Seconds()))) * time.Second
	cfg.PostbackRetention = time.Duration(envInt("POSTBACK_RETENTION_DAYS", int(cfg.PostbackRetention.Hours()/24))) * 24 * time.Hour
	cfg.PendingDispatchGrace = time.Duration(envInt("PENDING_DISPATCH_GRACE_MINUTES", int(cfg.PendingDispatchGrace.Minutes()))) * time.Minute
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.ConsumerBatchSize = envInt("CONSUMER_BATCH_SIZE", cfg.ConsumerBatchSize)
	cfg.ReferralExpiryInterval = time.Duration(envInt("REFERRAL_EXPIRY_INTERVAL_MINUTES", int(cfg.ReferralExpiryInterval.Minutes()))) * time.Minute
	cfg.PostbackPurgeInterval = time.Duration(envInt("POSTBACK_PURGE_INTERVAL_HOURS", int(cfg.PostbackPurgeInterval.Hours()))) * time.Hour
	cfg.StaleWithdrawalInterval = time.Duration(envInt("STALE_WITHDRAWAL_INTERVAL_MINUTES", int(cfg.StaleWithdrawalInterval.Minutes()))) * time.Minute
	cfg.ProviderHealthInterval = time.Duration(envInt("PROVIDER_HEALTH_INTERVAL_MINUTES", int(cfg.ProviderHealthInterval.Minutes()))) * time.Minute

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
