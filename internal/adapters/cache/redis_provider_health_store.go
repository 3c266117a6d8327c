package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/earnforge/payments-core/internal/domain"
)

// RedisProviderHealthStore keeps a rolling success/failure window per
// provider in a Redis hash. The window expires as a whole, so a provider
// that goes quiet ages back to an empty window instead of carrying stale
// failures forever.
type RedisProviderHealthStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisProviderHealthStore(client *redis.Client, window time.Duration) *RedisProviderHealthStore {
	if window <= 0 {
		window = time.Hour
	}
	return &RedisProviderHealthStore{client: client, window: window}
}

func (s *RedisProviderHealthStore) RecordSuccess(ctx context.Context, providerID string) error {
	return s.bump(ctx, providerID, "successes")
}

func (s *RedisProviderHealthStore) RecordFailure(ctx context.Context, providerID string) error {
	return s.bump(ctx, providerID, "failures")
}

func (s *RedisProviderHealthStore) Counters(ctx context.Context, providerID string) (domain.HealthCounters, error) {
	data, err := s.client.HGetAll(ctx, s.key(providerID)).Result()
	if err != nil {
		return domain.HealthCounters{}, err
	}
	counters := domain.HealthCounters{}
	if raw, ok := data["successes"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			counters.Successes = n
		}
	}
	if raw, ok := data["failures"]; ok {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			counters.Failures = n
		}
	}
	return counters, nil
}

func (s *RedisProviderHealthStore) bump(ctx context.Context, providerID, field string) error {
	key := s.key(providerID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, key, field, 1)
		p.Expire(ctx, key, s.window)
		return nil
	})
	return err
}

func (s *RedisProviderHealthStore) key(providerID string) string {
	return "payments:provider_health:" + providerID
}
