package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPostbackLockStore serializes concurrent deliveries of the same
// postback across processes with a short-lived SETNX lock.
type RedisPostbackLockStore struct {
	client *redis.Client
}

func NewRedisPostbackLockStore(client *redis.Client) *RedisPostbackLockStore {
	return &RedisPostbackLockStore{client: client}
}

func (s *RedisPostbackLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, "payments:lock:"+key, "1", ttl).Result()
}

func (s *RedisPostbackLockStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, "payments:lock:"+key).Err()
}
