package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	salesapp "github.com/pharmacy/backend/internal/application/sales"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces idempotency keys in Redis
const DefaultKeyPrefix = "pharmacy:sale:idempotency:"

// pendingMarker is stored while the first request for a key is running
const pendingMarker = "pending"

// RedisIdempotencyStore implements IdempotencyStore using Redis, so every
// server instance sees the same keys
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing client
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim reserves key with SETNX. A lost race reads the recorded value.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	redisKey := s.keyPrefix + key

	claimed, err := s.client.SetNX(ctx, redisKey, pendingMarker, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return "", true, nil
	}

	value, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; claim again
		return s.Claim(ctx, key, ttl)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if value == pendingMarker {
		return "", false, nil
	}
	return value, false, nil
}

// Complete records saleID for key and restarts its TTL
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, saleID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, saleID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}
	return nil
}

// Release forgets key
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ salesapp.IdempotencyStore = (*RedisIdempotencyStore)(nil)
