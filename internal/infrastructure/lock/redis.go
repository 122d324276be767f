package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix     = "pharmacy:stock:lock:"
	defaultLockTTL       = 10 * time.Second
	defaultRetryInterval = 20 * time.Millisecond
)

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisItemLocker serializes work per item across processes with
// SET NX PX keys. Keys expire after ttl so a crashed holder cannot
// block an item forever.
type RedisItemLocker struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// RedisLockerOption configures a RedisItemLocker
type RedisLockerOption func(*RedisItemLocker)

// WithKeyPrefix sets the key namespace
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisItemLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithTTL sets how long a lock is held before Redis expires it
func WithTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisItemLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the wait between acquisition attempts
func WithRetryInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisItemLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisItemLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisItemLocker creates a locker on an existing client
func NewRedisItemLocker(client *redis.Client, opts ...RedisLockerOption) *RedisItemLocker {
	l := &RedisItemLocker{
		client:        client,
		keyPrefix:     defaultKeyPrefix,
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires every item in ascending order, polling until each key is
// free or ctx ends
func (l *RedisItemLocker) Lock(ctx context.Context, itemIDs ...uuid.UUID) (func(), error) {
	ids := ledger.SortedUnique(itemIDs)
	token := uuid.NewString()
	held := make([]string, 0, len(ids))

	for _, id := range ids {
		key := l.keyPrefix + id.String()
		if err := l.acquire(ctx, key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held, token) })
	}, nil
}

func (l *RedisItemLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to acquire item lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisItemLocker) release(keys []string, token string) {
	// Release must succeed even when the caller's context is already done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release item lock",
				zap.String("key", keys[i]),
				zap.Error(err),
			)
		}
	}
}

var _ ledger.ItemLocker = (*RedisItemLocker)(nil)
