package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewItemLocker builds the locker selected by stock.lock_backend. The
// returned close function releases the Redis client, if any.
func NewItemLocker(stockCfg config.StockConfig, redisCfg config.RedisConfig, logger *zap.Logger) (ledger.ItemLocker, func() error, error) {
	switch stockCfg.LockBackend {
	case "", "local":
		logger.Info("Using in-process item locks")
		return NewLocalItemLocker(), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		logger.Info("Using Redis item locks", zap.String("addr", redisCfg.Addr()))
		return NewRedisItemLocker(client, WithTTL(stockCfg.LockTTL), WithLogger(logger)), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", stockCfg.LockBackend)
	}
}
