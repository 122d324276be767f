package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalItemLocker_SerializesSameItem(t *testing.T) {
	locker := NewLocalItemLocker()
	itemID := uuid.New()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), itemID)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Zero(t, locker.Held())
}

func TestLocalItemLocker_DistinctItemsDoNotBlock(t *testing.T) {
	locker := NewLocalItemLocker()

	unlockA, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, uuid.New())
	require.NoError(t, err)
	unlockB()
}

func TestLocalItemLocker_OverlappingSetsDoNotDeadlock(t *testing.T) {
	locker := NewLocalItemLocker()
	a, b := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), a, b)
			if assert.NoError(t, err) {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), b, a)
			if assert.NoError(t, err) {
				unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockers deadlocked")
	}
	assert.Zero(t, locker.Held())
}

func TestLocalItemLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalItemLocker()
	a, b := uuid.New(), uuid.New()

	unlockB, err := locker.Lock(context.Background(), b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, a, b)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a was released when the second acquisition gave up
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	unlockA, err := locker.Lock(ctx2, a)
	require.NoError(t, err)
	unlockA()

	unlockB()
	assert.Zero(t, locker.Held())
}

func TestLocalItemLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewLocalItemLocker()
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Zero(t, locker.Held())
}

func TestNewItemLocker(t *testing.T) {
	locker, closeFn, err := NewItemLocker(config.StockConfig{LockBackend: "local"}, config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalItemLocker{}, locker)
	assert.NoError(t, closeFn())

	_, _, err = NewItemLocker(config.StockConfig{LockBackend: "zookeeper"}, config.RedisConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PHARMA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PHARMA_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisItemLocker_ExclusiveAndReleased(t *testing.T) {
	client := redisClient(t)
	prefix := "test:lock:" + uuid.NewString() + ":"
	locker := NewRedisItemLocker(client, WithKeyPrefix(prefix), WithTTL(5*time.Second), WithRetryInterval(5*time.Millisecond))
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	exists, err := client.Exists(context.Background(), prefix+id.String()).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	unlock2, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	unlock2()
}

func TestRedisItemLocker_DoesNotReleaseForeignToken(t *testing.T) {
	client := redisClient(t)
	prefix := "test:lock:" + uuid.NewString() + ":"
	locker := NewRedisItemLocker(client, WithKeyPrefix(prefix))
	id := uuid.New()
	key := prefix + id.String()

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), key, "someone-else", time.Minute).Err())

	unlock()
	val, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
	require.NoError(t, client.Del(context.Background(), key).Err())
}
