package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var (
	unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)
	refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// Locker implements ports.RunLocker using Redis. A held lock is refreshed in
// the background so a long run keeps it, while a crashed holder loses it
// after one TTL.
type Locker struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Locker{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (l *Locker) lockKey(key string) string {
	return l.prefix + "lock:" + key
}

// TryLock acquires the lock with SET NX PX or returns domain.ErrLocked.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.lockKey(key)
	// A random value makes sure only the holder can release or extend.
	val := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %q: %w", key, domain.ErrLocked)
	}

	refreshCtx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(refreshCtx, lockKey, val, ttl)
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			wg.Wait()
			err = unlockScript.Run(ctx, l.client, []string{lockKey}, val).Err()
		})
		return err
	}, nil
}

func (l *Locker) keepAlive(ctx context.Context, lockKey, val string, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := refreshScript.Run(ctx, l.client, []string{lockKey}, val, ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() == nil {
					l.logger.Warn("refresh run lock", "key", lockKey, "error", err)
				}
				continue
			}
			if n == 0 {
				l.logger.Warn("run lock lost", "key", lockKey)
				return
			}
		}
	}
}
