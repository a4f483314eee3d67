package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a RunLocker.
type UnlockFunc func(ctx context.Context) error

// RunLocker guards "one active run per graph" across processes that share a
// backend. TryLock does not wait: it returns domain.ErrLocked when the key is
// held elsewhere. The TTL bounds how long a crashed holder blocks others.
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
