package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrTimeout is returned when the lock could not be acquired within the
// caller's wait window. Callers surface this as a retriable condition, never
// as a silent failure.
var ErrTimeout = errors.New("lock: acquisition timed out")

const (
	concertKeyPrefix = "lock:concert:"

	// retryInterval is the polling interval while waiting for a held lock.
	retryInterval = 100 * time.Millisecond
)

// ConcertKey returns the lock key for a concert.
func ConcertKey(concertID uint) string {
	return fmt.Sprintf("%s%d", concertKeyPrefix, concertID)
}

// Coordinator hands out per-key distributed locks backed by Redis.
//
// Every lock carries a lease: it auto-expires after the lease duration even if
// the holding process crashes, so a dead holder can never deadlock the key.
// Holders must still release explicitly under normal operation.
type Coordinator struct {
	locker *redislock.Client
	logger *zap.Logger
}

// NewCoordinator creates a lock coordinator on top of a Redis client.
func NewCoordinator(client redis.UniversalClient, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		locker: redislock.New(client),
		logger: logger,
	}
}

// Acquire blocks until the lock on key is obtained or wait elapses.
// The returned lease expires after lease even without an explicit Release.
// Re-entrant acquisition of the same key is not supported; nested acquisition
// must be avoided by the caller.
func (c *Coordinator) Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	l, err := c.locker.Obtain(waitCtx, key, lease, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	if err != nil {
		// Distinguish the caller going away from the wait window closing.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}

	c.logger.Debug("Lock acquired", zap.String("key", key), zap.Duration("lease", lease))
	return &Lease{lock: l, key: key, logger: c.logger}, nil
}

// Lease is a held lock bounded by its lease time.
type Lease struct {
	lock   *redislock.Lock
	key    string
	logger *zap.Logger
}

// Release releases the lock. It is idempotent: releasing a lease that already
// expired or was already released is not an error.
func (l *Lease) Release(ctx context.Context) {
	err := l.lock.Release(ctx)
	if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		l.logger.Warn("Lock release failed", zap.String("key", l.key), zap.Error(err))
		return
	}
	l.logger.Debug("Lock released", zap.String("key", l.key))
}

// Refresh extends the lease. Long critical sections call this as a heartbeat
// instead of relying on an oversized initial lease.
func (l *Lease) Refresh(ctx context.Context, lease time.Duration) error {
	if err := l.lock.Refresh(ctx, lease, nil); err != nil {
		return fmt.Errorf("lock: refresh %s: %w", l.key, err)
	}
	return nil
}
