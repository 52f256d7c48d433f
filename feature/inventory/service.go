package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// ErrNotInitialized is returned when no counter exists for the concert.
	// The caller must cold-start the counter from the durable store before
	// attempting a decrement.
	ErrNotInitialized = errors.New("inventory: counter not initialized")

	// ErrInsufficient is returned when a decrement would take the counter
	// below zero. The counter is left unchanged.
	ErrInsufficient = errors.New("inventory: insufficient seats")
)

const keyPrefix = "inventory:concert:"

// Key returns the cache key for a concert's seat counter.
func Key(concertID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, concertID)
}

// Service maintains per-concert remaining-seat counters in Redis.
//
// Decrements are atomic at the store level (DECR), never a read-then-write
// pair, so concurrent callers cannot race between the check and the mutation.
type Service struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates an inventory cache service.
func NewService(client *redis.Client, cfg Config, logger *zap.Logger) *Service {
	ttlHours := cfg.TTLHours
	if ttlHours <= 0 {
		ttlHours = 168
	}
	return &Service{
		client: client,
		ttl:    time.Duration(ttlHours) * time.Hour,
		logger: logger,
	}
}

// Remaining returns the current counter value, or ErrNotInitialized when the
// counter is absent or unreadable.
func (s *Service) Remaining(ctx context.Context, concertID uint) (int, error) {
	val, err := s.client.Get(ctx, Key(concertID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotInitialized
		}
		return 0, fmt.Errorf("inventory: get counter for concert %d: %w", concertID, err)
	}
	seats, err := strconv.Atoi(val)
	if err != nil {
		s.logger.Warn("Unparseable inventory value",
			zap.Uint("concert_id", concertID),
			zap.String("value", val),
		)
		return 0, ErrNotInitialized
	}
	return seats, nil
}

// DecrementSeat atomically takes one seat. If the decrement would leave the
// counter negative it is compensated immediately and ErrInsufficient is
// returned.
func (s *Service) DecrementSeat(ctx context.Context, concertID uint) (int, error) {
	key := Key(concertID)
	remaining, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("inventory: decrement concert %d: %w", concertID, err)
	}
	if remaining < 0 {
		// Restore the prior value; two concurrent losers each restore their
		// own decrement, so the counter converges back to zero.
		if err := s.client.Incr(ctx, key).Err(); err != nil {
			s.logger.Error("Failed to compensate negative counter",
				zap.Uint("concert_id", concertID),
				zap.Error(err),
			)
		}
		return 0, ErrInsufficient
	}
	s.logger.Debug("Seat decremented",
		zap.Uint("concert_id", concertID),
		zap.Int64("remaining", remaining),
	)
	return int(remaining), nil
}

// IncrementSeat returns one seat to the counter. Used as compensation when a
// publish fails after a successful decrement.
func (s *Service) IncrementSeat(ctx context.Context, concertID uint) (int, error) {
	remaining, err := s.client.Incr(ctx, Key(concertID)).Result()
	if err != nil {
		return 0, fmt.Errorf("inventory: increment concert %d: %w", concertID, err)
	}
	return int(remaining), nil
}

// Initialize sets the counter for a concert, typically on cold start from the
// durable store.
func (s *Service) Initialize(ctx context.Context, concertID uint, seats int) error {
	if err := s.client.Set(ctx, Key(concertID), strconv.Itoa(seats), s.ttl).Err(); err != nil {
		return fmt.Errorf("inventory: initialize concert %d: %w", concertID, err)
	}
	s.logger.Info("Inventory initialized",
		zap.Uint("concert_id", concertID),
		zap.Int("seats", seats),
	)
	return nil
}

// Sync overwrites the counter with an authoritative value from the durable
// store. Same write as Initialize but logged at debug level since the
// reconciler calls it on every drift.
func (s *Service) Sync(ctx context.Context, concertID uint, seats int) error {
	if err := s.client.Set(ctx, Key(concertID), strconv.Itoa(seats), s.ttl).Err(); err != nil {
		return fmt.Errorf("inventory: sync concert %d: %w", concertID, err)
	}
	s.logger.Debug("Inventory synced",
		zap.Uint("concert_id", concertID),
		zap.Int("seats", seats),
	)
	return nil
}
