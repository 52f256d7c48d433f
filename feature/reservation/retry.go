package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the persistence attempts for a single event with
// exponential backoff. With the defaults (3 attempts, 1s initial, x2) a
// failing event sleeps 1s and 2s between attempts, stalling its partition's
// consumer for the backoff duration. That is an accepted tradeoff for
// simplicity.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// NewRetryPolicy builds the policy from configuration.
func NewRetryPolicy(cfg Config) RetryPolicy {
	attempts := cfg.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: cfg.RetryInitial(),
		Multiplier:      2,
	}
}

// Do runs op until it succeeds, returns a permanent error, or the attempt
// budget is spent. Missing concerts and members are permanent: retrying a
// reference that does not exist only wastes the backoff budget. Everything
// else is treated as transient.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (attempts int, err error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	err = backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx))
	return attempts, err
}
