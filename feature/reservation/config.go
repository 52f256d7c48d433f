package reservation

import "time"

// Config holds configuration for the reservation pipeline.
type Config struct {
	// LockWaitSeconds is how long a request waits for the concert lock
	// before failing as retriable.
	LockWaitSeconds int `mapstructure:"lock_wait_seconds" default:"45"`
	// LockLeaseSeconds is the lock lease. It must cover the worst-case
	// critical section; long holders refresh the lease instead of raising it.
	LockLeaseSeconds int `mapstructure:"lock_lease_seconds" default:"10"`
	// RetryMaxAttempts is the total number of persistence attempts per event.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" default:"3"`
	// RetryInitialMillis is the first backoff interval; it doubles per attempt.
	RetryInitialMillis int `mapstructure:"retry_initial_millis" default:"1000"`
	// BatchSize is the maximum number of events consumed per batch.
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// BatchFlushMillis bounds how long a partial batch waits before processing.
	BatchFlushMillis int `mapstructure:"batch_flush_millis" default:"1000"`
}

// LockWait returns the lock wait window.
func (c Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// LockLease returns the lock lease duration.
func (c Config) LockLease() time.Duration {
	return time.Duration(c.LockLeaseSeconds) * time.Second
}

// RetryInitial returns the initial retry backoff interval.
func (c Config) RetryInitial() time.Duration {
	return time.Duration(c.RetryInitialMillis) * time.Millisecond
}

// BatchFlush returns the partial batch flush interval.
func (c Config) BatchFlush() time.Duration {
	return time.Duration(c.BatchFlushMillis) * time.Millisecond
}
