package inventory

// Config holds configuration for the seat counter cache.
type Config struct {
	// TTLHours is how long a seat counter lives without being refreshed.
	// Counters are a derived view and can always be rebuilt from the durable
	// store, so expiry is safe.
	TTLHours int `mapstructure:"ttl_hours" default:"168"`
	// SyncIntervalMinutes is the period of the store-to-cache reconciliation.
	SyncIntervalMinutes int `mapstructure:"sync_interval_minutes" default:"5"`
}
