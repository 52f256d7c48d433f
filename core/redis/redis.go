package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config holds configuration for the Redis connection.
type Config struct {
	// Addr is the Redis host:port.
	Addr string `mapstructure:"addr" default:"localhost:6379"`
	// Password is the Redis password, empty when AUTH is disabled.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis logical database index.
	DB int `mapstructure:"db" default:"0"`
	// TimeoutSeconds is the dial and I/O timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}

// Connect creates a Redis client and verifies the connection with a ping.
// Both the inventory counters and the distributed locks share this client.
func Connect(cfg Config) (*redis.Client, error) {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(timeout) * time.Second,
		ReadTimeout:  time.Duration(timeout) * time.Second,
		WriteTimeout: time.Duration(timeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
