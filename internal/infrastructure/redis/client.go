// Package redis connects to Redis and provides the approval lease and the
// event stream the outbox relay delivers to.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"packcore/pkg/logger"
)

// Config holds connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Connect opens a client and pings it, retrying with exponential backoff
// (capped at 30s) until ctx is done.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 100
	}

	for attempt := 1; ; attempt++ {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logger.Info(ctx, "connected to redis", "addr", cfg.Address, "attempt", attempt)
			return rdb, nil
		}
		_ = rdb.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.Warn(ctx, "failed to connect redis", "addr", cfg.Address, "attempt", attempt, "retry_in", sleep, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect redis: %w", err)
		case <-time.After(sleep):
		}
	}
}
