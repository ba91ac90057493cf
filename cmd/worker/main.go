// Package main is the entry point for the packcore background worker.
// It relays outbox events and cleans up expired bookkeeping rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"packcore/internal/infrastructure/notify"
	"packcore/internal/infrastructure/redis"
	"packcore/internal/infrastructure/storage/postgres"
	"packcore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting packcore worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	var handler postgres.OutboxHandler = logHandler{log: log.WithComponent("outbox")}
	if addr := getEnv("REDIS_ADDRESS", ""); addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Address:  addr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		handler = redis.NewStreamPublisher(rdb, getEnv("EVENT_STREAM", redis.DefaultStream), int64(getEnvInt("EVENT_STREAM_MAXLEN", 100000)))
		log.Infow("relaying outbox to redis stream", "address", addr)
	}

	worker := &Worker{
		log:         log.WithComponent("worker"),
		pool:        pool,
		relay:       postgres.NewOutboxRelay(txManager, getEnvInt("OUTBOX_BATCH_SIZE", 100), handler),
		idempotency: postgres.NewIdempotencyStore(txManager, getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)),
		poll:        getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		retention:   getEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the outbox on notification or poll and runs periodic cleanup.
type Worker struct {
	log         *logger.Logger
	pool        *postgres.Pool
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	poll        time.Duration
	retention   time.Duration
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	wake := make(chan struct{}, 1)
	listener := notify.NewListener(w.pool.Pool, notify.Signal(wake), notify.OutboxChannel)
	if err := listener.Start(ctx); err != nil {
		w.log.Warnw("outbox notifications disabled, polling only", "error", err)
	} else {
		defer listener.Stop()
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	w.drainOutbox(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			w.drainOutbox(ctx)
		case <-ticker.C:
			w.drainOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// drainOutbox processes batches until one comes back short.
func (w *Worker) drainOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "count", n)
		}
		if n == 0 {
			return
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.PurgePublished(ctx, w.retention); err != nil {
		w.log.Errorw("failed to purge outbox", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	w.pool.LogStats(ctx)
}

// logHandler stands in for a broker when none is configured.
type logHandler struct {
	log *logger.Logger
}

func (h logHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("outbox event",
		"id", msg.ID,
		"type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
