// Package main is the entry point for the packcore API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"packcore/internal/app"
	"packcore/internal/core/lock"
	"packcore/internal/domain/documents/sales_order"
	v1 "packcore/internal/infrastructure/http/v1"
	"packcore/internal/infrastructure/http/v1/handlers"
	"packcore/internal/infrastructure/redis"
	"packcore/internal/infrastructure/storage/postgres"
	"packcore/pkg/logger"
)

func main() {
	env := getEnv("APP_ENV", "development")
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting packcore server", "env", env)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	if getEnv("AUTO_MIGRATE", "false") == "true" {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalw("failed to apply schema", "error", err)
		}
	}

	checks := map[string]handlers.Check{
		"database": pool.Ping,
	}

	// --- Approval lease ---
	var locker lock.Locker
	if addr := getEnv("REDIS_ADDRESS", ""); addr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		rdb, err := redis.Connect(connectCtx, redis.Config{
			Address:  addr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		cancel()
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer rdb.Close()

		locker = redis.NewLocker(rdb, "packcore:lock:")
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Infow("approval leases backed by redis", "address", addr)
	} else {
		log.Warn("REDIS_ADDRESS not set, approval leases are process-local")
	}

	// --- Services ---
	idem := app.DefaultIdempotencyOptions()
	idem.Enabled = getEnv("IDEMPOTENCY_ENABLED", "true") == "true"
	idem.TTL = getEnvDuration("IDEMPOTENCY_TTL", idem.TTL)

	backend, err := app.PostgresStorage(pool, locker, idem)
	if err != nil {
		log.Fatalw("failed to wire storage", "error", err)
	}

	opts, err := serviceOptions()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	log.Infow("approval policy", opts.Approval.Fields()...)
	if opts.Approval.ResaleShortage == sales_order.ResaleSoft {
		log.Warn("resale shortages will not block approvals")
	}
	services, err := app.NewServices(backend.Storage, opts)
	if err != nil {
		log.Fatalw("failed to wire services", "error", err)
	}

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Services:     services,
		Logger:       log,
		HealthChecks: checks,
		AuditHistory: backend.Audit,
		Debug:        env == "development",
	}
	if idem.Enabled {
		routerCfg.Idempotency = backend.Idempotency
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// serviceOptions reads the approval policy and reorder rule from the environment.
func serviceOptions() (app.Options, error) {
	opts := app.DefaultOptions()

	policy, err := sales_order.ParseResalePolicy(strings.ToLower(getEnv("RESALE_SHORTAGE_POLICY", "hard")))
	if err != nil {
		return opts, err
	}
	opts.Approval.ResaleShortage = policy
	opts.Approval.LeaseTTL = getEnvDuration("APPROVAL_LOCK_TTL", opts.Approval.LeaseTTL)
	opts.Approval.DefaultLeadTimeDays = getEnvInt("DEFAULT_LEAD_TIME_DAYS", opts.Approval.DefaultLeadTimeDays)
	opts.ReorderRule = getEnv("REORDER_RULE", "")
	return opts, nil
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
