package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"packcore/pkg/logger"
)

//go:embed schema/schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}
