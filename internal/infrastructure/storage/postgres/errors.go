package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"packcore/internal/core/apperror"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapError converts driver errors into application errors. Anything it does
// not recognise is wrapped with op.
func MapError(err error, entity, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s %s: %w", op, entity, err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewDuplicate(entity, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewValidation("referenced record does not exist").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("value violates a constraint").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.NewConcurrencyConflict(entity, pgErr.Detail).WithCause(err)
	}
	return fmt.Errorf("%s %s: %w", op, entity, err)
}
