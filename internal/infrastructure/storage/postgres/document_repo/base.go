// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides the header CRUD shared by documents.
type BaseDocumentRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](txManager *postgres.TxManager, tableName, entityName string, newFn func() T) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *BaseDocumentRepo[T]) insert(ctx context.Context, entity T) error {
	sql, args, err := r.Builder().Insert(r.tableName).SetMap(postgres.StructToMap(entity)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, r.entityName, "insert")
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

func (r *BaseDocumentRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return entity, nil
}

func (r *BaseDocumentRepo[T]) getHeader(ctx context.Context, docID id.ID, forUpdate bool) (T, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": docID})
	if forUpdate {
		if r.txManager.GetTx(ctx) == nil {
			var zero T
			return zero, fmt.Errorf("GetForUpdate %s requires transaction context", r.entityName)
		}
		q = q.Suffix("FOR UPDATE")
	}
	return r.getOne(ctx, q, docID.String())
}

func (r *BaseDocumentRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := make([]T, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.entityName, err)
	}
	return out, nil
}

// updateVersioned writes set on the row whose stored version is newVersion-1.
// The caller has already incremented the version in memory.
func (r *BaseDocumentRepo[T]) updateVersioned(ctx context.Context, docID id.ID, newVersion int, set map[string]any) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", newVersion).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID, "version": newVersion - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, r.entityName, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, docID.String())
	}
	return nil
}
