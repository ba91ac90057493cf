// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/domain"
	"packcore/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides the CRUD shared by catalog entities.
// Columns come from the entity's "db" tags.
type BaseCatalogRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](txManager *postgres.TxManager, tableName, entityName string, newFn func() T) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new entity.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, r.entityName, "insert")
	}
	return nil
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

func (r *BaseCatalogRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
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

// GetByID retrieves an entity by ID.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Limit(1), entityID.String())
}

// GetByCode retrieves an entity by code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}).Limit(1), code)
}

// GetForUpdate retrieves an entity and locks its row until the transaction ends.
func (r *BaseCatalogRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	if r.txManager.GetTx(ctx) == nil {
		var zero T
		return zero, fmt.Errorf("GetForUpdate %s requires transaction context", r.entityName)
	}
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID.String())
}

// List returns a page of entities ordered by code.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) ([]T, error) {
	filter = filter.Normalize()
	sql, args, err := r.baseSelect().
		OrderBy("code").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.entityName, err)
	}
	return out, nil
}

// setColumns updates columns of one row, bumping version and updated_at.
func (r *BaseCatalogRepo[T]) setColumns(ctx context.Context, entityID id.ID, set map[string]any) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, r.entityName, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}
