// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/infrastructure/storage/postgres"
)

const lotsTable = "material_lots"

// LotRepo implements lots.Repository.
type LotRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchExecutor
	builder   squirrel.StatementBuilderType
	columns   []string
}

var _ lots.Repository = (*LotRepo)(nil)

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txManager: txManager,
		batch:     postgres.NewBatchExecutor(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   postgres.ExtractDBColumns[lots.Lot](),
	}
}

func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	sql, args, err := r.builder.Insert(lotsTable).SetMap(postgres.StructToMap(lot)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "lot", "insert")
	}
	return nil
}

// selectLots orders lots the way FIFO consumes them: oldest first, id breaks ties.
func (r *LotRepo) selectLots(materialID id.ID, includeExhausted bool) squirrel.SelectBuilder {
	q := r.builder.Select(r.columns...).
		From(lotsTable).
		Where(squirrel.Eq{"material_id": materialID}).
		OrderBy("created_at", "id")
	if !includeExhausted {
		q = q.Where(squirrel.Eq{"status": lots.StatusActive})
	}
	return q
}

func (r *LotRepo) query(ctx context.Context, q squirrel.SelectBuilder) ([]lots.Lot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := make([]lots.Lot, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}
	return out, nil
}

// ListActive locks the returned rows when called inside a transaction.
func (r *LotRepo) ListActive(ctx context.Context, materialID id.ID) ([]lots.Lot, error) {
	q := r.selectLots(materialID, false)
	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE")
	}
	return r.query(ctx, q)
}

func (r *LotRepo) OldestActive(ctx context.Context, materialID id.ID) (*lots.Lot, error) {
	found, err := r.query(ctx, r.selectLots(materialID, false).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *LotRepo) List(ctx context.Context, materialID id.ID, includeExhausted bool) ([]lots.Lot, error) {
	return r.query(ctx, r.selectLots(materialID, includeExhausted))
}

// ApplyUpdates only lets quantity_remaining decrease; a row that would grow is
// left untouched and reported as a conflict.
func (r *LotRepo) ApplyUpdates(ctx context.Context, updates []lots.LotUpdate) error {
	queries := make([]postgres.BatchQuery, 0, len(updates))
	for _, u := range updates {
		queries = append(queries, postgres.BatchQuery{
			SQL: `UPDATE material_lots SET quantity_remaining = $1, status = $2
			      WHERE id = $3 AND quantity_remaining >= $1`,
			Args:       []any{u.QuantityRemaining.Int64Scaled(), u.Status, u.ID},
			ExpectRows: 1,
		})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		if postgres.IsUnexpectedRowCount(err) {
			return apperror.NewBusinessRule(apperror.CodeConcurrencyConflict,
				"lot remaining quantity can only decrease").WithCause(err)
		}
		return fmt.Errorf("apply lot updates: %w", err)
	}
	return nil
}

func (r *LotRepo) SumActive(ctx context.Context, materialID id.ID) (types.Quantity, error) {
	var scaled int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_remaining), 0)::BIGINT
		FROM material_lots
		WHERE material_id = $1 AND status = $2`, materialID, lots.StatusActive).Scan(&scaled)
	if err != nil {
		return 0, fmt.Errorf("sum active lots: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(scaled), nil
}
