package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/entity"
	"packcore/internal/core/types"
	"packcore/internal/domain/registers/movements"
	"packcore/internal/infrastructure/storage/postgres"
)

const movementsTable = "stock_movements"

var movementColumns = []string{
	"id", "movement_type", "item_kind", "item_id", "lot_id",
	"qty_before", "qty_delta", "qty_after", "unit_cost",
	"reason", "reference", "created_at", "created_by",
}

// MovementRepo implements movements.Repository.
type MovementRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ movements.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func movementRow(m entity.Movement) []any {
	return []any{
		m.ID, m.Type, m.ItemKind, m.ItemID, m.LotID,
		m.QtyBefore.Int64Scaled(), m.QtyDelta.Int64Scaled(), m.QtyAfter.Int64Scaled(), m.UnitCost,
		m.Reason, m.Reference, m.CreatedAt, m.CreatedBy,
	}
}

// CreateMovements uses COPY inside a transaction and a multi-row INSERT otherwise.
func (r *MovementRepo) CreateMovements(ctx context.Context, mvs []entity.Movement) error {
	if len(mvs) == 0 {
		return nil
	}

	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(mvs))
		for _, m := range mvs {
			rows = append(rows, movementRow(m))
		}
		if _, err := r.inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return postgres.MapError(err, "movement", "copy")
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range mvs {
		q = q.Values(movementRow(m)...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "movement", "insert")
	}
	return nil
}

// ListMovements returns movements newest first.
func (r *MovementRepo) ListMovements(ctx context.Context, f movements.Filter) ([]entity.Movement, error) {
	f.ListFilter = f.ListFilter.Normalize()

	q := r.builder.Select(movementColumns...).From(movementsTable)
	if f.ItemKind != nil {
		q = q.Where(squirrel.Eq{"item_kind": *f.ItemKind})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *f.ItemID})
	}
	if f.LotID != nil {
		q = q.Where(squirrel.Eq{"lot_id": *f.LotID})
	}
	if f.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": f.Reference})
	}
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *f.Type})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *f.ToDate})
	}
	q = q.OrderBy("created_at DESC", "id DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := make([]entity.Movement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

// GetTurnover sums movements of one item over [FromDate, ToDate).
func (r *MovementRepo) GetTurnover(ctx context.Context, f movements.TurnoverFilter) (movements.Turnover, error) {
	var opening, increase, decrease int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(qty_delta) FILTER (WHERE created_at < $3), 0)::BIGINT,
			COALESCE(SUM(qty_delta) FILTER (WHERE created_at >= $3 AND created_at < $4 AND qty_delta > 0), 0)::BIGINT,
			COALESCE(-SUM(qty_delta) FILTER (WHERE created_at >= $3 AND created_at < $4 AND qty_delta < 0), 0)::BIGINT
		FROM stock_movements
		WHERE item_kind = $1 AND item_id = $2`,
		f.ItemKind, f.ItemID, f.FromDate, f.ToDate).Scan(&opening, &increase, &decrease)
	if err != nil {
		return movements.Turnover{}, fmt.Errorf("get turnover: %w", err)
	}

	t := movements.Turnover{
		ItemKind:       f.ItemKind,
		ItemID:         f.ItemID,
		OpeningBalance: types.NewQuantityFromInt64Scaled(opening),
		Increase:       types.NewQuantityFromInt64Scaled(increase),
		Decrease:       types.NewQuantityFromInt64Scaled(decrease),
	}
	t.ClosingBalance = t.OpeningBalance + t.Increase - t.Decrease
	return t, nil
}
