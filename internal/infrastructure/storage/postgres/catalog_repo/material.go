package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/infrastructure/storage/postgres"
)

const (
	materialsTable   = "materials"
	costHistoryTable = "material_cost_history"
)

// MaterialRepo implements material.Repository.
type MaterialRepo struct {
	*BaseCatalogRepo[*material.Material]
}

var _ material.Repository = (*MaterialRepo)(nil)

// NewMaterialRepo creates a new material repository.
func NewMaterialRepo(txManager *postgres.TxManager) *MaterialRepo {
	return &MaterialRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txManager, materialsTable, "material",
			func() *material.Material { return &material.Material{} }),
	}
}

func (r *MaterialRepo) UpdateStock(ctx context.Context, materialID id.ID, qty types.Quantity) error {
	return r.setColumns(ctx, materialID, map[string]any{"stock_qty": qty.Int64Scaled()})
}

func (r *MaterialRepo) UpdateAdminCost(ctx context.Context, materialID id.ID, cost types.Money) error {
	return r.setColumns(ctx, materialID, map[string]any{"admin_unit_cost": cost})
}

func (r *MaterialRepo) AppendCostHistory(ctx context.Context, entry *material.CostHistoryEntry) error {
	sql, args, err := r.Builder().
		Insert(costHistoryTable).
		SetMap(postgres.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "material cost history", "insert")
	}
	return nil
}

func (r *MaterialRepo) ListCostHistory(ctx context.Context, materialID id.ID) ([]material.CostHistoryEntry, error) {
	sql, args, err := r.Builder().
		Select(postgres.ExtractDBColumns[material.CostHistoryEntry]()...).
		From(costHistoryTable).
		Where(squirrel.Eq{"material_id": materialID}).
		OrderBy("changed_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]material.CostHistoryEntry, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list cost history: %w", err)
	}
	return out, nil
}
