package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/infrastructure/storage/postgres"
)

const (
	productsTable = "products"
	recipesTable  = "recipe_lines"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
	batch *postgres.BatchExecutor
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txManager, productsTable, "product",
			func() *product.Product { return &product.Product{} }),
		batch: postgres.NewBatchExecutor(txManager),
	}
}

func (r *ProductRepo) UpdateStock(ctx context.Context, productID id.ID, qty types.Quantity) error {
	return r.setColumns(ctx, productID, map[string]any{"stock_qty": qty.Int64Scaled()})
}

func (r *ProductRepo) CreateRecipeLine(ctx context.Context, line *product.RecipeLine) error {
	sql, args, err := r.Builder().
		Insert(recipesTable).
		SetMap(postgres.StructToMap(line)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "recipe line", "insert")
	}
	return nil
}

func (r *ProductRepo) ListRecipe(ctx context.Context, productID id.ID) ([]product.RecipeLine, error) {
	return r.recipeLines(ctx, squirrel.Eq{"product_id": productID})
}

func (r *ProductRepo) ListRecipeLinesByMaterial(ctx context.Context, materialID id.ID) ([]product.RecipeLine, error) {
	return r.recipeLines(ctx, squirrel.Eq{"material_id": materialID})
}

func (r *ProductRepo) recipeLines(ctx context.Context, where squirrel.Eq) ([]product.RecipeLine, error) {
	sql, args, err := r.Builder().
		Select(postgres.ExtractDBColumns[product.RecipeLine]()...).
		From(recipesTable).
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]product.RecipeLine, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list recipe lines: %w", err)
	}
	return out, nil
}

// UpdateRecipeCosts writes all updates in one round trip.
func (r *ProductRepo) UpdateRecipeCosts(ctx context.Context, updates []product.RecipeCostUpdate) error {
	queries := make([]postgres.BatchQuery, 0, len(updates))
	for _, u := range updates {
		queries = append(queries, postgres.BatchQuery{
			SQL:        `UPDATE recipe_lines SET cost_per_unit = $1, updated_at = NOW() WHERE id = $2`,
			Args:       []any{u.CostPerUnit, u.LineID},
			ExpectRows: 1,
		})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("update recipe costs: %w", err)
	}
	return nil
}
