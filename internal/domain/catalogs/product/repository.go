package product

import (
	"context"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain"
)

// Repository defines the interface for Product and recipe persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// GetForUpdate retrieves a product with a row lock.
	GetForUpdate(ctx context.Context, id id.ID) (*Product, error)

	// UpdateStock overwrites the resale stock counter.
	UpdateStock(ctx context.Context, id id.ID, qty types.Quantity) error

	CreateRecipeLine(ctx context.Context, line *RecipeLine) error
	ListRecipe(ctx context.Context, productID id.ID) ([]RecipeLine, error)

	// ListRecipeLinesByMaterial uses the material_id index; it never scans all recipes.
	ListRecipeLinesByMaterial(ctx context.Context, materialID id.ID) ([]RecipeLine, error)

	// UpdateRecipeCosts writes all updates as one batch.
	UpdateRecipeCosts(ctx context.Context, updates []RecipeCostUpdate) error
}
