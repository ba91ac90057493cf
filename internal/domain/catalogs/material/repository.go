package material

import (
	"context"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain"
)

// Repository defines the interface for Material persistence.
type Repository interface {
	domain.CatalogRepository[*Material]

	// GetForUpdate retrieves a material with a row lock held until the
	// transaction ends. All stock and cost mutations go through it.
	GetForUpdate(ctx context.Context, id id.ID) (*Material, error)

	List(ctx context.Context, filter domain.ListFilter) ([]*Material, error)

	UpdateStock(ctx context.Context, id id.ID, qty types.Quantity) error
	UpdateAdminCost(ctx context.Context, id id.ID, cost types.Money) error

	AppendCostHistory(ctx context.Context, entry *CostHistoryEntry) error
	ListCostHistory(ctx context.Context, materialID id.ID) ([]CostHistoryEntry, error)
}
