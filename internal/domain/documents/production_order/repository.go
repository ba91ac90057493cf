package production_order

import (
	"context"

	"packcore/internal/core/id"
)

// Repository defines persistence for production orders.
type Repository interface {
	// Create fails with a duplicate error when the order item already has one.
	Create(ctx context.Context, po *ProductionOrder) error

	GetByID(ctx context.Context, id id.ID) (*ProductionOrder, error)
	GetForUpdate(ctx context.Context, id id.ID) (*ProductionOrder, error)

	// FindByOrderItem returns a not-found error when the item has no production order.
	FindByOrderItem(ctx context.Context, orderID, orderItemID id.ID) (*ProductionOrder, error)

	ListByOrder(ctx context.Context, orderID id.ID) ([]*ProductionOrder, error)

	// Update writes status, allocations and version.
	Update(ctx context.Context, po *ProductionOrder) error
}
