package sales_order

import (
	"context"

	"packcore/internal/core/id"
)

// Repository defines persistence for sales orders.
type Repository interface {
	// Create stores the order and its items.
	Create(ctx context.Context, order *Order) error

	// GetByID loads the order with its items.
	GetByID(ctx context.Context, id id.ID) (*Order, error)

	// GetForUpdate loads the order with its items and locks the order row
	// until the transaction ends.
	GetForUpdate(ctx context.Context, id id.ID) (*Order, error)

	// UpdateStatus writes status, tipo, approved_at and version. It fails with
	// a concurrent modification error when the stored version is not
	// order.Version-1.
	UpdateStatus(ctx context.Context, order *Order) error
}
