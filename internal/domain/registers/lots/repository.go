package lots

import (
	"context"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Repository defines persistence for material lots. Lots are never deleted.
type Repository interface {
	Create(ctx context.Context, lot *Lot) error

	// ListActive returns active lots of a material, oldest first.
	ListActive(ctx context.Context, materialID id.ID) ([]Lot, error)

	// OldestActive returns the next lot FIFO will draw from, or nil.
	OldestActive(ctx context.Context, materialID id.ID) (*Lot, error)

	// List returns lots of a material oldest first, optionally with exhausted ones.
	List(ctx context.Context, materialID id.ID, includeExhausted bool) ([]Lot, error)

	// ApplyUpdates writes remaining quantities and statuses.
	ApplyUpdates(ctx context.Context, updates []LotUpdate) error

	// SumActive returns the total remaining quantity of active lots.
	SumActive(ctx context.Context, materialID id.ID) (types.Quantity, error)
}
