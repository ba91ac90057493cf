// Package material provides the raw material catalog.
// A material's stock is held in lots; Material.StockQty is the denormalized
// sum of its active lots and is only changed by the lot ledger.
package material

import (
	"context"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Material is a raw material consumed by manufacturing (paper, film, glue).
type Material struct {
	entity.Catalog

	// StockQty equals the sum of quantity_remaining over active lots
	StockQty types.Quantity `db:"stock_qty" json:"stockQty"`

	// AdminUnitCost is the cost used for recipe costing. Zero means unset.
	AdminUnitCost types.Money `db:"admin_unit_cost" json:"adminUnitCost"`

	MinStock     types.Quantity `db:"min_stock" json:"minStock"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewMaterial creates a material with no stock and no administrative cost.
func NewMaterial(code, name, unit string) *Material {
	return &Material{
		Catalog:       entity.NewCatalog(code, name, unit),
		AdminUnitCost: types.Zero(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (m *Material) Validate(ctx context.Context) error {
	if err := m.Catalog.Validate(ctx); err != nil {
		return err
	}
	if m.AdminUnitCost.IsNegative() {
		return apperror.NewValidation("administrative cost cannot be negative").
			WithDetail("field", "adminUnitCost")
	}
	if m.MinStock.IsNegative() {
		return apperror.NewValidation("minimum stock cannot be negative").
			WithDetail("field", "minStock")
	}
	if m.ReorderPoint.IsNegative() {
		return apperror.NewValidation("reorder point cannot be negative").
			WithDetail("field", "reorderPoint")
	}
	return nil
}

// HasAdminCost reports whether an administrative cost has been set.
func (m *Material) HasAdminCost() bool {
	return m.AdminUnitCost.IsPositive()
}

// CostHistoryEntry is one administrative cost change. Entries are append-only.
type CostHistoryEntry struct {
	ID           id.ID       `db:"id" json:"id"`
	MaterialID   id.ID       `db:"material_id" json:"materialId"`
	PreviousCost types.Money `db:"previous_cost" json:"previousCost"`
	NewCost      types.Money `db:"new_cost" json:"newCost"`
	Reason       string      `db:"reason" json:"reason"`
	ChangedAt    time.Time   `db:"changed_at" json:"changedAt"`
	ChangedBy    string      `db:"changed_by" json:"changedBy,omitempty"`
}
