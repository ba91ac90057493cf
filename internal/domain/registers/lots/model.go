// Package lots provides the FIFO ("PEPS") lot ledger for raw materials.
package lots

import (
	"bytes"
	"time"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Status of a lot.
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
)

// Lot is a received quantity of a material at one unit cost.
// UnitCost never changes; QuantityRemaining only decreases.
type Lot struct {
	ID                id.ID          `db:"id" json:"id"`
	MaterialID        id.ID          `db:"material_id" json:"materialId"`
	QuantityInitial   types.Quantity `db:"quantity_initial" json:"quantityInitial"`
	QuantityRemaining types.Quantity `db:"quantity_remaining" json:"quantityRemaining"`
	UnitCost          types.Money    `db:"unit_cost" json:"unitCost"`
	Status            Status         `db:"status" json:"status"`
	SourceRef         string         `db:"source_ref" json:"sourceRef,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}

// IsActive reports whether the lot still has stock.
func (l *Lot) IsActive() bool { return l.Status == StatusActive }

// before orders lots by creation time, then by their time-ordered id.
func (l *Lot) before(o *Lot) bool {
	if !l.CreatedAt.Equal(o.CreatedAt) {
		return l.CreatedAt.Before(o.CreatedAt)
	}
	return bytes.Compare(l.ID[:], o.ID[:]) < 0
}

// Draw is the part of a consumption taken from one lot.
type Draw struct {
	LotID        id.ID          `json:"lotId"`
	Quantity     types.Quantity `json:"quantity"`
	UnitCost     types.Money    `json:"unitCost"`
	LotCreatedAt time.Time      `json:"lotCreatedAt"`
}

// Cost returns quantity × unit cost of the draw.
func (d Draw) Cost() types.Money { return d.Quantity.Cost(d.UnitCost) }

// Consumption is the lot attribution of a requested quantity.
type Consumption struct {
	MaterialID id.ID          `json:"materialId"`
	Requested  types.Quantity `json:"requested"`
	Draws      []Draw         `json:"draws"`
	Shortfall  types.Quantity `json:"shortfall"`
	TotalCost  types.Money    `json:"totalCost"`

	// Movements are the journal rows written by a committed consumption
	Movements []entity.Movement `json:"movements,omitempty"`
}

// Consumed returns the quantity covered by lots.
func (c Consumption) Consumed() types.Quantity {
	return c.Requested - c.Shortfall
}

// Satisfied reports whether lots cover the whole request.
func (c Consumption) Satisfied() bool { return c.Shortfall.IsZero() }

// LotUpdate is the new state of a lot after a consumption.
type LotUpdate struct {
	ID                id.ID
	QuantityRemaining types.Quantity
	Status            Status
}

// ConservationReport compares a material's stock counter with its lots.
type ConservationReport struct {
	MaterialID id.ID          `json:"materialId"`
	StockQty   types.Quantity `json:"stockQty"`
	LotsTotal  types.Quantity `json:"lotsTotal"`
	Balanced   bool           `json:"balanced"`
}
