// Package production_order provides work orders derived from approved sales orders.
package production_order

import (
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Status of a production order.
type Status string

const (
	StatusWaiting      Status = "aguardando"
	StatusInProduction Status = "em_producao"
	StatusDone         Status = "concluida"
	StatusCancelled    Status = "cancelada"
)

var transitions = map[Status][]Status{
	StatusWaiting:      {StatusInProduction, StatusCancelled},
	StatusInProduction: {StatusDone, StatusCancelled},
}

// CanTransitionTo reports whether to is on the allow-list from s.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool { return len(transitions[s]) == 0 }

// Allocation attributes consumed material to the lot it was drawn from.
type Allocation struct {
	MaterialID id.ID          `json:"materialId"`
	LotID      id.ID          `json:"lotId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitCost   types.Money    `json:"unitCost"`
}

// ProductionOrder instructs manufacture of one sales order item.
// At most one exists per (OrderID, OrderItemID).
type ProductionOrder struct {
	entity.Document

	OrderID     id.ID `db:"order_id" json:"orderId"`
	OrderItemID id.ID `db:"order_item_id" json:"orderItemId"`
	ProductID   id.ID `db:"product_id" json:"productId"`

	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	Status        Status         `db:"status" json:"status"`
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduledDate"`

	Allocations []Allocation `db:"allocations" json:"allocations"`
}

// MaterialCost sums the cost of all allocations.
func (po *ProductionOrder) MaterialCost() types.Money {
	total := types.Zero()
	for _, a := range po.Allocations {
		total = total.Add(a.Quantity.Cost(a.UnitCost))
	}
	return total
}

// Transition moves the order along the allow-list.
func (po *ProductionOrder) Transition(to Status) error {
	if !po.Status.CanTransitionTo(to) {
		return apperror.NewInvalidTransition("production order", string(po.Status), string(to))
	}
	po.Status = to
	po.Touch()
	return nil
}
