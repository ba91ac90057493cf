// Package events defines the domain events emitted by the inventory core.
// Events are published inside the transaction that causes them, so a
// rolled-back operation never leaks an event.
package events

import (
	"context"

	"packcore/internal/core/id"
)

// Event types.
const (
	LotCreated             = "lot.created"
	MaterialCostChanged    = "material.cost_changed"
	MaterialLowStock       = "material.low_stock"
	SalesOrderApproved     = "sales_order.approved"
	SalesOrderStatusChange = "sales_order.status_changed"
	ProductionOrderCreated = "production_order.created"
	ProductionOrderStatus  = "production_order.status_changed"
)

// Aggregate types.
const (
	AggregateMaterial        = "material"
	AggregateSalesOrder      = "sales_order"
	AggregateProductionOrder = "production_order"
)

// Event is a fact about a state change.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher writes events. Implementations must join the transaction in ctx.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
