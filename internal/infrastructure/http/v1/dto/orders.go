package dto

import (
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/sales_order"
)

// --- Sales orders ---

// CreateOrderRequest represents a request to create a sales order or quote.
type CreateOrderRequest struct {
	Customer     string             `json:"customer" binding:"required"`
	Tipo         sales_order.Tipo   `json:"tipo" binding:"required,oneof=orcamento pedido pedido_confirmado"`
	LeadTimeDays int                `json:"leadTimeDays" binding:"min=0"`
	Comment      string             `json:"comment,omitempty"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest is one order line.
type OrderItemRequest struct {
	ProductID string                   `json:"productId" binding:"required,uuid"`
	Quantity  sales_order.ItemQuantity `json:"quantity"`
	UnitPrice types.Money              `json:"unitPrice"`
}

// ToEntity converts request to domain entity.
func (r *CreateOrderRequest) ToEntity() *sales_order.Order {
	order := sales_order.NewOrder(r.Customer, r.Tipo)
	order.LeadTimeDays = r.LeadTimeDays
	order.Comment = r.Comment
	for _, item := range r.Items {
		productID, _ := id.Parse(item.ProductID)
		order.AddItem(productID, item.Quantity, item.UnitPrice)
	}
	return order
}

// OrderTransitionRequest moves an order to another status.
type OrderTransitionRequest struct {
	Status sales_order.Status `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

// --- Production orders ---

// ProductionOrderListQuery selects the production orders of a sales order.
type ProductionOrderListQuery struct {
	OrderID string `form:"orderId" binding:"required,uuid"`
}

// ProductionStatusRequest moves a production order to another status.
type ProductionStatusRequest struct {
	Status production_order.Status `json:"status" binding:"required,oneof=aguardando em_producao concluida cancelada"`
}

// DrawdownRequest consumes extra material for a production order.
type DrawdownRequest struct {
	MaterialID string         `json:"materialId" binding:"required,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
}
