package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves sales orders and their approval.
type OrderHandler struct {
	*BaseHandler
	orders *sales_order.Service
}

// NewOrderHandler creates a new sales order handler.
func NewOrderHandler(base *BaseHandler, orders *sales_order.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, orders: orders}
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order := req.ToEntity()
	if err := h.orders.Create(c.Request.Context(), order); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Provision handles GET /orders/:id/provision
// Dry run: shortages come back as data with status 200.
func (h *OrderHandler) Provision(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.orders.Provision(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Approve handles POST /orders/:id/approve
func (h *OrderHandler) Approve(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.orders.Approve(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Transition handles POST /orders/:id/transition
func (h *OrderHandler) Transition(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.OrderTransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.Transition(c.Request.Context(), orderID, req.Status, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}
