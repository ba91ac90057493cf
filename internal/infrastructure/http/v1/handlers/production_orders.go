package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/core/id"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/infrastructure/http/v1/dto"
)

// ProductionOrderHandler serves production orders.
type ProductionOrderHandler struct {
	*BaseHandler
	orders *production_order.Service
}

// NewProductionOrderHandler creates a new production order handler.
func NewProductionOrderHandler(base *BaseHandler, orders *production_order.Service) *ProductionOrderHandler {
	return &ProductionOrderHandler{BaseHandler: base, orders: orders}
}

// List handles GET /production-orders?orderId=
func (h *ProductionOrderHandler) List(c *gin.Context) {
	var q dto.ProductionOrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	orderID, _ := id.Parse(q.OrderID)

	items, err := h.orders.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Get handles GET /production-orders/:id
func (h *ProductionOrderHandler) Get(c *gin.Context) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.orders.GetByID(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}

// Drawdown handles POST /production-orders/:id/drawdown
// A shortfall is reported as a warning in the 200 response.
func (h *ProductionOrderHandler) Drawdown(c *gin.Context) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DrawdownRequest
	if !h.BindJSON(c, &req) {
		return
	}
	materialID, _ := id.Parse(req.MaterialID)

	result, err := h.orders.Drawdown(c.Request.Context(), poID, materialID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Status handles POST /production-orders/:id/status
func (h *ProductionOrderHandler) Status(c *gin.Context) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductionStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	po, err := h.orders.Transition(c.Request.Context(), poID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}
