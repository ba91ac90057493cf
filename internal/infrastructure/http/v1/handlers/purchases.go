package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/domain/documents/purchase_receipt"
	"packcore/internal/infrastructure/http/v1/dto"
)

// PurchaseHandler books supplier deliveries.
type PurchaseHandler struct {
	*BaseHandler
	purchases *purchase_receipt.Service
}

// NewPurchaseHandler creates a new purchase handler.
func NewPurchaseHandler(base *BaseHandler, purchases *purchase_receipt.Service) *PurchaseHandler {
	return &PurchaseHandler{BaseHandler: base, purchases: purchases}
}

// Receive handles POST /purchases/receipts
// Each line becomes a lot; cost divergences are reported, never rejected.
func (h *PurchaseHandler) Receive(c *gin.Context) {
	var req dto.PurchaseReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.purchases.Receive(c.Request.Context(), req.ToReceipt())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}
