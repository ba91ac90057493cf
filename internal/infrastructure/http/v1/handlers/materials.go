package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/costing"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/infrastructure/http/v1/dto"
)

// MaterialHandler serves materials with their lots and costs.
type MaterialHandler struct {
	*BaseHandler
	materials *material.Service
	lots      *lots.Service
	costing   *costing.Service
}

// NewMaterialHandler creates a new material handler.
func NewMaterialHandler(base *BaseHandler, materials *material.Service, ledger *lots.Service, costs *costing.Service) *MaterialHandler {
	return &MaterialHandler{
		BaseHandler: base,
		materials:   materials,
		lots:        ledger,
		costing:     costs,
	}
}

// List handles GET /materials
func (h *MaterialHandler) List(c *gin.Context) {
	var q dto.PaginationRequest
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToListFilter()

	items, err := h.materials.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter))
}

// Create handles POST /materials
func (h *MaterialHandler) Create(c *gin.Context) {
	var req dto.CreateMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m := req.ToEntity()
	if err := h.materials.Create(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Get handles GET /materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	m, err := h.materials.GetByID(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// Lots handles GET /materials/:id/lots
func (h *MaterialHandler) Lots(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.LotListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	items, err := h.lots.ListLots(c.Request.Context(), materialID, q.IncludeExhausted)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// FIFOPreview handles GET /materials/:id/fifo-preview?quantity=
// It reports which lots a consumption would draw without touching them.
func (h *MaterialHandler) FIFOPreview(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.FIFOPreviewQuery
	if !h.BindQuery(c, &q) {
		return
	}
	qty, ok := h.ParseQuantity(c, "quantity", q.Quantity)
	if !ok {
		return
	}

	consumption, err := h.lots.PeekFIFO(c.Request.Context(), materialID, qty)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, consumption)
}

// Conservation handles GET /materials/:id/conservation
func (h *MaterialHandler) Conservation(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.lots.VerifyConservation(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// ApplyAdminCost handles POST /materials/:id/admin-cost
func (h *MaterialHandler) ApplyAdminCost(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.AdminCostRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.costing.ApplyAdministrativeCost(c.Request.Context(), materialID, req.UnitCost, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// CostDivergence handles GET /materials/:id/cost-divergence
// It compares the oldest active lot with the administrative cost.
func (h *MaterialHandler) CostDivergence(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	alert, err := h.costing.CheckOldestLot(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"divergence": alert})
}

// CostHistory handles GET /materials/:id/cost-history
func (h *MaterialHandler) CostHistory(c *gin.Context) {
	materialID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.costing.CostHistory(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(entries))
}
