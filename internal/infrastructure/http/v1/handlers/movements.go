package handlers

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/domain/registers/movements"
	"packcore/internal/infrastructure/http/v1/dto"
)

// MovementHandler serves the stock movement journal.
type MovementHandler struct {
	*BaseHandler
	movements *movements.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *movements.Service) *MovementHandler {
	return &MovementHandler{BaseHandler: base, movements: service}
}

// List handles GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	var q dto.MovementListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := movements.Filter{
		ListFilter: q.ToListFilter(),
		ItemKind:   q.ItemKindPtr(),
		Type:       q.TypePtr(),
		Reference:  q.Reference,
		FromDate:   q.FromDate,
		ToDate:     q.ToDate,
	}
	if q.ItemID != "" {
		itemID, _ := id.Parse(q.ItemID)
		filter.ItemID = &itemID
	}
	if q.LotID != "" {
		lotID, _ := id.Parse(q.LotID)
		filter.LotID = &lotID
	}

	items, err := h.movements.History(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.ListFilter))
}

// Turnover handles GET /movements/turnover
func (h *MovementHandler) Turnover(c *gin.Context) {
	var q dto.TurnoverQuery
	if !h.BindQuery(c, &q) {
		return
	}
	itemID, _ := id.Parse(q.ItemID)

	t, err := h.movements.Turnover(c.Request.Context(), movements.TurnoverFilter{
		ItemKind: entity.ItemKind(q.ItemKind),
		ItemID:   itemID,
		FromDate: q.FromDate,
		ToDate:   q.ToDate,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}
