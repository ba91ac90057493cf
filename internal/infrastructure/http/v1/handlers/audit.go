package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"packcore/internal/core/id"
	"packcore/internal/infrastructure/http/v1/dto"
	"packcore/internal/infrastructure/storage/postgres"
)

// AuditHistory reads the audit trail of one entity.
type AuditHistory interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	*BaseHandler
	history AuditHistory
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, history AuditHistory) *AuditHandler {
	return &AuditHandler{BaseHandler: base, history: history}
}

// History handles GET /audit/:entityType/:id
func (h *AuditHandler) History(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)

	entries, err := h.history.GetEntityHistory(c.Request.Context(), c.Param("entityType"), entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(entries))
}
