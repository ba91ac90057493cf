package replenishment

import (
	"context"

	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/events"
	"packcore/pkg/logger"
)

// MaterialReader reads materials.
type MaterialReader interface {
	GetByID(ctx context.Context, id id.ID) (*material.Material, error)
}

// LowStockAlert is a material the reorder rule flagged.
type LowStockAlert struct {
	MaterialID   id.ID          `json:"materialId"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	StockQty     types.Quantity `json:"stockQty"`
	MinStock     types.Quantity `json:"minStock"`
	ReorderPoint types.Quantity `json:"reorderPoint"`
}

// Service evaluates the reorder rule after stock decreases.
type Service struct {
	materials MaterialReader
	rule      *Rule
	txManager tx.Manager
	events    events.Publisher
}

// NewService creates a new replenishment service.
func NewService(materials MaterialReader, rule *Rule, txManager tx.Manager, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{materials: materials, rule: rule, txManager: txManager, events: publisher}
}

// Check evaluates the rule for each material and publishes material.low_stock
// for the flagged ones. A failing evaluation is logged and skipped.
func (s *Service) Check(ctx context.Context, materialIDs ...id.ID) ([]LowStockAlert, error) {
	alerts := make([]LowStockAlert, 0)
	for _, mid := range materialIDs {
		m, err := s.materials.GetByID(ctx, mid)
		if err != nil {
			return nil, err
		}
		low, err := s.rule.Evaluate(m)
		if err != nil {
			logger.Warn(ctx, "reorder rule failed", "material_id", mid, "error", err)
			continue
		}
		if !low {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			MaterialID:   m.ID,
			Code:         m.Code,
			Name:         m.Name,
			StockQty:     m.StockQty,
			MinStock:     m.MinStock,
			ReorderPoint: m.ReorderPoint,
		})
	}
	if len(alerts) == 0 {
		return alerts, nil
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, a := range alerts {
			if err := s.events.Publish(ctx, events.Event{
				AggregateType: events.AggregateMaterial,
				AggregateID:   a.MaterialID,
				Type:          events.MaterialLowStock,
				Payload:       a,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range alerts {
		logger.Warn(ctx, "material below reorder point",
			"material_id", a.MaterialID,
			"code", a.Code,
			"stock_qty", a.StockQty.String(),
			"reorder_point", a.ReorderPoint.String())
	}
	return alerts, nil
}
