package costing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"packcore/internal/core/apperror"
	appctx "packcore/internal/core/context"
	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
	"packcore/pkg/logger"
)

var tracer = otel.Tracer("packcore/costing")

// MaterialStore reads materials and writes their administrative cost.
type MaterialStore interface {
	GetByID(ctx context.Context, id id.ID) (*material.Material, error)
	GetForUpdate(ctx context.Context, id id.ID) (*material.Material, error)
	UpdateAdminCost(ctx context.Context, id id.ID, cost types.Money) error
	AppendCostHistory(ctx context.Context, entry *material.CostHistoryEntry) error
	ListCostHistory(ctx context.Context, materialID id.ID) ([]material.CostHistoryEntry, error)
}

// RecipeStore reads and updates the recipe lines of a material.
type RecipeStore interface {
	ListRecipeLinesByMaterial(ctx context.Context, materialID id.ID) ([]product.RecipeLine, error)
	UpdateRecipeCosts(ctx context.Context, updates []product.RecipeCostUpdate) error
}

// LotReader finds the next lot FIFO will draw from.
type LotReader interface {
	OldestActive(ctx context.Context, materialID id.ID) (*lots.Lot, error)
}

// Service is the cost reconciler.
type Service struct {
	materials MaterialStore
	recipes   RecipeStore
	lots      LotReader
	txManager tx.Manager
	events    events.Publisher
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates a new cost reconciler.
func NewService(
	materials MaterialStore,
	recipes RecipeStore,
	lotReader LotReader,
	txManager tx.Manager,
	publisher events.Publisher,
	recorder audit.Recorder,
) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Service{
		materials: materials,
		recipes:   recipes,
		lots:      lotReader,
		txManager: txManager,
		events:    publisher,
		audit:     recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckDivergence compares lotCost with the material's administrative cost.
// It returns nil when no administrative cost is set or the costs agree
// within DivergenceThreshold.
func (s *Service) CheckDivergence(ctx context.Context, materialID id.ID, lotCost types.Money) (*CostDivergenceAlert, error) {
	m, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	alert := divergence(m.ID, m.AdminUnitCost, lotCost)
	if alert != nil {
		logger.Warn(ctx, "lot cost diverges from administrative cost",
			"material_id", m.ID,
			"admin_cost", alert.AdminCost.String(),
			"lot_cost", alert.LotCost.String(),
			"pct_diff", alert.PctDiff.String())
	}
	return alert, nil
}

// CheckOldestLot runs CheckDivergence against the next lot to be consumed.
// It returns nil when the material has no active lot.
func (s *Service) CheckOldestLot(ctx context.Context, materialID id.ID) (*CostDivergenceAlert, error) {
	m, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	lot, err := s.lots.OldestActive(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("oldest active lot: %w", err)
	}
	if lot == nil {
		return nil, nil
	}
	alert := divergence(m.ID, m.AdminUnitCost, lot.UnitCost)
	if alert != nil {
		alert.LotID = &lot.ID
	}
	return alert, nil
}

// ApplyResult reports an administrative cost change.
type ApplyResult struct {
	MaterialID     id.ID       `json:"materialId"`
	PreviousCost   types.Money `json:"previousCost"`
	NewCost        types.Money `json:"newCost"`
	RecipesUpdated int         `json:"recipesUpdated"`
}

// ApplyAdministrativeCost sets a material's administrative cost, appends the
// cost history and recalculates the recipes that use it, in one transaction.
func (s *Service) ApplyAdministrativeCost(ctx context.Context, materialID id.ID, newCost types.Money, reason string) (*ApplyResult, error) {
	if !newCost.IsPositive() {
		return nil, apperror.NewValidation("administrative cost must be positive").
			WithDetail("field", "newCost").
			WithDetail("value", newCost.String())
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewValidation("a reason is required for cost changes").
			WithDetail("field", "reason")
	}

	ctx, span := tracer.Start(ctx, "costing.ApplyAdministrativeCost",
		trace.WithAttributes(attribute.String("material.id", materialID.String())))
	defer span.End()

	res := &ApplyResult{MaterialID: materialID, NewCost: newCost}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.materials.GetForUpdate(ctx, materialID)
		if err != nil {
			return err
		}
		res.PreviousCost = m.AdminUnitCost

		if err := s.materials.UpdateAdminCost(ctx, m.ID, newCost); err != nil {
			return fmt.Errorf("update admin cost: %w", err)
		}
		if err := s.materials.AppendCostHistory(ctx, &material.CostHistoryEntry{
			ID:           id.New(),
			MaterialID:   m.ID,
			PreviousCost: m.AdminUnitCost,
			NewCost:      newCost,
			Reason:       reason,
			ChangedAt:    s.now(),
			ChangedBy:    appctx.GetUserID(ctx),
		}); err != nil {
			return fmt.Errorf("append cost history: %w", err)
		}

		res.RecipesUpdated, err = s.RecalculateRecipes(ctx, m.ID, newCost)
		if err != nil {
			return err
		}

		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateMaterial,
			AggregateID:   m.ID,
			Type:          events.MaterialCostChanged,
			Payload:       res,
		}); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "material", m.ID, audit.ActionCostChange, map[string]any{
			"admin_unit_cost": map[string]any{"from": res.PreviousCost, "to": newCost},
			"reason":          reason,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "administrative cost applied",
		"material_id", materialID,
		"previous_cost", res.PreviousCost.String(),
		"new_cost", newCost.String(),
		"recipes_updated", res.RecipesUpdated)
	return res, nil
}

// RecalculateRecipes rewrites cost_per_unit of the recipe lines that use
// materialID. Lines whose cost moves by less than RecipeCostEpsilon are
// left alone. It returns the number of lines written.
func (s *Service) RecalculateRecipes(ctx context.Context, materialID id.ID, newCost types.Money) (int, error) {
	var updated int
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.recipes.ListRecipeLinesByMaterial(ctx, materialID)
		if err != nil {
			return fmt.Errorf("list recipe lines: %w", err)
		}

		updates := make([]product.RecipeCostUpdate, 0, len(lines))
		for _, l := range lines {
			cost := product.CostPerUnitFor(l.ConsumptionPerUnitG, newCost)
			if cost.Sub(l.CostPerUnit).Abs().LessThan(RecipeCostEpsilon) {
				continue
			}
			updates = append(updates, product.RecipeCostUpdate{LineID: l.ID, CostPerUnit: cost})
		}
		if len(updates) == 0 {
			return nil
		}

		if err := s.recipes.UpdateRecipeCosts(ctx, updates); err != nil {
			return fmt.Errorf("update recipe costs: %w", err)
		}
		updated = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Debug(ctx, "recipes recalculated", "material_id", materialID, "updated", updated)
	return updated, nil
}

// CostHistory returns a material's administrative cost changes, newest first.
func (s *Service) CostHistory(ctx context.Context, materialID id.ID) ([]material.CostHistoryEntry, error) {
	if _, err := s.materials.GetByID(ctx, materialID); err != nil {
		return nil, err
	}
	return s.materials.ListCostHistory(ctx, materialID)
}
