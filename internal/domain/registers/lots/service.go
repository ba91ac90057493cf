package lots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/events"
	"packcore/pkg/logger"
)

var tracer = otel.Tracer("packcore/lots")

// MaterialStore is the part of the material catalog the ledger mutates.
type MaterialStore interface {
	GetByID(ctx context.Context, id id.ID) (*material.Material, error)
	GetForUpdate(ctx context.Context, id id.ID) (*material.Material, error)
	UpdateStock(ctx context.Context, id id.ID, qty types.Quantity) error
}

// MovementRecorder appends stock movements.
type MovementRecorder interface {
	Record(ctx context.Context, movements ...entity.Movement) error
}

// Service owns material lots. Every mutation locks the material row first,
// which serializes all stock changes of one material.
type Service struct {
	repo      Repository
	materials MaterialStore
	movements MovementRecorder
	txManager tx.Manager
	events    events.Publisher
	now       func() time.Time
}

// NewService creates a new lot ledger.
func NewService(
	repo Repository,
	materials MaterialStore,
	movements MovementRecorder,
	txManager tx.Manager,
	publisher events.Publisher,
) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		repo:      repo,
		materials: materials,
		movements: movements,
		txManager: txManager,
		events:    publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateLotRequest describes a received quantity.
type CreateLotRequest struct {
	MaterialID id.ID
	Quantity   types.Quantity
	UnitCost   types.Money
	SourceRef  string
}

// Validate checks request invariants.
func (r CreateLotRequest) Validate() error {
	if id.IsNil(r.MaterialID) {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("lot quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", r.Quantity.String())
	}
	if !r.UnitCost.IsPositive() {
		return apperror.NewValidation("lot unit cost must be positive").
			WithDetail("field", "unitCost").
			WithDetail("value", r.UnitCost.String())
	}
	return nil
}

// CreateLot appends an active lot, raises the material stock and records an entry movement.
func (s *Service) CreateLot(ctx context.Context, req CreateLotRequest) (*Lot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "lots.CreateLot",
		trace.WithAttributes(attribute.String("material.id", req.MaterialID.String())))
	defer span.End()

	var lot *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.materials.GetForUpdate(ctx, req.MaterialID)
		if err != nil {
			return err
		}

		lot = &Lot{
			ID:                id.New(),
			MaterialID:        m.ID,
			QuantityInitial:   req.Quantity,
			QuantityRemaining: req.Quantity,
			UnitCost:          req.UnitCost,
			Status:            StatusActive,
			SourceRef:         req.SourceRef,
			CreatedAt:         s.now(),
		}
		if err := s.repo.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}

		mv := entity.NewMovement(entity.ItemMaterial, m.ID, entity.MovementEntry,
			m.StockQty, req.Quantity, "compra", req.SourceRef).
			WithLot(lot.ID, lot.UnitCost)
		if err := s.movements.Record(ctx, mv); err != nil {
			return err
		}

		if err := s.materials.UpdateStock(ctx, m.ID, mv.QtyAfter); err != nil {
			return fmt.Errorf("update material stock: %w", err)
		}

		return s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateMaterial,
			AggregateID:   m.ID,
			Type:          events.LotCreated,
			Payload:       lot,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot created",
		"lot_id", lot.ID,
		"material_id", lot.MaterialID,
		"quantity", lot.QuantityInitial.String(),
		"unit_cost", lot.UnitCost.String())

	return lot, nil
}

// ConsumeRequest describes a FIFO consumption.
type ConsumeRequest struct {
	MaterialID id.ID
	Quantity   types.Quantity

	// MovementType defaults to production
	MovementType entity.MovementType
	Reason       string
	Reference    string

	// AllowPartial commits whatever the lots cover when they fall short.
	// The InsufficientStock error is still returned alongside the result.
	AllowPartial bool
}

func (r *ConsumeRequest) normalize() error {
	if id.IsNil(r.MaterialID) {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("consumption quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", r.Quantity.String())
	}
	if r.MovementType == "" {
		r.MovementType = entity.MovementProduction
	}
	if r.MovementType != entity.MovementProduction && r.MovementType != entity.MovementExit &&
		r.MovementType != entity.MovementAdjustment {
		return apperror.NewValidation("consumption must be a decreasing movement type").
			WithDetail("value", string(r.MovementType))
	}
	if strings.TrimSpace(r.Reason) == "" {
		r.Reason = "consumo"
	}
	return nil
}

// ConsumeFIFO draws the requested quantity from the material's oldest lots.
//
// When lots fall short it returns Shortfall and an InsufficientStock error.
// Without AllowPartial nothing is written and Draws is empty; with it the
// covered part is committed and reported.
func (s *Service) ConsumeFIFO(ctx context.Context, req ConsumeRequest) (Consumption, error) {
	if err := req.normalize(); err != nil {
		return Consumption{}, err
	}

	ctx, span := tracer.Start(ctx, "lots.ConsumeFIFO",
		trace.WithAttributes(
			attribute.String("material.id", req.MaterialID.String()),
			attribute.String("quantity", req.Quantity.String()),
		))
	defer span.End()

	var c Consumption
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.materials.GetForUpdate(ctx, req.MaterialID)
		if err != nil {
			return err
		}

		active, err := s.repo.ListActive(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("list active lots: %w", err)
		}

		c = selectFIFO(m.ID, active, req.Quantity)
		if !c.Satisfied() && !req.AllowPartial {
			c = Consumption{
				MaterialID: m.ID,
				Requested:  c.Requested,
				Shortfall:  c.Shortfall,
				TotalCost:  types.Zero(),
			}
			return apperror.NewInsufficientStock(m.ID.String(), req.Quantity, req.Quantity-c.Shortfall)
		}
		if len(c.Draws) == 0 {
			return nil
		}

		if err := s.repo.ApplyUpdates(ctx, applyDraws(active, c)); err != nil {
			return fmt.Errorf("apply lot draws: %w", err)
		}

		stock := m.StockQty
		mvs := make([]entity.Movement, 0, len(c.Draws))
		for _, d := range c.Draws {
			mv := entity.NewMovement(entity.ItemMaterial, m.ID, req.MovementType,
				stock, d.Quantity.Neg(), req.Reason, req.Reference).
				WithLot(d.LotID, d.UnitCost)
			mvs = append(mvs, mv)
			stock = mv.QtyAfter
		}
		if err := s.movements.Record(ctx, mvs...); err != nil {
			return err
		}
		c.Movements = mvs

		if err := s.materials.UpdateStock(ctx, m.ID, stock); err != nil {
			return fmt.Errorf("update material stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return c, err
	}

	if !c.Satisfied() {
		logger.Warn(ctx, "partial FIFO consumption",
			"material_id", req.MaterialID,
			"requested", req.Quantity.String(),
			"shortfall", c.Shortfall.String(),
			"reference", req.Reference)
		return c, apperror.NewInsufficientStock(req.MaterialID.String(), req.Quantity, c.Consumed())
	}

	logger.Debug(ctx, "FIFO consumption",
		"material_id", req.MaterialID,
		"quantity", req.Quantity.String(),
		"lots", len(c.Draws),
		"total_cost", c.TotalCost.String())

	return c, nil
}

// PeekFIFO computes the attribution ConsumeFIFO would make, without writing.
// A shortage is reported through Shortfall, never as an error.
func (s *Service) PeekFIFO(ctx context.Context, materialID id.ID, qty types.Quantity) (Consumption, error) {
	if !qty.IsPositive() {
		return Consumption{}, apperror.NewValidation("quantity must be positive").
			WithDetail("value", qty.String())
	}
	if _, err := s.materials.GetByID(ctx, materialID); err != nil {
		return Consumption{}, err
	}

	active, err := s.repo.ListActive(ctx, materialID)
	if err != nil {
		return Consumption{}, fmt.Errorf("list active lots: %w", err)
	}
	return selectFIFO(materialID, active, qty), nil
}

// ListLots returns a material's lots oldest first.
func (s *Service) ListLots(ctx context.Context, materialID id.ID, includeExhausted bool) ([]Lot, error) {
	if _, err := s.materials.GetByID(ctx, materialID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, materialID, includeExhausted)
}

// Balance returns the quantity held in a material's active lots.
func (s *Service) Balance(ctx context.Context, materialID id.ID) (types.Quantity, error) {
	if _, err := s.materials.GetByID(ctx, materialID); err != nil {
		return 0, err
	}
	return s.repo.SumActive(ctx, materialID)
}

// OldestActive returns the lot the next consumption will draw from, or nil.
func (s *Service) OldestActive(ctx context.Context, materialID id.ID) (*Lot, error) {
	return s.repo.OldestActive(ctx, materialID)
}

// VerifyConservation checks stock_qty against the sum of active lots.
func (s *Service) VerifyConservation(ctx context.Context, materialID id.ID) (ConservationReport, error) {
	m, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		return ConservationReport{}, err
	}
	total, err := s.repo.SumActive(ctx, materialID)
	if err != nil {
		return ConservationReport{}, fmt.Errorf("sum active lots: %w", err)
	}

	r := ConservationReport{
		MaterialID: materialID,
		StockQty:   m.StockQty,
		LotsTotal:  total,
		Balanced:   m.StockQty == total,
	}
	if !r.Balanced {
		logger.Error(ctx, "material stock diverges from its lots",
			"material_id", materialID,
			"stock_qty", m.StockQty.String(),
			"lots_total", total.String())
	}
	return r, nil
}
