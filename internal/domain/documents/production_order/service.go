package production_order

import (
	"context"
	"fmt"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/numerator"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
	"packcore/pkg/logger"
)

// Consumer draws material from the lot ledger.
type Consumer interface {
	ConsumeFIFO(ctx context.Context, req lots.ConsumeRequest) (lots.Consumption, error)
}

// Service manages production orders.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	ledger    Consumer
	txManager tx.Manager
	events    events.Publisher
	hooks     *domain.HookRegistry[*ProductionOrder]
}

// NewService creates a new production order service.
func NewService(
	repo Repository,
	gen numerator.Generator,
	ledger Consumer,
	txManager tx.Manager,
	publisher events.Publisher,
) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	svc := &Service{
		repo:      repo,
		numerator: gen,
		ledger:    ledger,
		txManager: txManager,
		events:    publisher,
		hooks:     domain.NewHookRegistry[*ProductionOrder](),
	}
	svc.hooks.OnBeforeCreate(func(ctx context.Context, po *ProductionOrder) error {
		audit.EnrichCreatedBy(ctx, &po.CreatedBy)
		return nil
	})
	return svc
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*ProductionOrder] {
	return s.hooks
}

// CreateRequest describes the production order of one sales order item.
type CreateRequest struct {
	OrderID       id.ID
	OrderItemID   id.ID
	ProductID     id.ID
	Quantity      types.Quantity
	ScheduledDate time.Time
	Allocations   []Allocation
}

// CreateForOrderItem creates the production order of an order item unless one
// exists. It returns the order and whether it was created by this call.
// Callers hold the sales order lock; the unique (order_id, order_item_id)
// constraint rejects anything that slips past.
func (s *Service) CreateForOrderItem(ctx context.Context, req CreateRequest) (*ProductionOrder, bool, error) {
	if !req.Quantity.IsPositive() {
		return nil, false, apperror.NewValidation("quantity to produce must be positive").
			WithDetail("order_item_id", req.OrderItemID.String())
	}

	var (
		po      *ProductionOrder
		created bool
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByOrderItem(ctx, req.OrderID, req.OrderItemID)
		if err == nil {
			po = existing
			return nil
		}
		if !apperror.IsNotFound(err) {
			return err
		}

		po = &ProductionOrder{
			Document:      entity.NewDocument(),
			OrderID:       req.OrderID,
			OrderItemID:   req.OrderItemID,
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			Status:        StatusWaiting,
			ScheduledDate: req.ScheduledDate,
			Allocations:   req.Allocations,
		}
		if err := s.hooks.Run(ctx, domain.BeforeCreate, po); err != nil {
			return err
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: NumeratorStrategy}, po.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		po.Number = number

		if err := s.repo.Create(ctx, po); err != nil {
			return err
		}
		created = true

		return s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateProductionOrder,
			AggregateID:   po.ID,
			Type:          events.ProductionOrderCreated,
			Payload:       po,
		})
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		logger.Info(ctx, "production order created",
			"id", po.ID,
			"number", po.Number,
			"order_id", po.OrderID,
			"order_item_id", po.OrderItemID,
			"quantity", po.Quantity.String())
	}
	return po, created, nil
}

// GetByID retrieves a production order.
func (s *Service) GetByID(ctx context.Context, poID id.ID) (*ProductionOrder, error) {
	return s.repo.GetByID(ctx, poID)
}

// ListByOrder returns the production orders of a sales order.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID) ([]*ProductionOrder, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// Transition changes the status of a production order.
func (s *Service) Transition(ctx context.Context, poID id.ID, to Status) (*ProductionOrder, error) {
	var po *ProductionOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		po, err = s.repo.GetForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		from := po.Status
		if err := po.Transition(to); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, po); err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateProductionOrder,
			AggregateID:   po.ID,
			Type:          events.ProductionOrderStatus,
			Payload:       map[string]any{"from": from, "to": to, "number": po.Number},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "production order status changed", "number", po.Number, "status", po.Status)
	return po, nil
}

// DrawdownResult reports an extra material draw for a production order.
type DrawdownResult struct {
	Order       *ProductionOrder `json:"order"`
	Consumption lots.Consumption `json:"consumption"`
	Warning     string           `json:"warning,omitempty"`
}

// Drawdown consumes additional material for a running production order.
// It is best-effort: when lots fall short, whatever is available is consumed
// and the shortfall is returned as a warning instead of an error.
func (s *Service) Drawdown(ctx context.Context, poID, materialID id.ID, qty types.Quantity) (*DrawdownResult, error) {
	res := &DrawdownResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		po, err := s.repo.GetForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status.IsTerminal() {
			return apperror.NewBusinessRule(apperror.CodeInvalidTransition,
				"material cannot be drawn for a closed production order").
				WithDetail("status", string(po.Status))
		}

		c, err := s.ledger.ConsumeFIFO(ctx, lots.ConsumeRequest{
			MaterialID:   materialID,
			Quantity:     qty,
			Reason:       "producao",
			Reference:    po.Number,
			AllowPartial: true,
		})
		switch {
		case apperror.IsInsufficientStock(err):
			res.Warning = fmt.Sprintf("material %s short by %s", materialID, c.Shortfall)
		case err != nil:
			return err
		}
		res.Consumption = c

		for _, d := range c.Draws {
			po.Allocations = append(po.Allocations, Allocation{
				MaterialID: materialID,
				LotID:      d.LotID,
				Quantity:   d.Quantity,
				UnitCost:   d.UnitCost,
			})
		}
		if len(c.Draws) > 0 {
			po.Touch()
			if err := s.repo.Update(ctx, po); err != nil {
				return err
			}
		}
		res.Order = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Warning != "" {
		logger.Warn(ctx, "production drawdown short", "number", res.Order.Number, "warning", res.Warning)
	}
	return res, nil
}
