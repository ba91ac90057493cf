package sales_order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/lock"
	"packcore/internal/core/numerator"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/events"
	"packcore/internal/domain/provisioning"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/domain/replenishment"
	"packcore/pkg/logger"
)

var tracer = otel.Tracer("packcore/sales_order")

// ProductStore reads and locks products and writes resale stock.
type ProductStore interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
	GetForUpdate(ctx context.Context, id id.ID) (*product.Product, error)
	UpdateStock(ctx context.Context, id id.ID, qty types.Quantity) error
}

// Provisioner expands orders into demand and checks it against stock.
type Provisioner interface {
	Demand(ctx context.Context, lines []provisioning.Line) (provisioning.Demand, error)
	Evaluate(ctx context.Context, d provisioning.Demand) (provisioning.Result, error)
}

// Consumer draws material from the lot ledger.
type Consumer interface {
	ConsumeFIFO(ctx context.Context, req lots.ConsumeRequest) (lots.Consumption, error)
}

// MovementStore records stock movements.
type MovementStore interface {
	Record(ctx context.Context, movements ...entity.Movement) error
}

// ProductionPlanner creates production orders for order items.
type ProductionPlanner interface {
	CreateForOrderItem(ctx context.Context, req production_order.CreateRequest) (*production_order.ProductionOrder, bool, error)
}

// StockWatcher flags materials that fell under their reorder point.
type StockWatcher interface {
	Check(ctx context.Context, materialIDs ...id.ID) ([]replenishment.LowStockAlert, error)
}

// ServiceConfig wires the sales order service.
type ServiceConfig struct {
	Repo        Repository
	Products    ProductStore
	Provisioner Provisioner
	Ledger      Consumer
	Movements   MovementStore
	Production  ProductionPlanner
	StockWatch  StockWatcher
	Numerator   numerator.Generator
	TxManager   tx.SavepointManager
	Locker      lock.Locker
	Events      events.Publisher
	Audit       audit.Recorder
	Policy      ApprovalPolicy
}

// Service manages sales orders and their approval.
type Service struct {
	repo        Repository
	products    ProductStore
	provisioner Provisioner
	ledger      Consumer
	movements   MovementStore
	production  ProductionPlanner
	stockWatch  StockWatcher
	numerator   numerator.Generator
	txManager   tx.SavepointManager
	locker      lock.Locker
	events      events.Publisher
	audit       audit.Recorder
	policy      ApprovalPolicy
	hooks       *domain.HookRegistry[*Order]
	now         func() time.Time
}

// NewService creates a new sales order service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Events == nil {
		cfg.Events = events.Discard{}
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Discard{}
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocalLocker()
	}
	if cfg.Policy.LeaseTTL <= 0 {
		cfg.Policy.LeaseTTL = DefaultApprovalPolicy().LeaseTTL
	}
	if cfg.Policy.ResaleShortage == "" {
		cfg.Policy.ResaleShortage = ResaleHard
	}

	svc := &Service{
		repo:        cfg.Repo,
		products:    cfg.Products,
		provisioner: cfg.Provisioner,
		ledger:      cfg.Ledger,
		movements:   cfg.Movements,
		production:  cfg.Production,
		stockWatch:  cfg.StockWatch,
		numerator:   cfg.Numerator,
		txManager:   cfg.TxManager,
		locker:      cfg.Locker,
		events:      cfg.Events,
		audit:       cfg.Audit,
		policy:      cfg.Policy,
		hooks:       domain.NewHookRegistry[*Order](),
		now:         func() time.Time { return time.Now().UTC() },
	}
	svc.hooks.OnBeforeCreate(func(ctx context.Context, o *Order) error {
		audit.EnrichCreatedBy(ctx, &o.CreatedBy)
		return nil
	})
	return svc
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// Create numbers and stores a new order.
func (s *Service) Create(ctx context.Context, order *Order) error {
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].LineNo = i + 1
		if id.IsNil(order.Items[i].ID) {
			order.Items[i].ID = id.New()
		}
	}
	if err := order.Validate(ctx); err != nil {
		return err
	}
	if !order.Status.IsPending() {
		return apperror.NewValidation("new orders must be pending").
			WithDetail("status", string(order.Status))
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, order); err != nil {
			return err
		}
		for _, item := range order.Items {
			if _, err := s.products.GetByID(ctx, item.ProductID); err != nil {
				return err
			}
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: NumeratorStrategy}, order.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		order.Number = number

		if err := s.repo.Create(ctx, order); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "sales_order", order.ID, audit.ActionCreate, map[string]any{
			"number": order.Number,
			"tipo":   order.Tipo,
			"items":  len(order.Items),
		})
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, order); err != nil {
		logger.Warn(ctx, "after create hook failed", "number", order.Number, "error", err)
	}
	logger.Info(ctx, "sales order created", "id", order.ID, "number", order.Number, "tipo", order.Tipo)
	return nil
}

// GetByID retrieves an order with its items.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// Provision checks whether an order could be approved right now.
func (s *Service) Provision(ctx context.Context, orderID id.ID) (provisioning.Result, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return provisioning.Result{}, err
	}
	return s.ProvisionOrder(ctx, order)
}

// ProvisionOrder checks an order that may not be stored yet. It never writes.
func (s *Service) ProvisionOrder(ctx context.Context, order *Order) (provisioning.Result, error) {
	for _, item := range order.Items {
		if err := item.Quantity.Validate(); err != nil {
			return provisioning.Result{}, err
		}
	}
	d, err := s.provisioner.Demand(ctx, orderLines(order))
	if err != nil {
		return provisioning.Result{}, err
	}
	return s.provisioner.Evaluate(ctx, d)
}

func orderLines(order *Order) []provisioning.Line {
	lines := make([]provisioning.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, provisioning.Line{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity.Total(),
		})
	}
	return lines
}

// ApprovalResult is the outcome of an approval.
type ApprovalResult struct {
	Order            *Order                              `json:"order"`
	Movements        []entity.Movement                   `json:"movements"`
	ProductionOrders []*production_order.ProductionOrder `json:"productionOrders"`
	Warnings         []string                            `json:"warnings,omitempty"`
	LowStock         []replenishment.LowStockAlert       `json:"lowStock,omitempty"`

	// AlreadyApproved is set when the call found the order approved and did nothing
	AlreadyApproved bool `json:"alreadyApproved"`
}

func approvalLockKey(orderID id.ID) string {
	return "sales_order:approve:" + orderID.String()
}

// Approve moves a pending order to aprovado and performs its stock side
// effects exactly once: resale stock is deducted, material demand is drawn
// from lots FIFO and a production order is created per manufactured item.
//
// Approving an approved order returns AlreadyApproved with no effects.
// A concurrent approval of the same order fails with a concurrency conflict.
func (s *Service) Approve(ctx context.Context, orderID id.ID) (*ApprovalResult, error) {
	ctx, span := tracer.Start(ctx, "sales_order.Approve",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	lease, err := s.locker.Obtain(ctx, approvalLockKey(orderID), s.policy.LeaseTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, apperror.NewConcurrencyConflict("sales order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain approval lease: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release approval lease", "order_id", orderID, "error", err)
		}
	}()

	var (
		res     *ApprovalResult
		touched []id.ID
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res = &ApprovalResult{
			Movements:        make([]entity.Movement, 0),
			ProductionOrders: make([]*production_order.ProductionOrder, 0),
		}

		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		res.Order = order
		if order.Status.IsApproved() {
			res.AlreadyApproved = true
			return nil
		}
		if !order.Status.IsPending() {
			return apperror.NewInvalidTransition("sales order", string(order.Status), string(StatusApproved))
		}
		if err := order.Validate(ctx); err != nil {
			return err
		}

		demand, err := s.provisioner.Demand(ctx, orderLines(order))
		if err != nil {
			return err
		}
		res.Warnings = append(res.Warnings, demand.Warnings...)
		approvedAt := s.now()

		if err := s.deductResale(ctx, order, demand, res); err != nil {
			return err
		}

		draws := make(map[id.ID][]lots.Draw, len(demand.Materials))
		for _, mid := range demand.MaterialIDs() {
			qty := demand.Materials[mid]
			if qty.IsZero() {
				continue
			}
			c, err := s.ledger.ConsumeFIFO(ctx, lots.ConsumeRequest{
				MaterialID:   mid,
				Quantity:     qty,
				MovementType: entity.MovementProduction,
				Reason:       "producao",
				Reference:    order.Number,
			})
			if err != nil {
				return err
			}
			draws[mid] = c.Draws
			touched = append(touched, mid)
			res.Movements = append(res.Movements, c.Movements...)
		}

		allocations := splitAllocations(demand.Items, draws)
		for _, item := range demand.Items {
			if item.Product.IsResale() {
				continue
			}
			po, _, err := s.production.CreateForOrderItem(ctx, production_order.CreateRequest{
				OrderID:       order.ID,
				OrderItemID:   item.ItemID,
				ProductID:     item.Product.ID,
				Quantity:      item.Quantity,
				ScheduledDate: s.scheduledDate(order, item.Product, approvedAt),
				Allocations:   allocations[item.ItemID],
			})
			if err != nil {
				return err
			}
			res.ProductionOrders = append(res.ProductionOrders, po)
		}

		from, fromTipo := order.Status, order.Tipo
		if err := order.markApproved(approvedAt); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, order); err != nil {
			return err
		}

		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateSalesOrder,
			AggregateID:   order.ID,
			Type:          events.SalesOrderApproved,
			Payload: map[string]any{
				"number":            order.Number,
				"from":              from,
				"tipo":              order.Tipo,
				"production_orders": len(res.ProductionOrders),
			},
		}); err != nil {
			return err
		}

		return s.audit.LogChange(ctx, "sales_order", order.ID, audit.ActionApprove, map[string]any{
			"status": map[string]any{"from": from, "to": order.Status},
			"tipo":   map[string]any{"from": fromTipo, "to": order.Tipo},
		})
	})
	if err != nil {
		return nil, err
	}

	if res.AlreadyApproved {
		logger.Info(ctx, "sales order already approved", "number", res.Order.Number, "status", res.Order.Status)
		return res, nil
	}

	if s.stockWatch != nil && len(touched) > 0 {
		alerts, err := s.stockWatch.Check(ctx, touched...)
		if err != nil {
			logger.Warn(ctx, "low stock check failed", "number", res.Order.Number, "error", err)
		} else {
			res.LowStock = alerts
		}
	}

	for _, w := range res.Warnings {
		logger.Warn(ctx, "approval warning", "number", res.Order.Number, "warning", w)
	}
	logger.Info(ctx, "sales order approved",
		"number", res.Order.Number,
		"movements", len(res.Movements),
		"production_orders", len(res.ProductionOrders))
	return res, nil
}

// deductResale takes resale items out of product stock, products in
// ascending id order. Under the soft policy each item runs in its own
// savepoint and a failure becomes a warning.
func (s *Service) deductResale(ctx context.Context, order *Order, demand provisioning.Demand, res *ApprovalResult) error {
	items := make([]provisioning.ItemDemand, 0)
	for _, item := range demand.Items {
		if item.Product.IsResale() {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return compareIDs(items[i].Product.ID, items[j].Product.ID) < 0
	})

	for _, item := range items {
		var mv entity.Movement
		deduct := func(ctx context.Context) error {
			p, err := s.products.GetForUpdate(ctx, item.Product.ID)
			if err != nil {
				return err
			}
			if p.StockQty < item.Quantity {
				return apperror.NewInsufficientStock(p.ID.String(), item.Quantity, p.StockQty)
			}
			mv = entity.NewMovement(entity.ItemProduct, p.ID, entity.MovementExit,
				p.StockQty, item.Quantity.Neg(), "venda", order.Number)
			if err := s.movements.Record(ctx, mv); err != nil {
				return err
			}
			return s.products.UpdateStock(ctx, p.ID, mv.QtyAfter)
		}

		if s.policy.ResaleShortage != ResaleSoft {
			if err := deduct(ctx); err != nil {
				return err
			}
			res.Movements = append(res.Movements, mv)
			continue
		}

		if err := s.txManager.RunInSavepoint(ctx, deduct); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("resale item %s not deducted: %s", item.Product.Code, errorMessage(err)))
			continue
		}
		res.Movements = append(res.Movements, mv)
	}
	return nil
}

// scheduledDate is the approval day plus the order's lead time, else the
// product's, else the configured default.
func (s *Service) scheduledDate(order *Order, p *product.Product, approvedAt time.Time) time.Time {
	days := order.LeadTimeDays
	if days <= 0 {
		days = p.LeadTimeDays
	}
	if days <= 0 {
		days = s.policy.DefaultLeadTimeDays
	}
	y, m, d := approvedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// Transition changes the order status along the allow-list. Moving to
// aprovado runs Approve. Cancelling an approved order does not return
// consumed stock.
func (s *Service) Transition(ctx context.Context, orderID id.ID, to Status, reason string) (*Order, error) {
	if !to.Valid() {
		return nil, apperror.NewValidation("unknown order status").WithDetail("value", string(to))
	}
	if to == StatusApproved {
		res, err := s.Approve(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return res.Order, nil
	}

	var (
		order *Order
		from  Status
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if err := order.TransitionTo(to); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, order); err != nil {
			return err
		}

		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateSalesOrder,
			AggregateID:   order.ID,
			Type:          events.SalesOrderStatusChange,
			Payload:       map[string]any{"number": order.Number, "from": from, "to": to, "reason": reason},
		}); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "sales_order", order.ID, audit.ActionTransition, map[string]any{
			"status": map[string]any{"from": from, "to": to},
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if hookErr := s.hooks.Run(ctx, domain.AfterTransition, order); hookErr != nil {
		logger.Warn(ctx, "after transition hook failed", "number", order.Number, "error", hookErr)
	}
	logger.Info(ctx, "sales order status changed", "number", order.Number, "from", from, "to", to)
	return order, nil
}

func compareIDs(a, b id.ID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func errorMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
