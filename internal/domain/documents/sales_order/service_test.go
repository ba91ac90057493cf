package sales_order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/types"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/infrastructure/storage/memory"
)

type env struct {
	ctx   context.Context
	svc   *app.Services
	store *memory.Store

	kraft  *material.Material
	bag    *product.Product
	cups   *product.Product
	orders *sales_order.Service
}

// newEnv seeds 50 kg + 30 kg of kraft, a bag using 30 g per unit
// (lead time 3 days) and 10 resale cups.
func newEnv(t *testing.T, policy sales_order.ResalePolicy) *env {
	t.Helper()
	opts := app.DefaultOptions()
	opts.Approval.ResaleShortage = policy
	svc, store, err := app.NewInMemory(opts)
	require.NoError(t, err)

	e := &env{ctx: context.Background(), svc: svc, store: store, orders: svc.SalesOrders}

	e.kraft = material.NewMaterial("KRAFT200", "Kraft 200g", "kg")
	e.kraft.ReorderPoint = types.MustQuantity("30")
	require.NoError(t, svc.Materials.Create(e.ctx, e.kraft))
	for _, l := range []struct{ qty, cost string }{{"50", "4.00"}, {"30", "4.50"}} {
		_, err := svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
			MaterialID: e.kraft.ID, Quantity: types.MustQuantity(l.qty), UnitCost: types.MustMoney(l.cost),
		})
		require.NoError(t, err)
	}

	e.bag = product.NewProduct("BAG", "Kraft bag", "un", product.KindManufactured)
	e.bag.LeadTimeDays = 3
	require.NoError(t, svc.Products.Create(e.ctx, e.bag))
	_, err = svc.Products.AddRecipeLine(e.ctx, e.bag.ID, e.kraft.ID, 1, decimal.RequireFromString("30"))
	require.NoError(t, err)

	e.cups = product.NewProduct("CUP", "Paper cup", "un", product.KindResale)
	e.cups.StockQty = types.MustQuantity("10")
	require.NoError(t, svc.Products.Create(e.ctx, e.cups))

	return e
}

// order creates an order for bags (1000 units = 30 kg) and cups.
func (e *env) order(t *testing.T, tipo sales_order.Tipo, bags, cups string) *sales_order.Order {
	t.Helper()
	o := sales_order.NewOrder("Padaria Central", tipo)
	if bags != "" {
		o.AddItem(e.bag.ID, sales_order.Simple(types.MustQuantity(bags)), types.MustMoney("0.35"))
	}
	if cups != "" {
		o.AddItem(e.cups.ID, sales_order.Simple(types.MustQuantity(cups)), types.MustMoney("0.10"))
	}
	require.NoError(t, e.orders.Create(e.ctx, o))
	return o
}

func (e *env) kraftStock(t *testing.T) types.Quantity {
	t.Helper()
	m, err := e.svc.Materials.GetByID(e.ctx, e.kraft.ID)
	require.NoError(t, err)
	return m.StockQty
}

func (e *env) cupStock(t *testing.T) types.Quantity {
	t.Helper()
	p, err := e.svc.Products.GetByID(e.ctx, e.cups.ID)
	require.NoError(t, err)
	return p.StockQty
}

func (e *env) productionOrders(t *testing.T, o *sales_order.Order) []*production_order.ProductionOrder {
	t.Helper()
	pos, err := e.svc.ProductionOrders.ListByOrder(e.ctx, o.ID)
	require.NoError(t, err)
	return pos
}

func TestCreate_NumbersOrder(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)

	o := e.order(t, sales_order.TipoOrder, "10", "")

	assert.Equal(t, sales_order.StatusPending, o.Status)
	assert.Regexp(t, `^PV-\d{4}-\d{5}$`, o.Number)

	q := e.order(t, sales_order.TipoQuote, "10", "")
	assert.Equal(t, sales_order.StatusQuote, q.Status)
	assert.NotEqual(t, o.Number, q.Number)
}

func TestApprove(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoOrder, "2000", "4")

	res, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)

	assert.False(t, res.AlreadyApproved)
	assert.Equal(t, sales_order.StatusApproved, res.Order.Status)
	assert.Equal(t, sales_order.TipoOrder, res.Order.Tipo)
	require.NotNil(t, res.Order.ApprovedAt)

	// 2000 × 30 g = 60 kg: 50 from the first lot, 10 from the second
	assert.Equal(t, types.MustQuantity("20"), e.kraftStock(t))
	assert.Equal(t, types.MustQuantity("6"), e.cupStock(t))

	require.Len(t, res.ProductionOrders, 1)
	po := res.ProductionOrders[0]
	assert.Equal(t, production_order.StatusWaiting, po.Status)
	assert.Equal(t, types.MustQuantity("2000"), po.Quantity)
	assert.Equal(t, o.Items[0].ID, po.OrderItemID)
	require.Len(t, po.Allocations, 2)
	assert.Equal(t, types.MustQuantity("50"), po.Allocations[0].Quantity)
	assert.Equal(t, types.MustQuantity("10"), po.Allocations[1].Quantity)
	assert.Equal(t, "245", po.MaterialCost().String())

	y, m, d := res.Order.ApprovedAt.Date()
	assert.Equal(t, time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3), po.ScheduledDate)

	var exits, production int
	var consumed types.Quantity
	for _, mv := range res.Movements {
		assert.Equal(t, o.Number, mv.Reference)
		switch mv.Type {
		case entity.MovementExit:
			exits++
			assert.Equal(t, "venda", mv.Reason)
		case entity.MovementProduction:
			production++
			consumed -= mv.QtyDelta
			require.NotNil(t, mv.LotID)
		}
	}
	assert.Equal(t, 1, exits)
	assert.Equal(t, 2, production)
	assert.Equal(t, types.MustQuantity("60"), consumed)

	// 20 kg left is under the 30 kg reorder point
	require.Len(t, res.LowStock, 1)
	assert.Equal(t, e.kraft.ID, res.LowStock[0].MaterialID)

	assert.Len(t, e.store.Outbox().Messages(events.SalesOrderApproved), 1)
	assert.Len(t, e.store.Outbox().Messages(events.ProductionOrderCreated), 1)
	assert.Len(t, e.store.Outbox().Messages(events.MaterialLowStock), 1)

	var approvals int
	for _, entry := range e.store.Audit().Entries(o.ID) {
		if entry.Action == audit.ActionApprove {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)

	r, err := e.svc.Lots.VerifyConservation(e.ctx, e.kraft.ID)
	require.NoError(t, err)
	assert.True(t, r.Balanced)
}

func TestApprove_QuoteBecomesConfirmedOrder(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoQuote, "100", "")

	res, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, sales_order.StatusApproved, res.Order.Status)
	assert.Equal(t, sales_order.TipoConfirmedQuote, res.Order.Tipo)
}

func TestApprove_OrderLeadTimeWins(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := sales_order.NewOrder("Mercado Sul", sales_order.TipoOrder)
	o.LeadTimeDays = 10
	o.AddItem(e.bag.ID, sales_order.Composite(4, types.MustQuantity("25")), types.MustMoney("1"))
	require.NoError(t, e.orders.Create(e.ctx, o))

	res, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)

	require.Len(t, res.ProductionOrders, 1)
	po := res.ProductionOrders[0]
	assert.Equal(t, types.MustQuantity("100"), po.Quantity)
	y, m, d := res.Order.ApprovedAt.Date()
	assert.Equal(t, time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 10), po.ScheduledDate)
}

func TestApprove_Idempotent(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoOrder, "1000", "2")

	first, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadyApproved)

	second, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyApproved)
	assert.Empty(t, second.ProductionOrders)
	assert.Empty(t, second.Movements)

	assert.Len(t, e.productionOrders(t, o), 1)
	assert.Equal(t, types.MustQuantity("50"), e.kraftStock(t))
	assert.Equal(t, types.MustQuantity("8"), e.cupStock(t))
	assert.Len(t, e.store.Outbox().Messages(events.SalesOrderApproved), 1)
}

func TestApprove_Concurrent(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoOrder, "1000", "2")

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		approved   int
		unexpected []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.orders.Approve(e.ctx, o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && !res.AlreadyApproved:
				approved++
			case err == nil, apperror.IsConcurrencyConflict(err):
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, 1, approved)
	assert.Len(t, e.productionOrders(t, o), 1)
	assert.Equal(t, types.MustQuantity("50"), e.kraftStock(t))
	assert.Equal(t, types.MustQuantity("8"), e.cupStock(t))
}

func TestApprove_ResaleShortageHard(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoOrder, "1000", "11")

	_, err := e.orders.Approve(e.ctx, o.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	got, err := e.orders.GetByID(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales_order.StatusPending, got.Status)
	assert.Equal(t, types.MustQuantity("80"), e.kraftStock(t))
	assert.Equal(t, types.MustQuantity("10"), e.cupStock(t))
	assert.Empty(t, e.productionOrders(t, o))
	assert.Empty(t, e.store.Outbox().Messages(events.SalesOrderApproved))
}

func TestApprove_ResaleShortageSoft(t *testing.T) {
	e := newEnv(t, sales_order.ResaleSoft)
	o := e.order(t, sales_order.TipoOrder, "1000", "11")

	res, err := e.orders.Approve(e.ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, sales_order.StatusApproved, res.Order.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "CUP")
	assert.Equal(t, types.MustQuantity("10"), e.cupStock(t))
	assert.Equal(t, types.MustQuantity("50"), e.kraftStock(t))
	assert.Len(t, res.ProductionOrders, 1)
}

func TestApprove_MaterialShortageRollsBack(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	// 3000 × 30 g = 90 kg > 80 kg
	o := e.order(t, sales_order.TipoOrder, "3000", "1")

	prov, err := e.orders.Provision(e.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, prov.FullySatisfiable)

	_, err = e.orders.Approve(e.ctx, o.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, types.MustQuantity("80"), e.kraftStock(t))
	assert.Equal(t, types.MustQuantity("10"), e.cupStock(t))
	assert.Empty(t, e.productionOrders(t, o))
}

func TestTransition(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoOrder, "100", "")

	_, err := e.orders.Transition(e.ctx, o.ID, sales_order.StatusInProduction, "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	got, err := e.orders.GetByID(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales_order.StatusPending, got.Status)

	got, err = e.orders.Transition(e.ctx, o.ID, sales_order.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, sales_order.StatusApproved, got.Status)
	assert.Len(t, e.productionOrders(t, o), 1)

	for _, to := range []sales_order.Status{
		sales_order.StatusInProduction,
		sales_order.StatusFinished,
		sales_order.StatusAwaitingDispatch,
		sales_order.StatusDelivered,
	} {
		got, err = e.orders.Transition(e.ctx, o.ID, to, "")
		require.NoError(t, err, to)
		assert.Equal(t, to, got.Status)
	}

	_, err = e.orders.Transition(e.ctx, o.ID, sales_order.StatusCancelled, "too late")
	assert.True(t, apperror.IsInvalidTransition(err))

	assert.Len(t, e.store.Outbox().Messages(events.SalesOrderStatusChange), 4)
}

func TestTransition_CancelPending(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := e.order(t, sales_order.TipoQuote, "100", "")

	got, err := e.orders.Transition(e.ctx, o.ID, sales_order.StatusRejected, "customer declined")
	require.NoError(t, err)
	assert.Equal(t, sales_order.StatusRejected, got.Status)

	_, err = e.orders.Approve(e.ctx, o.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, types.MustQuantity("80"), e.kraftStock(t))
}

func TestHooks_AfterCommit(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)

	var created []string
	var moved []sales_order.Status
	e.orders.Hooks().OnAfterCreate(func(_ context.Context, o *sales_order.Order) error {
		created = append(created, o.Number)
		return nil
	})
	e.orders.Hooks().OnAfterTransition(func(_ context.Context, o *sales_order.Order) error {
		moved = append(moved, o.Status)
		return assert.AnError
	})

	o := e.order(t, sales_order.TipoOrder, "100", "")
	assert.Equal(t, []string{o.Number}, created)

	// a failing after-hook does not undo the committed transition
	got, err := e.orders.Transition(e.ctx, o.ID, sales_order.StatusRejected, "")
	require.NoError(t, err)
	assert.Equal(t, sales_order.StatusRejected, got.Status)
	assert.Equal(t, []sales_order.Status{sales_order.StatusRejected}, moved)
}

func TestCreate_RejectsOverflowingComposite(t *testing.T) {
	e := newEnv(t, sales_order.ResaleHard)
	o := sales_order.NewOrder("Padaria Central", sales_order.TipoOrder)
	o.AddItem(e.bag.ID, sales_order.Composite(1_000_000_000_000, types.MustQuantity("1000000")), types.MustMoney("0.35"))

	err := e.orders.Create(e.ctx, o)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 1, appErr.Details["line"])
}
