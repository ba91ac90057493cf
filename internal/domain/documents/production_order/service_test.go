package production_order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/numerator"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, *app.Services, *memory.Store, *material.Material) {
	t.Helper()
	ctx := context.Background()
	svc, store, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)

	kraft := material.NewMaterial("KRAFT", "Kraft", "kg")
	require.NoError(t, svc.Materials.Create(ctx, kraft))
	for _, l := range []struct{ qty, cost string }{{"50", "4.00"}, {"30", "4.50"}} {
		_, err := svc.Lots.CreateLot(ctx, lots.CreateLotRequest{
			MaterialID: kraft.ID, Quantity: types.MustQuantity(l.qty), UnitCost: types.MustMoney(l.cost),
		})
		require.NoError(t, err)
	}
	return ctx, svc, store, kraft
}

func newRequest() production_order.CreateRequest {
	return production_order.CreateRequest{
		OrderID:       id.New(),
		OrderItemID:   id.New(),
		ProductID:     id.New(),
		Quantity:      types.MustQuantity("1000"),
		ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateForOrderItem_OncePerItem(t *testing.T) {
	ctx, svc, store, _ := setup(t)
	req := newRequest()

	first, created, err := svc.ProductionOrders.CreateForOrderItem(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, production_order.StatusWaiting, first.Status)
	assert.Contains(t, first.Number, production_order.NumberPrefix)

	second, created, err := svc.ProductionOrders.CreateForOrderItem(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	list, err := svc.ProductionOrders.ListByOrder(ctx, req.OrderID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, store.Outbox().Messages(events.ProductionOrderCreated), 1)
}

func TestCreateForOrderItem_RejectsEmptyQuantity(t *testing.T) {
	ctx, svc, _, _ := setup(t)
	req := newRequest()
	req.Quantity = 0

	_, _, err := svc.ProductionOrders.CreateForOrderItem(ctx, req)
	assert.True(t, apperror.IsValidation(err))
}

func TestTransition(t *testing.T) {
	ctx, svc, store, _ := setup(t)
	po, _, err := svc.ProductionOrders.CreateForOrderItem(ctx, newRequest())
	require.NoError(t, err)

	_, err = svc.ProductionOrders.Transition(ctx, po.ID, production_order.StatusDone)
	assert.True(t, apperror.IsInvalidTransition(err))

	po, err = svc.ProductionOrders.Transition(ctx, po.ID, production_order.StatusInProduction)
	require.NoError(t, err)
	po, err = svc.ProductionOrders.Transition(ctx, po.ID, production_order.StatusDone)
	require.NoError(t, err)
	assert.True(t, po.Status.IsTerminal())

	_, err = svc.ProductionOrders.Transition(ctx, po.ID, production_order.StatusCancelled)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Len(t, store.Outbox().Messages(events.ProductionOrderStatus), 2)
}

func TestDrawdown(t *testing.T) {
	ctx, svc, _, kraft := setup(t)
	po, _, err := svc.ProductionOrders.CreateForOrderItem(ctx, newRequest())
	require.NoError(t, err)

	res, err := svc.ProductionOrders.Drawdown(ctx, po.ID, kraft.ID, types.MustQuantity("60"))
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Order.Allocations, 2)
	assert.Equal(t, types.MustQuantity("50"), res.Order.Allocations[0].Quantity)
	assert.Equal(t, types.MustQuantity("10"), res.Order.Allocations[1].Quantity)
	assert.Equal(t, "245", res.Order.MaterialCost().String())

	// 20 kg left: the draw is partial and reported, not rejected
	res, err = svc.ProductionOrders.Drawdown(ctx, po.ID, kraft.ID, types.MustQuantity("30"))
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "10.0000")
	assert.Equal(t, types.MustQuantity("20"), res.Consumption.Consumed())
	assert.Len(t, res.Order.Allocations, 3)

	balance, err := svc.Lots.Balance(ctx, kraft.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	stored, err := svc.ProductionOrders.GetByID(ctx, po.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Allocations, 3)
}

func TestDrawdown_ClosedOrder(t *testing.T) {
	ctx, svc, _, kraft := setup(t)
	po, _, err := svc.ProductionOrders.CreateForOrderItem(ctx, newRequest())
	require.NoError(t, err)
	_, err = svc.ProductionOrders.Transition(ctx, po.ID, production_order.StatusCancelled)
	require.NoError(t, err)

	_, err = svc.ProductionOrders.Drawdown(ctx, po.ID, kraft.ID, types.MustQuantity("1"))
	assert.True(t, apperror.IsInvalidTransition(err))

	balance, err := svc.Lots.Balance(ctx, kraft.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("80"), balance)
}

func TestCreateForOrderItem_StrictNumbering(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	st := app.MemoryStorage(store)

	var requested *numerator.Options
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, opts *numerator.Options, _ time.Time) (string, error) {
			requested = opts
			assert.Equal(t, production_order.NumberPrefix, cfg.Prefix)
			return "", errors.New("sequence locked")
		},
	}
	st.Numerator = gen
	svc, err := app.NewServices(st, app.DefaultOptions())
	require.NoError(t, err)

	req := newRequest()
	_, created, err := svc.ProductionOrders.CreateForOrderItem(ctx, req)
	require.Error(t, err)
	assert.False(t, created)
	require.NotNil(t, requested)
	assert.Equal(t, numerator.StrategyStrict, requested.Strategy)

	list, err := svc.ProductionOrders.ListByOrder(ctx, req.OrderID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, store.Outbox().Messages(events.ProductionOrderCreated))

	gen.GetNextNumberFunc = nil
	po, created, err := svc.ProductionOrders.CreateForOrderItem(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "MOCK-2026-00001", po.Number)
}
