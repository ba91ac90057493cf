package lots_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/domain/registers/movements"
	"packcore/internal/infrastructure/storage/memory"
)

type env struct {
	ctx   context.Context
	svc   *app.Services
	store *memory.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	svc, store, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)
	return &env{ctx: context.Background(), svc: svc, store: store}
}

func (e *env) material(t *testing.T, code string) *material.Material {
	t.Helper()
	m := material.NewMaterial(code, code, "kg")
	require.NoError(t, e.svc.Materials.Create(e.ctx, m))
	return m
}

func (e *env) receive(t *testing.T, materialID id.ID, qty, cost string) *lots.Lot {
	t.Helper()
	l, err := e.svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
		MaterialID: materialID,
		Quantity:   types.MustQuantity(qty),
		UnitCost:   types.MustMoney(cost),
		SourceRef:  "NF-1",
	})
	require.NoError(t, err)
	return l
}

func (e *env) assertConserved(t *testing.T, materialID id.ID) {
	t.Helper()
	r, err := e.svc.Lots.VerifyConservation(e.ctx, materialID)
	require.NoError(t, err)
	assert.True(t, r.Balanced, "stock %s vs lots %s", r.StockQty, r.LotsTotal)
}

func TestCreateLot(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "KRAFT200")

	l := e.receive(t, m.ID, "50", "4.00")

	assert.Equal(t, lots.StatusActive, l.Status)
	assert.Equal(t, l.QuantityInitial, l.QuantityRemaining)

	got, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("50"), got.StockQty)
	e.assertConserved(t, m.ID)

	hist, err := e.svc.Movements.History(e.ctx, movements.Filter{ItemID: &m.ID})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, entity.MovementEntry, hist[0].Type)
	assert.Equal(t, types.Quantity(0), hist[0].QtyBefore)
	assert.Equal(t, types.MustQuantity("50"), hist[0].QtyAfter)
	require.NotNil(t, hist[0].LotID)
	assert.Equal(t, l.ID, *hist[0].LotID)

	assert.Len(t, e.store.Outbox().Messages(events.LotCreated), 1)
}

func TestCreateLot_Validation(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "FILM")

	cases := map[string]lots.CreateLotRequest{
		"zero quantity": {MaterialID: m.ID, Quantity: 0, UnitCost: types.MustMoney("1")},
		"negative cost": {MaterialID: m.ID, Quantity: types.MustQuantity("1"), UnitCost: types.MustMoney("-1")},
		"zero cost":     {MaterialID: m.ID, Quantity: types.MustQuantity("1"), UnitCost: types.Zero()},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Lots.CreateLot(e.ctx, req)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	_, err := e.svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
		MaterialID: id.New(), Quantity: types.MustQuantity("1"), UnitCost: types.MustMoney("1"),
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestConsumeFIFO_KraftScenario(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "KRAFT200")
	lot1 := e.receive(t, m.ID, "50", "4.00")
	lot2 := e.receive(t, m.ID, "30", "4.50")

	c, err := e.svc.Lots.ConsumeFIFO(e.ctx, lots.ConsumeRequest{
		MaterialID: m.ID,
		Quantity:   types.MustQuantity("60"),
		Reference:  "PV-2026-00001",
	})
	require.NoError(t, err)

	require.Len(t, c.Draws, 2)
	assert.Equal(t, lot1.ID, c.Draws[0].LotID)
	assert.Equal(t, types.MustQuantity("50"), c.Draws[0].Quantity)
	assert.Equal(t, "4", c.Draws[0].UnitCost.String())
	assert.Equal(t, lot2.ID, c.Draws[1].LotID)
	assert.Equal(t, types.MustQuantity("10"), c.Draws[1].Quantity)
	assert.Equal(t, "4.5", c.Draws[1].UnitCost.String())

	// one journal row per draw, chained from the stock before consumption
	require.Len(t, c.Movements, 2)
	for i, mv := range c.Movements {
		require.NotNil(t, mv.LotID)
		assert.Equal(t, c.Draws[i].LotID, *mv.LotID)
		assert.Equal(t, c.Draws[i].Quantity.Neg(), mv.QtyDelta)
		assert.Equal(t, "PV-2026-00001", mv.Reference)
	}
	assert.Equal(t, types.MustQuantity("80"), c.Movements[0].QtyBefore)
	assert.Equal(t, c.Movements[0].QtyAfter, c.Movements[1].QtyBefore)
	assert.Equal(t, types.MustQuantity("20"), c.Movements[1].QtyAfter)

	all, err := e.svc.Lots.ListLots(e.ctx, m.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, lots.StatusExhausted, all[0].Status)
	assert.True(t, all[0].QuantityRemaining.IsZero())
	assert.Equal(t, lots.StatusActive, all[1].Status)
	assert.Equal(t, types.MustQuantity("20"), all[1].QuantityRemaining)

	got, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("20"), got.StockQty)
	e.assertConserved(t, m.ID)

	kind := entity.MovementProduction
	hist, err := e.svc.Movements.History(e.ctx, movements.Filter{ItemID: &m.ID, Type: &kind})
	require.NoError(t, err)
	require.Len(t, hist, 2)
	for _, mv := range hist {
		assert.Equal(t, mv.QtyBefore+mv.QtyDelta, mv.QtyAfter)
		assert.Equal(t, "PV-2026-00001", mv.Reference)
	}
}

func TestConsumeFIFO_ShortageWritesNothing(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "GLUE")
	e.receive(t, m.ID, "50", "2")

	c, err := e.svc.Lots.ConsumeFIFO(e.ctx, lots.ConsumeRequest{
		MaterialID: m.ID,
		Quantity:   types.MustQuantity("70"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, types.MustQuantity("20"), c.Shortfall)
	assert.Empty(t, c.Draws)
	assert.Empty(t, c.Movements)
	assert.True(t, c.TotalCost.IsZero())

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "20.0000", appErr.Details["missing"])

	got, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("50"), got.StockQty)
	e.assertConserved(t, m.ID)
}

func TestConsumeFIFO_AllowPartial(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "INK")
	e.receive(t, m.ID, "5", "10")

	c, err := e.svc.Lots.ConsumeFIFO(e.ctx, lots.ConsumeRequest{
		MaterialID:   m.ID,
		Quantity:     types.MustQuantity("8"),
		AllowPartial: true,
	})
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, types.MustQuantity("5"), c.Consumed())
	require.Len(t, c.Draws, 1)
	require.Len(t, c.Movements, 1)

	got, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.StockQty.IsZero())
	e.assertConserved(t, m.ID)
}

func TestPeekFIFO_MatchesCommit(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "PAPER")
	e.receive(t, m.ID, "12.5", "3.10")
	e.receive(t, m.ID, "7.25", "3.30")
	e.receive(t, m.ID, "40", "2.95")

	qty := types.MustQuantity("21")
	peek, err := e.svc.Lots.PeekFIFO(e.ctx, m.ID, qty)
	require.NoError(t, err)

	before, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)

	commit, err := e.svc.Lots.ConsumeFIFO(e.ctx, lots.ConsumeRequest{MaterialID: m.ID, Quantity: qty})
	require.NoError(t, err)

	assert.Equal(t, peek.Draws, commit.Draws)
	assert.Equal(t, peek.TotalCost.String(), commit.TotalCost.String())

	after, err := e.svc.Materials.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, before.StockQty-qty, after.StockQty)
	e.assertConserved(t, m.ID)
}

func TestPeekFIFO_ShortageIsData(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "FOIL")
	e.receive(t, m.ID, "1", "1")

	c, err := e.svc.Lots.PeekFIFO(e.ctx, m.ID, types.MustQuantity("3"))
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("2"), c.Shortfall)

	bal, err := e.svc.Lots.Balance(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("1"), bal)
}

func TestOldestActive(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "BOPP")

	none, err := e.svc.Lots.OldestActive(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := e.receive(t, m.ID, "2", "1")
	e.receive(t, m.ID, "2", "1")

	got, err := e.svc.Lots.OldestActive(e.ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}
