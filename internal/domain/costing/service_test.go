package costing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/events"
	"packcore/internal/domain/registers/lots"
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

func (e *env) material(t *testing.T, code, adminCost string) *material.Material {
	t.Helper()
	m := material.NewMaterial(code, code, "kg")
	m.AdminUnitCost = types.MustMoney(adminCost)
	require.NoError(t, e.svc.Materials.Create(e.ctx, m))
	return m
}

func (e *env) recipe(t *testing.T, code string, materialID id.ID, grams string) *product.RecipeLine {
	t.Helper()
	p := product.NewProduct(code, code, "un", product.KindManufactured)
	require.NoError(t, e.svc.Products.Create(e.ctx, p))
	line, err := e.svc.Products.AddRecipeLine(e.ctx, p.ID, materialID, 1, decimal.RequireFromString(grams))
	require.NoError(t, err)
	return line
}

func TestCheckDivergence(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "KRAFT", "4.00")

	alert, err := e.svc.Costing.CheckDivergence(e.ctx, m.ID, types.MustMoney("4.01"))
	require.NoError(t, err)
	assert.Nil(t, alert)

	alert, err = e.svc.Costing.CheckDivergence(e.ctx, m.ID, types.MustMoney("4.50"))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "12.5", alert.PctDiff.String())

	_, err = e.svc.Costing.CheckDivergence(e.ctx, id.New(), types.MustMoney("1"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestCheckOldestLot(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "FILM", "10")

	alert, err := e.svc.Costing.CheckOldestLot(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, alert)

	first, err := e.svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
		MaterialID: m.ID, Quantity: types.MustQuantity("5"), UnitCost: types.MustMoney("11"),
	})
	require.NoError(t, err)
	_, err = e.svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
		MaterialID: m.ID, Quantity: types.MustQuantity("5"), UnitCost: types.MustMoney("10"),
	})
	require.NoError(t, err)

	alert, err = e.svc.Costing.CheckOldestLot(e.ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.NotNil(t, alert.LotID)
	assert.Equal(t, first.ID, *alert.LotID)
	assert.Equal(t, "10", alert.PctDiff.String())
}

func TestApplyAdministrativeCost(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx
	kraft := e.material(t, "KRAFT", "4.00")
	glue := e.material(t, "GLUE", "2.00")

	bag := e.recipe(t, "BAG", kraft.ID, "250")
	box := e.recipe(t, "BOX", kraft.ID, "500")
	other := e.recipe(t, "TAPE", glue.ID, "100")

	res, err := e.svc.Costing.ApplyAdministrativeCost(ctx, kraft.ID, types.MustMoney("5.00"), "supplier price list 2026")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecipesUpdated)
	assert.Equal(t, "4", res.PreviousCost.String())

	got, err := e.svc.Materials.GetByID(ctx, kraft.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.AdminUnitCost.String())

	lines, err := e.store.Products().ListRecipeLinesByMaterial(ctx, kraft.ID)
	require.NoError(t, err)
	want := map[id.ID]string{bag.ID: "1.25", box.ID: "2.5"}
	for _, l := range lines {
		assert.Equal(t, want[l.ID], l.CostPerUnit.String(), l.ID.String())
		assert.True(t, l.CostPerUnit.Equal(product.CostPerUnitFor(l.ConsumptionPerUnitG, types.MustMoney("5"))))
	}

	untouched, err := e.store.Products().ListRecipeLinesByMaterial(ctx, glue.ID)
	require.NoError(t, err)
	require.Len(t, untouched, 1)
	assert.Equal(t, other.CostPerUnit.String(), untouched[0].CostPerUnit.String())

	hist, err := e.svc.Costing.CostHistory(ctx, kraft.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "supplier price list 2026", hist[0].Reason)
	assert.Equal(t, "4", hist[0].PreviousCost.String())

	assert.Len(t, e.store.Outbox().Messages(events.MaterialCostChanged), 1)
	entries := e.store.Audit().Entries(kraft.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCostChange, entries[0].Action)
}

func TestApplyAdministrativeCost_SkipsNegligibleChange(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "INK", "4.00")
	e.recipe(t, "LABEL", m.ID, "1")

	// 1 g × 0.00005 = 0.00000005 per unit, under the epsilon
	res, err := e.svc.Costing.ApplyAdministrativeCost(e.ctx, m.ID, types.MustMoney("4.00005"), "rounding")
	require.NoError(t, err)
	assert.Zero(t, res.RecipesUpdated)
}

func TestApplyAdministrativeCost_Validation(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "FOIL", "1")

	_, err := e.svc.Costing.ApplyAdministrativeCost(e.ctx, m.ID, types.Zero(), "x")
	assert.True(t, apperror.IsValidation(err))

	_, err = e.svc.Costing.ApplyAdministrativeCost(e.ctx, m.ID, types.MustMoney("2"), "  ")
	assert.True(t, apperror.IsValidation(err))

	_, err = e.svc.Costing.ApplyAdministrativeCost(e.ctx, id.New(), types.MustMoney("2"), "x")
	assert.True(t, apperror.IsNotFound(err))

	hist, err := e.svc.Costing.CostHistory(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
}
