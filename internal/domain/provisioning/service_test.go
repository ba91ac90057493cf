package provisioning_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/provisioning"
	"packcore/internal/domain/registers/lots"
)

type env struct {
	ctx context.Context
	svc *app.Services
}

func newEnv(t *testing.T) *env {
	t.Helper()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)
	return &env{ctx: context.Background(), svc: svc}
}

func (e *env) material(t *testing.T, code string, lotsQty ...string) *material.Material {
	t.Helper()
	m := material.NewMaterial(code, code, "kg")
	require.NoError(t, e.svc.Materials.Create(e.ctx, m))
	for _, q := range lotsQty {
		_, err := e.svc.Lots.CreateLot(e.ctx, lots.CreateLotRequest{
			MaterialID: m.ID, Quantity: types.MustQuantity(q), UnitCost: types.MustMoney("4"),
		})
		require.NoError(t, err)
	}
	return m
}

func (e *env) manufactured(t *testing.T, code string, materialID id.ID, grams string) *product.Product {
	t.Helper()
	p := product.NewProduct(code, code, "un", product.KindManufactured)
	require.NoError(t, e.svc.Products.Create(e.ctx, p))
	if materialID != id.Nil() {
		_, err := e.svc.Products.AddRecipeLine(e.ctx, p.ID, materialID, 1, decimal.RequireFromString(grams))
		require.NoError(t, err)
	}
	return p
}

func (e *env) resale(t *testing.T, code, stock string) *product.Product {
	t.Helper()
	p := product.NewProduct(code, code, "un", product.KindResale)
	p.StockQty = types.MustQuantity(stock)
	require.NoError(t, e.svc.Products.Create(e.ctx, p))
	return p
}

func line(productID id.ID, qty string) provisioning.Line {
	return provisioning.Line{ItemID: id.New(), ProductID: productID, Quantity: types.MustQuantity(qty)}
}

func TestProvision_AggregatesDemandAcrossItems(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "KRAFT", "50")
	a := e.manufactured(t, "BAG-A", m.ID, "30")
	b := e.manufactured(t, "BAG-B", m.ID, "40")

	// each item alone fits in 50 kg
	for _, l := range []provisioning.Line{line(a.ID, "1000"), line(b.ID, "1000")} {
		res, err := e.svc.Provisioning.Provision(e.ctx, []provisioning.Line{l})
		require.NoError(t, err)
		assert.True(t, res.FullySatisfiable)
	}

	res, err := e.svc.Provisioning.Provision(e.ctx, []provisioning.Line{line(a.ID, "1000"), line(b.ID, "1000")})
	require.NoError(t, err)

	assert.False(t, res.FullySatisfiable)
	require.Len(t, res.Shortages, 1)
	s := res.Shortages[0]
	assert.Equal(t, entity.ItemMaterial, s.ItemKind)
	assert.Equal(t, m.ID, s.ItemID)
	assert.Equal(t, types.MustQuantity("70"), s.Required)
	assert.Equal(t, types.MustQuantity("50"), s.Available)
	assert.Equal(t, types.MustQuantity("20"), s.Missing)
	assert.Empty(t, res.Reservations)
}

func TestProvision_Reservation(t *testing.T) {
	e := newEnv(t)
	m := e.material(t, "FILM", "10", "10")
	p := e.manufactured(t, "POUCH", m.ID, "12")

	res, err := e.svc.Provisioning.Provision(e.ctx, []provisioning.Line{line(p.ID, "1000")})
	require.NoError(t, err)

	assert.True(t, res.FullySatisfiable)
	require.Len(t, res.Reservations, 1)
	r := res.Reservations[0]
	assert.Equal(t, types.MustQuantity("12"), r.Required)
	require.Len(t, r.Draws, 2)
	assert.Equal(t, types.MustQuantity("10"), r.Draws[0].Quantity)
	assert.Equal(t, types.MustQuantity("2"), r.Draws[1].Quantity)
	assert.Equal(t, "48", res.MaterialCost.String())

	// read-only
	bal, err := e.svc.Lots.Balance(e.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("20"), bal)
}

func TestProvision_ResaleAndWarnings(t *testing.T) {
	e := newEnv(t)
	cups := e.resale(t, "CUP", "100")
	lids := e.resale(t, "LID", "10")
	bare := e.manufactured(t, "CUSTOM", id.Nil(), "")

	res, err := e.svc.Provisioning.Provision(e.ctx, []provisioning.Line{
		line(cups.ID, "60"),
		line(cups.ID, "40"),
		line(lids.ID, "25"),
		line(bare.ID, "5"),
	})
	require.NoError(t, err)

	assert.False(t, res.FullySatisfiable)
	require.Len(t, res.Shortages, 1)
	assert.Equal(t, entity.ItemProduct, res.Shortages[0].ItemKind)
	assert.Equal(t, lids.ID, res.Shortages[0].ItemID)
	assert.Equal(t, types.MustQuantity("15"), res.Shortages[0].Missing)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "CUSTOM")
}

func TestDemand_LayersAndMaterialOrder(t *testing.T) {
	e := newEnv(t)
	m1 := e.material(t, "M1")
	m2 := e.material(t, "M2")

	p := product.NewProduct("LAM", "laminate", "un", product.KindManufactured)
	require.NoError(t, e.svc.Products.Create(e.ctx, p))
	_, err := e.svc.Products.AddRecipeLine(e.ctx, p.ID, m1.ID, 3, decimal.RequireFromString("2"))
	require.NoError(t, err)
	_, err = e.svc.Products.AddRecipeLine(e.ctx, p.ID, m2.ID, 1, decimal.RequireFromString("5"))
	require.NoError(t, err)

	d, err := e.svc.Provisioning.Demand(e.ctx, []provisioning.Line{line(p.ID, "500")})
	require.NoError(t, err)

	assert.Equal(t, types.MustQuantity("3"), d.Materials[m1.ID])
	assert.Equal(t, types.MustQuantity("2.5"), d.Materials[m2.ID])
	ids := d.MaterialIDs()
	require.Len(t, ids, 2)
	// UUIDv7 ids sort by creation
	assert.Equal(t, []id.ID{m1.ID, m2.ID}, ids)
	require.Len(t, d.Items, 1)
	assert.Len(t, d.Items[0].Materials, 2)
}
