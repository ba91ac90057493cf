package purchase_receipt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/documents/purchase_receipt"
)

func TestReceive(t *testing.T) {
	ctx := context.Background()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)

	kraft := material.NewMaterial("KRAFT", "Kraft", "kg")
	kraft.AdminUnitCost = types.MustMoney("4.00")
	require.NoError(t, svc.Materials.Create(ctx, kraft))
	film := material.NewMaterial("FILM", "Film", "kg")
	require.NoError(t, svc.Materials.Create(ctx, film))

	res, err := svc.Purchases.Receive(ctx, purchase_receipt.Receipt{
		Supplier:          "Papelaria Norte",
		SupplierDocNumber: "NF-123",
		Lines: []purchase_receipt.Line{
			{MaterialID: kraft.ID, Quantity: types.MustQuantity("50"), UnitCost: types.MustMoney("4.50")},
			{MaterialID: film.ID, Quantity: types.MustQuantity("10"), UnitCost: types.MustMoney("9")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	assert.Equal(t, "Papelaria Norte/NF-123", res.Lines[0].Lot.SourceRef)
	require.NotNil(t, res.Lines[0].Divergence)
	assert.Equal(t, "12.5", res.Lines[0].Divergence.PctDiff.String())
	assert.Equal(t, res.Lines[0].Lot.ID, *res.Lines[0].Divergence.LotID)

	// no administrative cost, nothing to compare
	assert.Nil(t, res.Lines[1].Divergence)

	got, err := svc.Materials.GetByID(ctx, film.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("10"), got.StockQty)
}

func TestReceive_IsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)

	kraft := material.NewMaterial("KRAFT", "Kraft", "kg")
	require.NoError(t, svc.Materials.Create(ctx, kraft))

	_, err = svc.Purchases.Receive(ctx, purchase_receipt.Receipt{
		Lines: []purchase_receipt.Line{
			{MaterialID: kraft.ID, Quantity: types.MustQuantity("5"), UnitCost: types.MustMoney("1")},
			{MaterialID: id.New(), Quantity: types.MustQuantity("5"), UnitCost: types.MustMoney("1")},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	got, err := svc.Materials.GetByID(ctx, kraft.ID)
	require.NoError(t, err)
	assert.True(t, got.StockQty.IsZero())
}

func TestReceivePurchase_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)

	_, err = svc.Purchases.ReceivePurchase(ctx, id.New(), 0, types.MustMoney("1"), "NF-9")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Purchases.Receive(ctx, purchase_receipt.Receipt{})
	assert.True(t, apperror.IsValidation(err))
}
