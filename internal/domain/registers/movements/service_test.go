package movements_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	appctx "packcore/internal/core/context"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/registers/movements"
)

func newService(t *testing.T) *movements.Service {
	t.Helper()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)
	return svc.Movements
}

func TestRecord_StampsActor(t *testing.T) {
	svc := newService(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "almoxarife"})
	item := id.New()

	require.NoError(t, svc.Record(ctx,
		entity.NewMovement(entity.ItemMaterial, item, entity.MovementEntry, 0, types.MustQuantity("80"), "compra", "NF-1"),
	))

	got, err := svc.History(ctx, movements.Filter{ItemID: &item})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "almoxarife", got[0].CreatedBy)
	assert.Equal(t, types.MustQuantity("80"), got[0].QtyAfter)
}

func TestRecord_RejectsInvalidMovement(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	item := id.New()

	good := entity.NewMovement(entity.ItemMaterial, item, entity.MovementEntry, 0, types.MustQuantity("5"), "compra", "")
	bad := entity.NewMovement(entity.ItemMaterial, item, entity.MovementProduction, 5, types.MustQuantity("10"), "op", "")

	err := svc.Record(ctx, good, bad)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 1, appErr.Details["movement_index"])

	got, err := svc.History(ctx, movements.Filter{ItemID: &item})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistory_Filters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	item := id.New()
	other := id.New()

	require.NoError(t, svc.Record(ctx,
		entity.NewMovement(entity.ItemMaterial, item, entity.MovementEntry, 0, types.MustQuantity("50"), "compra", "NF-1"),
		entity.NewMovement(entity.ItemMaterial, item, entity.MovementProduction, types.MustQuantity("50"), types.MustQuantity("-20"), "op", "PV-1"),
		entity.NewMovement(entity.ItemProduct, other, entity.MovementEntry, 0, types.MustQuantity("10"), "compra", "NF-2"),
	))

	production := entity.MovementProduction
	got, err := svc.History(ctx, movements.Filter{ItemID: &item, Type: &production})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PV-1", got[0].Reference)

	got, err = svc.History(ctx, movements.Filter{Reference: "NF-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other, got[0].ItemID)

	// newest first
	got, err = svc.History(ctx, movements.Filter{ItemID: &item})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entity.MovementProduction, got[0].Type)
}

func TestTurnover(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	item := id.New()

	require.NoError(t, svc.Record(ctx,
		entity.NewMovement(entity.ItemMaterial, item, entity.MovementEntry, 0, types.MustQuantity("80"), "compra", ""),
		entity.NewMovement(entity.ItemMaterial, item, entity.MovementProduction, types.MustQuantity("80"), types.MustQuantity("-60"), "op", ""),
	))

	now := time.Now().UTC()
	got, err := svc.Turnover(ctx, movements.TurnoverFilter{
		ItemKind: entity.ItemMaterial,
		ItemID:   item,
		FromDate: now.Add(-time.Hour),
		ToDate:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, got.OpeningBalance.IsZero())
	assert.Equal(t, types.MustQuantity("80"), got.Increase)
	assert.Equal(t, types.MustQuantity("60"), got.Decrease)
	assert.Equal(t, types.MustQuantity("20"), got.ClosingBalance)

	_, err = svc.Turnover(ctx, movements.TurnoverFilter{
		ItemKind: entity.ItemMaterial,
		ItemID:   item,
		FromDate: now,
		ToDate:   now.Add(-time.Hour),
	})
	assert.True(t, apperror.IsValidation(err))
}
