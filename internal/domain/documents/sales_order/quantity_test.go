package sales_order

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/core/apperror"
	"packcore/internal/core/types"
)

func TestItemQuantity_Total(t *testing.T) {
	assert.Equal(t, types.MustQuantity("12"), Simple(types.MustQuantity("12")).Total())
	assert.Equal(t, types.MustQuantity("25"), Composite(10, types.MustQuantity("2.5")).Total())
}

func TestItemQuantity_Validate(t *testing.T) {
	assert.NoError(t, Simple(types.MustQuantity("1")).Validate())
	assert.NoError(t, Composite(3, types.MustQuantity("0.5")).Validate())

	assert.Error(t, Simple(0).Validate())
	assert.Error(t, Composite(0, types.MustQuantity("1")).Validate())
	assert.Error(t, Composite(2, 0).Validate())
	assert.Error(t, ItemQuantity{}.Validate())

	// 1e12 pieces of 1e6 units no longer fit the scaled int64
	huge := Composite(1_000_000_000_000, types.MustQuantity("1000000"))
	err := huge.Validate()
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.NoError(t, Composite(math.MaxInt64/10_000, types.MustQuantity("0.0001")).Validate())
}

func TestItemQuantity_JSON(t *testing.T) {
	b, err := json.Marshal(Composite(4, types.MustQuantity("1.5")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"composite","pieces":4,"length":1.5}`, string(b))

	var q ItemQuantity
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"simple","qty":"7"}`), &q))
	assert.Equal(t, QuantitySimple, q.Kind())
	assert.Equal(t, types.MustQuantity("7"), q.Total())

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"simple","qty":2.25}`), &q))
	assert.Equal(t, types.MustQuantity("2.25"), q.Total())
	b, err = json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"simple","qty":2.25}`, string(b))

	bad := []string{
		`{"kind":"simple","qty":"1","pieces":2}`,
		`{"kind":"composite","pieces":2}`,
		`{"kind":"composite","qty":"1","pieces":2,"length":"1"}`,
		`{"kind":"bulk","qty":"1"}`,
	}
	for _, in := range bad {
		assert.Error(t, json.Unmarshal([]byte(in), &q), in)
	}
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusApproved))
	assert.True(t, StatusQuote.CanTransitionTo(StatusApproved))
	assert.True(t, StatusApproved.CanTransitionTo(StatusInProduction))
	assert.True(t, StatusAwaitingDispatch.CanTransitionTo(StatusDelivered))
	assert.True(t, StatusInProduction.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusPending.CanTransitionTo(StatusRejected))

	assert.False(t, StatusPending.CanTransitionTo(StatusInProduction))
	assert.False(t, StatusApproved.CanTransitionTo(StatusPending))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusApproved))
}
