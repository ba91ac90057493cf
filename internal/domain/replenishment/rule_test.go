package replenishment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
)

func stocked(stock, minStock, reorder string) *material.Material {
	m := material.NewMaterial("KRAFT", "Kraft", "kg")
	m.StockQty = types.MustQuantity(stock)
	m.MinStock = types.MustQuantity(minStock)
	m.ReorderPoint = types.MustQuantity(reorder)
	return m
}

func TestDefaultRule(t *testing.T) {
	r, err := CompileRule("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRule, r.String())

	cases := []struct {
		name string
		m    *material.Material
		want bool
	}{
		{"above reorder point", stocked("31", "0", "30"), false},
		{"at reorder point", stocked("30", "0", "30"), true},
		{"below reorder point", stocked("2.5", "0", "30"), true},
		{"no reorder point", stocked("0", "0", "0"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Evaluate(tc.m)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCustomRule(t *testing.T) {
	r, err := CompileRule(`stock_qty < min_stock * 1.5 || code.startsWith("URG")`)
	require.NoError(t, err)

	low, err := r.Evaluate(stocked("14", "10", "0"))
	require.NoError(t, err)
	assert.True(t, low)

	ok, err := r.Evaluate(stocked("15", "10", "0"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileRule_Rejects(t *testing.T) {
	_, err := CompileRule("stock_qty <=")
	assert.Error(t, err)

	_, err = CompileRule("unknown_var > 1.0")
	assert.Error(t, err)

	_, err = CompileRule("stock_qty + 1.0")
	assert.Error(t, err)
}
