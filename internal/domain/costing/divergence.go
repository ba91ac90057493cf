// Package costing reconciles administrative material costs with lot costs
// and propagates cost changes to recipes.
package costing

import (
	"github.com/shopspring/decimal"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// DivergenceThreshold is the relative difference above which a lot cost is
// reported against the administrative cost (0.5%).
var DivergenceThreshold = decimal.RequireFromString("0.005")

// RecipeCostEpsilon is the smallest cost_per_unit change worth writing.
var RecipeCostEpsilon = decimal.RequireFromString("0.0001")

var hundred = decimal.NewFromInt(100)

// CostDivergenceAlert reports a lot cost that differs from the administrative cost.
type CostDivergenceAlert struct {
	MaterialID id.ID       `json:"materialId"`
	AdminCost  types.Money `json:"adminCost"`
	LotCost    types.Money `json:"lotCost"`

	// PctDiff is (lot − admin) / admin in percent, rounded to 2 places.
	// Positive when the lot is more expensive.
	PctDiff decimal.Decimal `json:"pctDiff"`

	LotID *id.ID `json:"lotId,omitempty"`
}

// divergence compares lotCost with adminCost. It returns nil when the
// administrative cost is unset or the difference is within the threshold.
func divergence(materialID id.ID, adminCost, lotCost types.Money) *CostDivergenceAlert {
	if !adminCost.IsPositive() {
		return nil
	}
	ratio := lotCost.Sub(adminCost).Div(adminCost)
	if ratio.Abs().LessThanOrEqual(DivergenceThreshold) {
		return nil
	}
	return &CostDivergenceAlert{
		MaterialID: materialID,
		AdminCost:  adminCost,
		LotCost:    lotCost,
		PctDiff:    ratio.Mul(hundred).Round(2),
	}
}
