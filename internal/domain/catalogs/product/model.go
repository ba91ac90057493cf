// Package product provides the finished-goods catalog and manufacturing recipes.
package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Kind separates goods made in-house from goods bought for resale.
type Kind string

const (
	// KindManufactured goods consume materials through their recipe
	KindManufactured Kind = "manufactured"
	// KindResale goods keep a plain stock counter (no lots)
	KindResale Kind = "resale"
)

var gramsPerKilo = decimal.NewFromInt(1000)

// Product is a sellable item.
type Product struct {
	entity.Catalog

	Kind Kind `db:"kind" json:"kind"`

	// StockQty is only tracked for resale goods
	StockQty types.Quantity `db:"stock_qty" json:"stockQty"`

	// LeadTimeDays is the default manufacturing lead time
	LeadTimeDays int `db:"lead_time_days" json:"leadTimeDays"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewProduct creates a product of the given kind.
func NewProduct(code, name, unit string, kind Kind) *Product {
	return &Product{
		Catalog:   entity.NewCatalog(code, name, unit),
		Kind:      kind,
		UpdatedAt: time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if p.Kind != KindManufactured && p.Kind != KindResale {
		return apperror.NewValidation("invalid product kind").
			WithDetail("field", "kind").
			WithDetail("value", string(p.Kind))
	}
	if p.StockQty.IsNegative() {
		return apperror.NewValidation("stock cannot be negative").
			WithDetail("field", "stockQty")
	}
	if p.Kind == KindManufactured && !p.StockQty.IsZero() {
		return apperror.NewValidation("manufactured products do not keep stock").
			WithDetail("field", "stockQty")
	}
	if p.LeadTimeDays < 0 {
		return apperror.NewValidation("lead time cannot be negative").
			WithDetail("field", "leadTimeDays")
	}
	return nil
}

// IsResale reports whether the product is sold from its own stock counter.
func (p *Product) IsResale() bool { return p.Kind == KindResale }

// RecipeLine maps a manufactured product to one material it consumes.
type RecipeLine struct {
	ID         id.ID `db:"id" json:"id"`
	ProductID  id.ID `db:"product_id" json:"productId"`
	MaterialID id.ID `db:"material_id" json:"materialId"`

	// Layers multiplies demand (laminated packaging uses the material per layer)
	Layers int `db:"layers" json:"layers"`

	// ConsumptionPerUnitG is grams of material per unit of product
	ConsumptionPerUnitG decimal.Decimal `db:"consumption_per_unit_g" json:"consumptionPerUnitG"`

	// CostPerUnit is derived from the material's administrative cost
	CostPerUnit types.Money `db:"cost_per_unit" json:"costPerUnit"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks recipe line invariants.
func (l *RecipeLine) Validate() error {
	if id.IsNil(l.ProductID) || id.IsNil(l.MaterialID) {
		return apperror.NewValidation("recipe line needs a product and a material")
	}
	if l.Layers < 1 {
		return apperror.NewValidation("layers must be at least 1").
			WithDetail("field", "layers")
	}
	if !l.ConsumptionPerUnitG.IsPositive() {
		return apperror.NewValidation("consumption per unit must be positive").
			WithDetail("field", "consumptionPerUnitG")
	}
	return nil
}

// Demand returns how much material producing qty units consumes,
// in the material's unit: qty × layers × grams / 1000.
func (l *RecipeLine) Demand(qty types.Quantity) types.Quantity {
	d := qty.Decimal().
		Mul(decimal.NewFromInt(int64(l.Layers))).
		Mul(l.ConsumptionPerUnitG).
		Div(gramsPerKilo)
	return types.NewQuantityFromDecimal(d)
}

// CostPerUnitFor derives a recipe line's unit cost from a material cost.
func CostPerUnitFor(consumptionG decimal.Decimal, materialCost types.Money) types.Money {
	return consumptionG.Div(gramsPerKilo).Mul(materialCost)
}

// RecipeCostUpdate is a pending cost_per_unit write for one recipe line.
type RecipeCostUpdate struct {
	LineID      id.ID
	CostPerUnit types.Money
}
