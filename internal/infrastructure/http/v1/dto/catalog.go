package dto

import (
	"github.com/shopspring/decimal"

	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
)

// --- Materials ---

// CreateMaterialRequest represents a request to create a material.
type CreateMaterialRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Unit          string          `json:"unit" binding:"required"`
	AdminUnitCost *types.Money    `json:"adminUnitCost,omitempty"`
	MinStock      *types.Quantity `json:"minStock,omitempty"`
	ReorderPoint  *types.Quantity `json:"reorderPoint,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateMaterialRequest) ToEntity() *material.Material {
	m := material.NewMaterial(r.Code, r.Name, r.Unit)
	if r.AdminUnitCost != nil {
		m.AdminUnitCost = *r.AdminUnitCost
	}
	if r.MinStock != nil {
		m.MinStock = *r.MinStock
	}
	if r.ReorderPoint != nil {
		m.ReorderPoint = *r.ReorderPoint
	}
	return m
}

// AdminCostRequest overrides a material's administrative cost.
type AdminCostRequest struct {
	UnitCost types.Money `json:"unitCost"`
	Reason   string      `json:"reason"`
}

// --- Products ---

// CreateProductRequest represents a request to create a product.
type CreateProductRequest struct {
	Code         string       `json:"code" binding:"required"`
	Name         string       `json:"name" binding:"required"`
	Unit         string       `json:"unit" binding:"required"`
	Kind         product.Kind `json:"kind" binding:"required,oneof=manufactured resale"`
	LeadTimeDays int          `json:"leadTimeDays" binding:"min=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Unit, r.Kind)
	p.LeadTimeDays = r.LeadTimeDays
	return p
}

// RecipeLineRequest attaches a material to a product's recipe.
type RecipeLineRequest struct {
	MaterialID          string          `json:"materialId" binding:"required,uuid"`
	Layers              int             `json:"layers" binding:"required,min=1"`
	ConsumptionPerUnitG decimal.Decimal `json:"consumptionPerUnitG"`
}
