package provisioning

import (
	"context"
	"fmt"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/registers/lots"
	"packcore/pkg/logger"
)

// ProductReader reads products and their recipes.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
	Recipe(ctx context.Context, productID id.ID) ([]product.RecipeLine, error)
}

// MaterialReader reads materials.
type MaterialReader interface {
	GetByID(ctx context.Context, id id.ID) (*material.Material, error)
}

// LotPeeker computes FIFO attributions without writing.
type LotPeeker interface {
	PeekFIFO(ctx context.Context, materialID id.ID, qty types.Quantity) (lots.Consumption, error)
}

// Service computes provisioning results.
type Service struct {
	products  ProductReader
	materials MaterialReader
	ledger    LotPeeker
}

// NewService creates a new provisioning service.
func NewService(products ProductReader, materials MaterialReader, ledger LotPeeker) *Service {
	return &Service{products: products, materials: materials, ledger: ledger}
}

// Shortage is a demanded item the stock cannot cover.
type Shortage struct {
	ItemKind  entity.ItemKind `json:"itemKind"`
	ItemID    id.ID           `json:"itemId"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Required  types.Quantity  `json:"required"`
	Available types.Quantity  `json:"available"`
	Missing   types.Quantity  `json:"missing"`
}

// Reservation is the lot attribution a fully covered material would get.
type Reservation struct {
	MaterialID id.ID          `json:"materialId"`
	Name       string         `json:"name"`
	Unit       string         `json:"unit"`
	Required   types.Quantity `json:"required"`
	Draws      []lots.Draw    `json:"draws"`
	Cost       types.Money    `json:"cost"`
}

// Result is the outcome of a provisioning check.
type Result struct {
	Shortages        []Shortage    `json:"shortages"`
	Reservations     []Reservation `json:"reservations"`
	Warnings         []string      `json:"warnings,omitempty"`
	MaterialCost     types.Money   `json:"materialCost"`
	FullySatisfiable bool          `json:"fullySatisfiable"`
}

// Provision checks the lines against current stock. Material demand is
// aggregated across all lines before it is compared with the lots, so two
// items that each fit alone but not together are reported short.
func (s *Service) Provision(ctx context.Context, lines []Line) (Result, error) {
	d, err := s.Demand(ctx, lines)
	if err != nil {
		return Result{}, err
	}
	return s.Evaluate(ctx, d)
}

// Evaluate compares an expanded demand with current stock.
func (s *Service) Evaluate(ctx context.Context, d Demand) (Result, error) {
	res := Result{
		Shortages:    make([]Shortage, 0),
		Reservations: make([]Reservation, 0),
		Warnings:     append([]string(nil), d.Warnings...),
		MaterialCost: types.Zero(),
	}

	for _, mid := range d.MaterialIDs() {
		required := d.Materials[mid]
		if required.IsZero() {
			continue
		}
		m, err := s.materials.GetByID(ctx, mid)
		if err != nil {
			return Result{}, err
		}
		c, err := s.ledger.PeekFIFO(ctx, mid, required)
		if err != nil {
			return Result{}, fmt.Errorf("peek lots of %s: %w", m.Code, err)
		}
		if !c.Satisfied() {
			res.Shortages = append(res.Shortages, Shortage{
				ItemKind:  entity.ItemMaterial,
				ItemID:    mid,
				Name:      m.Name,
				Unit:      m.Unit,
				Required:  required,
				Available: c.Consumed(),
				Missing:   c.Shortfall,
			})
			continue
		}
		res.Reservations = append(res.Reservations, Reservation{
			MaterialID: mid,
			Name:       m.Name,
			Unit:       m.Unit,
			Required:   required,
			Draws:      c.Draws,
			Cost:       c.TotalCost,
		})
		res.MaterialCost = res.MaterialCost.Add(c.TotalCost)
	}

	for _, pid := range d.ProductIDs() {
		required := d.Products[pid]
		p, err := s.products.GetByID(ctx, pid)
		if err != nil {
			return Result{}, err
		}
		if p.StockQty >= required {
			continue
		}
		available := p.StockQty
		if available.IsNegative() {
			available = 0
		}
		res.Shortages = append(res.Shortages, Shortage{
			ItemKind:  entity.ItemProduct,
			ItemID:    pid,
			Name:      p.Name,
			Unit:      p.Unit,
			Required:  required,
			Available: available,
			Missing:   required - available,
		})
	}

	res.FullySatisfiable = len(res.Shortages) == 0
	logger.Debug(ctx, "provisioning evaluated",
		"materials", len(d.Materials),
		"products", len(d.Products),
		"shortages", len(res.Shortages),
		"satisfiable", res.FullySatisfiable)
	return res, nil
}
