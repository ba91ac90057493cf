// Package provisioning answers "can this order be served from stock, and
// from which lots" without changing anything.
package provisioning

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/product"
)

// Line is one order item to provision.
type Line struct {
	ItemID    id.ID
	ProductID id.ID
	Quantity  types.Quantity
}

// MaterialDemand is the quantity of one material needed by one item.
type MaterialDemand struct {
	MaterialID id.ID          `json:"materialId"`
	Quantity   types.Quantity `json:"quantity"`
}

// ItemDemand is the expansion of one order item.
type ItemDemand struct {
	ItemID    id.ID            `json:"itemId"`
	Product   *product.Product `json:"product"`
	Quantity  types.Quantity   `json:"quantity"`
	Materials []MaterialDemand `json:"materials,omitempty"`
}

// Demand is the aggregated need of an order.
type Demand struct {
	Items []ItemDemand `json:"items"`

	// Materials is the summed need per material across manufactured items
	Materials map[id.ID]types.Quantity `json:"materials"`

	// Products is the summed need per resale product
	Products map[id.ID]types.Quantity `json:"products"`

	Warnings []string `json:"warnings,omitempty"`
}

// MaterialIDs returns the demanded materials in ascending id order,
// which is the order locks are taken in.
func (d Demand) MaterialIDs() []id.ID {
	return sortedIDs(d.Materials)
}

// ProductIDs returns the demanded resale products in ascending id order.
func (d Demand) ProductIDs() []id.ID {
	return sortedIDs(d.Products)
}

func sortedIDs(m map[id.ID]types.Quantity) []id.ID {
	ids := make([]id.ID, 0, len(m))
	for k := range m {
		ids = append(ids, k)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// Demand expands every line: resale products count as themselves, manufactured
// products through their recipe (qty × layers × g/unit / 1000).
func (s *Service) Demand(ctx context.Context, lines []Line) (Demand, error) {
	d := Demand{
		Items:     make([]ItemDemand, 0, len(lines)),
		Materials: make(map[id.ID]types.Quantity),
		Products:  make(map[id.ID]types.Quantity),
	}

	recipes := make(map[id.ID][]product.RecipeLine)
	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			return Demand{}, apperror.NewValidation("item quantity must be positive").
				WithDetail("item_id", line.ItemID.String())
		}

		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return Demand{}, err
		}

		item := ItemDemand{ItemID: line.ItemID, Product: p, Quantity: line.Quantity}
		if p.IsResale() {
			d.Products[p.ID] += line.Quantity
			d.Items = append(d.Items, item)
			continue
		}

		recipe, ok := recipes[p.ID]
		if !ok {
			recipe, err = s.products.Recipe(ctx, p.ID)
			if err != nil {
				return Demand{}, fmt.Errorf("load recipe of %s: %w", p.Code, err)
			}
			recipes[p.ID] = recipe
		}
		if len(recipe) == 0 {
			d.Warnings = append(d.Warnings, fmt.Sprintf("product %s has no recipe lines", p.Code))
		}

		perMaterial := make(map[id.ID]types.Quantity)
		order := make([]id.ID, 0, len(recipe))
		for i := range recipe {
			rl := &recipe[i]
			if _, seen := perMaterial[rl.MaterialID]; !seen {
				order = append(order, rl.MaterialID)
			}
			perMaterial[rl.MaterialID] += rl.Demand(line.Quantity)
		}
		for _, mid := range order {
			qty := perMaterial[mid]
			item.Materials = append(item.Materials, MaterialDemand{MaterialID: mid, Quantity: qty})
			d.Materials[mid] += qty
		}
		d.Items = append(d.Items, item)
	}

	return d, nil
}
