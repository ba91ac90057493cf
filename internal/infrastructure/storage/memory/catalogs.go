package memory

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
)

// MaterialRepo implements material.Repository.
type MaterialRepo struct{ s *Store }

var _ material.Repository = (*MaterialRepo)(nil)

func (r *MaterialRepo) Create(_ context.Context, m *material.Material) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.materials[m.ID]; ok {
			return apperror.NewDuplicate("material", "id", m.ID.String())
		}
		for _, existing := range d.materials {
			if existing.Code == m.Code {
				return apperror.NewDuplicate("material", "code", m.Code)
			}
		}
		d.materials[m.ID] = *m
		return nil
	})
}

func (r *MaterialRepo) GetByID(_ context.Context, materialID id.ID) (*material.Material, error) {
	var (
		m  material.Material
		ok bool
	)
	r.s.read(func(d *state) { m, ok = d.materials[materialID] })
	if !ok {
		return nil, apperror.NewNotFound("material", materialID.String())
	}
	return &m, nil
}

func (r *MaterialRepo) GetByCode(_ context.Context, code string) (*material.Material, error) {
	var found *material.Material
	r.s.read(func(d *state) {
		for _, m := range d.materials {
			if m.Code == code {
				found = &m
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("material", code)
	}
	return found, nil
}

// GetForUpdate returns the material; the enclosing transaction already
// excludes every other writer.
func (r *MaterialRepo) GetForUpdate(ctx context.Context, materialID id.ID) (*material.Material, error) {
	return r.GetByID(ctx, materialID)
}

func (r *MaterialRepo) List(_ context.Context, filter domain.ListFilter) ([]*material.Material, error) {
	filter = filter.Normalize()
	var all []material.Material
	r.s.read(func(d *state) {
		all = make([]material.Material, 0, len(d.materials))
		for _, m := range d.materials {
			all = append(all, m)
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })

	out := make([]*material.Material, 0, filter.Limit)
	for i := filter.Offset; i < len(all) && len(out) < filter.Limit; i++ {
		out = append(out, &all[i])
	}
	return out, nil
}

func (r *MaterialRepo) UpdateStock(_ context.Context, materialID id.ID, qty types.Quantity) error {
	return r.update(materialID, func(m *material.Material) { m.StockQty = qty })
}

func (r *MaterialRepo) UpdateAdminCost(_ context.Context, materialID id.ID, cost types.Money) error {
	return r.update(materialID, func(m *material.Material) { m.AdminUnitCost = cost })
}

func (r *MaterialRepo) update(materialID id.ID, fn func(m *material.Material)) error {
	return r.s.write(func(d *state) error {
		m, ok := d.materials[materialID]
		if !ok {
			return apperror.NewNotFound("material", materialID.String())
		}
		fn(&m)
		m.Version++
		m.UpdatedAt = time.Now().UTC()
		d.materials[materialID] = m
		return nil
	})
}

func (r *MaterialRepo) AppendCostHistory(_ context.Context, entry *material.CostHistoryEntry) error {
	return r.s.write(func(d *state) error {
		d.costHistory = append(d.costHistory, *entry)
		return nil
	})
}

func (r *MaterialRepo) ListCostHistory(_ context.Context, materialID id.ID) ([]material.CostHistoryEntry, error) {
	out := make([]material.CostHistoryEntry, 0)
	r.s.read(func(d *state) {
		for i := len(d.costHistory) - 1; i >= 0; i-- {
			if d.costHistory[i].MaterialID == materialID {
				out = append(out, d.costHistory[i])
			}
		}
	})
	return out, nil
}

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(_ context.Context, p *product.Product) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.products[p.ID]; ok {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		for _, existing := range d.products {
			if existing.Code == p.Code {
				return apperror.NewDuplicate("product", "code", p.Code)
			}
		}
		d.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.s.read(func(d *state) { p, ok = d.products[productID] })
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &p, nil
}

func (r *ProductRepo) GetByCode(_ context.Context, code string) (*product.Product, error) {
	var found *product.Product
	r.s.read(func(d *state) {
		for _, p := range d.products {
			if p.Code == code {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("product", code)
	}
	return found, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) UpdateStock(_ context.Context, productID id.ID, qty types.Quantity) error {
	return r.s.write(func(d *state) error {
		p, ok := d.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		p.StockQty = qty
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		d.products[productID] = p
		return nil
	})
}

func (r *ProductRepo) CreateRecipeLine(_ context.Context, line *product.RecipeLine) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.recipes[line.ID]; ok {
			return apperror.NewDuplicate("recipe line", "id", line.ID.String())
		}
		d.recipes[line.ID] = *line
		return nil
	})
}

func (r *ProductRepo) ListRecipe(_ context.Context, productID id.ID) ([]product.RecipeLine, error) {
	return r.recipeLines(func(l product.RecipeLine) bool { return l.ProductID == productID }), nil
}

func (r *ProductRepo) ListRecipeLinesByMaterial(_ context.Context, materialID id.ID) ([]product.RecipeLine, error) {
	return r.recipeLines(func(l product.RecipeLine) bool { return l.MaterialID == materialID }), nil
}

func (r *ProductRepo) recipeLines(match func(product.RecipeLine) bool) []product.RecipeLine {
	out := make([]product.RecipeLine, 0)
	r.s.read(func(d *state) {
		for _, l := range d.recipes {
			if match(l) {
				out = append(out, l)
			}
		}
	})
	slices.SortFunc(out, func(a, b product.RecipeLine) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return out
}

func (r *ProductRepo) UpdateRecipeCosts(_ context.Context, updates []product.RecipeCostUpdate) error {
	now := time.Now().UTC()
	return r.s.write(func(d *state) error {
		for _, u := range updates {
			l, ok := d.recipes[u.LineID]
			if !ok {
				return apperror.NewNotFound("recipe line", u.LineID.String())
			}
			l.CostPerUnit = u.CostPerUnit
			l.UpdatedAt = now
			d.recipes[u.LineID] = l
		}
		return nil
	})
}
