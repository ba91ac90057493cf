package memory

import (
	"bytes"
	"context"
	"slices"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/domain/registers/movements"
)

// LotRepo implements lots.Repository.
type LotRepo struct{ s *Store }

var _ lots.Repository = (*LotRepo)(nil)

func (r *LotRepo) Create(_ context.Context, lot *lots.Lot) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.lots[lot.ID]; ok {
			return apperror.NewDuplicate("lot", "id", lot.ID.String())
		}
		d.lots[lot.ID] = *lot
		return nil
	})
}

func (r *LotRepo) ListActive(_ context.Context, materialID id.ID) ([]lots.Lot, error) {
	return r.list(materialID, false), nil
}

func (r *LotRepo) OldestActive(_ context.Context, materialID id.ID) (*lots.Lot, error) {
	active := r.list(materialID, false)
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

func (r *LotRepo) List(_ context.Context, materialID id.ID, includeExhausted bool) ([]lots.Lot, error) {
	return r.list(materialID, includeExhausted), nil
}

func (r *LotRepo) list(materialID id.ID, includeExhausted bool) []lots.Lot {
	out := make([]lots.Lot, 0)
	r.s.read(func(d *state) {
		for _, l := range d.lots {
			if l.MaterialID != materialID {
				continue
			}
			if !includeExhausted && !l.IsActive() {
				continue
			}
			out = append(out, l)
		}
	})
	slices.SortFunc(out, func(a, b lots.Lot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (r *LotRepo) ApplyUpdates(_ context.Context, updates []lots.LotUpdate) error {
	return r.s.write(func(d *state) error {
		for _, u := range updates {
			l, ok := d.lots[u.ID]
			if !ok {
				return apperror.NewNotFound("lot", u.ID.String())
			}
			if u.QuantityRemaining.IsNegative() || u.QuantityRemaining > l.QuantityRemaining {
				return apperror.NewBusinessRule(apperror.CodeConcurrencyConflict,
					"lot remaining quantity can only decrease").
					WithDetail("lot_id", u.ID.String())
			}
			l.QuantityRemaining = u.QuantityRemaining
			l.Status = u.Status
			d.lots[u.ID] = l
		}
		return nil
	})
}

func (r *LotRepo) SumActive(_ context.Context, materialID id.ID) (types.Quantity, error) {
	var total types.Quantity
	r.s.read(func(d *state) {
		for _, l := range d.lots {
			if l.MaterialID == materialID && l.IsActive() {
				total += l.QuantityRemaining
			}
		}
	})
	return total, nil
}

// MovementRepo implements movements.Repository.
type MovementRepo struct{ s *Store }

var _ movements.Repository = (*MovementRepo)(nil)

func (r *MovementRepo) CreateMovements(_ context.Context, mvs []entity.Movement) error {
	return r.s.write(func(d *state) error {
		d.movements = append(d.movements, mvs...)
		return nil
	})
}

func (r *MovementRepo) ListMovements(_ context.Context, f movements.Filter) ([]entity.Movement, error) {
	f.ListFilter = f.ListFilter.Normalize()
	out := make([]entity.Movement, 0)
	skipped := 0
	r.s.read(func(d *state) {
		for i := len(d.movements) - 1; i >= 0 && len(out) < f.Limit; i-- {
			m := d.movements[i]
			if !matchMovement(m, f) {
				continue
			}
			if skipped < f.Offset {
				skipped++
				continue
			}
			out = append(out, m)
		}
	})
	return out, nil
}

func matchMovement(m entity.Movement, f movements.Filter) bool {
	switch {
	case f.ItemKind != nil && m.ItemKind != *f.ItemKind:
		return false
	case f.ItemID != nil && m.ItemID != *f.ItemID:
		return false
	case f.LotID != nil && (m.LotID == nil || *m.LotID != *f.LotID):
		return false
	case f.Reference != "" && m.Reference != f.Reference:
		return false
	case f.Type != nil && m.Type != *f.Type:
		return false
	case f.FromDate != nil && m.CreatedAt.Before(*f.FromDate):
		return false
	case f.ToDate != nil && !m.CreatedAt.Before(*f.ToDate):
		return false
	}
	return true
}

func (r *MovementRepo) GetTurnover(_ context.Context, f movements.TurnoverFilter) (movements.Turnover, error) {
	t := movements.Turnover{ItemKind: f.ItemKind, ItemID: f.ItemID}
	r.s.read(func(d *state) {
		for _, m := range d.movements {
			if m.ItemKind != f.ItemKind || m.ItemID != f.ItemID {
				continue
			}
			switch {
			case m.CreatedAt.Before(f.FromDate):
				t.OpeningBalance += m.QtyDelta
			case m.CreatedAt.Before(f.ToDate):
				if m.QtyDelta.IsPositive() {
					t.Increase += m.QtyDelta
				} else {
					t.Decrease += m.QtyDelta.Neg()
				}
			}
		}
	})
	t.ClosingBalance = t.OpeningBalance + t.Increase - t.Decrease
	return t, nil
}
