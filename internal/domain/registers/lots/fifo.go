package lots

import (
	"sort"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// selectFIFO draws qty from the oldest active lots first.
// It is the only lot-selection routine: PeekFIFO and ConsumeFIFO both use it,
// so a dry run and a commit over the same lots produce the same draws.
func selectFIFO(materialID id.ID, lots []Lot, qty types.Quantity) Consumption {
	ordered := make([]*Lot, 0, len(lots))
	for i := range lots {
		if lots[i].IsActive() && lots[i].QuantityRemaining.IsPositive() {
			ordered = append(ordered, &lots[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].before(ordered[j]) })

	c := Consumption{
		MaterialID: materialID,
		Requested:  qty,
		TotalCost:  types.Zero(),
	}

	need := qty
	for _, lot := range ordered {
		if !need.IsPositive() {
			break
		}
		take := types.MinQuantity(need, lot.QuantityRemaining)
		d := Draw{
			LotID:        lot.ID,
			Quantity:     take,
			UnitCost:     lot.UnitCost,
			LotCreatedAt: lot.CreatedAt,
		}
		c.Draws = append(c.Draws, d)
		c.TotalCost = c.TotalCost.Add(d.Cost())
		need -= take
	}

	if need.IsPositive() {
		c.Shortfall = need
	}
	return c
}

// applyDraws returns the lot updates a consumption produces.
func applyDraws(lots []Lot, c Consumption) []LotUpdate {
	byID := make(map[id.ID]*Lot, len(lots))
	for i := range lots {
		byID[lots[i].ID] = &lots[i]
	}

	updates := make([]LotUpdate, 0, len(c.Draws))
	for _, d := range c.Draws {
		lot := byID[d.LotID]
		remaining := lot.QuantityRemaining - d.Quantity
		status := StatusActive
		if remaining.IsZero() {
			status = StatusExhausted
		}
		updates = append(updates, LotUpdate{
			ID:                lot.ID,
			QuantityRemaining: remaining,
			Status:            status,
		})
	}
	return updates
}
