package sales_order

import (
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/provisioning"
	"packcore/internal/domain/registers/lots"
)

// splitAllocations hands the lots drawn for each material to the items that
// demanded it, in item order. Every item gets exactly its demand because the
// consumed quantity is the sum of the item demands.
func splitAllocations(items []provisioning.ItemDemand, draws map[id.ID][]lots.Draw) map[id.ID][]production_order.Allocation {
	type cursor struct {
		idx  int
		used types.Quantity
	}
	cursors := make(map[id.ID]*cursor, len(draws))
	out := make(map[id.ID][]production_order.Allocation, len(items))

	for _, item := range items {
		for _, md := range item.Materials {
			ds := draws[md.MaterialID]
			cur, ok := cursors[md.MaterialID]
			if !ok {
				cur = &cursor{}
				cursors[md.MaterialID] = cur
			}

			need := md.Quantity
			for need.IsPositive() && cur.idx < len(ds) {
				d := ds[cur.idx]
				take := types.MinQuantity(d.Quantity-cur.used, need)

				out[item.ItemID] = append(out[item.ItemID], production_order.Allocation{
					MaterialID: md.MaterialID,
					LotID:      d.LotID,
					Quantity:   take,
					UnitCost:   d.UnitCost,
				})
				need -= take
				cur.used += take
				if cur.used == d.Quantity {
					cur.idx++
					cur.used = 0
				}
			}
		}
	}
	return out
}
