package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/sales_order"
)

// SalesOrderRepo implements sales_order.Repository.
type SalesOrderRepo struct{ s *Store }

var _ sales_order.Repository = (*SalesOrderRepo)(nil)

func copyOrder(o sales_order.Order) sales_order.Order {
	o.Items = slices.Clone(o.Items)
	if o.ApprovedAt != nil {
		at := *o.ApprovedAt
		o.ApprovedAt = &at
	}
	return o
}

func (r *SalesOrderRepo) Create(_ context.Context, o *sales_order.Order) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.orders[o.ID]; ok {
			return apperror.NewDuplicate("sales order", "id", o.ID.String())
		}
		for _, existing := range d.orders {
			if existing.Number == o.Number {
				return apperror.NewDuplicate("sales order", "number", o.Number)
			}
		}
		d.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *SalesOrderRepo) GetByID(_ context.Context, orderID id.ID) (*sales_order.Order, error) {
	var (
		o  sales_order.Order
		ok bool
	)
	r.s.read(func(d *state) { o, ok = d.orders[orderID] })
	if !ok {
		return nil, apperror.NewNotFound("sales order", orderID.String())
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *SalesOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*sales_order.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *SalesOrderRepo) UpdateStatus(_ context.Context, o *sales_order.Order) error {
	return r.s.write(func(d *state) error {
		stored, ok := d.orders[o.ID]
		if !ok {
			return apperror.NewNotFound("sales order", o.ID.String())
		}
		if stored.Version != o.Version-1 {
			return apperror.NewConcurrentModification("sales order", o.ID.String())
		}
		stored.Status = o.Status
		stored.Tipo = o.Tipo
		stored.ApprovedAt = o.ApprovedAt
		stored.Version = o.Version
		stored.UpdatedAt = o.UpdatedAt
		d.orders[o.ID] = copyOrder(stored)
		return nil
	})
}

// ProductionOrderRepo implements production_order.Repository.
type ProductionOrderRepo struct{ s *Store }

var _ production_order.Repository = (*ProductionOrderRepo)(nil)

func copyProductionOrder(po production_order.ProductionOrder) production_order.ProductionOrder {
	po.Allocations = slices.Clone(po.Allocations)
	return po
}

func (r *ProductionOrderRepo) Create(_ context.Context, po *production_order.ProductionOrder) error {
	return r.s.write(func(d *state) error {
		for _, existing := range d.productionOrders {
			if existing.OrderID == po.OrderID && existing.OrderItemID == po.OrderItemID {
				return apperror.NewDuplicate("production order", "order_item_id", po.OrderItemID.String())
			}
		}
		d.productionOrders[po.ID] = copyProductionOrder(*po)
		return nil
	})
}

func (r *ProductionOrderRepo) GetByID(_ context.Context, poID id.ID) (*production_order.ProductionOrder, error) {
	var (
		po production_order.ProductionOrder
		ok bool
	)
	r.s.read(func(d *state) { po, ok = d.productionOrders[poID] })
	if !ok {
		return nil, apperror.NewNotFound("production order", poID.String())
	}
	po = copyProductionOrder(po)
	return &po, nil
}

func (r *ProductionOrderRepo) GetForUpdate(ctx context.Context, poID id.ID) (*production_order.ProductionOrder, error) {
	return r.GetByID(ctx, poID)
}

func (r *ProductionOrderRepo) FindByOrderItem(_ context.Context, orderID, orderItemID id.ID) (*production_order.ProductionOrder, error) {
	var found *production_order.ProductionOrder
	r.s.read(func(d *state) {
		for _, po := range d.productionOrders {
			if po.OrderID == orderID && po.OrderItemID == orderItemID {
				cp := copyProductionOrder(po)
				found = &cp
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("production order", orderItemID.String())
	}
	return found, nil
}

func (r *ProductionOrderRepo) ListByOrder(_ context.Context, orderID id.ID) ([]*production_order.ProductionOrder, error) {
	out := make([]*production_order.ProductionOrder, 0)
	r.s.read(func(d *state) {
		for _, po := range d.productionOrders {
			if po.OrderID == orderID {
				cp := copyProductionOrder(po)
				out = append(out, &cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *production_order.ProductionOrder) int {
		return strings.Compare(a.Number, b.Number)
	})
	return out, nil
}

func (r *ProductionOrderRepo) Update(_ context.Context, po *production_order.ProductionOrder) error {
	return r.s.write(func(d *state) error {
		stored, ok := d.productionOrders[po.ID]
		if !ok {
			return apperror.NewNotFound("production order", po.ID.String())
		}
		if stored.Version != po.Version-1 {
			return apperror.NewConcurrentModification("production order", po.ID.String())
		}
		cp := copyProductionOrder(*po)
		cp.UpdatedAt = time.Now().UTC()
		d.productionOrders[po.ID] = cp
		return nil
	})
}
