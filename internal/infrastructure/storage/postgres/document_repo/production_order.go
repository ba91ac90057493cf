package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/infrastructure/storage/postgres"
)

const productionOrdersTable = "production_orders"

// ProductionOrderRepo implements production_order.Repository.
type ProductionOrderRepo struct {
	*BaseDocumentRepo[*production_order.ProductionOrder]
}

var _ production_order.Repository = (*ProductionOrderRepo)(nil)

// NewProductionOrderRepo creates a new production order repository.
func NewProductionOrderRepo(txManager *postgres.TxManager) *ProductionOrderRepo {
	return &ProductionOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txManager, productionOrdersTable, "production order",
			func() *production_order.ProductionOrder { return &production_order.ProductionOrder{} }),
	}
}

// Create relies on UNIQUE (order_id, order_item_id); a second order for the
// same item fails with a duplicate error.
func (r *ProductionOrderRepo) Create(ctx context.Context, po *production_order.ProductionOrder) error {
	if po.Allocations == nil {
		po.Allocations = []production_order.Allocation{}
	}
	return r.insert(ctx, po)
}

func (r *ProductionOrderRepo) GetByID(ctx context.Context, poID id.ID) (*production_order.ProductionOrder, error) {
	return r.getHeader(ctx, poID, false)
}

func (r *ProductionOrderRepo) GetForUpdate(ctx context.Context, poID id.ID) (*production_order.ProductionOrder, error) {
	return r.getHeader(ctx, poID, true)
}

func (r *ProductionOrderRepo) FindByOrderItem(ctx context.Context, orderID, orderItemID id.ID) (*production_order.ProductionOrder, error) {
	found, err := r.list(ctx, r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID, "order_item_id": orderItemID}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperror.NewNotFound(r.entityName, orderItemID.String())
	}
	return found[0], nil
}

func (r *ProductionOrderRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*production_order.ProductionOrder, error) {
	return r.list(ctx, r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("number"))
}

func (r *ProductionOrderRepo) Update(ctx context.Context, po *production_order.ProductionOrder) error {
	return r.updateVersioned(ctx, po.ID, po.Version, map[string]any{
		"status":      po.Status,
		"allocations": po.Allocations,
	})
}
