package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/infrastructure/storage/postgres"
)

const (
	salesOrdersTable     = "sales_orders"
	salesOrderItemsTable = "sales_order_items"
)

var itemColumns = []string{
	"id", "order_id", "line_no", "product_id",
	"quantity_kind", "quantity", "pieces", "length", "unit_price",
}

// itemRow is the storage form of sales_order.Item.
type itemRow struct {
	ID           id.ID                    `db:"id"`
	OrderID      id.ID                    `db:"order_id"`
	LineNo       int                      `db:"line_no"`
	ProductID    id.ID                    `db:"product_id"`
	QuantityKind sales_order.QuantityKind `db:"quantity_kind"`
	Quantity     int64                    `db:"quantity"`
	Pieces       int64                    `db:"pieces"`
	Length       int64                    `db:"length"`
	UnitPrice    types.Money              `db:"unit_price"`
}

func (r itemRow) toItem() (sales_order.Item, error) {
	qty, err := sales_order.QuantityFromColumns(r.QuantityKind,
		types.NewQuantityFromInt64Scaled(r.Quantity), r.Pieces, types.NewQuantityFromInt64Scaled(r.Length))
	if err != nil {
		return sales_order.Item{}, fmt.Errorf("item %s: %w", r.ID, err)
	}
	return sales_order.Item{
		ID:        r.ID,
		OrderID:   r.OrderID,
		LineNo:    r.LineNo,
		ProductID: r.ProductID,
		Quantity:  qty,
		UnitPrice: r.UnitPrice,
	}, nil
}

// SalesOrderRepo implements sales_order.Repository.
type SalesOrderRepo struct {
	*BaseDocumentRepo[*sales_order.Order]
}

var _ sales_order.Repository = (*SalesOrderRepo)(nil)

// NewSalesOrderRepo creates a new sales order repository.
func NewSalesOrderRepo(txManager *postgres.TxManager) *SalesOrderRepo {
	return &SalesOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txManager, salesOrdersTable, "sales order",
			func() *sales_order.Order { return &sales_order.Order{} }),
	}
}

// Create stores the header and its items. It must run in a transaction.
func (r *SalesOrderRepo) Create(ctx context.Context, o *sales_order.Order) error {
	if r.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("create sales order requires transaction context")
	}
	if err := r.insert(ctx, o); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}

	q := r.Builder().Insert(salesOrderItemsTable).Columns(itemColumns...)
	for _, it := range o.Items {
		kind, qty, pieces, length := it.Quantity.Columns()
		q = q.Values(it.ID, o.ID, it.LineNo, it.ProductID,
			kind, qty.Int64Scaled(), pieces, length.Int64Scaled(), it.UnitPrice)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "sales order item", "insert")
	}
	return nil
}

func (r *SalesOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*sales_order.Order, error) {
	return r.load(ctx, orderID, false)
}

func (r *SalesOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*sales_order.Order, error) {
	return r.load(ctx, orderID, true)
}

func (r *SalesOrderRepo) load(ctx context.Context, orderID id.ID, forUpdate bool) (*sales_order.Order, error) {
	o, err := r.getHeader(ctx, orderID, forUpdate)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.Builder().
		Select(itemColumns...).
		From(salesOrderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []itemRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get sales order items: %w", err)
	}

	o.Items = make([]sales_order.Item, 0, len(rows))
	for _, row := range rows {
		it, err := row.toItem()
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, nil
}

func (r *SalesOrderRepo) UpdateStatus(ctx context.Context, o *sales_order.Order) error {
	return r.updateVersioned(ctx, o.ID, o.Version, map[string]any{
		"status":      o.Status,
		"tipo":        o.Tipo,
		"approved_at": o.ApprovedAt,
	})
}
