// Package sales_order provides sales orders and their approval pipeline.
package sales_order

import (
	"context"
	"strings"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// Status of a sales order.
type Status string

const (
	StatusPending          Status = "pendente"
	StatusQuote            Status = "orcamento"
	StatusApproved         Status = "aprovado"
	StatusInProduction     Status = "producao"
	StatusFinished         Status = "finalizado"
	StatusAwaitingDispatch Status = "aguardando_despacho"
	StatusDelivered        Status = "entregue"
	StatusCancelled        Status = "cancelado"
	StatusRejected         Status = "recusado"
)

// transitions is the allow-list. Cancelled and rejected are added for every
// non-terminal state by CanTransitionTo.
var transitions = map[Status][]Status{
	StatusPending:          {StatusApproved},
	StatusQuote:            {StatusApproved},
	StatusApproved:         {StatusInProduction},
	StatusInProduction:     {StatusFinished},
	StatusFinished:         {StatusAwaitingDispatch},
	StatusAwaitingDispatch: {StatusDelivered},
}

// IsTerminal reports whether the order can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRejected
}

// IsPending reports whether the order still awaits approval.
func (s Status) IsPending() bool {
	return s == StatusPending || s == StatusQuote
}

// IsApproved reports whether approval side effects have already happened.
func (s Status) IsApproved() bool {
	switch s {
	case StatusApproved, StatusInProduction, StatusFinished, StatusAwaitingDispatch, StatusDelivered:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.IsPending() || s.IsApproved() || s == StatusCancelled || s == StatusRejected
}

// CanTransitionTo reports whether to is on the allow-list from s.
func (s Status) CanTransitionTo(to Status) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusRejected {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Tipo distinguishes quotes from firm orders.
type Tipo string

const (
	TipoQuote          Tipo = "orcamento"
	TipoOrder          Tipo = "pedido"
	TipoConfirmedQuote Tipo = "pedido_confirmado"
)

// Item is one line of a sales order.
type Item struct {
	ID        id.ID        `db:"id" json:"id"`
	OrderID   id.ID        `db:"order_id" json:"orderId"`
	LineNo    int          `db:"line_no" json:"lineNo"`
	ProductID id.ID        `db:"product_id" json:"productId"`
	Quantity  ItemQuantity `db:"-" json:"quantity"`
	UnitPrice types.Money  `db:"unit_price" json:"unitPrice"`
}

// Order is a sales order or quote.
type Order struct {
	entity.Document

	Customer string `db:"customer" json:"customer"`
	Tipo     Tipo   `db:"tipo" json:"tipo"`
	Status   Status `db:"status" json:"status"`

	// LeadTimeDays overrides the products' lead time when positive
	LeadTimeDays int `db:"lead_time_days" json:"leadTimeDays"`

	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// NewOrder creates an order. Quotes start as orcamento, orders as pendente.
func NewOrder(customer string, tipo Tipo) *Order {
	status := StatusPending
	if tipo == TipoQuote {
		status = StatusQuote
	}
	return &Order{
		Document: entity.NewDocument(),
		Customer: customer,
		Tipo:     tipo,
		Status:   status,
		Items:    make([]Item, 0),
	}
}

// AddItem appends a line to the order.
func (o *Order) AddItem(productID id.ID, qty ItemQuantity, unitPrice types.Money) *Item {
	o.Items = append(o.Items, Item{
		ID:        id.New(),
		OrderID:   o.ID,
		LineNo:    len(o.Items) + 1,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: unitPrice,
	})
	return &o.Items[len(o.Items)-1]
}

// Validate implements entity.Validatable interface.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(o.Customer) == "" {
		return apperror.NewValidation("customer is required").WithDetail("field", "customer")
	}
	if o.Tipo != TipoQuote && o.Tipo != TipoOrder && o.Tipo != TipoConfirmedQuote {
		return apperror.NewValidation("invalid order type").WithDetail("value", string(o.Tipo))
	}
	if !o.Status.Valid() {
		return apperror.NewValidation("invalid order status").WithDetail("value", string(o.Status))
	}
	if o.LeadTimeDays < 0 {
		return apperror.NewValidation("lead time cannot be negative").WithDetail("field", "leadTimeDays")
	}
	if len(o.Items) == 0 {
		return apperror.NewValidation("order has no items").WithDetail("field", "items")
	}
	for i, item := range o.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("line", i+1)
		}
		if err := item.Quantity.Validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("line", i+1)
			}
			return err
		}
		if item.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").WithDetail("line", i+1)
		}
	}
	return nil
}

// TransitionTo moves the order to a non-approval status.
func (o *Order) TransitionTo(to Status) error {
	if !o.Status.CanTransitionTo(to) {
		return apperror.NewInvalidTransition("sales order", string(o.Status), string(to))
	}
	o.Status = to
	o.Touch()
	return nil
}

// markApproved applies the status side of approval: status, tipo and timestamp.
func (o *Order) markApproved(at time.Time) error {
	if !o.Status.CanTransitionTo(StatusApproved) {
		return apperror.NewInvalidTransition("sales order", string(o.Status), string(StatusApproved))
	}
	o.Status = StatusApproved
	if o.Tipo == TipoQuote {
		o.Tipo = TipoConfirmedQuote
	}
	o.ApprovedAt = &at
	o.Touch()
	return nil
}
