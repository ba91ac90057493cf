package sales_order

import (
	"encoding/json"
	"fmt"
	"math"

	"packcore/internal/core/apperror"
	"packcore/internal/core/types"
)

// QuantityKind tags the shape of an item quantity.
type QuantityKind string

const (
	// QuantitySimple is a plain unit count
	QuantitySimple QuantityKind = "simple"
	// QuantityComposite is pieces × length (rolls, strips)
	QuantityComposite QuantityKind = "composite"
)

// ItemQuantity is either Simple{qty} or Composite{pieces, length}.
// Fields are unexported so only the constructors can build a value.
type ItemQuantity struct {
	kind   QuantityKind
	qty    types.Quantity
	pieces int64
	length types.Quantity
}

// Simple builds a plain quantity.
func Simple(qty types.Quantity) ItemQuantity {
	return ItemQuantity{kind: QuantitySimple, qty: qty}
}

// Composite builds a pieces × length quantity.
func Composite(pieces int64, length types.Quantity) ItemQuantity {
	return ItemQuantity{kind: QuantityComposite, pieces: pieces, length: length}
}

// Kind returns the variant tag.
func (q ItemQuantity) Kind() QuantityKind { return q.kind }

// Pieces returns the piece count of a composite quantity.
func (q ItemQuantity) Pieces() int64 { return q.pieces }

// Length returns the per-piece length of a composite quantity.
func (q ItemQuantity) Length() types.Quantity { return q.length }

// Total returns the quantity to deliver or produce.
func (q ItemQuantity) Total() types.Quantity {
	if q.kind == QuantityComposite {
		return q.length * types.Quantity(q.pieces)
	}
	return q.qty
}

// Validate rejects empty and non-positive quantities.
func (q ItemQuantity) Validate() error {
	switch q.kind {
	case QuantitySimple:
		if !q.qty.IsPositive() {
			return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
		}
	case QuantityComposite:
		if q.pieces <= 0 || !q.length.IsPositive() {
			return apperror.NewValidation("pieces and length must be positive").WithDetail("field", "quantity")
		}
		if q.pieces > math.MaxInt64/int64(q.length) {
			return apperror.NewValidation("pieces × length is too large").
				WithDetail("field", "quantity").
				WithDetail("pieces", q.pieces).
				WithDetail("length", q.length.String())
		}
	default:
		return apperror.NewValidation("quantity is required").WithDetail("field", "quantity")
	}
	return nil
}

// Columns returns the storage form: kind, qty, pieces, length.
func (q ItemQuantity) Columns() (QuantityKind, types.Quantity, int64, types.Quantity) {
	return q.kind, q.qty, q.pieces, q.length
}

// QuantityFromColumns rebuilds an ItemQuantity from its storage form.
func QuantityFromColumns(kind QuantityKind, qty types.Quantity, pieces int64, length types.Quantity) (ItemQuantity, error) {
	switch kind {
	case QuantitySimple:
		return Simple(qty), nil
	case QuantityComposite:
		return Composite(pieces, length), nil
	default:
		return ItemQuantity{}, fmt.Errorf("unknown quantity kind %q", kind)
	}
}

type quantityJSON struct {
	Kind   QuantityKind    `json:"kind"`
	Qty    *types.Quantity `json:"qty,omitempty"`
	Pieces *int64          `json:"pieces,omitempty"`
	Length *types.Quantity `json:"length,omitempty"`
}

// MarshalJSON encodes only the fields of the active variant.
func (q ItemQuantity) MarshalJSON() ([]byte, error) {
	out := quantityJSON{Kind: q.kind}
	switch q.kind {
	case QuantitySimple:
		out.Qty = &q.qty
	case QuantityComposite:
		out.Pieces = &q.pieces
		out.Length = &q.length
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {"kind":"simple","qty":..} or
// {"kind":"composite","pieces":..,"length":..}; mixed shapes are rejected.
func (q *ItemQuantity) UnmarshalJSON(data []byte) error {
	var in quantityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch in.Kind {
	case QuantitySimple:
		if in.Qty == nil || in.Pieces != nil || in.Length != nil {
			return fmt.Errorf("simple quantity needs qty only")
		}
		*q = Simple(*in.Qty)
	case QuantityComposite:
		if in.Qty != nil || in.Pieces == nil || in.Length == nil {
			return fmt.Errorf("composite quantity needs pieces and length only")
		}
		*q = Composite(*in.Pieces, *in.Length)
	default:
		return fmt.Errorf("unknown quantity kind %q", in.Kind)
	}
	return nil
}
