package entity

import (
	"fmt"
	"time"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
)

// MovementType classifies a stock change.
type MovementType string

const (
	// MovementEntry increases stock (purchase receipt)
	MovementEntry MovementType = "entry"
	// MovementExit decreases stock of finished goods (sale)
	MovementExit MovementType = "exit"
	// MovementProduction decreases raw material stock consumed by manufacturing
	MovementProduction MovementType = "production"
	// MovementAdjustment is a manual correction in either direction
	MovementAdjustment MovementType = "adjustment"
)

// ItemKind says which catalog a movement's item belongs to.
type ItemKind string

const (
	ItemMaterial ItemKind = "material"
	ItemProduct  ItemKind = "product"
)

// Movement is an append-only record of one stock change.
// Movements are never updated or deleted.
type Movement struct {
	ID       id.ID        `db:"id" json:"id"`
	Type     MovementType `db:"movement_type" json:"type"`
	ItemKind ItemKind     `db:"item_kind" json:"itemKind"`
	ItemID   id.ID        `db:"item_id" json:"itemId"`

	// LotID is set when the change is attributed to a material lot
	LotID *id.ID `db:"lot_id" json:"lotId,omitempty"`

	QtyBefore types.Quantity `db:"qty_before" json:"qtyBefore"`
	QtyDelta  types.Quantity `db:"qty_delta" json:"qtyDelta"`
	QtyAfter  types.Quantity `db:"qty_after" json:"qtyAfter"`

	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	Reason string `db:"reason" json:"reason"`

	// Reference is a free-text pointer to the originating document
	Reference string `db:"reference" json:"reference,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewMovement builds a movement from the balance before the change and the signed delta.
func NewMovement(kind ItemKind, itemID id.ID, mt MovementType, before, delta types.Quantity, reason, reference string) Movement {
	return Movement{
		ID:        id.New(),
		Type:      mt,
		ItemKind:  kind,
		ItemID:    itemID,
		QtyBefore: before,
		QtyDelta:  delta,
		QtyAfter:  before + delta,
		Reason:    reason,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
}

// WithLot attributes the movement to a lot drawn at unitCost.
func (m Movement) WithLot(lotID id.ID, unitCost types.Money) Movement {
	m.LotID = &lotID
	m.UnitCost = &unitCost
	return m
}

// Validate checks the arithmetic and direction of the movement.
func (m *Movement) Validate() error {
	if id.IsNil(m.ItemID) {
		return apperror.NewValidation("movement item is required")
	}
	if m.ItemKind != ItemMaterial && m.ItemKind != ItemProduct {
		return apperror.NewValidation(fmt.Sprintf("unknown item kind %q", m.ItemKind))
	}
	if m.QtyDelta.IsZero() {
		return apperror.NewValidation("movement delta must not be zero")
	}
	if m.QtyAfter != m.QtyBefore+m.QtyDelta {
		return apperror.NewValidation("qty_after must equal qty_before + qty_delta").
			WithDetail("qty_before", m.QtyBefore.String()).
			WithDetail("qty_delta", m.QtyDelta.String()).
			WithDetail("qty_after", m.QtyAfter.String())
	}
	if m.QtyAfter.IsNegative() {
		return apperror.NewValidation("movement would leave negative stock").
			WithDetail("qty_after", m.QtyAfter.String())
	}

	switch m.Type {
	case MovementEntry:
		if !m.QtyDelta.IsPositive() {
			return apperror.NewValidation("entry movement must increase stock")
		}
	case MovementExit, MovementProduction:
		if !m.QtyDelta.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("%s movement must decrease stock", m.Type))
		}
	case MovementAdjustment:
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", m.Type))
	}
	return nil
}
