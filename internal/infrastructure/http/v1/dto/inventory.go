package dto

import (
	"time"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/documents/purchase_receipt"
)

// --- Purchase receipts ---

// PurchaseReceiptRequest books a supplier delivery.
type PurchaseReceiptRequest struct {
	Supplier          string                `json:"supplier"`
	SupplierDocNumber string                `json:"supplierDocNumber"`
	Lines             []PurchaseLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PurchaseLineRequest is one received material.
type PurchaseLineRequest struct {
	MaterialID string         `json:"materialId" binding:"required,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	UnitCost   types.Money    `json:"unitCost"`
}

// ToReceipt converts request to the domain receipt.
func (r *PurchaseReceiptRequest) ToReceipt() purchase_receipt.Receipt {
	receipt := purchase_receipt.Receipt{
		Supplier:          r.Supplier,
		SupplierDocNumber: r.SupplierDocNumber,
		Lines:             make([]purchase_receipt.Line, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		materialID, _ := id.Parse(line.MaterialID)
		receipt.Lines = append(receipt.Lines, purchase_receipt.Line{
			MaterialID: materialID,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitCost,
		})
	}
	return receipt
}

// --- Lots ---

// LotListQuery filters the lots of a material.
type LotListQuery struct {
	IncludeExhausted bool `form:"includeExhausted"`
}

// FIFOPreviewQuery asks what consuming a quantity would draw.
type FIFOPreviewQuery struct {
	Quantity string `form:"quantity" binding:"required"`
}

// --- Movements ---

// MovementListQuery filters the movement journal.
type MovementListQuery struct {
	PaginationRequest

	ItemKind  string     `form:"itemKind" binding:"omitempty,oneof=material product"`
	ItemID    string     `form:"itemId" binding:"omitempty,uuid"`
	LotID     string     `form:"lotId" binding:"omitempty,uuid"`
	Reference string     `form:"reference"`
	Type      string     `form:"type" binding:"omitempty,oneof=entry exit production adjustment"`
	FromDate  *time.Time `form:"fromDate" time_format:"2006-01-02T15:04:05Z07:00"`
	ToDate    *time.Time `form:"toDate" time_format:"2006-01-02T15:04:05Z07:00"`
}

// TurnoverQuery selects one item and a period.
type TurnoverQuery struct {
	ItemKind string    `form:"itemKind" binding:"required,oneof=material product"`
	ItemID   string    `form:"itemId" binding:"required,uuid"`
	FromDate time.Time `form:"fromDate" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	ToDate   time.Time `form:"toDate" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ItemKindPtr returns the kind filter or nil.
func (q *MovementListQuery) ItemKindPtr() *entity.ItemKind {
	if q.ItemKind == "" {
		return nil
	}
	k := entity.ItemKind(q.ItemKind)
	return &k
}

// TypePtr returns the movement type filter or nil.
func (q *MovementListQuery) TypePtr() *entity.MovementType {
	if q.Type == "" {
		return nil
	}
	t := entity.MovementType(q.Type)
	return &t
}
