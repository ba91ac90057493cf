// Package purchase_receipt books purchased materials into the lot ledger.
package purchase_receipt

import (
	"strings"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/costing"
	"packcore/internal/domain/registers/lots"
)

// Receipt is a supplier delivery. Each line becomes one lot.
type Receipt struct {
	Supplier          string `json:"supplier"`
	SupplierDocNumber string `json:"supplierDocNumber"`
	Lines             []Line `json:"lines"`
}

// Line is one received material.
type Line struct {
	MaterialID id.ID          `json:"materialId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitCost   types.Money    `json:"unitCost"`
}

// Validate checks receipt invariants.
func (r *Receipt) Validate() error {
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	for i, line := range r.Lines {
		req := lots.CreateLotRequest{MaterialID: line.MaterialID, Quantity: line.Quantity, UnitCost: line.UnitCost}
		if err := req.Validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// sourceRef is what the created lots point back to.
func (r *Receipt) sourceRef() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(r.Supplier); s != "" {
		parts = append(parts, s)
	}
	if n := strings.TrimSpace(r.SupplierDocNumber); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, "/")
}

// LineResult is the lot created for a line and its cost check.
type LineResult struct {
	Lot        *lots.Lot                    `json:"lot"`
	Divergence *costing.CostDivergenceAlert `json:"divergence,omitempty"`
}

// Result reports a booked receipt.
type Result struct {
	Lines []LineResult `json:"lines"`
}
