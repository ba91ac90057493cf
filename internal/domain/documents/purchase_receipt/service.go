package purchase_receipt

import (
	"context"

	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/core/types"
	"packcore/internal/domain/costing"
	"packcore/internal/domain/registers/lots"
	"packcore/pkg/logger"
)

// LotCreator appends lots to the ledger.
type LotCreator interface {
	CreateLot(ctx context.Context, req lots.CreateLotRequest) (*lots.Lot, error)
}

// CostChecker compares lot costs with administrative costs.
type CostChecker interface {
	CheckDivergence(ctx context.Context, materialID id.ID, lotCost types.Money) (*costing.CostDivergenceAlert, error)
}

// Service books purchase receipts.
type Service struct {
	ledger    LotCreator
	costs     CostChecker
	txManager tx.Manager
}

// NewService creates a new purchase receipt service.
func NewService(ledger LotCreator, costs CostChecker, txManager tx.Manager) *Service {
	return &Service{ledger: ledger, costs: costs, txManager: txManager}
}

// Receive creates one lot per line in a single transaction, then reports
// lines whose unit cost diverges from the administrative cost.
// A divergence never blocks the receipt.
func (s *Service) Receive(ctx context.Context, receipt Receipt) (*Result, error) {
	if err := receipt.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Lines: make([]LineResult, 0, len(receipt.Lines))}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res.Lines = res.Lines[:0]
		for _, line := range receipt.Lines {
			lot, err := s.ledger.CreateLot(ctx, lots.CreateLotRequest{
				MaterialID: line.MaterialID,
				Quantity:   line.Quantity,
				UnitCost:   line.UnitCost,
				SourceRef:  receipt.sourceRef(),
			})
			if err != nil {
				return err
			}
			res.Lines = append(res.Lines, LineResult{Lot: lot})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range res.Lines {
		lot := res.Lines[i].Lot
		alert, err := s.costs.CheckDivergence(ctx, lot.MaterialID, lot.UnitCost)
		if err != nil {
			logger.Warn(ctx, "cost divergence check failed", "lot_id", lot.ID, "error", err)
			continue
		}
		if alert != nil {
			alert.LotID = &lot.ID
		}
		res.Lines[i].Divergence = alert
	}

	logger.Info(ctx, "purchase receipt booked",
		"supplier", receipt.Supplier,
		"document", receipt.SupplierDocNumber,
		"lots", len(res.Lines))
	return res, nil
}

// ReceivePurchase books a single material line.
func (s *Service) ReceivePurchase(ctx context.Context, materialID id.ID, qty types.Quantity, unitCost types.Money, sourceRef string) (*LineResult, error) {
	res, err := s.Receive(ctx, Receipt{
		SupplierDocNumber: sourceRef,
		Lines:             []Line{{MaterialID: materialID, Quantity: qty, UnitCost: unitCost}},
	})
	if err != nil {
		return nil, err
	}
	return &res.Lines[0], nil
}
