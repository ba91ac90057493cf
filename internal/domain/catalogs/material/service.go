package material

import (
	"context"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/domain"
)

// Service provides business logic for the Material catalog.
type Service struct {
	*domain.CatalogService[*Material]
	repo Repository
}

// NewService creates a new Material service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Material]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "material",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}
	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate rejects opening balances and duplicate codes.
func (s *Service) prepareForCreate(ctx context.Context, m *Material) error {
	if !m.StockQty.IsZero() {
		return apperror.NewValidation("stock is created by receiving lots, not on the material").
			WithDetail("field", "stockQty")
	}
	if m.Code == "" {
		return nil
	}
	if _, err := s.repo.GetByCode(ctx, m.Code); err == nil {
		return apperror.NewDuplicate("material", "code", m.Code)
	} else if !apperror.IsNotFound(err) {
		return err
	}
	return nil
}

// List returns materials ordered by code.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*Material, error) {
	return s.repo.List(ctx, filter.Normalize())
}

// CostHistory returns the administrative cost changes of a material, newest first.
func (s *Service) CostHistory(ctx context.Context, materialID id.ID) ([]CostHistoryEntry, error) {
	if _, err := s.GetByID(ctx, materialID); err != nil {
		return nil, err
	}
	return s.repo.ListCostHistory(ctx, materialID)
}
