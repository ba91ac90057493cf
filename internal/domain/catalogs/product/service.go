package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"packcore/internal/core/apperror"
	"packcore/internal/core/id"
	"packcore/internal/core/tx"
	"packcore/internal/domain"
	"packcore/internal/domain/catalogs/material"
	"packcore/pkg/logger"
)

// MaterialReader is the part of the material catalog recipes need.
type MaterialReader interface {
	GetByID(ctx context.Context, id id.ID) (*material.Material, error)
}

// Service provides business logic for products and their recipes.
type Service struct {
	*domain.CatalogService[*Product]
	repo      Repository
	materials MaterialReader
	txManager tx.Manager
}

// NewService creates a new Product service.
func NewService(repo Repository, materials MaterialReader, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		materials:      materials,
		txManager:      txManager,
	}
	base.Hooks().OnBeforeCreate(svc.checkCodeUnique)

	return svc
}

func (s *Service) checkCodeUnique(ctx context.Context, p *Product) error {
	if p.Code == "" {
		return nil
	}
	if _, err := s.repo.GetByCode(ctx, p.Code); err == nil {
		return apperror.NewDuplicate("product", "code", p.Code)
	} else if !apperror.IsNotFound(err) {
		return err
	}
	return nil
}

// AddRecipeLine attaches a material to a manufactured product's recipe.
// The line's cost is derived from the material's current administrative cost.
func (s *Service) AddRecipeLine(ctx context.Context, productID, materialID id.ID, layers int, consumptionG decimal.Decimal) (*RecipeLine, error) {
	line := &RecipeLine{
		ID:                  id.New(),
		ProductID:           productID,
		MaterialID:          materialID,
		Layers:              layers,
		ConsumptionPerUnitG: consumptionG,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}

	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Kind != KindManufactured {
		return nil, apperror.NewValidation("only manufactured products have recipes").
			WithDetail("product_id", productID.String())
	}

	m, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	line.CostPerUnit = CostPerUnitFor(consumptionG, m.AdminUnitCost)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateRecipeLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "recipe line added",
		"product_id", productID,
		"material_id", materialID,
		"cost_per_unit", line.CostPerUnit.String())

	return line, nil
}

// Recipe returns the recipe lines of a product.
func (s *Service) Recipe(ctx context.Context, productID id.ID) ([]RecipeLine, error) {
	return s.repo.ListRecipe(ctx, productID)
}
