// Package movements provides the stock movement log.
// Every change to a material's or resale product's stock is recorded here,
// in the same transaction as the change itself.
package movements

import (
	"context"
	"fmt"

	"packcore/internal/core/apperror"
	appctx "packcore/internal/core/context"
	"packcore/internal/core/entity"
	"packcore/pkg/logger"
)

// Service records and queries stock movements.
type Service struct {
	repo Repository
}

// NewService creates a new movement service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record validates and appends movements. Callers run it inside the
// transaction that performs the stock mutation the movements describe.
func (s *Service) Record(ctx context.Context, movements ...entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	actor := appctx.GetUserID(ctx)
	for i := range movements {
		if err := movements[i].Validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("movement_index", i)
			}
			return err
		}
		if movements[i].CreatedBy == "" {
			movements[i].CreatedBy = actor
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements",
		"count", len(movements),
		"item_id", movements[0].ItemID,
		"type", movements[0].Type,
	)

	return nil
}

// History returns movements matching filter, newest first.
func (s *Service) History(ctx context.Context, filter Filter) ([]entity.Movement, error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.ListMovements(ctx, filter)
}

// Turnover returns opening, increase, decrease and closing totals of one item.
func (s *Service) Turnover(ctx context.Context, filter TurnoverFilter) (Turnover, error) {
	if filter.ToDate.Before(filter.FromDate) {
		return Turnover{}, apperror.NewValidation("period end is before period start")
	}
	return s.repo.GetTurnover(ctx, filter)
}
