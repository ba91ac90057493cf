package movements

import (
	"context"
	"time"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain"
)

// Repository defines persistence for the movement log.
// There is no update or delete: the log is append-only.
type Repository interface {
	// CreateMovements batch inserts movements within the caller's transaction.
	CreateMovements(ctx context.Context, movements []entity.Movement) error

	// ListMovements returns movements newest first.
	ListMovements(ctx context.Context, filter Filter) ([]entity.Movement, error)

	// GetTurnover sums movements of one item over a period.
	GetTurnover(ctx context.Context, filter TurnoverFilter) (Turnover, error)
}

// Filter selects movements for history queries.
type Filter struct {
	domain.ListFilter

	ItemKind  *entity.ItemKind
	ItemID    *id.ID
	LotID     *id.ID
	Reference string
	Type      *entity.MovementType
	FromDate  *time.Time
	ToDate    *time.Time
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	ItemKind entity.ItemKind
	ItemID   id.ID
	FromDate time.Time
	ToDate   time.Time
}

// Turnover represents increase/decrease totals for a period.
type Turnover struct {
	ItemKind       entity.ItemKind `json:"itemKind"`
	ItemID         id.ID           `json:"itemId"`
	OpeningBalance types.Quantity  `json:"openingBalance"`
	Increase       types.Quantity  `json:"increase"`
	Decrease       types.Quantity  `json:"decrease"`
	ClosingBalance types.Quantity  `json:"closingBalance"`
}
