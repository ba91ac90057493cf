// Package numerator defines document numbering (OP-2026-00001) and its strategies.
package numerator

import (
	"context"
	"time"
)

// Generator hands out the next document number for a prefix and period.
//
// With StrategyStrict the number is taken inside the caller's transaction,
// so a rolled-back document leaves no gap.
type Generator interface {
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}
