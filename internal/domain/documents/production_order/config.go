package production_order

import "packcore/internal/core/numerator"

const (
	// NumberPrefix is the document number prefix (OP-2026-00001).
	NumberPrefix = "OP"

	// NumeratorStrategy: production orders are audited, so numbers must be gapless.
	NumeratorStrategy = numerator.StrategyStrict
)
