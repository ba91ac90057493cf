package numerator

import (
	"context"
	"time"
)

// MockGenerator is a Generator for tests. Without GetNextNumberFunc it
// returns a fixed number.
type MockGenerator struct {
	GetNextNumberFunc func(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}

var _ Generator = (*MockGenerator)(nil)

// GetNextNumber implements Generator.
func (m *MockGenerator) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if m.GetNextNumberFunc != nil {
		return m.GetNextNumberFunc(ctx, cfg, opts, period)
	}
	return "MOCK-2026-00001", nil
}
