package sales_order

import (
	"fmt"
	"time"

	"packcore/internal/core/numerator"
)

const (
	// NumberPrefix for sales order numbers (PV-2026-00001)
	NumberPrefix = "PV"

	// NumeratorStrategy for sales orders; gaps from abandoned quotes are fine
	NumeratorStrategy = numerator.StrategyCached
)

// ResalePolicy decides what a resale stock shortage does to an approval.
type ResalePolicy string

const (
	// ResaleHard aborts the approval and rolls everything back
	ResaleHard ResalePolicy = "hard"
	// ResaleSoft skips the item with a warning and approves the order
	ResaleSoft ResalePolicy = "soft"
)

// ParseResalePolicy parses "hard" or "soft". Empty means hard.
func ParseResalePolicy(s string) (ResalePolicy, error) {
	switch ResalePolicy(s) {
	case "", ResaleHard:
		return ResaleHard, nil
	case ResaleSoft:
		return ResaleSoft, nil
	default:
		return "", fmt.Errorf("unknown resale shortage policy %q", s)
	}
}

// ApprovalPolicy configures the approval pipeline.
type ApprovalPolicy struct {
	ResaleShortage ResalePolicy

	// LeaseTTL bounds how long one approval may hold the order lease
	LeaseTTL time.Duration

	// DefaultLeadTimeDays is used when neither order nor product sets one
	DefaultLeadTimeDays int
}

// DefaultApprovalPolicy returns the production defaults.
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{
		ResaleShortage:      ResaleHard,
		LeaseTTL:            30 * time.Second,
		DefaultLeadTimeDays: 7,
	}
}

// Fields returns the policy as logger key/value pairs.
func (p ApprovalPolicy) Fields() []any {
	return []any{
		"resale_shortage", string(p.ResaleShortage),
		"lease_ttl", p.LeaseTTL.String(),
		"default_lead_time_days", p.DefaultLeadTimeDays,
	}
}
