package entity

import (
	"context"
	"strings"

	"packcore/internal/core/apperror"
)

// Catalog is the base type for reference data (materials, products).
type Catalog struct {
	BaseEntity

	// Code is a human-readable identifier, unique per catalog
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	// Unit of measure the stock is kept in (kg, m, un)
	Unit string `db:"unit" json:"unit"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(code, name, unit string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Code:       code,
		Name:       name,
		Unit:       unit,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if strings.TrimSpace(c.Unit) == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}
	return nil
}
