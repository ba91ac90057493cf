// Package id generates entity identifiers.
package id

import "github.com/google/uuid"

// ID identifies materials, lots, orders and every other entity.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, so ids sort by creation.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse validates and parses s.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
