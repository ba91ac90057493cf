// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
)

// --- Filter & Pagination ---

// ListFilter contains common paging options for list operations.
type ListFilter struct {
	Limit  int
	Offset int
}

// Normalize clamps paging values to the allowed range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// --- Repository Interfaces ---

// CatalogRepository defines the persistence operations shared by catalog entities.
type CatalogRepository[T entity.Validatable] interface {
	Create(ctx context.Context, entity T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	GetByCode(ctx context.Context, code string) (T, error)
}

// --- Hooks ---

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate    HookEvent = "before_create"
	AfterCreate     HookEvent = "after_create"
	AfterTransition HookEvent = "after_transition"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// OnBeforeCreate registers a hook to run before create.
func (r *HookRegistry[T]) OnBeforeCreate(hook Hook[T]) { r.On(BeforeCreate, hook) }

// OnAfterCreate registers a hook to run after create.
func (r *HookRegistry[T]) OnAfterCreate(hook Hook[T]) { r.On(AfterCreate, hook) }

// OnAfterTransition registers a hook to run after a status change commits.
func (r *HookRegistry[T]) OnAfterTransition(hook Hook[T]) { r.On(AfterTransition, hook) }
