// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"packcore/internal/core/id"
	"packcore/internal/domain"
)

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// ToListFilter converts pagination to a domain list filter.
func (p PaginationRequest) ToListFilter() domain.ListFilter {
	return domain.ListFilter{Limit: p.Limit, Offset: p.Offset}.Normalize()
}

// --- List Response ---

// ListResponse wraps list results with the page that produced them.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse creates a list response, never encoding items as null.
func NewListResponse[T any](items []T, filter domain.ListFilter) ListResponse[T] {
	if items == nil {
		items = make([]T, 0)
	}
	return ListResponse[T]{Items: items, Limit: filter.Limit, Offset: filter.Offset}
}

// ItemsResponse wraps an unpaginated collection.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// NewItemsResponse creates an unpaginated collection response.
func NewItemsResponse[T any](items []T) ItemsResponse[T] {
	if items == nil {
		items = make([]T, 0)
	}
	return ItemsResponse[T]{Items: items}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}
