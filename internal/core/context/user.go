// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext identifies the operator behind a request.
// Authentication happens upstream; the core only records who acted.
type UserContext struct {
	UserID string
	Name   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// ActorOr returns the user ID from context, or fallback when the request is anonymous.
func ActorOr(ctx context.Context, fallback string) string {
	if uid := GetUserID(ctx); uid != "" {
		return uid
	}
	return fallback
}
