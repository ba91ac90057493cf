// Package audit defines how domain services record who changed what.
package audit

import (
	"context"

	appctx "packcore/internal/core/context"
	"packcore/internal/core/id"
)

// Action is the kind of audited change.
type Action string

const (
	ActionCreate     Action = "create"
	ActionApprove    Action = "approve"
	ActionTransition Action = "transition"
	ActionCostChange Action = "cost_change"
)

// Recorder stores audit entries inside the caller's transaction.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Discard is a Recorder that keeps nothing.
type Discard struct{}

// LogChange implements Recorder.
func (Discard) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }

// EnrichCreatedBy sets *createdBy from the user in ctx when it is empty.
func EnrichCreatedBy(ctx context.Context, createdBy *string) {
	if *createdBy != "" {
		return
	}
	*createdBy = appctx.GetUserID(ctx)
}
