package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "packcore/internal/core/context"
	"packcore/internal/core/id"
	corenumerator "packcore/internal/core/numerator"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/events"
)

// OutboxMessage is a published event.
type OutboxMessage struct {
	ID            id.ID
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// Outbox implements events.Publisher. Messages of a rolled-back
// transaction disappear with it.
type Outbox struct{ s *Store }

var _ events.Publisher = (*Outbox)(nil)

func (o *Outbox) Publish(_ context.Context, e events.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := OutboxMessage{
		ID:            id.New(),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.Type,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	return o.s.write(func(d *state) error {
		d.outbox = append(d.outbox, msg)
		return nil
	})
}

// Messages returns published messages of the given type, or all when eventType is empty.
func (o *Outbox) Messages(eventType string) []OutboxMessage {
	out := make([]OutboxMessage, 0)
	o.s.read(func(d *state) {
		for _, m := range d.outbox {
			if eventType == "" || m.EventType == eventType {
				out = append(out, m)
			}
		}
	})
	return out
}

// AuditEntry is a recorded change.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     audit.Action
	UserID     string
	Changes    map[string]any
	CreatedAt  time.Time
}

// AuditLog implements audit.Recorder.
type AuditLog struct{ s *Store }

var _ audit.Recorder = (*AuditLog)(nil)

func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	entry := AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
	return a.s.write(func(d *state) error {
		d.audit = append(d.audit, entry)
		return nil
	})
}

// Entries returns the audit entries of one entity.
func (a *AuditLog) Entries(entityID id.ID) []AuditEntry {
	out := make([]AuditEntry, 0)
	a.s.read(func(d *state) {
		for _, e := range d.audit {
			if e.EntityID == entityID {
				out = append(out, e)
			}
		}
	})
	return out
}

// Numerator implements numerator.Generator over in-memory counters.
// Both strategies behave as strict.
type Numerator struct{ s *Store }

var _ corenumerator.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := corenumerator.SequenceKey(cfg, period)
	var next int64
	_ = n.s.write(func(d *state) error {
		d.sequences[key]++
		next = d.sequences[key]
		return nil
	})
	return corenumerator.Format(cfg, period, next), nil
}
