package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"packcore/internal/infrastructure/storage/postgres"
)

// DefaultStream is the stream outbox events are appended to.
const DefaultStream = "packcore:events"

// StreamPublisher delivers outbox messages to a Redis stream.
type StreamPublisher struct {
	rdb    *goredis.Client
	stream string
	maxLen int64
}

var _ postgres.OutboxHandler = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher. maxLen caps the stream approximately; zero disables trimming.
func NewStreamPublisher(rdb *goredis.Client, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Handle implements postgres.OutboxHandler.
func (p *StreamPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"id":             msg.ID.String(),
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID.String(),
			"event_type":     msg.EventType,
			"payload":        string(msg.Payload),
			"created_at":     msg.CreatedAt.UnixMilli(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
