// Package notify subscribes to PostgreSQL LISTEN/NOTIFY channels on a
// dedicated connection and turns notifications into wake-up signals.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"packcore/pkg/logger"
)

// OutboxChannel is notified when outbox messages are committed.
const OutboxChannel = "outbox_pending"

// Handler receives one notification. It runs on the listener goroutine.
type Handler func(channel, payload string)

// Listener keeps a LISTEN connection open and reconnects when it drops.
type Listener struct {
	pool     *pgxpool.Pool
	channels []string
	handler  Handler

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewListener creates a listener for channels.
func NewListener(pool *pgxpool.Pool, handler Handler, channels ...string) *Listener {
	return &Listener{pool: pool, channels: channels, handler: handler}
}

// Start begins listening in the background. Calling it twice is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	if len(l.channels) == 0 {
		return fmt.Errorf("no channels to listen on")
	}

	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return nil
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop(ctx)
	return nil
}

// Stop cancels the listener and waits for it to exit.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
}

func (l *Listener) listenLoop(ctx context.Context) {
	defer l.wg.Done()

	for ctx.Err() == nil {
		conn, err := l.pool.Acquire(ctx)
		if err != nil {
			logger.Error(ctx, "failed to acquire connection for LISTEN", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		stmts := make([]string, 0, len(l.channels))
		for _, ch := range l.channels {
			stmts = append(stmts, "LISTEN "+ch)
		}
		if _, err := conn.Exec(ctx, strings.Join(stmts, "; ")); err != nil {
			logger.Error(ctx, "failed to LISTEN", "error", err)
			conn.Release()
			sleep(ctx, time.Second)
			continue
		}
		logger.Info(ctx, "listening for notifications", "channels", l.channels)

		l.wait(ctx, conn)
		// the session may still be subscribed; do not return it to the pool
		conn.Hijack().Close(context.WithoutCancel(ctx))
	}
}

func (l *Listener) wait(ctx context.Context, conn *pgxpool.Conn) {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()

		switch {
		case ctx.Err() != nil:
			return
		case err != nil && waitCtx.Err() != nil:
			// idle timeout, keep waiting
			continue
		case err != nil:
			logger.Warn(ctx, "LISTEN connection lost", "error", err)
			return
		}

		logger.Debug(ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		l.handler(n.Channel, n.Payload)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Signal returns a handler that performs a non-blocking send on wake.
// Bursts of notifications collapse into one pending signal.
func Signal(wake chan<- struct{}) Handler {
	return func(string, string) {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}
