// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/messagequeue"
)

// EventBus fans domain events out to websocket clients. With a queue, events
// travel through it so every instance's hub sees them; without one they go
// straight to the local hub.
type EventBus struct {
	queue messagequeue.Queue
	local broadcast.Broadcaster
}

var _ broadcast.Broadcaster = (*EventBus)(nil)

// NewEventBus creates an event bus. queue may be nil.
func NewEventBus(queue messagequeue.Queue, local broadcast.Broadcaster) *EventBus {
	return &EventBus{queue: queue, local: local}
}

// Broadcast publishes ev. A failed publish falls back to the local hub so
// clients on this instance still see it.
func (b *EventBus) Broadcast(ctx context.Context, ev event.Event) {
	if b.queue == nil {
		b.local.Broadcast(ctx, ev)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal event", "type", ev.Type, "error", err)
		return
	}
	if err := b.queue.Publish(ctx, ev.Subject(), data); err != nil {
		slog.Warn("event publish failed, delivering locally", "type", ev.Type, "error", err)
		b.local.Broadcast(ctx, ev)
	}
}

// Relay forwards every event arriving on the queue to the local hub until
// the returned cancel function is called. It is a no-op without a queue.
func (b *EventBus) Relay(ctx context.Context) (func(), error) {
	if b.queue == nil {
		return func() {}, nil
	}
	return b.queue.Subscribe(ctx, event.SubjectAll, func(ctx context.Context, _ string, data []byte) error {
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		b.local.Broadcast(ctx, ev)
		return nil
	})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, event.Event) {}

// orNop substitutes a no-op broadcaster for nil.
func orNop(b broadcast.Broadcaster) broadcast.Broadcaster {
	if b == nil {
		return nopBroadcaster{}
	}
	return b
}

// emit broadcasts a freshly stamped event.
func emit(ctx context.Context, b broadcast.Broadcaster, typ event.Type, ownerID, workspaceID, resourceID string) {
	b.Broadcast(ctx, event.Event{
		Type:        typ,
		OwnerID:     ownerID,
		WorkspaceID: workspaceID,
		ResourceID:  resourceID,
		At:          time.Now().UTC(),
	})
}
