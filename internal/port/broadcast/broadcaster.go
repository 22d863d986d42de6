// Package broadcast defines the port for pushing domain events to connected clients.
package broadcast

import (
	"context"

	"github.com/Strob0t/TuneForge/internal/domain/event"
)

// Broadcaster delivers an event to the clients allowed to see it.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev event.Event)
}
