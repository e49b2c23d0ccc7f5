package eventbus

import (
	"context"
	"log/slog"
)

// Event is anything a bus can route by type name.
type Event interface {
	Type() string
}

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus defines the contract for publishing and subscribing to domain events.
type Bus interface {
	Emit(ctx context.Context, event Event) error
	Register(eventType string, handler HandlerFunc)
}

// EmitAll publishes events once their transaction has committed. The state
// change already happened, so a failed emit is logged and not returned.
func EmitAll(ctx context.Context, bus Bus, logger *slog.Logger, events ...Event) {
	if bus == nil {
		return
	}
	for _, e := range events {
		if err := bus.Emit(ctx, e); err != nil {
			logger.Error("event emit failed", "event", e.Type(), "error", err)
		}
	}
}
