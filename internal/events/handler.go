// internal/events/handler.go
package events

import (
	"context"

	"github.com/google/uuid"
)

// Publisher is the narrow interface event producers depend on.
type Publisher interface {
	Publish(event Event) error
}

// Handler consumes committed events. Handle runs on the publishing
// goroutine, in sequence order, and must not publish or subscribe.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is one handler's registration on a Bus.
type Subscription struct {
	id      uuid.UUID
	bus     *Bus
	handler Handler
	types   map[EventType]bool // empty selects every type
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id.String()
}

func (s *Subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Cancel removes the subscription. Calling it again is a no-op.
func (s *Subscription) Cancel() {
	s.bus.remove(s.id)
}
