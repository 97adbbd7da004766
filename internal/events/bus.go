// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus is closed")

// Bus delivers committed ledger events to subscribers synchronously, in
// subscription order, before Publish returns.
//
// Sequence numbers must increase. An event at or below the last delivered
// sequence is a replay and is dropped, so stores behind the bus see every
// sequence at most once and always in order.
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	last   uint64
	closed bool
	logger *zap.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger.Named("event_bus")}
}

// Subscribe registers handler for the given types, or for every type when
// none are given.
func (b *Bus) Subscribe(handler Handler, types ...EventType) *Subscription {
	sub := &Subscription{id: uuid.New(), bus: b, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("subscription_id", sub.ID()),
		zap.Int("event_types", len(types)))
	return sub
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(fn func(context.Context, Event) error, types ...EventType) *Subscription {
	return b.Subscribe(HandlerFunc(fn), types...)
}

// Resume makes delivery continue after seq, typically the last sequence a
// store already holds. It never moves the position backwards.
func (b *Bus) Resume(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq > b.last {
		b.last = seq
	}
}

// Last returns the last delivered sequence.
func (b *Bus) Last() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Publish delivers event to every matching subscriber.
func (b *Bus) Publish(event Event) error {
	return b.PublishContext(context.Background(), event)
}

// PublishContext is Publish with a context handed to the handlers. Every
// matching handler runs even if an earlier one fails; the failures are
// joined into the returned error.
func (b *Bus) PublishContext(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	seq := event.Sequence()
	if seq <= b.last {
		b.logger.Warn("Replayed event dropped",
			zap.String("event_type", string(event.Type())),
			zap.Uint64("seq", seq),
			zap.Uint64("last", b.last))
		return nil
	}
	b.last = seq

	var errs []error
	for _, sub := range b.subs {
		if !sub.wants(event.Type()) {
			continue
		}
		if err := sub.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("seq", seq),
				zap.String("subscription_id", sub.ID()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s *Subscription) bool { return s.id == id })
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscription. Later publishes fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.subs = nil
	b.logger.Debug("Event bus closed", zap.Uint64("last_seq", b.last))
}
