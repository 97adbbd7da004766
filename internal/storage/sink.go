package storage

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"go.uber.org/zap"
)

// Sink appends every event it receives to a store.
type Sink struct {
	store  Store
	logger *zap.Logger
}

// NewSink creates a sink writing to store.
func NewSink(store Store, logger *zap.Logger) *Sink {
	return &Sink{store: store, logger: logger.Named("sink")}
}

// Attach subscribes the sink to every event on bus.
func (s *Sink) Attach(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(s)
}

// Handle implements events.Handler.
func (s *Sink) Handle(ctx context.Context, ev events.Event) error {
	rec, err := models.FromEvent(ev)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("persist event %d: %w", rec.Seq, err)
	}
	s.logger.Debug("Event persisted",
		zap.String("event_type", string(rec.Type)),
		zap.Uint64("seq", rec.Seq))
	return nil
}
