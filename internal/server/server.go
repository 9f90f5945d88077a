package server

import (
	"context"
	"log/slog"

	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/scoring"
	"github.com/landscapehq/landscape/internal/store"
)

// Server holds the catalog's collaborators: the store, the in-process event
// bus, the optional NATS mirror, and the completion scorer.
type Server struct {
	store  store.Store
	bus    *events.Bus
	mirror events.Mirror
	scorer *scoring.Scorer
	logger *slog.Logger
}

// NewServer wires the collaborators together. The store is installed as the
// bus recorder so every published event hits the event log before any
// handler runs, and the scorer's handlers are registered on the bus.
func NewServer(st store.Store, bus *events.Bus, mirror events.Mirror, scorer *scoring.Scorer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if mirror == nil {
		mirror = events.NoopMirror{}
	}
	bus.SetRecorder(st.RecordEvent)
	if scorer != nil {
		scorer.Register(bus)
	}
	return &Server{
		store:  st,
		bus:    bus,
		mirror: mirror,
		scorer: scorer,
		logger: logger,
	}
}

// recordAndPublish publishes an event on the bus (which records it to the
// event log, fans it out to live subscribers, and dispatches handlers) and
// mirrors it to NATS. Failures are logged but never block the caller; the
// durable mutation has already committed by the time this runs.
func (s *Server) recordAndPublish(ctx context.Context, in events.PublishInput) {
	evt, err := s.bus.Publish(ctx, in)
	if err != nil {
		s.logger.Warn("failed to publish event",
			"event_type", in.Type, "entity_id", in.EntityID, "error", err)
		return
	}
	if err := s.mirror.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to mirror event",
			"event_type", evt.Type, "entity_id", evt.EntityID, "error", err)
	}
}

// inputError indicates invalid user input.
// The HTTP layer maps this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
