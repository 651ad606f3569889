// Package sink is the single write path for interaction events: enrichment,
// durable recording, then optional fan-out. Protocol services depend only on
// the Recorder interface.
package sink

import (
	"context"
	"log/slog"

	"github.com/sgerhart/decoynet/internal/geoip"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/store"
)

// Recorder accepts completed interaction events from the protocol services.
type Recorder interface {
	Record(ctx context.Context, ev *model.Event)
}

// EventPublisher is the optional fan-out half of the pipeline.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *model.Event) error
}

// EventSink annotates each event with the source country, appends it to the
// event store, and publishes it when a publisher is configured. No step may
// block or fail the ones before it.
type EventSink struct {
	store     *store.Store
	geo       geoip.Resolver
	publisher EventPublisher
	logger    *slog.Logger
}

var _ Recorder = (*EventSink)(nil)

// New creates an EventSink. geo may be nil (no-op resolver) and publisher may
// be nil (no fan-out).
func New(st *store.Store, geo geoip.Resolver, publisher EventPublisher, logger *slog.Logger) *EventSink {
	if geo == nil {
		geo = geoip.NoopResolver{}
	}
	return &EventSink{
		store:     st,
		geo:       geo,
		publisher: publisher,
		logger:    logger,
	}
}

// Record implements Recorder.
func (s *EventSink) Record(ctx context.Context, ev *model.Event) {
	ev.SetMeta("country", s.geo.Country(ev.SourceIP))

	s.store.Append(ctx, ev)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		s.logger.Warn("Event publish failed", "error", err, "session_id", ev.SessionID)
	}
}
