// Package store persists interaction events. Every event lands in a bounded
// in-memory ring buffer for fast recent-event queries and, best-effort, in a
// durable backend for historical analysis by external consumers. A failing
// backend degrades the store to memory-only operation; it never takes the
// protocol services down.
package store

import (
	"container/ring"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sgerhart/decoynet/internal/model"
)

// Filter narrows a durable-store query. Zero values mean "no constraint";
// Limit defaults to 1000.
type Filter struct {
	Since          time.Time
	Until          time.Time
	Service        model.Service
	Classification model.Classification
	Tool           string
	Limit          int
}

// Backend is a durable append-only event log.
type Backend interface {
	// Insert writes one event and returns its assigned ID.
	Insert(ctx context.Context, ev *model.Event) (int64, error)
	// Query returns events matching the filter, most recent first.
	Query(ctx context.Context, f Filter) ([]*model.Event, error)
	// Flush forces buffered state to stable storage.
	Flush(ctx context.Context) error
	Close() error
}

// Store combines the memory mirror with a durable backend.
type Store struct {
	mu       sync.Mutex
	mirror   *ring.Ring
	capacity int
	backend  Backend
	logger   *slog.Logger

	droppedWrites int64
}

// New creates a Store with the given mirror capacity.
func New(backend Backend, capacity int, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Store{
		mirror:   ring.New(capacity),
		capacity: capacity,
		backend:  backend,
		logger:   logger,
	}
}

// Append records one event: the memory mirror first, then the durable
// backend. Concurrent appends are serialized so records never interleave.
// A durable-write failure is a recoverable warning, not an error; the event
// stays available from the mirror either way.
func (s *Store) Append(ctx context.Context, ev *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mirror.Value = ev
	s.mirror = s.mirror.Next()

	id, err := s.backend.Insert(ctx, ev)
	if err != nil {
		s.droppedWrites++
		s.logger.Warn("Durable event write failed, retaining event in memory only",
			"error", err,
			"service", ev.Service,
			"source", ev.SourceAddr(),
			"dropped_writes", s.droppedWrites)
		return
	}
	ev.ID = id
}

// Recent returns up to n events from the memory mirror, most recent first.
func (s *Store) Recent(n int) []*model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chronological []*model.Event
	s.mirror.Do(func(value interface{}) {
		if ev, ok := value.(*model.Event); ok {
			chronological = append(chronological, ev)
		}
	})

	if n <= 0 || n > len(chronological) {
		n = len(chronological)
	}

	recent := make([]*model.Event, 0, n)
	for i := len(chronological) - 1; i >= len(chronological)-n; i-- {
		recent = append(recent, chronological[i])
	}
	return recent
}

// Query serves historical reads from the durable backend.
func (s *Store) Query(ctx context.Context, f Filter) ([]*model.Event, error) {
	return s.backend.Query(ctx, f)
}

// DroppedWrites reports how many events failed to reach durable storage.
func (s *Store) DroppedWrites() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedWrites
}

// Flush forces the durable backend to stable storage.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Flush(ctx)
}

// Close releases the durable backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}
