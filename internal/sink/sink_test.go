package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/decoynet/internal/geoip"
	"github.com/sgerhart/decoynet/internal/model"
	"github.com/sgerhart/decoynet/internal/store"
)

type memBackend struct {
	mu     sync.Mutex
	nextID int64
}

func (b *memBackend) Insert(ctx context.Context, ev *model.Event) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID, nil
}

func (b *memBackend) Query(ctx context.Context, f store.Filter) ([]*model.Event, error) {
	return nil, nil
}

func (b *memBackend) Flush(ctx context.Context) error { return nil }
func (b *memBackend) Close() error                    { return nil }

type stubPublisher struct {
	mu        sync.Mutex
	published []*model.Event
	err       error
}

func (p *stubPublisher) PublishEvent(ctx context.Context, ev *model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ev)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEvent() *model.Event {
	return &model.Event{
		SessionID:      "session-1",
		Timestamp:      time.Now().UTC(),
		Service:        model.ServiceWeb,
		RequestType:    "GET",
		Target:         "/",
		SourceIP:       "198.51.100.7",
		SourcePort:     50000,
		Classification: model.ClassificationHuman,
	}
}

func TestRecord_AnnotatesCountry(t *testing.T) {
	st := store.New(&memBackend{}, 16, testLogger())
	geo := geoip.StaticResolver{"198.51.100.7": "FR"}
	s := New(st, geo, nil, testLogger())

	ev := testEvent()
	s.Record(context.Background(), ev)

	assert.Equal(t, "FR", ev.Metadata["country"])

	recent := st.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, ev, recent[0])
}

func TestRecord_UnknownCountryByDefault(t *testing.T) {
	st := store.New(&memBackend{}, 16, testLogger())
	s := New(st, nil, nil, testLogger())

	ev := testEvent()
	s.Record(context.Background(), ev)

	assert.Equal(t, geoip.UnknownCountry, ev.Metadata["country"])
}

func TestRecord_PublishesWhenConfigured(t *testing.T) {
	st := store.New(&memBackend{}, 16, testLogger())
	pub := &stubPublisher{}
	s := New(st, nil, pub, testLogger())

	s.Record(context.Background(), testEvent())

	require.Len(t, pub.published, 1)
	assert.Equal(t, "session-1", pub.published[0].SessionID)
}

func TestRecord_PublishFailureIsRecoverable(t *testing.T) {
	st := store.New(&memBackend{}, 16, testLogger())
	pub := &stubPublisher{err: fmt.Errorf("broker down")}
	s := New(st, nil, pub, testLogger())

	// Must not panic, and the event must still reach the store.
	s.Record(context.Background(), testEvent())
	assert.Len(t, st.Recent(0), 1)
}
