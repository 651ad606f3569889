package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistoryMap_WindowPurge(t *testing.T) {
	h := newHistoryMap(2*time.Second, 16)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, h.observe("a", base))
	assert.Equal(t, 2, h.observe("a", base.Add(500*time.Millisecond)))
	assert.Equal(t, 3, h.observe("a", base.Add(time.Second)))

	// Three seconds later the earlier entries have aged out.
	assert.Equal(t, 1, h.observe("a", base.Add(4*time.Second)))
}

func TestHistoryMap_LRUBound(t *testing.T) {
	h := newHistoryMap(time.Minute, 2)
	now := time.Now().UTC()

	h.observe("a", now)
	h.observe("b", now)
	h.observe("c", now)

	// The oldest source was evicted to keep the map bounded.
	assert.Equal(t, 2, h.len())

	// An evicted source starts over from a fresh window.
	assert.Equal(t, 1, h.observe("a", now))
}
