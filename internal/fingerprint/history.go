package fingerprint

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// sourceHistory is the rolling window of request times for one source.
type sourceHistory struct {
	times []time.Time
}

// historyMap tracks per-source request histories for burst detection. The
// LRU bound keeps memory flat when sources rotate or spoof addresses; the
// window purge runs lazily on each observation.
type historyMap struct {
	mu      sync.Mutex
	window  time.Duration
	sources *lru.Cache[string, *sourceHistory]
}

func newHistoryMap(window time.Duration, maxSources int) *historyMap {
	cache, _ := lru.New[string, *sourceHistory](maxSources)
	return &historyMap{
		window:  window,
		sources: cache,
	}
}

// observe records now for the source and returns how many observations fall
// inside the sliding window, including this one.
func (h *historyMap) observe(source string, now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	hist, ok := h.sources.Get(source)
	if !ok {
		hist = &sourceHistory{}
		h.sources.Add(source, hist)
	}

	cutoff := now.Add(-h.window)
	kept := hist.times[:0]
	for _, t := range hist.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	hist.times = append(kept, now)

	return len(hist.times)
}

// len reports how many sources are currently tracked.
func (h *historyMap) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sources.Len()
}
