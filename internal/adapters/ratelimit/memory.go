// Package ratelimit provides fixed-window request counters keyed by client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

type window struct {
	start time.Time
	count int
}

// FixedWindow counts requests per key inside aligned windows. Stale keys
// are pruned on the first call after a window boundary, so no background
// goroutine is needed.
type FixedWindow struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	size      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

var _ ports.RateLimiter = (*FixedWindow)(nil)

func NewFixedWindow(limit int, size time.Duration) *FixedWindow {
	return &FixedWindow{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// WithClock swaps the time source. Used by tests.
func (l *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	l.now = now
	return l
}

func (l *FixedWindow) Allow(_ context.Context, key string) (ports.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.size)
	l.sweep(start)

	w, ok := l.windows[key]
	if !ok || w.start.Before(start) {
		w = &window{start: start}
		l.windows[key] = w
	}

	reset := start.Add(l.size)
	if w.count >= l.limit {
		return ports.RateDecision{Allowed: false, Limit: l.limit, Remaining: 0, ResetAt: reset}, nil
	}

	w.count++
	return ports.RateDecision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetAt:   reset,
	}, nil
}

func (l *FixedWindow) sweep(current time.Time) {
	if !l.lastSweep.Before(current) {
		return
	}
	for key, w := range l.windows {
		if w.start.Before(current) {
			delete(l.windows, key)
		}
	}
	l.lastSweep = current
}

// Len reports how many keys are being tracked.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
