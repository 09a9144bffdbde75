// Package ratelimit implements a fixed-window request counter keyed by
// client address. State is in-memory and per-instance; losing it on restart
// is acceptable because the limiter exists for abuse mitigation, not strict
// fairness.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(limit int, windowDur time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowDur,
		now:     time.Now,
	}
}

// Check counts one request against key's current window and reports whether
// it is admitted. Increment-and-check happens under a single lock hold so two
// concurrent requests cannot both observe the last free slot. The count is
// capped at the limit, so Remaining never goes negative.
func (l *Limiter) Check(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.limit - w.count, ResetAt: w.resetAt}
}

// Start runs the reaper until ctx is cancelled, dropping expired windows so
// memory stays bounded regardless of how many distinct keys have been seen.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.reap(); removed > 0 {
				slog.Debug("rate limit windows reaped", "removed", removed)
			}
		}
	}
}

func (l *Limiter) reap() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
