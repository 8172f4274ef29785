package auth

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter keyed by client identity, used to
// slow down credential guessing on the login and register forms. Windows
// are tracked in memory per process; that is intentional, the limit guards
// against bursts rather than providing a distributed quota.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*rateWindow
}

type rateWindow struct {
	count   int
	started time.Time
}

// NewRateLimiter allows limit attempts per key within each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateWindow),
	}
}

// Allow records an attempt for the key and reports whether it is within the
// limit. Expired windows reset on the next attempt.
func (l *RateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || now.Sub(w.started) > l.window {
		l.entries[key] = &rateWindow{count: 1, started: now}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// RetryAfter returns how long the key must wait before the current window
// expires. Zero when the key is not limited.
func (l *RateLimiter) RetryAfter(key string) time.Duration {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || w.count <= l.limit {
		return 0
	}

	remaining := l.window - now.Sub(w.started)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune drops expired windows. Called opportunistically by the session
// sweeper so the map does not grow without bound.
func (l *RateLimiter) Prune() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key, w := range l.entries {
		if now.Sub(w.started) > l.window {
			delete(l.entries, key)
			pruned++
		}
	}
	return pruned
}
