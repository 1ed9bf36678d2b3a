package app

import (
	"sync"
	"time"
)

// rateWindow keeps one principal's recent action timestamps. Each window has
// its own lock so the prune-check-append sequence is a single critical
// section per principal without serializing unrelated senders.
type rateWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// SlidingWindowLimiter counts actions per principal over a trailing fixed
// window. Absence of an entry means zero prior actions.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int

	mu      sync.RWMutex
	entries map[string]*rateWindow
}

// NewSlidingWindowLimiter create a limiter allowing limit actions per window.
func NewSlidingWindowLimiter(window time.Duration, limit int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window:  window,
		limit:   limit,
		entries: make(map[string]*rateWindow),
	}
}

// Allow reports whether the principal may act at now. A rejected call does
// not record now, so backing off eventually drains the window.
func (l *SlidingWindowLimiter) Allow(principalID string, now time.Time) bool {
	l.mu.RLock()
	entry, ok := l.entries[principalID]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		entry, ok = l.entries[principalID]
		if !ok {
			entry = &rateWindow{}
			l.entries[principalID] = entry
		}
		l.mu.Unlock()
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	cutoff := now.Add(-l.window)
	valid := entry.stamps[:0]
	for _, ts := range entry.stamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	entry.stamps = valid

	if len(entry.stamps) >= l.limit {
		return false
	}

	entry.stamps = append(entry.stamps, now)
	return true
}

// Forget drops the principal's window. Called on disconnect; timestamps are
// meaningless without a live session.
func (l *SlidingWindowLimiter) Forget(principalID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, principalID)
}
