// Package ratelimit implements the per-client sliding-window quota gating
// every API operation. The window slides continuously: each check purges
// timestamps older than the window before counting.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu     sync.Mutex
	quota  int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

func New(quota int, window time.Duration) *Limiter {
	return &Limiter{
		quota:  quota,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock replaces the time source. This method exists for unit testing only.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records one request for key and reports whether it fits the quota.
// A rejected request does not consume a slot.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= l.quota {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

// Sweep drops client entries whose newest timestamp fell out of the window.
// Such entries cannot influence any future Allow decision, so evicting them
// only bounds memory growth for clients that went away.
func (l *Limiter) Sweep() int {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	var evicted int
	for key, stamps := range l.hits {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.hits, key)
			evicted++
		}
	}
	return evicted
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
