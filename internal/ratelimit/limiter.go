// Package ratelimit throttles anonymous comment submissions per client key.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count int
	last  time.Time
}

// Limiter is an in-memory attempt counter shared by every request handler.
//
// It is not a sliding window. An entry is evicted only once windowSeconds
// have passed since its last allowed call, and eviction happens during any
// Allow call, whichever key it is for. A blocked key keeps its timestamp
// and ages out; a key that keeps succeeding never does.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New creates a Limiter using the wall clock
func New() *Limiter {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Limiter reading time from now
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Allow records an attempt for key and reports whether it may proceed
func (l *Limiter) Allow(key string, windowSeconds, maxCount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := time.Duration(windowSeconds) * time.Second
	for k, e := range l.entries {
		if now.Sub(e.last) >= window {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &entry{count: 1, last: now}
		return true
	}
	if e.count >= maxCount {
		return false
	}
	e.count++
	e.last = now
	return true
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
