package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited means the client address exceeded the request ceiling for
// the current window.
var ErrRateLimited = errors.New("rate limited")

// Limiter caps request rates per client address. The interface exists so the
// in-process fixed-window implementation can later be swapped for a
// distributed one without touching callers.
type Limiter interface {
	Allow(addr string) error
	Sweep()
}

type counter struct {
	count     int
	windowEnd time.Time
}

// FixedWindow is a mutex-guarded per-address fixed-window limiter. Counters
// are created on first request, reset when their window elapses, and evicted
// by Sweep once stale for a full window beyond their end.
type FixedWindow struct {
	mu       sync.Mutex
	window   time.Duration
	ceiling  int
	counters map[string]*counter
	now      func() time.Time
}

func NewFixedWindow(window time.Duration, ceiling int) *FixedWindow {
	return &FixedWindow{
		window:   window,
		ceiling:  ceiling,
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (l *FixedWindow) Allow(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[addr]
	if !ok || now.After(c.windowEnd) {
		l.counters[addr] = &counter{count: 1, windowEnd: now.Add(l.window)}
		if l.ceiling < 1 {
			return ErrRateLimited
		}
		return nil
	}

	c.count++
	if c.count > l.ceiling {
		return ErrRateLimited
	}
	return nil
}

// Sweep evicts counters whose window ended more than one window length ago,
// bounding memory across many distinct client addresses.
func (l *FixedWindow) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for addr, c := range l.counters {
		if c.windowEnd.Before(cutoff) {
			delete(l.counters, addr)
		}
	}
}
