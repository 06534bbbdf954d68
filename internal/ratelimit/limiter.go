// Package ratelimit implements a per-client fixed-window request counter.
//
// Each client gets a counter and a reset instant. When the reset instant has
// passed the counter starts over; while it has not, at most Max requests are
// admitted. State is process-local and lost on restart.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	// RetryAfter is only set when the request was rejected
	RetryAfter time.Duration
}

type counter struct {
	count     int
	resetTime time.Time
}

// Limiter tracks request counts per client key
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*counter
	max     int
	window  time.Duration
	now     func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter admitting max requests per window per client
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		clients: make(map[string]*counter),
		max:     max,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured maximum
func (l *Limiter) Limit() int {
	return l.max
}

// Window returns the configured window
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow records a request from key and reports whether it is admitted.
// Rejected requests do not increase the count.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	c, ok := l.clients[key]
	if !ok {
		c = &counter{resetTime: now.Add(l.window)}
		l.clients[key] = c
	}

	if now.After(c.resetTime) {
		c.count = 0
		c.resetTime = now.Add(l.window)
	}

	if c.count >= l.max {
		return Decision{
			Allowed:    false,
			Limit:      l.max,
			Remaining:  0,
			Reset:      c.resetTime,
			RetryAfter: c.resetTime.Sub(now),
		}
	}

	c.count++

	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - c.count,
		Reset:     c.resetTime,
	}
}

// evict drops clients whose window ended more than one window ago.
// Must be called with mu held.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	for key, c := range l.clients {
		if c.resetTime.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Reset forgets every client
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*counter)
}
