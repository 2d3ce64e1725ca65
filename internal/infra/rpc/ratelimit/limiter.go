// Package ratelimit caps how many remote calls are made per time window.
//
// A Limiter keeps the admission times of recent calls. A call is admitted
// when fewer than limit calls happened during the trailing window; otherwise
// it waits in FIFO order until the oldest admission leaves the window.
// Calls are delayed, never dropped. All functions wrapped by the same
// Limiter share one budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/txsync/internal/indexing/metrics"
)

// Limiter enforces a sliding-window call cap.
type Limiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	calls   []time.Time // admission times, oldest first
	waiters []chan struct{}
	timer   *time.Timer
}

// New creates a limiter allowing callsPerMinute calls per trailing minute.
func New(callsPerMinute int) *Limiter {
	return NewWindow(callsPerMinute, time.Minute)
}

// NewWindow creates a limiter allowing limit calls per trailing window.
func NewWindow(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		panic(fmt.Sprintf("ratelimit: limit must be positive, got %d", limit))
	}
	if window <= 0 {
		panic(fmt.Sprintf("ratelimit: window must be positive, got %v", window))
	}
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		calls:  make([]time.Time, 0, limit),
	}
}

// Named labels the limiter's wait metrics with the provider name.
func (l *Limiter) Named(name string) *Limiter {
	l.name = name
	return l
}

// Limit returns the number of calls allowed per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the length of the trailing window.
func (l *Limiter) Window() time.Duration { return l.window }

// Wait blocks until the caller may make one call. If ctx ends while the
// caller is still queued, no slot is consumed and ctx.Err() is returned.
func (l *Limiter) Wait(ctx context.Context) error {
	ticket := make(chan struct{})

	l.mu.Lock()
	l.waiters = append(l.waiters, ticket)
	l.admitLocked()
	l.mu.Unlock()

	start := time.Now()
	select {
	case <-ticket:
		l.observe(start)
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ticket {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return ctx.Err()
		}
	}
	// Admitted concurrently with cancellation; the slot is already taken.
	l.observe(start)
	return nil
}

func (l *Limiter) observe(start time.Time) {
	if l.name == "" {
		return
	}
	metrics.RateLimitWait.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
}

// Pending returns the number of callers waiting for admission.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

func (l *Limiter) admitLocked() {
	now := l.now()
	l.pruneLocked(now)

	for len(l.waiters) > 0 && len(l.calls) < l.limit {
		l.calls = append(l.calls, now)
		close(l.waiters[0])
		l.waiters[0] = nil
		l.waiters = l.waiters[1:]
	}

	if len(l.waiters) > 0 && l.timer == nil {
		delay := l.calls[0].Add(l.window).Sub(now)
		l.timer = time.AfterFunc(delay, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.timer = nil
			l.admitLocked()
		})
	}
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
