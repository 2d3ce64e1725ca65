// Package clock emits hour-aligned ticks to subscribers.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/txsync/internal/core/domain"
)

// Clock tracks the last full hour and notifies subscribers when it advances.
type Clock struct {
	now      func() time.Time
	interval time.Duration

	mu       sync.Mutex
	lastHour domain.UnixTime
	nextID   int
	subs     map[int]chan domain.UnixTime
}

// Option customizes a Clock.
type Option func(*Clock)

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithInterval sets how often Run checks for a new hour.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a clock positioned at the current hour.
func New(opts ...Option) *Clock {
	c := &Clock{
		now:      time.Now,
		interval: time.Minute,
		subs:     make(map[int]chan domain.UnixTime),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastHour = domain.FromTime(c.now()).ToStartOf(domain.Hour)
	return c
}

// GetLastHour returns the start of the most recent hour observed.
func (c *Clock) GetLastHour() domain.UnixTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHour
}

// Subscribe returns a channel receiving the current hour immediately and
// every new hour afterwards. The channel holds one pending tick; a slow
// reader sees only the latest hour. cancel closes the channel.
func (c *Clock) Subscribe() (<-chan domain.UnixTime, func()) {
	ch := make(chan domain.UnixTime, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.lastHour
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Check advances the clock when a new hour has started and notifies
// subscribers. It reports whether a tick was emitted.
func (c *Clock) Check() bool {
	hour := domain.FromTime(c.now()).ToStartOf(domain.Hour)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastHour.Before(hour) {
		return false
	}
	c.lastHour = hour
	for _, ch := range c.subs {
		offer(ch, hour)
	}
	return true
}

// Run calls Check on every interval until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check()
		}
	}
}

// offer replaces any unread tick with t.
func offer(ch chan domain.UnixTime, t domain.UnixTime) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- t:
	default:
	}
}
