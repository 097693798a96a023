package id

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewIdentifier returns a time-ordered identifier for a donation request,
// e.g. "01920a4e-8d3c-7b1a-9f2e-3c4d5e6f7a8b". Identifiers generated by one
// process sort in generation order.
func NewIdentifier() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Only fails when the random source does.
		return strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return u.String()
}

// Clock hands out unix-millisecond timestamps that strictly increase, so
// each value can serve as an event key even when two events land in the same
// millisecond.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock returns a Clock reading the wall clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockAt returns a Clock reading now. Used by tests to pin time.
func NewClockAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns the next timestamp.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// Observe advances the clock past ts. Stores call it with the newest
// persisted timestamp so keys stay unique across restarts.
func (c *Clock) Observe(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.last {
		c.last = ts
	}
}
