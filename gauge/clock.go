package gauge

import (
	"sync"
	"time"
)

// Instant is a reading of both time domains.
type Instant struct {
	Sim       float64 // simulation time, hours
	Real      float64 // monotonic real time, seconds
	Timescale float64 // simulation seconds per real second
}

// Clock supplies the current time in both domains.
type Clock interface {
	Now() Instant
}

// simHours converts a real-time span into simulation hours at the
// instant's timescale.
func (n Instant) simHours(d time.Duration) float64 {
	if n.Timescale <= 0 {
		return 0
	}
	return d.Seconds() * n.Timescale / 3600
}

// ManualClock is a Clock advanced explicitly by its owner. It is safe for
// concurrent use.
type ManualClock struct {
	mu  sync.RWMutex
	now Instant
}

// NewManualClock returns a clock at the given reading.
func NewManualClock(now Instant) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current reading.
func (c *ManualClock) Now() Instant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves real time forward by d and simulation time by d scaled
// through the current timescale.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now.Real += d.Seconds()
	c.now.Sim += c.now.simHours(d)
}

// AdvanceSim moves only simulation time, as a host does while it
// fast-forwards (waiting, sleeping).
func (c *ManualClock) AdvanceSim(hours float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now.Sim += hours
}

// Set replaces the reading.
func (c *ManualClock) Set(now Instant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetTimescale changes the simulation rate.
func (c *ManualClock) SetTimescale(ts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now.Timescale = ts
}
