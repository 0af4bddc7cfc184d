package telemetry

import (
	"sync"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/gauge"
)

// Collector accumulates gauge events within time windows and produces
// WindowStats. It implements gauge.Observer, so stimuli can be recorded
// from any goroutine.
type Collector struct {
	windowDurationTicks int32

	mu sync.Mutex

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	applied      int
	blocked      int
	points       int
	deaths       int
	preOn        int
	preRefreshed int
	preOff       int
	reactions    map[string]int

	// Pre-effects seen active, to tell activation from re-application.
	active map[activeKey]struct{}

	// Event rows since the last DrainEvents.
	events    []Event
	maxEvents int
}

type activeKey struct {
	entity catalog.EntityID
	pre    catalog.PreEffectHandle
}

var _ gauge.Observer = (*Collector)(nil)

// NewCollector creates a new stats collector.
// windowDurationTicks: ticks per stats window.
// maxEvents: cap on buffered event rows between drains; 0 disables the
// event log.
func NewCollector(windowDurationTicks, maxEvents int) *Collector {
	return &Collector{
		windowDurationTicks: int32(max(windowDurationTicks, 1)),
		reactions:           make(map[string]int),
		active:              make(map[activeKey]struct{}),
		maxEvents:           maxEvents,
	}
}

// StimulusApplied records a stimulus that changed a gauge.
func (c *Collector) StimulusApplied(_ gauge.EntityID, _ catalog.ElementHandle, scaled, _ int) {
	c.mu.Lock()
	c.applied++
	c.points += scaled
	c.mu.Unlock()
}

// StimulusBlocked records a stimulus dropped by an element lockout.
func (c *Collector) StimulusBlocked(gauge.EntityID, catalog.ElementHandle) {
	c.mu.Lock()
	c.blocked++
	c.mu.Unlock()
}

// ReactionFired records a reaction trigger.
func (c *Collector) ReactionFired(ev catalog.ReactionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions[ev.Name]++
	c.logLocked(NewReactionEvent(ev))
}

// PreEffectChanged records activations, re-applications and
// deactivations.
func (c *Collector) PreEffectChanged(ev catalog.PreEffectEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := activeKey{ev.Entity, ev.PreEffect}
	_, was := c.active[k]
	switch {
	case !ev.Active:
		delete(c.active, k)
		c.preOff++
		c.logLocked(NewPreEffectEvent(ev))
	case was:
		c.preRefreshed++
	default:
		c.active[k] = struct{}{}
		c.preOn++
		c.logLocked(NewPreEffectEvent(ev))
	}
}

func (c *Collector) logLocked(e Event) {
	if len(c.events) < c.maxEvents {
		c.events = append(c.events, e)
	}
}

// RecordDeath records a tracked entity dying.
func (c *Collector) RecordDeath() {
	c.mu.Lock()
	c.deaths++
	c.mu.Unlock()
}

// Forget drops pre-effect tracking for a removed entity.
func (c *Collector) Forget(id catalog.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.active {
		if k.entity == id {
			delete(c.active, k)
		}
	}
}

// DrainEvents returns and clears the buffered event rows.
func (c *Collector) DrainEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := c.events
	c.events = nil
	return ev
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Sample is the state the caller measures at window end.
type Sample struct {
	SimHours    float64
	RealSeconds float64
	Entities    int
	GaugeSums   []float64 // one per gauged entity
	Health      []float64 // one per living entity
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, s Sample) WindowStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blockRate float64
	if total := c.applied + c.blocked; total > 0 {
		blockRate = float64(c.blocked) / float64(total)
	}

	total, top, topN := 0, "", 0
	for name, n := range c.reactions {
		total += n
		if n > topN || (n == topN && name < top) {
			top, topN = name, n
		}
	}

	g := Summarize(s.GaugeSums)
	h := Summarize(s.Health)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimHours:        s.SimHours,
		RealSeconds:     s.RealSeconds,

		Entities: s.Entities,
		Gauged:   len(s.GaugeSums),
		Deaths:   c.deaths,

		StimuliApplied: c.applied,
		StimuliBlocked: c.blocked,
		PointsAdded:    c.points,
		BlockRate:      blockRate,

		Reactions:           total,
		TopReaction:         top,
		PreEffectsOn:        c.preOn,
		PreEffectsRefreshed: c.preRefreshed,
		PreEffectsOff:       c.preOff,

		GaugeMean: g.Mean,
		GaugeStd:  g.Std,
		GaugeP50:  g.P50,
		GaugeP90:  g.P90,

		HealthMean: h.Mean,
		HealthP10:  h.P10,
		HealthP50:  h.P50,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.applied, c.blocked, c.points, c.deaths = 0, 0, 0, 0
	c.preOn, c.preRefreshed, c.preOff = 0, 0, 0
	clear(c.reactions)

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
