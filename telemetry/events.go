// Package telemetry tracks gauge activity per stats window, flags notable
// windows, and writes CSV experiment output.
package telemetry

import "github.com/pthm-cable/elemental/catalog"

// EventType identifies logged gauge events.
type EventType string

const (
	EventReaction     EventType = "reaction"
	EventPreEffectOn  EventType = "pre_on"
	EventPreEffectOff EventType = "pre_off"
)

// Event is one row of events.csv.
type Event struct {
	Type        EventType `csv:"type"`
	SimHours    float64   `csv:"sim_hours"`
	RealSeconds float64   `csv:"real_seconds"`
	Entity      uint32    `csv:"entity"`
	Name        string    `csv:"name"`

	// Reactions: entity gauge sum before clearing. Pre-effects: the
	// watched element's gauge.
	Gauge int `csv:"gauge"`
	// Pre-effect intensity, or the armed lockout in seconds for reactions.
	Value float64 `csv:"value"`
}

// NewReactionEvent creates a reaction row.
func NewReactionEvent(ev catalog.ReactionEvent) Event {
	sum := 0
	for _, v := range ev.Values {
		sum += int(v)
	}
	return Event{
		Type:        EventReaction,
		SimHours:    ev.SimHours,
		RealSeconds: ev.RealSeconds,
		Entity:      uint32(ev.Entity),
		Name:        ev.Name,
		Gauge:       sum,
		Value:       ev.Lockout.Seconds(),
	}
}

// NewPreEffectEvent creates a pre-effect transition row.
func NewPreEffectEvent(ev catalog.PreEffectEvent) Event {
	typ := EventPreEffectOn
	if !ev.Active {
		typ = EventPreEffectOff
	}
	return Event{
		Type:        typ,
		SimHours:    ev.SimHours,
		RealSeconds: ev.RealSeconds,
		Entity:      uint32(ev.Entity),
		Name:        ev.Name,
		Gauge:       ev.Gauge,
		Value:       ev.Intensity,
	}
}
