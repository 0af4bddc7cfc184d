package catalog

import "time"

// EntityID is an opaque, stable host identifier for a tracked entity.
// Zero is never a valid entity.
type EntityID uint32

// ReactionEvent is delivered to a reaction callback when it fires. It is
// a snapshot; nothing in it aliases live gauge state.
type ReactionEvent struct {
	Entity   EntityID
	Reaction ReactionHandle
	Name     string
	Payload  any

	// Values holds the entity's gauges as they were just before the
	// reaction cleared them, indexed by ElementHandle.
	Values []uint8
	// Elements lists the reaction's required elements.
	Elements []ElementHandle
	// Lockout is the element lockout window armed by this trigger.
	Lockout time.Duration
	// SimHours and RealSeconds are the clock readings at trigger time.
	SimHours    float64
	RealSeconds float64
}

// PreEffectEvent is delivered to a pre-effect callback on activation,
// re-application and deactivation. Deactivation carries Active=false and
// zero Intensity.
type PreEffectEvent struct {
	Entity    EntityID
	PreEffect PreEffectHandle
	Name      string
	Payload   any

	Element   ElementHandle
	Gauge     int
	Intensity float64
	Active    bool

	SimHours    float64
	RealSeconds float64
}
