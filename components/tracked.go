// Package components defines ECS components for the gauge harness.
package components

import "github.com/pthm-cable/elemental/catalog"

// Tracked marks an entity whose elemental gauges live in the store.
type Tracked struct {
	ID     catalog.EntityID
	Player bool
}

// Health is drained by reactions and damage-over-time pre-effects.
type Health struct {
	Value float32
	Max   float32
	Alive bool
}

// Afflictions holds the harness-side consequences of active pre-effects.
// Callbacks write it; movement and health systems read it.
type Afflictions struct {
	Slow float32 // 0..1, fraction of speed lost
	Burn float32 // health lost per second

	// Per pre-effect contributions, so deactivation removes exactly what
	// activation added.
	Slows map[catalog.PreEffectHandle]float32
	Burns map[catalog.PreEffectHandle]float32
}

// Set records the contribution of one pre-effect and recomputes the totals.
// Slows combine multiplicatively; burns add.
func (a *Afflictions) Set(p catalog.PreEffectHandle, slow, burn float32) {
	if a.Slows == nil {
		a.Slows = make(map[catalog.PreEffectHandle]float32)
		a.Burns = make(map[catalog.PreEffectHandle]float32)
	}
	if slow > 0 {
		a.Slows[p] = min(slow, 1)
	} else {
		delete(a.Slows, p)
	}
	if burn > 0 {
		a.Burns[p] = burn
	} else {
		delete(a.Burns, p)
	}

	keep := float32(1)
	for _, s := range a.Slows {
		keep *= 1 - s
	}
	a.Slow = 1 - keep
	a.Burn = 0
	for _, b := range a.Burns {
		a.Burn += b
	}
}

// Emitter is a persistent stimulus source aimed at a tracked entity. Its
// effect is bound in the intake tracker under Key until the emitter
// rerolls or is removed.
type Emitter struct {
	Key        uint64
	Target     catalog.EntityID
	Classifier string
	Rate       float32 // mean stimulus units per second while firing
	Chance     float32 // probability of firing on a tick
	TTL        float32 // seconds until the emitter rerolls its element
}
