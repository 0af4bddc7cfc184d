package catalog

// Handles are small positive integers assigned in registration order.
// Zero is reserved as the "no handle" sentinel for every kind, so dense
// per-entity arrays are sized Len()+1 and slot 0 is never used.

// ElementHandle identifies a registered gauge kind.
type ElementHandle uint16

// StateHandle identifies a registered boolean entity condition.
type StateHandle uint16

// ReactionHandle identifies a registered composite trigger.
type ReactionHandle uint16

// PreEffectHandle identifies a registered continuous threshold effect.
type PreEffectHandle uint16

const (
	NoElement   ElementHandle   = 0
	NoState     StateHandle     = 0
	NoReaction  ReactionHandle  = 0
	NoPreEffect PreEffectHandle = 0
)

// Valid reports whether h refers to a registration slot.
func (h ElementHandle) Valid() bool { return h != NoElement }

// Valid reports whether h refers to a registration slot.
func (h StateHandle) Valid() bool { return h != NoState }

// Valid reports whether h refers to a registration slot.
func (h ReactionHandle) Valid() bool { return h != NoReaction }

// Valid reports whether h refers to a registration slot.
func (h PreEffectHandle) Valid() bool { return h != NoPreEffect }
