package catalog

import (
	"math"
	"time"
)

// Element describes a gauge kind.
type Element struct {
	Name  string
	Color uint32 // 0xRRGGBB, display only
	// Classifier maps an external stimulus kind to this element.
	Classifier string

	// Per-state multiplier tables, indexed by StateHandle. Sized to
	// States.Len()+1 at freeze; unset pairs hold 1.0.
	gaugeMult  []float64
	healthMult []float64
}

// GaugeMultiplier returns the gauge-gain multiplier this element applies
// while state s is active.
func (e Element) GaugeMultiplier(s StateHandle) float64 {
	if int(s) >= len(e.gaugeMult) || !s.Valid() {
		return 1
	}
	return e.gaugeMult[s]
}

// HealthMultiplier returns the health/damage-gain multiplier this element
// applies while state s is active.
func (e Element) HealthMultiplier(s StateHandle) float64 {
	if int(s) >= len(e.healthMult) || !s.Valid() {
		return 1
	}
	return e.healthMult[s]
}

func (e Element) key() string        { return e.Name }
func (e Element) classifier() string { return e.Classifier }

// State is a named entity condition used as a multiplier lookup key.
type State struct {
	Name       string
	Classifier string
}

func (s State) key() string        { return s.Name }
func (s State) classifier() string { return s.Classifier }

// HUD carries display-only metadata for a reaction.
type HUD struct {
	Icon string
	Tint uint32
}

// Reaction is a rule matching a combination of element gauges.
type Reaction struct {
	Name     string
	Elements []ElementHandle
	// Ordered is accepted for compatibility; selection is magnitude based
	// and does not enforce it.
	Ordered bool

	MinTotalGauge  int     // minimum entity gauge sum
	MinPctEach     float64 // each required element's minimum share of the total
	MinSumSelected float64 // required elements' minimum combined share of the total

	Cooldown         time.Duration
	CooldownRealTime bool
	// ElementLockout suppresses stimuli on the reaction's elements after it
	// fires. Zero falls back to max(minimum lockout, Cooldown).
	ElementLockout  time.Duration
	LockoutRealTime bool

	// ClearAllOnTrigger zeroes every gauge of the entity instead of only
	// the required ones.
	ClearAllOnTrigger bool
	// Priority breaks ties between equally scored reactions with the same
	// number of elements. Higher wins; equal priorities fall back to
	// registration order.
	Priority int

	Callback func(ReactionEvent)
	Payload  any
	HUD      HUD
}

func (r Reaction) key() string        { return r.Name }
func (r Reaction) classifier() string { return "" }

// PreEffect is a continuous effect gated by one element's gauge.
type PreEffect struct {
	Name     string
	Element  ElementHandle
	MinGauge int

	// Intensity = clamp(Base + Scale*(gauge-MinGauge), MinIntensity, MaxIntensity).
	// A zero MaxIntensity together with a zero MinIntensity means unbounded.
	Base         float64
	Scale        float64
	MinIntensity float64
	MaxIntensity float64

	Duration         time.Duration
	DurationRealTime bool
	// Cooldown blocks re-activation after the effect deactivates.
	Cooldown         time.Duration
	CooldownRealTime bool

	Callback func(PreEffectEvent)
	Payload  any
}

func (p PreEffect) key() string        { return p.Name }
func (p PreEffect) classifier() string { return "" }

// Intensity evaluates the intensity curve at gauge value v.
func (p PreEffect) Intensity(v int) float64 {
	x := p.Base + p.Scale*float64(v-p.MinGauge)
	return math.Min(math.Max(x, p.MinIntensity), p.MaxIntensity)
}
