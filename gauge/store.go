// Package gauge owns per-entity elemental gauge state: accumulation,
// lazy decay, reaction selection, pre-effect hysteresis, cooldown and
// lockout timers, and persistence.
//
// A Store serializes all mutation through one lock. Callbacks never run
// under it: they are posted to the configured Dispatcher, or run inline on
// the calling goroutine when there is none, in which case callbacks from
// concurrent Add calls may overlap.
package gauge

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/elemental/catalog"
)

// Store is the per-entity gauge table.
type Store struct {
	cat    *catalog.Catalog
	clock  Clock
	opts   Options
	dims   catalog.Dims
	logger *slog.Logger

	mu      sync.Mutex
	entries map[EntityID]*entry
}

// NewStore creates a store over a frozen catalog.
func NewStore(cat *catalog.Catalog, clock Clock, opts Options) (*Store, error) {
	if cat == nil || !cat.Frozen() {
		return nil, fmt.Errorf("gauge: new store: %w", catalog.ErrNotFrozen)
	}
	if clock == nil {
		return nil, fmt.Errorf("gauge: new store: nil clock")
	}
	opts.normalize()
	return &Store{
		cat:     cat,
		clock:   clock,
		opts:    opts,
		dims:    cat.Dims(),
		logger:  opts.Logger.With(slog.String("component", "gauge")),
		entries: make(map[EntityID]*entry),
	}, nil
}

// Catalog returns the catalog the store is dimensioned against.
func (s *Store) Catalog() *catalog.Catalog { return s.cat }

func (s *Store) validElement(h catalog.ElementHandle) bool {
	return h.Valid() && int(h) < s.dims.Elements
}

// entryLocked returns the entry for id, creating it when create is set.
func (s *Store) entryLocked(id EntityID, create bool) *entry {
	e, ok := s.entries[id]
	if ok {
		e.resize(s.dims)
		return e
	}
	if !create || id == 0 {
		return nil
	}
	e = newEntry(s.dims)
	s.entries[id] = e
	return e
}

func (s *Store) kindMultiplier(id EntityID) float64 {
	if s.opts.KindOf != nil && s.opts.KindOf(id) == KindPlayer {
		return s.opts.PlayerMultiplier
	}
	return s.opts.OtherMultiplier
}

// Add applies a stimulus of delta units to element elem of entity id.
// Non-positive deltas, unknown elements and locked elements are no-ops.
func (s *Store) Add(id EntityID, elem catalog.ElementHandle, delta float64) {
	if delta <= 0 || id == 0 || !s.validElement(elem) {
		return
	}
	now := s.clock.Now()
	var out outbox

	s.mu.Lock()
	e := s.entryLocked(id, true)
	decayAll(e, now, s.decayParams(now))

	if e.lockout[elem].Locked(now) {
		s.mu.Unlock()
		s.opts.Observer.StimulusBlocked(id, elem)
		return
	}

	scaled := int(math.Round(delta * s.kindMultiplier(id) * e.multiplier(s.cat, elem)))
	if scaled <= 0 {
		s.mu.Unlock()
		return
	}

	old := int(e.values[elem])
	oldSum := e.presence.sum
	e.set(elem, old+scaled)
	e.stamp(elem, now.Sim)
	value := int(e.values[elem])

	if s.opts.SingleTrigger && old < Max && value >= Max {
		s.triggerLocked(id, e, now, elem, &out)
	}
	if s.opts.AggregateTrigger && oldSum < Max && e.presence.sum >= Max {
		s.triggerLocked(id, e, now, catalog.NoElement, &out)
	}
	s.evaluatePreEffectsLocked(id, e, elem, now, &out)
	s.mu.Unlock()

	s.opts.Observer.StimulusApplied(id, elem, scaled, value)
	if s.opts.DisplayEnabled && s.opts.Display != nil {
		s.opts.Display.Arm()
	}
	s.deliver(&out)
}

// Get returns the current gauge of element elem for entity id, running
// decay catch-up for that channel only. Unknown entities read zero.
func (s *Store) Get(id EntityID, elem catalog.ElementHandle) int {
	if !s.validElement(elem) {
		return 0
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return 0
	}
	decayChannel(e, elem, now, s.decayParams(now))
	return int(e.values[elem])
}

// Sum returns the entity's gauge total after whole-entity decay.
func (s *Store) Sum(id EntityID) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return 0
	}
	decayAll(e, now, s.decayParams(now))
	return e.presence.sum
}

// Set overwrites a gauge, bypassing multipliers and lockouts. The value is
// clamped to [0, Max] and both time stamps move to now.
func (s *Store) Set(id EntityID, elem catalog.ElementHandle, value int) {
	if id == 0 || !s.validElement(elem) {
		return
	}
	now := s.clock.Now()
	var out outbox

	s.mu.Lock()
	e := s.entryLocked(id, true)
	decayAll(e, now, s.decayParams(now))
	e.set(elem, value)
	e.stamp(elem, now.Sim)
	s.evaluatePreEffectsLocked(id, e, elem, now, &out)
	s.mu.Unlock()

	s.deliver(&out)
}

// Clear drops all state for id. Active pre-effects are deactivated.
func (s *Store) Clear(id EntityID) {
	now := s.clock.Now()
	var out outbox

	s.mu.Lock()
	if e := s.entryLocked(id, false); e != nil {
		s.deactivateAllLocked(id, e, now, &out)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	s.deliver(&out)
}

// ClearAll drops every entity, as on a new game or revert.
func (s *Store) ClearAll() {
	now := s.clock.Now()
	var out outbox

	s.mu.Lock()
	for id, e := range s.entries {
		s.deactivateAllLocked(id, e, now, &out)
	}
	s.entries = make(map[EntityID]*entry)
	s.mu.Unlock()

	s.logger.Debug("cleared all entities")
	s.deliver(&out)
}

// Len returns the number of tracked entities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SetActive toggles state st on entity id and invalidates its cached
// multipliers.
func (s *Store) SetActive(id EntityID, st catalog.StateHandle, on bool) {
	if !st.Valid() || int(st) >= s.dims.States {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, on)
	if e == nil || e.states[st] == on {
		return
	}
	e.states[st] = on
	if on {
		e.nStates++
	} else {
		e.nStates--
	}
	e.multDirty = true
}

// IsActive reports whether state st is active on entity id.
func (s *Store) IsActive(id EntityID, st catalog.StateHandle) bool {
	if !st.Valid() || int(st) >= s.dims.States {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	return e != nil && e.states[st]
}

// GaugeMultiplier returns the effective state multiplier applied to
// stimuli of element elem on entity id, excluding the per-kind gain.
func (s *Store) GaugeMultiplier(id EntityID, elem catalog.ElementHandle) float64 {
	if !s.validElement(elem) {
		return 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return 1
	}
	return e.multiplier(s.cat, elem)
}

// HealthMultiplier returns the product of the health/damage-gain
// multipliers element elem applies under the entity's active states.
func (s *Store) HealthMultiplier(id EntityID, elem catalog.ElementHandle) float64 {
	if !s.validElement(elem) {
		return 1
	}
	el, _ := s.cat.Elements.Get(elem)

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return 1
	}
	m := 1.0
	for st := 1; st < len(e.states); st++ {
		if e.states[st] {
			m *= el.HealthMultiplier(catalog.StateHandle(st))
		}
	}
	return m
}

// Locked reports whether element elem of entity id is in lockout.
func (s *Store) Locked(id EntityID, elem catalog.ElementHandle) bool {
	if !s.validElement(elem) {
		return false
	}
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	return e != nil && e.lockout[elem].Locked(now)
}

// OnCooldown reports whether reaction r is cooling down on entity id.
func (s *Store) OnCooldown(id EntityID, r catalog.ReactionHandle) bool {
	if !r.Valid() || int(r) >= s.dims.Reactions {
		return false
	}
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	return e != nil && e.cooldown[r].Locked(now)
}
