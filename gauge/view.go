package gauge

import (
	"cmp"
	"iter"
	"slices"

	"github.com/pthm-cable/elemental/catalog"
)

// View is a read-only copy of one entity's channels, for display.
type View struct {
	Entity     EntityID
	Values     []uint8 // indexed by element handle
	InReaction []bool  // indexed by element handle
	Sum        int
	// PreEffects maps active pre-effects to their intensity.
	PreEffects map[catalog.PreEffectHandle]float64
}

// Present returns the elements with nonzero gauges, in handle order.
func (v View) Present() []catalog.ElementHandle {
	var hs []catalog.ElementHandle
	for i := 1; i < len(v.Values); i++ {
		if v.Values[i] > 0 {
			hs = append(hs, catalog.ElementHandle(i))
		}
	}
	return hs
}

// Views brings every entity up to date and yields a view for each one
// with nonzero gauges or pending timers, ordered by entity id. Entities
// with nothing left are garbage-collected during the pass. The views are
// captured when iteration starts.
func (s *Store) Views() iter.Seq[View] {
	return func(yield func(View) bool) {
		views, _ := s.sweep(true)
		for _, v := range views {
			if !yield(v) {
				return
			}
		}
	}
}

// Sweep runs decay catch-up and pre-effect maintenance over every entity
// and collects empty ones. It returns the number collected.
func (s *Store) Sweep() int {
	_, collected := s.sweep(false)
	return collected
}

func (s *Store) sweep(withViews bool) ([]View, int) {
	now := s.clock.Now()
	p := s.decayParams(now)
	var out outbox
	var views []View
	collected := 0

	s.mu.Lock()
	for id, e := range s.entries {
		e.resize(s.dims)
		decayAll(e, now, p)
		for i := 1; i < len(e.values); i++ {
			h := catalog.ElementHandle(i)
			if len(s.cat.PreEffectsFor(h)) > 0 {
				s.evaluatePreEffectsLocked(id, e, h, now, &out)
			}
		}
		s.expireLocked(e, now)

		if e.collectible(now) {
			delete(s.entries, id)
			collected++
			continue
		}
		if withViews && (e.presence.sum > 0 || e.pending(now)) {
			views = append(views, e.view(id))
		}
	}
	s.mu.Unlock()

	if collected > 0 {
		s.logger.Debug("collected idle entities", "count", collected)
	}
	s.deliver(&out)

	slices.SortFunc(views, func(a, b View) int { return cmp.Compare(a.Entity, b.Entity) })
	return views, collected
}

// expireLocked clears timers that have passed so stale deadlines are not
// carried around or persisted.
func (s *Store) expireLocked(e *entry, now Instant) {
	for i := range e.lockout {
		e.lockout[i].expire(now)
	}
	for i := range e.cooldown {
		e.cooldown[i].expire(now)
	}
	for i := range e.preCooldown {
		e.preCooldown[i].expire(now)
	}
}

func (e *entry) view(id EntityID) View {
	v := View{
		Entity:     id,
		Values:     slices.Clone(e.values),
		InReaction: slices.Clone(e.inReaction),
		Sum:        e.presence.sum,
	}
	for i := 1; i < len(e.preActive); i++ {
		if e.preActive[i] {
			if v.PreEffects == nil {
				v.PreEffects = make(map[catalog.PreEffectHandle]float64)
			}
			v.PreEffects[catalog.PreEffectHandle(i)] = e.preIntensity[i]
		}
	}
	return v
}

// View returns a single entity's view after decay catch-up.
func (s *Store) View(id EntityID) (View, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return View{}, false
	}
	decayAll(e, now, s.decayParams(now))
	return e.view(id), true
}
