package gauge

import (
	"slices"

	"github.com/pthm-cable/elemental/catalog"
)

// Snapshot is the input to reaction selection. A reaction qualifies only
// when every element it requires is listed in Present.
type Snapshot struct {
	Values  []uint8                 // indexed by element handle
	Present []catalog.ElementHandle // channels with nonzero values
	Sum     int                     // sum of Values over Present
}

// ReactionSource is the read side of a reaction registry.
type ReactionSource interface {
	Handles() []catalog.ReactionHandle
	Get(catalog.ReactionHandle) (catalog.Reaction, bool)
}

type candidate struct {
	h        catalog.ReactionHandle
	selected int
	elements int
	priority int
}

// better orders candidates by score, element count, priority, then
// lowest handle. Scores share a denominator, so comparing the selected
// sums is exact.
func (c candidate) better(o candidate) bool {
	if c.selected != o.selected {
		return c.selected > o.selected
	}
	if c.elements != o.elements {
		return c.elements > o.elements
	}
	if c.priority != o.priority {
		return c.priority > o.priority
	}
	return c.h < o.h
}

// presentSet marks the snapshot's present channels by handle.
func presentSet(snap Snapshot) []bool {
	set := make([]bool, len(snap.Values))
	for _, h := range snap.Present {
		if int(h) < len(set) {
			set[h] = true
		}
	}
	return set
}

// qualifies checks r against the snapshot and returns the combined
// gauge of its required elements.
func qualifies(r catalog.Reaction, snap Snapshot, present []bool) (int, bool) {
	if snap.Sum <= 0 || snap.Sum < r.MinTotalGauge || len(r.Elements) > len(snap.Present) {
		return 0, false
	}
	total := float64(snap.Sum)
	selected := 0
	for _, h := range r.Elements {
		if int(h) >= len(present) || !present[h] {
			return 0, false
		}
		v := int(snap.Values[h])
		if v == 0 {
			return 0, false
		}
		if float64(v) < r.MinPctEach*total-fracTolerance {
			return 0, false
		}
		selected += v
	}
	if float64(selected) < r.MinSumSelected*total-fracTolerance {
		return 0, false
	}
	return selected, true
}

// fracTolerance absorbs float error in share comparisons; gauges are
// integers so any real shortfall exceeds it.
const fracTolerance = 1e-9

// Select returns up to maxPicks qualifying reactions, best first. Every
// pick is scored against the same snapshot; a picked reaction is not
// picked again. exclude, when non-nil, removes reactions up front (for
// example those on cooldown).
func Select(src ReactionSource, snap Snapshot, exclude func(catalog.ReactionHandle) bool, maxPicks int) []catalog.ReactionHandle {
	if maxPicks <= 0 || snap.Sum <= 0 || len(snap.Present) == 0 {
		return nil
	}

	present := presentSet(snap)
	var cands []candidate
	for _, h := range src.Handles() {
		if exclude != nil && exclude(h) {
			continue
		}
		r, ok := src.Get(h)
		if !ok {
			continue
		}
		selected, ok := qualifies(r, snap, present)
		if !ok {
			continue
		}
		cands = append(cands, candidate{h: h, selected: selected, elements: len(r.Elements), priority: r.Priority})
	}
	if len(cands) == 0 {
		return nil
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		switch {
		case a.better(b):
			return -1
		case b.better(a):
			return 1
		}
		return 0
	})

	n := min(maxPicks, len(cands))
	picks := make([]catalog.ReactionHandle, n)
	for i := range picks {
		picks[i] = cands[i].h
	}
	return picks
}

// snapshot builds selection input. With only set, the snapshot holds just
// that channel.
func (e *entry) snapshot(only catalog.ElementHandle) Snapshot {
	if only.Valid() {
		v := e.values[only]
		values := make([]uint8, len(e.values))
		values[only] = v
		var present []catalog.ElementHandle
		if v > 0 {
			present = []catalog.ElementHandle{only}
		}
		return Snapshot{Values: values, Present: present, Sum: int(v)}
	}
	return Snapshot{
		Values:  slices.Clone(e.values),
		Present: slices.Clone(e.presence.list),
		Sum:     e.presence.sum,
	}
}

// triggerLocked runs selection for entity id and applies every pick.
func (s *Store) triggerLocked(id EntityID, e *entry, now Instant, only catalog.ElementHandle, out *outbox) {
	snap := e.snapshot(only)
	picks := Select(s.cat.Reactions, snap, func(r catalog.ReactionHandle) bool {
		return e.cooldown[r].Locked(now)
	}, s.opts.MaxPicks)
	if len(picks) == 0 {
		return
	}

	pre := slices.Clone(e.values)
	for _, r := range picks {
		s.applyReactionLocked(id, e, now, r, only, pre, out)
	}
}

// applyReactionLocked performs a winning pick's side effects: clearing,
// element lockouts, the reaction cooldown and the callback.
func (s *Store) applyReactionLocked(id EntityID, e *entry, now Instant, r catalog.ReactionHandle, only catalog.ElementHandle, pre []uint8, out *outbox) {
	desc, ok := s.cat.Reactions.Get(r)
	if !ok {
		return
	}

	var cleared []catalog.ElementHandle
	switch {
	case only.Valid():
		cleared = []catalog.ElementHandle{only}
	case desc.ClearAllOnTrigger:
		cleared = make([]catalog.ElementHandle, 0, len(e.values)-1)
		for i := 1; i < len(e.values); i++ {
			cleared = append(cleared, catalog.ElementHandle(i))
		}
	default:
		cleared = desc.Elements
	}
	for _, h := range cleared {
		e.set(h, 0)
		e.stamp(h, now.Sim)
	}

	lockout, realTime := desc.ElementLockout, desc.LockoutRealTime
	if lockout <= 0 {
		lockout, realTime = max(s.opts.MinLockout, desc.Cooldown), desc.CooldownRealTime
	}
	for _, h := range desc.Elements {
		e.lockout[h].Extend(now, lockout, realTime)
		e.inReaction[h] = true
	}
	e.cooldown[r].Extend(now, desc.Cooldown, desc.CooldownRealTime)

	s.logger.Debug("reaction fired", "entity", id, "reaction", desc.Name, "lockout", lockout)

	out.reaction(catalog.ReactionEvent{
		Entity:      id,
		Reaction:    r,
		Name:        desc.Name,
		Payload:     desc.Payload,
		Values:      slices.Clone(pre),
		Elements:    desc.Elements,
		Lockout:     lockout,
		SimHours:    now.Sim,
		RealSeconds: now.Real,
	}, desc.Callback)

	for _, h := range cleared {
		s.evaluatePreEffectsLocked(id, e, h, now, out)
	}
}
