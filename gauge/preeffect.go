package gauge

import (
	"math"

	"github.com/pthm-cable/elemental/catalog"
)

// evaluatePreEffectsLocked runs the hysteresis rules for every pre-effect
// watching elem against the channel's current value.
func (s *Store) evaluatePreEffectsLocked(id EntityID, e *entry, elem catalog.ElementHandle, now Instant, out *outbox) {
	v := int(e.values[elem])
	for _, p := range s.cat.PreEffectsFor(elem) {
		desc, ok := s.cat.PreEffects.Get(p)
		if !ok {
			continue
		}

		if v < desc.MinGauge {
			if e.preActive[p] {
				s.deactivateLocked(id, e, p, desc, now, out)
			}
			continue
		}

		if !e.preActive[p] && e.preCooldown[p].Locked(now) {
			continue
		}

		intensity := desc.Intensity(v)
		reapply := !e.preActive[p] ||
			math.Abs(intensity-e.preIntensity[p]) > s.opts.IntensityEpsilon ||
			(desc.Duration > 0 && e.preExpiry[p].within(now, s.opts.RefreshMargin))
		if !reapply {
			continue
		}

		e.preActive[p] = true
		e.preIntensity[p] = intensity
		if desc.Duration > 0 {
			e.preExpiry[p].Extend(now, desc.Duration, desc.DurationRealTime)
		}

		out.preEffect(catalog.PreEffectEvent{
			Entity:      id,
			PreEffect:   p,
			Name:        desc.Name,
			Payload:     desc.Payload,
			Element:     elem,
			Gauge:       v,
			Intensity:   intensity,
			Active:      true,
			SimHours:    now.Sim,
			RealSeconds: now.Real,
		}, desc.Callback)
	}
}

func (s *Store) deactivateLocked(id EntityID, e *entry, p catalog.PreEffectHandle, desc catalog.PreEffect, now Instant, out *outbox) {
	e.preActive[p] = false
	e.preIntensity[p] = 0
	e.preExpiry[p] = Deadline{}
	e.preCooldown[p].Extend(now, desc.Cooldown, desc.CooldownRealTime)

	out.preEffect(catalog.PreEffectEvent{
		Entity:      id,
		PreEffect:   p,
		Name:        desc.Name,
		Payload:     desc.Payload,
		Element:     desc.Element,
		Gauge:       int(e.values[desc.Element]),
		SimHours:    now.Sim,
		RealSeconds: now.Real,
	}, desc.Callback)
}

// deactivateAllLocked ends every active pre-effect of the entry.
func (s *Store) deactivateAllLocked(id EntityID, e *entry, now Instant, out *outbox) {
	for i := 1; i < len(e.preActive); i++ {
		if !e.preActive[i] {
			continue
		}
		p := catalog.PreEffectHandle(i)
		desc, ok := s.cat.PreEffects.Get(p)
		if !ok {
			continue
		}
		s.deactivateLocked(id, e, p, desc, now, out)
	}
}

// PreEffectState reports whether pre-effect p is active on entity id and
// at what intensity.
func (s *Store) PreEffectState(id EntityID, p catalog.PreEffectHandle) (active bool, intensity float64) {
	if !p.Valid() || int(p) >= s.dims.PreEffects {
		return false, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil {
		return false, 0
	}
	return e.preActive[p], e.preIntensity[p]
}
