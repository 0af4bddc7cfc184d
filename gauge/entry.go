package gauge

import (
	"math/bits"

	"github.com/pthm-cable/elemental/catalog"
)

// Max is the gauge ceiling.
const Max = 100

// presence tracks the nonzero channels and their sum so neither needs a
// rescan. pos holds list index+1, zero meaning absent.
type presence struct {
	mask []uint64
	list []catalog.ElementHandle
	pos  []int32
	sum  int
}

func (p *presence) resize(n int) {
	words := (n + 63) / 64
	for len(p.mask) < words {
		p.mask = append(p.mask, 0)
	}
	for len(p.pos) < n {
		p.pos = append(p.pos, 0)
	}
}

func (p *presence) has(h catalog.ElementHandle) bool {
	return p.mask[h/64]&(1<<(h%64)) != 0
}

// transition records a value change of channel h from old to nv.
func (p *presence) transition(h catalog.ElementHandle, old, nv int) {
	p.sum += nv - old
	switch {
	case old == 0 && nv > 0:
		p.mask[h/64] |= 1 << (h % 64)
		p.list = append(p.list, h)
		p.pos[h] = int32(len(p.list))
	case old > 0 && nv == 0:
		p.mask[h/64] &^= 1 << (h % 64)
		i := p.pos[h] - 1
		last := p.list[len(p.list)-1]
		p.list[i] = last
		p.pos[last] = i + 1
		p.list = p.list[:len(p.list)-1]
		p.pos[h] = 0
	}
}

func (p *presence) count() int {
	n := 0
	for _, w := range p.mask {
		n += bits.OnesCount64(w)
	}
	return n
}

// rebuild recomputes everything from values.
func (p *presence) rebuild(values []uint8) {
	clear(p.mask)
	clear(p.pos)
	p.list = p.list[:0]
	p.sum = 0
	for i := 1; i < len(values); i++ {
		if v := int(values[i]); v > 0 {
			p.transition(catalog.ElementHandle(i), 0, v)
		}
	}
}

// entry is one entity's gauge state. Every slice is indexed by handle
// with slot 0 unused.
type entry struct {
	values     []uint8
	lastHit    []float64
	lastEval   []float64
	lockout    []Deadline
	inReaction []bool

	cooldown []Deadline

	preActive    []bool
	preIntensity []float64
	preExpiry    []Deadline
	preCooldown  []Deadline

	states    []bool
	nStates   int
	mult      []float64
	multDirty bool

	presence presence
}

func newEntry(d catalog.Dims) *entry {
	e := &entry{multDirty: true}
	e.resize(d)
	return e
}

// resize grows every array to the catalog dimensions, padding with
// neutral values. It never shrinks.
func (e *entry) resize(d catalog.Dims) {
	if len(e.values) < d.Elements {
		e.values = grow(e.values, d.Elements)
		e.lastHit = grow(e.lastHit, d.Elements)
		e.lastEval = grow(e.lastEval, d.Elements)
		e.lockout = grow(e.lockout, d.Elements)
		e.inReaction = grow(e.inReaction, d.Elements)
		e.mult = grow(e.mult, d.Elements)
		e.multDirty = true
		e.presence.resize(d.Elements)
	}
	if len(e.cooldown) < d.Reactions {
		e.cooldown = grow(e.cooldown, d.Reactions)
	}
	if len(e.preActive) < d.PreEffects {
		e.preActive = grow(e.preActive, d.PreEffects)
		e.preIntensity = grow(e.preIntensity, d.PreEffects)
		e.preExpiry = grow(e.preExpiry, d.PreEffects)
		e.preCooldown = grow(e.preCooldown, d.PreEffects)
	}
	if len(e.states) < d.States {
		e.states = grow(e.states, d.States)
	}
}

func grow[T any](s []T, n int) []T {
	if len(s) >= n {
		return s
	}
	return append(s, make([]T, n-len(s))...)
}

// set writes a channel value and keeps the presence aggregate in sync.
func (e *entry) set(h catalog.ElementHandle, v int) {
	v = min(max(v, 0), Max)
	old := int(e.values[h])
	if old == v {
		return
	}
	e.values[h] = uint8(v)
	e.presence.transition(h, old, v)
}

// stamp marks channel h as touched at sim time t.
func (e *entry) stamp(h catalog.ElementHandle, t float64) {
	e.lastHit[h] = t
	e.lastEval[h] = t
}

// multiplier returns the cached product of active-state gauge
// multipliers for element h.
func (e *entry) multiplier(cat *catalog.Catalog, h catalog.ElementHandle) float64 {
	if e.multDirty {
		for i := 1; i < len(e.mult); i++ {
			m := 1.0
			if e.nStates > 0 {
				el, _ := cat.Elements.Get(catalog.ElementHandle(i))
				for s := 1; s < len(e.states); s++ {
					if e.states[s] {
						m *= el.GaugeMultiplier(catalog.StateHandle(s))
					}
				}
			}
			e.mult[i] = m
		}
		e.multDirty = false
	}
	return e.mult[h]
}

// pending reports whether any timer or continuous effect is live.
func (e *entry) pending(now Instant) bool {
	for i := range e.lockout {
		if e.lockout[i].Locked(now) {
			return true
		}
	}
	for i := range e.cooldown {
		if e.cooldown[i].Locked(now) {
			return true
		}
	}
	for i := range e.preActive {
		if e.preActive[i] || e.preCooldown[i].Locked(now) {
			return true
		}
	}
	return false
}

// collectible reports whether the entry holds nothing worth keeping.
func (e *entry) collectible(now Instant) bool {
	return e.presence.sum == 0 && e.nStates == 0 && !e.pending(now)
}
