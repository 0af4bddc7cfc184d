// Package catalog holds the element, state, reaction and pre-effect
// registries that size and drive the gauge store.
//
// Catalogs are open for registration until Freeze, after which they are
// read-only and every per-entity array is dimensioned against them.
package catalog

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Catalog aggregates the four registries and freezes them together.
type Catalog struct {
	Elements   *Registry[ElementHandle, Element]
	States     *Registry[StateHandle, State]
	Reactions  *Registry[ReactionHandle, Reaction]
	PreEffects *Registry[PreEffectHandle, PreEffect]

	logger *slog.Logger

	mu        sync.Mutex
	mults     []stateMult
	watchers  [][]PreEffectHandle // by element, built at freeze
	frozen    bool
	onFreezes []func(*Catalog)
}

type stateMult struct {
	element ElementHandle
	state   StateHandle
	gauge   float64
	health  float64
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// New creates an open catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	l := c.logger.With(slog.String("component", "catalog"))

	c.Elements = newRegistry[ElementHandle, Element]("element", l)
	c.States = newRegistry[StateHandle, State]("state", l)
	c.Reactions = newRegistry[ReactionHandle, Reaction]("reaction", l)
	c.PreEffects = newRegistry[PreEffectHandle, PreEffect]("pre-effect", l)

	c.Reactions.validate = c.validateReaction
	c.PreEffects.validate = c.validatePreEffect
	return c
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog. Tests should use New.
func Default() *Catalog {
	defaultOnce.Do(func() { defaultCatalog = New() })
	return defaultCatalog
}

// RegisterElement registers a gauge kind.
func (c *Catalog) RegisterElement(e Element) (ElementHandle, error) {
	e.gaugeMult, e.healthMult = nil, nil
	return c.Elements.Register(e)
}

// RegisterState registers an entity condition.
func (c *Catalog) RegisterState(s State) (StateHandle, error) {
	return c.States.Register(s)
}

// RegisterReaction registers a composite trigger. Every element it names
// must already be registered.
func (c *Catalog) RegisterReaction(r Reaction) (ReactionHandle, error) {
	return c.Reactions.Register(r)
}

// RegisterPreEffect registers a continuous threshold effect.
func (c *Catalog) RegisterPreEffect(p PreEffect) (PreEffectHandle, error) {
	return c.PreEffects.Register(p)
}

// SetStateMultiplier records the gauge-gain and health-gain multipliers
// element e applies while state s is active. Both handles may still be
// pending; they are checked at freeze.
func (c *Catalog) SetStateMultiplier(e ElementHandle, s StateHandle, gauge, health float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return &ProtocolError{Kind: "multiplier", Name: fmt.Sprintf("%d/%d", e, s), Err: ErrFrozen}
	}
	if !e.Valid() || !s.Valid() || gauge < 0 || health < 0 {
		return &ProtocolError{Kind: "multiplier", Name: fmt.Sprintf("%d/%d", e, s), Err: ErrInvalid}
	}
	c.mults = append(c.mults, stateMult{element: e, state: s, gauge: gauge, health: health})
	return nil
}

// OnFreeze registers fn to run once the catalog freezes. If it is
// already frozen fn runs immediately.
func (c *Catalog) OnFreeze(fn func(*Catalog)) {
	c.mu.Lock()
	if !c.frozen {
		c.onFreezes = append(c.onFreezes, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(c)
}

// Freeze freezes all registries. States freeze first so each element's
// multiplier tables can be sized to States.Len()+1. Idempotent.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	if c.frozen {
		c.mu.Unlock()
		return
	}

	c.States.Freeze()
	nStates := c.States.Len()

	c.Elements.mu.Lock()
	c.Elements.freezeLocked(func(entries []Element) {
		for i := 1; i < len(entries); i++ {
			entries[i].gaugeMult = ones(nStates + 1)
			entries[i].healthMult = ones(nStates + 1)
		}
		for _, m := range c.mults {
			if int(m.element) >= len(entries) || int(m.state) > nStates {
				c.logger.Warn("dropping multiplier for unknown handle",
					"element", int(m.element), "state", int(m.state))
				continue
			}
			entries[m.element].gaugeMult[m.state] = m.gauge
			entries[m.element].healthMult[m.state] = m.health
		}
	})
	nElements := len(c.Elements.entries) - 1
	c.Elements.mu.Unlock()

	c.Reactions.Freeze()
	c.PreEffects.Freeze()

	c.watchers = make([][]PreEffectHandle, nElements+1)
	for _, h := range c.PreEffects.Handles() {
		p, _ := c.PreEffects.Get(h)
		c.watchers[p.Element] = append(c.watchers[p.Element], h)
	}

	c.frozen = true
	c.mults = nil
	hooks := c.onFreezes
	c.onFreezes = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(c)
	}
}

// Frozen reports whether Freeze has run.
func (c *Catalog) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// PreEffectsFor returns the pre-effects watching element e, in
// registration order. Empty before freeze.
func (c *Catalog) PreEffectsFor(e ElementHandle) []PreEffectHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(e) >= len(c.watchers) {
		return nil
	}
	return c.watchers[e]
}

// Dims returns the dense array sizes (Len()+1) for elements, reactions,
// pre-effects and states.
func (c *Catalog) Dims() Dims {
	return Dims{
		Elements:   c.Elements.Len() + 1,
		Reactions:  c.Reactions.Len() + 1,
		PreEffects: c.PreEffects.Len() + 1,
		States:     c.States.Len() + 1,
	}
}

// Dims are per-kind dense array lengths, slot 0 included.
type Dims struct {
	Elements   int
	Reactions  int
	PreEffects int
	States     int
}

func (c *Catalog) validateReaction(r *Reaction) error {
	if len(r.Elements) == 0 {
		return fmt.Errorf("%w: no elements", ErrInvalid)
	}
	n := ElementHandle(c.Elements.Len())
	seen := make(map[ElementHandle]bool, len(r.Elements))
	for _, e := range r.Elements {
		if !e.Valid() || e > n {
			return fmt.Errorf("%w: unknown element %d", ErrInvalid, e)
		}
		if seen[e] {
			return fmt.Errorf("%w: duplicate element %d", ErrInvalid, e)
		}
		seen[e] = true
	}
	if r.MinPctEach < 0 || r.MinPctEach > 1 || r.MinSumSelected < 0 || r.MinSumSelected > 1 {
		return fmt.Errorf("%w: fraction out of [0,1]", ErrInvalid)
	}
	if r.Cooldown < 0 || r.ElementLockout < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	r.Elements = append([]ElementHandle(nil), r.Elements...)
	return nil
}

func (c *Catalog) validatePreEffect(p *PreEffect) error {
	if !p.Element.Valid() || int(p.Element) > c.Elements.Len() {
		return fmt.Errorf("%w: unknown element %d", ErrInvalid, p.Element)
	}
	if p.MinGauge < 0 || p.MinGauge > 100 {
		return fmt.Errorf("%w: min gauge %d out of [0,100]", ErrInvalid, p.MinGauge)
	}
	if p.MinIntensity == 0 && p.MaxIntensity == 0 {
		p.MaxIntensity = math.Inf(1)
	}
	if p.MaxIntensity < p.MinIntensity {
		return fmt.Errorf("%w: max intensity below min", ErrInvalid)
	}
	if p.Duration < 0 || p.Cooldown < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	return nil
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
