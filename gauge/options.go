package gauge

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/elemental/catalog"
)

// EntityID re-exports the catalog's entity identifier.
type EntityID = catalog.EntityID

// Kind classifies an entity for the per-kind gain multiplier.
type Kind uint8

const (
	KindOther Kind = iota
	KindPlayer
)

func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "other"
}

// Dispatcher runs callbacks on the host's designated single-threaded
// context. Post returns false when the command was not accepted, in which
// case the store runs it inline.
type Dispatcher interface {
	Post(cmd func()) bool
}

// Display is armed on every applied stimulus while gauge display is
// enabled.
type Display interface {
	Arm()
}

// Observer receives store events synchronously on the calling goroutine,
// after the store lock is released. Implementations must be safe for
// concurrent use.
type Observer interface {
	StimulusApplied(id EntityID, elem catalog.ElementHandle, scaled, value int)
	StimulusBlocked(id EntityID, elem catalog.ElementHandle)
	ReactionFired(ev catalog.ReactionEvent)
	PreEffectChanged(ev catalog.PreEffectEvent)
}

// NopObserver implements Observer with no-ops; embed it to implement a
// subset.
type NopObserver struct{}

func (NopObserver) StimulusApplied(EntityID, catalog.ElementHandle, int, int) {}
func (NopObserver) StimulusBlocked(EntityID, catalog.ElementHandle) {}
func (NopObserver) ReactionFired(catalog.ReactionEvent) {}
func (NopObserver) PreEffectChanged(catalog.PreEffectEvent) {}

type observers []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out observers
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o observers) StimulusApplied(id EntityID, elem catalog.ElementHandle, scaled, value int) {
	for _, x := range o {
		x.StimulusApplied(id, elem, scaled, value)
	}
}

func (o observers) StimulusBlocked(id EntityID, elem catalog.ElementHandle) {
	for _, x := range o {
		x.StimulusBlocked(id, elem)
	}
}

func (o observers) ReactionFired(ev catalog.ReactionEvent) {
	for _, x := range o {
		x.ReactionFired(ev)
	}
}

func (o observers) PreEffectChanged(ev catalog.PreEffectEvent) {
	for _, x := range o {
		x.PreEffectChanged(ev)
	}
}

// Options configures a Store. Start from DefaultOptions.
type Options struct {
	// Gain multipliers per entity kind.
	PlayerMultiplier float64
	OtherMultiplier  float64
	// KindOf classifies entities; nil treats everything as KindOther.
	KindOf func(EntityID) Kind

	// SingleTrigger selects a reaction when one element reaches Max.
	SingleTrigger bool
	// AggregateTrigger selects a reaction when the entity total reaches Max.
	AggregateTrigger bool
	// MaxPicks caps reactions fired per trigger.
	MaxPicks int

	// Decay: one point per RealSecondsPerPoint of real time, after
	// GraceRealSeconds without a hit. Both convert through the timescale.
	RealSecondsPerPoint float64
	GraceRealSeconds    float64

	// MinLockout is the floor of the fallback element lockout.
	MinLockout time.Duration

	// Pre-effects re-apply when intensity moves more than IntensityEpsilon
	// or their expiry is within RefreshMargin.
	IntensityEpsilon float64
	RefreshMargin    time.Duration

	DisplayEnabled bool
	Display        Display

	Dispatcher Dispatcher
	Observer   Observer
	Logger     *slog.Logger
}

// DefaultOptions returns neutral multipliers, aggregate triggering with a
// single pick and the stock decay constants.
func DefaultOptions() Options {
	return Options{
		PlayerMultiplier:    1,
		OtherMultiplier:     1,
		AggregateTrigger:    true,
		MaxPicks:            1,
		RealSecondsPerPoint: 0.5,
		GraceRealSeconds:    3,
		MinLockout:          500 * time.Millisecond,
		IntensityEpsilon:    1e-3,
		RefreshMargin:       250 * time.Millisecond,
	}
}

func (o *Options) normalize() {
	o.PlayerMultiplier = max(o.PlayerMultiplier, 0)
	o.OtherMultiplier = max(o.OtherMultiplier, 0)
	o.MaxPicks = max(o.MaxPicks, 1)
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}
