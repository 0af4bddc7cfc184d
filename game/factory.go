package game

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/config"
	"github.com/pthm-cable/elemental/gauge"
)

// Consequences receives fired reactions and pre-effect changes together
// with the config entry that declared them.
type Consequences interface {
	ApplyReaction(rc config.ReactionConfig, ev catalog.ReactionEvent)
	ApplyPreEffect(pc config.PreEffectConfig, ev catalog.PreEffectEvent)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// BuildCatalog registers the configured states, elements, reactions and
// pre-effects in declaration order and freezes the catalog. Callbacks
// route to c, which may be nil.
func BuildCatalog(cfg *config.Config, c Consequences, logger *slog.Logger) (*catalog.Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cat := catalog.New(catalog.WithLogger(logger))
	cc := cfg.Catalog

	states := make(map[string]catalog.StateHandle, len(cc.States))
	for _, s := range cc.States {
		h, err := cat.RegisterState(catalog.State{Name: s.Name, Classifier: s.Classifier})
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", s.Name, err)
		}
		states[s.Name] = h
	}

	elements := make(map[string]catalog.ElementHandle, len(cc.Elements))
	for _, e := range cc.Elements {
		h, err := cat.RegisterElement(catalog.Element{Name: e.Name, Color: e.Color, Classifier: e.Classifier})
		if err != nil {
			return nil, fmt.Errorf("element %q: %w", e.Name, err)
		}
		elements[e.Name] = h
		for _, m := range e.StateMultipliers {
			if err := cat.SetStateMultiplier(h, states[m.State], m.Gauge, m.Health); err != nil {
				return nil, fmt.Errorf("element %q state %q: %w", e.Name, m.State, err)
			}
		}
	}

	for _, rc := range cc.Reactions {
		r := catalog.Reaction{
			Name:              rc.Name,
			MinTotalGauge:     rc.MinTotalGauge,
			MinPctEach:        rc.MinPctEach,
			MinSumSelected:    rc.MinSumSelected,
			Cooldown:          seconds(rc.CooldownSeconds),
			CooldownRealTime:  rc.CooldownRealTime,
			ElementLockout:    seconds(rc.LockoutSeconds),
			LockoutRealTime:   rc.LockoutRealTime,
			ClearAllOnTrigger: rc.ClearAll,
			Priority:          rc.Priority,
			Payload:           rc.Damage,
			HUD:               catalog.HUD{Icon: rc.Icon, Tint: rc.Tint},
		}
		for _, name := range rc.Elements {
			r.Elements = append(r.Elements, elements[name])
		}
		if c != nil {
			r.Callback = func(ev catalog.ReactionEvent) { c.ApplyReaction(rc, ev) }
		}
		if _, err := cat.RegisterReaction(r); err != nil {
			return nil, fmt.Errorf("reaction %q: %w", rc.Name, err)
		}
	}

	for _, pc := range cc.PreEffects {
		p := catalog.PreEffect{
			Name:             pc.Name,
			Element:          elements[pc.Element],
			MinGauge:         pc.MinGauge,
			Base:             pc.Base,
			Scale:            pc.Scale,
			MinIntensity:     pc.MinIntensity,
			MaxIntensity:     pc.MaxIntensity,
			Duration:         seconds(pc.DurationSeconds),
			DurationRealTime: pc.DurationRealTime,
			Cooldown:         seconds(pc.CooldownSeconds),
			CooldownRealTime: pc.CooldownRealTime,
		}
		if c != nil {
			p.Callback = func(ev catalog.PreEffectEvent) { c.ApplyPreEffect(pc, ev) }
		}
		if _, err := cat.RegisterPreEffect(p); err != nil {
			return nil, fmt.Errorf("pre-effect %q: %w", pc.Name, err)
		}
	}

	cat.Freeze()
	return cat, nil
}

// StoreOptions maps the gauge sections of cfg onto store options. The
// caller wires the dispatcher, observer, display and kind classifier.
func StoreOptions(cfg *config.Config) gauge.Options {
	opts := gauge.DefaultOptions()
	opts.PlayerMultiplier = cfg.Gauges.PlayerMultiplier
	opts.OtherMultiplier = cfg.Gauges.OtherMultiplier
	opts.SingleTrigger = cfg.Gauges.SingleTrigger
	opts.AggregateTrigger = cfg.Gauges.AggregateTrigger
	opts.MaxPicks = cfg.Gauges.MaxPicks
	opts.RealSecondsPerPoint = cfg.Decay.RealSecondsPerPoint
	opts.GraceRealSeconds = cfg.Decay.GraceRealSeconds
	opts.MinLockout = cfg.Derived.MinLockout
	opts.IntensityEpsilon = cfg.PreEffects.IntensityEpsilon
	opts.RefreshMargin = cfg.Derived.RefreshMargin
	opts.DisplayEnabled = cfg.Gauges.Display
	return opts
}
