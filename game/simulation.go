package game

import (
	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/components"
	"github.com/pthm-cable/elemental/config"
	"github.com/pthm-cable/elemental/telemetry"
)

// simulationStep advances the harness by one tick.
func (g *Game) simulationStep() {
	g.perfCollector.StartTick()
	dt := float32(g.cfg.Simulation.DT)

	// 1. Flip states and fire emitters into the store
	g.perfCollector.StartPhase(telemetry.PhaseEmitters)
	if g.cfg.Gauges.Enabled {
		g.updateStates()
		if err := g.fireEmitters(dt); err != nil {
			g.log.Error("emitter pass failed", "error", err, "tick", g.tick)
		}
		g.updateEmitters(dt)
	}

	// 2. Run reaction and pre-effect callbacks on this goroutine
	g.perfCollector.StartPhase(telemetry.PhaseDispatch)
	g.drainQueue()

	// 3. Damage over time
	g.perfCollector.StartPhase(telemetry.PhaseHealth)
	g.updateHealth(dt)

	// 4. Movement, slowed by afflictions
	g.perfCollector.StartPhase(telemetry.PhaseMovement)
	g.updateMovement(dt)

	// 5. Periodic sweep expires timers and collects empty entities
	g.perfCollector.StartPhase(telemetry.PhaseSweep)
	if int(g.tick)%g.cfg.Derived.SweepEvery == 0 {
		n := g.store.Sweep()
		g.perfCollector.RecordSweep(n)
		if n > 0 {
			g.log.Debug("sweep collected", "entities", n, "tick", g.tick)
		}
		g.drainQueue()
	}

	// 6. Remove the dead and respawn
	g.perfCollector.StartPhase(telemetry.PhaseCleanup)
	g.cleanupDead()

	g.clock.Advance(g.cfg.Derived.TickDuration)
	g.tick++

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()
	g.perfCollector.EndTick(g.store.Len())
}

// drainQueue runs pending callbacks and records the drain.
func (g *Game) drainQueue() {
	depth := g.queue.Len()
	g.perfCollector.RecordDrain(depth, g.queue.Drain())
}

// updateStates flips a random catalog state on a fraction of entities.
func (g *Game) updateStates() {
	n := g.cat.States.Len()
	chance := g.cfg.Simulation.StateChance
	if n == 0 || chance <= 0 {
		return
	}
	query := g.trackedFilter.Query()
	for query.Next() {
		_, _, _, tracked, health, _ := query.Get()
		if !health.Alive || g.rng.Float64() >= chance {
			continue
		}
		st := catalog.StateHandle(1 + g.rng.IntN(n))
		g.store.SetActive(tracked.ID, st, !g.store.IsActive(tracked.ID, st))
	}
}

// updateHealth applies burn damage from active pre-effects.
func (g *Game) updateHealth(dt float32) {
	query := g.trackedFilter.Query()
	for query.Next() {
		_, _, _, _, health, affl := query.Get()
		if !health.Alive || affl.Burn <= 0 {
			continue
		}
		health.Value -= affl.Burn * dt
		if health.Value <= 0 {
			kill(health)
		}
	}
}

// updateMovement moves entities at their speed scaled by 1-Slow,
// wrapping at the arena edges.
func (g *Game) updateMovement(dt float32) {
	query := g.trackedFilter.Query()
	for query.Next() {
		pos, vel, _, _, health, affl := query.Get()
		if !health.Alive {
			continue
		}
		keep := 1 - affl.Slow
		pos.X += vel.X * keep * dt
		pos.Y += vel.Y * keep * dt

		if pos.X < 0 {
			pos.X += g.width
		} else if pos.X >= g.width {
			pos.X -= g.width
		}
		if pos.Y < 0 {
			pos.Y += g.height
		} else if pos.Y >= g.height {
			pos.Y -= g.height
		}
	}
}

// ApplyReaction deals the reaction's damage, scaled by the mean health
// multiplier of its elements under the entity's active states.
func (g *Game) ApplyReaction(rc config.ReactionConfig, ev catalog.ReactionEvent) {
	e, ok := g.entities[ev.Entity]
	if !ok || !g.world.Alive(e) {
		return
	}
	health := g.healthMap.Get(e)
	if health == nil || !health.Alive {
		return
	}

	mult := 1.0
	if len(ev.Elements) > 0 {
		sum := 0.0
		for _, el := range ev.Elements {
			sum += g.store.HealthMultiplier(ev.Entity, el)
		}
		mult = sum / float64(len(ev.Elements))
	}
	damage := float32(rc.Damage * mult)
	health.Value -= damage
	if health.Value <= 0 {
		kill(health)
	}
	g.log.Debug("reaction",
		"entity", ev.Entity,
		"reaction", ev.Name,
		"damage", damage,
		"health", health.Value,
	)
}

// ApplyPreEffect records the slow or burn contribution of a pre-effect
// while it is active and drops it when it ends.
func (g *Game) ApplyPreEffect(pc config.PreEffectConfig, ev catalog.PreEffectEvent) {
	e, ok := g.entities[ev.Entity]
	if !ok || !g.world.Alive(e) {
		return
	}
	affl := g.afflMap.Get(e)
	if affl == nil {
		return
	}
	slow, burn := afflictionFor(pc, ev.Active, ev.Intensity)
	affl.Set(ev.PreEffect, slow, burn)
}

func afflictionFor(pc config.PreEffectConfig, active bool, intensity float64) (slow, burn float32) {
	if !active {
		return 0, 0
	}
	if pc.Slow {
		slow = float32(intensity)
	}
	burn = float32(pc.DamagePerSecond * intensity)
	return slow, burn
}

// syncAfflictions rebuilds every entity's afflictions from the store's
// pre-effect state, after a load.
func (g *Game) syncAfflictions() {
	pcs := g.cfg.Catalog.PreEffects
	query := g.trackedFilter.Query()
	for query.Next() {
		_, _, _, tracked, _, affl := query.Get()
		*affl = components.Afflictions{}
		for i, pc := range pcs {
			h := catalog.PreEffectHandle(i + 1)
			active, intensity := g.store.PreEffectState(tracked.ID, h)
			slow, burn := afflictionFor(pc, active, intensity)
			affl.Set(h, slow, burn)
		}
	}
}
