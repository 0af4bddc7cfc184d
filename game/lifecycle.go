package game

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/components"
	"github.com/pthm-cable/elemental/intake"
)

// spawnInitialPopulation creates the starting entities. The first
// Simulation.Players of them are player-like.
func (g *Game) spawnInitialPopulation() {
	cfg := g.cfg
	for i := 0; i < cfg.Simulation.Entities; i++ {
		g.spawnTracked(i < cfg.Simulation.Players)
	}
}

// spawnTracked creates a tracked entity at a random position with its
// stimulus emitters.
func (g *Game) spawnTracked(player bool) catalog.EntityID {
	id := g.nextID
	g.nextID++

	x := g.rng.Float32() * g.width
	y := g.rng.Float32() * g.height
	g.placeTracked(id, player, float32(g.cfg.Simulation.MaxHealth), float32(g.cfg.Simulation.MaxHealth), x, y)
	g.spawnEmitters(id)
	return id
}

// placeTracked creates the ECS entity for id without emitters.
func (g *Game) placeTracked(id catalog.EntityID, player bool, health, maxHealth, x, y float32) ecs.Entity {
	cfg := g.cfg
	heading := g.rng.Float32() * 2 * math.Pi
	speed := float32(cfg.Simulation.MaxSpeed)

	pos := components.Position{X: x, Y: y}
	vel := components.Velocity{
		X: float32(math.Cos(float64(heading))) * speed,
		Y: float32(math.Sin(float64(heading))) * speed,
	}
	body := components.Body{Radius: float32(cfg.Simulation.Radius), MaxSpeed: speed}
	tracked := components.Tracked{ID: id, Player: player}
	hp := components.Health{Value: health, Max: maxHealth, Alive: health > 0}
	affl := components.Afflictions{}

	entity := g.trackedMapper.NewEntity(&pos, &vel, &body, &tracked, &hp, &affl)
	g.entities[id] = entity
	return entity
}

// spawnEmitters aims the configured number of emitters at id, each with
// an element drawn uniformly from the catalog.
func (g *Game) spawnEmitters(id catalog.EntityID) {
	cfg := g.cfg
	elems := cfg.Catalog.Elements
	if len(elems) == 0 {
		return
	}
	for i := 0; i < cfg.Simulation.EmittersPerEntity; i++ {
		em := components.Emitter{
			Target: id,
			Rate:   float32(cfg.Simulation.StimulusRate),
			Chance: float32(cfg.Simulation.StimulusChance),
		}
		if !g.rollEmitter(&em) {
			continue
		}
		g.emitterMapper.NewEntity(&em)
	}
}

// rollEmitter gives em a fresh key, a random element and a lifetime, and
// binds it in the intake tracker.
func (g *Game) rollEmitter(em *components.Emitter) bool {
	elems := g.cfg.Catalog.Elements
	el := elems[g.rng.IntN(len(elems))]
	em.Key = g.nextKey
	g.nextKey++
	em.Classifier = el.Classifier
	em.TTL = float32(g.rng.ExpFloat64() * g.cfg.Simulation.EmitterSeconds)
	if !g.tracker.Begin(intake.EffectKey(em.Key), em.Target, em.Classifier) {
		g.log.Warn("emitter classifier not registered", "classifier", em.Classifier)
		return false
	}
	return true
}

// updateEmitters ages emitters and rerolls the expired ones, so elements
// left behind decay and entities can trigger again.
func (g *Game) updateEmitters(dt float32) {
	if g.cfg.Simulation.EmitterSeconds <= 0 {
		return
	}
	query := g.emitterFilter.Query()
	for query.Next() {
		em := query.Get()
		em.TTL -= dt
		if em.TTL > 0 {
			continue
		}
		g.tracker.End(intake.EffectKey(em.Key))
		if !g.rollEmitter(em) {
			em.Chance = 0
		}
	}
}

// removeEmitters ends and removes every emitter aimed at one of ids.
func (g *Game) removeEmitters(ids map[catalog.EntityID]bool) {
	var toRemove []ecs.Entity
	query := g.emitterFilter.Query()
	for query.Next() {
		em := query.Get()
		if ids[em.Target] {
			toRemove = append(toRemove, query.Entity())
		}
	}
	for _, e := range toRemove {
		g.world.RemoveEntity(e)
	}
	for id := range ids {
		g.tracker.Forget(id)
	}
}

// cleanupDead removes dead entities, drops their gauges and respawns to
// keep the population at Simulation.Entities.
func (g *Game) cleanupDead() {
	// First pass: collect dead entities (must complete before modifying)
	type deadInfo struct {
		entity ecs.Entity
		id     catalog.EntityID
		player bool
	}
	var toRemove []deadInfo

	query := g.trackedFilter.Query()
	for query.Next() {
		_, _, _, tracked, health, _ := query.Get()
		if !health.Alive {
			toRemove = append(toRemove, deadInfo{entity: query.Entity(), id: tracked.ID, player: tracked.Player})
		}
	}
	if len(toRemove) == 0 {
		return
	}

	dead := make(map[catalog.EntityID]bool, len(toRemove))
	for _, d := range toRemove {
		dead[d.id] = true
		g.store.Clear(d.id)
		g.collector.Forget(d.id)
		g.collector.RecordDeath()
		delete(g.entities, d.id)
		g.world.RemoveEntity(d.entity)
		if g.selected == d.id {
			g.selected = 0
		}
		g.log.Debug("entity died", "id", d.id, "player", d.player, "tick", g.tick)
	}
	g.removeEmitters(dead)

	// Replacements keep the player flag of the entity they replace.
	for _, d := range toRemove {
		g.spawnTracked(d.player)
	}
}

// removeAll drops every tracked entity and emitter without touching the
// store, ahead of a load.
func (g *Game) removeAll() {
	var toRemove []ecs.Entity
	tq := g.trackedFilter.Query()
	for tq.Next() {
		toRemove = append(toRemove, tq.Entity())
	}
	eq := g.emitterFilter.Query()
	for eq.Next() {
		toRemove = append(toRemove, eq.Entity())
	}
	for _, e := range toRemove {
		g.world.RemoveEntity(e)
	}
	for id := range g.entities {
		g.tracker.Forget(id)
		g.collector.Forget(id)
	}
	clear(g.entities)
	g.selected = 0
}

// kill marks a tracked entity dead; cleanupDead removes it.
func kill(h *components.Health) {
	h.Value = 0
	h.Alive = false
}
