package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/elemental/catalog"
)

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > 1 {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < 10 {
		g.stepsPerUpdate++
	}

	if rl.IsKeyPressed(rl.KeyC) {
		g.clearGauges()
	}

	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		mouse := rl.GetMousePosition()
		if !rl.CheckCollisionPointRec(mouse, panelRect) {
			g.selected = g.pick(mouse.X, mouse.Y)
		}
	}
}

// pick returns the tracked entity under the given point, or zero.
func (g *Game) pick(x, y float32) catalog.EntityID {
	var best catalog.EntityID
	bestDist := float32(-1)
	query := g.trackedFilter.Query()
	for query.Next() {
		pos, _, body, tracked, _, _ := query.Get()
		dx, dy := pos.X-x, pos.Y-y
		d := dx*dx + dy*dy
		if d > body.Radius*body.Radius {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = tracked.ID, d
		}
	}
	return best
}

// clearGauges empties every gauge and drops the afflictions they caused.
func (g *Game) clearGauges() {
	g.store.ClearAll()
	g.queue.Drain()
	g.syncAfflictions()
	g.log.Info("gauges cleared", "tick", g.tick)
}
