package game

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/gauge"
)

// panelRect is the control panel area; clicks inside it do not select.
var panelRect = rl.Rectangle{X: 8, Y: 8, Width: 230, Height: 200}

const (
	barWidth  = 30
	barHeight = 4
)

var background = rl.Color{R: 18, G: 20, B: 28, A: 255}

func rgb(c uint32) rl.Color {
	return rl.Color{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

// Draw renders the arena, gauge bars and control panel.
func (g *Game) Draw() {
	g.perfCollector.RecordFrame()

	rl.BeginDrawing()
	rl.ClearBackground(background)

	views := g.frameViews()
	g.drawEntities(views)
	g.drawPanel()
	if g.selected != 0 {
		g.drawSelection()
	}

	rl.EndDrawing()
}

// frameViews indexes the last refresher frame by entity.
func (g *Game) frameViews() map[catalog.EntityID]gauge.View {
	p := g.frame.Load()
	if p == nil {
		return nil
	}
	views := make(map[catalog.EntityID]gauge.View, len(*p))
	for _, v := range *p {
		views[v.Entity] = v
	}
	return views
}

func (g *Game) drawEntities(views map[catalog.EntityID]gauge.View) {
	query := g.trackedFilter.Query()
	for query.Next() {
		pos, _, body, tracked, health, affl := query.Get()
		if !health.Alive {
			continue
		}

		color := rl.LightGray
		if tracked.Player {
			color = rl.Gold
		}
		rl.DrawCircle(int32(pos.X), int32(pos.Y), body.Radius, color)
		if affl.Slow > 0 {
			rl.DrawCircleLines(int32(pos.X), int32(pos.Y), body.Radius+3, rl.SkyBlue)
		}
		if affl.Burn > 0 {
			rl.DrawCircleLines(int32(pos.X), int32(pos.Y), body.Radius+5, rl.Orange)
		}
		if tracked.ID == g.selected {
			rl.DrawCircleLines(int32(pos.X), int32(pos.Y), body.Radius+8, rl.White)
		}

		// Health bar
		x := int32(pos.X - barWidth/2)
		y := int32(pos.Y - body.Radius - 8)
		frac := health.Value / health.Max
		rl.DrawRectangle(x, y, barWidth, barHeight, rl.DarkGray)
		rl.DrawRectangle(x, y, int32(barWidth*frac), barHeight, rl.Green)

		// One bar per present element, stacked above the health bar
		v, ok := views[tracked.ID]
		if !ok {
			continue
		}
		for _, h := range v.Present() {
			y -= barHeight + 1
			el, _ := g.cat.Elements.Get(h)
			c := rgb(el.Color)
			if v.InReaction[h] {
				c = rl.Fade(c, 0.4)
			}
			w := int32(float32(v.Values[h]) / gauge.Max * barWidth)
			rl.DrawRectangle(x, y, w, barHeight, c)
		}
	}
}

func (g *Game) drawPanel() {
	rl.DrawRectangleRec(panelRect, rl.Fade(rl.Black, 0.6))
	x, y := panelRect.X+10, panelRect.Y+10

	status := "running"
	if g.paused {
		status = "paused"
	}
	rl.DrawText(fmt.Sprintf("tick %d  %s  x%d", g.tick, status, g.stepsPerUpdate), int32(x), int32(y), 14, rl.White)
	y += 20

	now := g.clock.Now()
	rl.DrawText(fmt.Sprintf("sim %.2fh  gauged %d", now.Sim, g.store.Len()), int32(x), int32(y), 14, rl.Gray)
	y += 24

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 100, Height: 24}, toggleText(g.paused, "Resume", "Pause")) {
		g.paused = !g.paused
	}
	if gui.Button(rl.Rectangle{X: x + 110, Y: y, Width: 100, Height: 24}, "Clear") {
		g.clearGauges()
	}
	y += 30

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 100, Height: 24}, "Save") {
		if err := g.SaveFile(g.quickSavePath()); err != nil {
			g.log.Error("quick save failed", "error", err)
		}
	}
	if gui.Button(rl.Rectangle{X: x + 110, Y: y, Width: 100, Height: 24}, "Load") {
		if err := g.LoadFile(g.quickSavePath()); err != nil {
			g.log.Error("quick load failed", "error", err)
		}
	}
	y += 36

	rl.DrawText("Timescale", int32(x), int32(y), 14, rl.Gray)
	y += 18
	ts := float32(now.Timescale)
	newTs := gui.SliderBar(rl.Rectangle{X: x + 20, Y: y, Width: 150, Height: 18}, "0", "120", ts, 0, 120)
	if newTs != ts {
		g.clock.SetTimescale(float64(newTs))
	}
	rl.DrawText(fmt.Sprintf("%.0f", ts), int32(x+180), int32(y+2), 14, rl.White)
}

// drawSelection shows the selected entity's channels and timers.
func (g *Game) drawSelection() {
	v, ok := g.store.View(g.selected)
	x := int32(rl.GetScreenWidth()) - 220
	y := int32(10)
	rl.DrawRectangle(x-10, 0, 230, 24+int32(g.cat.Elements.Len())*18+int32(g.cat.PreEffects.Len())*18+30, rl.Fade(rl.Black, 0.6))
	rl.DrawText(fmt.Sprintf("entity %d", g.selected), x, y, 16, rl.White)
	y += 24
	if !ok {
		rl.DrawText("no gauges", x, y, 14, rl.Gray)
		return
	}

	for _, h := range g.cat.Elements.Handles() {
		el, _ := g.cat.Elements.Get(h)
		label := fmt.Sprintf("%-8s %3d", el.Name, v.Values[h])
		if g.store.Locked(g.selected, h) {
			label += "  locked"
		}
		rl.DrawText(label, x, y, 14, rgb(el.Color))
		y += 18
	}
	for _, p := range slices.Sorted(maps.Keys(v.PreEffects)) {
		pe, _ := g.cat.PreEffects.Get(p)
		rl.DrawText(fmt.Sprintf("%s %.2f", pe.Name, v.PreEffects[p]), x, y, 14, rl.SkyBlue)
		y += 18
	}
}

func (g *Game) quickSavePath() string {
	dir := g.snapshotDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "quick.sav")
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
