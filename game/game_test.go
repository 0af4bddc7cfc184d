package game

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pthm-cable/elemental/components"
	"github.com/pthm-cable/elemental/telemetry"
)

func newHeadless(t *testing.T, opts Options) *Game {
	t.Helper()
	if opts.Config == nil {
		opts.Config = loadDefaults(t)
		opts.Config.Simulation.Workers = 1
	}
	opts.Headless = true
	opts.Logger = slog.New(slog.DiscardHandler)
	g, err := NewGameWithOptions(opts)
	if err != nil {
		t.Fatalf("NewGameWithOptions: %v", err)
	}
	t.Cleanup(g.Unload)
	return g
}

func run(g *Game, ticks int) {
	for i := 0; i < ticks; i++ {
		g.UpdateHeadless()
	}
}

type trackedState struct {
	Tracked components.Tracked
	Health  components.Health
	Pos     components.Position
}

func snapshotTracked(g *Game) []trackedState {
	var out []trackedState
	query := g.trackedFilter.Query()
	for query.Next() {
		pos, _, _, tracked, health, _ := query.Get()
		out = append(out, trackedState{Tracked: *tracked, Health: *health, Pos: *pos})
	}
	return out
}

func TestHeadlessRun(t *testing.T) {
	g := newHeadless(t, Options{})
	cfg := g.cfg

	var windows []telemetry.WindowStats
	g.SetStatsCallback(func(s telemetry.WindowStats) { windows = append(windows, s) })

	run(g, 4*cfg.Derived.WindowTicks)

	if g.Tick() != int32(4*cfg.Derived.WindowTicks) {
		t.Errorf("Tick = %d, want %d", g.Tick(), 4*cfg.Derived.WindowTicks)
	}
	if len(windows) != 4 {
		t.Fatalf("flushed %d windows, want 4", len(windows))
	}
	if len(g.entities) != cfg.Simulation.Entities {
		t.Errorf("population = %d, want %d", len(g.entities), cfg.Simulation.Entities)
	}

	var applied, reactions, deaths int
	for _, w := range windows {
		applied += w.StimuliApplied
		reactions += w.Reactions
		deaths += w.Deaths
		if w.Entities != cfg.Simulation.Entities {
			t.Errorf("window %d sampled %d entities", w.WindowEndTick, w.Entities)
		}
	}
	if applied == 0 {
		t.Error("no stimuli reached the store")
	}
	if reactions == 0 {
		t.Error("no reactions fired")
	}

	damaged := false
	for _, s := range snapshotTracked(g) {
		if s.Health.Value < s.Health.Max {
			damaged = true
		}
	}
	if !damaged && deaths == 0 {
		t.Error("reactions dealt no damage")
	}
}

func TestPlayerKind(t *testing.T) {
	g := newHeadless(t, Options{})
	players := 0
	for id := range g.entities {
		if g.kindOf(id).String() == "player" {
			players++
		}
	}
	if players != g.cfg.Simulation.Players {
		t.Errorf("%d player entities, want %d", players, g.cfg.Simulation.Players)
	}
	if g.kindOf(9999).String() != "other" {
		t.Error("unknown entity not classified as other")
	}
}

func TestSaveLoadRestoresSession(t *testing.T) {
	g := newHeadless(t, Options{})
	run(g, 60)

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	wantTick := g.Tick()
	wantClock := g.Clock().Now()
	wantTracked := snapshotTracked(g)
	wantGauges := g.Store().States()

	run(g, 40)
	if err := g.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if g.Tick() != wantTick {
		t.Errorf("Tick = %d, want %d", g.Tick(), wantTick)
	}
	if got := g.Clock().Now(); got != wantClock {
		t.Errorf("clock = %+v, want %+v", got, wantClock)
	}

	byID := cmpopts.SortSlices(func(a, b trackedState) bool { return a.Tracked.ID < b.Tracked.ID })
	if diff := cmp.Diff(wantTracked, snapshotTracked(g), byID); diff != "" {
		t.Errorf("tracked entities (-want +got):\n%s", diff)
	}
	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(wantGauges, g.Store().States(), approx, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("gauges (-want +got):\n%s", diff)
	}

	emitters := 0
	query := g.emitterFilter.Query()
	for query.Next() {
		emitters++
	}
	if want := len(wantTracked) * g.cfg.Simulation.EmittersPerEntity; emitters != want {
		t.Errorf("%d emitters after load, want %d", emitters, want)
	}

	// The restored session keeps running.
	run(g, 10)
	if g.Tick() != wantTick+10 {
		t.Errorf("Tick after resume = %d, want %d", g.Tick(), wantTick+10)
	}
}

func TestSaveFileLoadsIntoFreshGame(t *testing.T) {
	dir := t.TempDir()
	g := newHeadless(t, Options{OutputDir: filepath.Join(dir, "out")})
	run(g, g.cfg.Derived.WindowTicks)

	if err := g.SaveFile(filepath.Join(dir, "manual.sav")); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	h := newHeadless(t, Options{})
	if err := h.LoadFile(filepath.Join(dir, "manual.sav")); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if h.Tick() != g.Tick() || len(h.entities) != len(g.entities) {
		t.Errorf("loaded tick %d with %d entities, want %d with %d", h.Tick(), len(h.entities), g.Tick(), len(g.entities))
	}
}
