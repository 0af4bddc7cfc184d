// Package game runs the elemental gauge harness: tracked entities on an
// ark ECS world, stimulus emitters feeding a gauge store, reaction and
// pre-effect consequences, telemetry, and an optional raylib view.
package game

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/components"
	"github.com/pthm-cable/elemental/config"
	"github.com/pthm-cable/elemental/dispatch"
	"github.com/pthm-cable/elemental/gauge"
	"github.com/pthm-cable/elemental/hud"
	"github.com/pthm-cable/elemental/intake"
	"github.com/pthm-cable/elemental/savegame"
	"github.com/pthm-cable/elemental/telemetry"
)

// Options configures a game instance.
type Options struct {
	Config         *config.Config // nil uses config.Cfg()
	Seed           uint64         // 0 uses simulation.seed
	LogStats       bool
	OutputDir      string // CSV logs and config snapshot; empty disables
	SnapshotDir    string // save files written on bookmarks; empty disables
	Headless       bool
	StepsPerUpdate int
	Logger         *slog.Logger
}

// Game holds the complete harness state.
type Game struct {
	cfg *config.Config
	log *slog.Logger
	rng *rand.Rand

	world *ecs.World

	trackedMapper *ecs.Map6[
		components.Position,
		components.Velocity,
		components.Body,
		components.Tracked,
		components.Health,
		components.Afflictions,
	]
	trackedFilter *ecs.Filter6[
		components.Position,
		components.Velocity,
		components.Body,
		components.Tracked,
		components.Health,
		components.Afflictions,
	]
	emitterMapper *ecs.Map1[components.Emitter]
	emitterFilter *ecs.Filter1[components.Emitter]

	// Individual component mappers for lookups
	posMap     *ecs.Map1[components.Position]
	trackedMap *ecs.Map1[components.Tracked]
	healthMap  *ecs.Map1[components.Health]
	afflMap    *ecs.Map1[components.Afflictions]

	// Tracked entities by store identifier
	entities map[catalog.EntityID]ecs.Entity

	// Gauge runtime
	cat       *catalog.Catalog
	clock     *gauge.ManualClock
	store     *gauge.Store
	tracker   *intake.Tracker
	queue     *dispatch.Queue
	saves     *savegame.Dispatcher
	refresher *hud.Refresher
	frame     atomic.Pointer[[]gauge.View] // latest refresher output

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	snapshotDir      string

	// Parallel emitter scratch
	emitScratch []emitterSnapshot
	workers     int

	// State
	seed           uint64
	tick           int32
	paused         bool
	stepsPerUpdate int
	nextID         catalog.EntityID
	nextKey        uint64
	selected       catalog.EntityID

	// Arena dimensions
	width, height float32
}

// NewGameWithOptions creates a game with the given options.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:   cfg,
		log:   logger.With(slog.String("component", "game")),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		world: world,
		trackedMapper: ecs.NewMap6[
			components.Position,
			components.Velocity,
			components.Body,
			components.Tracked,
			components.Health,
			components.Afflictions,
		](world),
		trackedFilter: ecs.NewFilter6[
			components.Position,
			components.Velocity,
			components.Body,
			components.Tracked,
			components.Health,
			components.Afflictions,
		](world),
		emitterMapper: ecs.NewMap1[components.Emitter](world),
		emitterFilter: ecs.NewFilter1[components.Emitter](world),
		posMap:        ecs.NewMap1[components.Position](world),
		trackedMap:    ecs.NewMap1[components.Tracked](world),
		healthMap:     ecs.NewMap1[components.Health](world),
		afflMap:       ecs.NewMap1[components.Afflictions](world),
		entities:      make(map[catalog.EntityID]ecs.Entity),

		logStats:       opts.LogStats,
		snapshotDir:    opts.SnapshotDir,
		workers:        max(cfg.Simulation.Workers, 1),
		seed:           seed,
		stepsPerUpdate: max(opts.StepsPerUpdate, 1),
		nextID:         1,
		nextKey:        1,
		width:          float32(cfg.Screen.Width),
		height:         float32(cfg.Screen.Height),
	}

	cat, err := BuildCatalog(cfg, g, logger)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	g.cat = cat
	g.clock = gauge.NewManualClock(gauge.Instant{Timescale: cfg.Simulation.Timescale})
	g.queue = dispatch.New(0, logger)
	g.collector = telemetry.NewCollector(cfg.Derived.WindowTicks, 4096)
	g.perfCollector = telemetry.NewPerfCollector(cfg.Derived.WindowTicks)
	g.bookmarkDetector = telemetry.NewBookmarkDetector(10)

	storeOpts := StoreOptions(cfg)
	storeOpts.KindOf = g.kindOf
	storeOpts.Dispatcher = g.queue
	storeOpts.Observer = g.collector
	storeOpts.Logger = logger
	if !opts.Headless && cfg.Gauges.Display {
		g.refresher = hud.New(&lazySource{g: g}, g.publishFrame, hud.Options{
			Interval:    cfg.Derived.HUDRefresh,
			IdleTimeout: cfg.Derived.HUDIdle,
		}, logger)
		storeOpts.Display = g.refresher
	} else {
		storeOpts.DisplayEnabled = false
	}

	g.store, err = gauge.NewStore(cat, g.clock, storeOpts)
	if err != nil {
		return nil, err
	}
	g.tracker = intake.NewTracker(cat.Elements, g.store, logger)

	g.saves = savegame.NewDispatcher(logger)
	if err := g.saves.Register(harnessRecord{g}); err != nil {
		return nil, err
	}
	if err := g.saves.Register(gauge.Record{Store: g.store}); err != nil {
		return nil, err
	}

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		g.log.Error("failed to write config snapshot", "error", err)
	}

	g.spawnInitialPopulation()

	g.log.Info("game initialized",
		"seed", seed,
		"entities", len(g.entities),
		"elements", cat.Elements.Len(),
		"reactions", cat.Reactions.Len(),
		"pre_effects", cat.PreEffects.Len(),
		"workers", g.workers,
	)
	return g, nil
}

// lazySource defers to the store once it exists; the refresher is built
// before the store it reads.
type lazySource struct{ g *Game }

func (s *lazySource) Views() iter.Seq[gauge.View] {
	return s.g.store.Views()
}

func (g *Game) publishFrame(views []gauge.View) {
	g.frame.Store(&views)
}

func (g *Game) kindOf(id catalog.EntityID) gauge.Kind {
	e, ok := g.entities[id]
	if !ok {
		return gauge.KindOther
	}
	if t := g.trackedMap.Get(e); t != nil && t.Player {
		return gauge.KindPlayer
	}
	return gauge.KindOther
}

// Update runs the configured number of simulation steps.
func (g *Game) Update() {
	g.handleInput()
	if g.paused {
		return
	}
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

// UpdateHeadless runs simulation steps without reading input.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.tick
}

// Store returns the gauge store.
func (g *Game) Store() *gauge.Store {
	return g.store
}

// Catalog returns the frozen catalog.
func (g *Game) Catalog() *catalog.Catalog {
	return g.cat
}

// Clock returns the harness clock.
func (g *Game) Clock() *gauge.ManualClock {
	return g.clock
}

// SetStatsCallback registers a function called with each flushed window.
func (g *Game) SetStatsCallback(fn func(telemetry.WindowStats)) {
	g.statsCallback = fn
}

// Unload stops background work and closes output files.
func (g *Game) Unload() {
	if g.refresher != nil {
		g.refresher.Stop()
	}
	g.queue.Close()
	g.queue.Drain()
	if err := g.outputManager.Close(); err != nil {
		g.log.Error("failed to close output", "error", err)
	}
}
