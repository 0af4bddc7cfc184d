package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/elemental/config"
	"github.com/pthm-cable/elemental/game"
	"github.com/pthm-cable/elemental/logging"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for save files written on bookmarks")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per update call (higher = faster headless runs)")
	loadPath := flag.String("load", "", "Save file to resume from")
	savePath := flag.String("save", "", "Save file written on exit")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	levelName := cfg.Logging.Level
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logging.Init(level, cfg.Logging.Format, os.Stdout)

	opts := game.Options{
		Seed:           *seed,
		LogStats:       *logStats,
		SnapshotDir:    *snapshotDir,
		OutputDir:      *outputDir,
		Headless:       *headless,
		StepsPerUpdate: *stepsPerUpdate,
		Logger:         slog.Default(),
	}

	if *headless {
		// Headless mode - no raylib needed
		g := mustGame(opts, *loadPath)
		defer finish(g, *savePath)

		slog.Info("starting headless simulation",
			"max_ticks", *maxTicks,
			"steps_per_update", *stepsPerUpdate,
		)

		for {
			g.UpdateHeadless()

			if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
				slog.Info("max ticks reached", "tick", g.Tick())
				return
			}
		}
	}

	// Graphical mode
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Elemental Gauges")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g := mustGame(opts, *loadPath)
	defer finish(g, *savePath)

	for !rl.WindowShouldClose() {
		g.Update()
		g.Draw()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			break
		}
	}
}

func mustGame(opts game.Options, loadPath string) *game.Game {
	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}
	if loadPath != "" {
		if err := g.LoadFile(loadPath); err != nil {
			slog.Error("failed to load save", "path", loadPath, "error", err)
			os.Exit(1)
		}
	}
	return g
}

func finish(g *game.Game, savePath string) {
	if savePath != "" {
		if err := g.SaveFile(savePath); err != nil {
			slog.Error("failed to write save", "path", savePath, "error", err)
		}
	}
	g.Unload()
}
