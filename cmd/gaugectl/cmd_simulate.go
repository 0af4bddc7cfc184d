package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/elemental/game"
	"github.com/pthm-cable/elemental/telemetry"
)

var simulateFlags struct {
	ticks       int
	seed        uint64
	workers     int
	outputDir   string
	snapshotDir string
	load        string
	save        string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless harness session and print per-window stats",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simulateFlags.ticks, "ticks", 1000, "Ticks to simulate")
	f.Uint64Var(&simulateFlags.seed, "seed", 0, "RNG seed (0 = use config)")
	f.IntVar(&simulateFlags.workers, "workers", 0, "Parallel stimulus workers (0 = use config)")
	f.StringVar(&simulateFlags.outputDir, "output-dir", "", "Directory for CSV logs")
	f.StringVar(&simulateFlags.snapshotDir, "snapshot-dir", "", "Directory for bookmark save files")
	f.StringVar(&simulateFlags.load, "load", "", "Save file to resume from")
	f.StringVar(&simulateFlags.save, "save", "", "Save file written when the run ends")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if simulateFlags.workers > 0 {
		cfg.Simulation.Workers = simulateFlags.workers
	}

	g, err := game.NewGameWithOptions(game.Options{
		Config:      cfg,
		Seed:        simulateFlags.seed,
		OutputDir:   simulateFlags.outputDir,
		SnapshotDir: simulateFlags.snapshotDir,
		Headless:    true,
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}
	defer g.Unload()

	if simulateFlags.load != "" {
		if err := g.LoadFile(simulateFlags.load); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%8s %8s %8s %8s %9s %-14s %8s %8s\n",
		"tick", "applied", "blocked", "reacts", "pre-on", "top", "gauge", "health")
	g.SetStatsCallback(func(s telemetry.WindowStats) {
		fmt.Fprintf(out, "%8d %8d %8d %8d %9d %-14s %8.1f %8.1f\n",
			s.WindowEndTick, s.StimuliApplied, s.StimuliBlocked, s.Reactions,
			s.PreEffectsOn, s.TopReaction, s.GaugeMean, s.HealthMean)
	})

	start := g.Tick()
	for int(g.Tick()-start) < simulateFlags.ticks {
		g.UpdateHeadless()
	}

	if simulateFlags.save != "" {
		if err := g.SaveFile(simulateFlags.save); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\n", simulateFlags.save)
	}
	return nil
}
