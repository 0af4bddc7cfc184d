package game

import (
	"fmt"
	"path/filepath"

	"github.com/pthm-cable/elemental/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.sample())
	perfStats := g.perfCollector.Flush()

	// Call stats callback if provided
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		g.log.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		g.log.Error("failed to write perf", "error", err)
	}
	if err := g.outputManager.WriteEvents(g.collector.DrainEvents()); err != nil {
		g.log.Error("failed to write events", "error", err)
	}

	// Check for bookmarks
	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			g.log.Error("failed to write bookmark", "error", err)
		}
		if g.snapshotDir != "" {
			g.saveSnapshot(bm)
		}
	}
}

// sample collects the per-entity distributions for a stats window.
func (g *Game) sample() telemetry.Sample {
	now := g.clock.Now()
	s := telemetry.Sample{
		SimHours:    now.Sim,
		RealSeconds: now.Real,
	}

	query := g.trackedFilter.Query()
	for query.Next() {
		_, _, _, _, health, _ := query.Get()
		s.Entities++
		if health.Alive {
			s.Health = append(s.Health, float64(health.Value))
		}
	}

	for v := range g.store.Views() {
		if v.Sum > 0 {
			s.GaugeSums = append(s.GaugeSums, float64(v.Sum))
		}
	}
	return s
}

// saveSnapshot writes a save container named after the bookmark.
func (g *Game) saveSnapshot(bm telemetry.Bookmark) {
	path := filepath.Join(g.snapshotDir, fmt.Sprintf("%s_%06d.sav", bm.Type, g.tick))
	if err := g.SaveFile(path); err != nil {
		g.log.Error("failed to save snapshot", "error", err)
		return
	}
	g.log.Info("snapshot saved", "path", path, "tick", g.tick, "bookmark", bm.Type)
}
