package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkReactionSurge   BookmarkType = "reaction_surge"
	BookmarkLockoutPressure BookmarkType = "lockout_pressure"
	BookmarkHealthCrash     BookmarkType = "health_crash"
	BookmarkSteadyState     BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting windows in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	healthPeak        float64 // peak mean health in recent history
	underPressure     bool    // last window was above the block-rate threshold
	steadyWindowCount int     // consecutive windows with a stable gauge mean
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for steady state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Reaction surge: reactions > 2x rolling average
		if b := bd.checkReactionSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Health crash: mean health dropped >30% from recent peak
		if b := bd.checkHealthCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Steady state: gauge mean with low variance over 5 windows
		if b := bd.checkSteadyState(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Lockout pressure is edge triggered and needs no history
	if b := bd.checkLockoutPressure(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Update history
	bd.addToHistory(stats)

	if stats.HealthMean > bd.healthPeak {
		bd.healthPeak = stats.HealthMean
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkReactionSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Reactions
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Reactions) > avg*2.0 && stats.Reactions >= 5 {
		return &Bookmark{
			Type:        BookmarkReactionSurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d reactions is %.1fx average (%.1f), mostly %s", stats.Reactions, float64(stats.Reactions)/avg, avg, stats.TopReaction),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkLockoutPressure(stats WindowStats) *Bookmark {
	pressured := stats.BlockRate > 0.5 && stats.StimuliBlocked >= 10
	was := bd.underPressure
	bd.underPressure = pressured
	if !pressured || was {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkLockoutPressure,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%.0f%% of stimuli blocked by lockouts (%d)", stats.BlockRate*100, stats.StimuliBlocked),
	}
}

func (bd *BookmarkDetector) checkHealthCrash(stats WindowStats) *Bookmark {
	if bd.healthPeak == 0 {
		return nil
	}

	drop := 1.0 - stats.HealthMean/bd.healthPeak
	if drop > 0.30 {
		// Reset peak after crash
		oldPeak := bd.healthPeak
		bd.healthPeak = stats.HealthMean

		return &Bookmark{
			Type:        BookmarkHealthCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean health fell %.0f%% from %.1f to %.1f", drop*100, oldPeak, stats.HealthMean),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if stats.Gauged == 0 {
		bd.steadyWindowCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	if bd.historyFull {
		recent = make([]WindowStats, 0, 4)
		for i := 4; i >= 1; i-- {
			recent = append(recent, bd.history[(bd.historyIdx-i+bd.historySize)%bd.historySize])
		}
	}

	var sum float64
	for _, h := range recent {
		sum += h.GaugeMean
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := h.GaugeMean - mean
		variance += d * d
	}
	variance /= 4

	// Coefficient of variation < 20%
	if mean > 0 && variance/(mean*mean) < 0.04 {
		bd.steadyWindowCount++
	} else {
		bd.steadyWindowCount = 0
	}

	if bd.steadyWindowCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkSteadyState,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Gauge mean steady near %.1f across %d entities", mean, stats.Gauged),
		}
	}

	return nil
}
