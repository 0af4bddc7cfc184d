package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimHours        float64 `csv:"sim_hours"`
	RealSeconds     float64 `csv:"real_seconds"`

	// Population at window end
	Entities int `csv:"entities"`
	Gauged   int `csv:"gauged"` // entities holding any gauge or timer
	Deaths   int `csv:"deaths"`

	// Stimuli during window
	StimuliApplied int     `csv:"stimuli"`
	StimuliBlocked int     `csv:"blocked"`
	PointsAdded    int     `csv:"points"`
	BlockRate      float64 `csv:"block_rate"`

	// Reactions and pre-effects during window
	Reactions           int    `csv:"reactions"`
	TopReaction         string `csv:"top_reaction"`
	PreEffectsOn        int    `csv:"pre_on"`
	PreEffectsRefreshed int    `csv:"pre_refresh"`
	PreEffectsOff       int    `csv:"pre_off"`

	// Gauge sum distribution over gauged entities (sampled at window end)
	GaugeMean float64 `csv:"gauge_mean"`
	GaugeStd  float64 `csv:"gauge_std"`
	GaugeP50  float64 `csv:"gauge_p50"`
	GaugeP90  float64 `csv:"gauge_p90"`

	// Health distribution over living entities
	HealthMean float64 `csv:"health_mean"`
	HealthP10  float64 `csv:"health_p10"`
	HealthP50  float64 `csv:"health_p50"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summary is the distribution of one sampled quantity.
type Summary struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Summarize calculates mean, sample standard deviation and percentiles.
// The input is not modified.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	var s Summary
	if n == 1 {
		s.Mean = values[0]
	} else {
		s.Mean, s.Std = stat.MeanStdDev(values, nil)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	s.P10 = Percentile(sorted, 0.10)
	s.P50 = Percentile(sorted, 0.50)
	s.P90 = Percentile(sorted, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_hours", s.SimHours),
		slog.Float64("real_seconds", s.RealSeconds),
		slog.Int("entities", s.Entities),
		slog.Int("gauged", s.Gauged),
		slog.Int("deaths", s.Deaths),
		slog.Int("stimuli", s.StimuliApplied),
		slog.Int("blocked", s.StimuliBlocked),
		slog.Int("points", s.PointsAdded),
		slog.Float64("block_rate", s.BlockRate),
		slog.Int("reactions", s.Reactions),
		slog.String("top_reaction", s.TopReaction),
		slog.Int("pre_on", s.PreEffectsOn),
		slog.Int("pre_refresh", s.PreEffectsRefreshed),
		slog.Int("pre_off", s.PreEffectsOff),
		slog.Float64("gauge_mean", s.GaugeMean),
		slog.Float64("gauge_std", s.GaugeStd),
		slog.Float64("gauge_p50", s.GaugeP50),
		slog.Float64("gauge_p90", s.GaugeP90),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("health_p10", s.HealthP10),
		slog.Float64("health_p50", s.HealthP50),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_hours", s.SimHours,
		"entities", s.Entities,
		"gauged", s.Gauged,
		"deaths", s.Deaths,
		"stimuli", s.StimuliApplied,
		"blocked", s.StimuliBlocked,
		"block_rate", s.BlockRate,
		"reactions", s.Reactions,
		"top_reaction", s.TopReaction,
		"pre_on", s.PreEffectsOn,
		"pre_off", s.PreEffectsOff,
		"gauge_mean", s.GaugeMean,
		"gauge_p90", s.GaugeP90,
		"health_mean", s.HealthMean,
		"health_p10", s.HealthP10,
	)
}
