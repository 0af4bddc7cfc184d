package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is a timed section of a harness tick.
type Phase uint8

const (
	PhaseEmitters Phase = iota
	PhaseDispatch
	PhaseHealth
	PhaseMovement
	PhaseSweep
	PhaseCleanup
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{
	"emitters", "dispatch", "health", "movement", "sweep", "cleanup", "telemetry",
}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// PerfCollector times harness ticks and counts the dispatch queue and
// store work done in them, one stats window at a time. It is driven from
// the tick goroutine only.
type PerfCollector struct {
	now func() time.Time

	// Current window
	ticks     []float64 // tick durations, microseconds
	phases    [numPhases]time.Duration
	total     time.Duration
	drains    int
	drained   int
	peakQueue int
	sweeps    int
	collected int
	gaugedSum int
	gaugedMax int

	// Current tick
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector creates a collector sized for windows of windowTicks.
func NewPerfCollector(windowTicks int) *PerfCollector {
	return newPerfCollector(windowTicks, time.Now)
}

func newPerfCollector(windowTicks int, now func() time.Time) *PerfCollector {
	return &PerfCollector{
		now:   now,
		ticks: make([]float64, 0, max(windowTicks, 1)),
	}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.inPhase = false
}

// StartPhase ends the running phase, if any, and starts ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := p.now()
	p.endPhase(now)
	p.phase, p.phaseStart, p.inPhase = ph, now, true
}

func (p *PerfCollector) endPhase(now time.Time) {
	if p.inPhase {
		p.phases[p.phase] += now.Sub(p.phaseStart)
		p.inPhase = false
	}
}

// RecordDrain notes one dispatch queue drain: the depth found and the
// commands run, including those posted while draining.
func (p *PerfCollector) RecordDrain(depth, ran int) {
	p.drains++
	p.drained += ran
	p.peakQueue = max(p.peakQueue, depth)
}

// RecordSweep notes the entities one store sweep collected.
func (p *PerfCollector) RecordSweep(collected int) {
	p.sweeps++
	p.collected += collected
}

// EndTick closes the tick. gauged is the store's entity count at its end.
func (p *PerfCollector) EndTick(gauged int) {
	now := p.now()
	p.endPhase(now)
	d := now.Sub(p.tickStart)
	p.total += d
	p.ticks = append(p.ticks, float64(d)/float64(time.Microsecond))
	p.gaugedSum += gauged
	p.gaugedMax = max(p.gaugedMax, gauged)
}

// RecordFrame records frame timing for graphics mode.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats summarizes one window.
type PerfStats struct {
	Ticks          int
	TickMeanUS     float64
	TickP99US      float64
	TickMaxUS      float64
	TicksPerSecond float64

	// Share of tick time per phase, percent
	PhasePct [numPhases]float64

	Drains    int // queue drains
	Drained   int // callbacks run
	PeakQueue int // deepest queue found at a drain
	Sweeps    int
	Collected int // entities dropped by sweeps

	GaugedMean float64
	GaugedMax  int

	FPS float64
}

// Flush summarizes the window and starts the next one.
func (p *PerfCollector) Flush() PerfStats {
	s := PerfStats{
		Ticks:     len(p.ticks),
		Drains:    p.drains,
		Drained:   p.drained,
		PeakQueue: p.peakQueue,
		Sweeps:    p.sweeps,
		Collected: p.collected,
		GaugedMax: p.gaugedMax,
	}
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if n := len(p.ticks); n > 0 {
		slices.Sort(p.ticks)
		s.TickMeanUS = stat.Mean(p.ticks, nil)
		s.TickP99US = Percentile(p.ticks, 0.99)
		s.TickMaxUS = p.ticks[n-1]
		if s.TickMeanUS > 0 {
			s.TicksPerSecond = 1e6 / s.TickMeanUS
		}
		s.GaugedMean = float64(p.gaugedSum) / float64(n)
	}
	if p.total > 0 {
		for i, d := range p.phases {
			s.PhasePct[i] = 100 * float64(d) / float64(p.total)
		}
	}

	p.ticks = p.ticks[:0]
	p.phases = [numPhases]time.Duration{}
	p.total = 0
	p.drains, p.drained, p.peakQueue = 0, 0, 0
	p.sweeps, p.collected = 0, 0
	p.gaugedSum, p.gaugedMax = 0, 0
	return s
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "stats", s)
}

// LogValue implements slog.LogValuer. Phases under 0.1% are omitted.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ticks", s.Ticks),
		slog.Float64("tick_mean_us", s.TickMeanUS),
		slog.Float64("tick_p99_us", s.TickP99US),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
		slog.Int("drained", s.Drained),
		slog.Int("peak_queue", s.PeakQueue),
		slog.Int("collected", s.Collected),
		slog.Float64("gauged_mean", s.GaugedMean),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for ph := range numPhases {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is the perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	Ticks        int     `csv:"ticks"`
	TickMeanUS   float64 `csv:"tick_mean_us"`
	TickP99US    float64 `csv:"tick_p99_us"`
	TickMaxUS    float64 `csv:"tick_max_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	FPS          float64 `csv:"fps"`
	EmittersPct  float64 `csv:"emitters_pct"`
	DispatchPct  float64 `csv:"dispatch_pct"`
	HealthPct    float64 `csv:"health_pct"`
	MovementPct  float64 `csv:"movement_pct"`
	SweepPct     float64 `csv:"sweep_pct"`
	CleanupPct   float64 `csv:"cleanup_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
	Drains       int     `csv:"drains"`
	Drained      int     `csv:"drained"`
	PeakQueue    int     `csv:"peak_queue"`
	Sweeps       int     `csv:"sweeps"`
	Collected    int     `csv:"collected"`
	GaugedMean   float64 `csv:"gauged_mean"`
	GaugedMax    int     `csv:"gauged_max"`
}

// ToCSV flattens the window into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Ticks:        s.Ticks,
		TickMeanUS:   s.TickMeanUS,
		TickP99US:    s.TickP99US,
		TickMaxUS:    s.TickMaxUS,
		TicksPerSec:  s.TicksPerSecond,
		FPS:          s.FPS,
		EmittersPct:  s.PhasePct[PhaseEmitters],
		DispatchPct:  s.PhasePct[PhaseDispatch],
		HealthPct:    s.PhasePct[PhaseHealth],
		MovementPct:  s.PhasePct[PhaseMovement],
		SweepPct:     s.PhasePct[PhaseSweep],
		CleanupPct:   s.PhasePct[PhaseCleanup],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
		Drains:       s.Drains,
		Drained:      s.Drained,
		PeakQueue:    s.PeakQueue,
		Sweeps:       s.Sweeps,
		Collected:    s.Collected,
		GaugedMean:   s.GaugedMean,
		GaugedMax:    s.GaugedMax,
	}
}
