package telemetry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStepCollector(window int) (*PerfCollector, *stepClock) {
	clk := &stepClock{t: time.Unix(1000, 0)}
	return newPerfCollector(window, clk.now), clk
}

func TestPerfCollectorPhasesAndGauged(t *testing.T) {
	pc, clk := newStepCollector(10)

	for _, gauged := range []int{5, 9} {
		pc.StartTick()
		pc.StartPhase(PhaseEmitters)
		clk.advance(300 * time.Microsecond)
		pc.StartPhase(PhaseSweep)
		clk.advance(100 * time.Microsecond)
		pc.EndTick(gauged)
	}

	want := PerfStats{
		Ticks:          2,
		TickMeanUS:     400,
		TickP99US:      400,
		TickMaxUS:      400,
		TicksPerSecond: 2500,
		GaugedMean:     7,
		GaugedMax:      9,
	}
	want.PhasePct[PhaseEmitters] = 75
	want.PhasePct[PhaseSweep] = 25
	if diff := cmp.Diff(want, pc.Flush(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Flush mismatch (-want +got):\n%s", diff)
	}
}

func TestPerfCollectorQueueAndSweepCounters(t *testing.T) {
	pc, _ := newStepCollector(10)

	pc.RecordDrain(3, 3)
	pc.RecordDrain(7, 8) // one callback posted another
	pc.RecordDrain(0, 0)
	pc.RecordSweep(2)
	pc.RecordSweep(0)

	got := pc.Flush()
	want := PerfStats{Drains: 3, Drained: 11, PeakQueue: 7, Sweeps: 2, Collected: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flush mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(PerfStats{}, pc.Flush()); diff != "" {
		t.Errorf("second Flush not reset (-want +got):\n%s", diff)
	}
}

func TestPerfCollectorTickDistribution(t *testing.T) {
	pc, clk := newStepCollector(100)

	// Out of order, so Flush has to sort.
	for i := 100; i >= 1; i-- {
		pc.StartTick()
		clk.advance(time.Duration(i) * time.Microsecond)
		pc.EndTick(0)
	}

	got := pc.Flush()
	approx := cmpopts.EquateApprox(0, 1e-9)
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"mean", got.TickMeanUS, 50.5},
		{"p99", got.TickP99US, 99.01},
		{"max", got.TickMaxUS, 100},
	} {
		if !cmp.Equal(c.got, c.want, approx) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	// No phase was started.
	if got.PhasePct != [numPhases]float64{} {
		t.Errorf("PhasePct = %v, want zeros", got.PhasePct)
	}
}

func TestPerfCollectorFrameRate(t *testing.T) {
	pc, clk := newStepCollector(10)

	pc.RecordFrame()
	if fps := pc.Flush().FPS; fps != 0 {
		t.Errorf("FPS after one frame = %v, want 0", fps)
	}
	clk.advance(20 * time.Millisecond)
	pc.RecordFrame()
	if fps := pc.Flush().FPS; fps != 50 {
		t.Errorf("FPS = %v, want 50", fps)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{Ticks: 4, Drained: 6, PeakQueue: 2, Collected: 1, GaugedMax: 3}
	s.PhasePct[PhaseDispatch] = 12.5

	row := s.ToCSV(200)
	if row.WindowEnd != 200 || row.Ticks != 4 || row.DispatchPct != 12.5 {
		t.Errorf("row = %+v", row)
	}
	if row.Drained != 6 || row.PeakQueue != 2 || row.Collected != 1 || row.GaugedMax != 3 {
		t.Errorf("counter columns = %+v", row)
	}
}

func TestPhaseString(t *testing.T) {
	if got := PhaseDispatch.String(); got != "dispatch" {
		t.Errorf("PhaseDispatch = %q", got)
	}
	if got := Phase(200).String(); got != "unknown" {
		t.Errorf("Phase(200) = %q", got)
	}
}
