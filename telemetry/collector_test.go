package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/elemental/catalog"
)

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(10, 100)

	for i := 0; i < 6; i++ {
		c.StimulusApplied(1, 1, 5, 5*(i+1))
	}
	c.StimulusBlocked(1, 1)
	c.StimulusBlocked(2, 1)
	c.ReactionFired(catalog.ReactionEvent{Entity: 1, Name: "Melt", Values: []uint8{0, 50, 50}, Lockout: 2 * time.Second})
	c.ReactionFired(catalog.ReactionEvent{Entity: 2, Name: "Overload"})
	c.ReactionFired(catalog.ReactionEvent{Entity: 3, Name: "Melt"})
	c.RecordDeath()

	if c.ShouldFlush(9) {
		t.Error("flush due before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Fatal("flush not due after the window elapsed")
	}

	stats := c.Flush(10, Sample{
		SimHours:  1.5,
		Entities:  4,
		GaugeSums: []float64{10, 20, 30},
		Health:    []float64{100, 50},
	})

	want := WindowStats{
		WindowStartTick: 0,
		WindowEndTick:   10,
		SimHours:        1.5,
		Entities:        4,
		Gauged:          3,
		Deaths:          1,
		StimuliApplied:  6,
		StimuliBlocked:  2,
		PointsAdded:     30,
		BlockRate:       0.25,
		Reactions:       3,
		TopReaction:     "Melt",
		GaugeMean:       20,
		GaugeStd:        10,
		GaugeP50:        20,
		GaugeP90:        28,
		HealthMean:      75,
		HealthP10:       55,
		HealthP50:       75,
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(want, stats, approx); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	next := c.Flush(20, Sample{})
	if next.WindowStartTick != 10 || next.StimuliApplied != 0 || next.Reactions != 0 || next.TopReaction != "" {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestCollectorTopReactionTieBreaksByName(t *testing.T) {
	c := NewCollector(1, 0)
	c.ReactionFired(catalog.ReactionEvent{Name: "Overload"})
	c.ReactionFired(catalog.ReactionEvent{Name: "Melt"})

	if got := c.Flush(1, Sample{}).TopReaction; got != "Melt" {
		t.Errorf("TopReaction = %q, want Melt", got)
	}
}

func TestCollectorPreEffectTransitions(t *testing.T) {
	c := NewCollector(1, 100)
	on := catalog.PreEffectEvent{Entity: 1, PreEffect: 1, Name: "Static", Active: true, Gauge: 60, Intensity: 0.2}
	off := catalog.PreEffectEvent{Entity: 1, PreEffect: 1, Name: "Static"}

	c.PreEffectChanged(on)
	on.Intensity = 0.3
	c.PreEffectChanged(on)
	c.PreEffectChanged(off)
	c.PreEffectChanged(catalog.PreEffectEvent{Entity: 2, PreEffect: 1, Name: "Static", Active: true})
	c.Forget(2)
	c.PreEffectChanged(catalog.PreEffectEvent{Entity: 2, PreEffect: 1, Name: "Static", Active: true})

	stats := c.Flush(1, Sample{})
	if stats.PreEffectsOn != 3 || stats.PreEffectsRefreshed != 1 || stats.PreEffectsOff != 1 {
		t.Errorf("on/refresh/off = %d/%d/%d, want 3/1/1", stats.PreEffectsOn, stats.PreEffectsRefreshed, stats.PreEffectsOff)
	}

	var types []EventType
	for _, ev := range c.DrainEvents() {
		types = append(types, ev.Type)
	}
	want := []EventType{EventPreEffectOn, EventPreEffectOff, EventPreEffectOn, EventPreEffectOn}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("event rows (-want +got):\n%s", diff)
	}
	if len(c.DrainEvents()) != 0 {
		t.Error("DrainEvents did not clear the buffer")
	}
}

func TestCollectorEventCap(t *testing.T) {
	c := NewCollector(1, 2)
	for i := 0; i < 5; i++ {
		c.ReactionFired(catalog.ReactionEvent{Entity: catalog.EntityID(i + 1), Name: "Melt"})
	}
	if n := len(c.DrainEvents()); n != 2 {
		t.Errorf("buffered %d events, want 2", n)
	}
	if got := c.Flush(1, Sample{}).Reactions; got != 5 {
		t.Errorf("Reactions = %d, want 5 regardless of the event cap", got)
	}
}

func TestNewReactionEvent(t *testing.T) {
	ev := NewReactionEvent(catalog.ReactionEvent{
		Entity:   7,
		Name:     "Melt",
		Values:   []uint8{0, 40, 35},
		Lockout:  1500 * time.Millisecond,
		SimHours: 3,
	})
	want := Event{Type: EventReaction, SimHours: 3, Entity: 7, Name: "Melt", Gauge: 75, Value: 1.5}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event (-want +got):\n%s", diff)
	}
}
