package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/elemental/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Errorf("nil manager WriteTelemetry: %v", err)
	}
	if err := om.WriteEvents([]Event{{Type: EventReaction}}); err != nil {
		t.Errorf("nil manager WriteEvents: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil manager Close: %v", err)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for tick := int32(100); tick <= 300; tick += 100 {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: tick, Reactions: int(tick / 100)}); err != nil {
			t.Fatalf("WriteTelemetry: %v", err)
		}
	}
	events := []Event{
		{Type: EventReaction, Entity: 3, Name: "Melt", Gauge: 100, Value: 2},
		{Type: EventPreEffectOn, Entity: 4, Name: "Static", Gauge: 60, Value: 0.2},
	}
	if err := om.WriteEvents(events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	if err := om.WriteEvents(nil); err != nil {
		t.Fatalf("WriteEvents(nil): %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("read telemetry.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want header + 3 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end,") {
		t.Errorf("header = %q", lines[0])
	}

	f, err := os.Open(filepath.Join(dir, "events.csv"))
	if err != nil {
		t.Fatalf("open events.csv: %v", err)
	}
	defer f.Close()
	var got []Event
	if err := gocsv.UnmarshalFile(f, &got); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("events.csv (-want +got):\n%s", diff)
	}
}

func TestOutputManagerWriteConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	back, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("reload written config: %v", err)
	}
	if back.Simulation.Timescale != cfg.Simulation.Timescale || len(back.Catalog.Reactions) != len(cfg.Catalog.Reactions) {
		t.Error("written config does not reproduce the loaded one")
	}
}
