// Package config provides configuration loading and access for the gauge
// runtime and its harness.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all runtime configuration parameters.
type Config struct {
	Gauges     GaugesConfig     `yaml:"gauges"`
	Decay      DecayConfig      `yaml:"decay"`
	Reactions  ReactionsConfig  `yaml:"reactions"`
	PreEffects PreEffectsConfig `yaml:"pre_effects"`
	HUD        HUDConfig        `yaml:"hud"`
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GaugesConfig holds the store's enable flags and gain settings.
type GaugesConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Display          bool    `yaml:"display"`           // arm the HUD refresher on stimuli
	PlayerMultiplier float64 `yaml:"player_multiplier"` // gain for player-like entities
	OtherMultiplier  float64 `yaml:"other_multiplier"`  // gain for everything else
	SingleTrigger    bool    `yaml:"single_trigger"`    // select when one element reaches 100
	AggregateTrigger bool    `yaml:"aggregate_trigger"` // select when the entity total reaches 100
	MaxPicks         int     `yaml:"max_picks"`         // reactions fired per trigger
}

// DecayConfig holds the lazy decay constants, both in real seconds.
type DecayConfig struct {
	RealSecondsPerPoint float64 `yaml:"real_seconds_per_point"`
	GraceRealSeconds    float64 `yaml:"grace_real_seconds"`
}

// ReactionsConfig holds reaction side-effect settings.
type ReactionsConfig struct {
	MinLockoutSeconds float64 `yaml:"min_lockout_seconds"` // floor of the fallback element lockout
}

// PreEffectsConfig holds pre-effect hysteresis settings.
type PreEffectsConfig struct {
	IntensityEpsilon     float64 `yaml:"intensity_epsilon"`
	RefreshMarginSeconds float64 `yaml:"refresh_margin_seconds"`
}

// HUDConfig holds display refresh pacing.
type HUDConfig struct {
	RefreshSeconds float64 `yaml:"refresh_seconds"`
	IdleSeconds    float64 `yaml:"idle_seconds"` // park the refresher after this long without stimuli
}

// ScreenConfig holds viewer window settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// SimulationConfig holds harness parameters.
type SimulationConfig struct {
	Timescale         float64 `yaml:"timescale"`           // simulation seconds per real second
	DT                float64 `yaml:"dt"`                  // real seconds per tick
	Entities          int     `yaml:"entities"`            // tracked entities spawned at start
	Players           int     `yaml:"players"`             // how many of them are player-like
	MaxHealth         float64 `yaml:"max_health"`          // starting and maximum health
	EmittersPerEntity int     `yaml:"emitters_per_entity"` // stimulus sources aimed at each entity
	StimulusRate      float64 `yaml:"stimulus_rate"`       // mean stimulus units per emitter per second
	StimulusChance    float64 `yaml:"stimulus_chance"`     // probability an emitter fires on a tick
	EmitterSeconds    float64 `yaml:"emitter_seconds"`     // mean real seconds before an emitter rerolls its element
	StateChance       float64 `yaml:"state_chance"`        // probability per tick an entity flips a random state
	Radius            float64 `yaml:"radius"`              // entity body radius, pixels
	MaxSpeed          float64 `yaml:"max_speed"`           // pixels per second before slows
	Workers           int     `yaml:"workers"`             // parallel stimulus workers
	SweepSeconds      float64 `yaml:"sweep_seconds"`       // real seconds between store sweeps
	Seed              uint64  `yaml:"seed"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // real seconds per stats window
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// CatalogConfig declares the registered content.
type CatalogConfig struct {
	States     []StateConfig     `yaml:"states"`
	Elements   []ElementConfig   `yaml:"elements"`
	Reactions  []ReactionConfig  `yaml:"reactions"`
	PreEffects []PreEffectConfig `yaml:"pre_effects"`
}

// StateConfig declares an entity condition.
type StateConfig struct {
	Name       string `yaml:"name"`
	Classifier string `yaml:"classifier"`
}

// ElementConfig declares a gauge channel.
type ElementConfig struct {
	Name             string                  `yaml:"name"`
	Classifier       string                  `yaml:"classifier"`
	Color            uint32                  `yaml:"color"` // 0xRRGGBB
	StateMultipliers []StateMultiplierConfig `yaml:"state_multipliers"`
}

// StateMultiplierConfig scales an element while a state is active.
type StateMultiplierConfig struct {
	State  string  `yaml:"state"`
	Gauge  float64 `yaml:"gauge"`
	Health float64 `yaml:"health"`
}

// ReactionConfig declares a reaction. Damage is the harness consequence.
type ReactionConfig struct {
	Name             string   `yaml:"name"`
	Elements         []string `yaml:"elements"`
	MinTotalGauge    int      `yaml:"min_total_gauge"`
	MinPctEach       float64  `yaml:"min_pct_each"`
	MinSumSelected   float64  `yaml:"min_sum_selected"`
	CooldownSeconds  float64  `yaml:"cooldown_seconds"`
	CooldownRealTime bool     `yaml:"cooldown_real_time"`
	LockoutSeconds   float64  `yaml:"lockout_seconds"`
	LockoutRealTime  bool     `yaml:"lockout_real_time"`
	ClearAll         bool     `yaml:"clear_all"`
	Priority         int      `yaml:"priority"`
	Damage           float64  `yaml:"damage"`
	Icon             string   `yaml:"icon"`
	Tint             uint32   `yaml:"tint"`
}

// PreEffectConfig declares a pre-effect. Slow is the harness consequence:
// movement is scaled by 1-intensity while active.
type PreEffectConfig struct {
	Name             string  `yaml:"name"`
	Element          string  `yaml:"element"`
	MinGauge         int     `yaml:"min_gauge"`
	Base             float64 `yaml:"base"`
	Scale            float64 `yaml:"scale"`
	MinIntensity     float64 `yaml:"min_intensity"`
	MaxIntensity     float64 `yaml:"max_intensity"`
	DurationSeconds  float64 `yaml:"duration_seconds"`
	DurationRealTime bool    `yaml:"duration_real_time"`
	CooldownSeconds  float64 `yaml:"cooldown_seconds"`
	CooldownRealTime bool    `yaml:"cooldown_real_time"`
	Slow             bool    `yaml:"slow"`
	DamagePerSecond  float64 `yaml:"damage_per_second"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickDuration    time.Duration  // Simulation.DT as a duration
	SimHoursPerTick float64        // simulation hours advanced per tick
	SweepEvery      int            // ticks between sweeps
	WindowTicks     int            // ticks per telemetry window
	DecayPerSimHour float64        // gauge points lost per simulation hour
	GraceSimHours   float64        // grace window in simulation hours
	MinLockout      time.Duration  // Reactions.MinLockoutSeconds
	RefreshMargin   time.Duration  // PreEffects.RefreshMarginSeconds
	HUDRefresh      time.Duration  // HUD.RefreshSeconds
	HUDIdle         time.Duration  // HUD.IdleSeconds
	ElementIndex    map[string]int // name -> position in Catalog.Elements
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file. Lists replace wholesale.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate checks cross references inside the catalog section and the
// ranges the runtime relies on.
func (c *Config) Validate() error {
	if c.Simulation.DT <= 0 {
		return fmt.Errorf("simulation.dt must be positive, got %v", c.Simulation.DT)
	}
	if c.Simulation.Timescale < 0 {
		return fmt.Errorf("simulation.timescale must not be negative, got %v", c.Simulation.Timescale)
	}
	if c.Simulation.Players > c.Simulation.Entities {
		return fmt.Errorf("simulation.players (%d) exceeds entities (%d)", c.Simulation.Players, c.Simulation.Entities)
	}

	states := make(map[string]bool, len(c.Catalog.States))
	for _, s := range c.Catalog.States {
		states[s.Name] = true
	}
	elements := make(map[string]bool, len(c.Catalog.Elements))
	for _, e := range c.Catalog.Elements {
		if elements[e.Name] {
			return fmt.Errorf("catalog: duplicate element %q", e.Name)
		}
		elements[e.Name] = true
		for _, m := range e.StateMultipliers {
			if !states[m.State] {
				return fmt.Errorf("catalog: element %q: unknown state %q", e.Name, m.State)
			}
		}
	}
	for _, r := range c.Catalog.Reactions {
		for _, name := range r.Elements {
			if !elements[name] {
				return fmt.Errorf("catalog: reaction %q: unknown element %q", r.Name, name)
			}
		}
	}
	for _, p := range c.Catalog.PreEffects {
		if !elements[p.Element] {
			return fmt.Errorf("catalog: pre-effect %q: unknown element %q", p.Name, p.Element)
		}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	d := &c.Derived
	d.TickDuration = seconds(c.Simulation.DT)
	d.SweepEvery = max(1, int(math.Round(c.Simulation.SweepSeconds/c.Simulation.DT)))
	d.WindowTicks = max(1, int(math.Round(c.Telemetry.StatsWindow/c.Simulation.DT)))
	d.MinLockout = seconds(c.Reactions.MinLockoutSeconds)
	d.RefreshMargin = seconds(c.PreEffects.RefreshMarginSeconds)
	d.HUDRefresh = seconds(c.HUD.RefreshSeconds)
	d.HUDIdle = seconds(c.HUD.IdleSeconds)

	// Same conversion the store applies at runtime.
	d.DecayPerSimHour, d.GraceSimHours = 0, 0
	if ts := c.Simulation.Timescale; ts > 0 {
		if c.Decay.RealSecondsPerPoint > 0 {
			d.DecayPerSimHour = 3600 / (c.Decay.RealSecondsPerPoint * ts)
		}
		d.GraceSimHours = c.Decay.GraceRealSeconds * ts / 3600
	}
	d.SimHoursPerTick = c.Simulation.DT * c.Simulation.Timescale / 3600

	d.ElementIndex = make(map[string]int, len(c.Catalog.Elements))
	for i, e := range c.Catalog.Elements {
		d.ElementIndex[e.Name] = i
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
