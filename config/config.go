// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Grid       GridConfig       `yaml:"grid"`
	Agent      AgentConfig      `yaml:"agent"`
	Simulation SimulationConfig `yaml:"simulation"`
	Obstacles  ObstaclesConfig  `yaml:"obstacles"`
	Policy     PolicyConfig     `yaml:"policy"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds navigation grid dimensions.
type GridConfig struct {
	Size     int     `yaml:"size"`      // Cells per side
	CellSize float64 `yaml:"cell_size"` // World units per cell
	Centered bool    `yaml:"centered"`  // Centre the grid on the world origin (overrides origin_x/z)
	OriginX  float64 `yaml:"origin_x"`
	OriginZ  float64 `yaml:"origin_z"`
}

// AgentConfig holds locomotion parameters shared by every agent.
type AgentConfig struct {
	MaxSpeed          float64 `yaml:"max_speed"`
	MaxForce          float64 `yaml:"max_force"`       // Max velocity change per tick
	ArrivalEpsilon    float64 `yaml:"arrival_epsilon"` // Final target reached inside this distance
	TargetRadius      float64 `yaml:"target_radius"`   // Waypoint passed inside this distance
	SlowRadius        float64 `yaml:"slow_radius"`
	ProbeDistance     float64 `yaml:"probe_distance"`
	ProbeHeight       float64 `yaml:"probe_height"`
	AvoidanceStrength float64 `yaml:"avoidance_strength"`
	TurnRate          float64 `yaml:"turn_rate"` // Facing blend per tick
	Radius            float64 `yaml:"radius"`    // Body radius used to rasterize obstacle clearance
}

// SpawnConfig places one agent at startup.
type SpawnConfig struct {
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Policy string  `yaml:"policy"` // Overrides policy.kind for this agent
}

// SimulationConfig holds tick and population parameters.
type SimulationConfig struct {
	DT       float64       `yaml:"dt"`
	Seed     int64         `yaml:"seed"`
	MaxTicks int           `yaml:"max_ticks"` // 0 = run until stopped
	Spawns   []SpawnConfig `yaml:"spawns"`
	Agents   int           `yaml:"agents"`   // Extra agents spawned at random open cells
	Simplify bool          `yaml:"simplify"` // Line-of-sight pruning of planned paths
	// Replan when an obstacle edit blocks a remaining waypoint
	ReplanOnBlock bool `yaml:"replan_on_block"`
	// Ring search radius used to move blocked spawns and goals onto open cells
	NearestOpenRadius int `yaml:"nearest_open_radius"`
}

// ShapeConfig describes one static obstacle.
type ShapeConfig struct {
	Kind   string  `yaml:"kind" json:"kind"` // "box" or "circle"
	X      float64 `yaml:"x" json:"x"`
	Z      float64 `yaml:"z" json:"z"`
	HX     float64 `yaml:"hx" json:"hx"` // Box half extents
	HZ     float64 `yaml:"hz" json:"hz"`
	Radius float64 `yaml:"radius" json:"radius"` // Circle radius
}

// NoiseConfig controls procedural obstacle placement.
type NoiseConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Seed      int64   `yaml:"seed"`      // 0 = use simulation seed
	Scale     float64 `yaml:"scale"`     // Noise frequency per cell
	Threshold float64 `yaml:"threshold"` // Cells with noise above this get a box
	KeepOut   float64 `yaml:"keep_out"`  // Clear radius around spawns, world units
}

// ObstaclesConfig holds static obstacle layout.
type ObstaclesConfig struct {
	Shapes    []ShapeConfig `yaml:"shapes"`
	Noise     NoiseConfig   `yaml:"noise"`
	Clearance float64       `yaml:"clearance"` // Extra margin added to agent radius when rasterizing
}

// PolicyConfig selects what an agent does on arrival.
type PolicyConfig struct {
	Kind       string `yaml:"kind"`        // "random", "stay" or "script"
	Script     string `yaml:"script"`      // Inline tengo source
	ScriptFile string `yaml:"script_file"` // Path to tengo source, read at startup
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	OutputDir           string  `yaml:"output_dir"` // Empty = no CSV output
}

// ServerConfig holds the HTTP control surface settings.
type ServerConfig struct {
	Listen       string `yaml:"listen"`        // Empty = disabled
	PublishEvery int    `yaml:"publish_every"` // Ticks between snapshot frames
	Realtime     bool   `yaml:"realtime"`      // Pace ticks to wall clock
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json or console
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	OriginX, OriginZ float64 // Effective grid origin
	Extent           float64 // World length of one grid side
	WindowTicks      int     // Telemetry.StatsWindow in ticks
	PublishTicks     int     // Server.PublishEvery, at least 1
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse merges data over the embedded defaults, validates the result and
// computes derived values.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in data
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare validates c and recomputes derived values. Call it after changing
// fields in code.
func (c *Config) Prepare() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate rejects configurations the simulation cannot run.
func (c *Config) Validate() error {
	switch {
	case c.Grid.Size <= 0:
		return fmt.Errorf("%w: grid.size %d must be > 0", ErrInvalid, c.Grid.Size)
	case !(c.Grid.CellSize > 0):
		return fmt.Errorf("%w: grid.cell_size %v must be > 0", ErrInvalid, c.Grid.CellSize)
	case !(c.Simulation.DT > 0):
		return fmt.Errorf("%w: simulation.dt %v must be > 0", ErrInvalid, c.Simulation.DT)
	case c.Simulation.Agents < 0:
		return fmt.Errorf("%w: simulation.agents %d must be >= 0", ErrInvalid, c.Simulation.Agents)
	case c.Agent.Radius < 0 || c.Obstacles.Clearance < 0:
		return fmt.Errorf("%w: agent.radius and obstacles.clearance must be >= 0", ErrInvalid)
	}

	switch c.Policy.Kind {
	case "random", "stay":
	case "script":
		if c.Policy.Script == "" && c.Policy.ScriptFile == "" {
			return fmt.Errorf("%w: policy.kind script needs policy.script or policy.script_file", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown policy.kind %q", ErrInvalid, c.Policy.Kind)
	}

	for i, s := range c.Obstacles.Shapes {
		switch s.Kind {
		case "box":
			if !(s.HX > 0) || !(s.HZ > 0) {
				return fmt.Errorf("%w: obstacles.shapes[%d] box needs positive hx, hz", ErrInvalid, i)
			}
		case "circle":
			if !(s.Radius > 0) {
				return fmt.Errorf("%w: obstacles.shapes[%d] circle needs positive radius", ErrInvalid, i)
			}
		default:
			return fmt.Errorf("%w: obstacles.shapes[%d] unknown kind %q", ErrInvalid, i, s.Kind)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Extent = float64(c.Grid.Size) * c.Grid.CellSize
	if c.Grid.Centered {
		half := float64(c.Grid.Size-1) * c.Grid.CellSize / 2
		c.Derived.OriginX, c.Derived.OriginZ = -half, -half
	} else {
		c.Derived.OriginX, c.Derived.OriginZ = c.Grid.OriginX, c.Grid.OriginZ
	}

	c.Derived.WindowTicks = int(math.Round(c.Telemetry.StatsWindow / c.Simulation.DT))
	if c.Derived.WindowTicks < 1 {
		c.Derived.WindowTicks = 1
	}

	c.Derived.PublishTicks = c.Server.PublishEvery
	if c.Derived.PublishTicks < 1 {
		c.Derived.PublishTicks = 1
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
