// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.8
//

package gnssir

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Weighting scheme for the observation equations.
// Resolved once at configuration load, not per iteration.
type WeightMode int

const (
	WeightEqual     WeightMode = iota // w = 1
	WeightElevation                   // w = sin^2(elev)
	WeightSnr                         // w = 10^((snr-50)/10)
)

func (p WeightMode) String() string {
	switch p {
	case WeightEqual:
		return "equal"
	case WeightElevation:
		return "elevation"
	case WeightSnr:
		return "snr"
	default:
		return "UNKNOWN!"
	}
}

func (p WeightMode) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// yaml.v3 does not consult encoding.TextUnmarshaler, so the YAML hook
// delegates to it explicitly.
func (p *WeightMode) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}

func (p *WeightMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "equal":
		*p = WeightEqual
	case "elevation", "":
		*p = WeightElevation
	case "snr":
		*p = WeightSnr
	default:
		return fmt.Errorf("unknown weight mode %q", text)
	}
	return nil
}

// Azimuth window [Lo, Hi] in degrees. Lo > Hi wraps through 0:
// [350, 10] matches azimuths >= 350 or <= 10.
type AzWindow struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

// Contains reports whether az (degrees, any range) falls inside the window.
func (p *AzWindow) Contains(az float64) bool {
	for az < 0 {
		az += 360
	}
	for az >= 360 {
		az -= 360
	}
	if p.Lo <= p.Hi {
		return p.Lo <= az && az <= p.Hi
	}
	return az >= p.Lo || az <= p.Hi
}

// StreamConfig describes one input stream and its ingestion buffer.
type StreamConfig struct {
	Name      string `yaml:"name"`
	BufferCap int    `yaml:"buffer_cap"`
}

// Config holds everything the core needs; loaded once at startup.
// Validate rejects bad configurations eagerly so they are never seen
// mid-stream.
type Config struct {
	Streams []StreamConfig `yaml:"streams"`

	// Aggregation
	TargetSystems []string      `yaml:"target_systems"` // e.g. ["G", "E", "C"]
	StaleAfter    time.Duration `yaml:"stale_after"`
	TickInterval  time.Duration `yaml:"tick_interval"`

	// Solver
	WeightMode    WeightMode `yaml:"weight_mode"`
	MinElevation  float64    `yaml:"min_elevation"` // [deg]
	MinSatellites int        `yaml:"min_satellites"`
	MaxIterations int        `yaml:"max_iterations"`
	ConvThreshold float64    `yaml:"conv_threshold"` // [m]
	ApproxPos     []float64  `yaml:"approx_pos"`     // ECEF [m], 3 values or empty

	// Observable store
	MinElevationDeg float64    `yaml:"min_elevation_deg"`
	MaxElevationDeg float64    `yaml:"max_elevation_deg"`
	AzWindowsDeg    []AzWindow `yaml:"az_windows_deg"`
	KeepSeconds     float64    `yaml:"keep_seconds"`
}

// NewConfig returns a Config with the package defaults filled in.
func NewConfig() *Config {
	return &Config{
		Streams:         []StreamConfig{{Name: "OBS", BufferCap: DefaultBufferCap}},
		TargetSystems:   []string{"G", "J", "E", "R", "C"},
		StaleAfter:      time.Duration(DefaultStaleAfter * float64(time.Second)),
		TickInterval:    DefaultTickMillis * time.Millisecond,
		WeightMode:      WeightElevation,
		MinElevation:    DefaultMinElevation,
		MinSatellites:   DefaultMinSatellites,
		MaxIterations:   DefaultMaxIterations,
		ConvThreshold:   DefaultConvThreshold,
		MinElevationDeg: DefaultMinElevation,
		MaxElevationDeg: DefaultMaxElevation,
		KeepSeconds:     DefaultKeepSeconds,
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. Errors here are fatal to startup.
func (p *Config) Validate() error {
	if len(p.Streams) == 0 {
		return fmt.Errorf("no input streams configured")
	}
	seen := []string{}
	for _, s := range p.Streams {
		if s.Name == "" {
			return fmt.Errorf("stream with empty name")
		}
		if slices.Contains(seen, s.Name) {
			return fmt.Errorf("duplicate stream name %q", s.Name)
		}
		seen = append(seen, s.Name)
		if s.BufferCap <= 0 {
			return fmt.Errorf("stream %q: buffer_cap must be positive, got %d", s.Name, s.BufferCap)
		}
	}
	for _, s := range p.TargetSystems {
		if len(s) != 1 {
			return fmt.Errorf("invalid target system %q", s)
		}
		sys := SysType(s[0])
		if !sys.IsValid() {
			return fmt.Errorf("invalid target system %q", s)
		}
	}
	if p.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive, got %v", p.StaleAfter)
	}
	if p.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", p.TickInterval)
	}
	if p.MinSatellites < 4 {
		return fmt.Errorf("min_satellites must be at least 4, got %d", p.MinSatellites)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", p.MaxIterations)
	}
	if p.ConvThreshold <= 0 {
		return fmt.Errorf("conv_threshold must be positive, got %g", p.ConvThreshold)
	}
	if len(p.ApproxPos) != 0 && len(p.ApproxPos) != 3 {
		return fmt.Errorf("approx_pos must hold 3 values, got %d", len(p.ApproxPos))
	}
	if p.MinElevationDeg < 0 || p.MinElevationDeg > 90 {
		return fmt.Errorf("min_elevation_deg out of range: %g", p.MinElevationDeg)
	}
	if p.MaxElevationDeg <= p.MinElevationDeg || p.MaxElevationDeg > 90 {
		return fmt.Errorf("max_elevation_deg out of range: %g", p.MaxElevationDeg)
	}
	for _, w := range p.AzWindowsDeg {
		if w.Lo < 0 || w.Lo >= 360 || w.Hi < 0 || w.Hi >= 360 {
			return fmt.Errorf("azimuth window [%g, %g] out of range", w.Lo, w.Hi)
		}
	}
	if p.KeepSeconds <= 0 {
		return fmt.Errorf("keep_seconds must be positive, got %g", p.KeepSeconds)
	}
	return nil
}

// Systems returns the target system set as SysType values.
func (p *Config) Systems() []SysType {
	out := make([]SysType, 0, len(p.TargetSystems))
	for _, s := range p.TargetSystems {
		out = append(out, SysType(s[0]))
	}
	return out
}

// ApproxXYZ returns the configured approximate position, or the origin.
func (p *Config) ApproxXYZ() PosXYZ {
	if len(p.ApproxPos) == 3 {
		return PosXYZ{X: p.ApproxPos[0], Y: p.ApproxPos[1], Z: p.ApproxPos[2]}
	}
	return PosXYZ{}
}
