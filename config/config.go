// Package config holds the tunables of a physics world and their YAML form.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by Validate with the offending field.
var ErrInvalid = errors.New("config: invalid value")

const (
	DefaultTimeStep         = 1.0 / 60.0
	DefaultSubsteps         = 1
	DefaultSolverIterations = 4
	DefaultCellSize         = 5.0
	DefaultBuckets          = 4096
	DefaultFrameBudget      = 16 * time.Millisecond
)

type Config struct {
	TimeStep    float64        `yaml:"time_step"`
	Substeps    int            `yaml:"substeps"`
	Gravity     Vec3           `yaml:"gravity"`
	Solver      SolverConfig   `yaml:"solver"`
	Broadphase  BroadConfig    `yaml:"broadphase"`
	CCD         CCDConfig      `yaml:"ccd"`
	PCI         PCIConfig      `yaml:"pci"`
	Sleep       SleepConfig    `yaml:"sleep"`
	Parallel    ParallelConfig `yaml:"parallel"`
	Manifold    ManifoldConfig `yaml:"manifold"`
	FrameBudget time.Duration  `yaml:"frame_budget"`
	Debug       DebugConfig    `yaml:"debug"`
}

// Vec3 is written as a YAML sequence [x, y, z].
type Vec3 [3]float64

type SolverConfig struct {
	Iterations int `yaml:"iterations"`
	// BiasFactor is the Baumgarte fraction of the penetration corrected per step.
	BiasFactor float64 `yaml:"bias_factor"`
	// Slop is the penetration left uncorrected.
	Slop float64 `yaml:"slop"`
	// RestitutionThreshold is the approach speed under which contacts do not bounce.
	RestitutionThreshold float64 `yaml:"restitution_threshold"`
	WarmStart            bool    `yaml:"warm_start"`
}

type BroadConfig struct {
	CellSize float64 `yaml:"cell_size"`
	// Buckets is the size of the cell hash table, rounded up to a power of two.
	Buckets int `yaml:"buckets"`
}

type CCDConfig struct {
	Enabled bool `yaml:"enabled"`
	// MotionThreshold is the displacement per step, as a multiple of the collider
	// bounding radius, above which a body is swept.
	MotionThreshold   float64 `yaml:"motion_threshold"`
	Speculative       bool    `yaml:"speculative"`
	SpeculativeMargin float64 `yaml:"speculative_margin"`
	MaxIterations     int     `yaml:"max_iterations"`
	Tolerance         float64 `yaml:"tolerance"`
}

type PCIConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Iterations int     `yaml:"iterations"`
	Slop       float64 `yaml:"slop"`
}

type SleepConfig struct {
	Enabled          bool    `yaml:"enabled"`
	LinearThreshold  float64 `yaml:"linear_threshold"`
	AngularThreshold float64 `yaml:"angular_threshold"`
	// Time is how long an island must stay under both thresholds, in seconds.
	Time float64 `yaml:"time"`
}

type ParallelConfig struct {
	Enabled bool `yaml:"enabled"`
	// Workers <= 0 uses runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers"`
}

type ManifoldConfig struct {
	// MaxAge is the number of frames a pair without contact stays cached.
	MaxAge         uint64  `yaml:"max_age"`
	MatchTolerance float64 `yaml:"match_tolerance"`
}

type DebugConfig struct {
	SolverMetrics bool `yaml:"solver_metrics"`
	Manifolds     bool `yaml:"manifolds"`
}

func Default() *Config {
	return &Config{
		TimeStep: DefaultTimeStep,
		Substeps: DefaultSubsteps,
		Gravity:  Vec3{0, -9.81, 0},
		Solver: SolverConfig{
			Iterations:           DefaultSolverIterations,
			BiasFactor:           0.2,
			Slop:                 0.01,
			RestitutionThreshold: 1.0,
			WarmStart:            true,
		},
		Broadphase: BroadConfig{
			CellSize: DefaultCellSize,
			Buckets:  DefaultBuckets,
		},
		CCD: CCDConfig{
			Enabled:           true,
			MotionThreshold:   1.0,
			Speculative:       true,
			SpeculativeMargin: 0.05,
			MaxIterations:     32,
			Tolerance:         1e-3,
		},
		PCI: PCIConfig{
			Enabled:    false,
			Iterations: 1,
			Slop:       1e-3,
		},
		Sleep: SleepConfig{
			Enabled:          true,
			LinearThreshold:  0.05,
			AngularThreshold: 0.05,
			Time:             0.5,
		},
		Manifold: ManifoldConfig{
			MaxAge:         12,
			MatchTolerance: 0.02,
		},
		FrameBudget: DefaultFrameBudget,
	}
}

// Load reads a YAML file over the defaults, so a file only lists what it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.TimeStep <= 0:
		return invalid("time_step", c.TimeStep)
	case c.Substeps < 1:
		return invalid("substeps", c.Substeps)
	case c.Solver.Iterations < 0:
		return invalid("solver.iterations", c.Solver.Iterations)
	case c.Solver.BiasFactor < 0 || c.Solver.BiasFactor > 1:
		return invalid("solver.bias_factor", c.Solver.BiasFactor)
	case c.Solver.Slop < 0:
		return invalid("solver.slop", c.Solver.Slop)
	case c.Broadphase.CellSize <= 0:
		return invalid("broadphase.cell_size", c.Broadphase.CellSize)
	case c.Broadphase.Buckets < 1:
		return invalid("broadphase.buckets", c.Broadphase.Buckets)
	case c.CCD.MotionThreshold <= 0:
		return invalid("ccd.motion_threshold", c.CCD.MotionThreshold)
	case c.CCD.SpeculativeMargin < 0:
		return invalid("ccd.speculative_margin", c.CCD.SpeculativeMargin)
	case c.CCD.MaxIterations < 1:
		return invalid("ccd.max_iterations", c.CCD.MaxIterations)
	case c.CCD.Tolerance <= 0:
		return invalid("ccd.tolerance", c.CCD.Tolerance)
	case c.PCI.Iterations < 0:
		return invalid("pci.iterations", c.PCI.Iterations)
	case c.PCI.Slop < 0:
		return invalid("pci.slop", c.PCI.Slop)
	case c.Sleep.Time < 0:
		return invalid("sleep.time", c.Sleep.Time)
	case c.Manifold.MatchTolerance < 0:
		return invalid("manifold.match_tolerance", c.Manifold.MatchTolerance)
	case c.FrameBudget < 0:
		return invalid("frame_budget", c.FrameBudget)
	}
	return nil
}

func invalid(field string, value any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalid, field, value)
}
