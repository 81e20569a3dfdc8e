// Package config is the single source of truth for engine configuration:
// grid metadata, field costs, pool sizing, flocking radii, and behavior
// profile (E1). One DefaultX constructor per concern (DefaultGrid,
// DefaultField, DefaultFlocking) is composed by Default, and FromEnv applies
// environment overrides on top of that result.
package config

import (
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile selects the velocity-synthesis constants documented in §4.8/§9:
// the reference carries two coexisting copies of the movement system with
// different falloff and damping constants.
type Profile int

const (
	// ProfileNatural uses quadratic separation falloff, damping k=4, and
	// enables per-agent jitter.
	ProfileNatural Profile = iota
	// ProfileLegacy uses linear separation falloff and damping k=3, with
	// no jitter term.
	ProfileLegacy
)

func (p Profile) String() string {
	if p == ProfileLegacy {
		return "legacy"
	}
	return "natural"
}

// GridConfig is the immutable grid metadata (§3).
type GridConfig struct {
	Width    int
	Height   int
	CellSize float64
	OriginX  float64
	OriginY  float64
	OriginZ  float64
}

// FieldConfig controls cost-field defaults (§6).
type FieldConfig struct {
	DefaultCost           byte
	ObstacleCost          byte
	DirectionSmoothFactor float64
}

// FlockingConfig controls the C8 neighborhood radii and hash cell size (§6).
type FlockingConfig struct {
	AvoidRadius     float64
	CohesionRadius  float64
	SpatialCellSize float64
}

// EngineConfig is the top-level configuration struct set once at engine
// construction (§6 "Configuration struct set once at init").
type EngineConfig struct {
	Grid     GridConfig
	Field    FieldConfig
	Flocking FlockingConfig
	PoolSize int
	Profile  Profile
}

// ErrInvalidConfiguration is returned by Validate for the §7
// InvalidConfiguration taxonomy entry.
var ErrInvalidConfiguration = errors.New("config: invalid configuration")

// Validate checks the §7 InvalidConfiguration conditions: non-positive
// grid dims or cell size, non-finite origin, or zero pool size.
func (c EngineConfig) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return errors.Wrap(ErrInvalidConfiguration, "grid dimensions must be positive")
	}
	if c.Grid.CellSize <= 0 {
		return errors.Wrap(ErrInvalidConfiguration, "cell size must be positive")
	}
	if !isFinite(c.Grid.OriginX) || !isFinite(c.Grid.OriginY) || !isFinite(c.Grid.OriginZ) {
		return errors.Wrap(ErrInvalidConfiguration, "grid origin must be finite")
	}
	if c.PoolSize <= 0 {
		return errors.Wrap(ErrInvalidConfiguration, "pool size must be positive")
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DefaultGrid returns a 100x100, cell_size=1 grid at the world origin.
func DefaultGrid() GridConfig {
	return GridConfig{Width: 100, Height: 100, CellSize: 1.0}
}

// DefaultField returns default_cost=1, obstacle_cost=255 (§3).
func DefaultField() FieldConfig {
	return FieldConfig{DefaultCost: 1, ObstacleCost: 255, DirectionSmoothFactor: 0}
}

// DefaultFlocking returns the source's tuned radii: avoid=2.0, cohesion
// and spatial cell at 5.0 (§4.6 "the source uses spatial_cell = 5.0 (=
// cohesion radius) in its tuned profile").
func DefaultFlocking() FlockingConfig {
	return FlockingConfig{AvoidRadius: 2.0, CohesionRadius: 5.0, SpatialCellSize: 5.0}
}

// Default returns the complete default configuration.
func Default() EngineConfig {
	return EngineConfig{
		Grid:     DefaultGrid(),
		Field:    DefaultField(),
		Flocking: DefaultFlocking(),
		PoolSize: 1000,
		Profile:  ProfileNatural,
	}
}

// FromEnv returns the default configuration with environment overrides
// applied, mirroring the teacher's FromEnv composition.
func FromEnv() EngineConfig {
	cfg := Default()

	if w := getEnvInt("CROWDNAV_GRID_WIDTH", 0); w > 0 {
		cfg.Grid.Width = w
	}
	if h := getEnvInt("CROWDNAV_GRID_HEIGHT", 0); h > 0 {
		cfg.Grid.Height = h
	}
	if cs := getEnvFloat("CROWDNAV_CELL_SIZE", 0); cs > 0 {
		cfg.Grid.CellSize = cs
	}
	if ps := getEnvInt("CROWDNAV_POOL_SIZE", 0); ps > 0 {
		cfg.PoolSize = ps
	}
	if ar := getEnvFloat("CROWDNAV_AVOID_RADIUS", 0); ar > 0 {
		cfg.Flocking.AvoidRadius = ar
	}
	if cr := getEnvFloat("CROWDNAV_COHESION_RADIUS", 0); cr > 0 {
		cfg.Flocking.CohesionRadius = cr
	}
	if os.Getenv("CROWDNAV_PROFILE") == "legacy" {
		cfg.Profile = ProfileLegacy
	}

	return cfg
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
