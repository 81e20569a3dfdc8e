// Package field implements the three-stage flow-field generator (C2-C4):
// cost field → integration field → direction field, plus the small state
// machine the tick orchestrator (T) drives when a target changes.
//
// The three buffers are logically a single aggregate that transitions
// through three sequential rewrites during a rebuild, then becomes
// read-only for the duration of tick execution (§9 "shared mutable field
// buffers"). No runtime locking is required because rebuilds run on the
// orchestrator's own goroutine before any per-tick job is dispatched.
package field

import (
	"time"

	"crowdnav/internal/nav/navgrid"
)

// State is the generator's rebuild state machine (§4.10).
type State int

const (
	Idle State = iota
	BuildingCost
	BuildingIntegration
	BuildingDirection
)

// Set owns the cost/integration/direction buffers for one grid and target.
type Set struct {
	Grid        navgrid.Metadata
	Cost        *CostField
	Integration *IntegrationField
	Direction   *DirectionField

	state State

	defaultCost  byte
	obstacleCost byte
}

// NewSet allocates all three buffers for grid.
func NewSet(grid navgrid.Metadata, defaultCost, obstacleCost byte) *Set {
	return &Set{
		Grid:         grid,
		Cost:         NewCostField(grid),
		Integration:  NewIntegrationField(grid),
		Direction:    NewDirectionField(grid),
		state:        Idle,
		defaultCost:  defaultCost,
		obstacleCost: obstacleCost,
	}
}

// State returns the current generator state, mostly useful for tests and
// diagnostics.
func (s *Set) State() State {
	return s.state
}

// RebuildResult carries the outcome of a Rebuild call: the destination
// diagnostics from C3 (BuildResult) plus the wall-clock cost of each of the
// three stages, so a caller can report per-stage timing (§4.14) without
// this package needing to know anything about metrics.
type RebuildResult struct {
	BuildResult

	CostDuration        time.Duration
	IntegrationDuration time.Duration
	DirectionDuration   time.Duration
}

// Rebuild runs C2 → C3 → C4 in sequence against the current obstacle set
// and target, per §4.10's "Idle → BuildingCost → BuildingIntegration →
// BuildingDirection → Idle" state machine. A second target change arriving
// mid-build is not modeled here because rebuilds are synchronous on the
// orchestrator goroutine — by construction there is no "mid-flight" to
// interrupt; the caller simply calls Rebuild again at the next Idle entry,
// which is the documented change-flag behavior.
func (s *Set) Rebuild(obstacles []Obstacle, targetX, targetZ float64) RebuildResult {
	s.state = BuildingCost
	costStart := time.Now()
	s.Cost.Build(s.defaultCost, s.obstacleCost, obstacles)
	costDuration := time.Since(costStart)

	s.state = BuildingIntegration
	integrationStart := time.Now()
	result := s.Integration.Build(s.Cost, targetX, targetZ)
	integrationDuration := time.Since(integrationStart)

	s.state = BuildingDirection
	directionStart := time.Now()
	s.Direction.Build(s.Integration)
	directionDuration := time.Since(directionStart)

	s.state = Idle
	return RebuildResult{
		BuildResult:         result,
		CostDuration:        costDuration,
		IntegrationDuration: integrationDuration,
		DirectionDuration:   directionDuration,
	}
}
