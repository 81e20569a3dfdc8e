// Package agent implements the fixed-size agent store and pool (C5): a
// pre-allocated slice of agent records toggled active/inactive by a
// spawner collaborator, never reallocated for the lifetime of the run.
package agent

import (
	"math"

	"github.com/pkg/errors"
)

// ErrPoolExhausted is returned by Spawn when every slot is active.
var ErrPoolExhausted = errors.New("agent: pool exhausted")

// parkedY is the off-plane height inactive agents are parked at (§3).
const parkedY = -1000

// UnassignedCell is the cell-index sentinel for an agent not yet placed on
// the grid by C7.
const UnassignedCell = -1

// Vec3 is a plain 3D vector; Y is carried but ignored by steering (§3).
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// LenSq returns the squared length, avoiding a sqrt where only a threshold
// comparison is needed (§4.8).
func (v Vec3) LenSq() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

func (v Vec3) Len() float64 { return math.Sqrt(v.LenSq()) }

// Normalize returns the unit vector, or the zero vector if v is zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Template carries the per-agent tunables copied onto a slot at spawn time
// (§4.5 "per-agent weights copied from the prefab/template").
type Template struct {
	SpeedMax            float64
	FlowWeight          float64
	AvoidWeight         float64
	CohesionWeight      float64
	WalkSpeedThreshold  float64
	KinematicControlled bool
}

// Agent is a fixed-size record, one per pool slot (§3). Fields are exported
// because C7/C8/C9 operate on them directly from the engine's job
// dispatcher; there is no encapsulation boundary within the core.
type Agent struct {
	Position    Vec3
	Orientation float64 // radians about the vertical axis
	Velocity    Vec3

	SpeedMax           float64
	FlowWeight         float64
	AvoidWeight        float64
	CohesionWeight     float64
	WalkSpeedThreshold float64

	CellIndex int
	Active    bool

	// KinematicControlled selects the C9 dispatch variant (§4.9): true
	// routes movement integration through the physics-backed path (only
	// horizontal velocity published, vertical left to gravity); false uses
	// the plain Euler integration.
	KinematicControlled bool
}

func parkedAgent() Agent {
	return Agent{
		Position:  Vec3{Y: parkedY},
		CellIndex: UnassignedCell,
		Active:    false,
	}
}

// FaceAlong returns the yaw angle (radians) that points dir, matching
// face_along(normalize(v), up=(0,1,0)) from §4.9.
func FaceAlong(dir Vec3) float64 {
	return math.Atan2(dir.X, dir.Z)
}

// Pool is a pre-allocated, fixed-capacity agent store. Spawning never
// reallocates; it scans for the next inactive slot (§4.5).
type Pool struct {
	slots []Agent
}

// NewPool allocates a pool of size slots, all initially inactive and parked.
func NewPool(size int) *Pool {
	slots := make([]Agent, size)
	for i := range slots {
		slots[i] = parkedAgent()
	}
	return &Pool{slots: slots}
}

// Size returns the pool's total capacity.
func (p *Pool) Size() int { return len(p.slots) }

// ActiveCount returns the number of currently active agents.
func (p *Pool) ActiveCount() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].Active {
			n++
		}
	}
	return n
}

// At returns a pointer to the slot at index i for direct job access.
// Callers must range-check; the engine holds grid/pool sizes consistent by
// construction.
func (p *Pool) At(i int) *Agent { return &p.slots[i] }

// Slots returns the backing slice itself, not a copy; the engine's per-tick
// jobs write agent state through it.
func (p *Pool) Slots() []Agent { return p.slots }

// Spawn activates the next inactive slot with the given position and
// template, returning its index. Spawn failure when the pool is exhausted
// is reported as a non-fatal error (§4.5).
func (p *Pool) Spawn(pos Vec3, tmpl Template) (int, error) {
	for i := range p.slots {
		if !p.slots[i].Active {
			p.slots[i] = Agent{
				Position:            pos,
				Orientation:         0,
				Velocity:            Vec3{},
				SpeedMax:            tmpl.SpeedMax,
				FlowWeight:          tmpl.FlowWeight,
				AvoidWeight:         tmpl.AvoidWeight,
				CohesionWeight:      tmpl.CohesionWeight,
				WalkSpeedThreshold:  tmpl.WalkSpeedThreshold,
				CellIndex:           UnassignedCell,
				Active:              true,
				KinematicControlled: tmpl.KinematicControlled,
			}
			return i, nil
		}
	}
	return -1, ErrPoolExhausted
}

// Despawn deactivates slot index and parks it off-plane. Despawning an
// already-inactive or out-of-range index is a no-op.
func (p *Pool) Despawn(index int) {
	if index < 0 || index >= len(p.slots) {
		return
	}
	p.slots[index] = parkedAgent()
}
