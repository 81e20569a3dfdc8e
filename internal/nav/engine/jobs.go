package engine

import (
	"math"
	"math/rand"
	"runtime"
	"sync"

	"crowdnav/internal/nav/agent"
	"crowdnav/internal/nav/events"
	"crowdnav/internal/nav/field"
	"crowdnav/internal/nav/navgrid"
	"crowdnav/internal/nav/spatialhash"
)

// numericStabilityFloorSq is the dist² > 0.01 guard before dividing by
// distance (§4.8, §9).
const numericStabilityFloorSq = 0.01

// cohesionCenterFloor is the |to_center| > 0.1 guard before normalizing
// the cohesion vector (§4.8, §9).
const cohesionCenterFloor = 0.1

// velocityStopThresholdSq is the |v|² > 0.01 guard before updating
// orientation in C9 (§4.9).
const velocityStopThresholdSq = 0.01

func chunkBounds(n, worker, workers int) (lo, hi int) {
	chunk := (n + workers - 1) / workers
	lo = worker * chunk
	hi = lo + chunk
	if hi > n {
		hi = n
	}
	return
}

func workerCount(n int) int {
	w := runtime.GOMAXPROCS(0)
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// runGuarded invokes fn(i), recovering any panic and reporting it to
// faults instead of propagating it — per §4.10 "any per-agent exception
// within C7/C8/C9 must be caught to prevent corrupting the shared hash;
// the affected agent is left unchanged for the tick."
func runGuarded(i int, faults *events.FaultQueue, job string, tick uint64, fn func(i int)) {
	defer func() {
		if r := recover(); r != nil {
			if faults != nil {
				faults.TryPush(events.AgentFaultRecord{
					AgentIndex: i,
					Job:        job,
					Reason:     reasonOf(r),
					Tick:       tick,
				})
			}
		}
	}()
	fn(i)
}

func reasonOf(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "panic"
}

// jobCellIndex runs C7 for one agent: compute and cache its grid cell,
// compute its spatial-hash cell, and insert itself into the hash (§4.7).
func jobCellIndex(a *agent.Agent, idx int, grid navgrid.Metadata, hash *spatialhash.Hash) {
	if !a.Active {
		return
	}
	cx, cy := grid.WorldToCell(a.Position.X, a.Position.Z)
	a.CellIndex = grid.CellToIndex(cx, cy)
	hash.Insert(idx, a.Position.X, a.Position.Z)
}

// jobVelocity runs C8 for one agent: sample the direction field, blend
// flocking and flow contributions, damp toward the desired velocity, and
// clamp to speed_max (§4.8).
func jobVelocity(a *agent.Agent, idx int, dir *field.DirectionField, hash *spatialhash.Hash,
	flockRadii flockingRadii, consts profileConstants, globalSeed int64, tick uint64, dt float64, scratch *velocityScratch) {
	if !a.Active {
		return
	}

	var flow3 agent.Vec3
	if a.CellIndex >= 0 {
		f := dir.At(a.CellIndex)
		flow3 = agent.Vec3{X: float64(f.X), Z: float64(f.Z)}
	}

	hx, hy := hash.CellOf(a.Position.X, a.Position.Z)
	scratch.neighbors = hash.Neighborhood(hx, hy, scratch.neighbors[:0])

	var separation agent.Vec3
	separationCount := 0
	var centerOfMass agent.Vec3
	cohesionCount := 0

	for _, n := range scratch.neighbors {
		if n.AgentID == idx {
			continue
		}
		other := agent.Vec3{X: n.Position[0], Z: n.Position[1]}
		d := agent.Vec3{X: a.Position.X - other.X, Z: a.Position.Z - other.Z}
		distSq := d.X*d.X + d.Z*d.Z

		if distSq < flockRadii.avoidRadius*flockRadii.avoidRadius && distSq > numericStabilityFloorSq {
			dist := math.Sqrt(distSq)
			unit := agent.Vec3{X: d.X / dist, Z: d.Z / dist}
			var strength float64
			if consts.quadraticFalloff {
				strength = (1 - dist/flockRadii.avoidRadius) * (1 - dist/flockRadii.avoidRadius)
			} else {
				strength = 1 - dist/flockRadii.avoidRadius
			}
			separation = separation.Add(unit.Scale(strength))
			separationCount++
		}
		if distSq < flockRadii.cohesionRadius*flockRadii.cohesionRadius && distSq > numericStabilityFloorSq {
			centerOfMass = centerOfMass.Add(other)
			cohesionCount++
		}
	}

	if separationCount > 0 {
		separation = separation.Scale(1 / float64(separationCount))
	}

	var cohesion agent.Vec3
	if cohesionCount > 0 {
		centerOfMass = centerOfMass.Scale(1 / float64(cohesionCount))
		toCenter := agent.Vec3{X: centerOfMass.X - a.Position.X, Z: centerOfMass.Z - a.Position.Z}
		if toCenter.Len() > cohesionCenterFloor {
			cohesion = toCenter.Normalize()
		}
	}

	var jitter agent.Vec3
	if consts.jitterEnabled {
		r := rand.New(rand.NewSource(globalSeed ^ int64(idx)*1_000_003 ^ int64(tick)*2_000_003))
		jitter = agent.Vec3{X: -0.3 + r.Float64()*0.6, Z: -0.3 + r.Float64()*0.6}
	}

	desired := flow3.Scale(a.FlowWeight * a.SpeedMax).
		Add(separation.Scale(a.AvoidWeight * a.SpeedMax)).
		Add(cohesion.Scale(a.CohesionWeight * a.SpeedMax))
	if consts.jitterEnabled {
		desired = desired.Add(jitter.Scale(a.SpeedMax * 0.1))
	}

	lerpFactor := dt * consts.dampingK
	if lerpFactor > 1 {
		lerpFactor = 1
	}
	newVel := agent.Vec3{
		X: a.Velocity.X + (desired.X-a.Velocity.X)*lerpFactor,
		Z: a.Velocity.Z + (desired.Z-a.Velocity.Z)*lerpFactor,
	}
	if math.IsNaN(newVel.X) || math.IsNaN(newVel.Z) {
		newVel = agent.Vec3{} // numeric anomaly: recover locally by zeroing (§7)
	}

	if speed := newVel.Len(); speed > a.SpeedMax && speed > 0 {
		newVel = newVel.Scale(a.SpeedMax / speed)
	}

	a.Velocity.X = newVel.X
	a.Velocity.Z = newVel.Z
}

// jobMovement runs C9 for one agent: integrate position by velocity and,
// if moving fast enough, update orientation to face the velocity (§4.9).
// KinematicControlled agents publish only the horizontal velocity,
// preserving Y (left to an external physics body / gravity).
func jobMovement(a *agent.Agent, dt float64) {
	if !a.Active {
		return
	}

	a.Position.X += a.Velocity.X * dt
	a.Position.Z += a.Velocity.Z * dt
	if !a.KinematicControlled {
		a.Position.Y += a.Velocity.Y * dt
	}

	if a.Velocity.X*a.Velocity.X+a.Velocity.Z*a.Velocity.Z > velocityStopThresholdSq {
		dir := agent.Vec3{X: a.Velocity.X, Z: a.Velocity.Z}.Normalize()
		a.Orientation = agent.FaceAlong(dir)
	}
}

type flockingRadii struct {
	avoidRadius    float64
	cohesionRadius float64
}

// velocityScratch holds per-worker reusable buffers for C8, avoiding a
// per-agent allocation for the neighborhood query (grounded on the pack's
// workerScratch pattern).
type velocityScratch struct {
	neighbors []spatialhash.Entry
}

func newVelocityScratches(n int) []velocityScratch {
	s := make([]velocityScratch, n)
	for i := range s {
		s[i].neighbors = make([]spatialhash.Entry, 0, 32)
	}
	return s
}

// dispatchCellIndex runs C7 across the whole pool.
func dispatchCellIndex(slots []agent.Agent, grid navgrid.Metadata, hash *spatialhash.Hash, faults *events.FaultQueue, tick uint64) {
	n := len(slots)
	if n == 0 {
		return
	}
	workers := workerCount(n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := chunkBounds(n, w, workers)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				idx := i
				runGuarded(idx, faults, "C7", tick, func(int) {
					jobCellIndex(&slots[idx], idx, grid, hash)
				})
			}
		}(lo, hi)
	}
	wg.Wait()
}

// dispatchVelocity runs C8 across the whole pool, handing each worker its
// own scratch buffer.
func dispatchVelocity(slots []agent.Agent, dir *field.DirectionField, hash *spatialhash.Hash,
	radii flockingRadii, consts profileConstants, globalSeed int64, tick uint64, dt float64,
	faults *events.FaultQueue) {
	n := len(slots)
	if n == 0 {
		return
	}
	workers := workerCount(n)
	scratches := newVelocityScratches(workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := chunkBounds(n, w, workers)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(workerID, lo, hi int) {
			defer wg.Done()
			scratch := &scratches[workerID]
			for i := lo; i < hi; i++ {
				idx := i
				runGuarded(idx, faults, "C8", tick, func(int) {
					jobVelocity(&slots[idx], idx, dir, hash, radii, consts, globalSeed, tick, dt, scratch)
				})
			}
		}(w, lo, hi)
	}
	wg.Wait()
}

// dispatchMovement runs C9 across the whole pool.
func dispatchMovement(slots []agent.Agent, dt float64, faults *events.FaultQueue, tick uint64) {
	n := len(slots)
	if n == 0 {
		return
	}
	workers := workerCount(n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := chunkBounds(n, w, workers)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				idx := i
				runGuarded(idx, faults, "C9", tick, func(int) {
					jobMovement(&slots[idx], dt)
				})
			}
		}(lo, hi)
	}
	wg.Wait()
}
