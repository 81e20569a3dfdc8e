package engine

import (
	"math"
	"testing"

	"crowdnav/internal/config"
	"crowdnav/internal/nav/agent"
	"crowdnav/internal/nav/events"
	"crowdnav/internal/nav/field"
)

func testGrid10() config.GridConfig {
	return config.GridConfig{Width: 10, Height: 10, CellSize: 1}
}

func newTestEngine(t *testing.T, grid config.GridConfig) *Engine {
	t.Helper()
	cfg := config.EngineConfig{
		Grid:     grid,
		Field:    config.DefaultField(),
		Flocking: config.FlockingConfig{AvoidRadius: 1.0, CohesionRadius: 2.0, SpatialCellSize: 2.0},
		PoolSize: 200,
		Profile:  config.ProfileNatural,
	}
	e, err := New(cfg, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestStraightDescent(t *testing.T) {
	e := newTestEngine(t, testGrid10())
	e.SetTarget(8.5, 8.5)

	idx, err := e.Spawn(1.5, 0, 1.5, agent.Template{SpeedMax: 5, FlowWeight: 1})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	for i := 0; i < 100; i++ {
		e.Tick(0.1)
	}

	a := e.pool.At(idx)
	if a.Position.X < 7.5 || a.Position.Z < 7.5 {
		t.Fatalf("expected x>=7.5 and z>=7.5, got (%v,%v)", a.Position.X, a.Position.Z)
	}
}

func TestObstacleDetour(t *testing.T) {
	e := newTestEngine(t, testGrid10())
	e.AddObstacle(5, 5, 1.5)
	e.SetTarget(9.0, 5.0)

	idx, err := e.Spawn(1.5, 0, 5.0, agent.Template{SpeedMax: 5, FlowWeight: 1})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	for i := 0; i < 200; i++ {
		e.Tick(0.05)

		a := e.pool.At(idx)
		cx, cy := e.fields.Grid.WorldToCell(a.Position.X, a.Position.Z)
		cellIdx := e.fields.Grid.CellToIndex(cx, cy)
		if e.fields.Cost.At(cellIdx) == field.ObstacleSentinel {
			t.Fatalf("tick %d: agent entered obstacle cell (%d,%d)", i, cx, cy)
		}
	}

	a := e.pool.At(idx)
	if a.Position.X < 8.0 {
		t.Fatalf("expected x>=8.0, got %v", a.Position.X)
	}
}

func TestSeparationPair(t *testing.T) {
	e := newTestEngine(t, testGrid10())
	e.cfg.Flocking.AvoidRadius = 1.0

	idxA, err := e.Spawn(0, 0, 0, agent.Template{SpeedMax: 2, AvoidWeight: 1})
	if err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	idxB, err := e.Spawn(0.2, 0, 0, agent.Template{SpeedMax: 2, AvoidWeight: 1})
	if err != nil {
		t.Fatalf("Spawn b: %v", err)
	}

	e.Tick(0.1)

	a := e.pool.At(idxA)
	b := e.pool.At(idxB)
	dx := a.Position.X - b.Position.X
	dz := a.Position.Z - b.Position.Z
	dist := math.Sqrt(dx*dx + dz*dz)
	if dist <= 0.2 {
		t.Fatalf("expected separation distance > 0.2, got %v", dist)
	}
}

func TestUnreachableTargetRing(t *testing.T) {
	grid := config.GridConfig{Width: 20, Height: 20, CellSize: 1}
	e := newTestEngine(t, grid)

	ringCenterX, ringCenterZ := 10.0, 10.0
	for angle := 0.0; angle < 2*math.Pi; angle += 2 * math.Pi / 64 {
		x := ringCenterX + 3*math.Cos(angle)
		z := ringCenterZ + 3*math.Sin(angle)
		e.AddObstacle(x, z, 0.6)
	}
	e.SetTarget(ringCenterX, ringCenterZ)

	idx, err := e.Spawn(2, 0, 2, agent.Template{SpeedMax: 3, FlowWeight: 1})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	e.Tick(0.1)

	agents, fieldSnap := e.Snapshot()
	_ = agents
	cx, cy := fieldSnap.Grid.WorldToCell(2, 2)
	dirIdx := fieldSnap.Grid.CellToIndex(cx, cy)
	if !fieldSnap.Direction[dirIdx].IsZero() {
		t.Fatalf("expected zero direction outside sealed ring at (2,2)")
	}

	for i := 0; i < 50; i++ {
		e.Tick(0.1)
	}

	a := e.pool.At(idx)
	speed := math.Hypot(a.Velocity.X, a.Velocity.Z)
	if speed > 0.05 {
		t.Fatalf("expected |v| -> 0 within 50 ticks, got %v", speed)
	}
}

func TestPoolExhaustion(t *testing.T) {
	cfg := config.EngineConfig{
		Grid:     testGrid10(),
		Field:    config.DefaultField(),
		Flocking: config.DefaultFlocking(),
		PoolSize: 4,
		Profile:  config.ProfileNatural,
	}
	e, err := New(cfg, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var indices []int
	for i := 0; i < 4; i++ {
		idx, err := e.Spawn(float64(i), 0, 0, agent.Template{SpeedMax: 1})
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		indices = append(indices, idx)
	}

	if _, err := e.Spawn(99, 0, 0, agent.Template{SpeedMax: 1}); err != agent.ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	e.Despawn(indices[0])

	newIdx, err := e.Spawn(50, 0, 0, agent.Template{SpeedMax: 1})
	if err != nil {
		t.Fatalf("respawn after despawn: %v", err)
	}
	if newIdx != indices[0] {
		t.Fatalf("expected reused slot %d, got %d", indices[0], newIdx)
	}
}

func TestTargetRetarget(t *testing.T) {
	grid := config.GridConfig{Width: 30, Height: 30, CellSize: 1}
	e := newTestEngine(t, grid)
	e.SetTarget(25, 25)

	for i := 0; i < 100; i++ {
		e.Spawn(float64(2+i%20), 0, float64(2+i/20), agent.Template{SpeedMax: 3, FlowWeight: 1})
	}

	for i := 0; i < 60; i++ {
		e.Tick(0.1)
	}

	e.SetTarget(5, 5)
	e.Tick(0.1)

	_, fieldSnap := e.Snapshot()

	cx, cy := fieldSnap.Grid.WorldToCell(15, 15)
	dirIdx := fieldSnap.Grid.CellToIndex(cx, cy)
	dir := fieldSnap.Direction[dirIdx]
	if dir.IsZero() {
		t.Fatalf("expected non-zero direction at sample cell after retarget")
	}

	cellCenterX, cellCenterZ := fieldSnap.Grid.CellCenterWorld(cx, cy)
	toTargetX := 5 - cellCenterX
	toTargetZ := 5 - cellCenterZ
	toTargetLen := math.Hypot(toTargetX, toTargetZ)
	toTargetX /= toTargetLen
	toTargetZ /= toTargetLen

	dot := float64(dir.X)*toTargetX + float64(dir.Z)*toTargetZ
	if dot <= 0 {
		t.Fatalf("expected positive dot-product with direction toward new target, got %v", dot)
	}
}

func TestSnapshotOnlyIncludesActiveAgents(t *testing.T) {
	e := newTestEngine(t, testGrid10())
	idx, _ := e.Spawn(1, 0, 1, agent.Template{SpeedMax: 1})
	e.Tick(0.1)

	agents, _ := e.Snapshot()
	if len(agents) != 1 {
		t.Fatalf("expected 1 active agent in snapshot, got %d", len(agents))
	}

	e.Despawn(idx)
	e.Tick(0.1)

	agents, _ = e.Snapshot()
	if len(agents) != 0 {
		t.Fatalf("expected 0 active agents after despawn, got %d", len(agents))
	}
}

func TestSetTargetBelowOriginEmitsOutOfGrid(t *testing.T) {
	e := newTestEngine(t, testGrid10())
	e.SetTarget(-0.5, -0.5)
	e.Tick(0.1)

	found := false
	for _, ev := range e.events.Drain() {
		if ev.Kind == events.OutOfGrid {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an OutOfGrid event after targeting below the grid origin")
	}
}

func TestInvalidConfigurationRejected(t *testing.T) {
	cfg := config.EngineConfig{
		Grid:     config.GridConfig{Width: 0, Height: 10, CellSize: 1},
		Field:    config.DefaultField(),
		Flocking: config.DefaultFlocking(),
		PoolSize: 10,
	}
	if _, err := New(cfg, 0); err == nil {
		t.Fatalf("expected error for zero grid width")
	}
}
