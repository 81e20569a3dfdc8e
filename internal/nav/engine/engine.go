// Package engine implements the tick orchestrator (T): it owns the agent
// pool, the field generator, the tick-scoped spatial hash, and drives
// C7 → C8 → C9 each tick, rebuilding the field first if the target or
// obstacle set changed (§4.10).
package engine

import (
	"sync"
	"time"

	"crowdnav/internal/config"
	"crowdnav/internal/metrics"
	"crowdnav/internal/nav/agent"
	"crowdnav/internal/nav/events"
	"crowdnav/internal/nav/field"
	"crowdnav/internal/nav/navgrid"
	"crowdnav/internal/nav/spatialhash"
)

const faultQueueCapacity = 4096

// Engine is the library's single entry point (§6 "the core is a library,
// not a binary"). All exported methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	cfg   config.EngineConfig
	consts profileConstants

	pool     *agent.Pool
	fields   *field.Set
	hash     *spatialhash.Hash
	snapshots *snapshotPool

	obstacles      map[int]field.Obstacle
	nextObstacleID int

	targetX, targetZ float64
	targetSet        bool
	targetChanged    bool

	events          *events.Stream
	faults          *events.FaultQueue
	droppedReported uint64

	tickCount  uint64
	globalSeed int64

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
}

// New constructs an Engine from cfg. Returns InvalidConfiguration if cfg
// fails validation (§7).
func New(cfg config.EngineConfig, seed int64) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	grid := navgrid.Metadata{
		Width: cfg.Grid.Width, Height: cfg.Grid.Height, CellSize: cfg.Grid.CellSize,
		OriginX: cfg.Grid.OriginX, OriginY: cfg.Grid.OriginY, OriginZ: cfg.Grid.OriginZ,
	}

	e := &Engine{
		cfg:        cfg,
		consts:     constantsFor(cfg.Profile),
		pool:       agent.NewPool(cfg.PoolSize),
		fields:     field.NewSet(grid, cfg.Field.DefaultCost, cfg.Field.ObstacleCost),
		snapshots:  newSnapshotPool(cfg.PoolSize, grid.CellCount()),
		obstacles:  make(map[int]field.Obstacle),
		events:     events.New(),
		faults:     events.NewFaultQueue(faultQueueCapacity),
		globalSeed: seed,
		stopChan:   make(chan struct{}),
	}
	return e, nil
}

// SetTarget marks the navigation target as changed; the rebuild runs at
// the start of the next Tick (§6 "set_target marks the target as
// changed"). Setting the same position twice is a no-op rebuild trigger
// beyond the first call (§8 "Idempotence of target-set").
func (e *Engine) SetTarget(x, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.targetSet && e.targetX == x && e.targetZ == z {
		return
	}
	e.targetX, e.targetZ = x, z
	e.targetSet = true
	e.targetChanged = true
}

// AddObstacle registers a new obstacle, deferred to the next rebuild
// (which only happens if the target also changes or AddObstacle/RemoveObstacle
// marks the field dirty). Returns an id usable with RemoveObstacle.
func (e *Engine) AddObstacle(x, z, radius float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextObstacleID
	e.nextObstacleID++
	e.obstacles[id] = field.Obstacle{WorldX: x, WorldZ: z, Radius: radius}
	e.targetChanged = true
	return id
}

// RemoveObstacle removes a previously added obstacle by id. No-op if the
// id is unknown.
func (e *Engine) RemoveObstacle(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.obstacles[id]; !ok {
		return
	}
	delete(e.obstacles, id)
	e.targetChanged = true
}

// Spawn activates a pooled agent at (x,y,z) using tmpl's tunables.
// Returns PoolExhausted (non-fatal) if every slot is active (§4.5).
func (e *Engine) Spawn(x, y, z float64, tmpl agent.Template) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.pool.Spawn(agent.Vec3{X: x, Y: y, Z: z}, tmpl)
	if err != nil {
		metrics.IncPoolExhausted()
	}
	return idx, err
}

// Despawn deactivates the agent at index.
func (e *Engine) Despawn(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Despawn(index)
}

// ActiveCount returns the number of currently active agents.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.ActiveCount()
}

// PoolSize returns the pool's total capacity.
func (e *Engine) PoolSize() int { return e.pool.Size() }

// Events returns the warning/event stream collaborators can drain.
func (e *Engine) Events() *events.Stream { return e.events }

// Tick executes T once (§4.10): rebuild the field if dirty, then run
// C7 → C8 → C9 over the active agents, then publish a read-only snapshot.
func (e *Engine) Tick(dt float64) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++

	if e.targetChanged {
		e.rebuildField()
		e.targetChanged = false
	}

	slots := e.pool.Slots()
	active := 0
	for i := range slots {
		if slots[i].Active {
			active++
		}
	}
	metrics.SetActiveAgents(active)
	if active == 0 {
		e.produceSnapshot()
		return
	}

	if e.hash == nil {
		e.hash = spatialhash.New(e.cfg.Flocking.SpatialCellSize)
	} else {
		e.hash.Clear()
	}

	dispatchCellIndex(slots, e.fields.Grid, e.hash, e.faults, e.tickCount)

	radii := flockingRadii{avoidRadius: e.cfg.Flocking.AvoidRadius, cohesionRadius: e.cfg.Flocking.CohesionRadius}
	dispatchVelocity(slots, e.fields.Direction, e.hash, radii, e.consts, e.globalSeed, e.tickCount, dt, e.faults)

	dispatchMovement(slots, dt, e.faults, e.tickCount)

	e.drainFaultsToEvents()
	e.produceSnapshot()

	metrics.ObserveTick(time.Since(start))
}

func (e *Engine) rebuildField() {
	var obstacles []field.Obstacle
	for _, ob := range e.obstacles {
		obstacles = append(obstacles, ob)
	}

	result := e.fields.Rebuild(obstacles, e.targetX, e.targetZ)
	metrics.ObserveRebuild("cost", result.CostDuration)
	metrics.ObserveRebuild("integration", result.IntegrationDuration)
	metrics.ObserveRebuild("direction", result.DirectionDuration)

	if result.ClampedTarget {
		e.events.Emit(events.Event{Kind: events.OutOfGrid, Tick: e.tickCount, Detail: "target clamped to grid"})
	}
	if result.DegenerateTarget {
		e.events.Emit(events.Event{Kind: events.RebuildDegenerate, Tick: e.tickCount, Detail: "destination on obstacle cell"})
	}
}

func (e *Engine) drainFaultsToEvents() {
	for _, f := range e.faults.Drain() {
		metrics.IncAgentFault(f.Job)
		e.events.Emit(events.Event{Kind: events.AgentFault, Tick: f.Tick, Detail: f.Job + ": " + f.Reason})
	}
	dropped := e.events.DroppedCount()
	metrics.AddEventsDropped(dropped - e.droppedReported)
	e.droppedReported = dropped
}

func (e *Engine) produceSnapshot() {
	snap := e.snapshots.acquireWrite()
	snap.Tick = e.tickCount

	for _, a := range e.pool.Slots() {
		if !a.Active {
			continue
		}
		snap.Agents = append(snap.Agents, AgentSnapshot{
			Position:    a.Position,
			Velocity:    a.Velocity,
			Orientation: a.Orientation,
		})
	}

	snap.Field.Grid = e.fields.Grid
	copy(snap.Field.Direction, e.fields.Direction.Raw())

	e.snapshots.publishWrite()
}

// Snapshot returns the latest published read-only world view: active
// agents' position/velocity/orientation, and the current direction field
// with its grid metadata (§6 "iter_active_agents", "direction_field_snapshot").
func (e *Engine) Snapshot() (agents []AgentSnapshot, fieldSnap FieldSnapshot) {
	snap := e.snapshots.acquireRead()
	agentsCopy := make([]AgentSnapshot, len(snap.Agents))
	copy(agentsCopy, snap.Agents)
	dirCopy := make([]field.Vec2, len(snap.Field.Direction))
	copy(dirCopy, snap.Field.Direction)
	return agentsCopy, FieldSnapshot{Grid: snap.Field.Grid, Direction: dirCopy}
}

// Start begins a free-running tick loop at the given rate, for
// collaborators that prefer the engine to drive its own clock rather
// than calling Tick directly (mirrors the teacher's Start/Stop
// ticker-driven game loop).
func (e *Engine) Start(tickRate int) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.ticker = time.NewTicker(time.Second / time.Duration(tickRate))
	dt := 1.0 / float64(tickRate)

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.Tick(dt)
			case <-e.stopChan:
				return
			}
		}
	}()
}

// Stop halts the free-running tick loop started by Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
}
