package engine

import (
	"sync/atomic"

	"crowdnav/internal/nav/agent"
	"crowdnav/internal/nav/field"
	"crowdnav/internal/nav/navgrid"
)

// AgentSnapshot is an immutable, value-typed copy of one active agent's
// externally-visible state (§6 "iter_active_agents() (position, velocity,
// orientation)").
type AgentSnapshot struct {
	Position    agent.Vec3
	Velocity    agent.Vec3
	Orientation float64
}

// FieldSnapshot is an immutable copy of the direction field plus the grid
// metadata needed to interpret it (§6 "direction_field_snapshot() with
// (width,height,cell_size,origin) metadata").
type FieldSnapshot struct {
	Grid      navgrid.Metadata
	Direction []field.Vec2
}

// worldSnapshot bundles both read-only views produced once per tick.
type worldSnapshot struct {
	Sequence uint64
	Tick     uint64
	Agents   []AgentSnapshot
	Field    FieldSnapshot
}

// snapshotPool is a triple-buffered, lock-free single-producer/multi-reader
// pool of worldSnapshots, adapted directly from the teacher's
// SnapshotPool (game_snapshot.go): the tick orchestrator is the sole
// producer, collaborators are readers, and no lock is needed because
// readers only ever see a fully-published buffer.
type snapshotPool struct {
	buffers  [3]worldSnapshot
	writeIdx uint32
	readIdx  uint32
	sequence uint64
}

func newSnapshotPool(poolSize, cellCount int) *snapshotPool {
	p := &snapshotPool{}
	for i := range p.buffers {
		p.buffers[i] = worldSnapshot{
			Agents: make([]AgentSnapshot, 0, poolSize),
			Field:  FieldSnapshot{Direction: make([]field.Vec2, cellCount)},
		}
	}
	return p
}

func (p *snapshotPool) acquireWrite() *worldSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.buffers[idx]
	snap.Agents = snap.Agents[:0]
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	return snap
}

func (p *snapshotPool) publishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

func (p *snapshotPool) acquireRead() *worldSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.buffers[idx]
}
