// Package spatialhash implements the tick-scoped broad-phase spatial hash
// (C6): a sharded concurrent multi-map from hash-cell key to the agents
// positioned in it, built fresh by C7 every tick and read by C8.
package spatialhash

import "sync"

// P1 and P2 are the exact primes the reference hash uses; changing them
// changes which distinct world cells alias to the same bucket, and is not
// permitted (§4.6).
const (
	P1 = 73_856_093
	P2 = 19_349_663
)

// shardCount is the number of independent lock stripes. It only affects
// contention under concurrent inserts, not the hash's observable contents.
const shardCount = 64

// Entry is one occupant of a bucket.
type Entry struct {
	Position [2]float64 // world X, Z
	AgentID  int
}

// Key computes the hash-cell key from hash-cell coordinates (§4.6).
func Key(hx, hy int32) int32 {
	return hx*P1 ^ hy*P2
}

type shard struct {
	mu      sync.Mutex
	buckets map[int32][]Entry
}

// Hash is a tick-scoped, concurrently-insertable multi-map. The engine
// allocates it on the first tick with active agents and clears it at the
// start of every later tick, reusing it rather than disposing of it.
type Hash struct {
	cellSize float64
	shards   [shardCount]shard
}

// New allocates a hash with the given hash-cell size (a multiple of the
// larger of avoidance and cohesion radii, per §4.6).
func New(cellSize float64) *Hash {
	h := &Hash{cellSize: cellSize}
	for i := range h.shards {
		h.shards[i].buckets = make(map[int32][]Entry)
	}
	return h
}

// CellSize returns the configured hash-cell size.
func (h *Hash) CellSize() float64 { return h.cellSize }

// CellOf computes the hash-cell coordinates for raw world position (x,z),
// per §4.7: floor(x/S), not offset by grid origin.
func (h *Hash) CellOf(x, z float64) (hx, hy int32) {
	return int32(floorDiv(x, h.cellSize)), int32(floorDiv(z, h.cellSize))
}

func floorDiv(v, size float64) int {
	q := v / size
	i := int(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}

// Insert adds an entry at world position (x,z), keyed by its hash cell.
// Safe for concurrent use by many writers (C7).
func (h *Hash) Insert(agentID int, x, z float64) {
	hx, hy := h.CellOf(x, z)
	key := Key(hx, hy)
	s := &h.shards[uint32(key)%shardCount]
	s.mu.Lock()
	s.buckets[key] = append(s.buckets[key], Entry{Position: [2]float64{x, z}, AgentID: agentID})
	s.mu.Unlock()
}

// At returns the entries at hash-cell key. Safe for concurrent readers
// (C8) once all C7 writers have completed; not safe to call concurrently
// with Insert or Clear.
func (h *Hash) At(key int32) []Entry {
	s := &h.shards[uint32(key)%shardCount]
	return s.buckets[key]
}

// Neighborhood appends to dst every entry in the 3x3 hash-cell block
// centered on (hx,hy), matching the §4.8 flocking neighborhood scan.
// Cells of the block whose keys alias (e.g. (-1,-1) and (1,1) around the
// origin) share one bucket, which is read once, so no entry appears twice.
func (h *Hash) Neighborhood(hx, hy int32, dst []Entry) []Entry {
	var seen [9]int32
	nSeen := 0
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			key := Key(hx+dx, hy+dy)
			dup := false
			for _, k := range seen[:nSeen] {
				if k == key {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			seen[nSeen] = key
			nSeen++
			dst = append(dst, h.At(key)...)
		}
	}
	return dst
}

// Clear empties every bucket while keeping the shard maps (and their
// capacity) for reuse on the next tick.
func (h *Hash) Clear() {
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.Lock()
		for k := range s.buckets {
			delete(s.buckets, k)
		}
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all buckets (test/debug
// use; not on the per-tick hot path).
func (h *Hash) Len() int {
	n := 0
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.Lock()
		for _, b := range s.buckets {
			n += len(b)
		}
		s.mu.Unlock()
	}
	return n
}
