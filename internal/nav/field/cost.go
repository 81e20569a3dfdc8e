package field

import (
	"math"
	"runtime"
	"sync"

	"crowdnav/internal/nav/navgrid"
)

// ObstacleSentinel is the cost value reserved for impassable cells.
const ObstacleSentinel byte = 255

// Obstacle is a read-only collaborator entity: a world-space position plus
// a stamping radius. The core never mutates obstacles, only reads them.
type Obstacle struct {
	WorldX, WorldZ float64
	Radius         float64
}

// CostField is the per-cell traversal cost byte buffer (§3). The cost value
// 0 is reserved/unused by convention; free cells carry DefaultCost and
// ObstacleSentinel cells are never entered.
type CostField struct {
	grid navgrid.Metadata
	cost []byte
}

// NewCostField allocates a cost buffer sized for grid.
func NewCostField(grid navgrid.Metadata) *CostField {
	return &CostField{grid: grid, cost: make([]byte, grid.CellCount())}
}

// At returns the cost at cell index i.
func (f *CostField) At(i int) byte {
	return f.cost[i]
}

// Raw exposes the backing slice read-only for the integration builder.
func (f *CostField) Raw() []byte {
	return f.cost
}

// Build fills the cost buffer: every cell starts at defaultCost, then every
// obstacle stamps the axis-aligned square of cell-radius ⌈r/cellSize⌉ around
// its center cell with obstacleCost. The AABB approximates a circle by its
// bounding square — a documented, deliberate simplification (§4.2, §9).
//
// Default-cost initialization is parallelized across cells (embarrassingly
// parallel, per §4.2); obstacle stamping runs sequentially since
// N_obstacles is expected to be small relative to cell count.
func (f *CostField) Build(defaultCost, obstacleCost byte, obstacles []Obstacle) {
	grid := f.grid
	n := len(f.cost)

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f.cost[i] = defaultCost
			}
		}(start, end)
	}
	wg.Wait()

	for _, ob := range obstacles {
		stampObstacle(f.cost, grid, ob, obstacleCost)
	}
}

func stampObstacle(cost []byte, grid navgrid.Metadata, ob Obstacle, obstacleCost byte) {
	centerCX, centerCY := grid.WorldToCell(ob.WorldX, ob.WorldZ)
	cellRadius := int(math.Ceil(ob.Radius / grid.CellSize))

	for dy := -cellRadius; dy <= cellRadius; dy++ {
		for dx := -cellRadius; dx <= cellRadius; dx++ {
			cx, cy := centerCX+dx, centerCY+dy
			if !grid.InBounds(cx, cy) {
				continue
			}
			cost[grid.CellToIndex(cx, cy)] = obstacleCost
		}
	}
}
