package field

import (
	"math"
	"runtime"
	"sync"

	"crowdnav/internal/nav/navgrid"
)

// Vec2 is an XZ-plane direction vector.
type Vec2 struct {
	X, Z float32
}

// IsZero reports whether v is the zero vector ("no valid descent").
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Z == 0
}

// octileOffsets is the fixed row-major scan order over the 8 neighbors
// (skipping the center), used for deterministic first-improving tie-breaks
// (§4.4).
var octileOffsets = [8]struct{ dx, dy int }{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// DirectionField holds the per-cell unit descent vector (§3).
type DirectionField struct {
	grid navgrid.Metadata
	dir  []Vec2
}

// NewDirectionField allocates a direction buffer sized for grid.
func NewDirectionField(grid navgrid.Metadata) *DirectionField {
	return &DirectionField{grid: grid, dir: make([]Vec2, grid.CellCount())}
}

// At returns the direction vector at cell index i, or the zero vector if i
// is out of range (matching the "flow contribution is zero" edge case for
// an unassigned agent cell index, §4.8).
func (f *DirectionField) At(i int) Vec2 {
	if i < 0 || i >= len(f.dir) {
		return Vec2{}
	}
	return f.dir[i]
}

// Raw exposes the backing slice read-only (used by read-only snapshots).
func (f *DirectionField) Raw() []Vec2 {
	return f.dir
}

// Build computes, per cell, the unit vector pointing toward the neighbor
// with strictly smaller integration (§4.4). Cells with Unreached
// integration, or with no improving neighbor, get the zero vector.
//
// The 8-neighbor scan is in fixed row-major order (octileOffsets above);
// ties resolve to the first improving neighbor encountered in that order,
// matching the deterministic source behavior the tests rely on.
//
// Integration only relaxes over 4 neighbors (§4.3) while direction descends
// over all 8 (§4.4 "octile over 4-neighbour integration", §9) — a diagonal
// neighbor may legitimately look better than the true shortest 4-connected
// path; this is a deliberate quality/cost trade preserved from the source,
// not a discrepancy to "fix".
//
// This stage is embarrassingly parallel across cells.
func (f *DirectionField) Build(integration *IntegrationField) {
	grid := f.grid
	n := len(f.dir)
	integ := integration.Raw()

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
				f.dir[i] = directionForCell(grid, integ, i)
			}
		}(start, end)
	}
	wg.Wait()
}

func directionForCell(grid navgrid.Metadata, integ []uint16, i int) Vec2 {
	cur := integ[i]
	if cur == Unreached {
		return Vec2{}
	}

	cx, cy := grid.IndexToCell(i)
	bestDX, bestDY := 0, 0
	best := cur
	found := false

	for _, o := range octileOffsets {
		nx, ny := cx+o.dx, cy+o.dy
		if !grid.InBounds(nx, ny) {
			continue
		}
		nIdx := grid.CellToIndex(nx, ny)
		if integ[nIdx] < best {
			best = integ[nIdx]
			bestDX, bestDY = o.dx, o.dy
			found = true
		}
	}

	if !found {
		return Vec2{}
	}

	length := float32(math.Sqrt(float64(bestDX*bestDX + bestDY*bestDY)))
	return Vec2{X: float32(bestDX) / length, Z: float32(bestDY) / length}
}
