package field

import (
	"math"

	"crowdnav/internal/nav/navgrid"
)

// Unreached is the sentinel integration value for cells never visited by
// the wavefront (§3).
const Unreached uint16 = 65535

// saturatedMax is the highest finite cumulative cost representable; Unreached
// (65535) stays reserved for "not yet visited" so overflowing sums saturate
// one below it (§4.3, §9).
const saturatedMax uint16 = 65534

// IntegrationField holds cumulative traversal cost from the destination
// cell, per §3.
type IntegrationField struct {
	grid        navgrid.Metadata
	integration []uint16
}

// NewIntegrationField allocates an integration buffer sized for grid.
func NewIntegrationField(grid navgrid.Metadata) *IntegrationField {
	return &IntegrationField{grid: grid, integration: make([]uint16, grid.CellCount())}
}

// At returns the integration value at cell index i.
func (f *IntegrationField) At(i int) uint16 {
	return f.integration[i]
}

// Raw exposes the backing slice read-only for the direction builder.
func (f *IntegrationField) Raw() []uint16 {
	return f.integration
}

// BuildResult reports non-fatal conditions surfaced during a field rebuild
// (§7): the destination was outside the grid and got clamped, or it landed
// on an obstacle cell and was treated as cost-0 anyway.
type BuildResult struct {
	ClampedTarget     bool
	DegenerateTarget  bool
	DestinationCellX  int
	DestinationCellY  int
}

// Build runs the sequential BFS-style wavefront from targetX/targetZ over
// cost, per §4.3:
//
//  1. every cell starts Unreached;
//  2. the destination cell is set to 0 and enqueued;
//  3. while the work list is non-empty, pop one cell (see below), relax its
//     four axis-aligned neighbors, enqueueing any neighbor whose candidate
//     cost strictly improves on its current value.
//
// The work list is popped via swap-with-the-last-element, matching the
// source's "remove-at-0-swap-back" — this is not a strict FIFO, but
// correctness holds because the relaxation guard (candidate < current) is
// monotone: a cell may be revisited until its value stabilizes. Do not
// "fix" this into a strict queue; it's a documented deviation (§9), not a
// bug, and changing it only changes relaxation order, not the final field.
func (f *IntegrationField) Build(cost *CostField, targetX, targetZ float64) BuildResult {
	grid := f.grid
	for i := range f.integration {
		f.integration[i] = Unreached
	}

	destCX, destCY := grid.WorldToCell(targetX, targetZ)
	result := BuildResult{DestinationCellX: destCX, DestinationCellY: destCY}

	rawCX := int(math.Floor((targetX - grid.OriginX) / grid.CellSize))
	rawCY := int(math.Floor((targetZ - grid.OriginZ) / grid.CellSize))
	if rawCX != destCX || rawCY != destCY {
		result.ClampedTarget = true
	}

	destIdx := grid.CellToIndex(destCX, destCY)
	costBuf := cost.Raw()

	// RebuildDegenerate (§7): destination sits on an obstacle cell. Treat it
	// as cost-0 for integration purposes regardless of the obstacle marker,
	// so the field is still valid; the caller is warned, not failed.
	if costBuf[destIdx] == ObstacleSentinel {
		result.DegenerateTarget = true
	}

	f.integration[destIdx] = 0

	queue := make([]int, 0, len(f.integration))
	queue = append(queue, destIdx)

	for len(queue) > 0 {
		last := len(queue) - 1
		current := queue[last]
		queue = queue[:last]

		cx, cy := grid.IndexToCell(current)
		currentCost := f.integration[current]

		for _, n := range [4]struct{ dx, dy int }{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			nx, ny := cx+n.dx, cy+n.dy
			if !grid.InBounds(nx, ny) {
				continue
			}
			nIdx := grid.CellToIndex(nx, ny)
			if costBuf[nIdx] == ObstacleSentinel {
				continue
			}

			candidate := uint32(currentCost) + uint32(costBuf[nIdx])
			if candidate > uint32(saturatedMax) {
				candidate = uint32(saturatedMax)
			}
			if uint16(candidate) < f.integration[nIdx] {
				f.integration[nIdx] = uint16(candidate)
				queue = append(queue, nIdx)
			}
		}
	}

	return result
}
