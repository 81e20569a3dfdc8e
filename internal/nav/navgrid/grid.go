// Package navgrid provides the uniform world↔cell mapping shared by the
// flow-field generator and the per-tick agent jobs.
//
// All functions here are pure: given the same Metadata they always return
// the same answer, and cell arithmetic never fails — out-of-grid inputs are
// clamped rather than rejected.
package navgrid

import "math"

// Metadata describes an immutable grid for a single engine run.
// Origin and cell positions live on the XZ plane; Y is carried but ignored.
type Metadata struct {
	Width    int // cells, columns
	Height   int // cells, rows
	CellSize float64

	OriginX float64
	OriginY float64 // world Y (unused by steering, kept for completeness)
	OriginZ float64
}

// CellCount returns Width*Height.
func (m Metadata) CellCount() int {
	return m.Width * m.Height
}

// Valid reports whether the metadata describes a usable grid.
func (m Metadata) Valid() bool {
	return m.Width > 0 && m.Height > 0 && m.CellSize > 0 &&
		!math.IsNaN(m.OriginX) && !math.IsInf(m.OriginX, 0) &&
		!math.IsNaN(m.OriginZ) && !math.IsInf(m.OriginZ, 0)
}

// WorldToCell maps a world-space (x, z) position to a clamped cell coordinate.
func (m Metadata) WorldToCell(x, z float64) (cx, cy int) {
	cx = int(math.Floor((x - m.OriginX) / m.CellSize))
	cy = int(math.Floor((z - m.OriginZ) / m.CellSize))
	return m.Clamp(cx, cy)
}

// Clamp pins a (possibly out-of-range) cell coordinate into [0,dim-1].
func (m Metadata) Clamp(cx, cy int) (int, int) {
	if cx < 0 {
		cx = 0
	}
	if cx >= m.Width {
		cx = m.Width - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= m.Height {
		cy = m.Height - 1
	}
	return cx, cy
}

// InBounds reports whether (cx, cy) already lies within the grid, with no
// clamping performed. Used by the integration wavefront to skip neighbors.
func (m Metadata) InBounds(cx, cy int) bool {
	return cx >= 0 && cx < m.Width && cy >= 0 && cy < m.Height
}

// CellToIndex flattens a clamped cell coordinate into the 1D buffer index
// used by the cost/integration/direction fields.
func (m Metadata) CellToIndex(cx, cy int) int {
	return cy*m.Width + cx
}

// IndexToCell is the inverse of CellToIndex.
func (m Metadata) IndexToCell(i int) (cx, cy int) {
	return i % m.Width, i / m.Width
}

// CellCenterWorld returns the world-space XZ position of the center of
// cell (cx, cy), regardless of whether the coordinate is in bounds.
func (m Metadata) CellCenterWorld(cx, cy int) (x, z float64) {
	x = m.OriginX + (float64(cx)+0.5)*m.CellSize
	z = m.OriginZ + (float64(cy)+0.5)*m.CellSize
	return x, z
}
