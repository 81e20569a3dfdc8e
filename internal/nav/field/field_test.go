package field

import (
	"math"
	"testing"

	"crowdnav/internal/nav/navgrid"
)

func grid10() navgrid.Metadata {
	return navgrid.Metadata{Width: 10, Height: 10, CellSize: 1, OriginX: 0, OriginZ: 0}
}

func TestCostFieldDefaultsAndObstacleStamp(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, []Obstacle{{WorldX: 5, WorldZ: 5, Radius: 1.5}})

	centerCX, centerCY := g.WorldToCell(5, 5)
	cellRadius := int(math.Ceil(1.5 / g.CellSize))

	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			i := g.CellToIndex(cx, cy)
			inSquare := abs(cx-centerCX) <= cellRadius && abs(cy-centerCY) <= cellRadius
			if inSquare {
				if cf.At(i) != ObstacleSentinel {
					t.Errorf("cell (%d,%d) in obstacle AABB should be obstacle cost, got %d", cx, cy, cf.At(i))
				}
			} else {
				if cf.At(i) != 1 {
					t.Errorf("cell (%d,%d) outside obstacle AABB should be default cost, got %d", cx, cy, cf.At(i))
				}
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestIntegrationFieldDestinationIsZero(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	result := intg.Build(cf, 8.5, 8.5)

	destIdx := g.CellToIndex(result.DestinationCellX, result.DestinationCellY)
	if intg.At(destIdx) != 0 {
		t.Fatalf("destination integration = %d, want 0", intg.At(destIdx))
	}
}

func TestIntegrationFieldReachablePathCost(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	intg.Build(cf, 0.5, 0.5) // destination at cell (0,0)

	// With uniform cost 1 and a free 10x10 grid, integration at (cx,cy)
	// must equal its 4-connected Manhattan distance to the destination.
	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			i := g.CellToIndex(cx, cy)
			want := uint16(cx + cy)
			if got := intg.At(i); got != want {
				t.Errorf("integration(%d,%d) = %d, want %d", cx, cy, got, want)
			}
		}
	}
}

func TestIntegrationFieldObstacleCellsRemainUnreached(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, []Obstacle{{WorldX: 3, WorldZ: 3, Radius: 0.4}})

	intg := NewIntegrationField(g)
	intg.Build(cf, 8.5, 8.5)

	ocx, ocy := g.WorldToCell(3, 3)
	oi := g.CellToIndex(ocx, ocy)
	if intg.At(oi) != Unreached {
		t.Fatalf("obstacle cell integration = %d, want Unreached", intg.At(oi))
	}
}

func TestIntegrationFieldDegenerateTargetOnObstacle(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, []Obstacle{{WorldX: 5, WorldZ: 5, Radius: 0.3}})

	intg := NewIntegrationField(g)
	result := intg.Build(cf, 5.5, 5.5)

	if !result.DegenerateTarget {
		t.Fatal("expected DegenerateTarget when destination sits on an obstacle cell")
	}
	destIdx := g.CellToIndex(result.DestinationCellX, result.DestinationCellY)
	if intg.At(destIdx) != 0 {
		t.Fatalf("degenerate destination integration = %d, want 0 (treated as cost-0)", intg.At(destIdx))
	}
}

func TestIntegrationFieldClampedTargetBelowOrigin(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	// -0.5 floors to raw cell -1, which Clamp pins to 0. Truncation toward
	// zero would instead yield int(-0.5) == 0, masking the clamp.
	result := intg.Build(cf, -0.5, -0.5)

	if !result.ClampedTarget {
		t.Fatal("expected ClampedTarget for target below grid origin")
	}
	if result.DestinationCellX != 0 || result.DestinationCellY != 0 {
		t.Fatalf("clamped destination = (%d,%d), want (0,0)", result.DestinationCellX, result.DestinationCellY)
	}
}

func TestIntegrationFieldNotClampedWithinGrid(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	result := intg.Build(cf, 8.5, 8.5)

	if result.ClampedTarget {
		t.Fatal("expected no ClampedTarget for an in-grid target")
	}
}

func TestDirectionFieldZeroAtUnreachedAndDestination(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	result := intg.Build(cf, 8.5, 8.5)

	dir := NewDirectionField(g)
	dir.Build(intg)

	destIdx := g.CellToIndex(result.DestinationCellX, result.DestinationCellY)
	if !dir.At(destIdx).IsZero() {
		t.Fatalf("destination direction = %+v, want zero", dir.At(destIdx))
	}
}

func TestDirectionFieldDescendsIntegration(t *testing.T) {
	g := grid10()
	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, nil)

	intg := NewIntegrationField(g)
	intg.Build(cf, 8.5, 8.5)

	dir := NewDirectionField(g)
	dir.Build(intg)

	for i, d := range dir.Raw() {
		if d.IsZero() {
			continue
		}
		length := math.Hypot(float64(d.X), float64(d.Z))
		if math.Abs(length-1) > 1e-5 {
			t.Fatalf("cell %d direction %+v is not unit length (len=%.6f)", i, d, length)
		}

		cx, cy := g.IndexToCell(i)
		// Round, not truncate: a diagonal unit vector has components ±0.7071.
		nx, ny := cx+int(math.Round(float64(d.X))), cy+int(math.Round(float64(d.Z)))
		if !g.InBounds(nx, ny) {
			t.Fatalf("cell %d points out of bounds: %+v", i, d)
		}
		nIdx := g.CellToIndex(nx, ny)
		if intg.At(nIdx) >= intg.At(i) {
			t.Fatalf("cell %d (integration %d) direction points to cell %d with integration %d, want strictly smaller",
				i, intg.At(i), nIdx, intg.At(nIdx))
		}
	}
}

func TestDirectionFieldUnreachableRingIsAllZero(t *testing.T) {
	g := grid10()
	var obstacles []Obstacle
	// Ring of obstacle cells fully enclosing (5,5).
	for cx := 3; cx <= 7; cx++ {
		obstacles = append(obstacles, Obstacle{WorldX: float64(cx) + 0.5, WorldZ: 3.5, Radius: 0.1})
		obstacles = append(obstacles, Obstacle{WorldX: float64(cx) + 0.5, WorldZ: 7.5, Radius: 0.1})
	}
	for cy := 3; cy <= 7; cy++ {
		obstacles = append(obstacles, Obstacle{WorldX: 3.5, WorldZ: float64(cy) + 0.5, Radius: 0.1})
		obstacles = append(obstacles, Obstacle{WorldX: 7.5, WorldZ: float64(cy) + 0.5, Radius: 0.1})
	}

	cf := NewCostField(g)
	cf.Build(1, ObstacleSentinel, obstacles)

	intg := NewIntegrationField(g)
	intg.Build(cf, 5.5, 5.5)

	dir := NewDirectionField(g)
	dir.Build(intg)

	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			outsideRing := cx < 3 || cx > 7 || cy < 3 || cy > 7
			if !outsideRing {
				continue
			}
			i := g.CellToIndex(cx, cy)
			if !dir.At(i).IsZero() {
				t.Errorf("cell (%d,%d) outside sealed ring should have zero direction, got %+v", cx, cy, dir.At(i))
			}
		}
	}
}

func TestSetRebuildStateMachineReturnsToIdle(t *testing.T) {
	g := grid10()
	s := NewSet(g, 1, ObstacleSentinel)
	if s.State() != Idle {
		t.Fatal("new Set should start Idle")
	}
	s.Rebuild(nil, 8.5, 8.5)
	if s.State() != Idle {
		t.Fatal("Set should return to Idle after Rebuild")
	}
}

func TestSetRebuildIdempotentForSameTarget(t *testing.T) {
	g := grid10()
	s := NewSet(g, 1, ObstacleSentinel)
	s.Rebuild(nil, 8.5, 8.5)
	first := append([]uint16(nil), s.Integration.Raw()...)
	s.Rebuild(nil, 8.5, 8.5)
	second := s.Integration.Raw()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("rebuilding with identical target changed integration at %d: %d != %d", i, first[i], second[i])
		}
	}
}
