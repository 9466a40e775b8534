package sim

import (
	"testing"
	"time"

	"voxelworld/internal/world"
)

func flatPool(t *testing.T) *boxGrid {
	t.Helper()
	g := newBoxGrid(world.AbsoluteLocation{X: -8, Y: -8, Z: 0}, world.AbsoluteLocation{X: 8, Y: 8, Z: 10})
	g.floor(world.Stone)
	return g
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestWaterSpreadsGradedDiamond(t *testing.T) {
	g := flatPool(t)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 1}
	g.SetWithoutLoading(src, world.WaterSource)

	w := NewWater(time.Second)
	w.LocationUpdated(src)
	steps := 0
	for w.Pending() > 0 {
		if steps > 20 {
			t.Fatalf("water did not settle after %d steps", steps)
		}
		w.Step(g)
		steps++
	}

	for y := -8; y <= 8; y++ {
		for x := -8; x <= 8; x++ {
			d := abs(x) + abs(y)
			want := world.None
			switch {
			case d == 0:
				want = world.WaterSource
			case d <= 4:
				want = world.WaterOfLevel(world.Water1.WaterLevel() + 1 - d)
			}
			loc := world.AbsoluteLocation{X: x, Y: y, Z: 1}
			if got, _ := g.GetWithoutLoading(loc); got != want {
				t.Fatalf("cell %v = %v, want %v", loc, got, want)
			}
			if got, _ := g.GetWithoutLoading(loc.Above()); got != world.None {
				t.Fatalf("water climbed to %v", loc.Above())
			}
		}
	}
}

func TestWaterDrainsWhenSourceRemoved(t *testing.T) {
	g := flatPool(t)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 1}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(time.Second)
	w.LocationUpdated(src)
	for i := 0; i < 10; i++ {
		w.Step(g)
	}

	g.SetWithoutLoading(src, world.None)
	w.LocationUpdated(src)
	for i := 0; i < 20 && w.Pending() > 0; i++ {
		w.Step(g)
	}
	if w.Pending() != 0 {
		t.Fatalf("drain did not settle")
	}
	for loc, v := range g.cells {
		if v.IsWater() {
			t.Fatalf("water left at %v: %v", loc, v)
		}
	}
}

func TestWaterFallsBeforeSpreading(t *testing.T) {
	g := flatPool(t)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 5}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(time.Second)
	w.LocationUpdated(src)

	changes := w.Step(g)
	if len(changes) != 1 || changes[0].Loc != src.Below() || changes[0].After != world.WaterDown {
		t.Fatalf("first step changes = %+v", changes)
	}
	if changes[0].Reason != world.ReasonWater {
		t.Fatalf("reason = %q", changes[0].Reason)
	}
	for i := 0; i < 30 && w.Pending() > 0; i++ {
		w.Step(g)
	}
	for z := 1; z < 5; z++ {
		if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{Z: z}); v != world.WaterDown {
			t.Fatalf("column z=%d holds %v, want WaterDown", z, v)
		}
	}
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{X: 1, Z: 5}); v != world.None {
		t.Fatalf("source spread sideways while water could fall: %v", v)
	}
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{X: 1, Z: 1}); v != world.Water1 {
		t.Fatalf("landing water did not spread: %v", v)
	}
}

func TestWaterTickUsesFixedStep(t *testing.T) {
	g := flatPool(t)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 1}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(100 * time.Millisecond)
	w.LocationUpdated(src)

	if changes := w.Tick(g, 60*time.Millisecond); len(changes) != 0 {
		t.Fatalf("step ran early: %+v", changes)
	}
	if changes := w.Tick(g, 60*time.Millisecond); len(changes) != 4 {
		t.Fatalf("expected the four Water1 cells, got %d changes", len(changes))
	}

	pending, lag := w.Snapshot()
	restored := NewWater(100 * time.Millisecond)
	restored.Restore(pending, lag)
	if restored.Pending() != w.Pending() {
		t.Fatalf("restored pending = %d, want %d", restored.Pending(), w.Pending())
	}
	if lag != 20*time.Millisecond {
		t.Fatalf("lag = %v", lag)
	}
}

func TestWaterIgnoresUnloadedCells(t *testing.T) {
	g := newBoxGrid(world.AbsoluteLocation{X: 0, Y: 0, Z: 0}, world.AbsoluteLocation{X: 0, Y: 0, Z: 3})
	g.floor(world.Stone)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 1}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(time.Second)
	w.LocationUpdated(src)
	if changes := w.Step(g); len(changes) != 0 {
		t.Fatalf("water flowed into unloaded cells: %+v", changes)
	}
}

func TestWaterCatchUpKeepsLag(t *testing.T) {
	g := flatPool(t)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 9}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(100 * time.Millisecond)
	w.LocationUpdated(src)

	// Falling water advances one cell per step.
	w.Tick(g, time.Second)
	if _, lag := w.Snapshot(); lag != 600*time.Millisecond {
		t.Fatalf("lag after capped tick = %v, want 600ms", lag)
	}
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{Z: 5}); v != world.WaterDown {
		t.Fatalf("z=5 = %v, want WaterDown after four steps", v)
	}
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{Z: 4}); v != world.None {
		t.Fatalf("z=4 = %v, want None after four steps", v)
	}

	w.Tick(g, 0)
	if _, lag := w.Snapshot(); lag != 200*time.Millisecond {
		t.Fatalf("lag after second tick = %v, want 200ms", lag)
	}
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{Z: 1}); v != world.WaterDown {
		t.Fatalf("carried lag did not advance the water: z=1 = %v", v)
	}
}

func TestWaterResumesWhenChunkLoads(t *testing.T) {
	g := newBoxGrid(world.AbsoluteLocation{X: 0, Y: 0, Z: 0}, world.AbsoluteLocation{X: 0, Y: 0, Z: 3})
	g.floor(world.Stone)
	src := world.AbsoluteLocation{X: 0, Y: 0, Z: 1}
	g.SetWithoutLoading(src, world.WaterSource)
	w := NewWater(time.Second)
	w.LocationUpdated(src)

	w.Step(g)
	if w.Parked() == 0 {
		t.Fatalf("unloaded neighbours should be parked")
	}
	pending, _ := w.Snapshot()
	found := false
	for _, loc := range pending {
		if loc == (world.AbsoluteLocation{X: 1, Y: 0, Z: 1}) {
			found = true
		}
	}
	if !found {
		t.Fatalf("snapshot should carry parked locations: %v", pending)
	}

	g.max.X, g.max.Y = 2, 2
	g.floor(world.Stone)
	w.Step(g)
	if v, _ := g.GetWithoutLoading(world.AbsoluteLocation{X: 1, Y: 0, Z: 1}); v != world.Water1 {
		t.Fatalf("water did not resume into the loaded cell: %v", v)
	}
}
