package sim

import (
	"sort"
	"time"

	"voxelworld/internal/world"
)

// maxWaterCatchUp bounds how many steps one Tick may run after a long frame.
const maxWaterCatchUp = 4

// Water propagates water voxels. It only looks at locations reported through
// LocationUpdated and advances in fixed steps, so idle water costs nothing.
type Water struct {
	step    time.Duration
	lag     time.Duration
	pending locationSet
	// parked holds locations that could not be examined because their chunk
	// was not loaded, grouped by chunk.
	parked map[world.ChunkCoord]*locationSet
}

func NewWater(step time.Duration) *Water {
	if step <= 0 {
		step = 250 * time.Millisecond
	}
	return &Water{step: step}
}

// LocationUpdated queues loc and its face neighbours for the next step.
func (w *Water) LocationUpdated(loc world.AbsoluteLocation) {
	w.pending.add(loc)
	for _, n := range loc.Neighbours() {
		w.pending.add(n)
	}
}

// Pending reports how many locations wait for the next step.
func (w *Water) Pending() int { return w.pending.len() }

// Tick accumulates delta and runs the fixed steps that are due, at most
// maxWaterCatchUp of them. Lag beyond that carries over to later ticks.
func (w *Water) Tick(g Grid, delta time.Duration) []world.Change {
	w.lag += delta
	var changes []world.Change
	for steps := 0; w.lag >= w.step; steps++ {
		if steps == maxWaterCatchUp {
			break
		}
		w.lag -= w.step
		changes = append(changes, w.Step(g)...)
	}
	return changes
}

// Step examines every pending location once. Decisions are taken against the
// grid as it was when the step started and applied together afterwards, so the
// outcome does not depend on processing order.
func (w *Water) Step(g Grid) []world.Change {
	w.unpark(g)
	batch := w.pending.take()
	if len(batch) == 0 {
		return nil
	}
	sortLocations(batch)

	writes := make(map[world.AbsoluteLocation]world.Voxel)
	propose := func(loc world.AbsoluteLocation, v world.Voxel) {
		if cur, ok := writes[loc]; ok && cur.WaterLevel() >= v.WaterLevel() {
			return
		}
		writes[loc] = v
	}
	for _, loc := range batch {
		w.examine(g, loc, propose)
	}

	targets := make([]world.AbsoluteLocation, 0, len(writes))
	for loc := range writes {
		targets = append(targets, loc)
	}
	sortLocations(targets)

	var changes []world.Change
	for _, loc := range targets {
		change, ok := write(g, loc, writes[loc], world.ReasonWater)
		if !ok {
			continue
		}
		changes = append(changes, change)
		w.LocationUpdated(loc)
	}
	return changes
}

func (w *Water) examine(g Grid, loc world.AbsoluteLocation, propose func(world.AbsoluteLocation, world.Voxel)) {
	v, ok := g.GetWithoutLoading(loc)
	if !ok {
		w.park(loc)
		return
	}
	if !v.IsWater() {
		return
	}
	if v != world.WaterSource && !fed(g, loc, v) {
		propose(loc, world.None)
		return
	}

	below := loc.Below()
	bv, bok := g.GetWithoutLoading(below)
	if !bok {
		w.park(below)
	}
	if bok && flowsInto(bv, world.WaterDown) {
		propose(below, world.WaterDown)
		return
	}
	// Water still falling through flowing water or air does not spread.
	if bok && bv.IsWater() && bv != world.WaterSource {
		return
	}
	if v == world.Water4 {
		return
	}

	next := lateralLevel(v)
	for _, n := range loc.Lateral() {
		nv, ok := g.GetWithoutLoading(n)
		if !ok {
			w.park(n)
			continue
		}
		if flowsInto(nv, next) {
			propose(n, next)
		}
	}
}

// park remembers an unloaded location until its chunk comes back.
func (w *Water) park(loc world.AbsoluteLocation) {
	if !loc.InHeight() {
		return
	}
	if w.parked == nil {
		w.parked = make(map[world.ChunkCoord]*locationSet)
	}
	coord := world.ChunkCoordOf(loc)
	set := w.parked[coord]
	if set == nil {
		set = &locationSet{}
		w.parked[coord] = set
	}
	set.add(loc)
}

// unpark requeues the parked locations of every chunk that is loaded again,
// together with their neighbours, so water stalled at a chunk border resumes.
func (w *Water) unpark(g Grid) {
	for coord, set := range w.parked {
		if _, ok := g.GetWithoutLoading(set.items[0]); !ok {
			continue
		}
		for _, loc := range set.take() {
			w.LocationUpdated(loc)
		}
		delete(w.parked, coord)
	}
}

// Parked reports how many locations wait for their chunk to load.
func (w *Water) Parked() int {
	n := 0
	for _, set := range w.parked {
		n += set.len()
	}
	return n
}

// fed reports whether a non-source water voxel still has something supplying
// it. Falling water is fed from above or by a source beside it; graded water
// needs water above or a stronger lateral neighbour.
func fed(g Grid, loc world.AbsoluteLocation, v world.Voxel) bool {
	if above, ok := g.GetWithoutLoading(loc.Above()); ok && above.IsWater() {
		return true
	}
	for _, n := range loc.Lateral() {
		nv, ok := g.GetWithoutLoading(n)
		if !ok {
			continue
		}
		if v == world.WaterDown {
			if nv == world.WaterSource {
				return true
			}
			continue
		}
		if nv.WaterLevel() > v.WaterLevel() {
			return true
		}
	}
	return false
}

// flowsInto reports whether water of kind v may replace cur.
func flowsInto(cur, v world.Voxel) bool {
	if cur == world.None {
		return true
	}
	return cur.IsWater() && cur != world.WaterSource && cur.WaterLevel() < v.WaterLevel()
}

// lateralLevel is the water a voxel spreads sideways: one grade weaker, with
// sources and falling water both producing Water1.
func lateralLevel(v world.Voxel) world.Voxel {
	level := v.WaterLevel()
	if level > world.Water1.WaterLevel() {
		return world.Water1
	}
	return world.WaterOfLevel(level - 1)
}

// Snapshot returns the queued and parked locations and the unconsumed time so a later
// session can resume propagation.
func (w *Water) Snapshot() ([]world.AbsoluteLocation, time.Duration) {
	out := append([]world.AbsoluteLocation(nil), w.pending.items...)
	for _, set := range w.parked {
		out = append(out, set.items...)
	}
	sortLocations(out)
	return out, w.lag
}

func (w *Water) Restore(pending []world.AbsoluteLocation, lag time.Duration) {
	w.pending = locationSet{}
	w.parked = nil
	for _, loc := range pending {
		w.pending.add(loc)
	}
	if lag < 0 {
		lag = 0
	}
	w.lag = lag
}

func sortLocations(locs []world.AbsoluteLocation) {
	sort.Slice(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
