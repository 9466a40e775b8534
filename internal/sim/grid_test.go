package sim

import "voxelworld/internal/world"

// boxGrid is a sparse grid with a loaded box; everything outside reads as
// unloaded.
type boxGrid struct {
	min, max world.AbsoluteLocation
	cells    map[world.AbsoluteLocation]world.Voxel
}

func newBoxGrid(min, max world.AbsoluteLocation) *boxGrid {
	return &boxGrid{min: min, max: max, cells: make(map[world.AbsoluteLocation]world.Voxel)}
}

func (g *boxGrid) inside(loc world.AbsoluteLocation) bool {
	return loc.X >= g.min.X && loc.X <= g.max.X &&
		loc.Y >= g.min.Y && loc.Y <= g.max.Y &&
		loc.Z >= g.min.Z && loc.Z <= g.max.Z && loc.InHeight()
}

func (g *boxGrid) GetWithoutLoading(loc world.AbsoluteLocation) (world.Voxel, bool) {
	if !g.inside(loc) {
		return world.None, false
	}
	return g.cells[loc], true
}

func (g *boxGrid) SetWithoutLoading(loc world.AbsoluteLocation, v world.Voxel) bool {
	if !g.inside(loc) {
		return false
	}
	if v == world.None {
		delete(g.cells, loc)
	} else {
		g.cells[loc] = v
	}
	return true
}

// floor fills z=0 of the box with v.
func (g *boxGrid) floor(v world.Voxel) {
	for y := g.min.Y; y <= g.max.Y; y++ {
		for x := g.min.X; x <= g.max.X; x++ {
			g.cells[world.AbsoluteLocation{X: x, Y: y, Z: 0}] = v
		}
	}
}

func (g *boxGrid) count(v world.Voxel) int {
	n := 0
	for _, cur := range g.cells {
		if cur == v {
			n++
		}
	}
	return n
}
