package terrain

import "voxelworld/internal/world"

type offset struct {
	dx, dy, dz int
	voxel      world.Voxel
}

// archetype describes one kind of vegetation that can grow on a base voxel.
type archetype struct {
	name   string
	base   world.Voxel
	weight int
	build  func(h uint64) []offset
}

// placement is a vegetation candidate anchored one voxel above a surface.
type placement struct {
	x, y, z int
	kind    *archetype
	offsets []offset
}

var archetypes = []archetype{
	{name: "oak", base: world.Grass, weight: 4, build: buildOak},
	{name: "bush", base: world.Grass, weight: 3, build: buildBush},
	{name: "tall_grass", base: world.Grass, weight: 8, build: single(world.TallGrass)},
	{name: "cactus", base: world.Sand, weight: 4, build: buildCactus},
	{name: "shrub", base: world.Sand, weight: 2, build: single(world.Shrub)},
	{name: "spruce", base: world.Snow, weight: 5, build: buildSpruce},
}

// vegetationBases is the allow-list of surface voxels anything grows on.
var vegetationBases = map[world.Voxel]struct{}{
	world.Grass: {},
	world.Sand:  {},
	world.Snow:  {},
}

func single(v world.Voxel) func(uint64) []offset {
	return func(uint64) []offset {
		return []offset{{voxel: v}}
	}
}

func buildOak(h uint64) []offset {
	height := 4 + int(h&1)
	out := make([]offset, 0, 64)
	for dz := 0; dz < height; dz++ {
		out = append(out, offset{dz: dz, voxel: world.Wood})
	}
	out = appendCanopy(out, height-2, 2, false)
	out = appendCanopy(out, height-1, 2, false)
	out = appendCanopy(out, height, 1, true)
	return out
}

func buildBush(uint64) []offset {
	out := appendCanopy(nil, 0, 1, true)
	return append(out, offset{dz: 1, voxel: world.Leaves})
}

func buildCactus(h uint64) []offset {
	height := 2 + int(h%2)
	out := make([]offset, 0, height)
	for dz := 0; dz < height; dz++ {
		out = append(out, offset{dz: dz, voxel: world.Cactus})
	}
	return out
}

func buildSpruce(uint64) []offset {
	const height = 6
	out := make([]offset, 0, 48)
	for dz := 0; dz < height; dz++ {
		out = append(out, offset{dz: dz, voxel: world.Wood})
	}
	out = appendCanopy(out, 2, 2, false)
	out = appendCanopy(out, 3, 2, false)
	out = appendCanopy(out, 4, 1, false)
	out = appendCanopy(out, 5, 1, false)
	return append(out, offset{dz: height, voxel: world.Leaves})
}

// appendCanopy adds a rounded square of leaves at height dz. The centre is
// left to the trunk unless withCentre is set.
func appendCanopy(out []offset, dz, r int, withCentre bool) []offset {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if r > 0 && (dx == r || dx == -r) && (dy == r || dy == -r) {
				continue
			}
			if dx == 0 && dy == 0 && !withCentre {
				continue
			}
			out = append(out, offset{dx: dx, dy: dy, dz: dz, voxel: world.Leaves})
		}
	}
	return out
}

// pickArchetype gates on the base probability, then chooses a compatible
// archetype by weight. Both decisions come from independent bits of h.
func pickArchetype(h uint64, base world.Voxel, chance float64) *archetype {
	if h%10000 >= uint64(chance*10000) {
		return nil
	}
	total := 0
	for i := range archetypes {
		if archetypes[i].base == base {
			total += archetypes[i].weight
		}
	}
	if total == 0 {
		return nil
	}
	pick := int((h >> 24) % uint64(total))
	for i := range archetypes {
		a := &archetypes[i]
		if a.base != base {
			continue
		}
		if pick < a.weight {
			return a
		}
		pick -= a.weight
	}
	return nil
}

// applyPlacements writes each candidate whose every voxel is in bounds and
// still empty. Candidates are applied in order, so earlier vegetation wins.
func applyPlacements(voxels []world.Voxel, placements []placement) int {
	applied := 0
	for _, p := range placements {
		if !placementFits(voxels, p) {
			continue
		}
		for _, o := range p.offsets {
			voxels[index(p.x+o.dx, p.y+o.dy, p.z+o.dz)] = o.voxel
		}
		applied++
	}
	return applied
}

func placementFits(voxels []world.Voxel, p placement) bool {
	for _, o := range p.offsets {
		x, y, z := p.x+o.dx, p.y+o.dy, p.z+o.dz
		if _, ok := world.NewLocalLocation(x, y, z); !ok {
			return false
		}
		if voxels[index(x, y, z)] != world.None {
			return false
		}
	}
	return true
}
