package terrain

import "voxelworld/internal/world"

// Biome buckets the climate field into three palettes.
type Biome uint8

const (
	BiomeDry Biome = iota
	BiomeWet
	BiomeCold
)

func (b Biome) String() string {
	switch b {
	case BiomeDry:
		return "dry"
	case BiomeWet:
		return "wet"
	case BiomeCold:
		return "cold"
	default:
		return "unknown"
	}
}

// palette lists the voxels a biome fills a column with, from the surface down.
type palette struct {
	surface    world.Voxel
	subsurface world.Voxel
	deep       world.Voxel // band between subsurface and stone
	lakebed    world.Voxel
	lakeTop    world.Voxel
}

var palettes = [...]palette{
	BiomeDry:  {surface: world.Sand, subsurface: world.Sand, deep: world.Sandstone, lakebed: world.Sand, lakeTop: world.WaterSource},
	BiomeWet:  {surface: world.Grass, subsurface: world.Dirt, deep: world.Stone, lakebed: world.Clay, lakeTop: world.WaterSource},
	BiomeCold: {surface: world.Snow, subsurface: world.Dirt, deep: world.Stone, lakebed: world.Gravel, lakeTop: world.Ice},
}

func (b Biome) palette() palette {
	return palettes[b]
}

// SurfaceVoxel is the voxel a dry-land column of this biome is topped with.
func (b Biome) SurfaceVoxel() world.Voxel {
	return palettes[b].surface
}

func classifyBiome(v, dry, wet float64) Biome {
	switch {
	case v < dry:
		return BiomeDry
	case v < wet:
		return BiomeWet
	default:
		return BiomeCold
	}
}
