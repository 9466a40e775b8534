package terrain

import (
	"math"

	"golang.org/x/sync/errgroup"

	"voxelworld/internal/config"
	"voxelworld/internal/world"
)

// Field salts keep every noise source independent under one world seed.
const (
	saltHeight uint64 = iota + 1
	saltDetail
	saltModifier
	saltCaveZone
	saltCave
	saltLake
	saltBiome
	saltClay
)

// Generator produces chunks as a pure function of the world seed and the chunk
// coordinate. It is safe for concurrent use.
type Generator struct {
	seed int64
	cfg  config.TerrainConfig

	height   field
	detail   field
	modifier field
	caveZone field
	cave     field
	lake     field
	biome    field
	clay     field
}

func NewGenerator(seed int64, cfg config.TerrainConfig) *Generator {
	octaves := cfg.Octaves
	return &Generator{
		seed:     seed,
		cfg:      cfg,
		height:   newField(seed, saltHeight, cfg.HeightFrequency, octaves, cfg.Persistence, cfg.Lacunarity).withContrast(1.4),
		detail:   newField(seed, saltDetail, cfg.DetailFrequency, octaves, cfg.Persistence, cfg.Lacunarity).withContrast(1.2),
		modifier: newField(seed, saltModifier, cfg.ModifierFrequency, 1, 1, 1),
		caveZone: newField(seed, saltCaveZone, cfg.CaveZoneFrequency, 2, 0.5, 2),
		cave:     newField(seed, saltCave, cfg.CaveFrequency, 1, 1, 1),
		lake:     newField(seed, saltLake, cfg.LakeFrequency, 2, 0.5, 2),
		biome:    newField(seed, saltBiome, cfg.BiomeFrequency, 2, 0.5, 2).withContrast(1.6),
		clay:     newField(seed, saltClay, cfg.ClayFrequency, 1, 1, 1),
	}
}

func (g *Generator) Seed() int64 { return g.seed }

// TerrainHeight returns the z of the top voxel of the column at world x, y
// before lakes, caves and vegetation are applied.
func (g *Generator) TerrainHeight(x, y int) int {
	base := math.Max(g.height.sample2(x, y), g.detail.sample2(x, y)*0.8)
	mod := g.modifier.sample2(x, y)
	v := base*0.75 + mod*0.25
	span := float64(g.cfg.MaxHeight - g.cfg.MinHeight)
	h := g.cfg.MinHeight + int(math.Round(v*span))
	return clampInt(h, g.cfg.MinHeight, g.cfg.MaxHeight)
}

// CaveZone reports whether caves may be carved below the column.
func (g *Generator) CaveZone(x, y int) bool {
	return g.caveZone.sample2(x, y) > g.cfg.CaveZoneThreshold
}

// LakeDepth returns the number of water layers at the top of the column, zero
// when the column holds no lake. Non-zero depths are at least MinLakeDepth.
func (g *Generator) LakeDepth(x, y int) int {
	return g.lakeDepth(x, y, g.TerrainHeight(x, y))
}

func (g *Generator) lakeDepth(x, y, height int) int {
	if height < g.cfg.LakeMinHeight || height > g.cfg.LakeMaxHeight {
		return 0
	}
	n := g.lake.sample2(x, y)
	depth := int(math.Floor((n - 0.5) * 4 * float64(g.cfg.LakeMaxDepth)))
	if depth < g.cfg.MinLakeDepth {
		return 0
	}
	if depth > g.cfg.LakeMaxDepth {
		depth = g.cfg.LakeMaxDepth
	}
	if depth > height-1 {
		depth = height - 1
	}
	return depth
}

func (g *Generator) BiomeAt(x, y int) Biome {
	return classifyBiome(g.biome.sample2(x, y), g.cfg.DryThreshold, g.cfg.WetThreshold)
}

// column carries every per-column decision of the fill pass.
type column struct {
	height   int
	lake     int
	biome    Biome
	caveZone bool
}

func (g *Generator) columnAt(x, y int) column {
	h := g.TerrainHeight(x, y)
	return column{
		height:   h,
		lake:     g.lakeDepth(x, y, h),
		biome:    g.BiomeAt(x, y),
		caveZone: g.CaveZone(x, y),
	}
}

func index(x, y, z int) int {
	return x + y*world.ChunkEdge + z*world.ChunkEdge*world.ChunkEdge
}

// Generate builds the chunk at coord. The result is clean and bit-identical for
// identical seed, configuration and coordinate.
func (g *Generator) Generate(coord world.ChunkCoord) *world.Chunk {
	voxels := make([]world.Voxel, world.ChunkVolume)
	var columns [world.ChunkEdge * world.ChunkEdge]column

	// Rows touch disjoint parts of voxels and columns.
	var eg errgroup.Group
	eg.SetLimit(g.workers())
	for y := 0; y < world.ChunkEdge; y++ {
		y := y
		eg.Go(func() error {
			for x := 0; x < world.ChunkEdge; x++ {
				abs := coord.Absolute(world.LocalLocation{X: x, Y: y})
				col := g.columnAt(abs.X, abs.Y)
				columns[x+y*world.ChunkEdge] = col
				g.fillColumn(voxels, x, y, abs, col)
			}
			return nil
		})
	}
	_ = eg.Wait()

	g.plantVegetation(coord, voxels, columns[:])

	chunk, err := world.NewChunkFromVoxels(coord, voxels)
	if err != nil {
		panic(err)
	}
	return chunk
}

func (g *Generator) workers() int {
	if g.cfg.Workers > 0 {
		return g.cfg.Workers
	}
	return 1
}

func (g *Generator) fillColumn(voxels []world.Voxel, x, y int, abs world.AbsoluteLocation, col column) {
	p := col.biome.palette()
	h := col.height
	lakeBed := h - col.lake
	caveTop := h - g.cfg.CaveRoof
	carve := col.caveZone && col.lake == 0

	for z := 0; z <= h; z++ {
		var v world.Voxel
		switch {
		case z == 0:
			v = world.Stone
		case col.lake > 0 && z > lakeBed:
			v = world.WaterSource
			if z == h {
				v = p.lakeTop
			}
		case col.lake > 0 && z == lakeBed:
			v = p.lakebed
		case z == h:
			v = p.surface
		case z > h-g.cfg.SurfaceDepth:
			v = p.subsurface
			if col.biome == BiomeWet && g.clay.sample3(abs.X, abs.Y, z) > g.cfg.ClayThreshold {
				v = world.Clay
			}
		case z > h-g.cfg.SurfaceDepth-2:
			v = p.deep
		default:
			v = world.Stone
		}

		if carve && z >= g.cfg.CaveFloor && z <= caveTop {
			s := g.cave.sample3(abs.X, abs.Y, z)
			if s >= g.cfg.CaveWindowLow && s <= g.cfg.CaveWindowHigh {
				v = world.None
			}
		}
		voxels[index(x, y, z)] = v
	}
}

// plantVegetation collects candidates column by column in a fixed order and
// applies them afterwards so the result does not depend on fill scheduling.
func (g *Generator) plantVegetation(coord world.ChunkCoord, voxels []world.Voxel, columns []column) {
	if g.cfg.VegetationChance <= 0 {
		return
	}
	var candidates []placement
	for y := 0; y < world.ChunkEdge; y++ {
		for x := 0; x < world.ChunkEdge; x++ {
			col := columns[x+y*world.ChunkEdge]
			if col.lake > 0 || col.height+1 >= world.ChunkHeight {
				continue
			}
			base := voxels[index(x, y, col.height)]
			if _, ok := vegetationBases[base]; !ok {
				continue
			}
			h := columnHash(g.seed, coord, x, y)
			kind := pickArchetype(h, base, g.cfg.VegetationChance)
			if kind == nil {
				continue
			}
			candidates = append(candidates, placement{
				x:       x,
				y:       y,
				z:       col.height + 1,
				kind:    kind,
				offsets: kind.build(h >> 40),
			})
		}
	}
	applyPlacements(voxels, candidates)
}
