package world

import "fmt"

const columnCount = ChunkEdge * ChunkEdge

// Chunk stores a dense voxel grid for one area along with a per-column height
// cache used for surface queries.
type Chunk struct {
	Coord   ChunkCoord
	voxels  [ChunkVolume]Voxel
	heights [columnCount]uint8
	dirty   bool
}

// NewChunk returns an empty chunk. Every column reports ChunkHeight until a
// non-transparent voxel is written.
func NewChunk(coord ChunkCoord) *Chunk {
	c := &Chunk{Coord: coord}
	for i := range c.heights {
		c.heights[i] = ChunkHeight
	}
	return c
}

// NewChunkFromVoxels builds a clean chunk from a decoded voxel array.
func NewChunkFromVoxels(coord ChunkCoord, voxels []Voxel) (*Chunk, error) {
	if len(voxels) != ChunkVolume {
		return nil, fmt.Errorf("chunk %v: expected %d voxels, got %d", coord, ChunkVolume, len(voxels))
	}
	c := &Chunk{Coord: coord}
	copy(c.voxels[:], voxels)
	c.RecomputeHeights()
	return c, nil
}

func voxelIndex(x, y, z int) int {
	return x + y*ChunkEdge + z*columnCount
}

func (c *Chunk) mustLocal(l LocalLocation) int {
	if !l.valid() {
		panic(fmt.Sprintf("chunk %v: local location (%d,%d,%d) out of range", c.Coord, l.X, l.Y, l.Z))
	}
	return voxelIndex(l.X, l.Y, l.Z)
}

func (c *Chunk) Get(l LocalLocation) Voxel {
	return c.voxels[c.mustLocal(l)]
}

// Set writes a voxel, marks the chunk dirty and keeps the column height current.
func (c *Chunk) Set(l LocalLocation, v Voxel) {
	idx := c.mustLocal(l)
	c.voxels[idx] = v
	c.dirty = true

	col := l.X + l.Y*ChunkEdge
	top := int(c.heights[col])
	switch {
	case !v.Transparent() && (top == ChunkHeight || l.Z > top):
		c.heights[col] = uint8(l.Z)
	case v.Transparent() && l.Z == top:
		c.heights[col] = uint8(c.scanColumn(l.X, l.Y, l.Z-1))
	}
}

// SampleHeight returns the z of the top-most non-transparent voxel in the
// column, or ChunkHeight when the column holds none.
func (c *Chunk) SampleHeight(x, y int) int {
	if x < 0 || y < 0 || x >= ChunkEdge || y >= ChunkEdge {
		panic(fmt.Sprintf("chunk %v: column (%d,%d) out of range", c.Coord, x, y))
	}
	return int(c.heights[x+y*ChunkEdge])
}

func (c *Chunk) scanColumn(x, y, from int) int {
	for z := from; z >= 0; z-- {
		if !c.voxels[voxelIndex(x, y, z)].Transparent() {
			return z
		}
	}
	return ChunkHeight
}

// RecomputeHeights rebuilds the height cache from the voxel array.
func (c *Chunk) RecomputeHeights() {
	for y := 0; y < ChunkEdge; y++ {
		for x := 0; x < ChunkEdge; x++ {
			c.heights[x+y*ChunkEdge] = uint8(c.scanColumn(x, y, ChunkHeight-1))
		}
	}
}

// HasNonEmptyNeighbours reports whether all six face neighbours hold
// non-transparent voxels, meaning the voxel is buried. Only interior voxels can
// be decided from the chunk alone; voxels on the chunk boundary report false.
func (c *Chunk) HasNonEmptyNeighbours(l LocalLocation) bool {
	c.mustLocal(l)
	if l.X == 0 || l.Y == 0 || l.Z == 0 ||
		l.X == ChunkEdge-1 || l.Y == ChunkEdge-1 || l.Z == ChunkHeight-1 {
		return false
	}
	offsets := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for _, o := range offsets {
		if c.voxels[voxelIndex(l.X+o[0], l.Y+o[1], l.Z+o[2])].Transparent() {
			return false
		}
	}
	return true
}

func (c *Chunk) Dirty() bool { return c.dirty }

func (c *Chunk) MarkClean() { c.dirty = false }

// MarkDirty forces the chunk to be persisted on the next flush.
func (c *Chunk) MarkDirty() { c.dirty = true }

// Clone returns a deep copy that shares nothing with the receiver.
func (c *Chunk) Clone() *Chunk {
	cp := *c
	return &cp
}

// Voxels exposes the backing array in index order x + y*edge + z*edge*edge.
// Callers must treat it as read-only.
func (c *Chunk) Voxels() []Voxel {
	return c.voxels[:]
}

// Fill writes v into every cell of the inclusive local box and marks the chunk
// dirty once. Heights are recomputed for the touched columns.
func (c *Chunk) Fill(lo, hi LocalLocation, v Voxel) {
	c.mustLocal(lo)
	c.mustLocal(hi)
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				c.voxels[voxelIndex(x, y, z)] = v
			}
		}
	}
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			c.heights[x+y*ChunkEdge] = uint8(c.scanColumn(x, y, ChunkHeight-1))
		}
	}
	c.dirty = true
}

// Count returns how many voxels of the given kind the chunk holds.
func (c *Chunk) Count(v Voxel) int {
	n := 0
	for _, cur := range c.voxels {
		if cur == v {
			n++
		}
	}
	return n
}
