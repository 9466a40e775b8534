package world

import "testing"

func local(x, y, z int) LocalLocation {
	l, ok := NewLocalLocation(x, y, z)
	if !ok {
		panic("bad local location in test")
	}
	return l
}

func assertHeightsConsistent(t *testing.T, c *Chunk) {
	t.Helper()
	for y := 0; y < ChunkEdge; y++ {
		for x := 0; x < ChunkEdge; x++ {
			want := ChunkHeight
			for z := ChunkHeight - 1; z >= 0; z-- {
				if !c.Get(local(x, y, z)).Transparent() {
					want = z
					break
				}
			}
			if got := c.SampleHeight(x, y); got != want {
				t.Fatalf("column (%d,%d): cached height %d, scanned %d", x, y, got, want)
			}
		}
	}
}

func TestChunkSetMaintainsHeight(t *testing.T) {
	c := NewChunk(ChunkCoord{X: 1, Y: 2})
	if c.Dirty() {
		t.Fatalf("new chunk should be clean")
	}
	if got := c.SampleHeight(3, 4); got != ChunkHeight {
		t.Fatalf("empty column height = %d, want %d", got, ChunkHeight)
	}

	c.Set(local(3, 4, 10), Stone)
	c.Set(local(3, 4, 20), Dirt)
	c.Set(local(3, 4, 25), Leaves)
	if got := c.SampleHeight(3, 4); got != 20 {
		t.Fatalf("height = %d, want 20", got)
	}
	if !c.Dirty() {
		t.Fatalf("Set should mark the chunk dirty")
	}

	c.Set(local(3, 4, 20), None)
	if got := c.SampleHeight(3, 4); got != 10 {
		t.Fatalf("height after clearing top = %d, want 10", got)
	}
	c.Set(local(3, 4, 10), WaterSource)
	if got := c.SampleHeight(3, 4); got != ChunkHeight {
		t.Fatalf("height with only transparent voxels = %d, want %d", got, ChunkHeight)
	}
	assertHeightsConsistent(t, c)
}

func TestChunkRecomputeMatchesIncremental(t *testing.T) {
	c := NewChunk(ChunkCoord{})
	for i := 0; i < 500; i++ {
		x := (i * 7) % ChunkEdge
		y := (i * 13) % ChunkEdge
		z := (i * 29) % ChunkHeight
		v := Voxel(i % int(voxelCount))
		c.Set(local(x, y, z), v)
	}
	assertHeightsConsistent(t, c)

	rebuilt, err := NewChunkFromVoxels(c.Coord, c.Voxels())
	if err != nil {
		t.Fatalf("NewChunkFromVoxels: %v", err)
	}
	if rebuilt.Dirty() {
		t.Fatalf("decoded chunk should be clean")
	}
	assertHeightsConsistent(t, rebuilt)
	if rebuilt.heights != c.heights {
		t.Fatalf("rebuilt heights differ from incremental heights")
	}
}

func TestNewChunkFromVoxelsRejectsWrongSize(t *testing.T) {
	if _, err := NewChunkFromVoxels(ChunkCoord{}, make([]Voxel, 10)); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestChunkPanicsOnInvalidLocal(t *testing.T) {
	c := NewChunk(ChunkCoord{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out of range local location")
		}
	}()
	c.Get(LocalLocation{X: ChunkEdge, Y: 0, Z: 0})
}

func TestHasNonEmptyNeighbours(t *testing.T) {
	c := NewChunk(ChunkCoord{})
	c.Fill(local(0, 0, 0), local(4, 4, 4), Stone)
	if !c.HasNonEmptyNeighbours(local(2, 2, 2)) {
		t.Fatalf("buried voxel should report non-empty neighbours")
	}
	if c.HasNonEmptyNeighbours(local(2, 2, 4)) {
		t.Fatalf("surface voxel has an empty neighbour above")
	}
	if c.HasNonEmptyNeighbours(local(0, 2, 2)) {
		t.Fatalf("boundary voxels must report false")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewChunk(ChunkCoord{X: 9})
	c.Set(local(1, 1, 1), Sand)
	cp := c.Clone()
	cp.Set(local(1, 1, 1), None)
	if c.Get(local(1, 1, 1)) != Sand {
		t.Fatalf("clone shares storage with original")
	}
	if cp.Coord != c.Coord {
		t.Fatalf("clone coord mismatch")
	}
}
