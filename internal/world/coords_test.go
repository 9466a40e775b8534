package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestStorageRoundTrip(t *testing.T) {
	cases := []AbsoluteLocation{
		{X: 0, Y: 0, Z: 0},
		{X: -1, Y: -1, Z: 5},
		{X: 31, Y: 32, Z: 63},
		{X: -33, Y: 1000, Z: 10},
		{X: -StorageOffset, Y: StorageOffset - 1, Z: 1},
	}
	for _, loc := range cases {
		got := loc.Storage().Absolute()
		if got != loc {
			t.Fatalf("round trip %v: got %v", loc, got)
		}
	}
}

func TestChunkAndLocalDerivation(t *testing.T) {
	loc := AbsoluteLocation{X: -1, Y: 32, Z: 7}
	s := loc.Storage()
	coord := s.Chunk()
	if coord.X != StorageOffset/ChunkEdge-1 || coord.Y != StorageOffset/ChunkEdge+1 {
		t.Fatalf("unexpected chunk coord %v", coord)
	}
	local := s.Local()
	if local != (LocalLocation{X: 31, Y: 0, Z: 7}) {
		t.Fatalf("unexpected local %v", local)
	}
	if back := coord.Absolute(local); back != loc {
		t.Fatalf("chunk absolute: got %v want %v", back, loc)
	}
	if ChunkCoordOf(loc) != coord {
		t.Fatalf("ChunkCoordOf mismatch")
	}
	origin := ChunkCoordOf(AbsoluteLocation{}).Origin().Absolute()
	if origin != (AbsoluteLocation{}) {
		t.Fatalf("origin of chunk containing 0,0 should be 0,0,0, got %v", origin)
	}
}

func TestNewLocalLocationValidates(t *testing.T) {
	if _, ok := NewLocalLocation(0, 0, 0); !ok {
		t.Fatalf("expected origin to be valid")
	}
	if _, ok := NewLocalLocation(ChunkEdge-1, ChunkEdge-1, ChunkHeight-1); !ok {
		t.Fatalf("expected far corner to be valid")
	}
	for _, c := range [][3]int{{-1, 0, 0}, {ChunkEdge, 0, 0}, {0, ChunkEdge, 0}, {0, 0, ChunkHeight}, {0, 0, -1}} {
		if _, ok := NewLocalLocation(c[0], c[1], c[2]); ok {
			t.Fatalf("expected %v to be rejected", c)
		}
	}
}

func TestLocationFromPositionRoundsAndClamps(t *testing.T) {
	cases := []struct {
		pos  mgl64.Vec3
		want AbsoluteLocation
	}{
		{mgl64.Vec3{1.4, -2.6, 3.5}, AbsoluteLocation{X: 1, Y: -3, Z: 4}},
		{mgl64.Vec3{0, 0, -10}, AbsoluteLocation{X: 0, Y: 0, Z: 0}},
		{mgl64.Vec3{0, 0, 500}, AbsoluteLocation{X: 0, Y: 0, Z: ChunkHeight - 1}},
	}
	for _, tc := range cases {
		if got := LocationFromPosition(tc.pos); got != tc.want {
			t.Fatalf("LocationFromPosition(%v) = %v, want %v", tc.pos, got, tc.want)
		}
	}
}

func TestNeighboursAreFaceAdjacent(t *testing.T) {
	loc := AbsoluteLocation{X: 3, Y: -4, Z: 10}
	seen := make(map[AbsoluteLocation]struct{})
	for _, n := range loc.Neighbours() {
		d := absInt(n.X-loc.X) + absInt(n.Y-loc.Y) + absInt(n.Z-loc.Z)
		if d != 1 {
			t.Fatalf("neighbour %v is not face adjacent to %v", n, loc)
		}
		seen[n] = struct{}{}
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 distinct neighbours, got %d", len(seen))
	}
	if loc.Above() != loc.Add(0, 0, 1) || loc.Below() != loc.Add(0, 0, -1) {
		t.Fatalf("Above/Below mismatch")
	}
}

func TestRequiredAreasRingOrder(t *testing.T) {
	center := AbsoluteLocation{X: 40, Y: -5, Z: 20}
	areas := RequiredAreas(center, 2)
	if len(areas) != 25 {
		t.Fatalf("expected 25 areas, got %d", len(areas))
	}
	if areas[0] != ChunkCoordOf(center) {
		t.Fatalf("expected centre chunk first, got %v", areas[0])
	}
	seen := make(map[ChunkCoord]struct{})
	for _, a := range areas {
		if _, dup := seen[a]; dup {
			t.Fatalf("duplicate area %v", a)
		}
		seen[a] = struct{}{}
	}
}
