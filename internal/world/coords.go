package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ChunkEdge is the horizontal size of a chunk in voxels.
	ChunkEdge = 32
	// ChunkHeight is the vertical size of a chunk, and of the world.
	ChunkHeight = 64
	// ChunkVolume is the number of voxels held by a chunk.
	ChunkVolume = ChunkEdge * ChunkEdge * ChunkHeight

	// StorageOffset shifts absolute X/Y into the unsigned storage space. It is a
	// multiple of ChunkEdge so chunk borders line up in both spaces.
	StorageOffset = 1 << 24
)

// AbsoluteLocation is a voxel position in world space. Z is vertical.
type AbsoluteLocation struct {
	X int
	Y int
	Z int
}

// StorageLocation is an AbsoluteLocation shifted so every component is
// non-negative. It is used as the key for chunk lookups.
type StorageLocation struct {
	X uint32
	Y uint32
	Z uint32
}

// ChunkCoord identifies a chunk (area) in storage chunk space.
type ChunkCoord struct {
	X uint32
	Y uint32
}

// LocalLocation is a voxel position relative to the owning chunk.
type LocalLocation struct {
	X int
	Y int
	Z int
}

func (l AbsoluteLocation) String() string {
	return fmt.Sprintf("(%d,%d,%d)", l.X, l.Y, l.Z)
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("area(%d,%d)", c.X, c.Y)
}

// InHeight reports whether the location lies inside the vertical world bounds.
func (l AbsoluteLocation) InHeight() bool {
	return l.Z >= 0 && l.Z < ChunkHeight
}

func (l AbsoluteLocation) Add(dx, dy, dz int) AbsoluteLocation {
	return AbsoluteLocation{X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}

func (l AbsoluteLocation) Above() AbsoluteLocation { return l.Add(0, 0, 1) }

func (l AbsoluteLocation) Below() AbsoluteLocation { return l.Add(0, 0, -1) }

// Neighbours returns the six face-adjacent locations: +X, -X, +Y, -Y, +Z, -Z.
func (l AbsoluteLocation) Neighbours() [6]AbsoluteLocation {
	return [6]AbsoluteLocation{
		l.Add(1, 0, 0),
		l.Add(-1, 0, 0),
		l.Add(0, 1, 0),
		l.Add(0, -1, 0),
		l.Add(0, 0, 1),
		l.Add(0, 0, -1),
	}
}

// Lateral returns the four same-height neighbours.
func (l AbsoluteLocation) Lateral() [4]AbsoluteLocation {
	return [4]AbsoluteLocation{
		l.Add(1, 0, 0),
		l.Add(-1, 0, 0),
		l.Add(0, 1, 0),
		l.Add(0, -1, 0),
	}
}

// Storage converts to the offset-encoded storage space.
func (l AbsoluteLocation) Storage() StorageLocation {
	return StorageLocation{
		X: uint32(int64(l.X) + StorageOffset),
		Y: uint32(int64(l.Y) + StorageOffset),
		Z: uint32(l.Z),
	}
}

// Vec returns the location's minimum corner as a vector.
func (l AbsoluteLocation) Vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(l.X), float64(l.Y), float64(l.Z)}
}

// Absolute converts back to world space.
func (s StorageLocation) Absolute() AbsoluteLocation {
	return AbsoluteLocation{
		X: int(int64(s.X) - StorageOffset),
		Y: int(int64(s.Y) - StorageOffset),
		Z: int(s.Z),
	}
}

// Chunk returns the coordinate of the chunk containing the location.
func (s StorageLocation) Chunk() ChunkCoord {
	return ChunkCoord{X: s.X / ChunkEdge, Y: s.Y / ChunkEdge}
}

// Local returns the location relative to its chunk.
func (s StorageLocation) Local() LocalLocation {
	return LocalLocation{
		X: int(s.X % ChunkEdge),
		Y: int(s.Y % ChunkEdge),
		Z: int(s.Z),
	}
}

// Origin returns the storage location of the chunk's (0,0,0) voxel.
func (c ChunkCoord) Origin() StorageLocation {
	return StorageLocation{X: c.X * ChunkEdge, Y: c.Y * ChunkEdge}
}

// Storage returns the storage location of a voxel inside the chunk.
func (c ChunkCoord) Storage(local LocalLocation) StorageLocation {
	return StorageLocation{
		X: c.X*ChunkEdge + uint32(local.X),
		Y: c.Y*ChunkEdge + uint32(local.Y),
		Z: uint32(local.Z),
	}
}

// Absolute returns the world location of a voxel inside the chunk.
func (c ChunkCoord) Absolute(local LocalLocation) AbsoluteLocation {
	return c.Storage(local).Absolute()
}

// ChunkCoordOf returns the chunk containing the location.
func ChunkCoordOf(l AbsoluteLocation) ChunkCoord {
	return l.Storage().Chunk()
}

// NewLocalLocation validates chunk-local coordinates.
func NewLocalLocation(x, y, z int) (LocalLocation, bool) {
	if x < 0 || y < 0 || z < 0 || x >= ChunkEdge || y >= ChunkEdge || z >= ChunkHeight {
		return LocalLocation{}, false
	}
	return LocalLocation{X: x, Y: y, Z: z}, true
}

func (l LocalLocation) valid() bool {
	return l.X >= 0 && l.Y >= 0 && l.Z >= 0 && l.X < ChunkEdge && l.Y < ChunkEdge && l.Z < ChunkHeight
}

// LocationFromPosition rounds a floating point world position to the nearest
// voxel and clamps Z into the world height.
func LocationFromPosition(pos mgl64.Vec3) AbsoluteLocation {
	z := int(math.Round(pos.Z()))
	if z < 0 {
		z = 0
	}
	if z >= ChunkHeight {
		z = ChunkHeight - 1
	}
	return AbsoluteLocation{
		X: int(math.Round(pos.X())),
		Y: int(math.Round(pos.Y())),
		Z: z,
	}
}

// RequiredAreas lists the chunks within radius (in chunks, square) of the
// chunk containing center, nearest rings first.
func RequiredAreas(center AbsoluteLocation, radius int) []ChunkCoord {
	if radius < 0 {
		radius = 0
	}
	origin := ChunkCoordOf(center)
	out := make([]ChunkCoord, 0, (2*radius+1)*(2*radius+1))
	for ring := 0; ring <= radius; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dy := -ring; dy <= ring; dy++ {
				if absInt(dx) != ring && absInt(dy) != ring {
					continue
				}
				out = append(out, ChunkCoord{
					X: uint32(int64(origin.X) + int64(dx)),
					Y: uint32(int64(origin.Y) + int64(dy)),
				})
			}
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
