package world

import "fmt"

// Voxel enumerates every block kind the world can hold. The zero value is None.
type Voxel uint8

const (
	None Voxel = iota
	Stone
	Dirt
	Grass
	Sand
	Sandstone
	Clay
	Gravel
	Snow
	Ice
	Wood
	Leaves
	Cactus
	TallGrass
	Shrub
	Explosive
	Water4
	Water3
	Water2
	Water1
	WaterDown
	WaterSource

	voxelCount
)

// Voxels are persisted as single bytes and classified through bitsets; the
// enumeration must stay below 32 variants. This fails to compile otherwise.
var _ [32 - voxelCount]struct{}

type voxelFlags uint8

const (
	flagTransparent voxelFlags = 1 << iota
	flagGranular
	flagWater
	flagPartial
	flagPlant
)

var voxelInfo = [voxelCount]struct {
	name  string
	flags voxelFlags
}{
	None:        {"none", flagTransparent},
	Stone:       {"stone", 0},
	Dirt:        {"dirt", flagGranular},
	Grass:       {"grass", flagGranular},
	Sand:        {"sand", flagGranular},
	Sandstone:   {"sandstone", 0},
	Clay:        {"clay", 0},
	Gravel:      {"gravel", flagGranular},
	Snow:        {"snow", flagGranular},
	Ice:         {"ice", 0},
	Wood:        {"wood", 0},
	Leaves:      {"leaves", flagTransparent},
	Cactus:      {"cactus", 0},
	TallGrass:   {"tall_grass", flagTransparent | flagPartial | flagPlant},
	Shrub:       {"shrub", flagTransparent | flagPartial | flagPlant},
	Explosive:   {"explosive", 0},
	Water4:      {"water_4", flagTransparent | flagWater | flagPartial},
	Water3:      {"water_3", flagTransparent | flagWater | flagPartial},
	Water2:      {"water_2", flagTransparent | flagWater | flagPartial},
	Water1:      {"water_1", flagTransparent | flagWater | flagPartial},
	WaterDown:   {"water_down", flagTransparent | flagWater},
	WaterSource: {"water_source", flagTransparent | flagWater},
}

// ParseVoxel validates a persisted voxel byte.
func ParseVoxel(b byte) (Voxel, error) {
	if b >= byte(voxelCount) {
		return None, fmt.Errorf("unknown voxel id %d", b)
	}
	return Voxel(b), nil
}

// AllVoxels lists every variant in id order.
func AllVoxels() []Voxel {
	out := make([]Voxel, 0, voxelCount)
	for v := None; v < voxelCount; v++ {
		out = append(out, v)
	}
	return out
}

func (v Voxel) String() string {
	if v >= voxelCount {
		return fmt.Sprintf("voxel(%d)", uint8(v))
	}
	return voxelInfo[v].name
}

func (v Voxel) has(f voxelFlags) bool {
	if v >= voxelCount {
		return false
	}
	return voxelInfo[v].flags&f != 0
}

// Transparent voxels do not count towards a column's height.
func (v Voxel) Transparent() bool { return v.has(flagTransparent) }

// Granular voxels fall when nothing supports them.
func (v Voxel) Granular() bool { return v.has(flagGranular) }

func (v Voxel) IsWater() bool { return v.has(flagWater) }

// PartialHeight voxels do not fill their whole cell.
func (v Voxel) PartialHeight() bool { return v.has(flagPartial) }

func (v Voxel) Plant() bool { return v.has(flagPlant) }

// Solid voxels block falling blocks and charges.
func (v Voxel) Solid() bool {
	return v != None && !v.IsWater() && !v.Plant()
}

// WaterLevel orders water voxels: 0 for anything that is not water, 1 for
// Water4 up to 6 for WaterSource.
func (v Voxel) WaterLevel() int {
	switch v {
	case Water4:
		return 1
	case Water3:
		return 2
	case Water2:
		return 3
	case Water1:
		return 4
	case WaterDown:
		return 5
	case WaterSource:
		return 6
	default:
		return 0
	}
}

// WaterOfLevel is the inverse of WaterLevel. Levels outside 1..6 map to None.
func WaterOfLevel(level int) Voxel {
	switch level {
	case 1:
		return Water4
	case 2:
		return Water3
	case 3:
		return Water2
	case 4:
		return Water1
	case 5:
		return WaterDown
	case 6:
		return WaterSource
	default:
		return None
	}
}
