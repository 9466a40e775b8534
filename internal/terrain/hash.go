package terrain

import (
	"github.com/cespare/xxhash/v2"

	"voxelworld/internal/world"
)

// SeedFromString derives a world seed from a user supplied seed string.
func SeedFromString(s string) int64 {
	return int64(xxhash.Sum64String(s))
}

// mix64 is the splitmix64 finalizer. Every input bit affects every output bit.
func mix64(z uint64) uint64 {
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z
}

// columnHash combines the seed, chunk and local column into one decision
// value. The same inputs always produce the same hash.
func columnHash(seed int64, coord world.ChunkCoord, x, y int) uint64 {
	h := mix64(uint64(seed) + 0x9e3779b97f4a7c15)
	h = mix64(h ^ (uint64(coord.X)<<32 | uint64(coord.Y)))
	h = mix64(h ^ (uint64(uint32(x))<<32 | uint64(uint32(y))))
	return h
}

// deriveSeed gives every noise field its own seed.
func deriveSeed(seed int64, salt uint64) int64 {
	return int64(mix64(uint64(seed) ^ mix64(salt)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
