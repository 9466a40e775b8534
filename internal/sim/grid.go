package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelworld/internal/world"
)

// Grid is the voxel access the simulators need. Cells whose chunk is not
// loaded report ok=false and are treated as blocked; simulators never trigger
// loads. *world.World satisfies it.
type Grid interface {
	GetWithoutLoading(loc world.AbsoluteLocation) (world.Voxel, bool)
	SetWithoutLoading(loc world.AbsoluteLocation, v world.Voxel) bool
}

// write sets loc to v and describes the mutation. It reports false when the
// cell is unloaded or already holds v.
func write(g Grid, loc world.AbsoluteLocation, v world.Voxel, reason world.ChangeReason) (world.Change, bool) {
	before, ok := g.GetWithoutLoading(loc)
	if !ok || before == v {
		return world.Change{}, false
	}
	if !g.SetWithoutLoading(loc, v) {
		return world.Change{}, false
	}
	return world.Change{Loc: loc, Before: before, After: v, Reason: reason}, true
}

// locationSet is an insertion-ordered set of locations.
type locationSet struct {
	index map[world.AbsoluteLocation]struct{}
	items []world.AbsoluteLocation
}

func (s *locationSet) add(loc world.AbsoluteLocation) {
	if s.index == nil {
		s.index = make(map[world.AbsoluteLocation]struct{})
	}
	if _, ok := s.index[loc]; ok {
		return
	}
	s.index[loc] = struct{}{}
	s.items = append(s.items, loc)
}

func (s *locationSet) len() int { return len(s.items) }

// take returns the items and empties the set.
func (s *locationSet) take() []world.AbsoluteLocation {
	out := s.items
	s.items = nil
	s.index = nil
	return out
}

// body is a point mass moving straight down a voxel column.
type body struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// cell is the voxel the body currently occupies.
func (b *body) cell() world.AbsoluteLocation {
	return world.AbsoluteLocation{
		X: int(math.Floor(b.Position.X())),
		Y: int(math.Floor(b.Position.Y())),
		Z: int(math.Floor(b.Position.Z())),
	}
}

type fallResult int

const (
	fallMoving fallResult = iota
	fallLanded
	fallLost
	fallFrozen
)

// fall integrates one step of gravity and stops on the first solid cell the
// body would enter. Landed bodies rest on top of the obstruction with zero
// velocity; bodies leaving the bottom of the world are lost; bodies in
// unloaded columns do not move.
func (b *body) fall(g Grid, gravity, terminal float64, seconds float64) (fallResult, world.AbsoluteLocation) {
	from := b.cell()
	if _, ok := g.GetWithoutLoading(from); !ok && from.InHeight() {
		return fallFrozen, from
	}
	vz := b.Velocity.Z() - gravity*seconds
	if vz < -terminal {
		vz = -terminal
	}
	b.Velocity = mgl64.Vec3{0, 0, vz}
	next := b.Position.Add(b.Velocity.Mul(seconds))
	target := int(math.Floor(next.Z()))

	for z := from.Z - 1; z >= target; z-- {
		if z < 0 {
			b.Position = next
			return fallLost, from
		}
		loc := world.AbsoluteLocation{X: from.X, Y: from.Y, Z: z}
		v, ok := g.GetWithoutLoading(loc)
		if !ok || v.Solid() {
			rest := loc.Above()
			b.Position = rest.Vec()
			b.Velocity = mgl64.Vec3{}
			return fallLanded, rest
		}
	}
	b.Position = next
	return fallMoving, b.cell()
}

// supported reports whether the cell below the body blocks it.
func (b *body) supported(g Grid) bool {
	below := b.cell().Below()
	if below.Z < 0 {
		return false
	}
	v, ok := g.GetWithoutLoading(below)
	return !ok || v.Solid()
}
