package sim

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelworld/internal/config"
	"voxelworld/internal/world"
)

// FallingBlock is a granular voxel that left the grid and is in free fall.
type FallingBlock struct {
	Voxel world.Voxel
	body
}

// Falling pulls unsupported granular voxels out of the grid, drops them under
// gravity and writes them back where they land.
type Falling struct {
	gravity  float64
	terminal float64
	blocks   []*FallingBlock
	log      *slog.Logger
}

func NewFalling(cfg config.PhysicsConfig, logger *slog.Logger) *Falling {
	if logger == nil {
		logger = slog.Default()
	}
	return &Falling{gravity: cfg.Gravity, terminal: cfg.TerminalSpeed, log: logger}
}

// Blocks returns the blocks currently in flight.
func (f *Falling) Blocks() []FallingBlock {
	out := make([]FallingBlock, 0, len(f.blocks))
	for _, b := range f.blocks {
		out = append(out, *b)
	}
	return out
}

// Spawn adds a block in flight, used when restoring a saved session.
func (f *Falling) Spawn(v world.Voxel, pos, vel mgl64.Vec3) {
	f.blocks = append(f.blocks, &FallingBlock{Voxel: v, body: body{Position: pos, Velocity: vel}})
}

// LocationUpdated checks loc and its neighbours for granular voxels that lost
// their support. A detached voxel frees the cell under the one above it, so
// whole columns come loose one cell at a time through the worklist.
func (f *Falling) LocationUpdated(g Grid, loc world.AbsoluteLocation) []world.Change {
	var changes []world.Change
	queue := make([]world.AbsoluteLocation, 0, 8)
	queue = append(queue, loc)
	for _, n := range loc.Neighbours() {
		queue = append(queue, n)
	}
	visited := make(map[world.AbsoluteLocation]struct{}, len(queue))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}

		v, ok := g.GetWithoutLoading(cur)
		if !ok || !v.Granular() {
			continue
		}
		below, ok := g.GetWithoutLoading(cur.Below())
		if !ok || below != world.None {
			continue
		}
		change, ok := write(g, cur, world.None, world.ReasonCollapse)
		if !ok {
			continue
		}
		changes = append(changes, change)
		f.Spawn(v, cur.Vec(), mgl64.Vec3{})
		queue = append(queue, cur.Above())
	}
	return changes
}

// Tick moves every block and commits the ones that landed.
func (f *Falling) Tick(g Grid, delta time.Duration) []world.Change {
	if len(f.blocks) == 0 {
		return nil
	}
	seconds := delta.Seconds()
	var changes []world.Change
	kept := f.blocks[:0]
	for _, b := range f.blocks {
		result, at := b.fall(g, f.gravity, f.terminal, seconds)
		switch result {
		case fallLost:
			continue
		case fallLanded:
			change, result := settle(g, at, b.Voxel)
			switch result {
			case settleWritten:
				changes = append(changes, change)
				continue
			case settleNoRoom:
				f.log.Debug("falling block found no room", "voxel", b.Voxel, "at", at)
				continue
			}
			// The landing column is not loaded; the block waits there.
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(f.blocks); i++ {
		f.blocks[i] = nil
	}
	f.blocks = kept
	return changes
}

type settleResult int

const (
	settleWritten settleResult = iota
	settleUnloaded
	settleNoRoom
)

// settle writes v at the first non-solid cell at or above at.
func settle(g Grid, at world.AbsoluteLocation, v world.Voxel) (world.Change, settleResult) {
	for loc := at; loc.InHeight(); loc = loc.Above() {
		cur, ok := g.GetWithoutLoading(loc)
		if !ok {
			return world.Change{}, settleUnloaded
		}
		if cur.Solid() {
			continue
		}
		change, ok := write(g, loc, v, world.ReasonCollapse)
		if !ok {
			return world.Change{}, settleNoRoom
		}
		return change, settleWritten
	}
	return world.Change{}, settleNoRoom
}
