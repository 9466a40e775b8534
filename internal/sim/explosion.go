package sim

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelworld/internal/config"
	"voxelworld/internal/world"
)

type ChargeState uint8

const (
	Armed ChargeState = iota
	ShortFuse
	Detonated
)

func (s ChargeState) String() string {
	switch s {
	case Armed:
		return "armed"
	case ShortFuse:
		return "short_fuse"
	case Detonated:
		return "detonated"
	default:
		return "unknown"
	}
}

// Charge is a lit explosive. It drops like a falling block but stays a
// simulated body until its fuse runs out.
type Charge struct {
	State ChargeState
	Fuse  time.Duration
	body
}

// Explosions tracks lit charges and detonates them.
type Explosions struct {
	cfg     config.PhysicsConfig
	charges []*Charge
}

func NewExplosions(cfg config.PhysicsConfig) *Explosions {
	return &Explosions{cfg: cfg}
}

// Charges returns the charges that have not detonated yet.
func (e *Explosions) Charges() []Charge {
	out := make([]Charge, 0, len(e.charges))
	for _, c := range e.charges {
		out = append(out, *c)
	}
	return out
}

// Arm lights a charge at pos. It reports false when MaxCharges are already
// burning.
func (e *Explosions) Arm(pos mgl64.Vec3, state ChargeState, fuse time.Duration) bool {
	return e.add(&Charge{State: state, Fuse: fuse, body: body{Position: pos}})
}

// Restore re-adds a charge saved by a previous session.
func (e *Explosions) Restore(c Charge) bool {
	cp := c
	return e.add(&cp)
}

func (e *Explosions) add(c *Charge) bool {
	if len(e.charges) >= e.cfg.MaxCharges || c.State == Detonated {
		return false
	}
	e.charges = append(e.charges, c)
	return true
}

// Ignite turns the explosive voxel at loc into an armed charge with the full
// fuse. Nothing happens when loc holds anything else or the charge cap is hit.
func (e *Explosions) Ignite(g Grid, loc world.AbsoluteLocation) ([]world.Change, bool) {
	v, ok := g.GetWithoutLoading(loc)
	if !ok || v != world.Explosive || len(e.charges) >= e.cfg.MaxCharges {
		return nil, false
	}
	change, ok := write(g, loc, world.None, world.ReasonExplosion)
	if !ok {
		return nil, false
	}
	e.Arm(loc.Vec(), Armed, e.cfg.Fuse.Duration())
	return []world.Change{change}, true
}

// Tick drops unsupported charges, burns their fuses and detonates the expired
// ones. Charges created by a blast start burning on the next tick.
func (e *Explosions) Tick(g Grid, delta time.Duration) []world.Change {
	if len(e.charges) == 0 {
		return nil
	}
	var changes []world.Change
	live := len(e.charges)
	for i := 0; i < live; i++ {
		c := e.charges[i]
		if c.State == Detonated {
			continue
		}
		if !c.supported(g) {
			if result, _ := c.fall(g, e.cfg.Gravity, e.cfg.TerminalSpeed, delta.Seconds()); result == fallLost {
				c.State = Detonated
				continue
			}
		}
		c.Fuse -= delta
		if c.Fuse > 0 {
			continue
		}
		c.State = Detonated
		changes = append(changes, e.detonate(g, c.cell())...)
	}

	kept := e.charges[:0]
	for _, c := range e.charges {
		if c.State != Detonated {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(e.charges); i++ {
		e.charges[i] = nil
	}
	e.charges = kept
	return changes
}

// Detonate clears the blast sphere around center right away.
func (e *Explosions) Detonate(g Grid, center world.AbsoluteLocation) []world.Change {
	return e.detonate(g, center)
}

// detonate clears every solid cell within the blast radius of center. Armed
// charges caught in the blast switch to the short fuse and explosive voxels
// become new short-fuse charges while the cap allows.
func (e *Explosions) detonate(g Grid, center world.AbsoluteLocation) []world.Change {
	radius := e.cfg.ExplosionRadius
	r := int(math.Ceil(radius))
	short := e.cfg.ShortFuse.Duration()
	var changes []world.Change

	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if float64(dx*dx+dy*dy+dz*dz) > radius*radius {
					continue
				}
				loc := center.Add(dx, dy, dz)
				v, ok := g.GetWithoutLoading(loc)
				if !ok || !v.Solid() {
					continue
				}
				change, ok := write(g, loc, world.None, world.ReasonExplosion)
				if !ok {
					continue
				}
				changes = append(changes, change)
				if v == world.Explosive {
					e.Arm(loc.Vec(), ShortFuse, short)
				}
			}
		}
	}

	for _, c := range e.charges {
		if c.State != Armed {
			continue
		}
		if c.Position.Sub(center.Vec()).Len() <= radius {
			c.State = ShortFuse
			if c.Fuse > short {
				c.Fuse = short
			}
		}
	}
	return changes
}
