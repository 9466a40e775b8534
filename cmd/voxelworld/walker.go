package main

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelworld/internal/world"
)

type heightSampler interface {
	SampleHeight(x, y int) int
}

// walker moves a viewer along a slow spiral, keeping it on the surface.
type walker struct {
	ground heightSampler
	speed  float64
	angle  float64
	pos    mgl64.Vec3
}

func newWalker(ground heightSampler, speed float64) *walker {
	w := &walker{ground: ground, speed: speed}
	w.snap()
	return w
}

func (w *walker) advance(delta time.Duration) {
	dist := w.speed * delta.Seconds()
	w.angle += dist / 200
	heading := mgl64.Vec3{math.Cos(w.angle), math.Sin(w.angle), 0}
	w.pos = w.pos.Add(heading.Mul(dist))
	w.snap()
}

func (w *walker) snap() {
	loc := world.LocationFromPosition(w.pos)
	h := w.ground.SampleHeight(loc.X, loc.Y)
	if h >= world.ChunkHeight-1 {
		h = world.ChunkHeight - 2
	}
	w.pos = mgl64.Vec3{w.pos.X(), w.pos.Y(), float64(h + 1)}
}

func (w *walker) location() world.AbsoluteLocation {
	return world.LocationFromPosition(w.pos)
}
