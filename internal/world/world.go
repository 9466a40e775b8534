package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Loader supplies chunks to a World. Implementations may load in the
// background, but results are only handed over through DrainLoaded so the
// World itself never needs locking.
type Loader interface {
	// Load returns the chunk for coord, loading or generating it synchronously.
	Load(coord ChunkCoord) *Chunk
	// BatchLoad schedules background loads, skipping coordinates in flight.
	BatchLoad(coords []ChunkCoord)
	// DrainLoaded takes every finished background load.
	DrainLoaded() []*Chunk
	// LoadAllBlocking loads coords in parallel and waits for all of them.
	LoadAllBlocking(ctx context.Context, coords []ChunkCoord) ([]*Chunk, error)
	// Save persists a chunk synchronously.
	Save(c *Chunk) error
	// SaveAsync persists a chunk in the background.
	SaveAsync(c *Chunk)
}

// World owns the loaded chunks of one named world. It is not safe for
// concurrent use; a single goroutine drives it.
type World struct {
	name     string
	chunks   map[ChunkCoord]*Chunk
	loader   Loader
	required map[ChunkCoord]struct{}
	log      *slog.Logger
}

func New(name string, loader Loader, logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		name:   name,
		chunks: make(map[ChunkCoord]*Chunk),
		loader: loader,
		log:    logger.With("world", name),
	}
}

func (w *World) Name() string { return w.name }

// LoadArea returns the chunk for coord, loading it synchronously when absent.
func (w *World) LoadArea(coord ChunkCoord) *Chunk {
	if c, ok := w.chunks[coord]; ok {
		return c
	}
	c := w.loader.Load(coord)
	w.chunks[coord] = c
	return c
}

// Chunk returns a loaded chunk without triggering a load.
func (w *World) Chunk(coord ChunkCoord) (*Chunk, bool) {
	c, ok := w.chunks[coord]
	return c, ok
}

// Get returns the voxel at loc, loading its chunk if necessary. Locations
// outside the world height read as None.
func (w *World) Get(loc AbsoluteLocation) Voxel {
	if !loc.InHeight() {
		return None
	}
	s := loc.Storage()
	return w.LoadArea(s.Chunk()).Get(s.Local())
}

// Set writes the voxel at loc, loading its chunk if necessary. It reports false
// when loc lies outside the world height.
func (w *World) Set(loc AbsoluteLocation, v Voxel) bool {
	if !loc.InHeight() {
		return false
	}
	s := loc.Storage()
	w.LoadArea(s.Chunk()).Set(s.Local(), v)
	return true
}

// GetWithoutLoading returns the voxel at loc only when its chunk is loaded and
// loc lies inside the world height.
func (w *World) GetWithoutLoading(loc AbsoluteLocation) (Voxel, bool) {
	if !loc.InHeight() {
		return None, false
	}
	s := loc.Storage()
	c, ok := w.chunks[s.Chunk()]
	if !ok {
		return None, false
	}
	return c.Get(s.Local()), true
}

// SetWithoutLoading writes the voxel at loc only when its chunk is loaded.
func (w *World) SetWithoutLoading(loc AbsoluteLocation, v Voxel) bool {
	if !loc.InHeight() {
		return false
	}
	s := loc.Storage()
	c, ok := w.chunks[s.Chunk()]
	if !ok {
		return false
	}
	c.Set(s.Local(), v)
	return true
}

// SampleHeight returns the cached column height at world x, y.
func (w *World) SampleHeight(x, y int) int {
	s := AbsoluteLocation{X: x, Y: y}.Storage()
	local := s.Local()
	return w.LoadArea(s.Chunk()).SampleHeight(local.X, local.Y)
}

func (w *World) IsLoaded(coord ChunkCoord) bool {
	_, ok := w.chunks[coord]
	return ok
}

// LoadedAreas lists the loaded chunk coordinates in ascending order.
func (w *World) LoadedAreas() []ChunkCoord {
	out := make([]ChunkCoord, 0, len(w.chunks))
	for coord := range w.chunks {
		out = append(out, coord)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// RetainStats summarises one RetainAreas call.
type RetainStats struct {
	Merged    int
	Discarded int
	Requested int
	Evicted   int
	Saved     int
}

// RetainAreas converges the loaded set towards required: finished background
// loads are merged, absent coordinates are scheduled and chunks no longer
// required are evicted, dirty ones being saved in the background.
func (w *World) RetainAreas(required []ChunkCoord) RetainStats {
	var stats RetainStats
	w.required = make(map[ChunkCoord]struct{}, len(required))
	for _, coord := range required {
		w.required[coord] = struct{}{}
	}

	for _, c := range w.loader.DrainLoaded() {
		_, want := w.required[c.Coord]
		_, have := w.chunks[c.Coord]
		if !want || have {
			stats.Discarded++
			continue
		}
		w.chunks[c.Coord] = c
		stats.Merged++
	}

	var missing []ChunkCoord
	for _, coord := range required {
		if _, ok := w.chunks[coord]; !ok {
			missing = append(missing, coord)
		}
	}
	if len(missing) > 0 {
		w.loader.BatchLoad(missing)
		stats.Requested = len(missing)
	}

	for coord, c := range w.chunks {
		if _, ok := w.required[coord]; ok {
			continue
		}
		delete(w.chunks, coord)
		stats.Evicted++
		if c.Dirty() {
			w.loader.SaveAsync(c)
			stats.Saved++
		}
	}
	if stats.Merged > 0 || stats.Evicted > 0 {
		w.log.Debug("retained areas", "merged", stats.Merged, "evicted", stats.Evicted, "requested", stats.Requested, "loaded", len(w.chunks))
	}
	return stats
}

// LoadAllBlocking loads every absent coordinate in parallel and waits.
func (w *World) LoadAllBlocking(ctx context.Context, coords []ChunkCoord) error {
	var missing []ChunkCoord
	seen := make(map[ChunkCoord]struct{}, len(coords))
	for _, coord := range coords {
		if _, ok := w.chunks[coord]; ok {
			continue
		}
		if _, ok := seen[coord]; ok {
			continue
		}
		seen[coord] = struct{}{}
		missing = append(missing, coord)
	}
	if len(missing) == 0 {
		return nil
	}
	loaded, err := w.loader.LoadAllBlocking(ctx, missing)
	if err != nil {
		return fmt.Errorf("load %d areas: %w", len(missing), err)
	}
	for _, c := range loaded {
		if _, ok := w.chunks[c.Coord]; !ok {
			w.chunks[c.Coord] = c
		}
	}
	return nil
}

// SaveAllBlocking synchronously persists every dirty loaded chunk. Chunks that
// fail to save stay dirty.
func (w *World) SaveAllBlocking() error {
	var errs []error
	saved := 0
	for _, coord := range w.LoadedAreas() {
		c := w.chunks[coord]
		if !c.Dirty() {
			continue
		}
		if err := w.loader.Save(c); err != nil {
			errs = append(errs, fmt.Errorf("save %v: %w", coord, err))
			continue
		}
		c.MarkClean()
		saved++
	}
	w.log.Info("saved world", "chunks", saved, "failed", len(errs))
	return errors.Join(errs...)
}
