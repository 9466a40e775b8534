package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"voxelworld/internal/config"
	"voxelworld/internal/sim"
	"voxelworld/internal/storage"
	"voxelworld/internal/terrain"
	"voxelworld/internal/world"
)

const levelDBDir = "areas.ldb"

// Engine is an open world session: the loaded world, its storage and the
// simulators running over it. Every method must be called from the goroutine
// that owns the engine.
type Engine struct {
	cfg *config.Config
	log *slog.Logger
	dir string

	meta     storage.WorldMeta
	registry *storage.Registry
	backend  storage.Backend
	codec    *storage.Codec
	loader   *storage.AreaLoader
	gen      *terrain.Generator
	world    *world.World

	water   *sim.Water
	falling *sim.Falling
	blasts  *sim.Explosions

	changes   *world.ChangeLog
	updates   []world.AbsoluteLocation
	worldTime time.Duration
	closed    bool
}

// TickStats summarises one Tick.
type TickStats struct {
	Retain  world.RetainStats
	Changes int
	Falling int
	Charges int
}

// Open creates the named world below cfg.Storage.Root, or reopens it. The seed
// string only applies to new worlds; an existing world keeps its own seed.
func Open(cfg *config.Config, name, seed string, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := storage.ValidateWorldName(name); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("world", name)

	dir := storage.WorldDir(cfg.Storage.Root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create world directory: %w", err)
	}
	meta, err := openMeta(dir, name, seed, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		log:       log,
		dir:       dir,
		meta:      meta,
		changes:   world.NewChangeLog(),
		worldTime: meta.WorldTime,
	}
	if err := e.openStorage(); err != nil {
		_ = e.closeStorage()
		return nil, err
	}

	e.gen = terrain.NewGenerator(meta.Seed, cfg.Terrain)
	store := storage.NewStore(e.backend, e.codec, e.gen, log)
	e.loader = storage.NewAreaLoader(store, cfg.Storage.Workers, log)
	e.world = world.New(name, e.loader, logger)

	e.water = sim.NewWater(cfg.World.WaterStep.Duration())
	e.falling = sim.NewFalling(cfg.Physics, log)
	e.blasts = sim.NewExplosions(cfg.Physics)
	e.restorePhysics()

	log.Info("world opened", "id", meta.ID, "seed", meta.Seed, "backend", cfg.Storage.Backend, "world_time", e.worldTime)
	return e, nil
}

func openMeta(dir, name, seed string, log *slog.Logger) (storage.WorldMeta, error) {
	meta, err := storage.ReadMeta(dir)
	switch {
	case err == nil:
		if seed != "" && seed != meta.SeedString {
			log.Warn("ignoring seed for existing world", "requested", seed, "seed", meta.SeedString)
		}
		return meta, nil
	case !errors.Is(err, storage.ErrNotFound):
		return storage.WorldMeta{}, fmt.Errorf("open world %q: %w", name, err)
	}
	meta = storage.WorldMeta{
		ID:         uuid.New(),
		Name:       name,
		SeedString: seed,
		Seed:       terrain.SeedFromString(seed),
		CreatedAt:  time.Now().UTC(),
	}
	if err := storage.WriteMeta(dir, meta); err != nil {
		return storage.WorldMeta{}, fmt.Errorf("create world %q: %w", name, err)
	}
	log.Info("world created", "id", meta.ID, "seed", meta.SeedString)
	return meta, nil
}

func (e *Engine) openStorage() error {
	var err error
	e.registry, err = storage.OpenRegistry(e.cfg.Storage.Root)
	if err != nil {
		return err
	}
	if err := e.registry.Register(context.Background(), e.meta, time.Now().UTC()); err != nil {
		return err
	}

	switch e.cfg.Storage.Backend {
	case config.BackendLevelDB:
		e.backend, err = storage.OpenLevelDBBackend(filepath.Join(e.dir, levelDBDir))
	default:
		e.backend, err = storage.NewFileBackend(e.dir)
	}
	if err != nil {
		return err
	}
	e.codec, err = storage.NewCodec(e.cfg.Storage.ZstdLevel)
	return err
}

func (e *Engine) closeStorage() error {
	var errs []error
	if e.backend != nil {
		errs = append(errs, e.backend.Close())
	}
	if e.codec != nil {
		e.codec.Close()
	}
	if e.registry != nil {
		errs = append(errs, e.registry.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) restorePhysics() {
	state, err := storage.ReadPhysics(e.dir)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Warn("physics state unreadable, starting fresh", "err", err)
		return
	}
	e.worldTime = state.WorldTime
	e.water.Restore(state.Water, state.WaterLag)
	for _, f := range state.Falling {
		e.falling.Spawn(f.Voxel, f.Position, f.Velocity)
	}
	for _, r := range state.Charges {
		c := sim.Charge{State: sim.ChargeState(r.State), Fuse: r.Fuse}
		c.Position = r.Position
		c.Velocity = r.Velocity
		e.blasts.Restore(c)
	}
	e.log.Debug("physics restored", "falling", len(state.Falling), "water", len(state.Water), "charges", len(state.Charges))
}

func (e *Engine) physicsState() storage.PhysicsState {
	pending, lag := e.water.Snapshot()
	state := storage.PhysicsState{WorldTime: e.worldTime, WaterLag: lag, Water: pending}
	for _, b := range e.falling.Blocks() {
		state.Falling = append(state.Falling, storage.FallingRecord{Voxel: b.Voxel, Position: b.Position, Velocity: b.Velocity})
	}
	for _, c := range e.blasts.Charges() {
		state.Charges = append(state.Charges, storage.ChargeRecord{State: uint8(c.State), Position: c.Position, Velocity: c.Velocity, Fuse: c.Fuse})
	}
	return state
}

func (e *Engine) Meta() storage.WorldMeta { return e.meta }

// World exposes the underlying world for read access by collaborators.
func (e *Engine) World() *world.World { return e.world }

func (e *Engine) WorldTime() time.Duration { return e.worldTime }

// Enter synchronously loads every area within the view radius of center.
func (e *Engine) Enter(ctx context.Context, center world.AbsoluteLocation) error {
	return e.world.LoadAllBlocking(ctx, world.RequiredAreas(center, e.cfg.World.ViewRadius))
}

// Tick advances the session by delta: loaded areas converge towards required,
// then explosions, falling blocks and water run in that order.
func (e *Engine) Tick(delta time.Duration, required []world.ChunkCoord) TickStats {
	var stats TickStats
	stats.Retain = e.world.RetainAreas(required)
	e.worldTime += delta

	before := e.changes.Len()
	e.apply(e.blasts.Tick(e.world, delta))
	e.apply(e.falling.Tick(e.world, delta))
	e.apply(e.water.Tick(e.world, delta))

	stats.Changes = e.changes.Len() - before
	stats.Falling = len(e.falling.Blocks())
	stats.Charges = len(e.blasts.Charges())
	return stats
}

// apply records changes and lets every simulator react to them.
func (e *Engine) apply(changes []world.Change) {
	for _, c := range changes {
		e.changes.Add(c)
		e.updates = append(e.updates, c.Loc)
	}
	e.propagate()
}

// propagate drains the update worklist. Falling blocks detached while
// handling one location are appended and handled in the same pass.
func (e *Engine) propagate() {
	for len(e.updates) > 0 {
		loc := e.updates[0]
		e.updates = e.updates[1:]
		e.water.LocationUpdated(loc)
		for _, c := range e.falling.LocationUpdated(e.world, loc) {
			e.changes.Add(c)
			e.updates = append(e.updates, c.Loc)
		}
	}
	e.updates = nil
}

// LocationUpdated notifies the simulators of a change made directly on the
// world.
func (e *Engine) LocationUpdated(loc world.AbsoluteLocation) {
	e.updates = append(e.updates, loc)
	e.propagate()
}

// SetVoxel places v at loc, loading its area when needed. It reports false
// outside the world height.
func (e *Engine) SetVoxel(loc world.AbsoluteLocation, v world.Voxel) bool {
	before := e.world.Get(loc)
	if !e.world.Set(loc, v) {
		return false
	}
	if before != v {
		e.apply([]world.Change{{Loc: loc, Before: before, After: v, Reason: world.ReasonPlaced}})
	}
	return true
}

// Ignite lights the explosive voxel at loc.
func (e *Engine) Ignite(loc world.AbsoluteLocation) bool {
	if !loc.InHeight() {
		return false
	}
	e.world.LoadArea(world.ChunkCoordOf(loc))
	changes, ok := e.blasts.Ignite(e.world, loc)
	if ok {
		e.apply(changes)
	}
	return ok
}

func (e *Engine) Get(loc world.AbsoluteLocation) world.Voxel { return e.world.Get(loc) }

func (e *Engine) GetWithoutLoading(loc world.AbsoluteLocation) (world.Voxel, bool) {
	return e.world.GetWithoutLoading(loc)
}

func (e *Engine) SampleHeight(x, y int) int { return e.world.SampleHeight(x, y) }

// ChangedAreas lists the areas touched since the last DrainChanges.
func (e *Engine) ChangedAreas() []world.ChunkCoord { return e.changes.DirtyChunks() }

// DrainChanges returns every voxel change since the previous call.
func (e *Engine) DrainChanges() []world.Change { return e.changes.Drain() }

// Close persists physics state, metadata and every dirty area, then releases
// storage. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if err := storage.WritePhysics(e.dir, e.physicsState()); err != nil {
		errs = append(errs, err)
	}
	e.meta.WorldTime = e.worldTime
	if err := storage.WriteMeta(e.dir, e.meta); err != nil {
		errs = append(errs, err)
	}

	e.loader.Wait()
	if err := e.loader.RetryFailed(); err != nil {
		errs = append(errs, fmt.Errorf("retry failed saves: %w", err))
	}
	if err := e.world.SaveAllBlocking(); err != nil {
		errs = append(errs, err)
	}
	if err := e.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		e.log.Error("world closed with errors", "err", errors.Join(errs...))
	} else {
		e.log.Info("world closed", "world_time", e.worldTime)
	}
	return errors.Join(errs...)
}
