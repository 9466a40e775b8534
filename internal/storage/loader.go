package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"voxelworld/internal/world"
)

// readyChunk is a finished background load tagged with the coordinate's
// epoch at the time the load was scheduled.
type readyChunk struct {
	chunk *world.Chunk
	epoch uint64
}

type pendingSave struct {
	chunk  *world.Chunk
	done   chan struct{}
	failed bool
}

// AreaLoader runs chunk loads and saves in the background and hands finished
// loads over through DrainLoaded. Only DrainLoaded mutates caller-visible
// state, so the owning World needs no locking of its own.
type AreaLoader struct {
	store   *Store
	workers int
	sem     *semaphore.Weighted
	log     *slog.Logger
	wg      sync.WaitGroup

	mu       sync.Mutex
	inFlight map[world.ChunkCoord]struct{}
	ready    []readyChunk
	pending  map[world.ChunkCoord]*pendingSave
	// epoch advances whenever the caller obtains or hands back its own copy
	// of a coordinate. Background loads scheduled under an older epoch are
	// stale and never reach the caller.
	epoch map[world.ChunkCoord]uint64
}

func NewAreaLoader(store *Store, workers int, logger *slog.Logger) *AreaLoader {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AreaLoader{
		store:    store,
		workers:  workers,
		sem:      semaphore.NewWeighted(int64(workers)),
		log:      logger,
		inFlight: make(map[world.ChunkCoord]struct{}),
		pending:  make(map[world.ChunkCoord]*pendingSave),
		epoch:    make(map[world.ChunkCoord]uint64),
	}
}

// Load returns the chunk synchronously. A chunk still waiting to be written
// is served from memory so its edits survive an evict/reload cycle.
func (l *AreaLoader) Load(coord world.ChunkCoord) *world.Chunk {
	l.mu.Lock()
	l.epoch[coord]++
	l.mu.Unlock()
	return l.load(coord)
}

func (l *AreaLoader) load(coord world.ChunkCoord) *world.Chunk {
	l.mu.Lock()
	p := l.pending[coord]
	l.mu.Unlock()
	if p != nil {
		c := p.chunk.Clone()
		c.MarkDirty()
		return c
	}
	return l.store.Load(coord)
}

// BatchLoad schedules a background load for every coordinate not already in
// flight.
func (l *AreaLoader) BatchLoad(coords []world.ChunkCoord) {
	for _, coord := range coords {
		l.mu.Lock()
		if _, busy := l.inFlight[coord]; busy {
			l.mu.Unlock()
			continue
		}
		l.inFlight[coord] = struct{}{}
		epoch := l.epoch[coord]
		l.mu.Unlock()

		l.wg.Add(1)
		go l.loadInBackground(coord, epoch)
	}
}

func (l *AreaLoader) loadInBackground(coord world.ChunkCoord, epoch uint64) {
	defer l.wg.Done()
	// Acquire never fails with a background context.
	_ = l.sem.Acquire(context.Background(), 1)
	c := l.load(coord)
	l.sem.Release(1)

	l.mu.Lock()
	l.ready = append(l.ready, readyChunk{chunk: c, epoch: epoch})
	delete(l.inFlight, coord)
	l.mu.Unlock()
}

// DrainLoaded takes every finished load and clears the ready list. Loads
// overtaken by a synchronous load or a save of the same coordinate are
// dropped.
func (l *AreaLoader) DrainLoaded() []*world.Chunk {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ready) == 0 {
		return nil
	}
	out := make([]*world.Chunk, 0, len(l.ready))
	for _, r := range l.ready {
		if r.epoch != l.epoch[r.chunk.Coord] {
			l.log.Debug("dropped stale background load", "area", r.chunk.Coord)
			continue
		}
		out = append(out, r.chunk)
	}
	l.ready = nil
	if len(out) == 0 {
		return nil
	}
	return out
}

// InFlight reports how many background loads have not finished yet.
func (l *AreaLoader) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}

// LoadAllBlocking loads coords in parallel, bounded by the worker count, and
// returns them in input order.
func (l *AreaLoader) LoadAllBlocking(ctx context.Context, coords []world.ChunkCoord) ([]*world.Chunk, error) {
	out := make([]*world.Chunk, len(coords))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, coord := range coords {
		i, coord := i, coord
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = l.Load(coord)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}
	return out, nil
}

// Save writes the chunk synchronously after any earlier background save of
// the same coordinate has finished.
func (l *AreaLoader) Save(c *world.Chunk) error {
	l.mu.Lock()
	prev := l.pending[c.Coord]
	l.mu.Unlock()
	if prev != nil {
		<-prev.done
	}
	if err := l.store.Save(c); err != nil {
		return err
	}
	if prev != nil {
		l.mu.Lock()
		if l.pending[c.Coord] == prev {
			delete(l.pending, c.Coord)
		}
		l.mu.Unlock()
	}
	return nil
}

// SaveAsync writes an evicted chunk in the background. The caller must not
// modify c afterwards. Saves of one coordinate are applied in call order.
func (l *AreaLoader) SaveAsync(c *world.Chunk) {
	p := &pendingSave{chunk: c, done: make(chan struct{})}
	l.mu.Lock()
	l.epoch[c.Coord]++
	prev := l.pending[c.Coord]
	l.pending[c.Coord] = p
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(p.done)
		if prev != nil {
			<-prev.done
		}
		_ = l.sem.Acquire(context.Background(), 1)
		err := l.store.Save(c)
		l.sem.Release(1)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			// Kept in pending so later loads still see the edits.
			p.failed = true
			l.log.Error("background save failed", "area", c.Coord, "err", err)
			return
		}
		if l.pending[c.Coord] == p {
			delete(l.pending, c.Coord)
		}
	}()
}

// Wait blocks until every background load and save has finished.
func (l *AreaLoader) Wait() {
	l.wg.Wait()
}

// RetryFailed synchronously rewrites chunks whose background save failed.
func (l *AreaLoader) RetryFailed() error {
	l.mu.Lock()
	var failed []*pendingSave
	for _, p := range l.pending {
		if p.failed {
			failed = append(failed, p)
		}
	}
	l.mu.Unlock()

	var errs []error
	for _, p := range failed {
		if err := l.store.Save(p.chunk); err != nil {
			errs = append(errs, err)
			continue
		}
		l.mu.Lock()
		if l.pending[p.chunk.Coord] == p {
			delete(l.pending, p.chunk.Coord)
		}
		l.mu.Unlock()
	}
	return errors.Join(errs...)
}
