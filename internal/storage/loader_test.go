package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxelworld/internal/world"
)

// blockingBackend holds writes until released.
type blockingBackend struct {
	*MemoryBackend
	mu      sync.Mutex
	release chan struct{}
	fail    error
}

func (b *blockingBackend) Write(coord world.ChunkCoord, data []byte) error {
	<-b.release
	b.mu.Lock()
	err := b.fail
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.MemoryBackend.Write(coord, data)
}

func (b *blockingBackend) setFail(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

// firstCallGate holds only the first generation until released.
type firstCallGate struct {
	stubGenerator
	n       atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *firstCallGate) Generate(coord world.ChunkCoord) *world.Chunk {
	if g.n.Add(1) == 1 {
		close(g.started)
		<-g.release
	}
	return g.stubGenerator.Generate(coord)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBatchLoadSkipsInFlight(t *testing.T) {
	gen := &stubGenerator{gate: make(chan struct{})}
	loader := NewAreaLoader(NewStore(NewMemoryBackend(), newTestCodec(t), gen, nil), 4, nil)

	a := world.ChunkCoord{X: 1, Y: 1}
	b := world.ChunkCoord{X: 2, Y: 1}
	loader.BatchLoad([]world.ChunkCoord{a, a, b})
	loader.BatchLoad([]world.ChunkCoord{a})
	if got := loader.InFlight(); got != 2 {
		t.Fatalf("InFlight = %d, want 2", got)
	}
	if got := loader.DrainLoaded(); got != nil {
		t.Fatalf("nothing should be ready yet, got %d", len(got))
	}

	close(gen.gate)
	loader.Wait()

	ready := loader.DrainLoaded()
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready chunks, got %d", len(ready))
	}
	if gen.calls.Load() != 2 {
		t.Fatalf("expected 2 generations, got %d", gen.calls.Load())
	}
	if loader.DrainLoaded() != nil {
		t.Fatalf("drain should clear the ready list")
	}
	if loader.InFlight() != 0 {
		t.Fatalf("in-flight set should be empty")
	}
}

func TestLoadAllBlockingKeepsOrder(t *testing.T) {
	loader := NewAreaLoader(NewStore(NewMemoryBackend(), newTestCodec(t), &stubGenerator{}, nil), 2, nil)
	coords := []world.ChunkCoord{{X: 5}, {X: 1}, {X: 9}, {X: 3}}
	chunks, err := loader.LoadAllBlocking(context.Background(), coords)
	if err != nil {
		t.Fatalf("LoadAllBlocking: %v", err)
	}
	for i, c := range chunks {
		if c.Coord != coords[i] {
			t.Fatalf("chunk %d has coord %v, want %v", i, c.Coord, coords[i])
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loader.LoadAllBlocking(ctx, coords); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled load error = %v", err)
	}
}

func TestPendingSaveServesReloads(t *testing.T) {
	backend := &blockingBackend{MemoryBackend: NewMemoryBackend(), release: make(chan struct{})}
	loader := NewAreaLoader(NewStore(backend, newTestCodec(t), &stubGenerator{}, nil), 2, nil)
	coord := world.ChunkCoord{X: 8, Y: 8}
	edit := world.LocalLocation{X: 1, Y: 2, Z: 30}

	c := loader.Load(coord)
	c.Set(edit, world.Sand)
	loader.SaveAsync(c)

	reloaded := loader.Load(coord)
	if reloaded.Get(edit) != world.Sand {
		t.Fatalf("reload during a pending save lost the edit")
	}
	if !reloaded.Dirty() {
		t.Fatalf("chunk served from a pending save must stay dirty")
	}
	if reloaded == c {
		t.Fatalf("pending chunk must be copied, not shared")
	}

	close(backend.release)
	loader.Wait()
	if backend.Len() != 1 {
		t.Fatalf("expected the chunk to be written")
	}
	fresh := loader.Load(coord)
	if fresh.Get(edit) != world.Sand || fresh.Dirty() {
		t.Fatalf("chunk should now come back clean from storage")
	}
}

func TestFailedBackgroundSaveIsRetained(t *testing.T) {
	backend := &blockingBackend{MemoryBackend: NewMemoryBackend(), release: make(chan struct{})}
	close(backend.release)
	backend.setFail(errors.New("read-only filesystem"))
	loader := NewAreaLoader(NewStore(backend, newTestCodec(t), &stubGenerator{}, nil), 1, nil)
	coord := world.ChunkCoord{X: 3, Y: 3}
	edit := world.LocalLocation{X: 5, Y: 5, Z: 40}

	c := loader.Load(coord)
	c.Set(edit, world.Clay)
	loader.SaveAsync(c)
	loader.Wait()

	if got := loader.Load(coord).Get(edit); got != world.Clay {
		t.Fatalf("failed save must keep serving the edited chunk, got %v", got)
	}
	if err := loader.RetryFailed(); err == nil {
		t.Fatalf("retry should still fail")
	}

	backend.setFail(nil)
	if err := loader.RetryFailed(); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if backend.Len() != 1 {
		t.Fatalf("retry should have written the chunk")
	}
	if loader.Load(coord).Dirty() {
		t.Fatalf("after a successful retry the chunk comes from storage")
	}
}

func TestSyncSaveWaitsForPendingSave(t *testing.T) {
	backend := &blockingBackend{MemoryBackend: NewMemoryBackend(), release: make(chan struct{})}
	codec := newTestCodec(t)
	loader := NewAreaLoader(NewStore(backend, codec, &stubGenerator{}, nil), 2, nil)
	coord := world.ChunkCoord{X: 6, Y: 6}
	edit := world.LocalLocation{X: 0, Y: 0, Z: 50}

	old := loader.Load(coord)
	old.Set(edit, world.Dirt)
	loader.SaveAsync(old)

	newer := loader.Load(coord)
	newer.Set(edit, world.Gravel)

	done := make(chan error, 1)
	go func() { done <- loader.Save(newer) }()
	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}
	loader.Wait()

	data, err := backend.Read(coord)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	stored, err := codec.Decode(coord, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stored.Get(edit) != world.Gravel {
		t.Fatalf("older background save overwrote the newer synchronous save")
	}
}

func TestStaleBackgroundLoadIsDropped(t *testing.T) {
	backend := NewMemoryBackend()
	gen := &firstCallGate{started: make(chan struct{}), release: make(chan struct{})}
	loader := NewAreaLoader(NewStore(backend, newTestCodec(t), gen, nil), 2, nil)
	coord := world.ChunkCoord{X: 4, Y: 7}
	edit := world.LocalLocation{X: 3, Y: 3, Z: 20}

	loader.BatchLoad([]world.ChunkCoord{coord})
	<-gen.started

	c := loader.Load(coord)
	c.Set(edit, world.Explosive)
	loader.SaveAsync(c)
	waitFor(t, func() bool { return backend.Len() == 1 })

	close(gen.release)
	waitFor(t, func() bool { return loader.InFlight() == 0 })

	if ready := loader.DrainLoaded(); ready != nil {
		t.Fatalf("load scheduled before the edit must be dropped, got %d chunks", len(ready))
	}
	if got := loader.Load(coord).Get(edit); got != world.Explosive {
		t.Fatalf("reload = %v, want the saved edit", got)
	}

	loader.BatchLoad([]world.ChunkCoord{coord})
	waitFor(t, func() bool { return loader.InFlight() == 0 })
	ready := loader.DrainLoaded()
	if len(ready) != 1 || ready[0].Get(edit) != world.Explosive {
		t.Fatalf("a fresh background load should carry the edit")
	}
}
