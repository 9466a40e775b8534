package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"voxelworld/internal/world"
)

// stubGenerator fills every chunk with stone up to a fixed height.
type stubGenerator struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (g *stubGenerator) Generate(coord world.ChunkCoord) *world.Chunk {
	if g.gate != nil {
		<-g.gate
	}
	g.calls.Add(1)
	c := world.NewChunk(coord)
	c.Fill(world.LocalLocation{}, world.LocalLocation{X: world.ChunkEdge - 1, Y: world.ChunkEdge - 1, Z: 3}, world.Stone)
	c.MarkClean()
	return c
}

type failingBackend struct {
	Backend
	readErr  error
	writeErr error
}

func (b *failingBackend) Read(coord world.ChunkCoord) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	return b.Backend.Read(coord)
}

func (b *failingBackend) Write(coord world.ChunkCoord, data []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.Backend.Write(coord, data)
}

func TestStoreGeneratesMissingChunks(t *testing.T) {
	gen := &stubGenerator{}
	store := NewStore(NewMemoryBackend(), newTestCodec(t), gen, nil)
	c := store.Load(world.ChunkCoord{X: 1, Y: 1})
	if gen.calls.Load() != 1 {
		t.Fatalf("expected generator to run once, got %d", gen.calls.Load())
	}
	if c.Get(world.LocalLocation{Z: 3}) != world.Stone {
		t.Fatalf("expected generated content")
	}
}

func TestStoreLoadsSavedChunk(t *testing.T) {
	gen := &stubGenerator{}
	backend := NewMemoryBackend()
	store := NewStore(backend, newTestCodec(t), gen, nil)
	coord := world.ChunkCoord{X: 2, Y: 3}
	c := store.Load(coord)
	c.Set(world.LocalLocation{X: 4, Y: 4, Z: 10}, world.Explosive)
	if err := store.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := store.Load(coord)
	if loaded.Get(world.LocalLocation{X: 4, Y: 4, Z: 10}) != world.Explosive {
		t.Fatalf("saved edit lost")
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("saved chunk should not be regenerated")
	}
}

func TestStoreRegeneratesCorruptOrUnreadableData(t *testing.T) {
	gen := &stubGenerator{}
	backend := NewMemoryBackend()
	coord := world.ChunkCoord{X: 7, Y: 7}
	if err := backend.Write(coord, []byte("definitely not a chunk")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	store := NewStore(backend, newTestCodec(t), gen, nil)
	c := store.Load(coord)
	if c == nil || c.Get(world.LocalLocation{Z: 0}) != world.Stone {
		t.Fatalf("corrupt data should fall back to generation")
	}

	broken := &failingBackend{Backend: backend, readErr: errors.New("disk on fire")}
	store = NewStore(broken, newTestCodec(t), gen, nil)
	if c := store.Load(coord); c == nil {
		t.Fatalf("read errors should fall back to generation")
	}
	if gen.calls.Load() != 2 {
		t.Fatalf("expected 2 generations, got %d", gen.calls.Load())
	}
}

func TestFileBackendLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alpha")
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	coord := world.ChunkCoord{X: 524288, Y: 524289}
	if _, err := backend.Read(coord); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chunk error = %v, want ErrNotFound", err)
	}
	if err := backend.Write(coord, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := backend.Write(coord, []byte{4, 5}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := backend.Read(coord)
	if err != nil || string(data) != string([]byte{4, 5}) {
		t.Fatalf("Read = %v, %v", data, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "area524288_524289.dat" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected files %v", names)
	}
}

func TestLevelDBBackend(t *testing.T) {
	backend, err := OpenLevelDBBackend(filepath.Join(t.TempDir(), "areas"))
	if err != nil {
		t.Fatalf("OpenLevelDBBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	coord := world.ChunkCoord{X: 3, Y: 4}
	if _, err := backend.Read(coord); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chunk error = %v, want ErrNotFound", err)
	}
	codec := newTestCodec(t)
	store := NewStore(backend, codec, &stubGenerator{}, nil)
	c := patternedChunk(coord)
	if err := store.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := store.Load(coord)
	if loaded.Count(world.Stone) != c.Count(world.Stone) {
		t.Fatalf("leveldb round trip lost voxels")
	}
}
