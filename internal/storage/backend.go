package storage

import (
	"errors"
	"fmt"
	"sync"

	"voxelworld/internal/world"
)

// ErrNotFound is returned by a Backend when no data is stored for a chunk.
var ErrNotFound = errors.New("chunk not found")

// Backend stores encoded chunk payloads. Implementations must be safe for
// concurrent use.
type Backend interface {
	Read(coord world.ChunkCoord) ([]byte, error)
	Write(coord world.ChunkCoord, data []byte) error
	Close() error
}

func areaName(coord world.ChunkCoord) string {
	return fmt.Sprintf("area%d_%d", coord.X, coord.Y)
}

// MemoryBackend keeps payloads in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	areas map[world.ChunkCoord][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{areas: make(map[world.ChunkCoord][]byte)}
}

func (m *MemoryBackend) Read(coord world.ChunkCoord) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.areas[coord]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	dup := make([]byte, len(data))
	copy(dup, data)
	return dup, nil
}

func (m *MemoryBackend) Write(coord world.ChunkCoord, data []byte) error {
	dup := make([]byte, len(data))
	copy(dup, data)
	m.mu.Lock()
	m.areas[coord] = dup
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Len reports how many chunks are stored.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.areas)
}
