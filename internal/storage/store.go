package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"voxelworld/internal/world"
)

// Generator produces a chunk for a coordinate that has no usable saved data.
type Generator interface {
	Generate(coord world.ChunkCoord) *world.Chunk
}

// Store persists chunks through a Backend. Loading never fails: missing,
// unreadable or corrupt data falls back to the generator.
type Store struct {
	backend Backend
	codec   *Codec
	gen     Generator
	log     *slog.Logger
}

func NewStore(backend Backend, codec *Codec, gen Generator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, codec: codec, gen: gen, log: logger}
}

func (s *Store) Save(chunk *world.Chunk) error {
	if err := s.backend.Write(chunk.Coord, s.codec.Encode(chunk)); err != nil {
		return fmt.Errorf("save %v: %w", chunk.Coord, err)
	}
	return nil
}

// Load decodes the stored chunk, or generates it.
func (s *Store) Load(coord world.ChunkCoord) *world.Chunk {
	data, err := s.backend.Read(coord)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Debug("generating area", "area", coord)
		return s.gen.Generate(coord)
	case err != nil:
		s.log.Warn("area unreadable, regenerating", "area", coord, "err", err)
		return s.gen.Generate(coord)
	}
	chunk, err := s.codec.Decode(coord, data)
	if err != nil {
		s.log.Warn("area corrupt, regenerating", "area", coord, "err", err)
		return s.gen.Generate(coord)
	}
	return chunk
}
