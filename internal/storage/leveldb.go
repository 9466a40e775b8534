package storage

import (
	"errors"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"

	"voxelworld/internal/world"
)

// LevelDBBackend keeps every chunk of a world in one LevelDB database, keyed
// by the same area name the file backend uses.
type LevelDBBackend struct {
	db *leveldb.DB
}

func OpenLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBBackend{db: db}, nil
}

func (b *LevelDBBackend) Read(coord world.ChunkCoord) ([]byte, error) {
	data, err := b.db.Get([]byte(areaName(coord)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", areaName(coord), err)
	}
	return data, nil
}

func (b *LevelDBBackend) Write(coord world.ChunkCoord, data []byte) error {
	if err := b.db.Put([]byte(areaName(coord)), data, nil); err != nil {
		return fmt.Errorf("put %s: %w", areaName(coord), err)
	}
	return nil
}

func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}
