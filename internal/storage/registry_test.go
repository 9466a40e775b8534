package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	reg, err := OpenRegistry(root)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegistryRegisterListRemove(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, t.TempDir())
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	beta := WorldMeta{ID: uuid.New(), Name: "beta", SeedString: "b", Seed: 2, CreatedAt: created}
	alpha := WorldMeta{ID: uuid.New(), Name: "alpha", SeedString: "a", Seed: 1, CreatedAt: created}
	for _, m := range []WorldMeta{beta, alpha} {
		if err := reg.Register(ctx, m, created); err != nil {
			t.Fatalf("Register %s: %v", m.Name, err)
		}
	}
	reopened := created.Add(time.Hour)
	if err := reg.Register(ctx, alpha, reopened); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	entries, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "alpha" || entries[1].Name != "beta" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].ID != alpha.ID.String() || entries[0].Seed != 1 {
		t.Fatalf("alpha entry = %+v", entries[0])
	}
	if !entries[0].LastOpened.Equal(reopened) || !entries[0].CreatedAt.Equal(created) {
		t.Fatalf("alpha timestamps = %v / %v", entries[0].CreatedAt, entries[0].LastOpened)
	}

	if err := reg.Remove(ctx, "beta"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	entries, err = reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "alpha" {
		t.Fatalf("after remove: %+v", entries)
	}
}

func TestDeleteWorld(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	reg := openTestRegistry(t, root)

	dir := WorldDir(root, "gamma")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := WriteMeta(dir, WorldMeta{ID: uuid.New(), Name: "gamma"}); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	if err := reg.Register(ctx, WorldMeta{ID: uuid.New(), Name: "gamma"}, time.Now()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := DeleteWorld(ctx, root, "gamma", reg); err != nil {
		t.Fatalf("DeleteWorld: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("world directory still present: %v", err)
	}
	entries, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("registry still lists %+v", entries)
	}
}

func TestDeleteWorldRejectsEscapingNames(t *testing.T) {
	root := t.TempDir()
	sentinel := filepath.Join(root, "keep.txt")
	if err := os.WriteFile(sentinel, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	for _, name := range []string{"", "..", "../x", "a/b", `a\b`, "a.b"} {
		err := DeleteWorld(context.Background(), root, name, nil)
		if !errors.Is(err, ErrInvalidWorldName) {
			t.Fatalf("DeleteWorld(%q) error = %v, want ErrInvalidWorldName", name, err)
		}
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("files below the root were touched: %v", err)
	}
}
