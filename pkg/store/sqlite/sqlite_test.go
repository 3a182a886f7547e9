package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"modhost/pkg/store"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestUpsertAndGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	key := store.Key{ModuleID: "developer.Sample_Module", AccessID: "sample_bool"}

	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, key, "false"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := s.Set(ctx, key, "true"); err != nil {
		t.Fatalf("Set (update) error: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "true" {
		t.Fatalf("value = %q, want true", got)
	}

	entries, err := s.List(ctx, key.ModuleID)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be populated")
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"}, "42"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "42" {
		t.Fatalf("value = %q, want 42", got)
	}
}

func TestSameAccessIDAcrossModules(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"}, "1")
	_ = s.Set(ctx, store.Key{ModuleID: "mod.b", AccessID: "volume"}, "2")

	a, _ := s.Get(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"})
	b, _ := s.Get(ctx, store.Key{ModuleID: "mod.b", AccessID: "volume"})
	if a != "1" || b != "2" {
		t.Fatalf("values = %q, %q, want 1, 2", a, b)
	}

	if err := s.Delete(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"}); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	modules, err := s.Modules(ctx)
	if err != nil {
		t.Fatalf("Modules error: %v", err)
	}
	if len(modules) != 1 || modules[0] != "mod.b" {
		t.Fatalf("modules = %v, want [mod.b]", modules)
	}
}
