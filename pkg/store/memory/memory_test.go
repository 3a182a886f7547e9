package memory

import (
	"context"
	"errors"
	"testing"

	"modhost/pkg/store"
)

func TestSetGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := store.Key{ModuleID: "mod.a", AccessID: "flag"}

	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, key, "true"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "true" {
		t.Fatalf("value = %q, want true", got)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestKeysAreScopedByModule(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, store.Key{ModuleID: "mod.a", AccessID: "volume"}, "1")
	_ = s.Set(ctx, store.Key{ModuleID: "mod.b", AccessID: "volume"}, "2")
	_ = s.Set(ctx, store.Key{ModuleID: "mod.a", AccessID: "alpha"}, "3")

	entries, err := s.List(ctx, "mod.a")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(entries) != 2 || entries[0].AccessID != "alpha" || entries[1].Value != "1" {
		t.Fatalf("entries = %+v", entries)
	}

	modules, err := s.Modules(ctx)
	if err != nil {
		t.Fatalf("Modules error: %v", err)
	}
	if len(modules) != 2 || modules[0] != "mod.a" || modules[1] != "mod.b" {
		t.Fatalf("modules = %v", modules)
	}
}
