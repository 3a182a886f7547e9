package resources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modhost/pkg/workspace"
)

func TestListSortsAndDescribesEntries(t *testing.T) {
	svc, root := mustService(t)
	mustWrite(t, filepath.Join(root, "mod", "b.txt"), "bbb")
	mustWrite(t, filepath.Join(root, "mod", "a.txt"), "a")
	if err := os.Mkdir(filepath.Join(root, "mod", "icons"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	listing, err := svc.List(context.Background(), "mod")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	want := []Entry{
		{Name: "a.txt", Type: "file", Size: 1},
		{Name: "b.txt", Type: "file", Size: 3},
		{Name: "icons", Type: "dir", IsDir: true},
	}
	if len(listing.Entries) != len(want) {
		t.Fatalf("entries = %+v, want %+v", listing.Entries, want)
	}
	for i, w := range want {
		got := listing.Entries[i]
		if got.Name != w.Name || got.Type != w.Type || got.IsDir != w.IsDir {
			t.Fatalf("entry %d = %+v, want %+v", i, got, w)
		}
		if !w.IsDir && got.Size != w.Size {
			t.Fatalf("entry %d size = %d, want %d", i, got.Size, w.Size)
		}
	}
	if listing.Truncated || listing.Total != 3 {
		t.Fatalf("truncated = %v total = %d, want false 3", listing.Truncated, listing.Total)
	}
}

func TestListTruncatesDeterministically(t *testing.T) {
	guard, err := workspace.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard error: %v", err)
	}
	svc := NewService(guard, WithMaxEntries(2))
	for i := 3; i >= 0; i-- {
		mustWrite(t, filepath.Join(guard.Root(), fmt.Sprintf("f%d", i)), "x")
	}

	listing, err := svc.List(context.Background(), ".")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if !listing.Truncated || listing.Total != 4 || len(listing.Entries) != 2 {
		t.Fatalf("listing = %+v, want 2 of 4 truncated", listing)
	}
	if listing.Entries[0].Name != "f0" || listing.Entries[1].Name != "f1" {
		t.Fatalf("entries = %+v, want f0 f1", listing.Entries)
	}
}

func TestListErrors(t *testing.T) {
	svc, root := mustService(t)
	mustWrite(t, filepath.Join(root, "plain.txt"), "x")

	tests := []struct {
		path string
		want string
	}{
		{"missing", workspace.ErrorPathNotFound},
		{"plain.txt", workspace.ErrorNotDirectory},
		{"../outside", workspace.ErrorOutsideRoot},
	}
	for _, tt := range tests {
		_, err := svc.List(context.Background(), tt.path)
		if got := workspace.CategoryFromError(err); got != tt.want {
			t.Fatalf("List(%q) category = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestListRespectsCancelledContext(t *testing.T) {
	svc, _ := mustService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.List(ctx, ".")
	if workspace.CategoryFromError(err) != workspace.ErrorIO {
		t.Fatalf("category = %q, want %q", workspace.CategoryFromError(err), workspace.ErrorIO)
	}
}

func TestWatchRelistsOnChange(t *testing.T) {
	guard, err := workspace.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard error: %v", err)
	}
	svc := NewService(guard, WithDebounce(20*time.Millisecond))
	dir, err := svc.ModuleDir("watched")
	if err != nil {
		t.Fatalf("ModuleDir error: %v", err)
	}

	listings := make(chan Listing, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, "watched", func(l Listing) { listings <- l })
	}()

	select {
	case l := <-listings:
		if len(l.Entries) != 0 {
			t.Fatalf("initial listing = %+v, want empty", l.Entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial listing")
	}

	mustWrite(t, filepath.Join(dir, "new.txt"), "hello")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case l := <-listings:
			if len(l.Entries) == 1 && l.Entries[0].Name == "new.txt" {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("Watch error: %v", err)
				}
				return
			}
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for relisting")
		}
	}
}

func mustService(t *testing.T) (*Service, string) {
	t.Helper()

	guard, err := workspace.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard error: %v", err)
	}
	return NewService(guard), guard.Root()
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
