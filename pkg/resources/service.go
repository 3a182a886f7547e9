// Package resources enumerates and watches module resource folders.
package resources

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"modhost/pkg/workspace"
)

const (
	MaxListEntries       = 500
	MaxOperationDuration = 10 * time.Second
)

// Entry is one item of a resource listing as sent to renderers.
type Entry struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"isDir"`
}

// Listing is a sorted, possibly truncated directory listing.
type Listing struct {
	Path      string  `json:"-"`
	Entries   []Entry `json:"entries"`
	Truncated bool    `json:"truncated"`
	Total     int     `json:"total"`
}

// Service performs bounded read-only operations inside the resource root.
type Service struct {
	guard       *workspace.Guard
	log         *slog.Logger
	maxEntries  int
	maxDuration time.Duration
	watchDelay  time.Duration
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMaxEntries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithDebounce sets how long Watch waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.watchDelay = d
		}
	}
}

func NewService(guard *workspace.Guard, opts ...Option) *Service {
	s := &Service{
		guard:       guard,
		log:         slog.Default(),
		maxEntries:  MaxListEntries,
		maxDuration: MaxOperationDuration,
		watchDelay:  defaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "resources.service")

	return s
}

// Root returns the resource root directory.
func (s *Service) Root() string {
	return s.guard.Root()
}

// ModuleDir resolves and creates a module's resource folder.
func (s *Service) ModuleDir(folder string) (string, error) {
	return s.guard.ModuleDir(folder)
}

// List returns the entries of path sorted by name. Relative paths are taken
// from the resource root.
func (s *Service) List(ctx context.Context, path string) (Listing, error) {
	ctx, cancel := s.withOperationContext(ctx)
	defer cancel()

	if path == "" {
		path = "."
	}
	if err := checkContext(ctx); err != nil {
		return Listing{}, err
	}

	resolvedPath, err := s.guard.ResolvePath(path)
	if err != nil {
		return Listing{}, err
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return Listing{}, workspace.NormalizeIOError(err, "stat failed")
	}
	if !info.IsDir() {
		return Listing{}, workspace.NewError(workspace.ErrorNotDirectory, s.guard.RelPath(resolvedPath))
	}

	entries, err := os.ReadDir(resolvedPath)
	if err != nil {
		return Listing{}, workspace.NormalizeIOError(err, "list directory failed")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	limited := entries
	truncated := false
	if len(entries) > s.maxEntries {
		limited = entries[:s.maxEntries]
		truncated = true
	}

	out := make([]Entry, 0, len(limited))
	for _, entry := range limited {
		if err := checkContext(ctx); err != nil {
			return Listing{}, err
		}
		entryInfo, infoErr := entry.Info()
		if infoErr != nil {
			// Removed between ReadDir and Info.
			if os.IsNotExist(infoErr) {
				continue
			}
			return Listing{}, workspace.NormalizeIOError(infoErr, "read directory metadata failed")
		}

		entryType := "file"
		if entry.IsDir() {
			entryType = "dir"
		}
		out = append(out, Entry{
			Name:  entry.Name(),
			Type:  entryType,
			Size:  entryInfo.Size(),
			IsDir: entry.IsDir(),
		})
	}

	return Listing{
		Path:      resolvedPath,
		Entries:   out,
		Truncated: truncated,
		Total:     len(entries),
	}, nil
}

func (s *Service) withOperationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.maxDuration <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.maxDuration)
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return workspace.NewError(workspace.ErrorIO, err.Error())
	}
	return nil
}
