package resources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"modhost/pkg/workspace"
)

const defaultDebounce = 200 * time.Millisecond

// Watch lists path now and again after every burst of changes to it,
// calling onChange with each listing. It blocks until ctx is done. Only the
// directory itself is watched, not its subdirectories.
func (s *Service) Watch(ctx context.Context, path string, onChange func(Listing)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if path == "" {
		path = "."
	}

	resolvedPath, err := s.guard.ResolvePath(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(resolvedPath); err != nil {
		return workspace.NormalizeIOError(err, "watch directory failed")
	}

	emit := func() {
		listing, err := s.List(ctx, resolvedPath)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("Relisting watched folder failed", "path", s.guard.RelPath(resolvedPath), "error", err)
			}
			return
		}
		onChange(listing)
	}
	emit()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watch %s: event channel closed", s.guard.RelPath(resolvedPath))
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}

			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(s.watchDelay, func() {
					if ctx.Err() == nil {
						emit()
					}
				})
			} else {
				timer.Reset(s.watchDelay)
			}
			mu.Unlock()
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watch %s: error channel closed", s.guard.RelPath(resolvedPath))
			}
			s.log.Warn("Resource watcher error", "path", s.guard.RelPath(resolvedPath), "error", err)
		}
	}
}
