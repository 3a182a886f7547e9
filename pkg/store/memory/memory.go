// Package memory provides an in-memory settings store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"modhost/pkg/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[store.Key]store.Entry
	now     func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[store.Key]store.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the value for key or store.ErrNotFound.
func (s *Store) Get(_ context.Context, key store.Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return entry.Value, nil
}

// Set inserts or replaces the value for key.
func (s *Store) Set(_ context.Context, key store.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = store.Entry{Key: key, Value: value, UpdatedAt: s.now()}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// List returns the module's entries ordered by access id.
func (s *Store) List(_ context.Context, moduleID string) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []store.Entry
	for key, entry := range s.entries {
		if key.ModuleID == moduleID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccessID < result[j].AccessID
	})
	return result, nil
}

// Modules returns the sorted ids of modules with persisted values.
func (s *Store) Modules(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range s.entries {
		seen[key.ModuleID] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
