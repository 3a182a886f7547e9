// Package store defines the persistence port for module settings.
//
// Values are stored as encoded strings keyed by (module id, access id), so
// two modules may use the same access id without interfering.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no value is persisted for a key.
var ErrNotFound = errors.New("setting not persisted")

// Key addresses one persisted setting slot.
type Key struct {
	ModuleID string `json:"moduleId"`
	AccessID string `json:"accessId"`
}

func (k Key) String() string {
	return k.ModuleID + "/" + k.AccessID
}

// Entry is one persisted value.
type Entry struct {
	Key
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists encoded setting values.
type Store interface {
	Get(ctx context.Context, key Key) (string, error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, key Key) error
	// List returns a module's entries ordered by access id.
	List(ctx context.Context, moduleID string) ([]Entry, error)
	// Modules returns the ids of modules with persisted values, sorted.
	Modules(ctx context.Context) ([]string, error)
	Close() error
}
