// Package settings registers module settings declarations, restores their
// persisted values and applies renderer-originated changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"modhost/pkg/setting"
	"modhost/pkg/store"
)

var (
	ErrAlreadyRegistered = errors.New("module settings already registered")
	ErrNotRegistered     = errors.New("module has no registered settings")
	ErrUnknownSetting    = errors.New("unknown setting")
	ErrRefresh           = errors.New("settings refresh failed")
)

// RefreshFunc is called after a setting change has been persisted.
type RefreshFunc func(ctx context.Context, s setting.Setting) error

// Registry owns the registered settings of every module. All keys are
// scoped by module id.
type Registry struct {
	store store.Store
	log   *slog.Logger

	mu      sync.RWMutex
	modules map[string]*moduleSettings
}

type moduleSettings struct {
	// updateMu serializes changes within one module.
	updateMu sync.Mutex
	groups   []Group
	byID     map[string]setting.Setting
	refresh  RefreshFunc
}

type Option func(*Registry)

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a registry persisting through st.
func New(st store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   st,
		log:     slog.Default(),
		modules: make(map[string]*moduleSettings),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "settings.registry")

	return r
}

// Register validates a module's declaration, restores persisted values and
// commits it. On error nothing is registered.
func (r *Registry) Register(ctx context.Context, moduleID string, items []setting.Item, refresh RefreshFunc) ([]Group, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	groups, err := Validate(moduleID, items)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	_, exists := r.modules[moduleID]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, moduleID)
	}

	// Store reads happen before the registry lock is taken.
	ms := &moduleSettings{
		groups:  groups,
		byID:    make(map[string]setting.Setting),
		refresh: refresh,
	}
	for _, g := range groups {
		for _, s := range g.Settings {
			ms.byID[s.AccessID()] = s
			r.restore(ctx, moduleID, s)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[moduleID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, moduleID)
	}
	r.modules[moduleID] = ms

	r.log.Debug("Registered module settings", "module", moduleID, "settings", len(ms.byID), "groups", len(groups))
	return cloneGroups(groups), nil
}

func (r *Registry) restore(ctx context.Context, moduleID string, s setting.Setting) {
	if r.store == nil {
		return
	}

	key := store.Key{ModuleID: moduleID, AccessID: s.AccessID()}
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("Failed to load persisted setting, using default", "module", moduleID, "access_id", key.AccessID, "error", err)
		}
		return
	}

	if err := s.Decode(raw); err != nil {
		r.log.Warn("Ignoring persisted setting that no longer validates", "module", moduleID, "access_id", key.AccessID, "error", err)
	}
}

// Update assigns value, persists it and notifies the module. A rejected
// value leaves both memory and storage untouched. A failing refresh is
// reported but the persisted value stands.
func (r *Registry) Update(ctx context.Context, moduleID, accessID string, value any) error {
	return r.change(ctx, moduleID, accessID, func(s setting.Setting) (persist func() error, err error) {
		if err := s.Assign(value); err != nil {
			return nil, err
		}
		raw, err := s.Encode()
		if err != nil {
			return nil, err
		}
		return func() error {
			return r.store.Set(ctx, store.Key{ModuleID: moduleID, AccessID: accessID}, raw)
		}, nil
	})
}

// Reset restores a setting's default and forgets its persisted value.
func (r *Registry) Reset(ctx context.Context, moduleID, accessID string) error {
	return r.change(ctx, moduleID, accessID, func(s setting.Setting) (func() error, error) {
		resettable, ok := s.(interface{ Reset() })
		if !ok {
			return nil, fmt.Errorf("setting %s cannot be reset", accessID)
		}
		resettable.Reset()
		return func() error {
			return r.store.Delete(ctx, store.Key{ModuleID: moduleID, AccessID: accessID})
		}, nil
	})
}

func (r *Registry) change(ctx context.Context, moduleID, accessID string, apply func(setting.Setting) (func() error, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ms, s, err := r.lookup(moduleID, accessID)
	if err != nil {
		return err
	}

	ms.updateMu.Lock()
	defer ms.updateMu.Unlock()

	previous, err := s.Encode()
	if err != nil {
		return err
	}

	persist, err := apply(s)
	if err != nil {
		return err
	}
	if r.store != nil {
		if err := persist(); err != nil {
			if restoreErr := s.Decode(previous); restoreErr != nil {
				r.log.Error("Failed to restore setting after persistence error", "module", moduleID, "access_id", accessID, "error", restoreErr)
			}
			return fmt.Errorf("persist %s/%s: %w", moduleID, accessID, err)
		}
	}

	if ms.refresh == nil {
		return nil
	}
	if err := safeRefresh(ctx, ms.refresh, s); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrRefresh, moduleID, accessID, err)
	}
	return nil
}

func safeRefresh(ctx context.Context, refresh RefreshFunc, s setting.Setting) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()

	return refresh(ctx, s)
}

func (r *Registry) lookup(moduleID, accessID string) (*moduleSettings, setting.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.modules[moduleID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotRegistered, moduleID)
	}
	s, ok := ms.byID[accessID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrUnknownSetting, moduleID, accessID)
	}
	return ms, s, nil
}

// Lookup returns one registered setting.
func (r *Registry) Lookup(moduleID, accessID string) (setting.Setting, bool) {
	_, s, err := r.lookup(moduleID, accessID)
	return s, err == nil
}

// Groups returns the module's settings in declaration order.
func (r *Registry) Groups(moduleID string) []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.modules[moduleID]
	if !ok {
		return nil
	}
	return cloneGroups(ms.groups)
}

// Describe returns the renderer payload for the module's settings.
func (r *Registry) Describe(moduleID string) ([]GroupDescriptor, bool) {
	r.mu.RLock()
	ms, ok := r.modules[moduleID]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	groups := cloneGroups(ms.groups)
	r.mu.RUnlock()

	return describe(groups), true
}

// Snapshot returns current values keyed by access id.
func (r *Registry) Snapshot(moduleID string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.modules[moduleID]
	if !ok {
		return nil
	}
	values := make(map[string]any, len(ms.byID))
	for id, s := range ms.byID {
		values[id] = s.Value()
	}
	return values
}

// Modules returns the sorted ids of registered modules.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unregister drops a module's settings. Persisted values are kept.
func (r *Registry) Unregister(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, moduleID)
}

func cloneGroups(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Label: g.Label, Settings: append([]setting.Setting(nil), g.Settings...)}
	}
	return out
}
