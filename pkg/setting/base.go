package setting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// base carries the state shared by every setting kind. The concrete kind
// supplies check, which is always called with mu held.
type base[T any] struct {
	mu sync.RWMutex

	kind        Kind
	accessID    string
	name        string
	description string

	def        T
	hasDefault bool
	value      T
	assigned   bool

	errs   []error
	check  func(T) error
	coerce func(any) (T, error)
}

func (b *base[T]) init(kind Kind, check func(T) error, coerce func(any) (T, error)) {
	b.kind = kind
	b.check = check
	b.coerce = coerce
	if b.coerce == nil {
		b.coerce = assertAs[T]
	}
}

func (b *base[T]) item() {}

func (b *base[T]) Kind() Kind {
	return b.kind
}

func (b *base[T]) AccessID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accessIDLocked()
}

func (b *base[T]) accessIDLocked() string {
	if b.accessID != "" {
		return b.accessID
	}

	return DeriveAccessID(b.name)
}

func (b *base[T]) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.name == "" {
		return b.accessID
	}

	return b.name
}

func (b *base[T]) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// Get returns the current typed value.
func (b *base[T]) Get() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

func (b *base[T]) Value() any {
	return b.Get()
}

func (b *base[T]) DefaultValue() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.def
}

// Set validates and stores a typed value.
func (b *base[T]) Set(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, b.accessIDLocked(), err)
	}

	b.value = v
	b.assigned = true
	return nil
}

func (b *base[T]) Assign(v any) error {
	typed, err := b.coerce(v)
	if err != nil {
		return err
	}

	return b.Set(typed)
}

// Reset restores the default value.
func (b *base[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = b.def
	b.assigned = false
}

func (b *base[T]) Encode() (string, error) {
	raw, err := json.Marshal(b.Get())
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", b.AccessID(), err)
	}

	return string(raw), nil
}

func (b *base[T]) Decode(raw string) error {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTypeMismatch, b.AccessID(), err)
	}

	return b.Set(v)
}

// Err returns the builder errors collected so far.
func (b *base[T]) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return errors.Join(b.errs...)
}

func (b *base[T]) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	errs := append([]error(nil), b.errs...)
	id := b.accessIDLocked()
	switch {
	case id == "":
		errs = append(errs, ErrMissingName)
	case IsReservedAccessID(id):
		errs = append(errs, fmt.Errorf("%w: %s", ErrReservedAccessID, id))
	default:
		b.accessID = id
	}
	if !b.hasDefault {
		errs = append(errs, ErrMissingDefault)
	}

	return errors.Join(errs...)
}

func (b *base[T]) setName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = strings.TrimSpace(name)
}

func (b *base[T]) setDescription(description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = description
}

func (b *base[T]) setAccessID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessID = strings.TrimSpace(id)
}

func (b *base[T]) setDefault(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(v); err != nil {
		b.errs = append(b.errs, fmt.Errorf("%w: default %v: %w", ErrConstraint, v, err))
	}
	b.def = v
	b.hasDefault = true
	if !b.assigned {
		b.value = v
	}
}

// update applies a constraint change and re-checks the default and any
// assigned value against it.
func (b *base[T]) update(apply func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := apply(); err != nil {
		b.errs = append(b.errs, err)
		return
	}
	if b.hasDefault {
		if err := b.check(b.def); err != nil {
			b.errs = append(b.errs, fmt.Errorf("%w: default %v: %w", ErrConstraint, b.def, err))
		}
	}
	if b.assigned {
		if err := b.check(b.value); err != nil {
			b.errs = append(b.errs, fmt.Errorf("%w: value %v: %w", ErrConstraint, b.value, err))
		}
	}
}

func (b *base[T]) descriptor(ui UIMode) Descriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	name := b.name
	if name == "" {
		name = b.accessID
	}

	return Descriptor{
		AccessID:    b.accessIDLocked(),
		Name:        name,
		Description: b.description,
		Kind:        b.kind,
		UI:          ui,
		Value:       b.value,
		Default:     b.def,
	}
}

func assertAs[T any](v any) (T, error) {
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: want %T, got %T", ErrTypeMismatch, zero, v)
	}

	return typed, nil
}

func noCheck[T any](T) error {
	return nil
}
