// Package module runs plugin modules: one Process per module owns the
// init handshake with its renderer, the module's settings and the dispatch
// of renderer events to module code.
package module

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"modhost/pkg/setting"
)

// Event types with fixed meaning on every module channel.
const (
	EventInit          = "init"
	EventModuleDetails = "module-details"
)

// Identity names a module. ID must match what the module's renderer uses
// when addressing it.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	// Folder is the module's resource folder name; defaults to ID.
	Folder string `json:"folderName,omitempty"`
}

func (id Identity) Validate() error {
	if strings.TrimSpace(id.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidIdentity)
	}
	if strings.IndexFunc(id.ID, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: id %q contains whitespace", ErrInvalidIdentity, id.ID)
	}
	if folder := id.FolderName(); folder == "." || folder == ".." || strings.ContainsAny(folder, `/\`) {
		return fmt.Errorf("%w: folder %q is not a single path element", ErrInvalidIdentity, folder)
	}
	return nil
}

// Name returns the display name, falling back to the id.
func (id Identity) Name() string {
	if strings.TrimSpace(id.DisplayName) == "" {
		return id.ID
	}
	return id.DisplayName
}

func (id Identity) FolderName() string {
	if id.Folder == "" {
		return id.ID
	}
	return id.Folder
}

// Details is the module-details payload sent once after init.
type Details struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	FolderName string `json:"folderName"`
}

// Module is the contract a plugin implements. Every method runs on the
// module's own process goroutine; embed Base for no-op defaults.
type Module interface {
	Identity() Identity
	// Settings returns the settings declaration. It is read once, at load.
	Settings() []setting.Item
	// Events lists the custom inbound event types the module handles.
	Events() []string
	// Initialize pushes the initial renderer state after init.
	Initialize(ctx context.Context, p *Process) error
	// RefreshSettings reacts to a persisted setting change.
	RefreshSettings(ctx context.Context, p *Process, s setting.Setting) error
	HandleEvent(ctx context.Context, p *Process, ev CustomEvent) error
}

// Closer is implemented by modules holding resources beyond their process.
type Closer interface {
	Close() error
}

// Base provides no-op implementations of the optional Module methods.
type Base struct{}

func (Base) Settings() []setting.Item { return nil }

func (Base) Events() []string { return nil }

func (Base) Initialize(context.Context, *Process) error { return nil }

func (Base) RefreshSettings(context.Context, *Process, setting.Setting) error { return nil }

func (Base) HandleEvent(context.Context, *Process, CustomEvent) error { return nil }
