// Package setting implements the typed, self-validating settings a module
// declares for its renderer.
//
// Every kind is built with a chaining builder whose calls may come in any
// order. Builder mistakes are collected on the setting and reported by
// Finalize, so a declaration either registers completely or not at all.
package setting

import (
	"strings"
	"unicode"
)

// Kind identifies the value type of a setting.
type Kind string

const (
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindChoice  Kind = "choice"
	KindColor   Kind = "color"
)

// UIMode is the presentation hint a renderer uses for a setting.
type UIMode string

const (
	UIToggle   UIMode = "toggle"
	UIStepper  UIMode = "stepper"
	UIPlain    UIMode = "plain"
	UISlider   UIMode = "slider"
	UIRadio    UIMode = "radio"
	UIDropdown UIMode = "dropdown"
	UIText     UIMode = "text"
	UIColor    UIMode = "color"
)

// Reserved event types that a setting access id may not shadow.
var reservedAccessIDs = map[string]struct{}{
	"init":           {},
	"module-details": {},
}

// Item is one entry of a settings declaration: a Group label or a Setting.
type Item interface {
	item()
}

// Group labels every setting that follows it until the next label.
type Group string

func (Group) item() {}

// Setting is the kind-independent view of one typed setting.
type Setting interface {
	Item

	AccessID() string
	Name() string
	Description() string
	Kind() Kind
	Value() any
	DefaultValue() any

	// Assign validates v and stores it; on error the value is unchanged.
	Assign(v any) error
	Encode() (string, error)
	Decode(raw string) error

	Descriptor() Descriptor
	Err() error
	Finalize() error
}

// Descriptor is the presentation payload sent to renderers.
type Descriptor struct {
	AccessID    string   `json:"accessId"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        Kind     `json:"kind"`
	UI          UIMode   `json:"ui"`
	Value       any      `json:"value"`
	Default     any      `json:"default"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Step        *float64 `json:"step,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// DeriveAccessID turns a display name into an access id: lower case with
// runs of other characters collapsed to a single underscore.
func DeriveAccessID(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}

	return b.String()
}

// IsReservedAccessID reports whether id collides with a lifecycle event type.
func IsReservedAccessID(id string) bool {
	_, ok := reservedAccessIDs[id]
	return ok
}
