package setting

import (
	"errors"
	"fmt"
)

var (
	ErrMissingName      = errors.New("setting needs a name or access id")
	ErrMissingDefault   = errors.New("setting has no default value")
	ErrInvalidRange     = errors.New("invalid range")
	ErrInvalidStep      = errors.New("step must be positive")
	ErrConstraint       = errors.New("value violates declared constraints")
	ErrEmptyOptions     = errors.New("choice needs at least one option")
	ErrDuplicateOption  = errors.New("duplicate choice option")
	ErrDuplicateKey     = errors.New("duplicate access id")
	ErrEmptyGroup       = errors.New("group label has no settings")
	ErrReservedAccessID = errors.New("access id is reserved")
	ErrUnknownItem      = errors.New("unknown settings item")
	ErrUnsupportedUI    = errors.New("presentation mode not supported for this kind")
	ErrInvalidValue     = errors.New("invalid setting value")
	ErrTypeMismatch     = errors.New("setting value has the wrong type")
)

// ConstructionError reports a settings declaration that cannot be registered.
// It aborts the load of the owning module only.
type ConstructionError struct {
	ModuleID string
	AccessID string
	Err      error
}

func (e *ConstructionError) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.ModuleID != "" && e.AccessID != "":
		return fmt.Sprintf("module %s: setting %q: %v", e.ModuleID, e.AccessID, e.Err)
	case e.ModuleID != "":
		return fmt.Sprintf("module %s: settings: %v", e.ModuleID, e.Err)
	case e.AccessID != "":
		return fmt.Sprintf("setting %q: %v", e.AccessID, e.Err)
	default:
		return fmt.Sprintf("settings: %v", e.Err)
	}
}

func (e *ConstructionError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
