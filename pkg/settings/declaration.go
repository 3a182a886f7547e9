package settings

import (
	"errors"
	"fmt"

	"modhost/pkg/setting"
)

// Group is one labeled run of settings. Settings declared before the first
// label land in a group with an empty label.
type Group struct {
	Label    string
	Settings []setting.Setting
}

// GroupDescriptor is the renderer view of a Group.
type GroupDescriptor struct {
	Label    string               `json:"label,omitempty"`
	Settings []setting.Descriptor `json:"settings"`
}

// Validate checks a module's settings declaration without registering it.
// Every problem is reported as a *setting.ConstructionError, joined.
func Validate(moduleID string, items []setting.Item) ([]Group, error) {
	var (
		groups   []Group
		errs     []error
		current  *Group
		declared int
		seen     = make(map[string]struct{})
	)

	closeGroup := func() {
		if current == nil {
			return
		}
		if current.Label != "" && declared == 0 {
			errs = append(errs, &setting.ConstructionError{
				ModuleID: moduleID,
				Err:      fmt.Errorf("%w: %q", setting.ErrEmptyGroup, current.Label),
			})
		}
		if len(current.Settings) > 0 {
			groups = append(groups, *current)
		}
		current = nil
		declared = 0
	}

	for i, item := range items {
		switch it := item.(type) {
		case setting.Group:
			closeGroup()
			current = &Group{Label: string(it)}
		case setting.Setting:
			if current == nil {
				current = &Group{}
			}
			declared++
			if err := it.Finalize(); err != nil {
				errs = append(errs, &setting.ConstructionError{ModuleID: moduleID, AccessID: it.AccessID(), Err: err})
				continue
			}
			id := it.AccessID()
			if _, dup := seen[id]; dup {
				errs = append(errs, &setting.ConstructionError{ModuleID: moduleID, AccessID: id, Err: setting.ErrDuplicateKey})
				continue
			}
			seen[id] = struct{}{}
			current.Settings = append(current.Settings, it)
		default:
			errs = append(errs, &setting.ConstructionError{ModuleID: moduleID, Err: fmt.Errorf("%w: %T at %d", setting.ErrUnknownItem, item, i)})
		}
	}
	closeGroup()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return groups, nil
}

func describe(groups []Group) []GroupDescriptor {
	result := make([]GroupDescriptor, 0, len(groups))
	for _, g := range groups {
		d := GroupDescriptor{Label: g.Label, Settings: make([]setting.Descriptor, 0, len(g.Settings))}
		for _, s := range g.Settings {
			d.Settings = append(d.Settings, s.Descriptor())
		}
		result = append(result, d)
	}
	return result
}
