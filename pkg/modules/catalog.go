// Package modules is the catalog of modules compiled into modhost.
package modules

import (
	"fmt"
	"sort"
	"strings"

	"modhost/pkg/module"
	"modhost/pkg/modules/sample"
	"modhost/pkg/resources"
)

// Deps are the host services handed to built-in modules.
type Deps struct {
	Resources *resources.Service
}

type factory func(Deps) module.Module

var builtin = map[string]factory{
	sample.ID: func(d Deps) module.Module { return sample.New(d.Resources) },
}

// IDs returns the ids of all built-in modules, sorted.
func IDs() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builtin instantiates every built-in module in id order.
func Builtin(deps Deps) []module.Module {
	mods, _ := Select(IDs(), deps)
	return mods
}

// Select instantiates the named modules in the given order. An empty list
// selects every built-in module.
func Select(enabled []string, deps Deps) ([]module.Module, error) {
	if len(enabled) == 0 {
		enabled = IDs()
	}

	mods := make([]module.Module, 0, len(enabled))
	seen := make(map[string]struct{}, len(enabled))
	for _, raw := range enabled {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		build, ok := builtin[id]
		if !ok {
			return nil, fmt.Errorf("unknown module %q (available: %s)", id, strings.Join(IDs(), ", "))
		}
		mods = append(mods, build(deps))
	}
	return mods, nil
}
