package setting

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Choice selects one label from an ordered option list, rendered as a
// radio list unless UseDropdown is called.
type Choice struct {
	base[string]

	options []string
	ui      UIMode
}

func NewChoice() *Choice {
	s := &Choice{ui: UIRadio}
	s.init(KindChoice, s.validate, nil)
	return s
}

func (s *Choice) SetName(name string) *Choice {
	s.setName(name)
	return s
}

func (s *Choice) SetDescription(description string) *Choice {
	s.setDescription(description)
	return s
}

func (s *Choice) SetAccessID(id string) *Choice {
	s.setAccessID(id)
	return s
}

func (s *Choice) SetDefault(v string) *Choice {
	s.setDefault(v)
	return s
}

// AddOptions appends option labels. Blank or repeated labels are rejected.
func (s *Choice) AddOptions(labels ...string) *Choice {
	s.update(func() error {
		if len(labels) == 0 {
			return ErrEmptyOptions
		}

		next := slices.Clone(s.options)
		for _, label := range labels {
			if strings.TrimSpace(label) == "" {
				return fmt.Errorf("%w: blank label", ErrEmptyOptions)
			}
			if slices.Contains(next, label) {
				return fmt.Errorf("%w: %q", ErrDuplicateOption, label)
			}
			next = append(next, label)
		}
		s.options = next
		return nil
	})
	return s
}

func (s *Choice) UseDropdown() *Choice {
	s.mu.Lock()
	s.ui = UIDropdown
	s.mu.Unlock()
	return s
}

// Options returns a copy of the option labels.
func (s *Choice) Options() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.options)
}

func (s *Choice) UI() UIMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// Cycle returns the option n places after the current one, wrapping around.
func (s *Choice) Cycle(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.options) == 0 {
		return s.value
	}
	idx := slices.Index(s.options, s.value)
	if idx < 0 {
		idx = 0
	}
	idx = ((idx+n)%len(s.options) + len(s.options)) % len(s.options)
	return s.options[idx]
}

func (s *Choice) Finalize() error {
	err := s.base.Finalize()

	s.mu.RLock()
	empty := len(s.options) == 0
	s.mu.RUnlock()
	if empty {
		err = errors.Join(err, ErrEmptyOptions)
	}
	return err
}

func (s *Choice) Descriptor() Descriptor {
	s.mu.RLock()
	ui := s.ui
	options := slices.Clone(s.options)
	s.mu.RUnlock()

	d := s.descriptor(ui)
	d.Options = options
	return d
}

func (s *Choice) validate(v string) error {
	// Options may still be pending while the builder runs; AddOptions re-checks.
	if len(s.options) == 0 {
		return nil
	}
	if !slices.Contains(s.options, v) {
		return fmt.Errorf("%q is not one of %v", v, s.options)
	}
	return nil
}
