package setting

import (
	"encoding/json"
	"fmt"
	"math"
)

// Number is a numeric setting with optional bounds, a step hint and one of
// three presentation modes (stepper, plain input, slider).
//
// Step only drives increment controls in renderers; assigned values are
// not snapped to it.
type Number struct {
	base[float64]

	min  *float64
	max  *float64
	step float64
	ui   UIMode
}

func NewNumber() *Number {
	s := &Number{ui: UIStepper}
	s.init(KindNumber, s.validate, coerceNumber)
	return s
}

func (s *Number) SetName(name string) *Number {
	s.setName(name)
	return s
}

func (s *Number) SetDescription(description string) *Number {
	s.setDescription(description)
	return s
}

func (s *Number) SetAccessID(id string) *Number {
	s.setAccessID(id)
	return s
}

func (s *Number) SetDefault(v float64) *Number {
	s.setDefault(v)
	return s
}

func (s *Number) SetMin(n float64) *Number {
	s.update(func() error {
		if math.IsNaN(n) {
			return fmt.Errorf("%w: min is NaN", ErrInvalidRange)
		}
		if s.max != nil && n > *s.max {
			return fmt.Errorf("%w: min %v above max %v", ErrInvalidRange, n, *s.max)
		}
		s.min = &n
		return nil
	})
	return s
}

func (s *Number) SetMax(n float64) *Number {
	s.update(func() error {
		if math.IsNaN(n) {
			return fmt.Errorf("%w: max is NaN", ErrInvalidRange)
		}
		if s.min != nil && n < *s.min {
			return fmt.Errorf("%w: max %v below min %v", ErrInvalidRange, n, *s.min)
		}
		s.max = &n
		return nil
	})
	return s
}

// SetRange sets both bounds; lo must not exceed hi.
func (s *Number) SetRange(lo, hi float64) *Number {
	s.update(func() error {
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, lo, hi)
		}
		s.min = &lo
		s.max = &hi
		return nil
	})
	return s
}

func (s *Number) SetStep(n float64) *Number {
	s.update(func() error {
		if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidStep, n)
		}
		s.step = n
		return nil
	})
	return s
}

// UseNonIncrementableUI renders the setting as a plain numeric input.
func (s *Number) UseNonIncrementableUI() *Number {
	s.mu.Lock()
	s.ui = UIPlain
	s.mu.Unlock()
	return s
}

// UseRangeSliderUI renders the setting as a slider.
func (s *Number) UseRangeSliderUI() *Number {
	s.mu.Lock()
	s.ui = UISlider
	s.mu.Unlock()
	return s
}

// Bounds returns the declared limits; ok is false when a bound is absent.
func (s *Number) Bounds() (lo float64, hasLo bool, hi float64, hasHi bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.min != nil {
		lo, hasLo = *s.min, true
	}
	if s.max != nil {
		hi, hasHi = *s.max, true
	}
	return lo, hasLo, hi, hasHi
}

// Step returns the increment hint, 1 when none was declared.
func (s *Number) Step() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.step == 0 {
		return 1
	}

	return s.step
}

// UI returns the presentation mode.
func (s *Number) UI() UIMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// Nudge returns the value moved by n steps and clamped to the bounds.
func (s *Number) Nudge(n int) float64 {
	next := s.Get() + float64(n)*s.Step()

	lo, hasLo, hi, hasHi := s.Bounds()
	if hasLo && next < lo {
		next = lo
	}
	if hasHi && next > hi {
		next = hi
	}
	return next
}

func (s *Number) Descriptor() Descriptor {
	s.mu.RLock()
	ui := s.ui
	var lo, hi, step *float64
	if s.min != nil {
		v := *s.min
		lo = &v
	}
	if s.max != nil {
		v := *s.max
		hi = &v
	}
	if s.step != 0 {
		v := s.step
		step = &v
	}
	s.mu.RUnlock()

	d := s.descriptor(ui)
	d.Min, d.Max, d.Step = lo, hi, step
	return d
}

func (s *Number) validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%v is not a finite number", v)
	}
	if s.min != nil && v < *s.min {
		return fmt.Errorf("%v is less than minimum %v", v, *s.min)
	}
	if s.max != nil && v > *s.max {
		return fmt.Errorf("%v is greater than maximum %v", v, *s.max)
	}
	return nil
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: want number, got %T", ErrTypeMismatch, v)
	}
}
