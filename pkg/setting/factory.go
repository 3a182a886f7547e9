package setting

import "fmt"

// Common holds the metadata every factory config shares.
type Common struct {
	AccessID    string `json:"accessId,omitempty" yaml:"access_id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type BooleanConfig struct {
	Common  `yaml:",inline"`
	Default *bool `json:"default" yaml:"default"`
}

type NumberConfig struct {
	Common  `yaml:",inline"`
	Default *float64 `json:"default" yaml:"default"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step    float64  `json:"step,omitempty" yaml:"step,omitempty"`
	UI      UIMode   `json:"ui,omitempty" yaml:"ui,omitempty"`
}

type ChoiceConfig struct {
	Common  `yaml:",inline"`
	Default *string  `json:"default" yaml:"default"`
	Options []string `json:"options" yaml:"options"`
	UI      UIMode   `json:"ui,omitempty" yaml:"ui,omitempty"`
}

type StringConfig struct {
	Common  `yaml:",inline"`
	Default *string `json:"default" yaml:"default"`
}

type HexColorConfig struct {
	Common  `yaml:",inline"`
	Default *string `json:"default" yaml:"default"`
}

// NewBooleanFrom builds a finalized Boolean or reports why it cannot.
func NewBooleanFrom(cfg BooleanConfig) (*Boolean, error) {
	s := NewBoolean().SetName(cfg.Name).SetDescription(cfg.Description).SetAccessID(cfg.AccessID)
	if cfg.Default != nil {
		s.SetDefault(*cfg.Default)
	}
	return finalized(s)
}

// NewNumberFrom builds a finalized Number or reports why it cannot.
func NewNumberFrom(cfg NumberConfig) (*Number, error) {
	s := NewNumber().SetName(cfg.Name).SetDescription(cfg.Description).SetAccessID(cfg.AccessID)
	switch {
	case cfg.Min != nil && cfg.Max != nil:
		s.SetRange(*cfg.Min, *cfg.Max)
	case cfg.Min != nil:
		s.SetMin(*cfg.Min)
	case cfg.Max != nil:
		s.SetMax(*cfg.Max)
	}
	if cfg.Step != 0 {
		s.SetStep(cfg.Step)
	}
	switch cfg.UI {
	case "", UIStepper:
	case UIPlain:
		s.UseNonIncrementableUI()
	case UISlider:
		s.UseRangeSliderUI()
	default:
		return nil, constructionError(s, fmt.Errorf("%w: %s", ErrUnsupportedUI, cfg.UI))
	}
	if cfg.Default != nil {
		s.SetDefault(*cfg.Default)
	}
	return finalized(s)
}

// NewChoiceFrom builds a finalized Choice or reports why it cannot.
func NewChoiceFrom(cfg ChoiceConfig) (*Choice, error) {
	s := NewChoice().SetName(cfg.Name).SetDescription(cfg.Description).SetAccessID(cfg.AccessID)
	if len(cfg.Options) > 0 {
		s.AddOptions(cfg.Options...)
	}
	switch cfg.UI {
	case "", UIRadio:
	case UIDropdown:
		s.UseDropdown()
	default:
		return nil, constructionError(s, fmt.Errorf("%w: %s", ErrUnsupportedUI, cfg.UI))
	}
	if cfg.Default != nil {
		s.SetDefault(*cfg.Default)
	}
	return finalized(s)
}

// NewStringFrom builds a finalized String or reports why it cannot.
func NewStringFrom(cfg StringConfig) (*String, error) {
	s := NewString().SetName(cfg.Name).SetDescription(cfg.Description).SetAccessID(cfg.AccessID)
	if cfg.Default != nil {
		s.SetDefault(*cfg.Default)
	}
	return finalized(s)
}

// NewHexColorFrom builds a finalized HexColor or reports why it cannot.
func NewHexColorFrom(cfg HexColorConfig) (*HexColor, error) {
	s := NewHexColor().SetName(cfg.Name).SetDescription(cfg.Description).SetAccessID(cfg.AccessID)
	if cfg.Default != nil {
		s.SetDefault(*cfg.Default)
	}
	return finalized(s)
}

func finalized[S Setting](s S) (S, error) {
	if err := s.Finalize(); err != nil {
		var zero S
		return zero, constructionError(s, err)
	}
	return s, nil
}

func constructionError(s Setting, err error) error {
	return &ConstructionError{AccessID: s.AccessID(), Err: err}
}
