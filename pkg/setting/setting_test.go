package setting

import (
	"errors"
	"testing"
)

func TestRangeStepAssignments(t *testing.T) {
	s := NewNumber().SetName("Range").SetRange(5, 25).SetStep(5).SetDefault(10)
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	if err := s.Assign(25.0); err != nil {
		t.Fatalf("Assign(25) error: %v", err)
	}
	if got := s.Get(); got != 25 {
		t.Fatalf("value = %v, want 25", got)
	}

	err := s.Assign(30.0)
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Assign(30) error = %v, want ErrInvalidValue", err)
	}
	if got := s.Get(); got != 25 {
		t.Fatalf("value after rejected assign = %v, want 25", got)
	}
}

func TestStepIsOnlyAHint(t *testing.T) {
	s := NewNumber().SetName("Range").SetRange(5, 25).SetStep(5).SetDefault(10)
	if err := s.Assign(7); err != nil {
		t.Fatalf("Assign(7) error: %v", err)
	}
	if got := s.Get(); got != 7 {
		t.Fatalf("value = %v, want 7", got)
	}
}

func TestMinBeforeDefaultIsValid(t *testing.T) {
	s := NewNumber().SetName("Min").SetMin(15).SetDefault(25)
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if got := s.Get(); got != 25 {
		t.Fatalf("value = %v, want 25", got)
	}
}

func TestDefaultViolatingLaterMinFails(t *testing.T) {
	s := NewNumber().SetName("Min").SetDefault(10).SetMin(15)
	err := s.Finalize()
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("Finalize error = %v, want ErrConstraint", err)
	}
}

func TestInvalidRangeAndStep(t *testing.T) {
	s := NewNumber().SetName("Bad").SetRange(10, 5).SetStep(0).SetDefault(1)
	err := s.Finalize()
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}
	if !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("error = %v, want ErrInvalidStep", err)
	}
}

func TestMinAboveMaxIsInvalidRange(t *testing.T) {
	s := NewNumber().SetName("Bad").SetMax(10).SetMin(20).SetDefault(5)
	if err := s.Finalize(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}
}

func TestMissingDefault(t *testing.T) {
	s := NewBoolean().SetName("Flag")
	if err := s.Finalize(); !errors.Is(err, ErrMissingDefault) {
		t.Fatalf("error = %v, want ErrMissingDefault", err)
	}
}

func TestMissingName(t *testing.T) {
	s := NewString().SetDefault("x")
	if err := s.Finalize(); !errors.Is(err, ErrMissingName) {
		t.Fatalf("error = %v, want ErrMissingName", err)
	}
}

func TestReservedAccessID(t *testing.T) {
	s := NewBoolean().SetName("Init").SetDefault(true)
	if err := s.Finalize(); !errors.Is(err, ErrReservedAccessID) {
		t.Fatalf("error = %v, want ErrReservedAccessID", err)
	}
}

func TestDeriveAccessID(t *testing.T) {
	tests := map[string]string{
		"Sample Setting":       "sample_setting",
		"  Range -- Slider  ":  "range_slider",
		"Color Setting (hex)":  "color_setting_hex",
		"already_snake":        "already_snake",
		"":                     "",
		"Numeric Setting 100%": "numeric_setting_100",
	}
	for in, want := range tests {
		if got := DeriveAccessID(in); got != want {
			t.Fatalf("DeriveAccessID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExplicitAccessIDWins(t *testing.T) {
	s := NewBoolean().SetName("Sample Boolean").SetAccessID("sample_bool").SetDefault(false)
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if got := s.AccessID(); got != "sample_bool" {
		t.Fatalf("AccessID = %q, want sample_bool", got)
	}
}

func TestChoiceDefaultMustBeAnOption(t *testing.T) {
	s := NewChoice().SetName("Fruit").SetDefault("Mango").AddOptions("Apple", "Banana")
	if err := s.Finalize(); !errors.Is(err, ErrConstraint) {
		t.Fatalf("error = %v, want ErrConstraint", err)
	}
}

func TestChoiceRejectsDuplicateAndEmptyOptions(t *testing.T) {
	dup := NewChoice().SetName("Fruit").AddOptions("Apple", "Apple").SetDefault("Apple")
	if err := dup.Finalize(); !errors.Is(err, ErrDuplicateOption) {
		t.Fatalf("error = %v, want ErrDuplicateOption", err)
	}

	empty := NewChoice().SetName("Fruit").SetDefault("Apple")
	if err := empty.Finalize(); !errors.Is(err, ErrEmptyOptions) {
		t.Fatalf("error = %v, want ErrEmptyOptions", err)
	}
}

func TestChoiceAssignAndCycle(t *testing.T) {
	s := NewChoice().SetName("Fruit").AddOptions("Apple", "Orange", "Banana", "Kiwi").SetDefault("Banana")
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	if err := s.Assign("Grape"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Assign(Grape) error = %v, want ErrInvalidValue", err)
	}
	if got := s.Get(); got != "Banana" {
		t.Fatalf("value = %q, want Banana", got)
	}
	if got := s.Cycle(2); got != "Apple" {
		t.Fatalf("Cycle(2) = %q, want Apple", got)
	}
	if got := s.Cycle(-1); got != "Orange" {
		t.Fatalf("Cycle(-1) = %q, want Orange", got)
	}
	if got := s.Cycle(-3); got != "Kiwi" {
		t.Fatalf("Cycle(-3) = %q, want Kiwi", got)
	}
}

func TestPresentationModeLastCallWins(t *testing.T) {
	s := NewNumber().UseRangeSliderUI().UseNonIncrementableUI()
	if got := s.UI(); got != UIPlain {
		t.Fatalf("UI = %q, want %q", got, UIPlain)
	}
	if got := NewNumber().UI(); got != UIStepper {
		t.Fatalf("default UI = %q, want %q", got, UIStepper)
	}
	if got := NewChoice().UseDropdown().UI(); got != UIDropdown {
		t.Fatalf("choice UI = %q, want %q", got, UIDropdown)
	}
}

func TestAssignTypeMismatchLeavesValue(t *testing.T) {
	s := NewBoolean().SetName("Flag").SetDefault(true)
	if err := s.Assign("yes"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
	if got := s.Get(); !got {
		t.Fatal("value changed after type mismatch")
	}
}

func TestHexColor(t *testing.T) {
	s := NewHexColor().SetName("Color").SetDefault("#74f287")
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if err := s.Assign("#FFF"); err != nil {
		t.Fatalf("Assign(#FFF) error: %v", err)
	}
	if err := s.Assign("red"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Assign(red) error = %v, want ErrInvalidValue", err)
	}
	if got := s.Get(); got != "#FFF" {
		t.Fatalf("value = %q, want #FFF", got)
	}

	bad := NewHexColor().SetName("Color").SetDefault("blue")
	if err := bad.Finalize(); !errors.Is(err, ErrConstraint) {
		t.Fatalf("error = %v, want ErrConstraint", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	s := NewNumber().SetName("Max").SetMax(100).SetDefault(45)
	if err := s.Assign(60); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if raw != "60" {
		t.Fatalf("Encode = %q, want 60", raw)
	}

	other := NewNumber().SetName("Max").SetMax(100).SetDefault(45)
	if err := other.Decode(raw); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got := other.Get(); got != 60 {
		t.Fatalf("decoded value = %v, want 60", got)
	}

	if err := other.Decode("500"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Decode(500) error = %v, want ErrInvalidValue", err)
	}
	if err := other.Decode(`"text"`); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Decode(text) error = %v, want ErrTypeMismatch", err)
	}
	if got := other.Get(); got != 60 {
		t.Fatalf("value after failed decode = %v, want 60", got)
	}
}

func TestNudgeClampsToBounds(t *testing.T) {
	s := NewNumber().SetName("Range").SetRange(5, 25).SetStep(5).SetDefault(20)
	if got := s.Nudge(1); got != 25 {
		t.Fatalf("Nudge(1) = %v, want 25", got)
	}
	if got := s.Nudge(3); got != 25 {
		t.Fatalf("Nudge(3) = %v, want 25", got)
	}
	if got := s.Nudge(-10); got != 5 {
		t.Fatalf("Nudge(-10) = %v, want 5", got)
	}
}

func TestDescriptor(t *testing.T) {
	s := NewNumber().SetName("Slider").SetRange(0, 10).SetStep(2).UseRangeSliderUI().SetDefault(4)
	d := s.Descriptor()
	if d.AccessID != "slider" || d.Kind != KindNumber || d.UI != UISlider {
		t.Fatalf("descriptor = %+v", d)
	}
	if d.Min == nil || *d.Min != 0 || d.Max == nil || *d.Max != 10 || d.Step == nil || *d.Step != 2 {
		t.Fatalf("descriptor bounds = %v %v %v", d.Min, d.Max, d.Step)
	}

	c := NewChoice().SetName("Fruit").AddOptions("A", "B").SetDefault("B").Descriptor()
	if len(c.Options) != 2 || c.UI != UIRadio || c.Value != "B" {
		t.Fatalf("choice descriptor = %+v", c)
	}
}

func TestResetRestoresDefault(t *testing.T) {
	s := NewString().SetName("Text").SetDefault("Example Text")
	if err := s.Assign("changed"); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	s.Reset()
	if got := s.Get(); got != "Example Text" {
		t.Fatalf("value = %q, want default", got)
	}
}
