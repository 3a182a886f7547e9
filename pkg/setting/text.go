package setting

import (
	"fmt"
	"regexp"
)

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// String is a free-text setting.
type String struct {
	base[string]
}

func NewString() *String {
	s := &String{}
	s.init(KindString, noCheck[string], nil)
	return s
}

func (s *String) SetName(name string) *String {
	s.setName(name)
	return s
}

func (s *String) SetDescription(description string) *String {
	s.setDescription(description)
	return s
}

func (s *String) SetAccessID(id string) *String {
	s.setAccessID(id)
	return s
}

func (s *String) SetDefault(v string) *String {
	s.setDefault(v)
	return s
}

func (s *String) Descriptor() Descriptor {
	return s.descriptor(UIText)
}

// HexColor holds a CSS hex color such as "#74f287" or "#fff".
type HexColor struct {
	base[string]
}

func NewHexColor() *HexColor {
	s := &HexColor{}
	s.init(KindColor, validateHexColor, nil)
	return s
}

func (s *HexColor) SetName(name string) *HexColor {
	s.setName(name)
	return s
}

func (s *HexColor) SetDescription(description string) *HexColor {
	s.setDescription(description)
	return s
}

func (s *HexColor) SetAccessID(id string) *HexColor {
	s.setAccessID(id)
	return s
}

func (s *HexColor) SetDefault(v string) *HexColor {
	s.setDefault(v)
	return s
}

func (s *HexColor) Descriptor() Descriptor {
	return s.descriptor(UIColor)
}

func validateHexColor(v string) error {
	if !hexColorPattern.MatchString(v) {
		return fmt.Errorf("%q is not a hex color", v)
	}
	return nil
}
