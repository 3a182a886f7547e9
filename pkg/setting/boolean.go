package setting

// Boolean is an on/off setting rendered as a toggle.
type Boolean struct {
	base[bool]
}

func NewBoolean() *Boolean {
	s := &Boolean{}
	s.init(KindBoolean, noCheck[bool], nil)
	return s
}

func (s *Boolean) SetName(name string) *Boolean {
	s.setName(name)
	return s
}

func (s *Boolean) SetDescription(description string) *Boolean {
	s.setDescription(description)
	return s
}

func (s *Boolean) SetAccessID(id string) *Boolean {
	s.setAccessID(id)
	return s
}

func (s *Boolean) SetDefault(v bool) *Boolean {
	s.setDefault(v)
	return s
}

func (s *Boolean) Descriptor() Descriptor {
	return s.descriptor(UIToggle)
}
