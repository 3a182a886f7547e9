package module

import "modhost/pkg/bus"

// Event is a decoded inbound renderer message.
type Event interface {
	Type() string
}

// InitEvent is the renderer's signal that it is ready.
type InitEvent struct{}

// SettingEvent carries a renderer-originated value for one setting.
type SettingEvent struct {
	AccessID string
	Value    any
}

// CustomEvent is a module-declared event type.
type CustomEvent struct {
	Name    string
	Payload []any
}

// UnknownEvent is any event type nobody declared. It is ignored.
type UnknownEvent struct {
	Name    string
	Payload []any
}

func (InitEvent) Type() string { return EventInit }

func (e SettingEvent) Type() string { return e.AccessID }

func (e CustomEvent) Type() string { return e.Name }

func (e UnknownEvent) Type() string { return e.Name }

// Arg returns payload element i, or nil when absent.
func (e CustomEvent) Arg(i int) any {
	if i < 0 || i >= len(e.Payload) {
		return nil
	}
	return e.Payload[i]
}

// decode classifies msg against the module's declared settings and events.
func decode(msg bus.Message, settingIDs, customEvents map[string]struct{}) Event {
	if msg.EventType == EventInit {
		return InitEvent{}
	}
	if _, ok := settingIDs[msg.EventType]; ok {
		var value any
		if len(msg.Payload) > 0 {
			value = msg.Payload[0]
		}
		return SettingEvent{AccessID: msg.EventType, Value: value}
	}
	if _, ok := customEvents[msg.EventType]; ok {
		return CustomEvent{Name: msg.EventType, Payload: msg.Payload}
	}
	return UnknownEvent{Name: msg.EventType, Payload: msg.Payload}
}
