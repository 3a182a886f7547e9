package bus

import "github.com/google/uuid"

// Message is one IPC frame between a module's back-end and its renderer.
// ID only correlates log lines.
type Message struct {
	ID        string `json:"id,omitempty"`
	ModuleID  string `json:"moduleId"`
	EventType string `json:"eventType"`
	Payload   []any  `json:"payload,omitempty"`
}

// NewMessage builds a message with a fresh correlation id.
func NewMessage(moduleID string, eventType string, payload ...any) Message {
	return Message{
		ID:        uuid.NewString(),
		ModuleID:  moduleID,
		EventType: eventType,
		Payload:   payload,
	}
}
