package module

import (
	"errors"
	"fmt"
)

const (
	// StateCreated indicates the process exists but its renderer has not sent init.
	StateCreated State = iota
	// StateInitialized indicates the init handshake completed. It is terminal.
	StateInitialized
)

// ErrInvalidState is returned when a State value is not a defined lifecycle state.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is the lifecycle state of a module process.
	State int32

	// InvalidStateError wraps ErrInvalidState for errors.Is compatibility.
	InvalidStateError struct {
		Value State
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=created, 1=initialized)", e.Value)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Validate returns nil for defined states.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateInitialized:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}
