package module

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized  = errors.New("module process is not initialized")
	ErrDuplicateModule = errors.New("module id already loaded")
	ErrUnknownModule   = errors.New("module not loaded")
	ErrInvalidIdentity = errors.New("invalid module identity")
	ErrEventConflict   = errors.New("module event type conflicts with a reserved name or setting")
	ErrAlreadyRunning  = errors.New("already running")
)

// HandlerError reports a module handler that returned an error or panicked.
// The process stays initialized and keeps serving events.
type HandlerError struct {
	ModuleID  string
	EventType string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("module %s: handle %q: %v", e.ModuleID, e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// RoutingError reports an inbound message that could not be routed to a
// loaded module. The message is dropped.
type RoutingError struct {
	ModuleID  string
	EventType string
	Err       error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("route %q to module %q: %v", e.EventType, e.ModuleID, e.Err)
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}
