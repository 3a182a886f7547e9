// Package channel defines how renderer transports plug into the host.
package channel

import (
	"context"

	"modhost/pkg/bus"
)

// Handler routes one inbound renderer message into the host. It returns a
// *module.RoutingError when no module with msg.ModuleID is loaded.
type Handler func(context.Context, bus.Message) error

// Adapter bridges one renderer transport (for example a WebSocket server or
// the terminal panel) into modhost. Run forwards renderer messages through
// handler and delivers every message read from outbound to the renderer of
// msg.ModuleID, until ctx is done.
type Adapter interface {
	Name() string
	Run(ctx context.Context, handler Handler, outbound <-chan bus.Message) error
}
