// Package ipc provides the per-module endpoint a module process uses to talk
// to its own renderer.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"modhost/pkg/bus"
)

var ErrClosed = errors.New("ipc channel closed")

// Channel is bound to one module id. Everything it sends is tagged with that
// id and it only ever receives messages addressed to it. Send is safe for
// concurrent use.
type Channel struct {
	bus      *bus.MessageBus
	moduleID string
	inbound  <-chan bus.Message
	closed   atomic.Bool
}

// Open attaches a channel for moduleID to mb.
func Open(mb *bus.MessageBus, moduleID string) (*Channel, error) {
	if mb == nil {
		return nil, errors.New("message bus is required")
	}
	if strings.TrimSpace(moduleID) == "" {
		return nil, errors.New("module id is required")
	}

	inbound, err := mb.Attach(moduleID)
	if err != nil {
		return nil, fmt.Errorf("open channel for %s: %w", moduleID, err)
	}

	return &Channel{bus: mb, moduleID: moduleID, inbound: inbound}, nil
}

func (c *Channel) ModuleID() string {
	return c.moduleID
}

// Inbound yields the renderer messages addressed to this module, in arrival order.
func (c *Channel) Inbound() <-chan bus.Message {
	return c.inbound
}

// Send queues an event for the renderer. Delivery is not acknowledged.
func (c *Channel) Send(ctx context.Context, eventType string, payload ...any) error {
	if c.closed.Load() {
		return ErrClosed
	}

	msg := bus.NewMessage(c.moduleID, eventType, payload...)
	if err := c.bus.PublishOutbound(ctx, msg); err != nil {
		return fmt.Errorf("send %s/%s: %w", c.moduleID, eventType, err)
	}
	return nil
}

// Close detaches the channel; later sends fail with ErrClosed.
func (c *Channel) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.bus.Detach(c.moduleID)
	}
}
