package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

const defaultBufferSize = 100

var (
	ErrClosed          = errors.New("message bus closed")
	ErrUnknownModule   = errors.New("no module attached")
	ErrAlreadyAttached = errors.New("module already attached")
)

// MessageBus routes inbound messages into one queue per attached module and
// carries every module's outbound messages on a single ordered stream.
type MessageBus struct {
	queueSize int
	outbound  chan Message
	modules   map[string]*attachment

	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

type attachment struct {
	inbound chan Message
	done    chan struct{}
}

type Option func(*MessageBus)

// WithQueueSize sets the buffer of each module queue and the outbound stream.
func WithQueueSize(n int) Option {
	return func(mb *MessageBus) {
		if n > 0 {
			mb.queueSize = n
		}
	}
}

func NewMessageBus(opts ...Option) *MessageBus {
	mb := &MessageBus{
		queueSize:        defaultBufferSize,
		modules:          make(map[string]*attachment),
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(mb)
	}
	mb.outbound = make(chan Message, mb.queueSize)

	return mb
}

// Attach creates the inbound queue for moduleID.
func (mb *MessageBus) Attach(moduleID string) (<-chan Message, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	select {
	case <-mb.done:
		return nil, ErrClosed
	default:
	}

	if _, exists := mb.modules[moduleID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAttached, moduleID)
	}

	att := &attachment{
		inbound: make(chan Message, mb.queueSize),
		done:    make(chan struct{}),
	}
	mb.modules[moduleID] = att
	return att.inbound, nil
}

// Detach stops routing to moduleID. Messages already queued are discarded.
func (mb *MessageBus) Detach(moduleID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if att, ok := mb.modules[moduleID]; ok {
		close(att.done)
		delete(mb.modules, moduleID)
	}
}

// Attached returns the sorted ids of attached modules.
func (mb *MessageBus) Attached() []string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	ids := make([]string, 0, len(mb.modules))
	for id := range mb.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PublishInbound delivers msg to the queue of msg.ModuleID only. It blocks
// while that queue is full.
func (mb *MessageBus) PublishInbound(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrClosed
	default:
	}

	mb.mu.RLock()
	att, ok := mb.modules[msg.ModuleID]
	mb.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, msg.ModuleID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrClosed
	case <-att.done:
		return fmt.Errorf("%w: %q", ErrUnknownModule, msg.ModuleID)
	case att.inbound <- msg:
		return nil
	}
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrClosed
	case mb.outbound <- msg:
		return nil
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (Message, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return Message{}, false
	case <-mb.done:
		return Message{}, false
	case msg := <-mb.outbound:
		return msg, true
	}
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, att := range mb.modules {
			close(att.done)
			delete(mb.modules, id)
		}
		for id, ch := range mb.eventSubscribers {
			close(ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}
