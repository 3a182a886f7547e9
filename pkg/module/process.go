package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"modhost/pkg/bus"
	"modhost/pkg/ipc"
	"modhost/pkg/metrics"
	"modhost/pkg/setting"
	"modhost/pkg/settings"
)

const (
	errorBufferSize = 16
	livenessMessage = "Module has not received init from its renderer; verify the renderer uses this module id"
)

// Process is the back-end half of one loaded module. Processes are created
// by Host.Load.
type Process struct {
	module      Module
	identity    Identity
	channel     *ipc.Channel
	bus         *bus.MessageBus
	registry    *settings.Registry
	log         *slog.Logger
	metrics     *metrics.Collector
	resourceDir string
	initTimeout time.Duration

	state atomic.Int32

	// Declaration validated at load; registered on init.
	items        []setting.Item
	settingIDs   map[string]struct{}
	customEvents map[string]struct{}

	mu     sync.RWMutex
	groups []settings.Group

	running atomic.Bool
	errCh   chan error
	done    chan struct{}
}

type processConfig struct {
	module       Module
	identity     Identity
	channel      *ipc.Channel
	bus          *bus.MessageBus
	registry     *settings.Registry
	log          *slog.Logger
	metrics      *metrics.Collector
	resourceDir  string
	initTimeout  time.Duration
	items        []setting.Item
	settingIDs   map[string]struct{}
	customEvents map[string]struct{}
}

func newProcess(cfg processConfig) *Process {
	p := &Process{
		module:       cfg.module,
		identity:     cfg.identity,
		channel:      cfg.channel,
		bus:          cfg.bus,
		registry:     cfg.registry,
		log:          cfg.log.With("component", "module.process", "module", cfg.identity.ID),
		metrics:      cfg.metrics,
		resourceDir:  cfg.resourceDir,
		initTimeout:  cfg.initTimeout,
		items:        cfg.items,
		settingIDs:   cfg.settingIDs,
		customEvents: cfg.customEvents,
		errCh:        make(chan error, errorBufferSize),
		done:         make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	return p
}

func (p *Process) Identity() Identity {
	return p.identity
}

// State returns the lifecycle state (lock-free).
func (p *Process) State() State {
	return State(p.state.Load())
}

// ResourceDir is the module's resource folder on disk.
func (p *Process) ResourceDir() string {
	return p.resourceDir
}

// Logger returns a logger tagged with the module id.
func (p *Process) Logger() *slog.Logger {
	return p.log
}

// Errors delivers handler failures. Failures are dropped when nobody reads.
func (p *Process) Errors() <-chan error {
	return p.errCh
}

// Done is closed when Run returns.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Details returns the module-details payload.
func (p *Process) Details() Details {
	return Details{
		Name:       p.identity.Name(),
		ID:         p.identity.ID,
		FolderName: p.identity.FolderName(),
	}
}

// Settings returns the registered groups; empty before init.
func (p *Process) Settings() []settings.Group {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]settings.Group(nil), p.groups...)
}

// Setting returns one registered setting of this module.
func (p *Process) Setting(accessID string) (setting.Setting, bool) {
	if p.State() != StateInitialized {
		return nil, false
	}
	return p.registry.Lookup(p.identity.ID, accessID)
}

// Send emits an event to this module's renderer. It is safe to call from
// goroutines the module starts.
func (p *Process) Send(ctx context.Context, eventType string, payload ...any) error {
	if p.State() != StateInitialized {
		return fmt.Errorf("send %q: %w", eventType, ErrNotInitialized)
	}
	return p.channel.Send(ctx, eventType, payload...)
}

// ReportError records a failure from module-owned asynchronous work.
func (p *Process) ReportError(ctx context.Context, eventType string, err error) {
	if err == nil {
		return
	}
	p.fail(ctx, eventType, err)
}

// Run consumes the module's inbound queue until ctx ends. If init does not
// arrive within the init timeout a single liveness warning is logged.
func (p *Process) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("process %s: %w", p.identity.ID, ErrAlreadyRunning)
	}
	defer close(p.done)
	defer p.shutdown()

	var timeout <-chan time.Time
	if p.initTimeout > 0 {
		timer := time.NewTimer(p.initTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	p.log.Info("Listening for renderer events", "init_timeout", p.initTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			timeout = nil
			if p.State() == StateCreated {
				p.warnLiveness(ctx)
			}
		case msg := <-p.channel.Inbound():
			p.dispatch(ctx, msg)
			if timeout != nil && p.State() == StateInitialized {
				timeout = nil
			}
		}
	}
}

func (p *Process) warnLiveness(ctx context.Context) {
	p.log.Warn(livenessMessage,
		"expected_module_id", p.identity.ID,
		"timeout", p.initTimeout,
	)
	p.metrics.RecordLivenessWarning(p.identity.ID)
	p.bus.PublishEvent(ctx, bus.Event{
		Type:     bus.EventLivenessWarning,
		ModuleID: p.identity.ID,
		Payload:  map[string]string{"timeout": p.initTimeout.String()},
	})
}

func (p *Process) dispatch(ctx context.Context, msg bus.Message) {
	start := time.Now()
	defer func() {
		p.metrics.RecordDispatch(p.identity.ID, time.Since(start))
	}()

	ev := decode(msg, p.settingIDs, p.customEvents)
	if _, isInit := ev.(InitEvent); !isInit && p.State() != StateInitialized {
		p.log.Warn("Dropping event received before init", "event", msg.EventType, "message_id", msg.ID)
		p.metrics.RecordDropped("not_initialized")
		p.bus.PublishEvent(ctx, bus.Event{
			Type:      bus.EventMessageDropped,
			ModuleID:  p.identity.ID,
			EventType: msg.EventType,
			MessageID: msg.ID,
			Error:     ErrNotInitialized.Error(),
		})
		return
	}

	switch ev := ev.(type) {
	case InitEvent:
		p.initialize(ctx)
	case SettingEvent:
		p.applySetting(ctx, ev)
	case CustomEvent:
		p.invoke(ctx, ev.Name, func() error {
			return p.module.HandleEvent(ctx, p, ev)
		})
	case UnknownEvent:
		p.log.Debug("Ignoring unrecognized event", "event", ev.Name, "message_id", msg.ID)
	}
}

// initialize runs the init handshake exactly once: module-details, then
// settings registration, then the module's own initialization.
func (p *Process) initialize(ctx context.Context) {
	if !p.state.CompareAndSwap(int32(StateCreated), int32(StateInitialized)) {
		p.log.Debug("Ignoring repeated init")
		return
	}

	p.log.Info("Renderer connected")
	p.metrics.RecordInitialized()
	p.bus.PublishEvent(ctx, bus.Event{Type: bus.EventModuleInitialized, ModuleID: p.identity.ID})

	if err := p.channel.Send(ctx, EventModuleDetails, p.Details()); err != nil {
		p.fail(ctx, EventModuleDetails, err)
	}

	groups, err := p.registry.Register(ctx, p.identity.ID, p.items, p.refresh)
	if err != nil {
		p.fail(ctx, EventInit, fmt.Errorf("register settings: %w", err))
	} else {
		p.mu.Lock()
		p.groups = groups
		p.mu.Unlock()
	}

	p.invoke(ctx, EventInit, func() error {
		return p.module.Initialize(ctx, p)
	})
}

func (p *Process) refresh(ctx context.Context, s setting.Setting) error {
	return p.module.RefreshSettings(ctx, p, s)
}

func (p *Process) applySetting(ctx context.Context, ev SettingEvent) {
	err := p.registry.Update(ctx, p.identity.ID, ev.AccessID, ev.Value)
	switch {
	case err == nil:
		p.metrics.RecordSettingUpdate(p.identity.ID, "ok")
	case errors.Is(err, settings.ErrRefresh):
		// Persisted; only the module's reaction failed.
		p.metrics.RecordSettingUpdate(p.identity.ID, "ok")
		p.fail(ctx, ev.AccessID, err)
	default:
		p.metrics.RecordSettingUpdate(p.identity.ID, "rejected")
		p.log.Warn("Rejected setting change", "access_id", ev.AccessID, "value", ev.Value, "error", err)
		return
	}

	value := ""
	if s, ok := p.registry.Lookup(p.identity.ID, ev.AccessID); ok {
		value, _ = s.Encode()
	}
	p.bus.PublishEvent(ctx, bus.Event{
		Type:      bus.EventSettingChanged,
		ModuleID:  p.identity.ID,
		EventType: ev.AccessID,
		Payload:   map[string]string{"value": value},
	})
}

// invoke runs module code behind a recover boundary.
func (p *Process) invoke(ctx context.Context, eventType string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				p.log.Debug("Recovered module panic", "event", eventType, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", recovered)
			}
		}()
		return fn()
	}()
	if err != nil {
		p.fail(ctx, eventType, err)
	}
}

func (p *Process) fail(ctx context.Context, eventType string, err error) {
	herr := &HandlerError{ModuleID: p.identity.ID, EventType: eventType, Err: err}

	p.log.Error("Module handler failed", "event", eventType, "error", err)
	p.metrics.RecordHandlerError(p.identity.ID, eventType)
	p.bus.PublishEvent(ctx, bus.Event{
		Type:      bus.EventHandlerFailed,
		ModuleID:  p.identity.ID,
		EventType: eventType,
		Error:     err.Error(),
	})

	select {
	case p.errCh <- herr:
	default:
	}
}

func (p *Process) shutdown() {
	if closer, ok := p.module.(Closer); ok {
		if err := closer.Close(); err != nil {
			p.log.Warn("Module close failed", "error", err)
		}
	}
	p.channel.Close()
	if p.State() == StateInitialized {
		p.metrics.RecordUnloaded()
	}
	p.log.Debug("Process stopped")
}
