package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"modhost/pkg/bus"
	"modhost/pkg/ipc"
	"modhost/pkg/metrics"
	"modhost/pkg/setting"
	"modhost/pkg/settings"
)

// DefaultInitTimeout is how long a process waits for init before warning.
const DefaultInitTimeout = 3 * time.Second

// Host loads modules and runs one Process per module.
type Host struct {
	bus          *bus.MessageBus
	registry     *settings.Registry
	log          *slog.Logger
	baseLog      *slog.Logger
	metrics      *metrics.Collector
	initTimeout  time.Duration
	resourceRoot string

	mu      sync.RWMutex
	procs   map[string]*hosted
	order   []string
	runCtx  context.Context
	running bool
	wg      sync.WaitGroup
}

type hosted struct {
	proc    *Process
	cancel  context.CancelFunc
	started bool
}

// Status is a point-in-time view of one loaded module.
type Status struct {
	Details
	State    State `json:"state"`
	Settings int   `json:"settings"`
}

type HostOption func(*Host)

func WithLogger(log *slog.Logger) HostOption {
	return func(h *Host) {
		if log != nil {
			h.log = log
		}
	}
}

func WithMetrics(c *metrics.Collector) HostOption {
	return func(h *Host) {
		h.metrics = c
	}
}

// WithInitTimeout sets the liveness timeout; zero disables the warning.
func WithInitTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		if d >= 0 {
			h.initTimeout = d
		}
	}
}

// WithResourceRoot sets the directory holding module resource folders.
func WithResourceRoot(dir string) HostOption {
	return func(h *Host) {
		h.resourceRoot = dir
	}
}

func NewHost(mb *bus.MessageBus, registry *settings.Registry, opts ...HostOption) *Host {
	h := &Host{
		bus:         mb,
		registry:    registry,
		log:         slog.Default(),
		initTimeout: DefaultInitTimeout,
		procs:       make(map[string]*hosted),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.baseLog = h.log
	h.log = h.log.With("component", "module.host")

	return h
}

// Load validates mod and creates its process in the Created state. A
// declaration error aborts this module only.
func (h *Host) Load(mod Module) (*Process, error) {
	if mod == nil {
		return nil, fmt.Errorf("%w: nil module", ErrInvalidIdentity)
	}
	id := mod.Identity()
	if err := id.Validate(); err != nil {
		return nil, err
	}

	items := mod.Settings()
	groups, err := settings.Validate(id.ID, items)
	if err != nil {
		return nil, err
	}

	settingIDs := make(map[string]struct{})
	for _, g := range groups {
		for _, s := range g.Settings {
			settingIDs[s.AccessID()] = struct{}{}
		}
	}
	customEvents, err := customEventSet(id.ID, mod.Events(), settingIDs)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.procs[id.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, id.ID)
	}

	ch, err := ipc.Open(h.bus, id.ID)
	if err != nil {
		return nil, err
	}

	resourceDir := ""
	if h.resourceRoot != "" {
		resourceDir = filepath.Join(h.resourceRoot, id.FolderName())
	}

	proc := newProcess(processConfig{
		module:       mod,
		identity:     id,
		channel:      ch,
		bus:          h.bus,
		registry:     h.registry,
		log:          h.baseLog,
		metrics:      h.metrics,
		resourceDir:  resourceDir,
		initTimeout:  h.initTimeout,
		items:        items,
		settingIDs:   settingIDs,
		customEvents: customEvents,
	})
	entry := &hosted{proc: proc}
	h.procs[id.ID] = entry
	h.order = append(h.order, id.ID)

	h.log.Info("Loaded module", "module", id.ID, "name", id.Name(), "settings", len(settingIDs))
	h.bus.PublishEvent(context.Background(), bus.Event{Type: bus.EventModuleLoaded, ModuleID: id.ID})

	if h.running {
		h.start(entry)
	}
	return proc, nil
}

func customEventSet(moduleID string, events []string, settingIDs map[string]struct{}) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(events))
	for _, name := range events {
		if name == "" || setting.IsReservedAccessID(name) {
			return nil, fmt.Errorf("%w: module %s: %q", ErrEventConflict, moduleID, name)
		}
		if _, ok := settingIDs[name]; ok {
			return nil, fmt.Errorf("%w: module %s: %q is a setting access id", ErrEventConflict, moduleID, name)
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// LoadAll loads every module, skipping the ones that fail.
func (h *Host) LoadAll(mods ...Module) error {
	var errs []error
	for _, mod := range mods {
		if _, err := h.Load(mod); err != nil {
			h.log.Error("Module failed to load", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run starts every loaded process and blocks until ctx is done and all
// processes have stopped.
func (h *Host) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return fmt.Errorf("module host: %w", ErrAlreadyRunning)
	}
	h.running = true
	h.runCtx = ctx
	for _, id := range h.order {
		h.start(h.procs[id])
	}
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// start launches entry's process. Callers hold h.mu.
func (h *Host) start(entry *hosted) {
	if entry.started {
		return
	}
	procCtx, cancel := context.WithCancel(h.runCtx)
	entry.cancel = cancel
	entry.started = true

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := entry.proc.Run(procCtx); err != nil {
			h.log.Error("Module process failed", "module", entry.proc.identity.ID, "error", err)
		}
	}()
}

// Unload stops a module's process and drops its registered settings.
// Persisted values survive.
func (h *Host) Unload(ctx context.Context, moduleID string) error {
	h.mu.Lock()
	entry, ok := h.procs[moduleID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
	}
	delete(h.procs, moduleID)
	for i, id := range h.order {
		if id == moduleID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	if entry.started {
		entry.cancel()
		select {
		case <-entry.proc.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		entry.proc.channel.Close()
	}

	h.registry.Unregister(moduleID)
	h.log.Info("Unloaded module", "module", moduleID)
	h.bus.PublishEvent(ctx, bus.Event{Type: bus.EventModuleUnloaded, ModuleID: moduleID})
	return nil
}

// Process returns a loaded module's process.
func (h *Host) Process(moduleID string) (*Process, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.procs[moduleID]
	if !ok {
		return nil, false
	}
	return entry.proc, true
}

// Processes returns loaded processes in load order.
func (h *Host) Processes() []*Process {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Process, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.procs[id].proc)
	}
	return out
}

// Deliver routes one renderer message to the module it names. Messages for
// modules that are not loaded are dropped with a *RoutingError.
func (h *Host) Deliver(ctx context.Context, msg bus.Message) error {
	err := h.bus.PublishInbound(ctx, msg)
	if err == nil {
		h.metrics.RecordRouted("inbound")
		return nil
	}

	if errors.Is(err, bus.ErrUnknownModule) {
		h.metrics.RecordDropped("unknown_module")
		h.log.Warn("Dropping message for unknown module", "module", msg.ModuleID, "event", msg.EventType)
		h.bus.PublishEvent(ctx, bus.Event{
			Type:      bus.EventMessageDropped,
			ModuleID:  msg.ModuleID,
			EventType: msg.EventType,
			MessageID: msg.ID,
			Error:     err.Error(),
		})
		return &RoutingError{ModuleID: msg.ModuleID, EventType: msg.EventType, Err: ErrUnknownModule}
	}
	h.metrics.RecordDropped("undeliverable")
	return &RoutingError{ModuleID: msg.ModuleID, EventType: msg.EventType, Err: err}
}

// UpdateSetting injects a setting change as if the module's renderer sent it.
func (h *Host) UpdateSetting(ctx context.Context, moduleID, accessID string, value any) error {
	return h.Deliver(ctx, bus.NewMessage(moduleID, accessID, value))
}

// Statuses reports every loaded module in load order.
func (h *Host) Statuses() []Status {
	procs := h.Processes()
	out := make([]Status, 0, len(procs))
	for _, p := range procs {
		count := 0
		for _, g := range p.Settings() {
			count += len(g.Settings)
		}
		out = append(out, Status{Details: p.Details(), State: p.State(), Settings: count})
	}
	return out
}
