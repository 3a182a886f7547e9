// Package gateway runs the module host behind its renderer transports and
// serves host status over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"modhost/pkg/bus"
	"modhost/pkg/channel"
	"modhost/pkg/config"
	"modhost/pkg/metrics"
	"modhost/pkg/module"
	"modhost/pkg/settings"
)

const (
	defaultStatusHost = "127.0.0.1"
	adapterBuffer     = 64
	recentEventLimit  = 100
)

// Deps are the host components the service drives.
type Deps struct {
	Host     *module.Host
	Bus      *bus.MessageBus
	Registry *settings.Registry
	Metrics  *metrics.Collector
	Adapters []channel.Adapter
}

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	host     *module.Host
	bus      *bus.MessageBus
	registry *settings.Registry
	metrics  *metrics.Collector
	channels []channel.Adapter
	router   chi.Router

	mu            sync.RWMutex
	startedAt     time.Time
	statusAddr    string
	channelStates map[string]channelState
	recent        []bus.Event
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Modules       int                     `json:"modules"`
	Channels      map[string]channelState `json:"channels"`
}

type settingUpdate struct {
	Value any `json:"value"`
}

func NewService(cfg *config.Config, deps Deps, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Host == nil || deps.Bus == nil || deps.Registry == nil {
		return nil, errors.New("host, bus and registry are required")
	}
	if len(deps.Adapters) == 0 {
		return nil, errors.New("at least one renderer adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(deps.Adapters))
	for _, adapter := range deps.Adapters {
		if _, dup := channelStates[adapter.Name()]; dup {
			return nil, fmt.Errorf("duplicate renderer adapter %q", adapter.Name())
		}
		channelStates[adapter.Name()] = channelState{}
	}

	s := &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		host:          deps.Host,
		bus:           deps.Bus,
		registry:      deps.Registry,
		metrics:       deps.Metrics,
		channels:      deps.Adapters,
		channelStates: channelStates,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the status HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// StatusAddr returns the status server address once it is listening.
func (s *Service) StatusAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusAddr
}

// Run starts the host, every adapter, the outbound fan-out and the status
// server. It returns when ctx is done or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	listener, err := s.listenStatus()
	if err != nil {
		return err
	}
	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, listener, serverErrors)

	events, unsubscribe := s.bus.SubscribeEvents(ctx, recentEventLimit)
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.host.Run(ctx); err != nil {
			s.log.Error("Module host stopped", "error", err)
		}
	}()

	outbound := make([]chan bus.Message, len(s.channels))
	errCh := make(chan error, len(s.channels))
	for i, adapter := range s.channels {
		outbound[i] = make(chan bus.Message, adapterBuffer)
		s.setChannelState(adapter.Name(), channelState{Running: true})

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := adapter.Run(ctx, s.handleInbound, outbound[i])
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s adapter: %w", adapter.Name(), err)
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.fanOut(ctx, outbound)
	}()
	go func() {
		defer wg.Done()
		s.watchEvents(ctx, events)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrors:
	case runErr = <-errCh:
	}

	cancel()
	wg.Wait()
	return runErr
}

// fanOut copies the bus's outbound stream to every adapter. A slow adapter
// loses messages instead of stalling the others.
func (s *Service) fanOut(ctx context.Context, outbound []chan bus.Message) {
	for {
		msg, ok := s.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		s.metrics.RecordRouted("outbound")

		for i, ch := range outbound {
			select {
			case ch <- msg:
			default:
				s.metrics.RecordDropped("adapter_backpressure")
				s.log.Warn("Renderer adapter is not keeping up; dropping message",
					"adapter", s.channels[i].Name(), "module", msg.ModuleID, "event", msg.EventType)
			}
		}
	}
}

// watchEvents keeps the most recent host events for /events.
func (s *Service) watchEvents(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.log.Debug("Host event", "type", ev.Type, "module", ev.ModuleID, "event", ev.EventType, "error", ev.Error)

			s.mu.Lock()
			s.recent = append(s.recent, ev)
			if over := len(s.recent) - recentEventLimit; over > 0 {
				s.recent = s.recent[over:]
			}
			s.mu.Unlock()
		}
	}
}

func (s *Service) handleInbound(ctx context.Context, msg bus.Message) error {
	return s.host.Deliver(ctx, msg)
}

func (s *Service) listenStatus() (net.Listener, error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultStatusHost
	}
	addr := net.JoinHostPort(host, strconv.Itoa(s.cfg.Gateway.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("start status server: %w", err)
	}

	s.mu.Lock()
	s.statusAddr = listener.Addr().String()
	s.mu.Unlock()
	return listener, nil
}

func (s *Service) runStatusServer(ctx context.Context, listener net.Listener, errCh chan<- error) {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("serve status server: %w", err)
	}
}

func (s *Service) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		r.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}
	r.Get("/events", s.handleEvents)
	r.Route("/modules", func(r chi.Router) {
		r.Get("/", s.handleModules)
		r.Delete("/{moduleID}", s.handleUnload)
		r.Get("/{moduleID}/settings", s.handleSettings)
		r.Put("/{moduleID}/settings/{accessID}", s.handleSettingUpdate)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) handleModules(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.host.Statuses())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := append([]bus.Event{}, s.recent...)
	s.mu.RUnlock()

	s.respondJSON(w, http.StatusOK, events)
}

func (s *Service) handleUnload(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	if err := s.host.Unload(r.Context(), moduleID); err != nil {
		if errors.Is(err, module.ErrUnknownModule) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "unloaded"})
}

func (s *Service) handleSettings(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	groups, ok := s.registry.Describe(moduleID)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("module %q has no registered settings", moduleID))
		return
	}
	s.respondJSON(w, http.StatusOK, groups)
}

// handleSettingUpdate injects the change as a renderer event, so it is
// applied on the module's own process like any other.
func (s *Service) handleSettingUpdate(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	accessID := chi.URLParam(r, "accessID")

	var body settingUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "body must be {\"value\": ...}")
		return
	}
	if _, ok := s.registry.Lookup(moduleID, accessID); !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown setting %s/%s", moduleID, accessID))
		return
	}

	if err := s.host.UpdateSetting(r.Context(), moduleID, accessID, body.Value); err != nil {
		var rerr *module.RoutingError
		if errors.As(err, &rerr) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	s.respondJSON(w, statusCode, s.currentStatus(status))
}

func (s *Service) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]string{"error": message})
}

func (s *Service) respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Modules:       len(s.host.Processes()),
		Channels:      channels,
	}
}

// isReady reports whether at least one renderer adapter is running.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}
	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
