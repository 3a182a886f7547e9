package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modhost/pkg/bus"
	"modhost/pkg/channel"
	"modhost/pkg/config"
	"modhost/pkg/metrics"
	"modhost/pkg/module"
	"modhost/pkg/setting"
	"modhost/pkg/settings"
	"modhost/pkg/store/memory"
)

type echoModule struct {
	module.Base
	id string

	mu     sync.Mutex
	volume []any
}

func (m *echoModule) Identity() module.Identity {
	return module.Identity{ID: m.id, DisplayName: "Echo " + m.id}
}

func (m *echoModule) Settings() []setting.Item {
	return []setting.Item{
		setting.Group("Audio"),
		setting.NewNumber().SetName("Volume").SetRange(0, 100).SetDefault(50),
	}
}

func (m *echoModule) Events() []string { return []string{"echo"} }

func (m *echoModule) HandleEvent(ctx context.Context, p *module.Process, ev module.CustomEvent) error {
	return p.Send(ctx, "echoed", ev.Payload...)
}

func (m *echoModule) RefreshSettings(_ context.Context, _ *module.Process, s setting.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = append(m.volume, s.Value())
	return nil
}

func (m *echoModule) refreshed() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.volume...)
}

type scriptedAdapter struct {
	name    string
	inbound []bus.Message

	mu       sync.Mutex
	outbound []bus.Message
	errs     []error
	done     chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler, outbound <-chan bus.Message) error {
	for _, msg := range a.inbound {
		err := handler(ctx, msg)
		a.mu.Lock()
		a.errs = append(a.errs, err)
		a.mu.Unlock()
	}
	close(a.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-outbound:
			a.mu.Lock()
			a.outbound = append(a.outbound, msg)
			a.mu.Unlock()
		}
	}
}

func (a *scriptedAdapter) outbounds() []bus.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bus.Message(nil), a.outbound...)
}

func (a *scriptedAdapter) handlerErrors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.errs...)
}

type gatewayHarness struct {
	svc      *Service
	host     *module.Host
	registry *settings.Registry
	metrics  *metrics.Collector
	port     int
}

func newGatewayHarness(t *testing.T, adapters []channel.Adapter, mods ...module.Module) *gatewayHarness {
	t.Helper()

	port := freeTCPPort(t)
	cfg := config.Default()
	cfg.Gateway = config.GatewayConfig{Host: "127.0.0.1", Port: port}

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)
	registry := settings.New(memory.New())
	collector := metrics.New()
	host := module.NewHost(mb, registry, module.WithMetrics(collector), module.WithInitTimeout(0),
		module.WithResourceRoot(t.TempDir()))
	require.NoError(t, host.LoadAll(mods...))

	svc, err := NewService(cfg, Deps{
		Host:     host,
		Bus:      mb,
		Registry: registry,
		Metrics:  collector,
		Adapters: adapters,
	}, slog.Default())
	require.NoError(t, err)

	return &gatewayHarness{svc: svc, host: host, registry: registry, metrics: collector, port: port}
}

func (h *gatewayHarness) run(t *testing.T) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.svc.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for service run to exit")
		}
	})
	return cancel
}

func (h *gatewayHarness) url(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", h.port, path)
}

func TestGatewayServiceRunE2ERoutesPerModule(t *testing.T) {
	alpha := &echoModule{id: "alpha"}
	beta := &echoModule{id: "beta"}
	adapter := &scriptedAdapter{
		name: "scripted",
		inbound: []bus.Message{
			bus.NewMessage("alpha", module.EventInit),
			bus.NewMessage("beta", module.EventInit),
			bus.NewMessage("alpha", "echo", "hello"),
			bus.NewMessage("ghost", module.EventInit),
		},
		done: make(chan struct{}),
	}
	h := newGatewayHarness(t, []channel.Adapter{adapter}, alpha, beta)
	h.run(t)

	select {
	case <-adapter.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter scripted messages")
	}

	require.Eventually(t, func() bool {
		return len(adapter.outbounds()) >= 3
	}, 3*time.Second, 10*time.Millisecond)

	var alphaEvents, betaEvents []string
	for _, msg := range adapter.outbounds() {
		switch msg.ModuleID {
		case "alpha":
			alphaEvents = append(alphaEvents, msg.EventType)
		case "beta":
			betaEvents = append(betaEvents, msg.EventType)
		}
	}
	require.Equal(t, []string{module.EventModuleDetails, "echoed"}, alphaEvents)
	require.Equal(t, []string{module.EventModuleDetails}, betaEvents)

	errs := adapter.handlerErrors()
	require.Len(t, errs, 4)
	require.NoError(t, errs[0])
	var rerr *module.RoutingError
	require.ErrorAs(t, errs[3], &rerr)
	require.Equal(t, "ghost", rerr.ModuleID)

	scrape := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, scrape.Body.String(), `modhost_messages_dropped_total{reason="unknown_module"} 1`)
	require.Contains(t, scrape.Body.String(), `modhost_messages_routed_total{direction="outbound"}`)
}

func TestGatewayServiceStatusEndpoints(t *testing.T) {
	adapter := &scriptedAdapter{
		name:    "scripted",
		inbound: []bus.Message{bus.NewMessage("alpha", module.EventInit)},
		done:    make(chan struct{}),
	}
	h := newGatewayHarness(t, []channel.Adapter{adapter}, &echoModule{id: "alpha"})
	h.run(t)

	require.Equal(t, http.StatusOK, waitHTTPStatus(t, h.url("/healthz"), 2*time.Second))
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, h.url("/readyz"), 2*time.Second))

	require.Eventually(t, func() bool {
		_, ok := h.registry.Lookup("alpha", "volume")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	response, err := http.Get(h.url("/modules"))
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var statuses []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		State    string `json:"state"`
		Settings int    `json:"settings"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	require.Equal(t, "alpha", statuses[0].ID)
	require.Equal(t, "Echo alpha", statuses[0].Name)
	require.Equal(t, "initialized", statuses[0].State)
	require.Equal(t, 1, statuses[0].Settings)

	metricsResponse, err := http.Get(h.url("/metrics"))
	require.NoError(t, err)
	defer metricsResponse.Body.Close()
	require.Equal(t, http.StatusOK, metricsResponse.StatusCode)
}

func TestGatewayServiceSettingsAPI(t *testing.T) {
	alpha := &echoModule{id: "alpha"}
	adapter := &scriptedAdapter{
		name:    "scripted",
		inbound: []bus.Message{bus.NewMessage("alpha", module.EventInit)},
		done:    make(chan struct{}),
	}
	h := newGatewayHarness(t, []channel.Adapter{adapter}, alpha)
	h.run(t)
	waitHTTPStatus(t, h.url("/healthz"), 2*time.Second)

	require.Eventually(t, func() bool {
		_, ok := h.registry.Lookup("alpha", "volume")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	response, err := http.Get(h.url("/modules/alpha/settings"))
	require.NoError(t, err)
	var groups []settings.GroupDescriptor
	require.NoError(t, json.NewDecoder(response.Body).Decode(&groups))
	require.NoError(t, response.Body.Close())
	require.Len(t, groups, 1)
	require.Equal(t, "Audio", groups[0].Label)
	require.Equal(t, "volume", groups[0].Settings[0].AccessID)

	require.Equal(t, http.StatusAccepted, put(t, h.url("/modules/alpha/settings/volume"), `{"value": 80}`))
	require.Eventually(t, func() bool {
		s, ok := h.registry.Lookup("alpha", "volume")
		return ok && s.Value() == float64(80)
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []any{float64(80)}, alpha.refreshed())

	require.Equal(t, http.StatusNotFound, put(t, h.url("/modules/alpha/settings/missing"), `{"value": 1}`))
	require.Equal(t, http.StatusBadRequest, put(t, h.url("/modules/alpha/settings/volume"), `not json`))

	missing, err := http.Get(h.url("/modules/ghost/settings"))
	require.NoError(t, err)
	require.NoError(t, missing.Body.Close())
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGatewayServiceEventsAndUnload(t *testing.T) {
	adapter := &scriptedAdapter{
		name:    "scripted",
		inbound: []bus.Message{bus.NewMessage("alpha", module.EventInit)},
		done:    make(chan struct{}),
	}
	h := newGatewayHarness(t, []channel.Adapter{adapter}, &echoModule{id: "alpha"})
	h.run(t)
	waitHTTPStatus(t, h.url("/healthz"), 2*time.Second)

	require.Eventually(t, func() bool {
		response, err := http.Get(h.url("/events"))
		if err != nil {
			return false
		}
		defer response.Body.Close()

		var events []bus.Event
		if err := json.NewDecoder(response.Body).Decode(&events); err != nil {
			return false
		}
		for _, ev := range events {
			if ev.Type == bus.EventModuleInitialized && ev.ModuleID == "alpha" {
				return true
			}
		}
		return false
	}, 3*time.Second, 25*time.Millisecond)

	require.Equal(t, http.StatusOK, deleteModule(t, h.url("/modules/alpha")))
	_, ok := h.host.Process("alpha")
	require.False(t, ok)
	require.Equal(t, http.StatusNotFound, deleteModule(t, h.url("/modules/alpha")))
}

func deleteModule(t *testing.T, url string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())
	return response.StatusCode
}

func TestGatewayServiceNotReadyBeforeRun(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted", done: make(chan struct{})}
	h := newGatewayHarness(t, []channel.Adapter{adapter})

	recorder := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Contains(t, recorder.Body.String(), "not_ready")
}

func TestNewServiceRejectsDuplicateAdapters(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	registry := settings.New(memory.New())

	_, err := NewService(config.Default(), Deps{
		Host:     module.NewHost(mb, registry),
		Bus:      mb,
		Registry: registry,
		Adapters: []channel.Adapter{&scriptedAdapter{name: "x"}, &scriptedAdapter{name: "x"}},
	}, nil)
	require.ErrorContains(t, err, "duplicate renderer adapter")
}

func put(t *testing.T, url, body string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())
	return response.StatusCode
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
