// Package websocket serves renderers over WebSocket. Each connection is
// bound to the module id in its URL, /ipc/{moduleID}.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"modhost/pkg/bus"
	"modhost/pkg/channel"
)

const (
	// EventError is sent to a renderer whose message could not be routed.
	EventError = "modhost-error"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

// Frame is an inbound renderer message. The module id comes from the URL.
type Frame struct {
	EventType string `json:"eventType"`
	Payload   []any  `json:"payload"`
}

type Config struct {
	Host string
	Port int
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
}

// Adapter is a channel.Adapter serving renderer WebSocket connections.
type Adapter struct {
	cfg      Config
	log      *slog.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	handler channel.Handler
	conns   map[string]map[*conn]struct{}
	addr    string
	ready   chan struct{}
}

type conn struct {
	ws       *websocket.Conn
	moduleID string
	send     chan any
	done     chan struct{}
	once     sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func New(cfg Config, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		cfg:   cfg,
		log:   log.With("component", "channel.websocket"),
		conns: make(map[string]map[*conn]struct{}),
		ready: make(chan struct{}),
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}

	r := chi.NewRouter()
	r.Get("/ipc/{moduleID}", a.serveIPC)
	a.router = r

	return a
}

func (a *Adapter) Name() string {
	return "websocket"
}

// Handler returns the HTTP handler serving /ipc/{moduleID}.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// Ready is closed once Run is listening.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the listen address once Ready is closed.
func (a *Adapter) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.addr
}

// Connections returns the number of open renderer connections per module.
func (a *Adapter) Connections() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]int, len(a.conns))
	for id, set := range a.conns {
		out[id] = len(set)
	}
	return out
}

func (a *Adapter) Run(ctx context.Context, handler channel.Handler, outbound <-chan bus.Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == nil {
		return errors.New("websocket adapter: handler is required")
	}

	addr := net.JoinHostPort(strings.TrimSpace(a.cfg.Host), strconv.Itoa(a.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	a.mu.Lock()
	a.handler = handler
	a.addr = listener.Addr().String()
	a.mu.Unlock()
	close(a.ready)

	server := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	a.log.Info("Renderer endpoint started", "address", a.Addr())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		a.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			return fmt.Errorf("serve renderer endpoint: %w", err)
		case msg, ok := <-outbound:
			if !ok {
				return nil
			}
			a.dispatch(msg)
		}
	}
}

// dispatch queues msg for every connection of its module. Renderers that
// are not connected miss the message.
func (a *Adapter) dispatch(msg bus.Message) {
	a.mu.RLock()
	targets := make([]*conn, 0, len(a.conns[msg.ModuleID]))
	for c := range a.conns[msg.ModuleID] {
		targets = append(targets, c)
	}
	a.mu.RUnlock()

	if len(targets) == 0 {
		a.log.Debug("No renderer connected", "module", msg.ModuleID, "event", msg.EventType)
		return
	}
	for _, c := range targets {
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			a.log.Warn("Renderer send buffer full; dropping message", "module", msg.ModuleID, "event", msg.EventType)
		}
	}
}

func (a *Adapter) serveIPC(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	if strings.TrimSpace(moduleID) == "" {
		http.Error(w, "module id is required", http.StatusBadRequest)
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		http.Error(w, "renderer endpoint not running", http.StatusServiceUnavailable)
		return
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("WebSocket upgrade failed", "module", moduleID, "error", err)
		return
	}

	c := &conn{
		ws:       ws,
		moduleID: moduleID,
		send:     make(chan any, sendBuffer),
		done:     make(chan struct{}),
	}
	a.register(c)
	defer a.unregister(c)

	go a.writeLoop(c)
	a.readLoop(r.Context(), c, handler)
}

func (a *Adapter) readLoop(ctx context.Context, c *conn, handler channel.Handler) {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.log.Warn("Renderer connection lost", "module", c.moduleID, "error", err)
			}
			return
		}
		if strings.TrimSpace(frame.EventType) == "" {
			a.reply(c, errors.New("eventType is required"))
			continue
		}

		msg := bus.NewMessage(c.moduleID, frame.EventType, frame.Payload...)
		if err := handler(ctx, msg); err != nil {
			a.reply(c, err)
		}
	}
}

func (a *Adapter) reply(c *conn, err error) {
	select {
	case c.send <- bus.NewMessage(c.moduleID, EventError, err.Error()):
	case <-c.done:
	default:
	}
}

func (a *Adapter) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case v := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				a.log.Warn("Renderer write failed", "module", c.moduleID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *Adapter) register(c *conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.conns[c.moduleID]
	if !ok {
		set = make(map[*conn]struct{})
		a.conns[c.moduleID] = set
	}
	set[c] = struct{}{}
	a.log.Info("Renderer connected", "module", c.moduleID, "connections", len(set))
}

func (a *Adapter) unregister(c *conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if set, ok := a.conns[c.moduleID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(a.conns, c.moduleID)
		}
	}
	a.log.Debug("Renderer disconnected", "module", c.moduleID)
}

func (a *Adapter) closeAll() {
	a.mu.RLock()
	var all []*conn
	for _, set := range a.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	a.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

func (a *Adapter) checkOrigin(r *http.Request) bool {
	if len(a.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(a.cfg.AllowedOrigins, origin)
}
