// Package metrics provides Prometheus metrics for the module host.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modhost"

// Collector holds all host metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	// IPC metrics
	MessagesRouted  *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec

	// Module metrics
	ModulesInitialized prometheus.Gauge
	LivenessWarnings   *prometheus.CounterVec
	HandlerErrors      *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec

	// Settings metrics
	SettingUpdates *prometheus.CounterVec
}

// New creates a collector on its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_routed_total",
				Help:      "Total number of IPC messages routed",
			},
			[]string{"direction"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_dropped_total",
				Help:      "Total number of IPC messages dropped",
			},
			[]string{"reason"},
		),

		ModulesInitialized: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_initialized",
				Help:      "Number of modules that completed the init handshake",
			},
		),
		LivenessWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "liveness_warnings_total",
				Help:      "Total number of modules that missed the init window",
			},
			[]string{"module"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Total number of failed or panicking module handlers",
			},
			[]string{"module", "event"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent handling one inbound message",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"module"},
		),

		SettingUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "setting_updates_total",
				Help:      "Total number of setting changes by result",
			},
			[]string{"module", "result"},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordRouted(direction string) {
	if c == nil {
		return
	}
	c.MessagesRouted.WithLabelValues(direction).Inc()
}

func (c *Collector) RecordDropped(reason string) {
	if c == nil {
		return
	}
	c.MessagesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordInitialized() {
	if c == nil {
		return
	}
	c.ModulesInitialized.Inc()
}

func (c *Collector) RecordUnloaded() {
	if c == nil {
		return
	}
	c.ModulesInitialized.Dec()
}

func (c *Collector) RecordLivenessWarning(module string) {
	if c == nil {
		return
	}
	c.LivenessWarnings.WithLabelValues(module).Inc()
}

func (c *Collector) RecordHandlerError(module, event string) {
	if c == nil {
		return
	}
	c.HandlerErrors.WithLabelValues(module, event).Inc()
}

func (c *Collector) RecordDispatch(module string, d time.Duration) {
	if c == nil {
		return
	}
	c.DispatchDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (c *Collector) RecordSettingUpdate(module, result string) {
	if c == nil {
		return
	}
	c.SettingUpdates.WithLabelValues(module, result).Inc()
}
