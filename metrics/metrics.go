// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package metrics provides a Prometheus implementation of the server's
// MetricsCollector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	vncserver "github.com/tenthirtyam/go-vncserver"
)

// Config configures the Prometheus collector.
type Config struct {
	// Namespace is the metrics namespace (default: "vncserver").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for session duration in seconds.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the session duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "vncserver",
		Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 14400},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records engine events as Prometheus metrics:
//
//   - vncserver_sessions_total: sessions that completed the handshake
//   - vncserver_active_sessions: 1 while a viewer is connected
//   - vncserver_session_duration_seconds: connection lifetime by disconnect reason
//   - vncserver_commands_total: decoded client commands by name
//   - vncserver_protocol_violations_total: rejected client input by kind
//   - vncserver_updates_total / _update_rects_total / _update_bytes_total
//   - vncserver_rects_discarded_total: rectangles drained with no viewer
//   - vncserver_queue_overflows_total: rectangles merged into the coarse fallback
//   - vncserver_listener_restarts_total: listener recreations
type Collector struct {
	sessionsTotal    prometheus.Counter
	activeSessions   prometheus.Gauge
	sessionDuration  *prometheus.HistogramVec
	commandsTotal    *prometheus.CounterVec
	violationsTotal  *prometheus.CounterVec
	updatesTotal     prometheus.Counter
	updateRectsTotal prometheus.Counter
	updateBytesTotal prometheus.Counter
	rectsDiscarded   prometheus.Counter
	queueOverflows   prometheus.Counter
	listenerRestarts prometheus.Counter
}

var _ vncserver.MetricsCollector = (*Collector)(nil)

// New registers the collector's metrics and returns it. Registering twice
// on the same registry panics, as promauto does.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Collector{
		sessionsTotal: counter("sessions_total", "Total number of viewer sessions that completed the handshake"),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected viewers",
			ConstLabels: config.ConstLabels,
		}),

		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_duration_seconds",
			Help:        "Viewer connection lifetime in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"reason"}),

		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commands_total",
			Help:        "Total number of client commands processed",
			ConstLabels: config.ConstLabels,
		}, []string{"command"}),

		violationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_violations_total",
			Help:        "Total number of rejected or unparseable client messages",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		updatesTotal:     counter("updates_total", "Total number of FramebufferUpdate messages sent"),
		updateRectsTotal: counter("update_rects_total", "Total number of rectangles sent"),
		updateBytesTotal: counter("update_bytes_total", "Total bytes of framebuffer updates sent"),
		rectsDiscarded:   counter("rects_discarded_total", "Dirty rectangles drained while no viewer was ready"),
		queueOverflows:   counter("queue_overflows_total", "Dirty rectangles merged into the coarse fallback"),
		listenerRestarts: counter("listener_restarts_total", "Listener recreations after accept failures"),
	}
}

// SessionStarted implements vncserver.MetricsCollector.
func (c *Collector) SessionStarted() {
	c.sessionsTotal.Inc()
	c.activeSessions.Set(1)
}

// SessionEnded implements vncserver.MetricsCollector.
func (c *Collector) SessionEnded(reason string, duration time.Duration) {
	c.activeSessions.Set(0)
	c.sessionDuration.WithLabelValues(reason).Observe(duration.Seconds())
}

// CommandReceived implements vncserver.MetricsCollector.
func (c *Collector) CommandReceived(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// ProtocolViolation implements vncserver.MetricsCollector.
func (c *Collector) ProtocolViolation(kind string) {
	c.violationsTotal.WithLabelValues(kind).Inc()
}

// UpdateSent implements vncserver.MetricsCollector.
func (c *Collector) UpdateSent(rects int, bytes int) {
	c.updatesTotal.Inc()
	c.updateRectsTotal.Add(float64(rects))
	c.updateBytesTotal.Add(float64(bytes))
}

// RectsDiscarded implements vncserver.MetricsCollector.
func (c *Collector) RectsDiscarded(n int) {
	c.rectsDiscarded.Add(float64(n))
}

// QueueOverflow implements vncserver.MetricsCollector.
func (c *Collector) QueueOverflow() {
	c.queueOverflows.Inc()
}

// ListenerRestarted implements vncserver.MetricsCollector.
func (c *Collector) ListenerRestarted() {
	c.listenerRestarts.Inc()
}
