// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPort is the standard RFB display :0 port.
const DefaultPort = 5900

// Default timing parameters.
const (
	DefaultReadTimeout  = 5 * time.Millisecond
	DefaultWriteTimeout = 50 * time.Millisecond
	DefaultTransmitWait = 100 * time.Millisecond
	DefaultRetryYield   = time.Millisecond
	DefaultListenRetry  = time.Second
)

// DefaultName is the desktop name used when none is configured.
const DefaultName = "vncserver"

// TracerName is the instrumentation name used for session spans.
const TracerName = "github.com/tenthirtyam/go-vncserver"

// SessionInfo identifies a viewer session in callbacks.
type SessionInfo struct {
	ID      string
	Remote  string
	Started time.Time
}

// ServerConfig configures the server engine.
type ServerConfig struct {
	// Address is the interface to listen on; empty means all interfaces.
	Address string

	// Port is the TCP port for the primary listener.
	Port int

	// Name is the desktop name sent in server-init when NameProvider is nil.
	Name string

	// NameProvider, when set, is asked for the desktop name on every
	// handshake.
	NameProvider func() string

	// Logger receives engine logs. Nil means NoOpLogger.
	Logger Logger

	// Metrics receives engine events. Nil means NoOpMetrics.
	Metrics MetricsCollector

	// Tracer creates one span per session. Nil means the global provider's
	// tracer.
	Tracer trace.Tracer

	// QueueCapacity is the size of the precise dirty-rectangle queue.
	QueueCapacity int

	// ScratchSize is the size of the outbound batching buffer.
	ScratchSize int

	// ReadTimeout bounds each poll-loop read so the loop never blocks
	// for long.
	ReadTimeout time.Duration

	// WriteTimeout bounds each socket write attempt. A timed out write is
	// retried after RetryYield.
	WriteTimeout time.Duration

	// PollInterval is an optional pause between poll-loop iterations.
	PollInterval time.Duration

	// TransmitWait bounds how long the transmitter sleeps without activity.
	TransmitWait time.Duration

	// RetryYield is the pause before retrying a timed out write.
	RetryYield time.Duration

	// ListenRetry is the delay before recreating a failed listener.
	ListenRetry time.Duration

	// Rotation of the drawing surface.
	Rotation Rotation

	// PointerHandler receives pointer events from the client.
	PointerHandler PointerHandler

	// OnConnect is called when a session becomes ready.
	OnConnect func(SessionInfo)

	// OnDisconnect is called when a session ends. err is nil for a clean
	// shutdown.
	OnDisconnect func(SessionInfo, error)

	// Listeners are additional sources of viewer connections, such as a
	// WebSocket bridge. They are not recreated on failure.
	Listeners []net.Listener
}

// ServerOption configures a ServerConfig.
type ServerOption func(*ServerConfig)

// DefaultServerConfig returns a configuration with default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:          DefaultPort,
		Name:          DefaultName,
		Logger:        &NoOpLogger{},
		Metrics:       NoOpMetrics{},
		QueueCapacity: DefaultQueueCapacity,
		ScratchSize:   DefaultScratchSize,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		TransmitWait:  DefaultTransmitWait,
		RetryYield:    DefaultRetryYield,
		ListenRetry:   DefaultListenRetry,
		Rotation:      Rotate0,
	}
}

// WithPort sets the listening port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithAddress sets the listening interface address.
func WithAddress(address string) ServerOption {
	return func(c *ServerConfig) {
		c.Address = address
	}
}

// WithName sets a fixed desktop name.
func WithName(name string) ServerOption {
	return func(c *ServerConfig) {
		c.Name = name
	}
}

// WithNameProvider sets a function queried for the desktop name.
func WithNameProvider(provider func() string) ServerOption {
	return func(c *ServerConfig) {
		c.NameProvider = provider
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ServerOption {
	return func(c *ServerConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) ServerOption {
	return func(c *ServerConfig) {
		c.Metrics = metrics
	}
}

// WithTracer sets the tracer used for session spans.
func WithTracer(tracer trace.Tracer) ServerOption {
	return func(c *ServerConfig) {
		c.Tracer = tracer
	}
}

// WithQueueCapacity sets the precise dirty-rectangle queue size.
func WithQueueCapacity(capacity int) ServerOption {
	return func(c *ServerConfig) {
		c.QueueCapacity = capacity
	}
}

// WithScratchSize sets the outbound batching buffer size.
func WithScratchSize(size int) ServerOption {
	return func(c *ServerConfig) {
		c.ScratchSize = size
	}
}

// WithReadTimeout sets the poll-loop read timeout.
func WithReadTimeout(timeout time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the per-attempt socket write timeout.
func WithWriteTimeout(timeout time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.WriteTimeout = timeout
	}
}

// WithPollInterval sets a pause between poll-loop iterations.
func WithPollInterval(interval time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.PollInterval = interval
	}
}

// WithTransmitWait sets the transmitter's idle wait.
func WithTransmitWait(wait time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.TransmitWait = wait
	}
}

// WithRetryYield sets the pause before retrying a timed out write.
func WithRetryYield(yield time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.RetryYield = yield
	}
}

// WithListenRetry sets the delay before recreating a failed listener.
func WithListenRetry(delay time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ListenRetry = delay
	}
}

// WithRotation sets the rotation of the drawing surface.
func WithRotation(r Rotation) ServerOption {
	return func(c *ServerConfig) {
		c.Rotation = r
	}
}

// WithPointerHandler sets the consumer of client pointer events.
func WithPointerHandler(h PointerHandler) ServerOption {
	return func(c *ServerConfig) {
		c.PointerHandler = h
	}
}

// WithOnConnect sets the callback run when a session becomes ready.
func WithOnConnect(fn func(SessionInfo)) ServerOption {
	return func(c *ServerConfig) {
		c.OnConnect = fn
	}
}

// WithOnDisconnect sets the callback run when a session ends.
func WithOnDisconnect(fn func(SessionInfo, error)) ServerOption {
	return func(c *ServerConfig) {
		c.OnDisconnect = fn
	}
}

// WithListener adds a listener that feeds viewer connections to the server.
func WithListener(ln net.Listener) ServerOption {
	return func(c *ServerConfig) {
		c.Listeners = append(c.Listeners, ln)
	}
}

// ListenAddress returns the host:port string for the primary listener.
func (c *ServerConfig) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// tracer returns the configured tracer or the global provider's.
func (c *ServerConfig) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return otel.Tracer(TracerName)
}

// desktopName resolves and truncates the desktop name.
func (c *ServerConfig) desktopName() string {
	name := c.Name
	if c.NameProvider != nil {
		name = c.NameProvider()
	}
	return newInputValidator().TruncateName(name)
}

// Validate checks the configuration and fills nil collaborators.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return configurationError("ServerConfig.Validate", fmt.Sprintf("invalid port %d", c.Port), nil)
	}
	if err := newInputValidator().ValidateName(c.Name); err != nil {
		return configurationError("ServerConfig.Validate", "invalid desktop name", err)
	}
	if c.QueueCapacity <= 0 || c.QueueCapacity >= 0xffff {
		return configurationError("ServerConfig.Validate",
			fmt.Sprintf("queue capacity must be between 1 and %d, got %d", 0xffff-1, c.QueueCapacity), nil)
	}
	if c.ScratchSize < minScratchSize {
		return configurationError("ServerConfig.Validate",
			fmt.Sprintf("scratch size must be at least %d bytes, got %d", minScratchSize, c.ScratchSize), nil)
	}
	if !c.Rotation.Valid() {
		return configurationError("ServerConfig.Validate", fmt.Sprintf("unsupported rotation %d", int(c.Rotation)), nil)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"read timeout", c.ReadTimeout},
		{"write timeout", c.WriteTimeout},
		{"transmit wait", c.TransmitWait},
		{"retry yield", c.RetryYield},
		{"listen retry", c.ListenRetry},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return configurationError("ServerConfig.Validate", fmt.Sprintf("%s must be positive, got %v", d.name, d.d), nil)
		}
	}
	if c.PollInterval < 0 {
		return configurationError("ServerConfig.Validate", fmt.Sprintf("poll interval must not be negative, got %v", c.PollInterval), nil)
	}

	if c.Logger == nil {
		c.Logger = &NoOpLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NoOpMetrics{}
	}
	return nil
}
