// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package wsbridge lets browser viewers such as noVNC reach the server over
// WebSocket. A Listener is both an http.Handler, mounted on some route, and
// a net.Listener handed to the server with vncserver.WithListener.
package wsbridge

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	vncserver "github.com/tenthirtyam/go-vncserver"
)

// Subprotocol is the WebSocket subprotocol noVNC requests for raw frames.
const Subprotocol = "binary"

// DefaultWriteTimeout bounds one WebSocket message write.
const DefaultWriteTimeout = 10 * time.Second

// Config configures a Listener.
type Config struct {
	// ReadBufferSize and WriteBufferSize size the upgrader's I/O buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the request origin. Nil allows same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout bounds one message write.
	WriteTimeout time.Duration

	// Logger receives bridge logs.
	Logger vncserver.Logger
}

// Option configures a Listener.
type Option func(*Config)

// WithBufferSizes sets the upgrader's buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(c *Config) {
		c.ReadBufferSize = read
		c.WriteBufferSize = write
	}
}

// WithCheckOrigin sets the origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = fn
	}
}

// WithWriteTimeout sets the per-message write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger vncserver.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Listener accepts viewer connections arriving as WebSocket upgrades.
type Listener struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	log          vncserver.Logger
	addr         net.Addr

	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// Addr identifies a WebSocket listener by its route.
type Addr string

// Network implements net.Addr.
func (a Addr) Network() string { return "websocket" }

// String implements net.Addr.
func (a Addr) String() string { return string(a) }

// NewListener creates a listener. path is only used to name its address.
func NewListener(path string, opts ...Option) *Listener {
	config := Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteTimeout:    DefaultWriteTimeout,
		Logger:          &vncserver.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Listener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
			Subprotocols:    []string{Subprotocol},
		},
		writeTimeout: config.WriteTimeout,
		log:          config.Logger,
		addr:         Addr(path),
		conns:        make(chan net.Conn),
		done:         make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and queues the connection for Accept. The
// upgrade waits in the queue while another viewer is connected.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "display bridge closed", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("websocket upgrade failed", vncserver.Field{Key: "remote", Value: r.RemoteAddr}, vncserver.Field{Key: "error", Value: err})
		return
	}
	conn := NewConn(ws, l.writeTimeout)

	select {
	case l.conns <- conn:
		l.log.Debug("websocket viewer queued", vncserver.Field{Key: "remote", Value: r.RemoteAddr})
	case <-l.done:
		_ = conn.Close()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close implements net.Listener. Pending upgrades are closed.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return nil
}

// Addr implements net.Listener.
func (l *Listener) Addr() net.Addr {
	return l.addr
}
