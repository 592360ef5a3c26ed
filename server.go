// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Phase is the server's session lifecycle.
type Phase string

// Server phases.
const (
	PhaseStopped   Phase = "stopped"
	PhaseFailed    Phase = "failed"
	PhaseAccepting Phase = "accepting"
	PhaseActive    Phase = "active"
)

// Status is a point-in-time view of the server.
type Status struct {
	Phase     Phase     `json:"phase"`
	Address   string    `json:"address,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	State     string    `json:"state"`
	Connected time.Time `json:"connected,omitempty"`
	FormatSet bool      `json:"pixel_format_set"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Rotation  int       `json:"rotation"`
	Pending   bool      `json:"pending"`
}

// Server exposes a Framebuffer to one remote viewer at a time.
//
// A single poll loop owns accepting, the handshake and command parsing. A
// background transmitter owns framebuffer updates. The Framebuffer and the
// Tracker are the only state shared between the two, and may be written by
// any goroutine.
type Server struct {
	cfg       ServerConfig
	fb        *Framebuffer
	tracker   *Tracker
	log       Logger
	metrics   MetricsCollector
	tracer    trace.Tracer
	validator *InputValidator

	active atomic.Pointer[session]
	conns  chan net.Conn

	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	failed   atomic.Bool
	wg       sync.WaitGroup

	mu        sync.Mutex
	stopped   bool
	listeners []net.Listener
	primary   net.Listener
}

// NewServer allocates a width x height framebuffer and configures a server
// for it. It does not listen until ListenAndServe or Serve is called.
func NewServer(width, height int, opts ...ServerOption) (*Server, error) {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracker := NewTracker(cfg.QueueCapacity, cfg.Metrics)
	fb, err := NewFramebuffer(width, height, tracker)
	if err != nil {
		return nil, err
	}
	if err := fb.SetRotation(cfg.Rotation); err != nil {
		return nil, err
	}

	return &Server{
		cfg:       cfg,
		fb:        fb,
		tracker:   tracker,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.tracer(),
		validator: newInputValidator(),
		conns:     make(chan net.Conn),
		stop:      make(chan struct{}),
	}, nil
}

// Framebuffer returns the pixel store rendering code draws into.
func (srv *Server) Framebuffer() *Framebuffer {
	return srv.fb
}

// Tracker returns the dirty-region tracker.
func (srv *Server) Tracker() *Tracker {
	return srv.tracker
}

// Config returns a copy of the server configuration.
func (srv *Server) Config() ServerConfig {
	return srv.cfg
}

// Addr returns the primary listener's address, or nil if not listening.
func (srv *Server) Addr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.primary == nil {
		return nil
	}
	return srv.primary.Addr()
}

// Status reports the server phase and the active session, if any.
func (srv *Server) Status() Status {
	st := Status{
		Phase:    PhaseStopped,
		State:    StateInvalid.String(),
		Width:    srv.fb.Width(),
		Height:   srv.fb.Height(),
		Rotation: int(srv.fb.Rotation()),
		Pending:  srv.tracker.HasPending(),
	}
	if addr := srv.Addr(); addr != nil {
		st.Address = addr.String()
	}

	switch {
	case srv.failed.Load():
		st.Phase = PhaseFailed
	case srv.running.Load():
		st.Phase = PhaseAccepting
	}

	if s := srv.active.Load(); s != nil {
		st.Phase = PhaseActive
		st.SessionID = s.id
		st.Remote = s.remote
		st.State = s.State().String()
		st.Connected = s.started
		st.FormatSet = s.pixelFormatSet.Load()
	}
	return st
}

// ListenAndServe listens on the configured address and serves viewers until
// ctx is cancelled or Close is called. Failing to create the initial
// listener is fatal. If the listener fails later, it is recreated after
// ListenRetry.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	ln, err := srv.listen(ctx)
	if err != nil {
		srv.failed.Store(true)
		srv.log.Error("failed to listen", Field{Key: "address", Value: srv.cfg.ListenAddress()}, Field{Key: "error", Value: err})
		return resourceError("Server.ListenAndServe", "cannot listen on "+srv.cfg.ListenAddress(), err)
	}
	return srv.serve(ctx, ln, true)
}

// Serve serves viewers from ln until ctx is cancelled or Close is called.
// ln is closed on return and is not recreated if it fails.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	return srv.serve(ctx, ln, false)
}

// Close stops the server and disconnects the active viewer.
func (srv *Server) Close() error {
	srv.shutdown()
	return nil
}

func (srv *Server) stopping() bool {
	select {
	case <-srv.stop:
		return true
	default:
		return false
	}
}

func (srv *Server) listen(ctx context.Context) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl}
	return lc.Listen(ctx, "tcp", srv.cfg.ListenAddress())
}

// track registers a listener so shutdown closes it. It reports false, after
// closing ln, when the server is already stopping.
func (srv *Server) track(ln net.Listener, primary bool) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.stopped {
		_ = ln.Close()
		return false
	}
	srv.listeners = append(srv.listeners, ln)
	if primary {
		srv.primary = ln
	}
	return true
}

func (srv *Server) untrack(ln net.Listener) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for i, l := range srv.listeners {
		if l == ln {
			srv.listeners = append(srv.listeners[:i], srv.listeners[i+1:]...)
			break
		}
	}
	if srv.primary == ln {
		srv.primary = nil
	}
}

func (srv *Server) shutdown() {
	srv.stopOnce.Do(func() {
		close(srv.stop)
		srv.mu.Lock()
		srv.stopped = true
		for _, ln := range srv.listeners {
			_ = ln.Close()
		}
		srv.mu.Unlock()
	})
}

func (srv *Server) serve(ctx context.Context, ln net.Listener, recreate bool) error {
	if srv.stopping() {
		_ = ln.Close()
		return closedError("Server.Serve", "server is stopped")
	}
	if !srv.running.CompareAndSwap(false, true) {
		_ = ln.Close()
		return configurationError("Server.Serve", "server is already running", nil)
	}
	defer srv.running.Store(false)

	if !srv.track(ln, true) {
		return closedError("Server.Serve", "server is stopped")
	}
	for _, extra := range srv.cfg.Listeners {
		if !srv.track(extra, false) {
			return closedError("Server.Serve", "server is stopped")
		}
	}

	srv.log.Info("server listening",
		Field{Key: "address", Value: ln.Addr()},
		Field{Key: "width", Value: srv.fb.Width()},
		Field{Key: "height", Value: srv.fb.Height()})

	srv.wg.Add(2 + len(srv.cfg.Listeners))
	go func() {
		defer srv.wg.Done()
		newTransmitter(srv).run()
	}()
	go srv.acceptLoop(ctx, ln, recreate)
	for _, extra := range srv.cfg.Listeners {
		go srv.acceptLoop(ctx, extra, false)
	}

	srv.pollLoop(ctx)

	srv.shutdown()
	if s := srv.active.Load(); s != nil {
		srv.disconnect(s, nil)
	}
	srv.wg.Wait()
	srv.log.Info("server stopped")
	return nil
}

// pollLoop is the cooperative loop: it accepts a connection only when no
// session is active, and otherwise advances the active session.
func (srv *Server) pollLoop(ctx context.Context) {
	var pause *time.Timer
	if srv.cfg.PollInterval > 0 {
		pause = time.NewTimer(srv.cfg.PollInterval)
		defer pause.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-srv.stop:
			return
		default:
		}

		s := srv.active.Load()
		if s == nil {
			select {
			case <-ctx.Done():
				return
			case <-srv.stop:
				return
			case conn := <-srv.conns:
				srv.begin(ctx, conn)
			}
			continue
		}

		if s.isClosed() {
			srv.disconnect(s, s.failure())
			continue
		}

		if err := srv.step(s); err != nil {
			// A failure recorded by the transmitter or the accept loop is
			// the real cause; the read error only follows from it.
			if cause := s.failure(); cause != nil {
				err = cause
			}
			srv.disconnect(s, err)
			continue
		}

		if pause != nil {
			pause.Reset(srv.cfg.PollInterval)
			select {
			case <-ctx.Done():
				return
			case <-srv.stop:
				return
			case <-pause.C:
			}
		}
	}
}

// begin makes conn the active session and sends the version banner.
func (srv *Server) begin(ctx context.Context, conn net.Conn) {
	s := newSession(ctx, conn, srv.tracer, srv.log)
	srv.active.Store(s)
	s.log.Info("client connected")

	if err := srv.greet(s); err != nil {
		srv.disconnect(s, err)
	}
}

// disconnect tears down s: close the transport, return to the invalid
// state, and run the disconnect callback. reason is nil for a shutdown.
func (srv *Server) disconnect(s *session, reason error) {
	if !srv.active.CompareAndSwap(s, nil) {
		return
	}

	s.setState(StateClosing)
	s.fail(reason)
	s.setState(StateInvalid)
	s.end(reason)

	srv.metrics.SessionEnded(reasonOf(reason), time.Since(s.started))
	if reason != nil {
		s.log.Info("client disconnected", Field{Key: "reason", Value: reasonOf(reason)}, Field{Key: "error", Value: reason})
	} else {
		s.log.Info("client disconnected", Field{Key: "reason", Value: reasonOf(reason)})
	}

	if srv.cfg.OnDisconnect != nil {
		srv.cfg.OnDisconnect(s.info(), reason)
	}
}

// acceptLoop feeds connections from ln to the poll loop. A connection waits
// in the unbuffered hand-off until no session is active. When recreate is
// set, a failed listener is replaced after ListenRetry.
func (srv *Server) acceptLoop(ctx context.Context, ln net.Listener, recreate bool) {
	defer srv.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if srv.stopping() || ctx.Err() != nil {
				return
			}
			if isTimeout(err) {
				continue
			}
			if !recreate {
				srv.log.Warn("listener failed", Field{Key: "address", Value: ln.Addr()}, Field{Key: "error", Value: err})
				srv.untrack(ln)
				_ = ln.Close()
				return
			}

			srv.log.Warn("listener failed, recreating", Field{Key: "error", Value: err}, Field{Key: "retry", Value: srv.cfg.ListenRetry})
			srv.untrack(ln)
			_ = ln.Close()
			if s := srv.active.Load(); s != nil {
				s.fail(networkError("Server.accept", "listener lost", err))
			}
			srv.metrics.ListenerRestarted()

			if ln = srv.relisten(ctx); ln == nil {
				return
			}
			continue
		}

		if err := tuneConn(conn); err != nil {
			srv.log.Debug("failed to set socket options", Field{Key: "error", Value: err})
		}

		select {
		case srv.conns <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-srv.stop:
			_ = conn.Close()
			return
		}
	}
}

// relisten retries the primary listener every ListenRetry until it succeeds
// or the server stops, in which case it returns nil.
func (srv *Server) relisten(ctx context.Context) net.Listener {
	timer := time.NewTimer(srv.cfg.ListenRetry)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-srv.stop:
			return nil
		case <-timer.C:
		}

		ln, err := srv.listen(ctx)
		if err != nil {
			srv.log.Warn("failed to recreate listener", Field{Key: "error", Value: err})
			timer.Reset(srv.cfg.ListenRetry)
			continue
		}
		if !srv.track(ln, true) {
			return nil
		}
		srv.log.Info("listener recreated", Field{Key: "address", Value: ln.Addr()})
		return ln
	}
}
