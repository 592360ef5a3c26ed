// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProtocolVersion is the banner sent on accept.
const ProtocolVersion = "RFB 003.003\n"

// ProtocolVersionLen is the length of a version banner.
const ProtocolVersionLen = 12

// SecurityNone is the "no authentication" security type.
const SecurityNone = 1

// State is a session's protocol phase.
type State int32

// Session states in handshake order.
const (
	StateInvalid State = iota
	StateVersion
	StateAuth
	StateReady
	StateClosing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateVersion:
		return "version"
	case StateAuth:
		return "auth"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// session is the single live viewer connection. Handshake and command
// processing run on the server's poll loop; after the ready state only the
// transmitter writes to conn.
type session struct {
	id      string
	conn    net.Conn
	remote  string
	started time.Time
	log     Logger
	span    trace.Span

	state atomic.Int32

	rx       ringBuffer
	version  [ProtocolVersionLen]byte
	versionN int
	readBuf  [128]byte
	cmdBuf   [RingBufferSize]byte

	// pixelFormatSet records that the client declared a compatible format.
	pixelFormatSet atomic.Bool

	failOnce sync.Once
	failMu   sync.Mutex
	failErr  error
	closed   chan struct{}
}

func newSession(ctx context.Context, conn net.Conn, tracer trace.Tracer, log Logger) *session {
	id := uuid.NewString()
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	_, span := tracer.Start(ctx, "vnc.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("vnc.session_id", id),
			attribute.String("net.peer.addr", remote),
		),
	)

	return &session{
		id:      id,
		conn:    conn,
		remote:  remote,
		started: time.Now(),
		log:     log.With(Field{Key: "session_id", Value: id}, Field{Key: "remote", Value: remote}),
		span:    span,
		closed:  make(chan struct{}),
	}
}

func (s *session) info() SessionInfo {
	return SessionInfo{ID: s.id, Remote: s.remote, Started: s.started}
}

// State returns the current protocol phase.
func (s *session) State() State {
	return State(s.state.Load())
}

func (s *session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.span.AddEvent("state", trace.WithAttributes(
		attribute.String("vnc.state.from", prev.String()),
		attribute.String("vnc.state.to", st.String()),
	))
	s.log.Debug("session state changed", Field{Key: "from", Value: prev}, Field{Key: "to", Value: st})
}

// fail records err as the reason the session ends and closes the transport,
// which unblocks the poll loop. Only the first reason is kept.
func (s *session) fail(err error) {
	s.failOnce.Do(func() {
		s.failMu.Lock()
		s.failErr = err
		s.failMu.Unlock()
		close(s.closed)
		_ = s.conn.Close()
	})
}

// failure returns the reason recorded by fail, if any.
func (s *session) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failErr
}

// isClosed reports whether fail has been called.
func (s *session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// end finishes the session span with the disconnect reason.
func (s *session) end(reason error) {
	if reason != nil {
		s.span.RecordError(reason)
		s.span.SetStatus(codes.Error, reasonOf(reason))
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// readSome reads what is available within timeout. A timeout is not an
// error: it returns zero bytes and the caller polls again later.
func (s *session) readSome(p []byte, timeout time.Duration) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, networkError("session.read", "failed to set read deadline", err)
	}
	n, err := s.conn.Read(p)
	if err != nil {
		if isTimeout(err) {
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			return n, networkError("session.read", "client closed connection", err)
		}
		return n, networkError("session.read", "read failed", err)
	}
	return n, nil
}

// writeFull writes all of p. Attempts are bounded by timeout; a timed out
// attempt is retried after yield until p is written, stop is closed or the
// session fails.
func (s *session) writeFull(p []byte, timeout, yield time.Duration, stop <-chan struct{}) error {
	for len(p) > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return networkError("session.write", "failed to set write deadline", err)
		}
		n, err := s.conn.Write(p)
		p = p[n:]
		if err == nil {
			continue
		}
		if !isTimeout(err) {
			return networkError("session.write", "write failed", err)
		}

		select {
		case <-stop:
			return closedError("session.write", "server stopped")
		case <-s.closed:
			return closedError("session.write", "session closed")
		case <-time.After(yield):
		}
	}
	return nil
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// serverInit builds the server-init message.
func serverInit(width, height int, name string) []byte {
	buf := make([]byte, 0, 4+PixelFormatLen+4+len(name))
	buf = binary.BigEndian.AppendUint16(buf, uint16(width))  // #nosec G115 - validated dimensions
	buf = binary.BigEndian.AppendUint16(buf, uint16(height)) // #nosec G115
	pf := make([]byte, PixelFormatLen)
	ServerPixelFormat.put(pf)
	buf = append(buf, pf...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name))) // #nosec G115 - name is at most MaxNameLength
	buf = append(buf, name...)
	return buf
}

// securityResult is sent right after the client's version banner.
var securityResult = []byte{0, 0, 0, SecurityNone}
