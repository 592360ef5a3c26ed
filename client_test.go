// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

const testIOTimeout = 5 * time.Second

// testClient is a minimal viewer used to drive the server over the wire.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

// serverInitMsg is a parsed server-init message.
type serverInitMsg struct {
	Width, Height int
	Format        PixelFormat
	Name          string
}

// updateRect is one rectangle of a received FramebufferUpdate.
type updateRect struct {
	Rect     Rect
	Encoding int32
	Pixels   []byte
}

func dialTestClient(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), testIOTimeout)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) read(n int) []byte {
	c.t.Helper()
	buf := make([]byte, n)
	_ = c.conn.SetReadDeadline(time.Now().Add(testIOTimeout))
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		c.t.Fatalf("read %d bytes: %v", n, err)
	}
	return buf
}

func (c *testClient) write(p []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(testIOTimeout))
	if _, err := c.conn.Write(p); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// handshake runs the version and security exchange and returns server-init.
func (c *testClient) handshake() serverInitMsg {
	c.t.Helper()

	if banner := string(c.read(ProtocolVersionLen)); banner != ProtocolVersion {
		c.t.Fatalf("banner = %q, want %q", banner, ProtocolVersion)
	}
	c.write([]byte(ProtocolVersion))

	if sec := c.read(4); binary.BigEndian.Uint32(sec) != SecurityNone {
		c.t.Fatalf("security result = % x, want 00 00 00 01", sec)
	}
	c.write([]byte{1})

	return c.readServerInit()
}

func (c *testClient) readServerInit() serverInitMsg {
	c.t.Helper()
	hdr := c.read(4 + PixelFormatLen + 4)
	var msg serverInitMsg
	msg.Width = int(binary.BigEndian.Uint16(hdr[0:]))
	msg.Height = int(binary.BigEndian.Uint16(hdr[2:]))
	if err := msg.Format.UnmarshalBinary(hdr[4:]); err != nil {
		c.t.Fatal(err)
	}
	nameLen := int(binary.BigEndian.Uint32(hdr[4+PixelFormatLen:]))
	msg.Name = string(c.read(nameLen))
	return msg
}

// readUpdate reads one FramebufferUpdate with raw rectangles.
func (c *testClient) readUpdate() []updateRect {
	c.t.Helper()
	hdr := c.read(4)
	if hdr[0] != msgFramebufferUpdate {
		c.t.Fatalf("message type = %d, want FramebufferUpdate", hdr[0])
	}
	count := int(binary.BigEndian.Uint16(hdr[2:]))
	rects := make([]updateRect, count)
	for i := range rects {
		rh := c.read(rectHeaderLen)
		x := int(binary.BigEndian.Uint16(rh[0:]))
		y := int(binary.BigEndian.Uint16(rh[2:]))
		w := int(binary.BigEndian.Uint16(rh[4:]))
		h := int(binary.BigEndian.Uint16(rh[6:]))
		rects[i] = updateRect{
			Rect:     RectXYWH(x, y, w, h),
			Encoding: int32(binary.BigEndian.Uint32(rh[8:])),
			Pixels:   c.read(w * h * PixelBytes),
		}
	}
	return rects
}

// readUpdateCovering reads updates until one rectangle contains want.
func (c *testClient) readUpdateCovering(want Rect) updateRect {
	c.t.Helper()
	deadline := time.Now().Add(testIOTimeout)
	for time.Now().Before(deadline) {
		for _, r := range c.readUpdate() {
			if r.Rect.Contains(want) {
				return r
			}
		}
	}
	c.t.Fatalf("no update covering %v", want)
	return updateRect{}
}

// expectClosed drains the connection until the server closes it.
func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(testIOTimeout))
	_, err := io.Copy(io.Discard, c.conn)
	if isTimeout(err) {
		c.t.Fatal("server did not close the connection")
	}
}

// pipeListener hands out in-memory connections created by Dial.
type pipeListener struct {
	conns  chan net.Conn
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func newPipeListener() *pipeListener {
	return &pipeListener{
		conns:  make(chan net.Conn),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

// Dial returns the client end of a new connection once it is accepted.
func (l *pipeListener) Dial(t *testing.T) *testClient {
	t.Helper()
	server, client := net.Pipe()
	select {
	case l.conns <- server:
	case <-time.After(testIOTimeout):
		t.Fatal("pipe listener did not accept")
	}
	t.Cleanup(func() { client.Close() })
	return &testClient{t: t, conn: client}
}

// Fail makes the pending Accept return err.
func (l *pipeListener) Fail(err error) {
	l.errs <- err
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case err := <-l.errs:
		return nil, err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *pipeListener) Addr() net.Addr { return pipeAddr{} }

var errListenerBroken = errors.New("listener broken")
