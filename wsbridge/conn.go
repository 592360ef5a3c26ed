// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package wsbridge

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn adapts a WebSocket carrying binary frames to a net.Conn byte stream.
//
// A websocket.Conn is unusable after a read deadline expires, so Conn never
// forwards read deadlines: a pump goroutine reads whole messages and Read
// enforces the deadline locally. Writes use a fixed per-message timeout and
// ignore SetWriteDeadline for the same reason.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	msgs chan []byte
	done chan struct{}

	readMu   sync.Mutex
	pending  []byte
	deadline time.Time

	writeMu sync.Mutex

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
}

// NewConn wraps ws and starts its read pump.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		msgs:         make(chan []byte, 4),
		done:         make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Conn) pump() {
	defer close(c.msgs)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()
			return
		}
		if mt != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case c.msgs <- data:
		case <-c.done:
			return
		}
	}
}

// Read implements net.Conn. It returns os.ErrDeadlineExceeded when the read
// deadline passes with no data, and io.EOF once the peer has gone.
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}

	if len(c.pending) == 0 {
		var timeout <-chan time.Time
		if !c.deadline.IsZero() {
			d := time.Until(c.deadline)
			if d <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case data, ok := <-c.msgs:
			if !ok {
				return 0, c.eof()
			}
			c.pending = data
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		case <-c.done:
			return 0, net.ErrClosed
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *Conn) eof() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr != nil && !websocket.IsCloseError(c.readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return c.readErr
	}
	return io.EOF
}

// Write implements net.Conn. Each call is sent as one binary message.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame and closes the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readMu.Lock()
	c.deadline = t
	c.readMu.Unlock()
	return nil
}

// SetWriteDeadline implements net.Conn. Writes use the bridge's fixed
// timeout instead.
func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}
