// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

// transmitter owns the network write path once a session is ready. It sleeps
// on the tracker, drains every pending rectangle into one FramebufferUpdate
// and streams pixels straight from the framebuffer.
type transmitter struct {
	srv     *Server
	enc     Encoding
	scratch []byte
	batch   []Rect
}

func newTransmitter(srv *Server) *transmitter {
	return &transmitter{
		srv:     srv,
		enc:     RawEncoding{},
		scratch: make([]byte, srv.cfg.ScratchSize),
		batch:   make([]Rect, 0, srv.tracker.Capacity()+1),
	}
}

// run loops until the server stops.
func (t *transmitter) run() {
	srv := t.srv
	for {
		select {
		case <-srv.stop:
			return
		default:
		}

		t.batch = clipRects(srv.tracker.Wait(t.batch[:0], srv.stop, srv.cfg.TransmitWait), srv.fb.Width(), srv.fb.Height())
		if len(t.batch) == 0 {
			continue
		}

		s := srv.active.Load()
		if s == nil || s.State() != StateReady || s.isClosed() {
			srv.metrics.RectsDiscarded(len(t.batch))
			continue
		}

		if err := t.send(s, t.batch); err != nil {
			s.log.Warn("framebuffer update failed", Field{Key: "error", Value: err})
			s.fail(err)
		}
	}
}

// send writes one FramebufferUpdate carrying rects to s.
func (t *transmitter) send(s *session, rects []Rect) error {
	srv := t.srv
	w := NewUpdateWriter(t.scratch, func(p []byte) error {
		return s.writeFull(p, srv.cfg.WriteTimeout, srv.cfg.RetryYield, srv.stop)
	})

	if err := w.WriteUpdateHeader(len(rects)); err != nil {
		return err
	}
	for _, r := range rects {
		if err := w.WriteRect(t.enc, srv.fb, r); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	srv.metrics.UpdateSent(len(rects), w.Written())
	s.log.Debug("framebuffer update sent", Field{Key: "rects", Value: len(rects)}, Field{Key: "bytes", Value: w.Written()})
	return nil
}

// clipRects clips every rectangle to the framebuffer in place and drops the
// ones left empty.
func clipRects(rects []Rect, width, height int) []Rect {
	out := rects[:0]
	for _, r := range rects {
		if c := r.Clip(width, height); c.Valid() {
			out = append(out, c)
		}
	}
	return out
}
