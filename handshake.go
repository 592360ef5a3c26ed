// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import "fmt"

// greet sends the version banner to a freshly accepted connection.
func (srv *Server) greet(s *session) error {
	if err := s.writeFull([]byte(ProtocolVersion), srv.cfg.WriteTimeout, srv.cfg.RetryYield, srv.stop); err != nil {
		return err
	}
	s.setState(StateVersion)
	return nil
}

// step advances the session by one poll iteration.
func (srv *Server) step(s *session) error {
	switch s.State() {
	case StateVersion:
		return srv.readVersion(s)
	case StateAuth:
		return srv.readSecurityType(s)
	case StateReady:
		return srv.readCommands(s)
	default:
		return closedError("Server.step", fmt.Sprintf("session in state %s", s.State()))
	}
}

// readVersion collects the client's 12-byte version banner and answers with
// the "no authentication" security result. The banner content is only
// checked for logging.
func (srv *Server) readVersion(s *session) error {
	n, err := s.readSome(s.version[s.versionN:], srv.cfg.ReadTimeout)
	s.versionN += n
	if err != nil {
		return err
	}
	if s.versionN < len(s.version) {
		return nil
	}

	if verr := srv.validator.ValidateProtocolVersion(s.version[:]); verr != nil {
		s.log.Warn("unexpected client version", Field{Key: "version", Value: fmt.Sprintf("%q", s.version[:])}, Field{Key: "error", Value: verr})
	} else {
		s.log.Debug("client version", Field{Key: "version", Value: string(s.version[:ProtocolVersionLen-1])})
	}

	if err := s.writeFull(securityResult, srv.cfg.WriteTimeout, srv.cfg.RetryYield, srv.stop); err != nil {
		return err
	}
	s.setState(StateAuth)
	return nil
}

// readSecurityType reads the client's one-byte security choice, which is not
// checked, and completes the handshake with server-init.
func (srv *Server) readSecurityType(s *session) error {
	var choice [1]byte
	n, err := s.readSome(choice[:], srv.cfg.ReadTimeout)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	s.log.Info("client requested security type", Field{Key: "type", Value: choice[0]})

	init := serverInit(srv.fb.Width(), srv.fb.Height(), srv.cfg.desktopName())
	if err := s.writeFull(init, srv.cfg.WriteTimeout, srv.cfg.RetryYield, srv.stop); err != nil {
		return err
	}

	s.rx.Reset()
	s.setState(StateReady)
	srv.metrics.SessionStarted()
	s.log.Info("session ready")

	if srv.cfg.OnConnect != nil {
		srv.cfg.OnConnect(s.info())
	}

	// The first frame is always a full one.
	srv.tracker.MarkDirty(srv.fb.Bounds())
	return nil
}

// readCommands buffers available input and runs every complete command.
func (srv *Server) readCommands(s *session) error {
	if free := s.rx.Free(); free > 0 {
		n, err := s.readSome(s.readBuf[:min(len(s.readBuf), free)], srv.cfg.ReadTimeout)
		s.rx.Write(s.readBuf[:n])
		if err != nil {
			return err
		}
	}
	return srv.processCommands(s)
}

// processCommands decodes buffered commands until the buffer is empty or
// holds only a partial command.
func (srv *Server) processCommands(s *session) error {
	for s.rx.Len() > 0 {
		n := s.rx.Peek(s.cmdBuf[:])
		cmd, used, res := DecodeCommand(s.cmdBuf[:n])
		switch res {
		case NeedMore:
			return nil
		case Resync:
			kind := resyncKind(s.cmdBuf[0])
			s.log.Warn("discarding unparseable input",
				Field{Key: "opcode", Value: s.cmdBuf[0]},
				Field{Key: "buffered", Value: n},
				Field{Key: "kind", Value: kind})
			srv.metrics.ProtocolViolation(kind)
			s.rx.Reset()
			return nil
		}

		s.rx.Discard(used)
		srv.metrics.CommandReceived(cmd.Name())
		if err := srv.execute(s, cmd); err != nil {
			return err
		}
	}
	return nil
}

func resyncKind(opcode uint8) string {
	switch opcode {
	case OpSetEncodings, OpClientCutText:
		return "oversized_message"
	default:
		return "unknown_opcode"
	}
}

// execute applies one decoded command.
func (srv *Server) execute(s *session, cmd Command) error {
	switch c := cmd.(type) {
	case *SetPixelFormatCommand:
		if err := c.Format.CheckCompatible(); err != nil {
			srv.metrics.ProtocolViolation("pixel_format")
			s.log.Warn("requested pixel format is not compatible", Field{Key: "format", Value: c.Format})
			return protocolError("Server.execute", "incompatible pixel format", err)
		}
		s.pixelFormatSet.Store(true)
		s.log.Debug("pixel format accepted", Field{Key: "format", Value: c.Format})

	case *SetEncodingsCommand:
		s.log.Debug("ignoring encodings", Field{Key: "count", Value: len(c.Encodings)})

	case *FramebufferUpdateRequestCommand:
		r := c.Rect().Clip(srv.fb.Width(), srv.fb.Height())
		s.log.Debug("framebuffer update request",
			Field{Key: "incremental", Value: c.Incremental},
			Field{Key: "rect", Value: r})
		if !c.Incremental && r.Valid() {
			srv.tracker.MarkDirty(r)
		}

	case *KeyEventCommand:
		s.log.Debug("key event", Field{Key: "keysym", Value: fmt.Sprintf("0x%X", c.Keysym)}, Field{Key: "down", Value: c.Down})

	case *PointerEventCommand:
		x, y := int(c.X), int(c.Y)
		// Events past the edge are clamped so a release is never lost.
		if err := srv.validator.ValidatePointerPosition(x, y, srv.fb.Width(), srv.fb.Height()); err != nil {
			s.log.Debug("clamping pointer outside framebuffer", Field{Key: "x", Value: x}, Field{Key: "y", Value: y})
			x = min(x, srv.fb.Width()-1)
			y = min(y, srv.fb.Height()-1)
		}
		if srv.cfg.PointerHandler != nil {
			lx, ly := srv.fb.LogicalPoint(x, y)
			srv.cfg.PointerHandler.PointerEvent(c.Pressed(), lx, ly)
		}

	case *ClientCutTextCommand:
		s.log.Debug("received cut text", Field{Key: "text", Value: srv.validator.SanitizeText(c.Text)})
	}
	return nil
}
