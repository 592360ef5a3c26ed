// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"encoding/binary"
	"fmt"
)

// ButtonMask represents the state of pointer buttons in a pointer event.
type ButtonMask uint8

// Button mask constants for standard mouse buttons and scroll wheel events.
const (
	ButtonLeft ButtonMask = 1 << iota
	ButtonMiddle
	ButtonRight
	Button4
	Button5
	Button6
	Button7
	Button8
)

// Client-to-server message types.
const (
	OpSetPixelFormat           uint8 = 0
	OpSetEncodings             uint8 = 2
	OpFramebufferUpdateRequest uint8 = 3
	OpKeyEvent                 uint8 = 4
	OpPointerEvent             uint8 = 5
	OpClientCutText            uint8 = 6
)

// Fixed message lengths, including the message type byte.
const (
	setPixelFormatLen    = 20
	setEncodingsHdrLen   = 4
	updateRequestLen     = 10
	keyEventLen          = 8
	pointerEventLen      = 6
	clientCutTextHdrLen  = 8
	maxClientCutTextSize = 256
)

// Command is a decoded client message. The set of implementations is closed.
type Command interface {
	// Type returns the message type byte.
	Type() uint8

	// Name returns a short label for logs and metrics.
	Name() string

	isCommand()
}

// SetPixelFormatCommand asks the server to send pixels in Format.
type SetPixelFormatCommand struct {
	Format PixelFormat
}

// SetEncodingsCommand lists the encodings the client accepts, most
// preferred first. The server only ever sends raw pixels.
type SetEncodingsCommand struct {
	Encodings []int32
}

// FramebufferUpdateRequestCommand asks for the given area to be sent.
type FramebufferUpdateRequestCommand struct {
	Incremental bool
	X, Y        uint16
	Width       uint16
	Height      uint16
}

// Rect returns the requested area.
func (c *FramebufferUpdateRequestCommand) Rect() Rect {
	return RectXYWH(int(c.X), int(c.Y), int(c.Width), int(c.Height))
}

// KeyEventCommand reports a key press or release.
type KeyEventCommand struct {
	Down   bool
	Keysym uint32
}

// PointerEventCommand reports pointer position and button state.
type PointerEventCommand struct {
	Mask ButtonMask
	X, Y uint16
}

// Pressed reports whether the primary button is down.
func (c *PointerEventCommand) Pressed() bool {
	return c.Mask&ButtonLeft != 0
}

// ClientCutTextCommand carries clipboard text from the client.
type ClientCutTextCommand struct {
	Text string
}

func (*SetPixelFormatCommand) Type() uint8           { return OpSetPixelFormat }
func (*SetEncodingsCommand) Type() uint8             { return OpSetEncodings }
func (*FramebufferUpdateRequestCommand) Type() uint8 { return OpFramebufferUpdateRequest }
func (*KeyEventCommand) Type() uint8                 { return OpKeyEvent }
func (*PointerEventCommand) Type() uint8             { return OpPointerEvent }
func (*ClientCutTextCommand) Type() uint8            { return OpClientCutText }

func (*SetPixelFormatCommand) Name() string           { return "set_pixel_format" }
func (*SetEncodingsCommand) Name() string             { return "set_encodings" }
func (*FramebufferUpdateRequestCommand) Name() string { return "framebuffer_update_request" }
func (*KeyEventCommand) Name() string                 { return "key_event" }
func (*PointerEventCommand) Name() string             { return "pointer_event" }
func (*ClientCutTextCommand) Name() string            { return "client_cut_text" }

func (*SetPixelFormatCommand) isCommand()           {}
func (*SetEncodingsCommand) isCommand()             {}
func (*FramebufferUpdateRequestCommand) isCommand() {}
func (*KeyEventCommand) isCommand()                 {}
func (*PointerEventCommand) isCommand()             {}
func (*ClientCutTextCommand) isCommand()            {}

// DecodeResult is the outcome of DecodeCommand.
type DecodeResult int

const (
	// Decoded means a complete command was parsed.
	Decoded DecodeResult = iota
	// NeedMore means the buffer holds only part of a command.
	NeedMore
	// Resync means the buffer cannot be parsed and must be cleared.
	Resync
)

// String implements fmt.Stringer.
func (r DecodeResult) String() string {
	switch r {
	case Decoded:
		return "decoded"
	case NeedMore:
		return "need_more"
	case Resync:
		return "resync"
	default:
		return fmt.Sprintf("decode_result(%d)", int(r))
	}
}

// DecodeCommand parses the command at the start of buf. On Decoded it returns
// the command and the number of bytes it occupied. On NeedMore the caller
// keeps the bytes and retries once more data arrives. On Resync the caller
// clears its buffer; n is zero in both cases.
//
// buf holds at most RingBufferSize bytes, so any message that could never
// fit is reported as Resync rather than NeedMore.
func DecodeCommand(buf []byte) (cmd Command, n int, res DecodeResult) {
	if len(buf) == 0 {
		return nil, 0, NeedMore
	}

	switch buf[0] {
	case OpSetPixelFormat:
		if len(buf) < setPixelFormatLen {
			return nil, 0, NeedMore
		}
		c := &SetPixelFormatCommand{}
		// The type byte is followed by three bytes of padding.
		c.Format.parse(buf[4:setPixelFormatLen])
		return c, setPixelFormatLen, Decoded

	case OpSetEncodings:
		if len(buf) < setEncodingsHdrLen {
			return nil, 0, NeedMore
		}
		count := int(binary.BigEndian.Uint16(buf[2:]))
		total := setEncodingsHdrLen + 4*count
		if total > RingBufferSize {
			return nil, 0, Resync
		}
		if len(buf) < total {
			return nil, 0, NeedMore
		}
		c := &SetEncodingsCommand{Encodings: make([]int32, count)}
		for i := range c.Encodings {
			c.Encodings[i] = int32(binary.BigEndian.Uint32(buf[setEncodingsHdrLen+4*i:])) // #nosec G115 - wire value is signed
		}
		return c, total, Decoded

	case OpFramebufferUpdateRequest:
		if len(buf) < updateRequestLen {
			return nil, 0, NeedMore
		}
		return &FramebufferUpdateRequestCommand{
			Incremental: buf[1] != 0,
			X:           binary.BigEndian.Uint16(buf[2:]),
			Y:           binary.BigEndian.Uint16(buf[4:]),
			Width:       binary.BigEndian.Uint16(buf[6:]),
			Height:      binary.BigEndian.Uint16(buf[8:]),
		}, updateRequestLen, Decoded

	case OpKeyEvent:
		if len(buf) < keyEventLen {
			return nil, 0, NeedMore
		}
		return &KeyEventCommand{
			Down:   buf[1] != 0,
			Keysym: binary.BigEndian.Uint32(buf[4:]),
		}, keyEventLen, Decoded

	case OpPointerEvent:
		if len(buf) < pointerEventLen {
			return nil, 0, NeedMore
		}
		return &PointerEventCommand{
			Mask: ButtonMask(buf[1]),
			X:    binary.BigEndian.Uint16(buf[2:]),
			Y:    binary.BigEndian.Uint16(buf[4:]),
		}, pointerEventLen, Decoded

	case OpClientCutText:
		if len(buf) < clientCutTextHdrLen {
			return nil, 0, NeedMore
		}
		textLen := binary.BigEndian.Uint32(buf[4:])
		if err := newInputValidator().ValidateMessageLength(textLen, maxClientCutTextSize); err != nil {
			return nil, 0, Resync
		}
		// Text that is not fully buffered once the header is present is
		// dropped along with the header.
		total := clientCutTextHdrLen + int(textLen)
		if len(buf) < total {
			return nil, 0, Resync
		}
		return &ClientCutTextCommand{Text: string(buf[clientCutTextHdrLen:total])}, total, Decoded

	default:
		return nil, 0, Resync
	}
}
