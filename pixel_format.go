// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"encoding/binary"
	"fmt"
)

// PixelFormatLen is the size of the pixel format structure on the wire.
const PixelFormatLen = 16

// PixelFormat describes how pixel color data is encoded on the wire.
type PixelFormat struct {
	// BPP (bits-per-pixel) specifies how many bits are used to represent each pixel.
	BPP uint8

	// Depth specifies the number of useful bits within each pixel value.
	Depth uint8

	// BigEndian determines the byte order for multi-byte pixel values.
	BigEndian bool

	// TrueColor determines whether pixels represent direct RGB values (true)
	// or indices into a color map (false).
	TrueColor bool

	RedMax   uint16
	GreenMax uint16
	BlueMax  uint16

	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// ServerPixelFormat is the only format the server produces: 32 bits per
// pixel, 24-bit depth, little-endian, true color with red at bit 16. On the
// wire each pixel is therefore blue, green, red, pad.
var ServerPixelFormat = PixelFormat{
	BPP:        32,
	Depth:      24,
	BigEndian:  false,
	TrueColor:  true,
	RedMax:     255,
	GreenMax:   255,
	BlueMax:    255,
	RedShift:   16,
	GreenShift: 8,
	BlueShift:  0,
}

// MarshalBinary returns the 16-byte wire representation, including the
// three trailing padding bytes.
func (pf PixelFormat) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PixelFormatLen)
	pf.put(buf)
	return buf, nil
}

// put writes the wire representation into buf, which must be at least
// PixelFormatLen bytes long.
func (pf PixelFormat) put(buf []byte) {
	buf[0] = pf.BPP
	buf[1] = pf.Depth
	buf[2] = boolByte(pf.BigEndian)
	buf[3] = boolByte(pf.TrueColor)
	binary.BigEndian.PutUint16(buf[4:], pf.RedMax)
	binary.BigEndian.PutUint16(buf[6:], pf.GreenMax)
	binary.BigEndian.PutUint16(buf[8:], pf.BlueMax)
	buf[10] = pf.RedShift
	buf[11] = pf.GreenShift
	buf[12] = pf.BlueShift
	buf[13], buf[14], buf[15] = 0, 0, 0
}

// UnmarshalBinary parses the 16-byte wire representation.
func (pf *PixelFormat) UnmarshalBinary(data []byte) error {
	if len(data) < PixelFormatLen {
		return protocolError("PixelFormat.UnmarshalBinary",
			fmt.Sprintf("pixel format needs %d bytes, got %d", PixelFormatLen, len(data)), nil)
	}
	pf.parse(data)
	return nil
}

// parse reads the wire representation from data, which must be at least
// PixelFormatLen bytes long.
func (pf *PixelFormat) parse(data []byte) {
	pf.BPP = data[0]
	pf.Depth = data[1]
	pf.BigEndian = data[2] != 0
	pf.TrueColor = data[3] != 0
	pf.RedMax = binary.BigEndian.Uint16(data[4:])
	pf.GreenMax = binary.BigEndian.Uint16(data[6:])
	pf.BlueMax = binary.BigEndian.Uint16(data[8:])
	pf.RedShift = data[10]
	pf.GreenShift = data[11]
	pf.BlueShift = data[12]
}

// PixelFormatError reports a client pixel format the server cannot produce.
type PixelFormatError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error returns the formatted error message.
func (e *PixelFormatError) Error() string {
	return fmt.Sprintf("pixel format field %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// CheckCompatible reports whether pixels in ServerPixelFormat can be sent
// to a client that requested pf. Only the fields that change the byte layout
// are compared; channel maxima and shifts are not checked.
func (pf PixelFormat) CheckCompatible() error {
	switch {
	case pf.BPP != ServerPixelFormat.BPP:
		return &PixelFormatError{Field: "BPP", Value: pf.BPP, Message: "bits per pixel must be 32"}
	case pf.Depth != ServerPixelFormat.Depth:
		return &PixelFormatError{Field: "Depth", Value: pf.Depth, Message: "depth must be 24"}
	case pf.BigEndian:
		return &PixelFormatError{Field: "BigEndian", Value: pf.BigEndian, Message: "big-endian pixels are not supported"}
	case !pf.TrueColor:
		return &PixelFormatError{Field: "TrueColor", Value: pf.TrueColor, Message: "color-mapped pixels are not supported"}
	}
	return nil
}

// String implements fmt.Stringer.
func (pf PixelFormat) String() string {
	endian := "little"
	if pf.BigEndian {
		endian = "big"
	}
	return fmt.Sprintf("bpp=%d depth=%d %s-endian true_color=%t max=%d/%d/%d shift=%d/%d/%d",
		pf.BPP, pf.Depth, endian, pf.TrueColor,
		pf.RedMax, pf.GreenMax, pf.BlueMax, pf.RedShift, pf.GreenShift, pf.BlueShift)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
