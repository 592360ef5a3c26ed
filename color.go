// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"encoding/binary"
	"fmt"
)

// Color is an 8-bit-per-channel RGB value as produced by a rendering pipeline.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// RGB returns a Color from its components.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// BGRX returns the four bytes the framebuffer stores for this color:
// blue, green, red and an unused zero byte.
func (c Color) BGRX() [PixelBytes]byte {
	return [PixelBytes]byte{c.B, c.G, c.R, 0}
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorOrder is the channel order of source pixels handed to WriteBlock,
// read from the most significant bits of the pixel word downwards.
type ColorOrder uint8

const (
	// OrderRGB places red in the most significant channel position.
	OrderRGB ColorOrder = iota
	// OrderBGR places blue in the most significant channel position.
	OrderBGR
)

// Bitness is the size and channel split of source pixels.
type Bitness uint8

const (
	// Bitness8888 is 32 bits per pixel, 8 bits per channel plus a pad byte.
	Bitness8888 Bitness = iota
	// Bitness888 is 24 bits per pixel, 8 bits per channel.
	Bitness888
	// Bitness565 is 16 bits per pixel, 5/6/5 bits per channel.
	Bitness565
	// Bitness332 is 8 bits per pixel, 3/3/2 bits per channel.
	Bitness332
)

// BytesPerPixel returns the number of source bytes per pixel.
func (b Bitness) BytesPerPixel() int {
	switch b {
	case Bitness8888:
		return 4
	case Bitness888:
		return 3
	case Bitness565:
		return 2
	case Bitness332:
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (b Bitness) String() string {
	switch b {
	case Bitness8888:
		return "8888"
	case Bitness888:
		return "888"
	case Bitness565:
		return "565"
	case Bitness332:
		return "332"
	default:
		return fmt.Sprintf("bitness(%d)", uint8(b))
	}
}

// SourceFormat describes the layout of pixel data passed to WriteBlock.
type SourceFormat struct {
	Bitness   Bitness
	Order     ColorOrder
	BigEndian bool
}

// NativeFormat is the framebuffer's own layout: a little-endian 0x00RRGGBB
// word, i.e. bytes blue, green, red, pad. Blocks in this format are copied
// row by row without conversion.
var NativeFormat = SourceFormat{Bitness: Bitness8888, Order: OrderRGB, BigEndian: false}

// Common source formats produced by embedded rendering pipelines.
var (
	FormatRGB565   = SourceFormat{Bitness: Bitness565, Order: OrderRGB, BigEndian: false}
	FormatRGB565BE = SourceFormat{Bitness: Bitness565, Order: OrderRGB, BigEndian: true}
	FormatRGB888   = SourceFormat{Bitness: Bitness888, Order: OrderRGB, BigEndian: true}
	FormatRGB332   = SourceFormat{Bitness: Bitness332, Order: OrderRGB}
)

// Validate checks that the format can be decoded.
func (f SourceFormat) Validate() error {
	if f.Bitness.BytesPerPixel() == 0 {
		return validationError("SourceFormat.Validate", fmt.Sprintf("unknown bitness %d", uint8(f.Bitness)), nil)
	}
	if f.Order != OrderRGB && f.Order != OrderBGR {
		return validationError("SourceFormat.Validate", fmt.Sprintf("unknown color order %d", uint8(f.Order)), nil)
	}
	return nil
}

// Decode converts one source pixel into a Color. px must hold at least
// BytesPerPixel bytes.
func (f SourceFormat) Decode(px []byte) Color {
	var v uint32
	n := f.Bitness.BytesPerPixel()
	switch n {
	case 1:
		v = uint32(px[0])
	case 2:
		if f.BigEndian {
			v = uint32(binary.BigEndian.Uint16(px))
		} else {
			v = uint32(binary.LittleEndian.Uint16(px))
		}
	case 3:
		if f.BigEndian {
			v = uint32(px[0])<<16 | uint32(px[1])<<8 | uint32(px[2])
		} else {
			v = uint32(px[2])<<16 | uint32(px[1])<<8 | uint32(px[0])
		}
	case 4:
		if f.BigEndian {
			v = binary.BigEndian.Uint32(px)
		} else {
			v = binary.LittleEndian.Uint32(px)
		}
	}

	// hi is the channel in the most significant position, lo the least.
	var hi, mid, lo uint8
	switch f.Bitness {
	case Bitness8888, Bitness888:
		hi = uint8(v >> 16) // #nosec G115 - truncation to the channel is intended
		mid = uint8(v >> 8) // #nosec G115
		lo = uint8(v)       // #nosec G115
	case Bitness565:
		hi = scaleChannel(v>>11&0x1f, 0x1f)
		mid = scaleChannel(v>>5&0x3f, 0x3f)
		lo = scaleChannel(v&0x1f, 0x1f)
	case Bitness332:
		hi = scaleChannel(v>>5&0x07, 0x07)
		mid = scaleChannel(v>>2&0x07, 0x07)
		lo = scaleChannel(v&0x03, 0x03)
	}

	if f.Order == OrderBGR {
		return Color{R: lo, G: mid, B: hi}
	}
	return Color{R: hi, G: mid, B: lo}
}

// Encode is the inverse of Decode for the given format, used by renderers
// and tests that need to produce source data.
func (f SourceFormat) Encode(c Color, dst []byte) {
	hi, mid, lo := c.R, c.G, c.B
	if f.Order == OrderBGR {
		hi, lo = c.B, c.R
	}

	var v uint32
	switch f.Bitness {
	case Bitness8888, Bitness888:
		v = uint32(hi)<<16 | uint32(mid)<<8 | uint32(lo)
	case Bitness565:
		v = uint32(hi>>3)<<11 | uint32(mid>>2)<<5 | uint32(lo>>3)
	case Bitness332:
		v = uint32(hi>>5)<<5 | uint32(mid>>5)<<2 | uint32(lo>>6)
	}

	switch f.Bitness.BytesPerPixel() {
	case 1:
		dst[0] = uint8(v) // #nosec G115
	case 2:
		if f.BigEndian {
			binary.BigEndian.PutUint16(dst, uint16(v)) // #nosec G115
		} else {
			binary.LittleEndian.PutUint16(dst, uint16(v)) // #nosec G115
		}
	case 3:
		if f.BigEndian {
			dst[0], dst[1], dst[2] = uint8(v>>16), uint8(v>>8), uint8(v) // #nosec G115
		} else {
			dst[0], dst[1], dst[2] = uint8(v), uint8(v>>8), uint8(v>>16) // #nosec G115
		}
	case 4:
		if f.BigEndian {
			binary.BigEndian.PutUint32(dst, v)
		} else {
			binary.LittleEndian.PutUint32(dst, v)
		}
	}
}

// scaleChannel expands a channel of the given maximum to 0-255.
func scaleChannel(v, maxVal uint32) uint8 {
	return uint8(v * 255 / maxVal) // #nosec G115 - result is always <= 255
}

// HSV converts hue (degrees, 0-360), saturation and value (0-100) to a Color.
func HSV(h, s, v float64) Color {
	h = mod(h, 360.0) / 60.0
	s = s / 100.0
	v = v / 100.0

	chroma := v * s
	x := chroma * (1.0 - abs(mod(h, 2.0)-1.0))
	m := v - chroma

	var r, g, b float64
	switch int(h) {
	case 0:
		r, g, b = chroma, x, 0
	case 1:
		r, g, b = x, chroma, 0
	case 2:
		r, g, b = 0, chroma, x
	case 3:
		r, g, b = 0, x, chroma
	case 4:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}

	return Color{
		R: uint8((r + m) * 255), // #nosec G115 - bounded to [0,255]
		G: uint8((g + m) * 255), // #nosec G115
		B: uint8((b + m) * 255), // #nosec G115
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// mod returns the non-negative floating-point remainder of x/y.
func mod(x, y float64) float64 {
	r := x - y*float64(int(x/y))
	if r < 0 {
		r += y
	}
	return r
}

// Common colors.
var (
	ColorBlack   = Color{R: 0, G: 0, B: 0}
	ColorWhite   = Color{R: 255, G: 255, B: 255}
	ColorGrey    = Color{R: 0x80, G: 0x80, B: 0x80}
	ColorRed     = Color{R: 255, G: 0, B: 0}
	ColorGreen   = Color{R: 0, G: 255, B: 0}
	ColorBlue    = Color{R: 0, G: 0, B: 255}
	ColorYellow  = Color{R: 255, G: 255, B: 0}
	ColorMagenta = Color{R: 255, G: 0, B: 255}
	ColorCyan    = Color{R: 0, G: 255, B: 255}
)
