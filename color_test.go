// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import "testing"

func TestColor_BGRX(t *testing.T) {
	got := RGB(0x11, 0x22, 0x33).BGRX()
	want := [PixelBytes]byte{0x33, 0x22, 0x11, 0}
	if got != want {
		t.Errorf("BGRX() = % x, want % x", got, want)
	}
	if s := RGB(0x11, 0x22, 0x33).String(); s != "#112233" {
		t.Errorf("String() = %q", s)
	}
}

func TestColor_Decode(t *testing.T) {
	tests := []struct {
		name   string
		format SourceFormat
		px     []byte
		want   Color
	}{
		{"native", NativeFormat, []byte{0x33, 0x22, 0x11, 0x00}, RGB(0x11, 0x22, 0x33)},
		{"8888 big-endian", SourceFormat{Bitness: Bitness8888, BigEndian: true}, []byte{0x00, 0x11, 0x22, 0x33}, RGB(0x11, 0x22, 0x33)},
		{"888 big-endian", FormatRGB888, []byte{0x11, 0x22, 0x33}, RGB(0x11, 0x22, 0x33)},
		{"888 little-endian", SourceFormat{Bitness: Bitness888}, []byte{0x33, 0x22, 0x11}, RGB(0x11, 0x22, 0x33)},
		{"565 red", FormatRGB565, []byte{0x00, 0xf8}, RGB(255, 0, 0)},
		{"565 green big-endian", FormatRGB565BE, []byte{0x07, 0xe0}, RGB(0, 255, 0)},
		{"565 blue", FormatRGB565, []byte{0x1f, 0x00}, RGB(0, 0, 255)},
		{"565 bgr", SourceFormat{Bitness: Bitness565, Order: OrderBGR}, []byte{0x00, 0xf8}, RGB(0, 0, 255)},
		{"332 white", FormatRGB332, []byte{0xff}, RGB(255, 255, 255)},
		{"332 red", FormatRGB332, []byte{0xe0}, RGB(255, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Decode(tt.px); got != tt.want {
				t.Errorf("Decode(% x) = %v, want %v", tt.px, got, tt.want)
			}
		})
	}
}

func TestColor_EncodeDecode(t *testing.T) {
	// Primary colors survive every format without loss.
	formats := map[string]SourceFormat{
		"native":  NativeFormat,
		"888":     FormatRGB888,
		"565":     FormatRGB565,
		"565 be":  FormatRGB565BE,
		"332":     FormatRGB332,
		"565 bgr": {Bitness: Bitness565, Order: OrderBGR},
	}
	colors := []Color{ColorBlack, ColorWhite, ColorRed, ColorGreen, ColorBlue, ColorYellow, ColorCyan, ColorMagenta}

	for name, f := range formats {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, f.Bitness.BytesPerPixel())
			for _, c := range colors {
				f.Encode(c, buf)
				if got := f.Decode(buf); got != c {
					t.Errorf("Decode(Encode(%v)) = %v", c, got)
				}
			}
		})
	}
}

func TestColor_SourceFormatValidate(t *testing.T) {
	if err := FormatRGB565.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (SourceFormat{Bitness: Bitness(9)}).Validate(); !IsServerError(err, ErrValidation) {
		t.Errorf("Validate() with unknown bitness error = %v", err)
	}
	if err := (SourceFormat{Order: ColorOrder(5)}).Validate(); !IsServerError(err, ErrValidation) {
		t.Errorf("Validate() with unknown order error = %v", err)
	}
}

func TestColor_HSV(t *testing.T) {
	tests := []struct {
		h, s, v float64
		want    Color
	}{
		{0, 100, 100, ColorRed},
		{120, 100, 100, ColorGreen},
		{240, 100, 100, ColorBlue},
		{360, 100, 100, ColorRed},
		{60, 100, 100, ColorYellow},
		{0, 0, 100, ColorWhite},
		{200, 100, 0, ColorBlack},
	}

	for _, tt := range tests {
		if got := HSV(tt.h, tt.s, tt.v); got != tt.want {
			t.Errorf("HSV(%v, %v, %v) = %v, want %v", tt.h, tt.s, tt.v, got, tt.want)
		}
	}
}
