// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"bytes"
	"errors"
	"testing"
)

func TestPixelFormat_Wire(t *testing.T) {
	want := []byte{32, 24, 0, 1, 0, 255, 0, 255, 0, 255, 16, 8, 0, 0, 0, 0}

	got, err := ServerPixelFormat.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("MarshalBinary() = % x, want % x", got, want)
	}

	var pf PixelFormat
	if err := pf.UnmarshalBinary(want); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if pf != ServerPixelFormat {
		t.Errorf("UnmarshalBinary() = %+v, want %+v", pf, ServerPixelFormat)
	}

	if err := pf.UnmarshalBinary(want[:10]); !IsServerError(err, ErrProtocol) {
		t.Errorf("UnmarshalBinary(short) error = %v", err)
	}
}

func TestPixelFormat_CheckCompatible(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PixelFormat)
		field  string
	}{
		{"server format", func(*PixelFormat) {}, ""},
		{"different shifts accepted", func(pf *PixelFormat) { pf.RedShift, pf.BlueShift = 0, 16 }, ""},
		{"16 bpp", func(pf *PixelFormat) { pf.BPP, pf.Depth = 16, 16 }, "BPP"},
		{"depth 32", func(pf *PixelFormat) { pf.Depth = 32 }, "Depth"},
		{"big-endian", func(pf *PixelFormat) { pf.BigEndian = true }, "BigEndian"},
		{"color map", func(pf *PixelFormat) { pf.TrueColor = false }, "TrueColor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf := ServerPixelFormat
			tt.modify(&pf)
			err := pf.CheckCompatible()
			if tt.field == "" {
				if err != nil {
					t.Errorf("CheckCompatible() error = %v", err)
				}
				return
			}
			var pfErr *PixelFormatError
			if !errors.As(err, &pfErr) {
				t.Fatalf("CheckCompatible() error = %v, want *PixelFormatError", err)
			}
			if pfErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", pfErr.Field, tt.field)
			}
		})
	}
}
