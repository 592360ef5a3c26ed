// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestInputValidator_ValidateDimensions(t *testing.T) {
	validator := newInputValidator()

	tests := []struct {
		name          string
		width, height int
		wantErr       bool
	}{
		{"device panel", 240, 135, false},
		{"single pixel", 1, 1, false},
		{"zero width", 0, 100, true},
		{"negative height", 100, -1, true},
		{"too wide", MaxDimension + 1, 1, true},
		{"area too large", 5000, 5000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDimensions(tt.width, tt.height)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDimensions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsServerError(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestInputValidator_ValidateProtocolVersion(t *testing.T) {
	validator := newInputValidator()

	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"3.3", "RFB 003.003\n", false},
		{"3.8", "RFB 003.008\n", false},
		{"too short", "RFB 003.003", true},
		{"wrong prefix", "VNC 003.003\n", true},
		{"missing newline", "RFB 003.003 ", true},
		{"missing dot", "RFB 003-003\n", true},
		{"letters", "RFB 00a.003\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateProtocolVersion([]byte(tt.version))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProtocolVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
		})
	}
}

func TestInputValidator_Names(t *testing.T) {
	validator := newInputValidator()

	if err := validator.ValidateName("thermostat"); err != nil {
		t.Errorf("ValidateName() error = %v", err)
	}
	if err := validator.ValidateName(string([]byte{0xff, 0xfe})); err == nil {
		t.Error("ValidateName() should reject invalid UTF-8")
	}

	if got := validator.TruncateName("short"); got != "short" {
		t.Errorf("TruncateName() = %q", got)
	}

	long := strings.Repeat("a", MaxNameLength+10)
	if got := validator.TruncateName(long); len(got) != MaxNameLength {
		t.Errorf("TruncateName() length = %d, want %d", len(got), MaxNameLength)
	}

	// A three-byte rune straddling the limit is dropped whole.
	straddle := strings.Repeat("a", MaxNameLength-1) + "€"
	got := validator.TruncateName(straddle)
	if len(got) != MaxNameLength-1 || !utf8.ValidString(got) {
		t.Errorf("TruncateName() = %q (%d bytes)", got, len(got))
	}
}

func TestInputValidator_ValidateMessageLength(t *testing.T) {
	validator := newInputValidator()

	if err := validator.ValidateMessageLength(256, 256); err != nil {
		t.Errorf("ValidateMessageLength(256, 256) error = %v", err)
	}
	if err := validator.ValidateMessageLength(257, 256); err == nil {
		t.Error("ValidateMessageLength(257, 256) should fail")
	}
}

func TestInputValidator_ValidatePointerPosition(t *testing.T) {
	validator := newInputValidator()

	tests := []struct {
		x, y    int
		wantErr bool
	}{
		{0, 0, false},
		{239, 134, false},
		{240, 0, true},
		{0, 135, true},
		{-1, 5, true},
	}

	for _, tt := range tests {
		err := validator.ValidatePointerPosition(tt.x, tt.y, 240, 135)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePointerPosition(%d, %d) error = %v, wantErr %v", tt.x, tt.y, err, tt.wantErr)
		}
	}
}

func TestInputValidator_SanitizeText(t *testing.T) {
	validator := newInputValidator()

	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"line\nbreak\ttab", "line break tab"},
		{"bell\x07", "bell "},
		{"zero\u200bwidth", "zero\ufffdwidth"},
	}

	for _, tt := range tests {
		if got := validator.SanitizeText(tt.input); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
