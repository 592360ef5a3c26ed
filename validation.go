// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxDimension is the largest width or height the protocol can express.
const MaxDimension = 65535

// MaxNameLength is the longest desktop name sent in server-init.
const MaxNameLength = 64

// InputValidator validates configuration values and client input.
type InputValidator struct{}

// newInputValidator creates a new input validator.
func newInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateDimensions checks framebuffer dimensions before allocation.
func (iv *InputValidator) ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return validationError("InputValidator.ValidateDimensions",
			fmt.Sprintf("framebuffer dimensions must be positive, got %dx%d", width, height), nil)
	}

	if width > MaxDimension || height > MaxDimension {
		return validationError("InputValidator.ValidateDimensions",
			fmt.Sprintf("framebuffer dimensions too large: %dx%d (max %d)",
				width, height, MaxDimension), nil)
	}

	if area := width * height; area > MaxFramebufferPixels {
		return validationError("InputValidator.ValidateDimensions",
			fmt.Sprintf("framebuffer area too large: %d pixels (max %d)",
				area, MaxFramebufferPixels), nil)
	}

	return nil
}

// ValidateProtocolVersion checks the shape of a client version banner
// ("RFB xxx.yyy\n"). The session only logs a failure: any 12 bytes complete
// the version phase.
func (iv *InputValidator) ValidateProtocolVersion(version []byte) error {
	if len(version) != ProtocolVersionLen {
		return validationError("InputValidator.ValidateProtocolVersion",
			fmt.Sprintf("protocol version must be exactly %d bytes, got %d", ProtocolVersionLen, len(version)), nil)
	}

	if string(version[:4]) != "RFB " {
		return validationError("InputValidator.ValidateProtocolVersion",
			"protocol version must start with 'RFB '", nil)
	}

	if version[11] != '\n' {
		return validationError("InputValidator.ValidateProtocolVersion",
			"protocol version must end with newline", nil)
	}

	versionPart := version[4:11]
	if versionPart[3] != '.' {
		return validationError("InputValidator.ValidateProtocolVersion",
			"protocol version format must be XXX.YYY", nil)
	}

	for i, char := range versionPart {
		if i == 3 {
			continue
		}
		if char < '0' || char > '9' {
			return validationError("InputValidator.ValidateProtocolVersion",
				"protocol version must contain only digits and dot", nil)
		}
	}

	return nil
}

// ValidateName checks a configured desktop name.
func (iv *InputValidator) ValidateName(name string) error {
	if !utf8.ValidString(name) {
		return validationError("InputValidator.ValidateName",
			"desktop name contains invalid UTF-8 sequences", nil)
	}
	return nil
}

// TruncateName limits a desktop name to MaxNameLength bytes without
// splitting a UTF-8 sequence.
func (iv *InputValidator) TruncateName(name string) string {
	if len(name) <= MaxNameLength {
		return name
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// ValidateMessageLength validates a length field read from the wire.
func (iv *InputValidator) ValidateMessageLength(length uint32, maxLength uint32) error {
	if length > maxLength {
		return validationError("InputValidator.ValidateMessageLength",
			fmt.Sprintf("message length %d exceeds maximum %d", length, maxLength), nil)
	}

	return nil
}

// ValidatePointerPosition validates pointer coordinates against framebuffer bounds.
func (iv *InputValidator) ValidatePointerPosition(x, y, fbWidth, fbHeight int) error {
	if x < 0 || y < 0 || x >= fbWidth || y >= fbHeight {
		return validationError("InputValidator.ValidatePointerPosition",
			fmt.Sprintf("pointer position (%d,%d) exceeds framebuffer bounds (%d,%d)",
				x, y, fbWidth, fbHeight), nil)
	}

	return nil
}

// SanitizeText makes client text safe to log by replacing control and
// non-printable characters.
func (iv *InputValidator) SanitizeText(text string) string {
	if text == "" {
		return text
	}

	runes := []rune(text)
	sanitized := make([]rune, 0, len(runes))

	for _, r := range runes {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			sanitized = append(sanitized, ' ')
		case r < 32:
			sanitized = append(sanitized, ' ')
		case unicode.IsPrint(r):
			sanitized = append(sanitized, r)
		default:
			sanitized = append(sanitized, '�')
		}
	}

	return string(sanitized)
}
