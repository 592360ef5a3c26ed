// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors_CodeString(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrProtocol, "protocol"},
		{ErrNetwork, "network"},
		{ErrConfiguration, "configuration"},
		{ErrValidation, "validation"},
		{ErrUnsupported, "unsupported"},
		{ErrResource, "resource"},
		{ErrClosed, "closed"},
		{ErrorCode(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.code.String(); got != tt.expected {
				t.Errorf("ErrorCode.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrors_ServerErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServerError
		expected string
	}{
		{
			name: "error with underlying error",
			err: &ServerError{
				Op:      "Server.ListenAndServe",
				Code:    ErrResource,
				Message: "cannot listen on :5900",
				Err:     errors.New("address already in use"),
			},
			expected: "vncserver resource: Server.ListenAndServe: cannot listen on :5900: address already in use",
		},
		{
			name: "error without underlying error",
			err: &ServerError{
				Op:      "session.write",
				Code:    ErrClosed,
				Message: "server stopped",
			},
			expected: "vncserver closed: session.write: server stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("ServerError.Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewServerError("session.read", ErrNetwork, "read failed", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should find the underlying error")
	}
	if errors.Unwrap(err) != underlying {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), underlying)
	}
}

func TestErrors_Is(t *testing.T) {
	err := protocolError("Server.execute", "incompatible pixel format", nil)

	if !errors.Is(err, &ServerError{Op: "Server.execute", Code: ErrProtocol}) {
		t.Error("errors.Is() should match the same code and operation")
	}
	if errors.Is(err, &ServerError{Op: "Server.execute", Code: ErrNetwork}) {
		t.Error("errors.Is() should not match a different code")
	}
	if errors.Is(err, &ServerError{Op: "Server.step", Code: ErrProtocol}) {
		t.Error("errors.Is() should not match a different operation")
	}
}

func TestErrors_WrapError(t *testing.T) {
	if WrapError("op", ErrNetwork, "msg", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}

	err := WrapError("op", ErrNetwork, "msg", errors.New("boom"))
	if !IsServerError(err, ErrNetwork) {
		t.Errorf("WrapError() = %v, want network ServerError", err)
	}
}

func TestErrors_IsServerError(t *testing.T) {
	err := fmt.Errorf("setup: %w", resourceError("NewFramebuffer", "too large", nil))

	tests := []struct {
		name  string
		err   error
		codes []ErrorCode
		want  bool
	}{
		{"any code", err, nil, true},
		{"matching code", err, []ErrorCode{ErrResource}, true},
		{"one of several", err, []ErrorCode{ErrProtocol, ErrResource}, true},
		{"other code", err, []ErrorCode{ErrProtocol}, false},
		{"plain error", errors.New("plain"), nil, false},
		{"nil", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServerError(tt.err, tt.codes...); got != tt.want {
				t.Errorf("IsServerError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrors_GetErrorCode(t *testing.T) {
	if got := GetErrorCode(validationError("op", "bad", nil)); got != ErrValidation {
		t.Errorf("GetErrorCode() = %v, want %v", got, ErrValidation)
	}
	if got := GetErrorCode(errors.New("plain")); got != ErrorCode(-1) {
		t.Errorf("GetErrorCode(plain) = %v, want -1", got)
	}
}

func TestErrors_ReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"shutdown", nil, "closed"},
		{"network", networkError("session.read", "client closed connection", nil), "network"},
		{"protocol", protocolError("Server.execute", "incompatible pixel format", nil), "protocol"},
		{"foreign", errors.New("other"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reasonOf(tt.err); got != tt.want {
				t.Errorf("reasonOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
