// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error categories for server operations.
type ErrorCode int

const (
	// ErrProtocol indicates a client that violated the wire protocol.
	ErrProtocol ErrorCode = iota
	// ErrNetwork indicates a transport failure other than a timeout.
	ErrNetwork
	// ErrConfiguration indicates an invalid server configuration.
	ErrConfiguration
	// ErrValidation indicates input validation failure.
	ErrValidation
	// ErrUnsupported indicates an unsupported feature or operation.
	ErrUnsupported
	// ErrResource indicates a setup-time resource failure (buffer, listener).
	ErrResource
	// ErrClosed indicates an operation on a stopped server or session.
	ErrClosed
)

// String returns the string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrProtocol:
		return "protocol"
	case ErrNetwork:
		return "network"
	case ErrConfiguration:
		return "configuration"
	case ErrValidation:
		return "validation"
	case ErrUnsupported:
		return "unsupported"
	case ErrResource:
		return "resource"
	case ErrClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ServerError provides structured error information with operation context,
// an error code and the wrapped cause.
type ServerError struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vncserver %s: %s: %s: %v", e.Code.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("vncserver %s: %s: %s", e.Code.String(), e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target error.
// Two ServerErrors match when both their code and operation are equal.
func (e *ServerError) Is(target error) bool {
	var srvErr *ServerError
	if errors.As(target, &srvErr) {
		return e.Code == srvErr.Code && e.Op == srvErr.Op
	}
	return false
}

// NewServerError creates a new ServerError with the specified parameters.
func NewServerError(op string, code ErrorCode, message string, err error) *ServerError {
	return &ServerError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wraps an existing error with server context.
// Returns nil if the input error is nil.
func WrapError(op string, code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	return NewServerError(op, code, message, err)
}

// IsServerError checks if an error is a ServerError and optionally matches
// one of the given codes. With no codes, any ServerError matches.
func IsServerError(err error, code ...ErrorCode) bool {
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		return false
	}

	if len(code) == 0 {
		return true
	}

	for _, c := range code {
		if srvErr.Code == c {
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code from a ServerError.
// Returns -1 if the error is not a ServerError.
func GetErrorCode(err error) ErrorCode {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Code
	}
	return ErrorCode(-1)
}

// reasonOf returns the short label used for disconnect reasons in logs and metrics.
func reasonOf(err error) string {
	if err == nil {
		return "closed"
	}
	if code := GetErrorCode(err); code >= 0 {
		return code.String()
	}
	return "unknown"
}

func protocolError(op, message string, err error) error {
	return NewServerError(op, ErrProtocol, message, err)
}

func networkError(op, message string, err error) error {
	return NewServerError(op, ErrNetwork, message, err)
}

func configurationError(op, message string, err error) error {
	return NewServerError(op, ErrConfiguration, message, err)
}

func validationError(op, message string, err error) error {
	return NewServerError(op, ErrValidation, message, err)
}

func resourceError(op, message string, err error) error {
	return NewServerError(op, ErrResource, message, err)
}

func closedError(op, message string) error {
	return NewServerError(op, ErrClosed, message, nil)
}
