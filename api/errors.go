// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for gcdispatch.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrDispatcherShutdown = errors.New("dispatcher is shut down")
	ErrNotStarted         = errors.New("dispatcher threads not started")
	ErrAlreadyStarted     = errors.New("dispatcher threads already started")
	ErrTaskInFlight       = errors.New("task already in flight")
	ErrThreadStartFailed  = errors.New("worker thread failed to start")
	ErrCapacityExceeded   = errors.New("thread pool capacity exceeded")
	ErrProtocolViolation  = errors.New("dispatcher protocol violation")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotSupported       = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeIllegalState
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeResourceExhausted:
		return "resource-exhausted"
	case ErrCodeNotSupported:
		return "not-supported"
	case ErrCodeIllegalState:
		return "illegal-state"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped sentinel so errors.Is works on structured errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err is not structured.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
