// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the kind of a client failure. The set is closed: every error
// returned by the client carries exactly one of these kinds, so callers can
// branch on the kind instead of parsing messages.
type Error int

const (
	// NoError means no error.
	NoError = Error(iota)

	// ErrConfig is returned if the tracker configuration is malformed or
	// incomplete.
	ErrConfig

	// ErrNetworkConn is returned if we fail to connect to a host, a socket
	// read/write fails or times out, or the pool can't hand out a connection.
	ErrNetworkConn

	// ErrProtocol is returned if a server answers with an unexpected command,
	// a non-zero status, or a body that doesn't have the expected layout.
	ErrProtocol

	// ErrInvalidArgument is returned for bad caller input. It's always
	// returned before any network I/O happens.
	ErrInvalidArgument

	// ErrNotFound is returned if the server reports the file doesn't exist.
	ErrNotFound

	// ErrNotAppender is returned if an append/modify/truncate targets a file
	// that wasn't uploaded as an appender file.
	ErrNotAppender

	// ErrUnknown is an error that we're not really sure about.
	ErrUnknown
)

var description = map[Error]string{
	NoError:            "no error",
	ErrConfig:          "configuration error",
	ErrNetworkConn:     "network connection error",
	ErrProtocol:        "protocol error",
	ErrInvalidArgument: "invalid argument",
	ErrNotFound:        "file was not found",
	ErrNotAppender:     "file is not an appender file",
	ErrUnknown:         "unknown error",
}

// String returns a human readable error message.
func (e Error) String() string {
	if s, ok := description[e]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(e))
}

// Error implements the 'error' interface so that a kind can be used as the
// target of errors.Is.
func (e Error) Error() string {
	return e.String()
}

// OpError is the error returned by every client operation. It records which
// operation failed, on which file, at which server, and the underlying cause.
type OpError struct {
	// Op is the public operation, e.g. "upload_by_buffer".
	Op string

	// Target is the remote file id or local path the operation was about.
	Target string

	// Addr is the tracker or storage server that failed, if any.
	Addr string

	// Kind classifies the failure.
	Kind Error

	// Status is the server status byte, if the failure came from a response
	// header. Zero otherwise.
	Status byte

	// Err is the underlying cause. May be nil.
	Err error
}

// Error implements the 'error' interface.
func (e *OpError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Target != "" {
		b.WriteString(e.Target)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Addr != "" {
		b.WriteString(" at ")
		b.WriteString(e.Addr)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is reports whether 'target' is the kind of this error.
func (e *OpError) Is(target error) bool {
	k, ok := target.(Error)
	return ok && k == e.Kind
}

// NewError returns an OpError of the given kind.
func NewError(kind Error, target string, cause error) *OpError {
	return &OpError{Kind: kind, Target: target, Err: cause}
}

// Errorf returns an OpError of the given kind with a formatted cause.
func Errorf(kind Error, target string, format string, args ...interface{}) *OpError {
	return &OpError{Kind: kind, Target: target, Err: fmt.Errorf(format, args...)}
}

// ServerError returns an OpError of the given kind that happened talking to
// the server at 'addr'.
func ServerError(kind Error, addr string, cause error) *OpError {
	return &OpError{Kind: kind, Addr: addr, Err: cause}
}

// ServerErrorf is ServerError with a formatted cause.
func ServerErrorf(kind Error, addr string, format string, args ...interface{}) *OpError {
	return &OpError{Kind: kind, Addr: addr, Err: fmt.Errorf(format, args...)}
}

// StatusError returns an OpError for a non-zero status in a response header
// from the server at 'addr'. ENOENT is always translated into ErrNotFound.
// 'appender' selects whether EINVAL means the target is not an appender file.
func StatusError(status byte, addr string, appender bool) *OpError {
	kind := ErrProtocol
	switch {
	case status == StatusNotFound:
		kind = ErrNotFound
	case status == StatusInvalid && appender:
		kind = ErrNotAppender
	}
	return &OpError{Kind: kind, Addr: addr, Status: status}
}

// Annotate fills in the operation and target of 'err' if it's an OpError that
// doesn't have them yet, and wraps anything else as ErrUnknown. A nil error
// stays nil.
func Annotate(err error, op, target string) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if !errors.As(err, &oe) {
		return &OpError{Op: op, Target: target, Kind: ErrUnknown, Err: err}
	}
	cp := *oe
	if cp.Op == "" {
		cp.Op = op
	}
	if cp.Target == "" {
		cp.Target = target
	}
	return &cp
}

// KindOf returns the kind of 'err'. A nil error is NoError and an error that
// didn't come from this package is ErrUnknown.
func KindOf(err error) Error {
	if err == nil {
		return NoError
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	var k Error
	if errors.As(err, &k) {
		return k
	}
	return ErrUnknown
}

// IsNetworkError checks whether the error means the connection it happened
// on can't be trusted anymore.
func IsNetworkError(err error) bool {
	return KindOf(err) == ErrNetworkConn
}
