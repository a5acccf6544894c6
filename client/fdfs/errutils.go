// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

// Error is the kind of a client failure.
type Error = core.Error

// OpError is the type of every error the client returns.
type OpError = core.OpError

// Error kinds.
const (
	NoError            = core.NoError
	ErrConfig          = core.ErrConfig
	ErrNetworkConn     = core.ErrNetworkConn
	ErrProtocol        = core.ErrProtocol
	ErrInvalidArgument = core.ErrInvalidArgument
	ErrNotFound        = core.ErrNotFound
	ErrNotAppender     = core.ErrNotAppender
	ErrUnknown         = core.ErrUnknown
)

// KindOf returns the kind of an error returned by the client.
func KindOf(err error) Error {
	return core.KindOf(err)
}

// IsNotFound returns if the error means the file doesn't exist.
func IsNotFound(err error) bool {
	return core.KindOf(err) == core.ErrNotFound
}

// IsNotAppender returns if the error means the file isn't an appender file.
func IsNotAppender(err error) bool {
	return core.KindOf(err) == core.ErrNotAppender
}

// IsNetworkError returns if the error came from the network. Those are the
// errors worth retrying.
func IsNetworkError(err error) bool {
	return core.IsNetworkError(err)
}
