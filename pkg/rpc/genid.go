// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package rpc

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	processIDPrefix = makePrefix()
	nextID          uint64
)

func makePrefix() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0] + "-"
}

// GenID returns a unique string to tag the log lines of one client call. It
// combines a random per-process prefix with a 64 bit sequence number, so ids
// from different processes writing to the same log don't collide.
func GenID() string {
	id := atomic.AddUint64(&nextID, 1)
	return processIDPrefix + strconv.FormatUint(id, 36)
}
