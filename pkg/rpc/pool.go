// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Specialized pools for a few sizes: 1MB (download buffers), 256KB (payload
// streaming) and 64KB (smaller bodies).

package rpc

import (
	"sync"
)

const (
	buf1MBSize   = 1 << 20
	buf256KBSize = 256 << 10
	buf64KBSize  = 64 << 10
)

var (
	buf1MBPool   = sync.Pool{New: func() interface{} { b := make([]byte, buf1MBSize); return &b }}
	buf256KBPool = sync.Pool{New: func() interface{} { b := make([]byte, buf256KBSize); return &b }}
	buf64KBPool  = sync.Pool{New: func() interface{} { b := make([]byte, buf64KBSize); return &b }}
)

// GetBuffer returns a []byte with length n and capacity >= n.
// The buffer may not be zeroed!
func GetBuffer(n int) []byte {
	if n <= 4*1024 {
		// Don't bother with pools for small buffers.
		return make([]byte, n)
	} else if n <= buf64KBSize {
		return (*buf64KBPool.Get().(*[]byte))[:n]
	} else if n <= buf256KBSize {
		return (*buf256KBPool.Get().(*[]byte))[:n]
	} else if n <= buf1MBSize {
		return (*buf1MBPool.Get().(*[]byte))[:n]
	}
	// Or large ones.
	return make([]byte, n)
}

// PutBuffer returns a buffer to the pool. It's okay to call this on any buffer
// that isn't going to be used again, whether it came from GetBuffer or not.
// 'exclusive' indicates whether the caller is the exclusive owner of the
// buffer. If it's false the buffer is left alone.
func PutBuffer(b []byte, exclusive bool) {
	if !exclusive {
		return
	}
	b = b[:cap(b)]
	if cap(b) == buf1MBSize {
		buf1MBPool.Put(&b)
	} else if cap(b) == buf256KBSize {
		buf256KBPool.Put(&b)
	} else if cap(b) == buf64KBSize {
		buf64KBPool.Put(&b)
	}
}
