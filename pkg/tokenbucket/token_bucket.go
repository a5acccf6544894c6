// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package tokenbucket

import (
	"context"
	"sync"
	"time"
)

// TokenBucket limits the rate of some quantity, typically bytes sent to a
// storage server. It is safe for use by multiple goroutines at once.
type TokenBucket struct {
	lock     sync.Mutex
	rate     float32
	capacity float32
	current  float32
	last     time.Time
}

// New returns a full bucket that refills at 'rate' tokens per second and
// holds at most 'capacity' tokens.
func New(rate float32, capacity float32) *TokenBucket {
	return &TokenBucket{
		rate:     rate,
		capacity: capacity,
		current:  capacity,
		last:     time.Now(),
	}
}

// Wait consumes n tokens and sleeps until the balance is non-negative again,
// giving up when 'ctx' is done. The tokens stay consumed either way.
func (tb *TokenBucket) Wait(ctx context.Context, n float32) error {
	d := tb.TakeAndUpdate(n, time.Now())
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TakeAndUpdate moves the bucket to 'now', consumes n tokens and returns how
// long the caller has to wait for the balance to be non-negative. The balance
// may go negative, in which case later callers wait for it too. A
// non-positive result means no wait.
func (tb *TokenBucket) TakeAndUpdate(n float32, now time.Time) time.Duration {
	tb.lock.Lock()
	defer tb.lock.Unlock()

	if now.After(tb.last) {
		tb.current += tb.rate * float32(now.Sub(tb.last).Seconds())
		tb.last = now
	}
	if tb.current > tb.capacity {
		tb.current = tb.capacity
	}
	tb.current -= n
	return time.Duration(-tb.current / tb.rate * float32(time.Second))
}

// SetRate changes the rate and capacity.
func (tb *TokenBucket) SetRate(rate, capacity float32) {
	tb.lock.Lock()
	tb.rate = rate
	tb.capacity = capacity
	tb.lock.Unlock()
}
