// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package tokenbucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeAndUpdate(t *testing.T) {
	tb := New(100, 500)
	start := tb.last

	// The bucket starts full.
	assert.True(t, tb.TakeAndUpdate(500, start) <= 0)

	// One second refills 100.
	assert.True(t, tb.TakeAndUpdate(100, start.Add(time.Second)) <= 0)

	// Nothing left, 50 more takes half a second.
	d := tb.TakeAndUpdate(50, start.Add(time.Second))
	assert.InDelta(t, float64(500*time.Millisecond), float64(d), float64(10*time.Millisecond))

	// Refill is capped at capacity.
	assert.True(t, tb.TakeAndUpdate(500, start.Add(time.Hour)) <= 0)
	assert.True(t, tb.TakeAndUpdate(1, start.Add(time.Hour)) > 0)
}

func TestClockGoingBack(t *testing.T) {
	tb := New(100, 100)
	start := tb.last
	assert.True(t, tb.TakeAndUpdate(100, start.Add(time.Second)) <= 0)
	// An earlier time doesn't add or remove tokens.
	d := tb.TakeAndUpdate(10, start)
	assert.InDelta(t, float64(100*time.Millisecond), float64(d), float64(10*time.Millisecond))
}

// Simulated time: taking 'max' tokens in units of 'unit' at 'rate' from a
// bucket of 'capacity' takes (max-capacity)/rate seconds.
func TestSimulatedRate(t *testing.T) {
	for _, c := range []struct{ rate, capacity, unit, max float32 }{
		{100, 0, 1, 1000},
		{100, 0, 100, 1000},
		{100, 200, 10, 1000},
		{1 << 20, 1 << 20, 64 << 10, 10 << 20},
	} {
		tb := New(c.rate, c.capacity)
		start := tb.last
		now := start
		for i := float32(0); i < c.max; i += c.unit {
			if d := tb.TakeAndUpdate(c.unit, now); d > 0 {
				now = now.Add(d)
			}
		}
		expected := float64((c.max - c.capacity) / c.rate)
		assert.InEpsilon(t, expected, now.Sub(start).Seconds(), 0.02, "%+v", c)
	}
}

func TestWait(t *testing.T) {
	tb := New(1000, 0)
	start := time.Now()
	require.NoError(t, tb.Wait(context.Background(), 50))
	assert.True(t, time.Since(start) >= 40*time.Millisecond)

	// A deadline shorter than the wait gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, tb.Wait(ctx, 1000))
}
