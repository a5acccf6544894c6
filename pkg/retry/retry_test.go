// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Test that a task is attempted exactly MaxNumRetries times.
func TestMaxNumRetries(t *testing.T) {
	r := Retrier{MaxNumRetries: 10}
	calls := 0
	success, cancelled := r.Do(context.Background(), func(i int) bool {
		if i != calls {
			t.Fatalf("iteration %d, expected %d", i, calls)
		}
		calls++
		return false
	})
	if success || cancelled {
		t.Fatalf("expected (false, false), got (%v, %v)", success, cancelled)
	}
	if calls != 10 {
		t.Fatalf("expected 10 attempts, got %d", calls)
	}
}

// Test that Do stops at the first success.
func TestSuccess(t *testing.T) {
	r := Retrier{MinSleep: time.Millisecond, MaxSleep: 2 * time.Millisecond, MaxNumRetries: 10}
	calls := 0
	success, _ := r.Do(context.Background(), func(i int) bool {
		calls++
		return i == 2
	})
	if !success || calls != 3 {
		t.Fatalf("expected success after 3 attempts, got %v after %d", success, calls)
	}
}

// Test that cancelling the context stops the loop.
func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retrier{MinSleep: time.Hour}
	success, cancelled := r.Do(ctx, func(i int) bool {
		cancel()
		return false
	})
	if success || !cancelled {
		t.Fatalf("expected (false, true), got (%v, %v)", success, cancelled)
	}
}

// Test DoErr returns the last error of the task.
func TestDoErr(t *testing.T) {
	r := Retrier{MaxNumRetries: 3}
	errs := []error{errors.New("1"), errors.New("2"), errors.New("3")}
	err := r.DoErr(context.Background(), func(i int) error { return errs[i] })
	if err != errs[2] {
		t.Fatalf("expected the last error, got %v", err)
	}

	if err := r.DoErr(context.Background(), func(i int) error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.DoErr(ctx, func(i int) error { return errs[0] }); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
