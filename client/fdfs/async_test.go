// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/internal/fdfstest"
)

func newTestAsyncClient(t *testing.T, options Options) (*AsyncClient, *fdfstest.Server) {
	s := fdfstest.New(t)
	a, err := NewAsyncClient(stubConfig(s), options)
	require.NoError(t, err)
	return a, s
}

func TestAsyncUploadDelete(t *testing.T) {
	a, s := newTestAsyncClient(t, Options{})
	ctx := context.Background()

	url, err := a.Upload(ctx, []byte("async data"), "")
	require.NoError(t, err)
	prefix := "http://" + s.StorageIP() + "/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	// No extension given.
	assert.True(t, strings.HasSuffix(url, "."+DefaultAsyncExt), url)

	name := strings.TrimPrefix(url, prefix+fdfstest.DefaultGroup+"/")
	content, ok := s.Content(name)
	require.True(t, ok)
	assert.Equal(t, "async data", string(content))

	res, err := a.Delete(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, statusDeleted, res.Status)
	assert.Equal(t, fdfstest.DefaultGroup+"/"+name, res.FileID)
	_, ok = s.Content(name)
	assert.False(t, ok)

	_, err = a.Delete(ctx, url)
	assert.True(t, IsNotFound(err))

	// Nothing is kept open between calls.
	assert.Eventually(t, func() bool { return s.OpenConns() == 0 }, time.Second, time.Millisecond)
}

func TestAsyncValidation(t *testing.T) {
	a, s := newTestAsyncClient(t, Options{})
	_, err := a.Upload(context.Background(), nil, "txt")
	assert.Equal(t, ErrInvalidArgument, KindOf(err))
	_, err = a.Delete(context.Background(), "nogroup")
	assert.Equal(t, ErrInvalidArgument, KindOf(err))
	assert.Empty(t, s.Requests(core.TrackerQueryStoreWithoutGroupOne))
	assert.Empty(t, s.Requests(core.TrackerQueryUpdate))
}

// Cancelling a call closes the connection it's waiting on.
func TestAsyncCancel(t *testing.T) {
	a, s := newTestAsyncClient(t, Options{})
	s.SetStall(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Upload(ctx, []byte("never stored"), "txt")
		done <- err
	}()

	// Wait until the storage server has the request.
	require.Eventually(t, func() bool {
		return len(s.Requests(core.StorageUploadFile)) == 1
	}, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, ErrNetworkConn, KindOf(err))
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("upload didn't return after cancel")
	}
	assert.Eventually(t, func() bool { return s.OpenConns() == 0 }, time.Second, time.Millisecond)
}

func TestAsyncDeadline(t *testing.T) {
	a, s := newTestAsyncClient(t, Options{})
	s.SetStall(true)
	id := s.Put("M00/00/00/keep.txt", []byte("x"), false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.Delete(ctx, id.String())
	assert.Equal(t, ErrNetworkConn, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Eventually(t, func() bool { return s.OpenConns() == 0 }, time.Second, time.Millisecond)
}
