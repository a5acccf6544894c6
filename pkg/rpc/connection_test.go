// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/testutil"
)

// Commands understood by testServer.
const (
	cmdEcho    = 1 // reply with the request body
	cmdFail    = 2 // reply with status 5
	cmdBadResp = 3 // reply with a header that isn't a response
	cmdHang    = 4 // never reply
	cmdCut     = 5 // announce 10 bytes, send 3 and hang up
	cmdHuge    = 6 // announce an absurd body length
	cmdHugeErr = 7 // same with a non-zero status
)

const testMaxBody = 1 << 20

// testServer answers frames on a local listener. It counts accepted
// connections.
type testServer struct {
	l        net.Listener
	lock     sync.Mutex
	accepted int
	conns    []net.Conn
}

func newTestServer(t *testing.T) *testServer {
	l, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	s := &testServer{l: l}
	go s.serve()
	t.Cleanup(s.close)
	return s
}

func (s *testServer) serve() {
	for {
		c, err := s.l.Accept()
		if err != nil {
			return
		}
		s.lock.Lock()
		s.accepted++
		s.conns = append(s.conns, c)
		s.lock.Unlock()
		go s.handle(c)
	}
}

func (s *testServer) handle(c net.Conn) {
	defer c.Close()
	br := bufio.NewReader(c)
	for {
		h, err := ReadHeader(br)
		if err != nil {
			return
		}
		body, err := ReadBody(br, h.Length)
		if err != nil {
			return
		}
		switch h.Cmd {
		case cmdEcho:
			WriteResponse(c, 0, body)
		case cmdFail:
			WriteResponse(c, 5, nil)
		case cmdBadResp:
			c.Write(Header{Cmd: 7}.Encode())
		case cmdHang:
			time.Sleep(time.Hour)
		case cmdHuge:
			c.Write(Header{Length: 1 << 62, Cmd: respCmd}.Encode())
		case cmdHugeErr:
			c.Write(Header{Length: 1 << 62, Cmd: respCmd, Status: 5}.Encode())
		case cmdCut:
			c.Write(Header{Length: 10, Cmd: respCmd}.Encode())
			c.Write([]byte("abc"))
			return
		}
	}
}

func (s *testServer) close() {
	s.l.Close()
	s.lock.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.lock.Unlock()
}

func (s *testServer) numAccepted() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.accepted
}

func (s *testServer) hostPort() (string, int) {
	host, port, _ := net.SplitHostPort(s.l.Addr().String())
	p, _ := strconv.Atoi(port)
	return host, p
}

func (s *testServer) newConn(timeout time.Duration) *Conn {
	host, port := s.hostPort()
	return NewConn([]string{host}, port, timeout)
}

func TestConnExchange(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Second)
	ctx := context.Background()

	require.NoError(t, c.Connect())
	require.True(t, c.Connected())
	// Connecting again is a no-op.
	require.NoError(t, c.Connect())

	require.NoError(t, c.Send(ctx, cmdEcho, []byte("head-"), strings.NewReader("payload"), 7))
	h, body, err := c.Recv(ctx, testMaxBody)
	require.NoError(t, err)
	assert.Equal(t, byte(0), h.Status)
	assert.Equal(t, "head-payload", string(body))

	// Several exchanges go over one socket.
	require.NoError(t, c.Send(ctx, cmdFail, nil, nil, 0))
	h, body, err = c.Recv(ctx, testMaxBody)
	require.NoError(t, err)
	assert.Equal(t, byte(5), h.Status)
	assert.Empty(t, body)

	require.NoError(t, c.Send(ctx, cmdEcho, []byte("xyz"), nil, 0))
	var out bytes.Buffer
	_, n, err := c.RecvTo(ctx, &out)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, "xyz", out.String())
	assert.Equal(t, 1, s.numAccepted())

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.False(t, c.Connected())
	assert.Equal(t, s.l.Addr().String(), c.Addr())
}

func TestConnRefused(t *testing.T) {
	c := NewConn([]string{"127.0.0.1"}, testutil.GetFreePort(), time.Second)
	err := c.Connect()
	require.Error(t, err)
	assert.Equal(t, core.ErrNetworkConn, core.KindOf(err))
	assert.Contains(t, err.Error(), c.Addr())
	assert.False(t, c.Connected())

	err = c.Send(context.Background(), cmdEcho, nil, nil, 0)
	assert.Equal(t, core.ErrNetworkConn, core.KindOf(err))
}

func TestConnNoHosts(t *testing.T) {
	err := NewConn(nil, 22122, time.Second).Connect()
	assert.Equal(t, core.ErrConfig, core.KindOf(err))
}

func TestConnBadResponse(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Second)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(context.Background(), cmdBadResp, nil, nil, 0))
	_, _, err := c.Recv(context.Background(), testMaxBody)
	assert.Equal(t, core.ErrProtocol, core.KindOf(err))
	assert.False(t, c.Connected())
}

// A body that ends early is a connectivity failure, not a protocol one.
func TestConnShortBody(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Second)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(context.Background(), cmdCut, nil, nil, 0))
	_, _, err := c.Recv(context.Background(), testMaxBody)
	assert.Equal(t, core.ErrNetworkConn, core.KindOf(err))
	assert.False(t, c.Connected())
}

func TestConnTimeout(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(50 * time.Millisecond)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(context.Background(), cmdHang, nil, nil, 0))
	_, _, err := c.Recv(context.Background(), testMaxBody)
	assert.Equal(t, core.ErrNetworkConn, core.KindOf(err))
}

// Cancelling the context closes the connection under a blocked read.
func TestConnCancel(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Hour)
	require.NoError(t, c.Connect())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Send(ctx, cmdHang, nil, nil, 0))

	time.AfterFunc(20*time.Millisecond, cancel)
	_, _, err := c.Recv(ctx, testMaxBody)
	assert.Equal(t, core.ErrNetworkConn, core.KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, c.Connected())
}

func TestConnShortPayload(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Second)
	require.NoError(t, c.Connect())
	err := c.Send(context.Background(), cmdEcho, nil, strings.NewReader("ab"), 5)
	assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err))
	assert.False(t, c.Connected())
}

// An announced length beyond the limit is rejected before anything is
// allocated.
func TestConnBodyTooLong(t *testing.T) {
	s := newTestServer(t)
	c := s.newConn(time.Second)
	ctx := context.Background()

	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(ctx, cmdHuge, nil, nil, 0))
	_, body, err := c.Recv(ctx, testMaxBody)
	assert.Equal(t, core.ErrProtocol, core.KindOf(err))
	assert.Nil(t, body)
	assert.False(t, c.Connected())

	// A small limit applies to honest bodies too.
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(ctx, cmdEcho, []byte("0123456789"), nil, 0))
	_, _, err = c.Recv(ctx, 4)
	assert.Equal(t, core.ErrProtocol, core.KindOf(err))
	assert.False(t, c.Connected())

	// Error responses read by RecvTo are bounded as well.
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send(ctx, cmdHugeErr, nil, nil, 0))
	var out bytes.Buffer
	_, n, err := c.RecvTo(ctx, &out)
	assert.Equal(t, core.ErrProtocol, core.KindOf(err))
	assert.Zero(t, n)
	assert.Zero(t, out.Len())
	assert.False(t, c.Connected())
}
