// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpc

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

const respCmd = core.CmdResp

// Conn is one TCP connection to one of a set of equivalent servers. It's
// created unconnected; Connect picks one of the candidate hosts at random.
//
// Conn is NOT thread-safe. It has exactly one owner at a time, either a
// ConnectionPool or the call that created it.
type Conn struct {
	hosts   []string
	port    int
	timeout time.Duration

	// The process that created this connection.
	pid int

	// The address we connected to most recently. It's kept after
	// Disconnect so that errors can still name it.
	addr string

	// Set while connected.
	nc *timeoutConn
	br *bufio.Reader
}

// NewConn returns an unconnected Conn to any of 'hosts' on 'port'. Connecting,
// and every single read or write, is bounded by 'timeout' if it's not zero.
func NewConn(hosts []string, port int, timeout time.Duration) *Conn {
	return &Conn{
		hosts:   hosts,
		port:    port,
		timeout: timeout,
		pid:     os.Getpid(),
	}
}

// Connect is ConnectContext without a context.
func (c *Conn) Connect() error {
	return c.ConnectContext(context.Background())
}

// ConnectContext opens the socket if it isn't open yet. Cancelling 'ctx'
// aborts the dial.
func (c *Conn) ConnectContext(ctx context.Context) error {
	if c.nc != nil {
		return nil
	}
	if len(c.hosts) == 0 {
		return core.Errorf(core.ErrConfig, "", "no hosts to connect to")
	}
	c.addr = net.JoinHostPort(c.hosts[rand.Intn(len(c.hosts))], strconv.Itoa(c.port))
	d := net.Dialer{Timeout: c.timeout}
	nc, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		log.Errorf("error connecting to %s: %s", c.addr, err)
		return core.ServerError(core.ErrNetworkConn, c.addr, errors.Wrap(err, "connect"))
	}
	c.nc = &timeoutConn{Conn: nc, timeout: c.timeout}
	c.br = bufio.NewReader(c.nc)
	log.V(1).Infof("established connection to %s", c.addr)
	return nil
}

// Disconnect closes the socket. It's fine to call it on a closed Conn.
func (c *Conn) Disconnect() error {
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc, c.br = nil, nil
	log.V(1).Infof("closed connection to %s", c.addr)
	return err
}

// abort closes the socket but leaves the Conn looking connected. It's the
// only method that may be called while another goroutine owns the Conn.
func (c *Conn) abort() {
	if nc := c.nc; nc != nil {
		nc.Close()
	}
}

// Connected returns whether the socket is open.
func (c *Conn) Connected() bool {
	return c.nc != nil
}

// Addr returns the host:port this Conn is or was last connected to.
func (c *Conn) Addr() string {
	return c.addr
}

// PID returns the id of the process that created this Conn.
func (c *Conn) PID() int {
	return c.pid
}

// Send writes one request: the header, 'body', then 'payloadLen' bytes read
// from 'payload'.
func (c *Conn) Send(ctx context.Context, cmd byte, body []byte, payload io.Reader, payloadLen int64) error {
	if c.nc == nil {
		return core.ServerErrorf(core.ErrNetworkConn, c.addr, "send on a closed connection")
	}
	defer c.watch(ctx)()

	var pr *errReader
	if payload != nil {
		pr = &errReader{r: payload}
		payload = pr
	}
	log.V(2).Infof("send cmd %d with %d+%d bytes to %s", cmd, len(body), payloadLen, c.addr)
	if err := WriteFrame(c.nc, cmd, body, payload, payloadLen); err != nil {
		if pr != nil && pr.err != nil {
			// The other side will never get a complete frame.
			c.Disconnect()
			return core.ServerError(core.ErrUnknown, c.addr, errors.Wrap(pr.err, "read payload"))
		}
		if errors.Is(err, ErrShortPayload) {
			c.Disconnect()
			return core.ServerError(core.ErrInvalidArgument, c.addr, err)
		}
		return c.netError(ctx, "send", err)
	}
	return nil
}

// Recv reads one whole response into memory. A body longer than 'maxLen'
// is a protocol error and closes the connection; bodies of unknown size go
// through RecvTo. A non-zero status is not an error at this level; the caller
// decides what it means for its command.
func (c *Conn) Recv(ctx context.Context, maxLen int64) (Header, []byte, error) {
	h, err := c.recvHeader(ctx)
	if err != nil {
		return h, nil, err
	}
	if h.Length > maxLen {
		return h, nil, c.tooLong(h, maxLen)
	}
	defer c.watch(ctx)()
	body, err := ReadBody(c.br, h.Length)
	if err != nil {
		return h, nil, c.netError(ctx, "recv body", err)
	}
	return h, body, nil
}

// maxErrorBody bounds the body of a response with a non-zero status.
const maxErrorBody = 64 << 10

// RecvTo reads one response and streams its body into 'w'. If the status is
// non-zero, the body is dropped and 'w' isn't touched.
func (c *Conn) RecvTo(ctx context.Context, w io.Writer) (Header, int64, error) {
	h, err := c.recvHeader(ctx)
	if err != nil {
		return h, 0, err
	}
	if h.Status != core.StatusOK && h.Length > maxErrorBody {
		return h, 0, c.tooLong(h, maxErrorBody)
	}
	defer c.watch(ctx)()
	if h.Status != core.StatusOK {
		if _, err := CopyBody(io.Discard, c.br, h.Length); err != nil {
			return h, 0, c.netError(ctx, "recv body", err)
		}
		return h, 0, nil
	}
	ew := &errWriter{w: w}
	n, err := CopyBody(ew, c.br, h.Length)
	if err != nil {
		if ew.err != nil {
			c.Disconnect()
			return h, n, core.ServerError(core.ErrUnknown, c.addr, errors.Wrap(ew.err, "write body"))
		}
		return h, n, c.netError(ctx, "recv body", err)
	}
	return h, n, nil
}

// tooLong drops the connection after a response announced a body we won't
// read.
func (c *Conn) tooLong(h Header, maxLen int64) error {
	c.Disconnect()
	log.Errorf("response from %s announces %d bytes, more than the %d allowed", c.addr, h.Length, maxLen)
	return core.ServerErrorf(core.ErrProtocol, c.addr, "response body of %d bytes exceeds limit of %d", h.Length, maxLen)
}

func (c *Conn) recvHeader(ctx context.Context) (Header, error) {
	if c.nc == nil {
		return Header{}, core.ServerErrorf(core.ErrNetworkConn, c.addr, "recv on a closed connection")
	}
	defer c.watch(ctx)()
	h, err := ReadHeader(c.br)
	if err != nil {
		return h, c.netError(ctx, "recv header", err)
	}
	if h.Cmd != respCmd || h.Length < 0 {
		// We can't tell where the next frame starts anymore.
		c.Disconnect()
		return h, core.ServerErrorf(core.ErrProtocol, c.addr, "bad response header: cmd %d, length %d", h.Cmd, h.Length)
	}
	log.V(2).Infof("recv status %d with %d bytes from %s", h.Status, h.Length, c.addr)
	return h, nil
}

// watch closes the socket if 'ctx' is cancelled before the returned function
// is called.
func (c *Conn) watch(ctx context.Context) func() bool {
	nc := c.nc
	return context.AfterFunc(ctx, func() { nc.Close() })
}

// netError closes the connection after a socket level failure and returns
// the error to report.
func (c *Conn) netError(ctx context.Context, op string, err error) error {
	c.Disconnect()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	log.Errorf("%s on %s failed: %s", op, c.addr, err)
	return core.ServerError(core.ErrNetworkConn, c.addr, errors.Wrap(err, op))
}

// timeoutConn bounds every Read and Write by 'timeout'.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (t *timeoutConn) Read(p []byte) (int, error) {
	if t.timeout > 0 {
		t.Conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
	return t.Conn.Read(p)
}

func (t *timeoutConn) Write(p []byte) (int, error) {
	if t.timeout > 0 {
		t.Conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.Conn.Write(p)
}

// errReader and errWriter remember the error of the local side of a copy, so
// it isn't mistaken for a socket failure.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		e.err = err
	}
	return n, err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
