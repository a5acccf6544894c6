// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpc

import (
	"context"
	"errors"
	"os"
	"sync"

	log "github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/retry"
)

// DefaultMaxConns is the pool size if none is given. It's effectively
// unbounded.
const DefaultMaxConns = 1<<31 - 1

// DefaultConnectAttempts is how many times a pool tries to open a new
// connection before giving up.
const DefaultConnectAttempts = 10

var poolConnsSet = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "fdfs_pool",
	Name:      "connections",
}, []string{"pool", "state"})

// ErrPoolExhausted is the cause of the error returned by Acquire when the
// pool already has as many connections as it may have.
var ErrPoolExhausted = errors.New("too many connections")

// Pool hands out connections to the tracker cluster. A connection returned
// by Acquire must be handed back with exactly one of Release (it's healthy)
// or Discard (it's not).
type Pool interface {
	Acquire(ctx context.Context) (*Conn, error)
	Release(c *Conn)
	Discard(c *Conn)
	Destroy()
}

// ConnectionPool is a bounded set of reusable connections. Connections that
// are handed out are "in use", the others are "available"; a connection is
// never in both sets and the two never hold more than maxConns connections
// together.
//
// The pool remembers which process created it. If a call comes from a
// different process (we were forked), every connection is dropped before
// anything else happens, since the sockets belong to the parent.
//
// ConnectionPool is thread-safe.
type ConnectionPool struct {
	// Protects everything below.
	lock sync.Mutex

	name     string
	maxConns int
	factory  func() *Conn
	retrier  retry.Retrier

	// The process that owns the connections.
	pid    int
	getpid func() int

	available []*Conn
	inUse     map[*Conn]bool

	// Connections being created right now. They count against maxConns.
	pending int

	metricAvailable prometheus.Gauge
	metricInUse     prometheus.Gauge
}

// NewConnectionPool returns an empty pool that makes connections with
// 'factory'. A 'maxConns' of zero means DefaultMaxConns.
func NewConnectionPool(name string, maxConns int, factory func() *Conn) *ConnectionPool {
	if maxConns < 0 {
		log.Fatalf("max connections can not be negative")
	}
	if maxConns == 0 {
		maxConns = DefaultMaxConns
	}
	return &ConnectionPool{
		name:            name,
		maxConns:        maxConns,
		factory:         factory,
		retrier:         retry.Retrier{MaxNumRetries: DefaultConnectAttempts},
		pid:             os.Getpid(),
		getpid:          os.Getpid,
		inUse:           make(map[*Conn]bool),
		metricAvailable: poolConnsSet.WithLabelValues(name, "available"),
		metricInUse:     poolConnsSet.WithLabelValues(name, "in_use"),
	}
}

// SetRetrier replaces the policy used to retry opening new connections.
func (p *ConnectionPool) SetRetrier(r retry.Retrier) {
	p.lock.Lock()
	p.retrier = r
	p.lock.Unlock()
}

// Name returns the diagnostic name of the pool.
func (p *ConnectionPool) Name() string {
	return p.name
}

// Acquire hands out an available connection, or opens a new one if there is
// none.
func (p *ConnectionPool) Acquire(ctx context.Context) (*Conn, error) {
	p.lock.Lock()
	p.checkPIDLocked()
	if n := len(p.available); n > 0 {
		c := p.available[n-1]
		p.available = p.available[:n-1]
		p.inUse[c] = true
		p.updateMetricsLocked()
		p.lock.Unlock()
		return c, nil
	}
	if len(p.inUse)+p.pending >= p.maxConns {
		p.lock.Unlock()
		return nil, core.ServerError(core.ErrNetworkConn, p.name, ErrPoolExhausted)
	}
	p.pending++
	retrier := p.retrier
	p.lock.Unlock()

	// Don't hold the lock while dialing.
	c, err := p.makeConnection(ctx, retrier)

	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending--
	if err != nil {
		return nil, err
	}
	p.inUse[c] = true
	p.updateMetricsLocked()
	return c, nil
}

// makeConnection opens a new connection, retrying as 'retrier' allows.
func (p *ConnectionPool) makeConnection(ctx context.Context, retrier retry.Retrier) (*Conn, error) {
	c := p.factory()
	err := retrier.DoErr(ctx, func(i int) error {
		err := c.ConnectContext(ctx)
		if err != nil {
			log.V(1).Infof("[%s] connect attempt %d failed: %s", p.name, i+1, err)
		}
		return err
	})
	if err == nil {
		log.Infof("[%s] opened connection to %s", p.name, c.Addr())
		return c, nil
	}
	c.Disconnect()
	if ctx.Err() != nil {
		return nil, core.ServerError(core.ErrNetworkConn, c.Addr(), ctx.Err())
	}
	log.Errorf("[%s] giving up connecting to %s: %s", p.name, c.Addr(), err)
	return nil, err
}

// Release hands a healthy connection back.
func (p *ConnectionPool) Release(c *Conn) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.checkPIDLocked() {
		c.Disconnect()
		return
	}
	if !p.inUse[c] {
		for _, a := range p.available {
			if a == c {
				log.Errorf("[%s] connection to %s released twice", p.name, c.Addr())
				return
			}
		}
		// 'c' belongs to a generation of connections that was dropped by
		// Destroy.
		c.Disconnect()
		return
	}
	delete(p.inUse, c)
	if !c.Connected() {
		// Nothing to reuse.
		p.updateMetricsLocked()
		return
	}
	p.available = append(p.available, c)
	p.updateMetricsLocked()
}

// Discard drops a connection that can't be trusted anymore.
func (p *ConnectionPool) Discard(c *Conn) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.checkPIDLocked()
	delete(p.inUse, c)
	c.Disconnect()
	log.Infof("[%s] dropped connection to %s", p.name, c.Addr())
	p.updateMetricsLocked()
}

// Destroy disconnects every connection, available or in use, and empties
// the pool. The pool may still be used afterwards.
func (p *ConnectionPool) Destroy() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.resetLocked()
}

// Stats returns the number of available and in use connections.
func (p *ConnectionPool) Stats() (available, inUse int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.available), len(p.inUse)
}

// checkPIDLocked resets the pool if the current process isn't the one that
// created it, and reports whether it did.
func (p *ConnectionPool) checkPIDLocked() bool {
	pid := p.getpid()
	if pid == p.pid {
		return false
	}
	log.Infof("[%s] process id changed from %d to %d, resetting pool", p.name, p.pid, pid)
	p.resetLocked()
	p.pid = pid
	return true
}

func (p *ConnectionPool) resetLocked() {
	for _, c := range p.available {
		c.Disconnect()
	}
	for c := range p.inUse {
		// The owner is still holding it. Close the socket under its feet so
		// its next read or write fails; it gets cleaned up when handed back.
		c.abort()
	}
	p.available = nil
	p.inUse = make(map[*Conn]bool)
	p.updateMetricsLocked()
}

func (p *ConnectionPool) updateMetricsLocked() {
	p.metricAvailable.Set(float64(len(p.available)))
	p.metricInUse.Set(float64(len(p.inUse)))
}

// With acquires a connection from 'p', calls 'fn' with it, and hands it back
// on every way out of 'fn', panics included. The connection is released if
// 'fn' succeeds or fails with an error the connection can survive, and
// discarded if 'fn' fails with a socket error or a non-zero response status.
func With(ctx context.Context, p Pool, fn func(c *Conn) error) (err error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			p.Discard(c)
		}
	}()
	err = fn(c)
	done = true
	if keepAfter(err) {
		p.Release(c)
	} else {
		p.Discard(c)
	}
	return err
}

// keepAfter decides whether a connection may go back to the pool after a
// call ended with 'err'.
func keepAfter(err error) bool {
	if err == nil {
		return true
	}
	var oe *core.OpError
	if !errors.As(err, &oe) {
		return false
	}
	return oe.Kind != core.ErrNetworkConn && oe.Status == core.StatusOK
}
