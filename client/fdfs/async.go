// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"bytes"
	"context"
	"time"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
)

// DefaultAsyncExt is the extension AsyncClient.Upload uses if none is given.
const DefaultAsyncExt = "jpg"

// AsyncClient uploads and deletes files without a connection pool. Every
// call connects to a tracker picked at random, then to the storage server,
// and closes both when done. Calls are bounded by their context: cancelling
// it closes whatever connection is in use.
//
// AsyncClient is thread-safe. It holds no connections between calls, so it
// doesn't need closing.
type AsyncClient struct {
	trackers TrackerTalker
	storage  StorageTalker
	hosts    *hostResolver
	instance string
}

// NewAsyncClient returns an AsyncClient for the trackers in 'config'. Only
// the URL related fields of 'options' are used.
func NewAsyncClient(config TrackerConfig, options Options) (*AsyncClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options.setDefaults()
	return &AsyncClient{
		trackers: NewRPCTrackerTalker(oneShotPool{config: config}),
		storage:  NewRPCStorageTalker(config.Timeout),
		hosts:    newHostResolver(config.Hosts, options),
		instance: options.Instance,
	}, nil
}

// Upload stores 'content' as a new file with extension 'ext' and returns its
// public URL.
func (a *AsyncClient) Upload(ctx context.Context, content []byte, ext string) (string, error) {
	const op = "async_upload"
	if len(content) == 0 {
		return "", core.Annotate(invalidArg("empty buffer"), op, "")
	}
	if ext == "" {
		ext = DefaultAsyncExt
	}
	defer a.track(op, time.Now())
	reqID := rpc.GenID()

	srv, err := a.trackers.QueryStore(ctx, "")
	if err != nil {
		log.Errorf("%s: %s couldn't get a storage server: %s", reqID, op, err)
		return "", core.Annotate(err, op, "")
	}
	log.V(1).Infof("%s: %s of %d bytes to %s", reqID, op, len(content), srv.Addr())
	req := core.UploadReq{StorePathIndex: srv.StorePathIndex, Size: int64(len(content)), Ext: trimExt(ext)}
	id, err := a.storage.Upload(ctx, srv, req, bytes.NewReader(content), nil)
	if err != nil {
		log.Errorf("%s: %s to %s failed: %s", reqID, op, srv.Addr(), err)
		return "", core.Annotate(err, op, "")
	}
	clientOpBytesSet.WithLabelValues(op, a.instance).Add(float64(len(content)))
	return a.hosts.host(ctx, srv.IPAddr) + id.String(), nil
}

// Delete removes 'fileID'.
func (a *AsyncClient) Delete(ctx context.Context, fileID string) (*Result, error) {
	const op = "async_delete"
	id, err := parseID(fileID)
	if err != nil {
		return nil, core.Annotate(err, op, fileID)
	}
	defer a.track(op, time.Now())
	reqID := rpc.GenID()

	srv, err := a.trackers.QueryUpdate(ctx, id)
	if err != nil {
		log.Errorf("%s: %s couldn't locate %s: %s", reqID, op, id, err)
		return nil, core.Annotate(err, op, fileID)
	}
	log.V(1).Infof("%s: %s of %s on %s", reqID, op, id, srv.Addr())
	if err := a.storage.Delete(ctx, srv, id); err != nil {
		log.Errorf("%s: %s of %s on %s failed: %s", reqID, op, id, srv.Addr(), err)
		return nil, core.Annotate(err, op, fileID)
	}
	return &Result{Group: id.Group, FileID: id.String(), Status: statusDeleted, StorageIP: srv.IPAddr}, nil
}

func (a *AsyncClient) track(op string, start time.Time) {
	clientOpLatenciesSet.WithLabelValues(op, a.instance).Observe(float64(time.Since(start)) / 1e9)
}

// oneShotPool is an rpc.Pool that opens a new tracker connection for every
// Acquire and closes it when it's handed back.
type oneShotPool struct {
	config TrackerConfig
}

func (p oneShotPool) Acquire(ctx context.Context) (*rpc.Conn, error) {
	c := rpc.NewConn(p.config.Hosts, p.config.Port, p.config.Timeout)
	if err := c.ConnectContext(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (p oneShotPool) Release(c *rpc.Conn) {
	c.Disconnect()
}

func (p oneShotPool) Discard(c *rpc.Conn) {
	c.Disconnect()
}

func (p oneShotPool) Destroy() {}
