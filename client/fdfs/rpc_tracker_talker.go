// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
)

// RPCTrackerTalker implements TrackerTalker on pooled tracker connections.
//
// A connection goes back to the pool after a call that succeeded or whose
// response didn't decode. It's dropped after a socket error or a non-zero
// status, since some trackers close the socket right after sending an error.
type RPCTrackerTalker struct {
	pool rpc.Pool
}

// NewRPCTrackerTalker returns a TrackerTalker that gets connections from 'pool'.
func NewRPCTrackerTalker(pool rpc.Pool) *RPCTrackerTalker {
	return &RPCTrackerTalker{pool: pool}
}

// exchange sends one request and hands the response body, at most 'maxLen'
// bytes, to 'decode'.
func (r *RPCTrackerTalker) exchange(ctx context.Context, cmd byte, body []byte, maxLen int64, decode func([]byte) error) error {
	return rpc.With(ctx, r.pool, func(c *rpc.Conn) error {
		if err := c.Send(ctx, cmd, body, nil, 0); err != nil {
			return err
		}
		h, resp, err := c.Recv(ctx, maxLen)
		if err != nil {
			return err
		}
		if h.Status != core.StatusOK {
			log.Errorf("tracker %s answered cmd %d with status %d", c.Addr(), cmd, h.Status)
			return core.StatusError(h.Status, c.Addr(), false)
		}
		if err := decode(resp); err != nil {
			log.Errorf("bad response from tracker %s to cmd %d: %s", c.Addr(), cmd, err)
			return core.ServerError(core.ErrProtocol, c.Addr(), err)
		}
		return nil
	})
}

// QueryStore implements TrackerTalker.
func (r *RPCTrackerTalker) QueryStore(ctx context.Context, group string) (s core.StorageServer, err error) {
	req := core.QueryStoreReq{Group: group}
	err = r.exchange(ctx, req.Cmd(), req.Encode(), core.MaxQueryRespLen, func(b []byte) (err error) {
		s, err = core.DecodeStorageServer(b, true)
		return
	})
	return
}

// QueryUpdate implements TrackerTalker.
func (r *RPCTrackerTalker) QueryUpdate(ctx context.Context, id core.FileID) (core.StorageServer, error) {
	return r.queryFile(ctx, core.QueryFileReq{Update: true, ID: id})
}

// QueryFetch implements TrackerTalker.
func (r *RPCTrackerTalker) QueryFetch(ctx context.Context, id core.FileID) (core.StorageServer, error) {
	return r.queryFile(ctx, core.QueryFileReq{ID: id})
}

func (r *RPCTrackerTalker) queryFile(ctx context.Context, req core.QueryFileReq) (s core.StorageServer, err error) {
	err = r.exchange(ctx, req.Cmd(), req.Encode(), core.MaxQueryRespLen, func(b []byte) (err error) {
		s, err = core.DecodeStorageServer(b, false)
		return
	})
	return
}

// ListOneGroup implements TrackerTalker.
func (r *RPCTrackerTalker) ListOneGroup(ctx context.Context, group string) (g core.GroupStat, err error) {
	err = r.exchange(ctx, core.TrackerListOneGroup, core.EncodeListGroup(group), core.GroupStatSize, func(b []byte) error {
		if len(b) != core.GroupStatSize {
			return errors.Errorf("group record is %d bytes, expected %d", len(b), core.GroupStatSize)
		}
		stats, err := core.DecodeGroupStats(b)
		if err != nil {
			return err
		}
		g = stats[0]
		return nil
	})
	return
}

// ListAllGroups implements TrackerTalker.
func (r *RPCTrackerTalker) ListAllGroups(ctx context.Context) (gs []core.GroupStat, err error) {
	err = r.exchange(ctx, core.TrackerListAllGroups, nil, core.MaxListRespLen, func(b []byte) (err error) {
		gs, err = core.DecodeGroupStats(b)
		return
	})
	return
}

// ListServers implements TrackerTalker.
func (r *RPCTrackerTalker) ListServers(ctx context.Context, group, storageID string) (ss []core.StorageStat, err error) {
	err = r.exchange(ctx, core.TrackerListStorage, core.EncodeListServers(group, storageID), core.MaxListRespLen, func(b []byte) (err error) {
		ss, err = core.DecodeStorageStats(b)
		return
	})
	return
}

// Close implements TrackerTalker.
func (r *RPCTrackerTalker) Close() {
	r.pool.Destroy()
}
