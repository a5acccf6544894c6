// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"io"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
)

// RPCStorageTalker implements StorageTalker. Storage servers change from
// call to call, so every operation opens its own connection and closes it
// when done.
type RPCStorageTalker struct {
	timeout time.Duration
}

// NewRPCStorageTalker returns a StorageTalker whose connections are bounded
// by 'timeout'.
func NewRPCStorageTalker(timeout time.Duration) *RPCStorageTalker {
	return &RPCStorageTalker{timeout: timeout}
}

// session connects to 'srv', runs 'fn', and disconnects.
func (r *RPCStorageTalker) session(ctx context.Context, srv core.StorageServer, fn func(c *rpc.Conn) error) error {
	c := rpc.NewConn([]string{srv.IPAddr}, srv.Port, r.timeout)
	if err := c.ConnectContext(ctx); err != nil {
		return err
	}
	defer c.Disconnect()
	return fn(c)
}

// roundTrip sends one request and returns the response body. 'appender' says
// whether EINVAL means the target isn't an appender file.
func roundTrip(ctx context.Context, c *rpc.Conn, cmd byte, body []byte, content io.Reader, size int64, appender bool) ([]byte, error) {
	if err := c.Send(ctx, cmd, body, content, size); err != nil {
		return nil, err
	}
	h, resp, err := c.Recv(ctx, core.MaxStorageRespLen)
	if err != nil {
		return nil, err
	}
	if h.Status != core.StatusOK {
		log.Errorf("storage %s answered cmd %d with status %d", c.Addr(), cmd, h.Status)
		return nil, core.StatusError(h.Status, c.Addr(), appender)
	}
	return resp, nil
}

// expectEmpty checks that a response that shouldn't carry data doesn't.
func expectEmpty(c *rpc.Conn, resp []byte) error {
	if len(resp) != 0 {
		return core.ServerErrorf(core.ErrProtocol, c.Addr(), "expected an empty response body, got %d bytes", len(resp))
	}
	return nil
}

// uploaded finishes an upload: it decodes the new id and sets 'meta' on it
// over the same connection.
func uploaded(ctx context.Context, c *rpc.Conn, resp []byte, meta core.Metadata) (core.FileID, error) {
	id, err := core.DecodeUploadResponse(resp)
	if err != nil {
		return core.FileID{}, core.ServerError(core.ErrProtocol, c.Addr(), err)
	}
	if len(meta) == 0 {
		return id, nil
	}
	req := core.SetMetadataReq{ID: id, Meta: meta, Flag: core.MetadataOverwrite}
	resp, err = roundTrip(ctx, c, core.StorageSetMetadata, req.Encode(), nil, 0, false)
	if err == nil {
		err = expectEmpty(c, resp)
	}
	if err != nil {
		log.Errorf("uploaded %s but failed to set its metadata: %s", id, err)
		return id, withoutMetadata(id, err)
	}
	return id, nil
}

// withoutMetadata names the file that was stored before setting its metadata
// failed, so the caller can still remove it.
func withoutMetadata(id core.FileID, err error) error {
	var oe *core.OpError
	if !errors.As(err, &oe) {
		return errors.Wrapf(err, "%s was uploaded without its metadata", id)
	}
	cp := *oe
	cp.Target = id.String()
	if cp.Err == nil {
		cp.Err = errors.Errorf("%s was uploaded without its metadata", id)
	} else {
		cp.Err = errors.Wrapf(cp.Err, "%s was uploaded without its metadata", id)
	}
	return &cp
}

// Upload implements StorageTalker.
func (r *RPCStorageTalker) Upload(ctx context.Context, srv core.StorageServer, req core.UploadReq, content io.Reader, meta core.Metadata) (id core.FileID, err error) {
	err = r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, req.Cmd(), req.Prefix(), content, req.Size, false)
		if err != nil {
			return err
		}
		id, err = uploaded(ctx, c, resp, meta)
		return err
	})
	return
}

// UploadSlave implements StorageTalker.
func (r *RPCStorageTalker) UploadSlave(ctx context.Context, srv core.StorageServer, req core.SlaveUploadReq, content io.Reader, meta core.Metadata) (id core.FileID, err error) {
	err = r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, req.Cmd(), req.Header(), content, req.Size, false)
		if err != nil {
			return err
		}
		id, err = uploaded(ctx, c, resp, meta)
		return err
	})
	return
}

// Download implements StorageTalker.
func (r *RPCStorageTalker) Download(ctx context.Context, srv core.StorageServer, req core.DownloadReq, w io.Writer) (n int64, err error) {
	err = r.session(ctx, srv, func(c *rpc.Conn) error {
		if err := c.Send(ctx, core.StorageDownloadFile, req.Encode(), nil, 0); err != nil {
			return err
		}
		var h rpc.Header
		h, n, err = c.RecvTo(ctx, w)
		if err != nil {
			return err
		}
		if h.Status != core.StatusOK {
			log.Errorf("storage %s failed to download %s: status %d", c.Addr(), req.ID, h.Status)
			return core.StatusError(h.Status, c.Addr(), false)
		}
		return nil
	})
	return
}

// Delete implements StorageTalker.
func (r *RPCStorageTalker) Delete(ctx context.Context, srv core.StorageServer, id core.FileID) error {
	return r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageDeleteFile, core.EncodeFileRef(id), nil, 0, false)
		if err != nil {
			return err
		}
		return expectEmpty(c, resp)
	})
}

// SetMetadata implements StorageTalker.
func (r *RPCStorageTalker) SetMetadata(ctx context.Context, srv core.StorageServer, req core.SetMetadataReq) error {
	return r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageSetMetadata, req.Encode(), nil, 0, false)
		if err != nil {
			return err
		}
		return expectEmpty(c, resp)
	})
}

// GetMetadata implements StorageTalker.
func (r *RPCStorageTalker) GetMetadata(ctx context.Context, srv core.StorageServer, id core.FileID) (meta core.Metadata, err error) {
	err = r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageGetMetadata, core.EncodeFileRef(id), nil, 0, false)
		if err != nil {
			return err
		}
		if meta, err = core.DecodeMetadata(resp); err != nil {
			return core.ServerError(core.ErrProtocol, c.Addr(), err)
		}
		return nil
	})
	return
}

// Append implements StorageTalker.
func (r *RPCStorageTalker) Append(ctx context.Context, srv core.StorageServer, req core.AppendReq, content io.Reader) error {
	return r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageAppendFile, req.Header(), content, req.Size, true)
		if err != nil {
			return err
		}
		return expectEmpty(c, resp)
	})
}

// Modify implements StorageTalker.
func (r *RPCStorageTalker) Modify(ctx context.Context, srv core.StorageServer, req core.ModifyReq, content io.Reader) error {
	return r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageModifyFile, req.Header(), content, req.Size, true)
		if err != nil {
			return err
		}
		return expectEmpty(c, resp)
	})
}

// Truncate implements StorageTalker.
func (r *RPCStorageTalker) Truncate(ctx context.Context, srv core.StorageServer, req core.TruncateReq) error {
	return r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageTruncateFile, req.Encode(), nil, 0, true)
		if err != nil {
			return err
		}
		return expectEmpty(c, resp)
	})
}

// QueryFileInfo implements StorageTalker.
func (r *RPCStorageTalker) QueryFileInfo(ctx context.Context, srv core.StorageServer, id core.FileID) (fi core.FileInfo, err error) {
	err = r.session(ctx, srv, func(c *rpc.Conn) error {
		resp, err := roundTrip(ctx, c, core.StorageQueryFileInfo, core.EncodeFileRef(id), nil, 0, false)
		if err != nil {
			return err
		}
		if fi, err = core.DecodeFileInfo(resp); err != nil {
			return core.ServerError(core.ErrProtocol, c.Addr(), err)
		}
		return nil
	})
	return
}
