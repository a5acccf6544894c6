// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/retry"
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
)

var (
	clientOpLatenciesSet = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Subsystem: "fdfs_client",
		Name:      "latencies",
	}, []string{"op", "instance"})
	clientOpBytesSet = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "fdfs_client",
		Name:      "bytes",
	}, []string{"op", "instance"})
	clientOpErrorsSet = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "fdfs_client",
		Name:      "errors",
	}, []string{"op", "instance"})
)

// Client exposes the operations of a FastDFS cluster. It asks a tracker
// where a file lives, then talks to that storage server directly.
//
// Tracker connections are pooled and shared by concurrent calls; storage
// connections are opened per call. Calls block until done or until a socket
// operation exceeds the configured timeout. Every error is an *OpError.
type Client struct {
	// How to reach the trackers.
	config TrackerConfig

	// How we talk to trackers.
	trackers TrackerTalker

	// How we talk to storage servers.
	storage StorageTalker

	// Builds public URLs.
	hosts *hostResolver

	// Label of our metrics.
	instance string
}

// NewClient returns a client for the tracker cluster described by 'config'.
func NewClient(config TrackerConfig, options Options) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options.setDefaults()
	pool := options.Pool
	if pool == nil {
		p := rpc.NewConnectionPool(config.Name, options.MaxConns, func() *rpc.Conn {
			return rpc.NewConn(config.Hosts, config.Port, config.Timeout)
		})
		p.SetRetrier(retry.Retrier{MaxNumRetries: options.ConnectRetries})
		pool = p
	}
	return newClient(config, NewRPCTrackerTalker(pool), NewRPCStorageTalker(config.Timeout), options), nil
}

// NewClientFromHosts returns a client for trackers 'hosts' on the default
// port, see ConfigFromHosts.
func NewClientFromHosts(options Options, hosts ...string) (*Client, error) {
	return NewClient(ConfigFromHosts(hosts...), options)
}

// NewClientFromFile returns a client configured by a client.conf style file.
func NewClientFromFile(path string, options Options) (*Client, error) {
	config, err := LoadConfFile(path)
	if err != nil {
		return nil, err
	}
	return NewClient(config, options)
}

// newClient wires up a client. 'options' must have its defaults set.
func newClient(config TrackerConfig, trackers TrackerTalker, storage StorageTalker, options Options) *Client {
	log.Infof("new client %q for trackers %v on port %d", options.Instance, config.Hosts, config.Port)
	return &Client{
		config:   config,
		trackers: trackers,
		storage:  storage,
		hosts:    newHostResolver(config.Hosts, options),
		instance: options.Instance,
	}
}

// Config returns the tracker configuration of the client.
func (cli *Client) Config() TrackerConfig {
	return cli.config
}

// Close drops all tracker connections. The client must not be used after.
func (cli *Client) Close() {
	cli.trackers.Close()
}

// SetIPMapping replaces the storage IP to public host mapping used to build
// URLs.
func (cli *Client) SetIPMapping(m map[string]string) {
	cli.hosts.setMapping(m)
}

// BuildURL returns the public URL of 'fileID' served by storage server
// 'storageIP'.
func (cli *Client) BuildURL(storageIP, fileID string) string {
	return cli.hosts.host(context.Background(), storageIP) + strings.TrimPrefix(fileID, "/")
}

//-------------------
// Uploads
//-------------------

// UploadByFilename uploads the local file 'path'. The extension is taken
// from the file name. 'meta' may be nil.
func (cli *Client) UploadByFilename(path string, meta Metadata) (*Result, error) {
	const op = "upload_by_filename"
	res, err := cli.uploadFile(op, path, false, meta)
	return res, core.Annotate(err, op, path)
}

// UploadByBuffer uploads 'buf' as a file with extension 'ext'. 'meta' may
// be nil.
func (cli *Client) UploadByBuffer(buf []byte, ext string, meta Metadata) (*Result, error) {
	const op = "upload_by_buffer"
	res, err := cli.uploadBuffer(op, buf, ext, false, meta)
	return res, core.Annotate(err, op, "")
}

// UploadAsURL uploads 'buf' and returns the public URL of the new file.
func (cli *Client) UploadAsURL(buf []byte, ext string) (string, error) {
	const op = "upload_as_url"
	res, err := cli.uploadBuffer(op, buf, ext, false, nil)
	if err != nil {
		return "", core.Annotate(err, op, "")
	}
	return cli.BuildURL(res.StorageIP, res.FileID), nil
}

// UploadAppenderByFilename uploads the local file 'path' as an appender
// file, which can later be appended to, modified and truncated.
func (cli *Client) UploadAppenderByFilename(path string, meta Metadata) (*Result, error) {
	const op = "upload_appender_by_filename"
	res, err := cli.uploadFile(op, path, true, meta)
	return res, core.Annotate(err, op, path)
}

// UploadAppenderByBuffer uploads 'buf' as an appender file.
func (cli *Client) UploadAppenderByBuffer(buf []byte, ext string, meta Metadata) (*Result, error) {
	const op = "upload_appender_by_buffer"
	res, err := cli.uploadBuffer(op, buf, ext, true, meta)
	return res, core.Annotate(err, op, "")
}

func (cli *Client) uploadFile(op, path string, appender bool, meta Metadata) (*Result, error) {
	if err := validMetadata(meta); err != nil {
		return nil, err
	}
	f, size, err := openLocal(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	res, err := cli.upload(op, appender, f, size, extOf(path), meta)
	if err != nil {
		return nil, err
	}
	res.LocalFile = path
	return res, nil
}

func (cli *Client) uploadBuffer(op string, buf []byte, ext string, appender bool, meta Metadata) (*Result, error) {
	if len(buf) == 0 {
		return nil, invalidArg("empty buffer")
	}
	if err := validMetadata(meta); err != nil {
		return nil, err
	}
	return cli.upload(op, appender, bytes.NewReader(buf), int64(len(buf)), trimExt(ext), meta)
}

func (cli *Client) upload(op string, appender bool, content io.Reader, size int64, ext string, meta Metadata) (*Result, error) {
	ctx := context.Background()
	defer cli.track(op, time.Now())

	srv, err := cli.trackers.QueryStore(ctx, "")
	if err != nil {
		return nil, cli.failed(op, err)
	}
	req := core.UploadReq{Appender: appender, StorePathIndex: srv.StorePathIndex, Size: size, Ext: ext}
	id, err := cli.storage.Upload(ctx, srv, req, content, meta)
	if err != nil {
		return nil, cli.failed(op, err)
	}
	clientOpBytesSet.WithLabelValues(op, cli.instance).Add(float64(size))
	log.V(1).Infof("uploaded %d bytes to %s on %s", size, id, srv.Addr())
	return &Result{
		Group:     id.Group,
		FileID:    id.String(),
		Status:    statusUploaded,
		StorageIP: srv.IPAddr,
		Size:      size,
	}, nil
}

// UploadSlaveByFilename uploads the local file 'path' as a slave of the file
// 'masterID'. The slave's name is the master's with 'prefix' appended before
// the extension, and it's stored in the master's group.
func (cli *Client) UploadSlaveByFilename(path, masterID, prefix string, meta Metadata) (*Result, error) {
	const op = "upload_slave_by_filename"
	res, err := func() (*Result, error) {
		if err := validMetadata(meta); err != nil {
			return nil, err
		}
		master, err := parseID(masterID)
		if err != nil {
			return nil, err
		}
		if err := validPrefix(prefix); err != nil {
			return nil, err
		}
		f, size, err := openLocal(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		res, err := cli.uploadSlave(op, master, prefix, f, size, extOf(path), meta)
		if err != nil {
			return nil, err
		}
		res.LocalFile = path
		return res, nil
	}()
	return res, core.Annotate(err, op, masterID)
}

// UploadSlaveByBuffer uploads 'buf' as a slave of the file 'masterID'.
func (cli *Client) UploadSlaveByBuffer(buf []byte, masterID, prefix, ext string, meta Metadata) (*Result, error) {
	const op = "upload_slave_by_buffer"
	res, err := func() (*Result, error) {
		if len(buf) == 0 {
			return nil, invalidArg("empty buffer")
		}
		if err := validMetadata(meta); err != nil {
			return nil, err
		}
		master, err := parseID(masterID)
		if err != nil {
			return nil, err
		}
		if err := validPrefix(prefix); err != nil {
			return nil, err
		}
		return cli.uploadSlave(op, master, prefix, bytes.NewReader(buf), int64(len(buf)), trimExt(ext), meta)
	}()
	return res, core.Annotate(err, op, masterID)
}

func (cli *Client) uploadSlave(op string, master FileID, prefix string, content io.Reader, size int64, ext string, meta Metadata) (*Result, error) {
	ctx := context.Background()
	defer cli.track(op, time.Now())

	srv, err := cli.trackers.QueryStore(ctx, master.Group)
	if err != nil {
		return nil, cli.failed(op, err)
	}
	req := core.SlaveUploadReq{MasterFilename: master.Filename, Prefix: prefix, Size: size, Ext: ext}
	id, err := cli.storage.UploadSlave(ctx, srv, req, content, meta)
	if err != nil {
		return nil, cli.failed(op, err)
	}
	clientOpBytesSet.WithLabelValues(op, cli.instance).Add(float64(size))
	return &Result{
		Group:     id.Group,
		FileID:    id.String(),
		Status:    statusSlaveUploaded,
		StorageIP: srv.IPAddr,
		Size:      size,
	}, nil
}

//-------------------
// Downloads
//-------------------

// DownloadToFile writes 'length' bytes of 'fileID' starting at 'offset' into
// the local file 'path'. A zero length means up to the end of the file. The
// local file is replaced only if the download succeeds.
func (cli *Client) DownloadToFile(path, fileID string, offset, length int64) (*DownloadResult, error) {
	const op = "download_to_file"
	res, err := func() (*DownloadResult, error) {
		id, err := parseID(fileID)
		if err != nil {
			return nil, err
		}
		if err := validRange(offset, length); err != nil {
			return nil, err
		}
		if path == "" {
			return nil, invalidArg("empty local file name")
		}
		tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.New().String())
		f, err := os.Create(tmp)
		if err != nil {
			return nil, core.NewError(core.ErrInvalidArgument, path, errors.Wrap(err, "create local file"))
		}
		defer os.Remove(tmp)

		n, srv, err := cli.download(op, id, offset, length, f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = core.NewError(core.ErrUnknown, path, errors.Wrap(cerr, "close local file"))
		}
		if err != nil {
			return nil, err
		}
		if err := os.Rename(tmp, path); err != nil {
			return nil, core.NewError(core.ErrUnknown, path, errors.Wrap(err, "rename local file"))
		}
		return &DownloadResult{
			Group:     id.Group,
			FileID:    id.String(),
			Status:    statusDownloadFile,
			LocalFile: path,
			Size:      n,
			StorageIP: srv.IPAddr,
		}, nil
	}()
	return res, core.Annotate(err, op, fileID)
}

// DownloadToBuffer returns 'length' bytes of 'fileID' starting at 'offset'.
// A zero length means up to the end of the file.
func (cli *Client) DownloadToBuffer(fileID string, offset, length int64) (*DownloadResult, error) {
	const op = "download_to_buffer"
	res, err := func() (*DownloadResult, error) {
		id, err := parseID(fileID)
		if err != nil {
			return nil, err
		}
		if err := validRange(offset, length); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		n, srv, err := cli.download(op, id, offset, length, &buf)
		if err != nil {
			return nil, err
		}
		return &DownloadResult{
			Group:     id.Group,
			FileID:    id.String(),
			Status:    statusDownloadBuf,
			Content:   buf.Bytes(),
			Size:      n,
			StorageIP: srv.IPAddr,
		}, nil
	}()
	return res, core.Annotate(err, op, fileID)
}

func (cli *Client) download(op string, id FileID, offset, length int64, w io.Writer) (int64, StorageServer, error) {
	ctx := context.Background()
	defer cli.track(op, time.Now())

	srv, err := cli.trackers.QueryFetch(ctx, id)
	if err != nil {
		return 0, srv, cli.failed(op, err)
	}
	n, err := cli.storage.Download(ctx, srv, core.DownloadReq{ID: id, Offset: offset, Length: length}, w)
	if err != nil {
		return 0, srv, cli.failed(op, err)
	}
	clientOpBytesSet.WithLabelValues(op, cli.instance).Add(float64(n))
	return n, srv, nil
}

//-------------------
// Updates
//-------------------

// DeleteFile removes 'fileID'.
func (cli *Client) DeleteFile(fileID string) (*Result, error) {
	const op = "delete_file"
	res, err := cli.update(op, fileID, statusDeleted, nil, func(ctx context.Context, srv StorageServer, id FileID) error {
		return cli.storage.Delete(ctx, srv, id)
	})
	return res, core.Annotate(err, op, fileID)
}

// SetMetadata replaces ('MetadataOverwrite') or merges into
// ('MetadataMerge') the metadata of 'fileID'.
func (cli *Client) SetMetadata(fileID string, meta Metadata, flag MetadataFlag) (*Result, error) {
	const op = "set_meta_data"
	check := func() error {
		if !flag.Valid() {
			return invalidArg("invalid metadata flag %q", byte(flag))
		}
		return validMetadata(meta)
	}
	res, err := cli.update(op, fileID, statusMetadataSet, check, func(ctx context.Context, srv StorageServer, id FileID) error {
		return cli.storage.SetMetadata(ctx, srv, core.SetMetadataReq{ID: id, Meta: meta, Flag: flag})
	})
	return res, core.Annotate(err, op, fileID)
}

// AppendByFilename appends the local file 'path' to the appender file
// 'fileID'.
func (cli *Client) AppendByFilename(path, fileID string) (*Result, error) {
	const op = "append_by_filename"
	f, size, err := openLocal(path)
	if err != nil {
		return nil, core.Annotate(err, op, path)
	}
	defer f.Close()
	res, err := cli.appendContent(op, fileID, f, size)
	if res != nil {
		res.LocalFile = path
	}
	return res, core.Annotate(err, op, fileID)
}

// AppendByBuffer appends 'buf' to the appender file 'fileID'.
func (cli *Client) AppendByBuffer(buf []byte, fileID string) (*Result, error) {
	const op = "append_by_buffer"
	if len(buf) == 0 {
		return nil, core.Annotate(invalidArg("empty buffer"), op, fileID)
	}
	res, err := cli.appendContent(op, fileID, bytes.NewReader(buf), int64(len(buf)))
	return res, core.Annotate(err, op, fileID)
}

func (cli *Client) appendContent(op, fileID string, content io.Reader, size int64) (*Result, error) {
	res, err := cli.update(op, fileID, statusAppended, nil, func(ctx context.Context, srv StorageServer, id FileID) error {
		return cli.storage.Append(ctx, srv, core.AppendReq{Filename: id.Filename, Size: size}, content)
	})
	if res != nil {
		res.Size = size
		clientOpBytesSet.WithLabelValues(op, cli.instance).Add(float64(size))
	}
	return res, err
}

// ModifyByFilename overwrites the appender file 'fileID' with the content of
// the local file 'path', starting at 'offset'.
func (cli *Client) ModifyByFilename(path string, offset int64, fileID string) (*Result, error) {
	const op = "modify_by_filename"
	f, size, err := openLocal(path)
	if err != nil {
		return nil, core.Annotate(err, op, path)
	}
	defer f.Close()
	res, err := cli.modify(op, fileID, offset, f, size)
	if res != nil {
		res.LocalFile = path
	}
	return res, core.Annotate(err, op, fileID)
}

// ModifyByBuffer overwrites the appender file 'fileID' with 'buf', starting
// at 'offset'.
func (cli *Client) ModifyByBuffer(buf []byte, offset int64, fileID string) (*Result, error) {
	const op = "modify_by_buffer"
	if len(buf) == 0 {
		return nil, core.Annotate(invalidArg("empty buffer"), op, fileID)
	}
	res, err := cli.modify(op, fileID, offset, bytes.NewReader(buf), int64(len(buf)))
	return res, core.Annotate(err, op, fileID)
}

func (cli *Client) modify(op, fileID string, offset int64, content io.Reader, size int64) (*Result, error) {
	check := func() error {
		if offset < 0 {
			return invalidArg("negative offset %d", offset)
		}
		return nil
	}
	res, err := cli.update(op, fileID, statusModified, check, func(ctx context.Context, srv StorageServer, id FileID) error {
		return cli.storage.Modify(ctx, srv, core.ModifyReq{Filename: id.Filename, Offset: offset, Size: size}, content)
	})
	if res != nil {
		res.Size = size
		clientOpBytesSet.WithLabelValues(op, cli.instance).Add(float64(size))
	}
	return res, err
}

// TruncateFile cuts the appender file 'fileID' down to 'size' bytes.
func (cli *Client) TruncateFile(size int64, fileID string) (*Result, error) {
	const op = "truncate_file"
	check := func() error {
		if size < 0 {
			return invalidArg("negative size %d", size)
		}
		return nil
	}
	res, err := cli.update(op, fileID, statusTruncated, check, func(ctx context.Context, srv StorageServer, id FileID) error {
		return cli.storage.Truncate(ctx, srv, core.TruncateReq{Filename: id.Filename, Size: size})
	})
	return res, core.Annotate(err, op, fileID)
}

// update runs 'fn' against the storage server that owns 'fileID'. 'check'
// validates the other arguments, it's optional.
func (cli *Client) update(op, fileID, status string, check func() error,
	fn func(ctx context.Context, srv StorageServer, id FileID) error) (*Result, error) {
	id, err := parseID(fileID)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	defer cli.track(op, time.Now())
	srv, err := cli.trackers.QueryUpdate(ctx, id)
	if err != nil {
		return nil, cli.failed(op, err)
	}
	if err := fn(ctx, srv, id); err != nil {
		return nil, cli.failed(op, err)
	}
	return &Result{Group: id.Group, FileID: id.String(), Status: status, StorageIP: srv.IPAddr}, nil
}

//-------------------
// Queries
//-------------------

// GetMetadata returns the metadata of 'fileID'.
func (cli *Client) GetMetadata(fileID string) (Metadata, error) {
	const op = "get_meta_data"
	meta, err := func() (Metadata, error) {
		id, err := parseID(fileID)
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		defer cli.track(op, time.Now())
		srv, err := cli.trackers.QueryUpdate(ctx, id)
		if err != nil {
			return nil, cli.failed(op, err)
		}
		meta, err := cli.storage.GetMetadata(ctx, srv, id)
		if err != nil {
			return nil, cli.failed(op, err)
		}
		return meta, nil
	}()
	return meta, core.Annotate(err, op, fileID)
}

// QueryFileInfo returns the size, creation time, checksum and source server
// of 'fileID'.
func (cli *Client) QueryFileInfo(fileID string) (FileInfo, error) {
	const op = "query_file_info"
	fi, err := func() (FileInfo, error) {
		id, err := parseID(fileID)
		if err != nil {
			return FileInfo{}, err
		}
		ctx := context.Background()
		defer cli.track(op, time.Now())
		srv, err := cli.trackers.QueryFetch(ctx, id)
		if err != nil {
			return FileInfo{}, cli.failed(op, err)
		}
		fi, err := cli.storage.QueryFileInfo(ctx, srv, id)
		if err != nil {
			return FileInfo{}, cli.failed(op, err)
		}
		return fi, nil
	}()
	return fi, core.Annotate(err, op, fileID)
}

// ListOneGroup returns the stats of 'group'.
func (cli *Client) ListOneGroup(group string) (GroupStat, error) {
	const op = "list_one_group"
	if err := validGroup(group); err != nil {
		return GroupStat{}, core.Annotate(err, op, group)
	}
	defer cli.track(op, time.Now())
	g, err := cli.trackers.ListOneGroup(context.Background(), group)
	return g, core.Annotate(cli.failed(op, err), op, group)
}

// ListAllGroups returns the stats of every group.
func (cli *Client) ListAllGroups() ([]GroupStat, error) {
	const op = "list_all_groups"
	defer cli.track(op, time.Now())
	gs, err := cli.trackers.ListAllGroups(context.Background())
	return gs, core.Annotate(cli.failed(op, err), op, "")
}

// ListServers returns the storage servers of 'group'. If 'storageID' is not
// empty only that server is returned.
func (cli *Client) ListServers(group, storageID string) ([]StorageStat, error) {
	const op = "list_servers"
	if err := validGroup(group); err != nil {
		return nil, core.Annotate(err, op, group)
	}
	if len(storageID) > core.StorageIDMaxSize {
		return nil, core.Annotate(invalidArg("storage id %q is too long", storageID), op, group)
	}
	defer cli.track(op, time.Now())
	ss, err := cli.trackers.ListServers(context.Background(), group, storageID)
	return ss, core.Annotate(cli.failed(op, err), op, group)
}

//-------------------
// Helpers
//-------------------

// track records the latency of an operation that started at 'start'.
func (cli *Client) track(op string, start time.Time) {
	clientOpLatenciesSet.WithLabelValues(op, cli.instance).Observe(float64(time.Since(start)) / 1e9)
}

// failed counts a failed operation and returns 'err'.
func (cli *Client) failed(op string, err error) error {
	if err != nil {
		clientOpErrorsSet.WithLabelValues(op, cli.instance).Inc()
		log.Errorf("%s failed: %s", op, err)
	}
	return err
}

func invalidArg(format string, args ...interface{}) error {
	return core.Errorf(core.ErrInvalidArgument, "", format, args...)
}

func parseID(s string) (FileID, error) {
	id, err := core.ParseFileID(s)
	if err != nil {
		return FileID{}, core.NewError(core.ErrInvalidArgument, s, err)
	}
	return id, nil
}

func validGroup(group string) error {
	if group == "" {
		return invalidArg("empty group name")
	}
	if len(group) > core.GroupNameMaxLen {
		return invalidArg("group name %q is longer than %d bytes", group, core.GroupNameMaxLen)
	}
	return nil
}

func validPrefix(prefix string) error {
	if prefix == "" {
		return invalidArg("empty slave file prefix")
	}
	if len(prefix) > core.FilePrefixMaxLen {
		return invalidArg("slave file prefix %q is longer than %d bytes", prefix, core.FilePrefixMaxLen)
	}
	return nil
}

func validRange(offset, length int64) error {
	if offset < 0 || length < 0 {
		return invalidArg("invalid range: offset %d, length %d", offset, length)
	}
	return nil
}

func validMetadata(meta Metadata) error {
	if err := meta.Validate(); err != nil {
		return core.NewError(core.ErrInvalidArgument, "", err)
	}
	return nil
}

// openLocal opens a local file for upload and returns its size.
func openLocal(path string) (*os.File, int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, core.NewError(core.ErrInvalidArgument, path, errors.Wrap(err, "not a file"))
	}
	if !fi.Mode().IsRegular() {
		return nil, 0, core.Errorf(core.ErrInvalidArgument, path, "not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, core.NewError(core.ErrInvalidArgument, path, errors.Wrap(err, "open local file"))
	}
	return f, fi.Size(), nil
}

// extOf returns the extension of a local file name, without the dot.
func extOf(path string) string {
	return trimExt(filepath.Ext(path))
}

// trimExt drops a leading dot and cuts 'ext' to the width the storage server
// keeps.
func trimExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if len(ext) > core.FileExtNameMaxLen {
		ext = ext[:core.FileExtNameMaxLen]
	}
	return ext
}
