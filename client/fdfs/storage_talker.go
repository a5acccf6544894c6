// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"io"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

// StorageTalker runs single operations against one storage server, as
// chosen by a tracker. File content is streamed from 'content' and must be
// exactly 'size' bytes long.
type StorageTalker interface {
	// Upload stores a new file. If 'meta' is not empty it's set on the new
	// file before returning.
	Upload(ctx context.Context, srv core.StorageServer, req core.UploadReq, content io.Reader, meta core.Metadata) (core.FileID, error)

	// UploadSlave stores a file linked to the master file 'req.MasterFilename'.
	UploadSlave(ctx context.Context, srv core.StorageServer, req core.SlaveUploadReq, content io.Reader, meta core.Metadata) (core.FileID, error)

	// Download writes the requested byte range of a file into 'w' and returns
	// how many bytes were written.
	Download(ctx context.Context, srv core.StorageServer, req core.DownloadReq, w io.Writer) (int64, error)

	// Delete removes a file.
	Delete(ctx context.Context, srv core.StorageServer, id core.FileID) error

	// SetMetadata replaces or merges the metadata of a file.
	SetMetadata(ctx context.Context, srv core.StorageServer, req core.SetMetadataReq) error

	// GetMetadata returns the metadata of a file.
	GetMetadata(ctx context.Context, srv core.StorageServer, id core.FileID) (core.Metadata, error)

	// Append adds content to the end of an appender file.
	Append(ctx context.Context, srv core.StorageServer, req core.AppendReq, content io.Reader) error

	// Modify overwrites part of an appender file.
	Modify(ctx context.Context, srv core.StorageServer, req core.ModifyReq, content io.Reader) error

	// Truncate cuts an appender file down to 'req.Size' bytes.
	Truncate(ctx context.Context, srv core.StorageServer, req core.TruncateReq) error

	// QueryFileInfo returns what the server knows about a file.
	QueryFileInfo(ctx context.Context, srv core.StorageServer, id core.FileID) (core.FileInfo, error)
}
