// Copyright (c) 2016 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

// NOTE: the types below duplicate the ones in core given package core is not exposed.

// ErrInvalidID is returned by ParseFileID for malformed ids.
var ErrInvalidID = core.ErrInvalidID

// FileID is the identifier of a stored file, "group/filename".
type FileID = core.FileID

// ParseFileID splits "group/filename" at the first '/'.
func ParseFileID(s string) (FileID, error) {
	return core.ParseFileID(s)
}

// Metadata is a set of attributes attached to a file.
type Metadata = core.Metadata

// MetadataFlag selects how SetMetadata combines entries.
type MetadataFlag = core.MetadataFlag

// Metadata flags.
const (
	MetadataOverwrite = core.MetadataOverwrite
	MetadataMerge     = core.MetadataMerge
)

// FileInfo is what a storage server knows about a file.
type FileInfo = core.FileInfo

// GroupStat describes one group.
type GroupStat = core.GroupStat

// StorageStat describes one storage server.
type StorageStat = core.StorageStat

// StorageServer is a storage server chosen by a tracker.
type StorageServer = core.StorageServer

// Result is what a successful upload, delete or update returns.
type Result struct {
	// Group the file lives in.
	Group string

	// FileID is the id of the file, "group/filename".
	FileID string

	// Status is a human readable summary of what happened.
	Status string

	// StorageIP is the storage server that handled the request.
	StorageIP string

	// LocalFile is the local file uploaded from, if any.
	LocalFile string

	// Size is the number of bytes sent.
	Size int64
}

// DownloadResult is what a successful download returns. Exactly one of
// Content and LocalFile is set.
type DownloadResult struct {
	Group     string
	FileID    string
	Status    string
	Content   []byte
	LocalFile string
	Size      int64
	StorageIP string
}

// Status strings of Result.
const (
	statusUploaded      = "Upload successed."
	statusSlaveUploaded = "Upload slave file successed."
	statusDeleted       = "Delete file successed."
	statusMetadataSet   = "Set meta data success."
	statusTruncated     = "Truncate successed."
	statusModified      = "Modify successed."
	statusAppended      = "Append file successed."
	statusDownloadFile  = "Download to file successed."
	statusDownloadBuf   = "Download to buffer successed."
)
