// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"time"
)

// Protocol constants that the tracker, the storage servers and this client
// need to agree on.
const (
	// DefaultTrackerPort is the port trackers listen on unless configured.
	DefaultTrackerPort = 22122

	// DefaultTimeout bounds connecting, sending and receiving.
	DefaultTimeout = 30 * time.Second

	// DefaultPoolName is the diagnostic name of a tracker pool.
	DefaultPoolName = "Tracker Pool"

	// GroupNameMaxLen is the fixed width of a group name on the wire.
	GroupNameMaxLen = 16

	// IPAddressSize is the width of an IPv4 address in list records (with
	// its NUL terminator). Query responses use IPAddressSize-1.
	IPAddressSize = 16

	// IPv6AddressSize is the width of an address in query responses from
	// trackers that support IPv6, without the terminator.
	IPv6AddressSize = 45

	// FileExtNameMaxLen is the fixed width of a file extension.
	FileExtNameMaxLen = 6

	// FilePrefixMaxLen is the fixed width of a slave file prefix.
	FilePrefixMaxLen = 16

	// StorageIDMaxSize is the fixed width of a storage server id.
	StorageIDMaxSize = 16

	// DomainNameMaxSize is the fixed width of a storage domain name.
	DomainNameMaxSize = 128

	// VersionSize is the fixed width of a storage version string.
	VersionSize = 6

	// MaxMetaNameLen and MaxMetaValueLen bound metadata entries.
	MaxMetaNameLen  = 64
	MaxMetaValueLen = 256

	// RecordSeparator and FieldSeparator delimit metadata entries.
	RecordSeparator = '\x01'
	FieldSeparator  = '\x02'
)

// Command codes.
const (
	CmdResp byte = 100

	TrackerQueryStoreWithoutGroupOne byte = 101
	TrackerQueryFetchOne             byte = 102
	TrackerQueryUpdate               byte = 103
	TrackerQueryStoreWithGroupOne    byte = 104
	TrackerListOneGroup              byte = 90
	TrackerListAllGroups             byte = 91
	TrackerListStorage               byte = 92

	StorageUploadFile         byte = 11
	StorageDeleteFile         byte = 12
	StorageSetMetadata        byte = 13
	StorageDownloadFile       byte = 14
	StorageGetMetadata        byte = 15
	StorageUploadSlaveFile    byte = 21
	StorageQueryFileInfo      byte = 22
	StorageUploadAppenderFile byte = 23
	StorageAppendFile         byte = 24
	StorageModifyFile         byte = 34
	StorageTruncateFile       byte = 36
)

// Status codes with a meaning of their own.
const (
	StatusOK       byte = 0
	StatusNotFound byte = 2  // ENOENT
	StatusInvalid  byte = 22 // EINVAL
)

// MetadataFlag selects how SetMetadata combines new entries with existing ones.
type MetadataFlag byte

const (
	// MetadataOverwrite replaces all existing entries.
	MetadataOverwrite MetadataFlag = 'O'

	// MetadataMerge adds new entries and updates existing ones.
	MetadataMerge MetadataFlag = 'M'
)

// Valid checks the flag is one the storage server understands.
func (f MetadataFlag) Valid() bool {
	return f == MetadataOverwrite || f == MetadataMerge
}
