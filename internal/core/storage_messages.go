// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"fmt"
	"time"
)

// Storage request bodies and response layouts. Requests that carry file
// content only encode their fixed prefix; the content follows it on the wire
// and is streamed by the caller. BodyLen on those requests is the length of
// prefix + content as it goes into the frame header.

// fileInfoRespLen is size + create timestamp + crc32 + source ip.
const fileInfoRespLen = 3*8 + IPAddressSize

// UploadReq uploads a normal or appender file.
type UploadReq struct {
	Appender       bool
	StorePathIndex byte
	Size           int64
	Ext            string
}

// Cmd returns the command code of the request.
func (r UploadReq) Cmd() byte {
	if r.Appender {
		return StorageUploadAppenderFile
	}
	return StorageUploadFile
}

// Prefix returns the fixed part of the body.
func (r UploadReq) Prefix() []byte {
	return newFieldWriter(1+8+FileExtNameMaxLen).
		u8(r.StorePathIndex).
		i64(r.Size).
		fixed(r.Ext, FileExtNameMaxLen).b
}

// BodyLen returns the length of the whole body.
func (r UploadReq) BodyLen() int64 {
	return 1 + 8 + FileExtNameMaxLen + r.Size
}

// SlaveUploadReq uploads a file linked to an existing master file.
type SlaveUploadReq struct {
	MasterFilename string
	Prefix         string
	Size           int64
	Ext            string
}

// Cmd returns the command code of the request.
func (r SlaveUploadReq) Cmd() byte {
	return StorageUploadSlaveFile
}

func (r SlaveUploadReq) prefixLen() int {
	return 8 + 8 + FilePrefixMaxLen + FileExtNameMaxLen + len(r.MasterFilename)
}

// Header returns the fixed part of the body, master filename included.
func (r SlaveUploadReq) Header() []byte {
	return newFieldWriter(r.prefixLen()).
		i64(int64(len(r.MasterFilename))).
		i64(r.Size).
		fixed(r.Prefix, FilePrefixMaxLen).
		fixed(r.Ext, FileExtNameMaxLen).
		raw([]byte(r.MasterFilename)).b
}

// BodyLen returns the length of the whole body.
func (r SlaveUploadReq) BodyLen() int64 {
	return int64(r.prefixLen()) + r.Size
}

// DownloadReq reads 'Length' bytes of a file starting at 'Offset'. A zero
// length reads to the end of the file.
type DownloadReq struct {
	ID     FileID
	Offset int64
	Length int64
}

// Encode returns the request body.
func (r DownloadReq) Encode() []byte {
	return newFieldWriter(8+8+GroupNameMaxLen+len(r.ID.Filename)).
		i64(r.Offset).
		i64(r.Length).
		fixed(r.ID.Group, GroupNameMaxLen).
		raw([]byte(r.ID.Filename)).b
}

// SetMetadataReq replaces or merges the metadata of a file.
type SetMetadataReq struct {
	ID   FileID
	Meta Metadata
	Flag MetadataFlag
}

// Encode returns the request body.
func (r SetMetadataReq) Encode() []byte {
	meta := r.Meta.Encode()
	return newFieldWriter(8+8+1+GroupNameMaxLen+len(r.ID.Filename)+len(meta)).
		i64(int64(len(r.ID.Filename))).
		i64(int64(len(meta))).
		u8(byte(r.Flag)).
		fixed(r.ID.Group, GroupNameMaxLen).
		raw([]byte(r.ID.Filename)).
		raw(meta).b
}

// AppendReq appends 'Size' bytes to an appender file.
type AppendReq struct {
	Filename string
	Size     int64
}

// Header returns the fixed part of the body, filename included.
func (r AppendReq) Header() []byte {
	return newFieldWriter(8+8+len(r.Filename)).
		i64(int64(len(r.Filename))).
		i64(r.Size).
		raw([]byte(r.Filename)).b
}

// BodyLen returns the length of the whole body.
func (r AppendReq) BodyLen() int64 {
	return 8 + 8 + int64(len(r.Filename)) + r.Size
}

// ModifyReq overwrites 'Size' bytes of an appender file at 'Offset'.
type ModifyReq struct {
	Filename string
	Offset   int64
	Size     int64
}

// Header returns the fixed part of the body, filename included.
func (r ModifyReq) Header() []byte {
	return newFieldWriter(3*8+len(r.Filename)).
		i64(int64(len(r.Filename))).
		i64(r.Offset).
		i64(r.Size).
		raw([]byte(r.Filename)).b
}

// BodyLen returns the length of the whole body.
func (r ModifyReq) BodyLen() int64 {
	return 3*8 + int64(len(r.Filename)) + r.Size
}

// TruncateReq cuts an appender file down to 'Size' bytes.
type TruncateReq struct {
	Filename string
	Size     int64
}

// Encode returns the request body.
func (r TruncateReq) Encode() []byte {
	return newFieldWriter(8+8+len(r.Filename)).
		i64(int64(len(r.Filename))).
		i64(r.Size).
		raw([]byte(r.Filename)).b
}

// MaxStorageRespLen bounds the body of every storage response except a
// download, which is streamed.
const MaxStorageRespLen = 1 << 20

// DecodeUploadResponse parses the body of an upload response into the id of
// the new file.
func DecodeUploadResponse(body []byte) (FileID, error) {
	if len(body) <= GroupNameMaxLen {
		return FileID{}, fmt.Errorf("upload response body is %d bytes, expected more than %d", len(body), GroupNameMaxLen)
	}
	return FileID{
		Group:    Fixed(body[:GroupNameMaxLen]),
		Filename: string(body[GroupNameMaxLen:]),
	}, nil
}

// EncodeUploadResponse is the inverse of DecodeUploadResponse.
func EncodeUploadResponse(id FileID) []byte {
	return EncodeFileRef(id)
}

// DecodeFileInfo parses a query-file-info response.
func DecodeFileInfo(body []byte) (FileInfo, error) {
	if len(body) != fileInfoRespLen {
		return FileInfo{}, fmt.Errorf("file info body is %d bytes, expected %d", len(body), fileInfoRespLen)
	}
	r := &fieldReader{b: body}
	return FileInfo{
		Size:      r.i64(),
		CreatedAt: time.Unix(r.i64(), 0),
		CRC32:     uint32(r.i64()),
		SourceIP:  r.fixed(IPAddressSize),
	}, nil
}

// EncodeFileInfo is the inverse of DecodeFileInfo.
func EncodeFileInfo(fi FileInfo) []byte {
	return newFieldWriter(fileInfoRespLen).
		i64(fi.Size).
		i64(fi.CreatedAt.Unix()).
		i64(int64(fi.CRC32)).
		fixed(fi.SourceIP, IPAddressSize).b
}

// ParseSetMetadataReq is the inverse of SetMetadataReq.Encode.
func ParseSetMetadataReq(body []byte) (SetMetadataReq, error) {
	if len(body) < 8+8+1+GroupNameMaxLen {
		return SetMetadataReq{}, fmt.Errorf("set metadata body is too short: %d bytes", len(body))
	}
	r := &fieldReader{b: body}
	nameLen, metaLen := r.i64(), r.i64()
	flag := MetadataFlag(r.u8())
	group := r.fixed(GroupNameMaxLen)
	if nameLen < 0 || metaLen < 0 || int64(len(body)-r.off) != nameLen+metaLen {
		return SetMetadataReq{}, fmt.Errorf("set metadata body lengths don't add up")
	}
	name := string(body[r.off : r.off+int(nameLen)])
	meta, err := DecodeMetadata(body[r.off+int(nameLen):])
	if err != nil {
		return SetMetadataReq{}, err
	}
	return SetMetadataReq{ID: FileID{Group: group, Filename: name}, Meta: meta, Flag: flag}, nil
}
