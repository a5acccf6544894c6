// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedFields(t *testing.T) {
	b := make([]byte, GroupNameMaxLen)
	PutFixed(b, "group1")
	assert.Equal(t, append([]byte("group1"), make([]byte, 10)...), b)
	assert.Equal(t, "group1", Fixed(b))

	// Longer strings are cut to the field width.
	PutFixed(b, "abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, "abcdefghijklmnop", Fixed(b))

	PutInt64(b, 0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b[:8])
	assert.EqualValues(t, 0x0102030405060708, Int64(b))
}

func TestQueryStoreReq(t *testing.T) {
	r := QueryStoreReq{}
	assert.Equal(t, TrackerQueryStoreWithoutGroupOne, r.Cmd())
	assert.Empty(t, r.Encode())

	r = QueryStoreReq{Group: "group1"}
	assert.Equal(t, TrackerQueryStoreWithGroupOne, r.Cmd())
	assert.Len(t, r.Encode(), GroupNameMaxLen)
}

func TestQueryFileReq(t *testing.T) {
	id := FileID{Group: "group1", Filename: "M00/00/00/x.txt"}
	assert.Equal(t, TrackerQueryFetchOne, QueryFileReq{ID: id}.Cmd())
	assert.Equal(t, TrackerQueryUpdate, QueryFileReq{Update: true, ID: id}.Cmd())

	body := QueryFileReq{ID: id}.Encode()
	require.Len(t, body, GroupNameMaxLen+len(id.Filename))
	assert.Equal(t, "group1", Fixed(body[:GroupNameMaxLen]))
	assert.Equal(t, id.Filename, string(body[GroupNameMaxLen:]))
}

func TestStorageServerLayout(t *testing.T) {
	s := StorageServer{IPAddr: "10.0.0.7", Port: 23000, Group: "group1", StorePathIndex: 3}

	body := EncodeStorageServer(s, true)
	require.Len(t, body, 40)
	got, err := DecodeStorageServer(body, true)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, "10.0.0.7:23000", got.Addr())

	body = EncodeStorageServer(s, false)
	require.Len(t, body, 39)
	got, err = DecodeStorageServer(body, false)
	require.NoError(t, err)
	s.StorePathIndex = 0
	assert.Equal(t, s, got)

	_, err = DecodeStorageServer(body[:20], false)
	assert.Error(t, err)
}

func TestStorageServerIPv6(t *testing.T) {
	body := make([]byte, GroupNameMaxLen+IPv6AddressSize+8+1)
	PutFixed(body[:GroupNameMaxLen], "group2")
	PutFixed(body[GroupNameMaxLen:GroupNameMaxLen+IPv6AddressSize], "fe80::1")
	PutInt64(body[GroupNameMaxLen+IPv6AddressSize:], 23000)
	body[len(body)-1] = 1

	s, err := DecodeStorageServer(body, true)
	require.NoError(t, err)
	assert.Equal(t, StorageServer{IPAddr: "fe80::1", Port: 23000, Group: "group2", StorePathIndex: 1}, s)
	assert.Equal(t, "[fe80::1]:23000", s.Addr())
}

func TestGroupStats(t *testing.T) {
	g1 := GroupStat{Name: "group1", TotalMB: 1024, FreeMB: 512, ServerCount: 2, StoragePort: 23000, ActiveCount: 2, StorePathCount: 1, SubdirCountPerPath: 256}
	g2 := GroupStat{Name: "group2", TotalMB: 2048, FreeMB: 1, CurrentTrunkFileID: 7}
	assert.Len(t, g1.Encode(), 105)

	got, err := DecodeGroupStats(append(g1.Encode(), g2.Encode()...))
	require.NoError(t, err)
	assert.Equal(t, []GroupStat{g1, g2}, got)

	got, err = DecodeGroupStats(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = DecodeGroupStats(make([]byte, GroupStatSize+1))
	assert.Error(t, err)
}

func TestStorageStats(t *testing.T) {
	s := StorageStat{
		Status:        7,
		ID:            "100001",
		IPAddr:        "10.0.0.7",
		DomainName:    "storage.example.com",
		Version:       "6.12",
		JoinTime:      time.Unix(1700000000, 0),
		UpTime:        time.Unix(1700000100, 0),
		TotalMB:       4096,
		FreeMB:        100,
		StoragePort:   23000,
		IsTrunkServer: true,
	}
	s.Counters[0] = 10
	s.Counters[StorageCounterCount-1] = 1700000200
	assert.Len(t, s.Encode(), 600)

	got, err := DecodeStorageStats(append(s.Encode(), s.Encode()...))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, s, got[0])
	assert.Equal(t, s, got[1])

	_, err = DecodeStorageStats(make([]byte, StorageStatSize-1))
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	m := Metadata{"width": "1024", "height": "768", "author": "x"}
	require.NoError(t, m.Validate())
	enc := m.Encode()
	assert.Equal(t, "author\x02x\x01height\x02768\x01width\x021024", string(enc))

	got, err := DecodeMetadata(enc)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	got, err = DecodeMetadata(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = DecodeMetadata([]byte("no-separator"))
	assert.Error(t, err)

	assert.Error(t, Metadata{"": "v"}.Validate())
	assert.Error(t, Metadata{"k\x01": "v"}.Validate())
	assert.Error(t, Metadata{"k": string(bytes.Repeat([]byte("v"), MaxMetaValueLen+1))}.Validate())
}

func TestUploadReq(t *testing.T) {
	r := UploadReq{StorePathIndex: 2, Size: 10, Ext: "txt"}
	assert.Equal(t, StorageUploadFile, r.Cmd())
	p := r.Prefix()
	require.Len(t, p, 15)
	assert.Equal(t, byte(2), p[0])
	assert.EqualValues(t, 10, Int64(p[1:]))
	assert.Equal(t, "txt", Fixed(p[9:]))
	assert.EqualValues(t, 25, r.BodyLen())

	r.Appender = true
	r.Ext = "tar.gzip"
	assert.Equal(t, StorageUploadAppenderFile, r.Cmd())
	assert.Equal(t, "tar.gz", Fixed(r.Prefix()[9:]))
}

func TestSlaveUploadReq(t *testing.T) {
	r := SlaveUploadReq{MasterFilename: "M00/00/00/x.jpg", Prefix: "_150x150", Size: 4, Ext: "jpg"}
	h := r.Header()
	require.Len(t, h, 8+8+16+6+len(r.MasterFilename))
	assert.EqualValues(t, len(r.MasterFilename), Int64(h))
	assert.EqualValues(t, 4, Int64(h[8:]))
	assert.Equal(t, "_150x150", Fixed(h[16:32]))
	assert.Equal(t, "jpg", Fixed(h[32:38]))
	assert.Equal(t, r.MasterFilename, string(h[38:]))
	assert.EqualValues(t, len(h)+4, r.BodyLen())
}

func TestDownloadReq(t *testing.T) {
	b := DownloadReq{ID: FileID{Group: "group1", Filename: "M00/x"}, Offset: 5, Length: 0}.Encode()
	require.Len(t, b, 8+8+16+5)
	assert.EqualValues(t, 5, Int64(b))
	assert.EqualValues(t, 0, Int64(b[8:]))
	assert.Equal(t, "group1", Fixed(b[16:32]))
	assert.Equal(t, "M00/x", string(b[32:]))
}

func TestSetMetadataReq(t *testing.T) {
	r := SetMetadataReq{ID: FileID{Group: "group1", Filename: "M00/x"}, Meta: Metadata{"a": "1"}, Flag: MetadataMerge}
	b := r.Encode()
	assert.EqualValues(t, 5, Int64(b))
	assert.EqualValues(t, 3, Int64(b[8:]))
	assert.Equal(t, byte('M'), b[16])

	got, err := ParseSetMetadataReq(b)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = ParseSetMetadataReq(b[:len(b)-1])
	assert.Error(t, err)
}

func TestAppenderReqs(t *testing.T) {
	a := AppendReq{Filename: "M00/x", Size: 3}
	assert.Equal(t, append([]byte{0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0, 3}, "M00/x"...), a.Header())
	assert.EqualValues(t, 8+8+5+3, a.BodyLen())

	m := ModifyReq{Filename: "M00/x", Offset: 1, Size: 2}
	h := m.Header()
	assert.EqualValues(t, 5, Int64(h))
	assert.EqualValues(t, 1, Int64(h[8:]))
	assert.EqualValues(t, 2, Int64(h[16:]))
	assert.EqualValues(t, 3*8+5+2, m.BodyLen())

	tr := TruncateReq{Filename: "M00/x", Size: 0}.Encode()
	assert.Len(t, tr, 8+8+5)
}

func TestUploadResponse(t *testing.T) {
	id := FileID{Group: "group1", Filename: "M00/00/00/x.txt"}
	got, err := DecodeUploadResponse(EncodeUploadResponse(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = DecodeUploadResponse(make([]byte, GroupNameMaxLen))
	assert.Error(t, err)
}

func TestFileInfo(t *testing.T) {
	fi := FileInfo{Size: 10, CreatedAt: time.Unix(1700000000, 0), CRC32: 0xdeadbeef, SourceIP: "10.0.0.7"}
	b := EncodeFileInfo(fi)
	assert.Len(t, b, 40)
	got, err := DecodeFileInfo(b)
	require.NoError(t, err)
	assert.Equal(t, fi, got)

	_, err = DecodeFileInfo(b[:39])
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	err := StatusError(StatusNotFound, "10.0.0.1:23000", false)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, ErrNotFound, KindOf(err))

	assert.Equal(t, ErrNotAppender, KindOf(StatusError(StatusInvalid, "", true)))
	assert.Equal(t, ErrProtocol, KindOf(StatusError(StatusInvalid, "", false)))
	assert.Equal(t, ErrProtocol, KindOf(StatusError(5, "", true)))

	a := Annotate(err, "delete_file", "group1/x")
	var oe *OpError
	require.True(t, errors.As(a, &oe))
	assert.Equal(t, "delete_file", oe.Op)
	assert.Equal(t, "group1/x", oe.Target)
	assert.Equal(t, "10.0.0.1:23000", oe.Addr)
	assert.Equal(t, "delete_file: group1/x: file was not found (status 2) at 10.0.0.1:23000", a.Error())

	// A target already set is kept.
	b := Annotate(&OpError{Target: "group1/y", Kind: ErrNotFound}, "delete_file", "group1/x")
	require.True(t, errors.As(b, &oe))
	assert.Equal(t, "group1/y", oe.Target)

	// The original error is left alone.
	assert.Empty(t, err.Op)

	assert.Equal(t, ErrUnknown, KindOf(Annotate(errors.New("boom"), "op", "")))
	assert.Nil(t, Annotate(nil, "op", ""))
	assert.Equal(t, NoError, KindOf(nil))
	assert.True(t, IsNetworkError(ServerError(ErrNetworkConn, "1.2.3.4:22122", nil)))
}
