// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"fmt"
	"time"
)

// Tracker request bodies and response layouts.

const (
	// storeRespLen is group + ip + port + store path index for IPv4 trackers.
	storeRespLen = GroupNameMaxLen + IPAddressSize - 1 + 8 + 1
	// storeRespLen6 is the same for trackers that support IPv6.
	storeRespLen6 = GroupNameMaxLen + IPv6AddressSize + 8 + 1

	// GroupStatSize is the size of one group record.
	GroupStatSize = GroupNameMaxLen + 1 + 11*8

	// StorageStatSize is the size of one storage server record.
	StorageStatSize = 1 + StorageIDMaxSize + IPAddressSize + DomainNameMaxSize +
		StorageIDMaxSize + VersionSize + 10*8 + 1 + StorageCounterCount*8

	// MaxQueryRespLen bounds the body of a store, fetch or update response.
	MaxQueryRespLen = storeRespLen6

	// MaxListRespLen bounds the body of a list response.
	MaxListRespLen = 4096 * StorageStatSize
)

// QueryStoreReq asks a tracker where a new file should be stored. If Group is
// empty, the tracker picks the group too.
type QueryStoreReq struct {
	Group string
}

// Cmd returns the command code of the request.
func (r QueryStoreReq) Cmd() byte {
	if r.Group == "" {
		return TrackerQueryStoreWithoutGroupOne
	}
	return TrackerQueryStoreWithGroupOne
}

// Encode returns the request body.
func (r QueryStoreReq) Encode() []byte {
	if r.Group == "" {
		return nil
	}
	return newFieldWriter(GroupNameMaxLen).fixed(r.Group, GroupNameMaxLen).b
}

// QueryFileReq asks a tracker which storage server holds an existing file,
// either for updating it (TrackerQueryUpdate) or for reading it
// (TrackerQueryFetchOne).
type QueryFileReq struct {
	Update bool
	ID     FileID
}

// Cmd returns the command code of the request.
func (r QueryFileReq) Cmd() byte {
	if r.Update {
		return TrackerQueryUpdate
	}
	return TrackerQueryFetchOne
}

// Encode returns the request body.
func (r QueryFileReq) Encode() []byte {
	return EncodeFileRef(r.ID)
}

// EncodeFileRef returns group(16) + filename, the body shared by several
// tracker and storage requests.
func EncodeFileRef(id FileID) []byte {
	return newFieldWriter(GroupNameMaxLen+len(id.Filename)).
		fixed(id.Group, GroupNameMaxLen).
		raw([]byte(id.Filename)).b
}

// DecodeStorageServer parses a query response. 'store' tells whether the
// response carries a trailing store path index (store queries do, fetch and
// update queries don't).
func DecodeStorageServer(body []byte, store bool) (StorageServer, error) {
	ipLen := 0
	want, want6 := storeRespLen, storeRespLen6
	if !store {
		want, want6 = want-1, want6-1
	}
	switch len(body) {
	case want:
		ipLen = IPAddressSize - 1
	case want6:
		ipLen = IPv6AddressSize
	default:
		return StorageServer{}, fmt.Errorf("query response body is %d bytes, expected %d or %d", len(body), want, want6)
	}
	r := &fieldReader{b: body}
	s := StorageServer{
		Group:  r.fixed(GroupNameMaxLen),
		IPAddr: r.fixed(ipLen),
		Port:   int(r.i64()),
	}
	if store {
		s.StorePathIndex = r.u8()
	}
	return s, nil
}

// EncodeStorageServer is the inverse of DecodeStorageServer for IPv4
// addresses.
func EncodeStorageServer(s StorageServer, store bool) []byte {
	n := storeRespLen
	if !store {
		n--
	}
	w := newFieldWriter(n).
		fixed(s.Group, GroupNameMaxLen).
		fixed(s.IPAddr, IPAddressSize-1).
		i64(int64(s.Port))
	if store {
		w.u8(s.StorePathIndex)
	}
	return w.b
}

// EncodeListGroup returns the body of a list-one-group request.
func EncodeListGroup(group string) []byte {
	return newFieldWriter(GroupNameMaxLen).fixed(group, GroupNameMaxLen).b
}

// EncodeListServers returns the body of a list-storage request. 'storageID'
// is optional.
func EncodeListServers(group, storageID string) []byte {
	n := GroupNameMaxLen
	if storageID != "" {
		n += StorageIDMaxSize
	}
	w := newFieldWriter(n).fixed(group, GroupNameMaxLen)
	if storageID != "" {
		w.fixed(storageID, StorageIDMaxSize)
	}
	return w.b
}

// DecodeGroupStats parses a sequence of group records.
func DecodeGroupStats(body []byte) ([]GroupStat, error) {
	if len(body)%GroupStatSize != 0 {
		return nil, fmt.Errorf("group list body is %d bytes, not a multiple of %d", len(body), GroupStatSize)
	}
	stats := make([]GroupStat, 0, len(body)/GroupStatSize)
	for off := 0; off < len(body); off += GroupStatSize {
		r := &fieldReader{b: body[off : off+GroupStatSize]}
		stats = append(stats, GroupStat{
			Name:               r.fixed(GroupNameMaxLen + 1),
			TotalMB:            r.i64(),
			FreeMB:             r.i64(),
			TrunkFreeMB:        r.i64(),
			ServerCount:        r.i64(),
			StoragePort:        r.i64(),
			StorageHTTPPort:    r.i64(),
			ActiveCount:        r.i64(),
			CurrentWriteServer: r.i64(),
			StorePathCount:     r.i64(),
			SubdirCountPerPath: r.i64(),
			CurrentTrunkFileID: r.i64(),
		})
	}
	return stats, nil
}

// Encode returns the wire form of a group record.
func (g GroupStat) Encode() []byte {
	return newFieldWriter(GroupStatSize).
		fixed(g.Name, GroupNameMaxLen+1).
		i64(g.TotalMB).
		i64(g.FreeMB).
		i64(g.TrunkFreeMB).
		i64(g.ServerCount).
		i64(g.StoragePort).
		i64(g.StorageHTTPPort).
		i64(g.ActiveCount).
		i64(g.CurrentWriteServer).
		i64(g.StorePathCount).
		i64(g.SubdirCountPerPath).
		i64(g.CurrentTrunkFileID).b
}

// DecodeStorageStats parses a sequence of storage server records.
func DecodeStorageStats(body []byte) ([]StorageStat, error) {
	if len(body)%StorageStatSize != 0 {
		return nil, fmt.Errorf("server list body is %d bytes, not a multiple of %d", len(body), StorageStatSize)
	}
	stats := make([]StorageStat, 0, len(body)/StorageStatSize)
	for off := 0; off < len(body); off += StorageStatSize {
		r := &fieldReader{b: body[off : off+StorageStatSize]}
		s := StorageStat{
			Status:             r.u8(),
			ID:                 r.fixed(StorageIDMaxSize),
			IPAddr:             r.fixed(IPAddressSize),
			DomainName:         r.fixed(DomainNameMaxSize),
			SrcID:              r.fixed(StorageIDMaxSize),
			Version:            r.fixed(VersionSize),
			JoinTime:           time.Unix(r.i64(), 0),
			UpTime:             time.Unix(r.i64(), 0),
			TotalMB:            r.i64(),
			FreeMB:             r.i64(),
			UploadPriority:     r.i64(),
			StorePathCount:     r.i64(),
			SubdirCountPerPath: r.i64(),
			StoragePort:        r.i64(),
			StorageHTTPPort:    r.i64(),
			CurrentWritePath:   r.i64(),
			IsTrunkServer:      r.u8() != 0,
		}
		for i := range s.Counters {
			s.Counters[i] = r.i64()
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// Encode returns the wire form of a storage server record.
func (s StorageStat) Encode() []byte {
	trunk := byte(0)
	if s.IsTrunkServer {
		trunk = 1
	}
	w := newFieldWriter(StorageStatSize).
		u8(s.Status).
		fixed(s.ID, StorageIDMaxSize).
		fixed(s.IPAddr, IPAddressSize).
		fixed(s.DomainName, DomainNameMaxSize).
		fixed(s.SrcID, StorageIDMaxSize).
		fixed(s.Version, VersionSize).
		i64(s.JoinTime.Unix()).
		i64(s.UpTime.Unix()).
		i64(s.TotalMB).
		i64(s.FreeMB).
		i64(s.UploadPriority).
		i64(s.StorePathCount).
		i64(s.SubdirCountPerPath).
		i64(s.StoragePort).
		i64(s.StorageHTTPPort).
		i64(s.CurrentWritePath).
		u8(trunk)
	for _, c := range s.Counters {
		w.i64(c)
	}
	return w.b
}
