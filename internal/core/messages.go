// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"
)

// StorageServer is a tracker's answer to "which storage server should I
// talk to". It's consumed right away by a storage call and never persisted.
type StorageServer struct {
	IPAddr         string
	Port           int
	Group          string
	StorePathIndex byte
}

// Addr returns the host:port of the storage server.
func (s StorageServer) Addr() string {
	return net.JoinHostPort(s.IPAddr, strconv.Itoa(s.Port))
}

// GroupStat describes one group as reported by a tracker.
type GroupStat struct {
	Name               string
	TotalMB            int64
	FreeMB             int64
	TrunkFreeMB        int64
	ServerCount        int64
	StoragePort        int64
	StorageHTTPPort    int64
	ActiveCount        int64
	CurrentWriteServer int64
	StorePathCount     int64
	SubdirCountPerPath int64
	CurrentTrunkFileID int64
}

// StorageStat describes one storage server as reported by a tracker.
type StorageStat struct {
	Status             byte
	ID                 string
	IPAddr             string
	DomainName         string
	SrcID              string
	Version            string
	JoinTime           time.Time
	UpTime             time.Time
	TotalMB            int64
	FreeMB             int64
	UploadPriority     int64
	StorePathCount     int64
	SubdirCountPerPath int64
	StoragePort        int64
	StorageHTTPPort    int64
	CurrentWritePath   int64
	IsTrunkServer      bool

	// Counters holds the operation counters in wire order, see
	// StorageCounterNames.
	Counters [StorageCounterCount]int64
}

// StorageCounterCount is the number of operation counters in a storage record.
const StorageCounterCount = 42

// StorageCounterNames names the entries of StorageStat.Counters.
var StorageCounterNames = [StorageCounterCount]string{
	"total_upload_count", "success_upload_count",
	"total_append_count", "success_append_count",
	"total_modify_count", "success_modify_count",
	"total_truncate_count", "success_truncate_count",
	"total_set_meta_count", "success_set_meta_count",
	"total_delete_count", "success_delete_count",
	"total_download_count", "success_download_count",
	"total_get_meta_count", "success_get_meta_count",
	"total_create_link_count", "success_create_link_count",
	"total_delete_link_count", "success_delete_link_count",
	"total_upload_bytes", "success_upload_bytes",
	"total_append_bytes", "success_append_bytes",
	"total_modify_bytes", "success_modify_bytes",
	"total_download_bytes", "success_download_bytes",
	"total_sync_in_bytes", "success_sync_in_bytes",
	"total_sync_out_bytes", "success_sync_out_bytes",
	"total_file_open_count", "success_file_open_count",
	"total_file_read_count", "success_file_read_count",
	"total_file_write_count", "success_file_write_count",
	"last_source_update", "last_sync_update",
	"last_synced_timestamp", "last_heart_beat_time",
}

// FileInfo is what a storage server knows about a stored file.
type FileInfo struct {
	Size      int64
	CreatedAt time.Time
	CRC32     uint32
	SourceIP  string
}

// Metadata is a set of caller defined attributes attached to a file. It's
// encoded with keys in sorted order so the bytes on the wire are stable.
type Metadata map[string]string

// Validate checks that every entry can be carried on the wire.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("metadata key can not be empty")
		}
		if len(k) > MaxMetaNameLen || len(v) > MaxMetaValueLen {
			return fmt.Errorf("metadata entry %q is too long", k)
		}
		if bytes.ContainsAny([]byte(k+v), string([]byte{RecordSeparator, FieldSeparator})) {
			return fmt.Errorf("metadata entry %q contains a separator byte", k)
		}
	}
	return nil
}

// Encode returns the wire form of the metadata.
func (m Metadata) Encode() []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(RecordSeparator)
		}
		b.WriteString(k)
		b.WriteByte(FieldSeparator)
		b.WriteString(m[k])
	}
	return b.Bytes()
}

// DecodeMetadata parses the wire form of metadata. An empty body is an empty
// set.
func DecodeMetadata(body []byte) (Metadata, error) {
	m := make(Metadata)
	if len(body) == 0 {
		return m, nil
	}
	for _, rec := range bytes.Split(body, []byte{RecordSeparator}) {
		kv := bytes.SplitN(rec, []byte{FieldSeparator}, 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed metadata record %q", rec)
		}
		m[string(kv[0])] = string(kv[1])
	}
	return m, nil
}

//------------------------------
// Fixed-width field helpers
//------------------------------

// PutFixed copies 's' into 'b', NUL padding the rest of 'b'. 's' is cut if
// it's longer than 'b'.
func PutFixed(b []byte, s string) {
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// Fixed returns the text held in a NUL padded field.
func Fixed(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// PutInt64 writes 'v' big-endian into the first 8 bytes of 'b'.
func PutInt64(b []byte, v int64) {
	binary.BigEndian.PutUint64(b, uint64(v))
}

// Int64 reads a big-endian integer from the first 8 bytes of 'b'.
func Int64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// fieldReader walks a fixed-layout body front to back.
type fieldReader struct {
	b   []byte
	off int
}

func (r *fieldReader) fixed(n int) string {
	s := Fixed(r.b[r.off : r.off+n])
	r.off += n
	return s
}

func (r *fieldReader) i64() int64 {
	v := Int64(r.b[r.off:])
	r.off += 8
	return v
}

func (r *fieldReader) u8() byte {
	v := r.b[r.off]
	r.off++
	return v
}

// fieldWriter fills a fixed-layout body front to back.
type fieldWriter struct {
	b   []byte
	off int
}

func newFieldWriter(n int) *fieldWriter {
	return &fieldWriter{b: make([]byte, n)}
}

func (w *fieldWriter) fixed(s string, n int) *fieldWriter {
	PutFixed(w.b[w.off:w.off+n], s)
	w.off += n
	return w
}

func (w *fieldWriter) i64(v int64) *fieldWriter {
	PutInt64(w.b[w.off:], v)
	w.off += 8
	return w
}

func (w *fieldWriter) u8(v byte) *fieldWriter {
	w.b[w.off] = v
	w.off++
	return w
}

func (w *fieldWriter) raw(p []byte) *fieldWriter {
	w.off += copy(w.b[w.off:], p)
	return w
}
