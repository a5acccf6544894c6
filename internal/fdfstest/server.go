// Copyright (c) 2016 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package fdfstest runs an in-process tracker and storage server that speak
// the FastDFS wire protocol, for tests. The storage server keeps files in
// memory; the tracker always points at it.
package fdfstest

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/net/nettest"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
)

// DefaultGroup is the group the storage server belongs to.
const DefaultGroup = "group1"

// Request is one request the servers received.
type Request struct {
	Cmd byte
	// Target is the file id the request was about, if any.
	Target string
}

type file struct {
	content  []byte
	appender bool
	meta     core.Metadata
	created  time.Time
}

// Server is a stub tracker plus one stub storage server.
type Server struct {
	// Group is the group of the storage server.
	Group string

	tracker net.Listener
	storage net.Listener

	lock sync.Mutex

	// Filename (without group) -> file.
	files map[string]*file

	// Everything received, in order.
	requests []Request

	// If not zero, the tracker answers every request with this status.
	trackerStatus byte

	// If set, the storage server never answers.
	stall bool

	// Command -> status the storage server answers it with, once.
	failNext map[byte]byte

	// Names for new files. Used in order, then generated.
	names []string

	seq       int
	open      int
	connected map[net.Conn]bool
	wg        sync.WaitGroup
}

// New starts a tracker and a storage server on local listeners. They're
// stopped when the test ends.
func New(t testing.TB) *Server {
	s, err := Start()
	if err != nil {
		t.Fatalf("failed to start stub servers: %s", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a tracker and a storage server. The caller must Close them.
func Start() (*Server, error) {
	tl, err := nettest.NewLocalListener("tcp")
	if err != nil {
		return nil, err
	}
	sl, err := nettest.NewLocalListener("tcp")
	if err != nil {
		tl.Close()
		return nil, err
	}
	s := &Server{
		Group:     DefaultGroup,
		tracker:   tl,
		storage:   sl,
		files:     make(map[string]*file),
		failNext:  make(map[byte]byte),
		connected: make(map[net.Conn]bool),
	}
	s.wg.Add(2)
	go s.serve(tl, s.handleTracker)
	go s.serve(sl, s.handleStorage)
	return s, nil
}

// Close stops both servers and closes every connection they accepted.
func (s *Server) Close() {
	s.tracker.Close()
	s.storage.Close()
	s.lock.Lock()
	for c := range s.connected {
		c.Close()
	}
	s.lock.Unlock()
	s.wg.Wait()
}

// TrackerHost returns the IP the tracker listens on.
func (s *Server) TrackerHost() string {
	host, _ := splitAddr(s.tracker.Addr())
	return host
}

// TrackerPort returns the port the tracker listens on.
func (s *Server) TrackerPort() int {
	_, port := splitAddr(s.tracker.Addr())
	return port
}

// StorageIP returns the IP the storage server listens on.
func (s *Server) StorageIP() string {
	host, _ := splitAddr(s.storage.Addr())
	return host
}

// StoragePort returns the port the storage server listens on.
func (s *Server) StoragePort() int {
	_, port := splitAddr(s.storage.Addr())
	return port
}

// SetTrackerStatus makes the tracker fail every request with 'status'. Zero
// restores normal operation.
func (s *Server) SetTrackerStatus(status byte) {
	s.lock.Lock()
	s.trackerStatus = status
	s.lock.Unlock()
}

// SetStall makes the storage server read requests but never answer.
func (s *Server) SetStall(stall bool) {
	s.lock.Lock()
	s.stall = stall
	s.lock.Unlock()
}

// FailNext makes the storage server answer the next request with command
// 'cmd' with 'status', without acting on it.
func (s *Server) FailNext(cmd byte, status byte) {
	s.lock.Lock()
	s.failNext[cmd] = status
	s.lock.Unlock()
}

// NameNext makes the next uploads get these filenames.
func (s *Server) NameNext(names ...string) {
	s.lock.Lock()
	s.names = append(s.names, names...)
	s.lock.Unlock()
}

// Put stores a file directly, as if it was uploaded.
func (s *Server) Put(filename string, content []byte, appender bool) core.FileID {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.files[filename] = &file{content: append([]byte(nil), content...), appender: appender, created: time.Now()}
	return core.FileID{Group: s.Group, Filename: filename}
}

// Content returns the content of a stored file.
func (s *Server) Content(filename string) ([]byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	f, ok := s.files[filename]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.content...), true
}

// Requests returns the targets of every request received with command 'cmd'.
func (s *Server) Requests(cmd byte) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	var out []string
	for _, r := range s.requests {
		if r.Cmd == cmd {
			out = append(out, r.Target)
		}
	}
	return out
}

// OpenConns returns how many connections the servers have open right now.
func (s *Server) OpenConns() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.open
}

func splitAddr(a net.Addr) (string, int) {
	host, portStr, _ := net.SplitHostPort(a.String())
	port, _ := strconv.Atoi(portStr)
	return host, port
}

type handler func(cmd byte, body []byte) (status byte, resp []byte)

func (s *Server) serve(l net.Listener, h handler) {
	defer s.wg.Done()
	for {
		c, err := l.Accept()
		if err != nil {
			return
		}
		s.lock.Lock()
		s.open++
		s.connected[c] = true
		s.lock.Unlock()
		s.wg.Add(1)
		go s.serveConn(c, h)
	}
}

func (s *Server) serveConn(c net.Conn, h handler) {
	defer s.wg.Done()
	defer func() {
		c.Close()
		s.lock.Lock()
		s.open--
		delete(s.connected, c)
		s.lock.Unlock()
	}()
	br := bufio.NewReader(c)
	for {
		hdr, err := rpc.ReadHeader(br)
		if err != nil {
			return
		}
		body, err := rpc.ReadBody(br, hdr.Length)
		if err != nil {
			return
		}
		status, resp := h(hdr.Cmd, body)
		if status == stallStatus {
			// Wait for the client to go away.
			rpc.ReadHeader(br)
			return
		}
		if err := rpc.WriteResponse(c, status, resp); err != nil {
			log.Errorf("stub server failed to respond: %s", err)
			return
		}
	}
}

// stallStatus is returned by a handler that doesn't want to answer.
const stallStatus = 0xff

func (s *Server) record(cmd byte, target string) {
	s.requests = append(s.requests, Request{Cmd: cmd, Target: target})
}

func (s *Server) storageServer(group string) core.StorageServer {
	return core.StorageServer{Group: group, IPAddr: s.StorageIP(), Port: s.StoragePort()}
}

func (s *Server) handleTracker(cmd byte, body []byte) (byte, []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	target := ""
	if len(body) >= core.GroupNameMaxLen {
		target = core.Fixed(body[:core.GroupNameMaxLen])
		if cmd == core.TrackerQueryFetchOne || cmd == core.TrackerQueryUpdate {
			target += "/" + string(body[core.GroupNameMaxLen:])
		}
	}
	s.record(cmd, target)
	if s.trackerStatus != core.StatusOK {
		return s.trackerStatus, nil
	}

	switch cmd {
	case core.TrackerQueryStoreWithoutGroupOne:
		return core.StatusOK, core.EncodeStorageServer(s.storageServer(s.Group), true)
	case core.TrackerQueryStoreWithGroupOne:
		if target != s.Group {
			return core.StatusNotFound, nil
		}
		return core.StatusOK, core.EncodeStorageServer(s.storageServer(target), true)
	case core.TrackerQueryFetchOne, core.TrackerQueryUpdate:
		group := strings.SplitN(target, "/", 2)[0]
		if group != s.Group {
			return core.StatusNotFound, nil
		}
		return core.StatusOK, core.EncodeStorageServer(s.storageServer(group), false)
	case core.TrackerListOneGroup:
		if target != s.Group {
			return core.StatusNotFound, nil
		}
		return core.StatusOK, s.groupStat().Encode()
	case core.TrackerListAllGroups:
		return core.StatusOK, s.groupStat().Encode()
	case core.TrackerListStorage:
		if target != s.Group {
			return core.StatusNotFound, nil
		}
		if len(body) > core.GroupNameMaxLen && core.Fixed(body[core.GroupNameMaxLen:]) != s.StorageIP() {
			return core.StatusOK, nil
		}
		return core.StatusOK, s.storageStat().Encode()
	}
	return core.StatusInvalid, nil
}

func (s *Server) groupStat() core.GroupStat {
	return core.GroupStat{
		Name:           s.Group,
		TotalMB:        1024,
		FreeMB:         512,
		ServerCount:    1,
		StoragePort:    int64(s.StoragePort()),
		ActiveCount:    1,
		StorePathCount: 1,
	}
}

func (s *Server) storageStat() core.StorageStat {
	st := core.StorageStat{
		Status:         7,
		ID:             s.StorageIP(),
		IPAddr:         s.StorageIP(),
		Version:        "6.07",
		JoinTime:       time.Unix(1500000000, 0),
		UpTime:         time.Unix(1600000000, 0),
		TotalMB:        1024,
		FreeMB:         512,
		StorePathCount: 1,
		StoragePort:    int64(s.StoragePort()),
	}
	st.Counters[0] = int64(s.seq)
	return st
}

func (s *Server) handleStorage(cmd byte, body []byte) (byte, []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stall {
		s.record(cmd, "")
		return stallStatus, nil
	}
	if status, ok := s.failNext[cmd]; ok {
		delete(s.failNext, cmd)
		s.record(cmd, "")
		return status, nil
	}

	switch cmd {
	case core.StorageUploadFile, core.StorageUploadAppenderFile:
		if len(body) < 1+8+core.FileExtNameMaxLen {
			return core.StatusInvalid, nil
		}
		ext := core.Fixed(body[9 : 9+core.FileExtNameMaxLen])
		content := body[9+core.FileExtNameMaxLen:]
		if core.Int64(body[1:9]) != int64(len(content)) {
			return core.StatusInvalid, nil
		}
		name := s.newName(ext)
		s.files[name] = &file{content: append([]byte(nil), content...), appender: cmd == core.StorageUploadAppenderFile, created: time.Now()}
		id := core.FileID{Group: s.Group, Filename: name}
		s.record(cmd, id.String())
		return core.StatusOK, core.EncodeUploadResponse(id)

	case core.StorageUploadSlaveFile:
		const fixed = 8 + 8 + core.FilePrefixMaxLen + core.FileExtNameMaxLen
		if len(body) < fixed {
			return core.StatusInvalid, nil
		}
		masterLen := core.Int64(body[0:8])
		prefix := core.Fixed(body[16 : 16+core.FilePrefixMaxLen])
		ext := core.Fixed(body[16+core.FilePrefixMaxLen : fixed])
		if masterLen < 0 || int64(len(body)-fixed) < masterLen {
			return core.StatusInvalid, nil
		}
		master := string(body[fixed : fixed+int(masterLen)])
		content := body[fixed+int(masterLen):]
		s.record(cmd, s.Group+"/"+master)
		if _, ok := s.files[master]; !ok {
			return core.StatusNotFound, nil
		}
		name := strings.TrimSuffix(master, extWithDot(master)) + prefix
		if ext != "" {
			name += "." + ext
		}
		s.files[name] = &file{content: append([]byte(nil), content...), created: time.Now()}
		return core.StatusOK, core.EncodeUploadResponse(core.FileID{Group: s.Group, Filename: name})

	case core.StorageDeleteFile:
		id, f := s.lookup(cmd, body, 0)
		if f == nil {
			return core.StatusNotFound, nil
		}
		delete(s.files, id.Filename)
		return core.StatusOK, nil

	case core.StorageDownloadFile:
		if len(body) < 16 {
			return core.StatusInvalid, nil
		}
		offset, length := core.Int64(body[0:8]), core.Int64(body[8:16])
		_, f := s.lookup(cmd, body, 16)
		if f == nil {
			return core.StatusNotFound, nil
		}
		if offset > int64(len(f.content)) {
			return core.StatusInvalid, nil
		}
		end := int64(len(f.content))
		if length > 0 && offset+length < end {
			end = offset + length
		}
		return core.StatusOK, f.content[offset:end]

	case core.StorageSetMetadata:
		req, err := core.ParseSetMetadataReq(body)
		if err != nil {
			return core.StatusInvalid, nil
		}
		s.record(cmd, req.ID.String())
		f, ok := s.files[req.ID.Filename]
		if !ok || req.ID.Group != s.Group {
			return core.StatusNotFound, nil
		}
		if req.Flag == core.MetadataOverwrite || f.meta == nil {
			f.meta = make(core.Metadata)
		}
		for k, v := range req.Meta {
			f.meta[k] = v
		}
		return core.StatusOK, nil

	case core.StorageGetMetadata:
		_, f := s.lookup(cmd, body, 0)
		if f == nil {
			return core.StatusNotFound, nil
		}
		return core.StatusOK, f.meta.Encode()

	case core.StorageAppendFile:
		if len(body) < 16 {
			return core.StatusInvalid, nil
		}
		nameLen, size := core.Int64(body[0:8]), core.Int64(body[8:16])
		f, content, status := s.appenderTarget(cmd, body, 16, nameLen, size)
		if status != core.StatusOK {
			return status, nil
		}
		f.content = append(f.content, content...)
		return core.StatusOK, nil

	case core.StorageModifyFile:
		if len(body) < 24 {
			return core.StatusInvalid, nil
		}
		nameLen, offset, size := core.Int64(body[0:8]), core.Int64(body[8:16]), core.Int64(body[16:24])
		f, content, status := s.appenderTarget(cmd, body, 24, nameLen, size)
		if status != core.StatusOK {
			return status, nil
		}
		if offset > int64(len(f.content)) {
			return core.StatusInvalid, nil
		}
		if end := offset + size; end > int64(len(f.content)) {
			f.content = append(f.content, make([]byte, end-int64(len(f.content)))...)
		}
		copy(f.content[offset:], content)
		return core.StatusOK, nil

	case core.StorageTruncateFile:
		if len(body) < 16 {
			return core.StatusInvalid, nil
		}
		nameLen, size := core.Int64(body[0:8]), core.Int64(body[8:16])
		f, _, status := s.appenderTarget(cmd, body, 16, nameLen, 0)
		if status != core.StatusOK {
			return status, nil
		}
		if size > int64(len(f.content)) {
			return core.StatusInvalid, nil
		}
		f.content = f.content[:size]
		return core.StatusOK, nil

	case core.StorageQueryFileInfo:
		_, f := s.lookup(cmd, body, 0)
		if f == nil {
			return core.StatusNotFound, nil
		}
		return core.StatusOK, core.EncodeFileInfo(core.FileInfo{
			Size:      int64(len(f.content)),
			CreatedAt: f.created,
			CRC32:     crc32.ChecksumIEEE(f.content),
			SourceIP:  s.StorageIP(),
		})
	}
	s.record(cmd, "")
	return core.StatusInvalid, nil
}

// lookup parses group + filename at 'off' in 'body', records the request,
// and returns the file if it exists.
func (s *Server) lookup(cmd byte, body []byte, off int) (core.FileID, *file) {
	if len(body) < off+core.GroupNameMaxLen {
		s.record(cmd, "")
		return core.FileID{}, nil
	}
	id := core.FileID{
		Group:    core.Fixed(body[off : off+core.GroupNameMaxLen]),
		Filename: string(body[off+core.GroupNameMaxLen:]),
	}
	s.record(cmd, id.String())
	if id.Group != s.Group {
		return id, nil
	}
	return id, s.files[id.Filename]
}

// appenderTarget parses the filename and content of an append, modify or
// truncate request and checks the file is an appender file.
func (s *Server) appenderTarget(cmd byte, body []byte, off int, nameLen, size int64) (*file, []byte, byte) {
	if nameLen < 0 || size < 0 || int64(len(body)-off) != nameLen+size {
		s.record(cmd, "")
		return nil, nil, core.StatusInvalid
	}
	name := string(body[off : off+int(nameLen)])
	s.record(cmd, s.Group+"/"+name)
	f, ok := s.files[name]
	if !ok {
		return nil, nil, core.StatusNotFound
	}
	if !f.appender {
		return nil, nil, core.StatusInvalid
	}
	return f, body[off+int(nameLen):], core.StatusOK
}

func (s *Server) newName(ext string) string {
	if len(s.names) > 0 {
		name := s.names[0]
		s.names = s.names[1:]
		return name
	}
	s.seq++
	name := fmt.Sprintf("M00/00/00/file%04d", s.seq)
	if ext != "" {
		name += "." + ext
	}
	return name
}

func extWithDot(name string) string {
	slash := strings.LastIndexByte(name, '/')
	if dot := strings.LastIndexByte(name, '.'); dot > slash {
		return name[dot:]
	}
	return ""
}
