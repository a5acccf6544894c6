// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"io"
	"testing"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
	"github.com/westerndigitalcorporation/fdfs/pkg/testutil"
)

// Mock talkers fail the test on any call that wasn't registered with AddCall.
// Results are registered as a []interface{} holding every return value.

type mockTrackerTalker struct {
	*testutil.GenericMock
}

func newMockTrackerTalker(t *testing.T) *mockTrackerTalker {
	return &mockTrackerTalker{testutil.NewGenericMock(t)}
}

func (m *mockTrackerTalker) server(method string, args ...interface{}) (core.StorageServer, error) {
	res := m.GetResult(method, args...).([]interface{})
	return res[0].(core.StorageServer), testutil.ToErr(res[1])
}

func (m *mockTrackerTalker) QueryStore(ctx context.Context, group string) (core.StorageServer, error) {
	return m.server("QueryStore", group)
}

func (m *mockTrackerTalker) QueryUpdate(ctx context.Context, id core.FileID) (core.StorageServer, error) {
	return m.server("QueryUpdate", id)
}

func (m *mockTrackerTalker) QueryFetch(ctx context.Context, id core.FileID) (core.StorageServer, error) {
	return m.server("QueryFetch", id)
}

func (m *mockTrackerTalker) ListOneGroup(ctx context.Context, group string) (core.GroupStat, error) {
	res := m.GetResult("ListOneGroup", group).([]interface{})
	return res[0].(core.GroupStat), testutil.ToErr(res[1])
}

func (m *mockTrackerTalker) ListAllGroups(ctx context.Context) ([]core.GroupStat, error) {
	res := m.GetResult("ListAllGroups").([]interface{})
	return res[0].([]core.GroupStat), testutil.ToErr(res[1])
}

func (m *mockTrackerTalker) ListServers(ctx context.Context, group, storageID string) ([]core.StorageStat, error) {
	res := m.GetResult("ListServers", group, storageID).([]interface{})
	return res[0].([]core.StorageStat), testutil.ToErr(res[1])
}

func (m *mockTrackerTalker) Close() {}

// mockStorageTalker only checks which methods are called; content readers
// and writers are not compared.
type mockStorageTalker struct {
	*testutil.GenericMock
}

func newMockStorageTalker(t *testing.T) *mockStorageTalker {
	return &mockStorageTalker{testutil.NewGenericMock(t)}
}

func (m *mockStorageTalker) Upload(ctx context.Context, srv core.StorageServer, req core.UploadReq, content io.Reader, meta core.Metadata) (core.FileID, error) {
	res := m.GetResult("Upload", srv, req).([]interface{})
	return res[0].(core.FileID), testutil.ToErr(res[1])
}

func (m *mockStorageTalker) UploadSlave(ctx context.Context, srv core.StorageServer, req core.SlaveUploadReq, content io.Reader, meta core.Metadata) (core.FileID, error) {
	res := m.GetResult("UploadSlave", srv, req).([]interface{})
	return res[0].(core.FileID), testutil.ToErr(res[1])
}

func (m *mockStorageTalker) Download(ctx context.Context, srv core.StorageServer, req core.DownloadReq, w io.Writer) (int64, error) {
	res := m.GetResult("Download", srv, req).([]interface{})
	return res[0].(int64), testutil.ToErr(res[1])
}

func (m *mockStorageTalker) Delete(ctx context.Context, srv core.StorageServer, id core.FileID) error {
	return m.GetError("Delete", srv, id)
}

func (m *mockStorageTalker) SetMetadata(ctx context.Context, srv core.StorageServer, req core.SetMetadataReq) error {
	return m.GetError("SetMetadata", srv, req)
}

func (m *mockStorageTalker) GetMetadata(ctx context.Context, srv core.StorageServer, id core.FileID) (core.Metadata, error) {
	res := m.GetResult("GetMetadata", srv, id).([]interface{})
	return res[0].(core.Metadata), testutil.ToErr(res[1])
}

func (m *mockStorageTalker) Append(ctx context.Context, srv core.StorageServer, req core.AppendReq, content io.Reader) error {
	return m.GetError("Append", srv, req)
}

func (m *mockStorageTalker) Modify(ctx context.Context, srv core.StorageServer, req core.ModifyReq, content io.Reader) error {
	return m.GetError("Modify", srv, req)
}

func (m *mockStorageTalker) Truncate(ctx context.Context, srv core.StorageServer, req core.TruncateReq) error {
	return m.GetError("Truncate", srv, req)
}

func (m *mockStorageTalker) QueryFileInfo(ctx context.Context, srv core.StorageServer, id core.FileID) (core.FileInfo, error) {
	res := m.GetResult("QueryFileInfo", srv, id).([]interface{})
	return res[0].(core.FileInfo), testutil.ToErr(res[1])
}
