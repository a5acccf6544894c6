// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

// TrackerTalker asks the tracker cluster where files live and what the
// cluster looks like.
type TrackerTalker interface {
	// QueryStore returns the storage server a new file should go to. If
	// 'group' is empty the tracker picks the group too.
	QueryStore(ctx context.Context, group string) (core.StorageServer, error)

	// QueryUpdate returns the storage server to send a change of 'id' to.
	QueryUpdate(ctx context.Context, id core.FileID) (core.StorageServer, error)

	// QueryFetch returns a storage server to read 'id' from.
	QueryFetch(ctx context.Context, id core.FileID) (core.StorageServer, error)

	// ListOneGroup returns the stats of 'group'.
	ListOneGroup(ctx context.Context, group string) (core.GroupStat, error)

	// ListAllGroups returns the stats of every group.
	ListAllGroups(ctx context.Context) ([]core.GroupStat, error)

	// ListServers returns the storage servers of 'group', or only the one
	// with id 'storageID' if it's not empty.
	ListServers(ctx context.Context, group, storageID string) ([]core.StorageStat, error)

	// Close releases the connections held by the talker.
	Close()
}
