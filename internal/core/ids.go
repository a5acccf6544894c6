// Copyright (c) 2016 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"errors"
	"strings"
)

/*

A remote file is addressed by the group that stores it and the path the
storage server assigned it inside that group:

     group1/M00/00/00/eE0vIWZEgMCAFnaMAAABXbxaFk89563.jpg
     |<-->| |<------------------------------------------>|
     Group                     Filename

The same id is accepted when it's embedded in a URL. The scheme and host are
stripped first:

     https://example.com/group1/M00/00/00/eE0vIWZEgMCAFnaMAAABXbxaFk89563.jpg

*/

// ErrInvalidID is the error returned when a string representation of a file
// id is invalid.
var ErrInvalidID = errors.New("invalid remote file id format")

// FileID identifies a file stored in the cluster, independent of which
// storage server holds it.
type FileID struct {
	Group    string
	Filename string
}

// String returns the "group/filename" form of the id.
func (f FileID) String() string {
	return f.Group + "/" + f.Filename
}

// ParseFileID splits 'id' into a group and a filename. 'id' is either
// "group/filename" or the same prefixed with "scheme://host/".
func ParseFileID(id string) (FileID, error) {
	if i := strings.Index(id, "://"); i >= 0 {
		rest := id[i+3:]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return FileID{}, ErrInvalidID
		}
		id = rest[slash+1:]
	}
	slash := strings.IndexByte(id, '/')
	if slash <= 0 || slash == len(id)-1 {
		return FileID{}, ErrInvalidID
	}
	f := FileID{Group: id[:slash], Filename: id[slash+1:]}
	if len(f.Group) > GroupNameMaxLen {
		return FileID{}, ErrInvalidID
	}
	return f, nil
}
