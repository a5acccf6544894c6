// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"strings"
	"testing"
)

// testFileID parses 'id' both bare and with a URL prefix, and checks that
// both forms give the expected group and filename.
func testFileID(id, group, filename string, t *testing.T) {
	for _, s := range []string{id, "http://example.com/" + id, "https://1.2.3.4:8080/" + id} {
		f, err := ParseFileID(s)
		if err != nil {
			t.Fatalf("error parsing %q: %s", s, err)
		}
		if f.Group != group || f.Filename != filename {
			t.Fatalf("%q parsed to (%q, %q), expected (%q, %q)", s, f.Group, f.Filename, group, filename)
		}
		if f.String() != id {
			t.Fatalf("%q round tripped to %q", id, f.String())
		}
	}
}

// Test parsing of well-formed ids.
func TestFileID(t *testing.T) {
	testFileID("group1/M00/00/00/eE0vIWZEgMCAFnaMAAABXbxaFk89563.jpg", "group1", "M00/00/00/eE0vIWZEgMCAFnaMAAABXbxaFk89563.jpg", t)
	testFileID("g/x", "g", "x", t)
	testFileID("group1/M00/00/00/x.txt", "group1", "M00/00/00/x.txt", t)
	testFileID(strings.Repeat("g", GroupNameMaxLen)+"/f", strings.Repeat("g", GroupNameMaxLen), "f", t)
}

// Test that malformed ids are rejected without panicking.
func TestFileIDInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"group1",
		"/M00/x.txt",
		"group1/",
		"http://example.com",
		"http://example.com/group1",
		"http://example.com/",
		strings.Repeat("g", GroupNameMaxLen+1) + "/f",
	} {
		if _, err := ParseFileID(s); err != ErrInvalidID {
			t.Errorf("%q: expected ErrInvalidID, got %v", s, err)
		}
	}
}
