// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westerndigitalcorporation/fdfs/pkg/testutil"
)

const testConf = `# connect timeout in seconds
connect_timeout = 30
network_timeout=60
base_path = /tmp/fastdfs

tracker_server = 192.168.0.2:22122
tracker_server=192.168.0.3:22122
`

// The three ways to build a configuration agree.
func TestConfigEquivalence(t *testing.T) {
	fromHosts := ConfigFromHosts("192.168.0.2", "192.168.0.3")

	fromRecord, err := ParseConfigRecord([]byte(`
host_tuple: [192.168.0.2, 192.168.0.3]
port: 22122
timeout: 30
name: Tracker Pool
`))
	require.NoError(t, err)

	fromJSON, err := ParseConfigRecord([]byte(
		`{"host_tuple": ["192.168.0.2", "192.168.0.3"], "port": 22122, "timeout": 30, "name": "Tracker Pool"}`))
	require.NoError(t, err)

	fromFile, err := LoadConfFile(testutil.WriteTempFile(t, ".conf", []byte(testConf)))
	require.NoError(t, err)

	assert.Equal(t, fromHosts, fromRecord)
	assert.Equal(t, fromHosts, fromJSON)
	assert.Equal(t, fromHosts, fromFile)
	assert.Equal(t, 30*time.Second, fromFile.Timeout)
}

func TestConfigRecordIncomplete(t *testing.T) {
	for _, doc := range []string{
		`{}`,
		`{"port": 22122, "timeout": 30, "name": "x"}`,
		`{"host_tuple": ["a"], "timeout": 30, "name": "x"}`,
		`{"host_tuple": ["a"], "port": 22122, "name": "x"}`,
		`{"host_tuple": ["a"], "port": 22122, "timeout": 30}`,
		`{"host_tuple": [], "port": 22122, "timeout": 30, "name": "x"}`,
		`{"host_tuple": ["a"], "port": 0, "timeout": 30, "name": "x"}`,
		`{"host_tuple": ["a"], "port": 22122, "timeout": -1, "name": "x"}`,
		`not: [valid`,
	} {
		_, err := ParseConfigRecord([]byte(doc))
		assert.Equal(t, ErrConfig, KindOf(err), doc)
	}
}

func TestConfMalformed(t *testing.T) {
	for _, conf := range []string{
		"",
		"tracker_server = 192.168.0.2:22122\n",
		"connect_timeout = 30\n",
		"connect_timeout = soon\ntracker_server = 192.168.0.2:22122\n",
		"connect_timeout = 30\ntracker_server = 192.168.0.2\n",
		"connect_timeout = 30\ntracker_server = 192.168.0.2:port\n",
		"connect_timeout = 30\ntracker_server = 192.168.0.2:22122\ntracker_server = 192.168.0.3:22123\n",
		"connect_timeout = 30\njust some words\ntracker_server = 192.168.0.2:22122\n",
	} {
		_, err := ParseConf(strings.NewReader(conf))
		assert.Equal(t, ErrConfig, KindOf(err), conf)
	}

	_, err := LoadConfFile(filepath.Join(testutil.TempDir(), "no-such.conf"))
	assert.Equal(t, ErrConfig, KindOf(err))
}

func TestNewClientBadConfig(t *testing.T) {
	_, err := NewClient(TrackerConfig{}, Options{})
	assert.Equal(t, ErrConfig, KindOf(err))
	_, err = NewClientFromHosts(Options{})
	assert.Equal(t, ErrConfig, KindOf(err))
	_, err = NewClientFromFile(filepath.Join(testutil.TempDir(), "no-such.conf"), Options{})
	assert.Equal(t, ErrConfig, KindOf(err))
	_, err = NewAsyncClient(TrackerConfig{Hosts: []string{"a"}}, Options{})
	assert.Equal(t, ErrConfig, KindOf(err))

	cli, err := NewClientFromFile(testutil.WriteTempFile(t, ".conf", []byte(testConf)), Options{})
	require.NoError(t, err)
	defer cli.Close()
	assert.Equal(t, []string{"192.168.0.2", "192.168.0.3"}, cli.Config().Hosts)
}
