// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/westerndigitalcorporation/fdfs/internal/core"
)

// TrackerConfig says how to reach the tracker cluster. It's built once and
// not changed for the life of a client.
type TrackerConfig struct {
	// Hosts are the tracker addresses, IPs or domain names. Every call picks
	// one at random.
	Hosts []string

	// Port all trackers listen on.
	Port int

	// Timeout bounds connecting and every single read or write.
	Timeout time.Duration

	// Name is used in logs and metrics.
	Name string
}

// ConfigFromHosts returns a configuration for 'hosts' with default port,
// timeout and name.
func ConfigFromHosts(hosts ...string) TrackerConfig {
	return TrackerConfig{
		Hosts:   append([]string(nil), hosts...),
		Port:    core.DefaultTrackerPort,
		Timeout: core.DefaultTimeout,
		Name:    core.DefaultPoolName,
	}
}

// Validate checks that every field is set to something usable.
func (c TrackerConfig) Validate() error {
	if len(c.Hosts) == 0 {
		return configError("no tracker hosts")
	}
	for _, h := range c.Hosts {
		if strings.TrimSpace(h) == "" {
			return configError("empty tracker host")
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return configError("invalid tracker port %d", c.Port)
	}
	if c.Timeout <= 0 {
		return configError("invalid timeout %s", c.Timeout)
	}
	if c.Name == "" {
		return configError("empty pool name")
	}
	return nil
}

// configRecord is the structured form of a TrackerConfig. Pointers tell a
// missing field from a zero one.
type configRecord struct {
	Hosts   []string `yaml:"host_tuple"`
	Port    *int     `yaml:"port"`
	Timeout *float64 `yaml:"timeout"`
	Name    *string  `yaml:"name"`
}

// ParseConfigRecord builds a configuration from a structured record, as YAML
// or JSON:
//
//	host_tuple: [192.168.0.2, 192.168.0.3]
//	port: 22122
//	timeout: 30
//	name: Tracker Pool
//
// Every field is required. 'timeout' is in seconds.
func ParseConfigRecord(b []byte) (TrackerConfig, error) {
	var rec configRecord
	if err := yaml.Unmarshal(b, &rec); err != nil {
		return TrackerConfig{}, core.NewError(core.ErrConfig, "", errors.Wrap(err, "parse config record"))
	}
	var missing []string
	if rec.Hosts == nil {
		missing = append(missing, "host_tuple")
	}
	if rec.Port == nil {
		missing = append(missing, "port")
	}
	if rec.Timeout == nil {
		missing = append(missing, "timeout")
	}
	if rec.Name == nil {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return TrackerConfig{}, configError("config record is missing %s", strings.Join(missing, ", "))
	}
	c := TrackerConfig{
		Hosts:   rec.Hosts,
		Port:    *rec.Port,
		Timeout: time.Duration(*rec.Timeout * float64(time.Second)),
		Name:    *rec.Name,
	}
	return c, c.Validate()
}

// LoadConfFile reads a configuration from a client.conf style file, see
// ParseConf.
func LoadConfFile(path string) (TrackerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return TrackerConfig{}, core.NewError(core.ErrConfig, path, errors.Wrap(err, "read config file"))
	}
	c, err := ParseConf(bytes.NewReader(b))
	return c, core.Annotate(err, "", path)
}

// ParseConf reads the key=value format of client.conf:
//
//	# comment
//	connect_timeout = 30
//	tracker_server = 192.168.0.2:22122
//	tracker_server = 192.168.0.3:22122
//
// 'connect_timeout' (seconds) and at least one 'tracker_server' are required.
// All trackers must share one port. Other keys are ignored.
func ParseConf(r io.Reader) (TrackerConfig, error) {
	c := TrackerConfig{Name: core.DefaultPoolName}
	sawTimeout := false
	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '[' {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return TrackerConfig{}, configError("line %d: expected key = value, got %q", lineno, line)
		}
		key, value := strings.TrimSpace(line[:eq]), strings.TrimSpace(line[eq+1:])
		switch key {
		case "connect_timeout":
			secs, err := strconv.Atoi(value)
			if err != nil {
				return TrackerConfig{}, configError("line %d: bad connect_timeout %q", lineno, value)
			}
			c.Timeout = time.Duration(secs) * time.Second
			sawTimeout = true
		case "tracker_server":
			host, portStr, err := net.SplitHostPort(value)
			if err != nil {
				return TrackerConfig{}, configError("line %d: bad tracker_server %q: %s", lineno, value, err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return TrackerConfig{}, configError("line %d: bad tracker_server port %q", lineno, portStr)
			}
			if c.Port != 0 && c.Port != port {
				return TrackerConfig{}, configError("line %d: tracker_server port %d differs from %d", lineno, port, c.Port)
			}
			c.Hosts = append(c.Hosts, host)
			c.Port = port
		}
	}
	if err := scanner.Err(); err != nil {
		return TrackerConfig{}, core.NewError(core.ErrConfig, "", errors.Wrap(err, "read config"))
	}
	if !sawTimeout {
		return TrackerConfig{}, configError("connect_timeout is missing")
	}
	if len(c.Hosts) == 0 {
		return TrackerConfig{}, configError("tracker_server is missing")
	}
	return c, c.Validate()
}

func configError(format string, args ...interface{}) error {
	return core.Errorf(core.ErrConfig, "", format, args...)
}
