// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"github.com/westerndigitalcorporation/fdfs/pkg/rpc"
	"github.com/westerndigitalcorporation/fdfs/platform/discovery"
)

// Options contains the optional configuration of a client. The zero value is
// usable.
type Options struct {
	// IPMapping maps storage server IPs to the public host (a domain, or a
	// "scheme://domain" prefix) used in the URLs the client builds.
	IPMapping map[string]string

	// SSL selects "https" rather than "http" for URLs built from a bare
	// domain or IP.
	SSL bool

	// Pool, if set, replaces the tracker connection pool the client would
	// create. The client still destroys it on Close.
	Pool rpc.Pool

	// MaxConns bounds the tracker connection pool. Zero means unbounded.
	MaxConns int

	// ConnectRetries is how many times the pool tries to open a tracker
	// connection. Zero means rpc.DefaultConnectAttempts.
	ConnectRetries int

	// Resolver resolves tracker domain names when building URLs. Nil means
	// discovery.DefaultClient.
	Resolver discovery.Client

	// HostCacheSize is how many storage IP to URL host entries are cached.
	// Zero means DefaultHostCacheSize.
	HostCacheSize int

	// An optional label to differentiate metrics from different client
	// instances. It will be "default" if it's not specified.
	Instance string
}

func (o *Options) setDefaults() {
	if o.Instance == "" {
		o.Instance = "default"
	}
	if o.Resolver == nil {
		o.Resolver = discovery.DefaultClient
	}
	if o.HostCacheSize == 0 {
		o.HostCacheSize = DefaultHostCacheSize
	}
	if o.ConnectRetries == 0 {
		o.ConnectRetries = rpc.DefaultConnectAttempts
	}
}
