// Copyright (c) 2016 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package discovery resolves the host names found in tracker configurations.
// The client uses it to learn which storage IPs sit behind a public domain
// name, so URLs can be built with the name instead of the IP.
package discovery

import (
	"context"
	"net"
	"sort"
)

// DefaultClient resolves names through the system resolver.
var DefaultClient Client = &dnsClient{}

// Client is an interface for name resolution.
type Client interface {
	// Lookup returns the addresses of 'host', sorted. An IP literal resolves
	// to itself.
	Lookup(ctx context.Context, host string) ([]string, error)
}

// Static is a Client backed by a fixed table. Hosts that aren't in the table
// fail to resolve, unless they're IP literals.
type Static map[string][]string

// Lookup implements Client.
func (s Static) Lookup(ctx context.Context, host string) ([]string, error) {
	if net.ParseIP(host) != nil {
		return []string{host}, nil
	}
	addrs, ok := s[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := append([]string(nil), addrs...)
	sort.Strings(out)
	return out, nil
}

// IsIP returns whether 'host' is an IP literal rather than a name.
func IsIP(host string) bool {
	return net.ParseIP(host) != nil
}
