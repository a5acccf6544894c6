// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/westerndigitalcorporation/fdfs/platform/discovery"
)

// countingResolver counts lookups, and fails the first 'fail' of them.
type countingResolver struct {
	discovery.Static
	lookups int
	fail    int
}

func (c *countingResolver) Lookup(ctx context.Context, host string) ([]string, error) {
	c.lookups++
	if c.lookups <= c.fail {
		return nil, &net.DNSError{Err: "server misbehaving", Name: host, IsTemporary: true}
	}
	return c.Static.Lookup(ctx, host)
}

// blockingResolver answers lookups once 'release' is closed.
type blockingResolver struct {
	discovery.Static
	started chan struct{}
	release chan struct{}
}

func (b *blockingResolver) Lookup(ctx context.Context, host string) ([]string, error) {
	close(b.started)
	<-b.release
	return b.Static.Lookup(ctx, host)
}

func testResolver(trackers []string, options Options) *hostResolver {
	options.setDefaults()
	return newHostResolver(trackers, options)
}

func TestBuildURLMapping(t *testing.T) {
	const id = "group1/M00/00/00/a.jpg"
	mapping := map[string]string{"1.2.3.4": "example.com"}

	h := testResolver([]string{"10.0.0.1"}, Options{IPMapping: mapping, SSL: true})
	assert.Equal(t, "https://example.com/"+id, h.host(context.Background(), "1.2.3.4")+id)

	h = testResolver([]string{"10.0.0.1"}, Options{IPMapping: mapping})
	assert.Equal(t, "http://example.com/"+id, h.host(context.Background(), "1.2.3.4")+id)

	// Nothing known about the IP.
	h = testResolver([]string{"10.0.0.1"}, Options{})
	assert.Equal(t, "http://1.2.3.4/"+id, h.host(context.Background(), "1.2.3.4")+id)
	h = testResolver([]string{"10.0.0.1"}, Options{SSL: true})
	assert.Equal(t, "https://1.2.3.4/", h.host(context.Background(), "1.2.3.4"))

	// A mapping with a scheme is used as is.
	h = testResolver(nil, Options{IPMapping: map[string]string{"1.2.3.4": "https://cdn.example.com/"}})
	assert.Equal(t, "https://cdn.example.com/", h.host(context.Background(), "1.2.3.4"))
}

// Tracker domains that resolve to a storage IP stand in for it.
func TestBuildURLTrackerDomain(t *testing.T) {
	r := &countingResolver{Static: discovery.Static{
		"fdfs.example.com": {"1.2.3.4", "1.2.3.5"},
	}}
	h := testResolver([]string{"10.0.0.1", "fdfs.example.com", "unknown.example.com"}, Options{Resolver: r})
	ctx := context.Background()

	assert.Equal(t, "http://fdfs.example.com/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, "http://fdfs.example.com/", h.host(ctx, "1.2.3.5"))
	assert.Equal(t, "http://1.2.3.6/", h.host(ctx, "1.2.3.6"))
	// Two names, resolved once.
	assert.Equal(t, 2, r.lookups)

	// The caller's mapping wins, and setting it starts over.
	h.setMapping(map[string]string{"1.2.3.4": "img.example.com"})
	assert.Equal(t, "http://img.example.com/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, "http://fdfs.example.com/", h.host(ctx, "1.2.3.5"))
	assert.Equal(t, 4, r.lookups)
}

// The mapping is copied, later changes by the caller don't leak in.
func TestMappingCopied(t *testing.T) {
	mapping := map[string]string{"1.2.3.4": "a.example.com"}
	cli := newClient(ConfigFromHosts("10.0.0.1"), nil, nil, Options{IPMapping: mapping, HostCacheSize: 1, Resolver: discovery.Static{}})
	mapping["1.2.3.4"] = "b.example.com"
	assert.Equal(t, "http://a.example.com/group1/x", cli.BuildURL("1.2.3.4", "group1/x"))

	cli.SetIPMapping(mapping)
	assert.Equal(t, "http://b.example.com/group1/x", cli.BuildURL("1.2.3.4", "/group1/x"))
}

// A tracker host that failed to resolve is tried again later instead of
// being remembered as resolving to nothing.
func TestTrackerDomainRetried(t *testing.T) {
	r := &countingResolver{fail: 1, Static: discovery.Static{
		"fdfs.example.com": {"1.2.3.4"},
	}}
	h := testResolver([]string{"fdfs.example.com"}, Options{Resolver: r})
	now := time.Now()
	h.now = func() time.Time { return now }
	ctx := context.Background()

	assert.Equal(t, "http://1.2.3.4/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, 1, r.lookups)

	// Not again right away.
	assert.Equal(t, "http://1.2.3.4/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, 1, r.lookups)

	now = now.Add(resolveRetry)
	assert.Equal(t, "http://fdfs.example.com/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, 2, r.lookups)
	assert.Equal(t, "http://fdfs.example.com/", h.host(ctx, "1.2.3.4"))
	assert.Equal(t, 2, r.lookups)
}

// A slow lookup doesn't hold up hosts that are already known.
func TestTrackerDomainLookupUnlocked(t *testing.T) {
	r := &blockingResolver{
		Static:  discovery.Static{"fdfs.example.com": {"1.2.3.4"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := testResolver([]string{"fdfs.example.com"}, Options{Resolver: r, IPMapping: map[string]string{"1.2.3.5": "img.example.com"}})
	ctx := context.Background()

	done := make(chan string)
	go func() { done <- h.host(ctx, "1.2.3.4") }()
	<-r.started

	mapped := make(chan string)
	go func() { mapped <- h.host(ctx, "1.2.3.5") }()
	select {
	case got := <-mapped:
		assert.Equal(t, "http://img.example.com/", got)
	case <-time.After(5 * time.Second):
		t.Fatal("mapped host blocked behind a lookup")
	}

	close(r.release)
	assert.Equal(t, "http://fdfs.example.com/", <-done)
}
