// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package fdfs

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/golang/groupcache/lru"

	"github.com/westerndigitalcorporation/fdfs/platform/discovery"
)

// DefaultHostCacheSize is the number of storage IPs for which we cache the
// URL host. Clusters rarely have more storage servers than that.
const DefaultHostCacheSize = 256

// hostResolver turns a storage server IP into the "scheme://host/" prefix of
// a public URL. In order, it uses:
//
//  1. the caller's IP mapping,
//  2. a tracker host that's a domain name resolving to the IP,
//  3. the IP itself.
//
// Tracker hosts are resolved without holding the lock. A host that fails to
// resolve is tried again after resolveRetry.
//
// hostResolver is thread-safe.
type hostResolver struct {
	lock sync.Mutex

	ssl      bool
	mapping  map[string]string
	trackers []string
	resolver discovery.Client

	// Tracker domain -> its addresses, for domains that resolved.
	resolved map[string][]string
	// Tracker domain -> when resolving it last failed.
	failed map[string]time.Time
	// Bumped by setMapping so lookups started before it are dropped.
	gen uint64

	// IP -> URL prefix.
	cache *lru.Cache

	now func() time.Time
}

// resolveRetry is how long a tracker host that failed to resolve is left
// alone.
const resolveRetry = 30 * time.Second

func newHostResolver(trackers []string, options Options) *hostResolver {
	h := &hostResolver{
		ssl:      options.SSL,
		trackers: trackers,
		resolver: options.Resolver,
		cache:    lru.New(options.HostCacheSize),
		now:      time.Now,
	}
	h.setMapping(options.IPMapping)
	return h
}

// setMapping replaces the caller's IP mapping. Everything learned so far is
// dropped, the tracker domains are resolved again on next use.
func (h *hostResolver) setMapping(m map[string]string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.mapping = make(map[string]string, len(m))
	for ip, host := range m {
		h.mapping[ip] = host
	}
	h.resolved = make(map[string][]string)
	h.failed = make(map[string]time.Time)
	h.gen++
	h.cache.Clear()
}

// host returns the URL prefix for storage IP 'ip', ending with "/".
func (h *hostResolver) host(ctx context.Context, ip string) string {
	h.lock.Lock()
	if v, ok := h.cache.Get(ip); ok {
		h.lock.Unlock()
		return v.(string)
	}
	if mapped, ok := h.mapping[ip]; ok && mapped != "" {
		prefix := h.prefix(mapped)
		h.cache.Add(ip, prefix)
		h.lock.Unlock()
		return prefix
	}
	pending, gen := h.pendingLocked(), h.gen
	h.lock.Unlock()

	addrs := make(map[string][]string, len(pending))
	var errs map[string]error
	for _, t := range pending {
		a, err := h.resolver.Lookup(ctx, t)
		if err != nil {
			log.Errorf("failed to resolve tracker host %s: %s", t, err)
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[t] = err
			continue
		}
		addrs[t] = a
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if gen == h.gen {
		for t, a := range addrs {
			h.resolved[t] = a
			delete(h.failed, t)
		}
		now := h.now()
		for t := range errs {
			h.failed[t] = now
		}
	}
	domain, complete := h.domainLocked(ip)
	if domain != "" {
		prefix := h.prefix(domain)
		h.cache.Add(ip, prefix)
		return prefix
	}
	prefix := h.prefix(ip)
	// Falling back to the IP is only final once every tracker host resolved.
	if complete && gen == h.gen {
		h.cache.Add(ip, prefix)
	}
	return prefix
}

// pendingLocked returns the tracker domains that still need resolving: those
// never resolved, and those whose last failure is older than resolveRetry.
func (h *hostResolver) pendingLocked() []string {
	var pending []string
	now := h.now()
	for _, t := range h.trackers {
		if discovery.IsIP(t) {
			continue
		}
		if _, ok := h.resolved[t]; ok {
			continue
		}
		if at, ok := h.failed[t]; ok && now.Sub(at) < resolveRetry {
			continue
		}
		pending = append(pending, t)
	}
	return pending
}

// domainLocked returns the first tracker domain that resolves to 'ip', and
// whether every tracker domain has been resolved.
func (h *hostResolver) domainLocked(ip string) (domain string, complete bool) {
	complete = true
	for _, t := range h.trackers {
		if discovery.IsIP(t) {
			continue
		}
		addrs, ok := h.resolved[t]
		if !ok {
			complete = false
			continue
		}
		if domain != "" {
			continue
		}
		for _, a := range addrs {
			if a == ip {
				domain = t
				break
			}
		}
	}
	return domain, complete
}

// prefix turns a host into a URL prefix. A host that already carries a
// scheme is used as is.
func (h *hostResolver) prefix(host string) string {
	if !strings.Contains(host, "://") {
		scheme := "http://"
		if h.ssl {
			scheme = "https://"
		}
		host = scheme + host
	}
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	return host
}
