// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package discovery

import (
	"context"
	"net"
	"sort"
	"time"

	log "github.com/golang/glog"
)

// lookupTimeout bounds one lookup if the caller's context has no deadline.
const lookupTimeout = 10 * time.Second

type dnsClient struct {
	r *net.Resolver
}

// Lookup does a single dns lookup.
func (cli *dnsClient) Lookup(ctx context.Context, host string) ([]string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
	}
	// A nil *net.Resolver is the default resolver.
	addrs, err := cli.r.LookupHost(ctx, host)
	if err != nil {
		log.V(1).Infof("lookup of %s failed: %s", host, err)
		return nil, err
	}
	sort.Strings(addrs)
	return addrs, nil
}
