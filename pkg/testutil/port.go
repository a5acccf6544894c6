// Copyright (c) 2016 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package testutil

import (
	"net"
	"strconv"

	log "github.com/golang/glog"
)

// GetFreePort returns a loopback port that nobody is listening on. Tests use
// it both for servers they start later and as a target that refuses
// connections.
func GetFreePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("Failed to find a unused port: %v", err)
	}
	// Close the listener so the port is free again.
	defer l.Close()
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Failed to convert to port number: %v", err)
	}
	return port
}

// GetFreeAddr is GetFreePort as a host:port string.
func GetFreeAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(GetFreePort()))
}
