// Port allocation
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-trb.
//
// go-trb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-trb is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-trb. If not, see
// <http://www.gnu.org/licenses/>

package isol

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go-trb"

	"github.com/pkg/errors"
)

// ErrNotReady is returned if nothing accepted connections on a port
// before the deadline.
var ErrNotReady = errors.New("server not ready")

// Allocate returns a port that is free at the time of returning,
// preferring PREFERRED.  If the preferred port is taken (or 0), the
// operating system picks a port.  The port is not reserved, so a
// later bind may still fail and should be retried with a new port.
func Allocate(preferred int) (int, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferred))
	if err != nil {
		trb.Debug.Printf("Port %d unavailable: %s", preferred, err)
		ln, err = net.Listen("tcp", ":0")
		if err != nil {
			return 0, errors.Wrap(err, "cannot allocate port")
		}
	}
	defer ln.Close()

	// Extract port number the operating system bound the listener
	// to, since port 0 is redirected to a "random" open port
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.Errorf("unexpected address %s", ln.Addr())
	}
	return addr.Port, nil
}

// Ports handed out by Reserve and not yet released
var reserved = struct {
	sync.Mutex
	ports map[int]struct{}
}{ports: make(map[int]struct{})}

// Reserve allocates a port like Allocate, but never returns a port
// that is still reserved in this process, even if nothing is bound
// to it yet.  The port is reserved until RELEASE is called.
func Reserve(preferred int) (port int, release func(), err error) {
	reserved.Lock()
	defer reserved.Unlock()

	if _, ok := reserved.ports[preferred]; ok {
		preferred = 0
	}
	for i := 0; i < 16; i++ {
		port, err = Allocate(preferred)
		if err != nil {
			return 0, nil, err
		}
		if _, ok := reserved.ports[port]; !ok {
			reserved.ports[port] = struct{}{}
			return port, func() { unreserve(port) }, nil
		}
		preferred = 0
	}
	return 0, nil, errors.New("cannot allocate an unreserved port")
}

func unreserve(port int) {
	reserved.Lock()
	delete(reserved.ports, port)
	reserved.Unlock()
}

// WaitForPort blocks until ADDR accepts TCP connections, the context
// is cancelled or EXITED is closed.
func WaitForPort(ctx context.Context, addr string, exited <-chan struct{}) error {
	var dialer = net.Dialer{Timeout: time.Second}

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ErrNotReady, "%s: %s", addr, ctx.Err())
		case <-exited:
			return errors.Wrapf(ErrNotReady, "%s: server exited", addr)
		case <-tick.C:
		}
	}
}
