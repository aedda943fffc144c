// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// ConnPort adapts a net.Conn, such as a TCP serial server or an in-memory
// pipe, to a Port with read timeouts.
type ConnPort struct {
	conn        net.Conn
	readTimeout atomic.Int64
}

// NewConnPort wraps conn.
func NewConnPort(conn net.Conn) *ConnPort {
	return &ConnPort{conn: conn}
}

// DialTCP connects to a raw TCP serial server (for example ser2net).
func DialTCP(ctx context.Context, address string) (*ConnPort, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewConnPort(conn), nil
}

func (c *ConnPort) Read(p []byte) (int, error) {
	if d := time.Duration(c.readTimeout.Load()); d > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (c *ConnPort) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *ConnPort) Close() error {
	return c.conn.Close()
}

// SetReadTimeout implements ReadTimeoutSetter.
func (c *ConnPort) SetReadTimeout(d time.Duration) error {
	c.readTimeout.Store(int64(d))
	return nil
}
