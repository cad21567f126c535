// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tcpconsole provides a console driver that connects to a
// TCP serial-port server (a ser2net or terminal-server endpoint).
// Registered as the "tcp" variant.
package tcpconsole

import (
	"fmt"
	"net"
	"time"

	"github.com/bureau-foundation/bench/lib/driver"
)

// dialTimeout bounds the connect to the serial-port server.
const dialTimeout = 10 * time.Second

func init() {
	driver.RegisterConsole("tcp", func() driver.Console { return &Console{} })
}

// Console is a console endpoint reached over TCP. The remote side
// bridges the target's serial port.
type Console struct {
	address string
	conn    net.Conn
}

var _ driver.Console = (*Console)(nil)

func (c *Console) Configure(options driver.Options) error {
	address, ok := options["address"]
	if !ok {
		return fmt.Errorf("tcpconsole: missing required option %q", "address")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("tcpconsole: invalid address %q: %w", address, err)
	}
	c.address = address
	return nil
}

func (c *Console) Probe() error {
	conn, err := net.DialTimeout("tcp", c.address, dialTimeout)
	if err != nil {
		return fmt.Errorf("tcpconsole: probing %s: %w", c.address, err)
	}
	conn.Close()
	return nil
}

func (c *Console) Open() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", c.address, dialTimeout)
	if err != nil {
		return fmt.Errorf("tcpconsole: connecting to %s: %w", c.address, err)
	}
	c.conn = conn
	return nil
}

func (c *Console) Read(buffer []byte) (int, error) {
	if c.conn == nil {
		return 0, fmt.Errorf("tcpconsole: not connected")
	}
	return c.conn.Read(buffer)
}

func (c *Console) Write(data []byte) (int, error) {
	if c.conn == nil {
		return 0, fmt.Errorf("tcpconsole: not connected")
	}
	return c.conn.Write(data)
}

func (c *Console) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}
