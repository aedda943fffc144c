// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte streams an RF Explorer is reached
// through: local serial ports, WebSocket serial bridges and TCP bridges.
package transport

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Port is an open byte stream to a device.
type Port interface {
	io.ReadWriteCloser
}

// ReadTimeoutSetter is implemented by ports whose Read returns (0, nil) after
// the timeout when no data arrives.
type ReadTimeoutSetter interface {
	SetReadTimeout(time.Duration) error
}

// BaudRateSetter is implemented by ports that can change rate while open.
type BaudRateSetter interface {
	SetBaudRate(baud int) error
}

// PortInfo describes an enumerated port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          uint16
	PID          uint16
	SerialNumber string
	Product      string
}

// Matches reports whether the port is a USB device with the given ids.
func (p PortInfo) Matches(vid, pid uint16) bool {
	return p.IsUSB && p.VID == vid && p.PID == pid
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	s := fmt.Sprintf("%s [%04X:%04X]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	if p.SerialNumber != "" {
		s += " SN " + p.SerialNumber
	}
	return s
}

// Lister enumerates candidate ports.
type Lister interface {
	ListPorts() ([]PortInfo, error)
}

// Opener opens a port by name at a baud rate.
type Opener interface {
	Open(name string, baud int) (Port, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string, baud int) (Port, error)

// Open calls f.
func (f OpenerFunc) Open(name string, baud int) (Port, error) {
	return f(name, baud)
}

// StaticLister lists a fixed set of ports. Entries carry no USB identity
// unless given explicitly.
type StaticLister []PortInfo

// ListPorts returns the configured ports.
func (s StaticLister) ListPorts() ([]PortInfo, error) {
	out := make([]PortInfo, len(s))
	copy(out, s)
	return out, nil
}

// NamedPorts builds a StaticLister of plain port names.
func NamedPorts(names ...string) StaticLister {
	out := make(StaticLister, 0, len(names))
	for _, n := range names {
		out = append(out, PortInfo{Name: n})
	}
	return out
}

// ErrClosed is returned by operations on a closed port.
var ErrClosed = errors.New("transport: port closed")

// parseHexID parses a hexadecimal USB id as reported by enumerators.
func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", s, err)
	}
	return uint16(v), nil
}
