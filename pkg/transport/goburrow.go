// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// GoburrowOpener opens serial ports with github.com/goburrow/serial. It is an
// alternative driver for platforms where go.bug.st/serial misbehaves.
type GoburrowOpener struct {
	ReadTimeout time.Duration
}

// Open opens name at 8N1.
func (o GoburrowOpener) Open(name string, baud int) (Port, error) {
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	cfg := serial.Config{
		Address:  name,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	}
	port, err := serial.Open(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return &GoburrowPort{port: port, cfg: cfg}, nil
}

// GoburrowPort wraps a goburrow serial port. Read timeouts are reported as
// empty reads. Reconfiguring reopens the port; a read interrupted by the
// reopen also returns empty instead of failing.
type GoburrowPort struct {
	mu   sync.Mutex
	port serial.Port
	cfg  serial.Config
	// generation counts successful reopens.
	generation uint64
}

func (g *GoburrowPort) current() serial.Port {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.port
}

func (g *GoburrowPort) Read(p []byte) (int, error) {
	g.mu.Lock()
	port, generation := g.port, g.generation
	g.mu.Unlock()

	n, err := port.Read(p)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	if err != nil {
		// Waits for an in-progress reopen to finish
		g.mu.Lock()
		superseded := g.generation != generation
		g.mu.Unlock()
		if superseded {
			return n, nil
		}
	}
	return n, err
}

func (g *GoburrowPort) Write(p []byte) (int, error) {
	return g.current().Write(p)
}

func (g *GoburrowPort) Close() error {
	return g.current().Close()
}

// SetReadTimeout implements ReadTimeoutSetter. The port is reopened with
// the new timeout.
func (g *GoburrowPort) SetReadTimeout(d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cfg := g.cfg
	cfg.Timeout = d
	return g.reopen(cfg)
}

// SetBaudRate implements BaudRateSetter. The port is reopened at the new
// rate.
func (g *GoburrowPort) SetBaudRate(baud int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cfg := g.cfg
	cfg.BaudRate = baud
	return g.reopen(cfg)
}

func (g *GoburrowPort) reopen(cfg serial.Config) error {
	if cfg.BaudRate == g.cfg.BaudRate && cfg.Timeout == g.cfg.Timeout {
		return nil
	}
	if err := g.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", cfg.Address, err)
	}
	if err := g.port.Open(&cfg); err != nil {
		return fmt.Errorf("failed to reopen %s: %w", cfg.Address, err)
	}
	g.cfg = cfg
	g.generation++
	return nil
}
