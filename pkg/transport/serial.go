// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultReadTimeout bounds each serial read so readers can observe a stop
// request.
const DefaultReadTimeout = 100 * time.Millisecond

// SerialOpener opens local serial ports with go.bug.st/serial.
type SerialOpener struct {
	ReadTimeout time.Duration
}

// Open opens name at 8N1.
func (o SerialOpener) Open(name string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	return &SerialPort{port: port, mode: *mode}, nil
}

// SerialPort wraps a go.bug.st/serial port.
type SerialPort struct {
	port serial.Port
	mode serial.Mode
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

// SetReadTimeout implements ReadTimeoutSetter.
func (s *SerialPort) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

// SetBaudRate implements BaudRateSetter.
func (s *SerialPort) SetBaudRate(baud int) error {
	mode := s.mode
	mode.BaudRate = baud
	if err := s.port.SetMode(&mode); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", baud, err)
	}
	s.mode = mode
	return nil
}

// EnumeratorLister lists ports with their USB identity through
// go.bug.st/serial/enumerator.
type EnumeratorLister struct{}

// ListPorts implements Lister.
func (EnumeratorLister) ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			// Ports with unparsable ids are still listed, without USB identity
			vid, vidErr := parseHexID(d.VID)
			pid, pidErr := parseHexID(d.PID)
			if vidErr == nil && pidErr == nil {
				info.VID, info.PID = vid, pid
			} else {
				info.IsUSB = false
			}
		}
		ports = append(ports, info)
	}
	return ports, nil
}
