// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/rfestat/pkg/transport"
)

// Connect starts a device over an already opened port and performs the
// handshake. The port is closed when the handshake fails.
func Connect(ctx context.Context, port transport.Port, opts Options) (*Device, error) {
	return connect(ctx, port, "stream", opts.withDefaults())
}

func connect(ctx context.Context, port transport.Port, name string, opts Options) (*Device, error) {
	d := newDevice(port, name, opts)
	if err := d.handshake(ctx); err != nil {
		d.Close()
		return nil, err
	}

	setup, _ := d.state.Setup()
	event := d.log.Info().
		Str("model", setup.MainModel.String()).
		Str("firmware", setup.Firmware)
	if setup.HasExpansion() {
		event = event.Str("expansion", setup.ExpansionModel.String())
	}
	if serial, err := d.state.SerialNumber(); err == nil {
		event = event.Str("serial", string(serial))
	}
	event.Msg("Connected")
	return d, nil
}

// handshake requests the configuration and blocks until both the setup and
// a configuration have been decoded.
func (d *Device) handshake(ctx context.Context) error {
	const op = "handshake"

	identity := d.disp.Subscribe(CategoryIdentity)
	defer identity.Cancel()
	config := d.disp.Subscribe(CategoryConfig)
	defer config.Cancel()

	d.log.Debug().Dur("timeout", d.opts.HandshakeTimeout).Msg("Starting handshake")
	if err := d.send(op, NewRequestConfigCommand()); err != nil {
		return err
	}
	if err := d.send(op, NewRequestSerialNumberCommand()); err != nil {
		return err
	}

	timer := time.NewTimer(d.opts.HandshakeTimeout)
	defer timer.Stop()

	// State is applied before delivery, so each wakeup can recheck it.
	for !d.state.ready() {
		select {
		case <-identity.ch:
		case <-config.ch:
		case <-timer.C:
			return timeoutError(op, d.opts.HandshakeTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-d.disp.Done():
			return &Error{Kind: KindIO, Op: op, Msg: "device disconnected", Err: d.disp.Err()}
		}
	}
	return nil
}

// Open opens a port by name and connects, trying each configured baud rate
// in order.
func Open(ctx context.Context, name string, opts Options) (*Device, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With().Str("port", name).Logger()

	var errs []error
	for _, baud := range opts.BaudRates {
		port, err := opts.Opener.Open(name, baud)
		if err != nil {
			log.Debug().Err(err).Int("baud", baud).Msg("Open failed")
			errs = append(errs, fmt.Errorf("%d baud: %w", baud, err))
			continue
		}
		d, err := connect(ctx, port, name, opts)
		if err == nil {
			d.baud.Store(int64(baud))
			return d, nil
		}
		log.Debug().Err(err).Int("baud", baud).Msg("No response")
		errs = append(errs, fmt.Errorf("%d baud: %w", baud, err))
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		return nil, invalidInput("open", "no baud rates configured")
	}
	err := errors.Join(errs...)
	var last *Error
	if errors.As(errs[len(errs)-1], &last) {
		return nil, &Error{Kind: last.Kind, Op: "open " + name, Err: err}
	}
	return nil, ioError("open "+name, err)
}

// ConnectAll connects to every RF Explorer found by the lister. Ports are
// tried concurrently; ports that fail are logged and left out. The result
// order is not defined.
func ConnectAll(ctx context.Context, opts Options) ([]*Device, error) {
	opts = opts.withDefaults()
	log := *opts.Logger

	ports, err := opts.Lister.ListPorts()
	if err != nil {
		return nil, ioError("list ports", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		devices []*Device
	)
	for _, p := range ports {
		if !opts.AllPorts && !p.Matches(USBVendorID, USBProductID) {
			log.Debug().Str("port", p.Name).Msg("Skipping non-CP210x port")
			continue
		}
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := Open(ctx, p.Name, opts)
			if err != nil {
				log.Warn().Err(err).Str("port", p.Name).Msg("No RF Explorer on port")
				return
			}
			mu.Lock()
			devices = append(devices, d)
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Info().Int("found", len(devices)).Int("ports", len(ports)).Msg("Discovery complete")
	return devices, nil
}
