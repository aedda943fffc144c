// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/Thermoquad/rfestat/pkg/transport"
	"golang.org/x/term"
)

// errNoTarget is returned when a raw command has nothing to open.
var errNoTarget = errors.New("one of --port, --url or --tcp must be specified")

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("RFESTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serialOpener returns the opener for the --driver flag.
func serialOpener() (transport.Opener, error) {
	switch driver {
	case "", "bugst":
		return transport.SerialOpener{ReadTimeout: rfe.DefaultPollInterval}, nil
	case "goburrow":
		return transport.GoburrowOpener{ReadTimeout: rfe.DefaultPollInterval}, nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q (use bugst or goburrow)", driver)
	}
}

// engineOptions builds device options from the flags.
func engineOptions() (rfe.Options, error) {
	opener, err := serialOpener()
	if err != nil {
		return rfe.Options{}, err
	}
	return rfe.Options{
		Logger:           &logger,
		HandshakeTimeout: handshakeTimeout,
		CommandTimeout:   commandTimeout,
		SweepTimeout:     sweepTimeout,
		MaxFrameLen:      maxFrameLen,
		BaudRates:        baudRates,
		Opener:           opener,
		AllPorts:         !filterUSB,
	}, nil
}

// openBridge dials the WebSocket or TCP bridge named by the flags. ok is
// false when neither is set.
func openBridge(ctx context.Context) (port transport.Port, info string, ok bool, err error) {
	switch {
	case wsURL != "":
		password := ""
		if wsUsername != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, "", true, err
			}
		}
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		ws, err := transport.DialWebSocket(dialCtx, wsURL, transport.WebSocketOptions{
			Username:      wsUsername,
			Password:      password,
			SkipTLSVerify: wsNoSSLVerify,
		})
		if err != nil {
			return nil, "", true, err
		}
		return ws, fmt.Sprintf("WebSocket: %s", wsURL), true, nil

	case tcpAddress != "":
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		conn, err := transport.DialTCP(dialCtx, tcpAddress)
		if err != nil {
			return nil, "", true, err
		}
		return conn, fmt.Sprintf("TCP: %s", tcpAddress), true, nil
	}
	return nil, "", false, nil
}

// OpenConnection opens a raw byte stream without a handshake: the bridge if
// one is configured, otherwise --port at the first baud rate.
func OpenConnection(ctx context.Context) (transport.Port, string, error) {
	port, info, ok, err := openBridge(ctx)
	if ok {
		return port, info, err
	}
	if portName == "" {
		return nil, "", errNoTarget
	}

	opener, err := serialOpener()
	if err != nil {
		return nil, "", err
	}
	baud := rfe.DefaultBaudRates[0]
	if len(baudRates) > 0 {
		baud = baudRates[0]
	}
	p, err := opener.Open(portName, baud)
	if err != nil {
		return nil, "", err
	}
	return p, fmt.Sprintf("Serial: %s @ %d baud", portName, baud), nil
}

// connectDevice connects to one device: over the bridge, on --port, or the
// first device discovery finds.
func connectDevice(ctx context.Context, opts rfe.Options) (*rfe.Device, string, error) {
	port, info, ok, err := openBridge(ctx)
	if ok {
		if err != nil {
			return nil, "", err
		}
		d, err := rfe.Connect(ctx, port, opts)
		return d, info, err
	}

	if portName != "" {
		d, err := rfe.Open(ctx, portName, opts)
		if err != nil {
			return nil, "", err
		}
		return d, fmt.Sprintf("Serial: %s @ %d baud", portName, d.BaudRate()), nil
	}

	devices, err := rfe.ConnectAll(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	if len(devices) == 0 {
		return nil, "", fmt.Errorf("no RF Explorer found (use --port, or --filter-usb=false to probe every port)")
	}
	for _, extra := range devices[1:] {
		logger.Warn().Str("port", extra.Name()).Msg("Ignoring additional device, use --port to choose")
		extra.Close()
	}
	d := devices[0]
	return d, fmt.Sprintf("Serial: %s @ %d baud", d.Name(), d.BaudRate()), nil
}

// withDevice connects, runs fn and closes the device.
func withDevice(fn func(ctx context.Context, d *rfe.Device, info string) error) error {
	return withDeviceOptions(nil, fn)
}

// withDeviceOptions is withDevice with a hook to adjust the options, such as
// installing a Tap, before connecting.
func withDeviceOptions(configure func(*rfe.Options), fn func(ctx context.Context, d *rfe.Device, info string) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts, err := engineOptions()
	if err != nil {
		return err
	}
	if configure != nil {
		configure(&opts)
	}
	d, info, err := connectDevice(ctx, opts)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d, info)
}
