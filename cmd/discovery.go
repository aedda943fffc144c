// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/Thermoquad/rfestat/pkg/transport"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports of this machine with their USB identity.

Ports behind a CP210x USB bridge (10C4:EA60), the bridge used by every
RF Explorer, are marked with '*'. Discovery probes only those ports unless
--filter-usb=false is given.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

var discoveryCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find RF Explorer devices on the serial ports",
	Long: `Probe serial ports for RF Explorer devices and print their identity.

Each candidate port is opened at every --baud-rates entry in turn and sent a
config and serial number request. Ports that answer with a setup frame are
reported. Probing runs on all ports concurrently.

Examples:
  # Probe every CP210x port
  rfestat discover

  # Probe every port, whatever the USB bridge
  rfestat discover --filter-usb=false

  # Probe one port only
  rfestat discover --port /dev/ttyUSB0

  # Handshake with the device behind a WebSocket bridge
  rfestat discover --url ws://bridge.local/serial

Exit codes:
  0 - At least one device found
  1 - No device found`,
	Args: cobra.NoArgs,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(discoveryCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.EnumeratorLister{}.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		return nil
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	for _, p := range ports {
		mark := " "
		if p.Matches(rfe.USBVendorID, rfe.USBProductID) {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, p)
	}
	return nil
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts, err := engineOptions()
	if err != nil {
		return err
	}
	if wsURL != "" || tcpAddress != "" {
		return discoverBridge(ctx, opts)
	}
	if portName != "" {
		opts.Lister = transport.NamedPorts(portName)
		opts.AllPorts = true
	}

	fmt.Printf("rfestat - Device Discovery\n")
	fmt.Printf("Baud rates: %v\n", opts.BaudRates)
	if opts.AllPorts {
		fmt.Printf("Ports: all\n\n")
	} else {
		fmt.Printf("Ports: CP210x only\n\n")
	}

	devices, err := rfe.ConnectAll(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name() < devices[j].Name() })
	for _, d := range devices {
		fmt.Print(formatDevice(d))
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(devices))
	if len(devices) == 0 {
		fmt.Printf("No devices discovered. Check the USB cable and device power.\n")
		os.Exit(1)
	}
	return nil
}

// discoverBridge handshakes with the single device behind a WebSocket or TCP
// bridge.
func discoverBridge(ctx context.Context, opts rfe.Options) error {
	d, info, err := connectDevice(ctx, opts)
	if err != nil {
		fmt.Printf("No device answered: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	fmt.Printf("rfestat - Device Discovery\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Print(formatDevice(d))
	return nil
}

// formatDevice renders the identity block printed by discover and info.
func formatDevice(d *rfe.Device) string {
	s := fmt.Sprintf("\nDevice found:\n  Port: %s @ %d baud\n", d.Name(), d.BaudRate())
	id, err := d.Identity()
	if err != nil {
		return s + fmt.Sprintf("  Identity: %v\n", err)
	}

	kind := "Spectrum Analyzer"
	if id.Generator {
		kind = "Signal Generator"
	}
	s += fmt.Sprintf("  Kind: %s\n", kind)
	s += fmt.Sprintf("  Firmware: %s\n", id.Firmware)
	s += fmt.Sprintf("  Main module: %s\n", id.MainModel)
	if id.ExpansionModel != rfe.ModelNone {
		s += fmt.Sprintf("  Expansion module: %s\n", id.ExpansionModel)
	}
	if id.SerialNumber != "" {
		s += fmt.Sprintf("  Serial number: %s\n", id.SerialNumber)
	}
	if active, err := d.ActiveModule(); err == nil {
		s += fmt.Sprintf("  Active module: %s\n", active)
	}
	return s
}
