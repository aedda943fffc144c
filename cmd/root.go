// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName  string
	baudRates []int
	driver    string

	// Bridge connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
	tcpAddress    string

	// Engine flags
	handshakeTimeout time.Duration
	commandTimeout   time.Duration
	sweepTimeout     time.Duration
	maxFrameLen      int
	filterUSB        bool
)

var rootCmd = &cobra.Command{
	Use:   "rfestat",
	Short: "RF Explorer protocol tool",
	Long: `rfestat - A CLI tool for talking to RF Explorer spectrum analyzers and
signal generators.

Provides commands for discovery, live sweeps, device settings, raw frame
logging, error statistics and wire captures.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud-rates 500000,2400]
  Discovery: no --port; every CP210x port is probed (--filter-usb=false for all)
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp host:port

Settings may also come from a YAML or TOML file given with --config. Flags set
on the command line win over the file.

For WebSocket authentication, the password is read from the RFESTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.4.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntSliceVarP(&baudRates, "baud-rates", "b", rfe.DefaultBaudRates, "Baud rates to try in order (serial only)")
	flags.StringVar(&driver, "driver", "bugst", "Serial driver (bugst, goburrow)")

	// Bridge connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	flags.StringVar(&tcpAddress, "tcp", "", "Raw TCP serial server (host:port)")

	// Engine flags
	flags.DurationVar(&handshakeTimeout, "handshake-timeout", rfe.DefaultHandshakeTimeout, "Time allowed for the connection handshake")
	flags.DurationVar(&commandTimeout, "command-timeout", rfe.DefaultCommandTimeout, "Time allowed for a command confirmation")
	flags.DurationVar(&sweepTimeout, "sweep-timeout", rfe.DefaultSweepTimeout, "Time allowed for the next sweep")
	flags.IntVar(&maxFrameLen, "max-frame-len", rfe.DefaultMaxFrameLen, "Longest frame accepted before resynchronizing")
	flags.BoolVar(&filterUSB, "filter-usb", true, "Only probe CP210x USB bridges during discovery")
}

// setup applies the config file and installs the logger before any command
// runs.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if err := applyConfigFile(cmd.Flags(), configPath); err != nil {
			return err
		}
	}
	return initLogger(logLevel)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
