// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity and current configuration",
	Long: `Connect to one device and print its identity, serial number and the
configuration it reported during the handshake.

Without --port, --url or --tcp the first device found by discovery is used.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
		fmt.Printf("rfestat - Device Info\n")
		fmt.Printf("Connection: %s\n", info)

		// Older firmware only sends the serial number on request
		if id, err := d.Identity(); err == nil && id.SerialNumber == "" {
			if _, err := d.RequestSerialNumber(ctx); err != nil {
				logger.Debug().Err(err).Msg("No serial number reported")
			}
		}
		fmt.Print(formatDevice(d))

		id, err := d.Identity()
		if err != nil {
			return err
		}
		fmt.Printf("\nConfiguration:\n")
		if id.Generator {
			printOptional(d.GeneratorConfig())
			printOptional(d.GeneratorCwConfig())
			printOptional(d.GeneratorAmpSweepConfig())
			printOptional(d.GeneratorFreqSweepConfig())
			if t, err := d.Temperature(); err == nil {
				fmt.Printf("  Temperature: %s\n", t)
			}
			return nil
		}

		cfg, err := d.Config()
		if err != nil {
			return err
		}
		fmt.Print(rfe.FormatBody(cfg))
		if m, err := d.DspMode(); err == nil {
			fmt.Printf("  DSP: %s\n", m)
		}
		if s, err := d.InputStage(); err == nil {
			fmt.Printf("  Input stage: %s\n", s)
		}
		if s, err := d.TrackingStatus(); err == nil {
			fmt.Printf("  Tracking: %s\n", s)
		}
		return nil
	})
}

// printOptional prints a state snapshot, skipping ones the device never
// reported.
func printOptional(m rfe.Message, err error) {
	if errors.Is(err, rfe.ErrNoData) {
		return
	}
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	fmt.Printf("  %s\n%s", rfe.FormatMessageType(m), rfe.FormatBody(m))
}
