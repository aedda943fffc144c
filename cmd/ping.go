// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure command round trips to a device",
	Long: `Repeatedly request the serial number of a connected device and report
the round-trip time of each answer.

This is useful for verifying:
  - The connection handshake works at the chosen baud rate
  - WebSocket or TCP bridges pass traffic both ways
  - The device answers commands while it is streaming sweeps

Exit codes:
  0 - All pings answered
  1 - One or more pings failed or timed out`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
		fmt.Printf("rfestat - Ping\n")
		fmt.Printf("Connection: %s\n", info)
		fmt.Printf("Timeout: %v per ping\n", commandTimeout)
		fmt.Printf("Count: %d pings\n\n", pingCount)

		successCount := 0
		failCount := 0
		var total time.Duration

		for i := 1; i <= pingCount; i++ {
			fmt.Printf("Ping %d/%d: ", i, pingCount)

			start := time.Now()
			serial, err := d.RequestSerialNumber(ctx)
			rtt := time.Since(start)
			if err != nil {
				fmt.Printf("FAILED: %v\n", err)
				failCount++
				if ctx.Err() != nil {
					break
				}
			} else {
				fmt.Printf("reply from %s, rtt=%v\n", serial, rtt.Round(time.Millisecond))
				successCount++
				total += rtt
			}

			if i < pingCount {
				select {
				case <-ctx.Done():
				case <-time.After(pingInterval):
				}
			}
		}

		sent := successCount + failCount
		fmt.Printf("\n--- Ping statistics ---\n")
		if sent == 0 {
			return nil
		}
		fmt.Printf("%d pings sent, %d replies received, %.0f%% loss\n",
			sent, successCount, float64(failCount)/float64(sent)*100)
		if successCount > 0 {
			fmt.Printf("average rtt=%v\n", (total / time.Duration(successCount)).Round(time.Millisecond))
		}

		if failCount > 0 {
			d.Close()
			os.Exit(1)
		}
		return nil
	})
}
