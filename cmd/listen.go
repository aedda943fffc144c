// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var listenDuration time.Duration

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Test raw connection stability",
	Long: `Open the connection without any handshake and log every chunk of bytes
received, as hex, for a fixed time.

Nothing is sent. Useful for debugging bridges and cabling, or for checking
that a device keeps streaming.

Exit codes:
  0 - Test completed normally
  1 - Connection failed during the test`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().DurationVar(&listenDuration, "duration", 30*time.Second, "Test duration")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("rfestat - Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %v\n\n", listenDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	deadline := time.NewTimer(listenDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	bytesReceived := 0
	chunksReceived := 0
	lastData := time.Time{}

	report := func(result string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Chunks received: %d\n", chunksReceived)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Result: %s\n", result)
	}

	fmt.Printf("Listening for data...\n\n")

	for {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunksReceived++
			lastData = time.Now()
			fmt.Printf("[%s] Received %d bytes: %x\n", lastData.Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			report("FAILED (connection error)")
			conn.Close()
			os.Exit(1)

		case <-heartbeat.C:
			if time.Since(lastData) >= time.Second {
				fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), (listenDuration - time.Since(start)).Seconds())
			}

		case <-deadline.C:
			report("PASSED (connection stable)")
			return nil

		case <-ctx.Done():
			report("INTERRUPTED")
			return nil
		}
	}
}
