// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var (
	screenCount int
	screenPNG   string
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Capture the device LCD",
	Long: `Enable screen dumps, wait for the next LCD captures and print them as
text art. With --png the last capture is also written as a 128x64 PNG image.
Screen dumps are disabled again before exiting.`,
	Args: cobra.NoArgs,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)
	screenCmd.Flags().IntVarP(&screenCount, "count", "n", 1, "Number of captures to print")
	screenCmd.Flags().StringVar(&screenPNG, "png", "", "Write the last capture to this PNG file")
}

func runScreen(cmd *cobra.Command, args []string) error {
	return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
		if err := d.EnableDumpScreen(); err != nil {
			return err
		}
		defer func() {
			if err := d.DisableDumpScreen(); err != nil {
				logger.Warn().Err(err).Msg("Failed to disable screen dumps")
			}
		}()

		var last rfe.ScreenData
		for i := 0; i < screenCount; i++ {
			screen, err := d.WaitForNextScreenData(ctx, rfe.DefaultScreenDataTimeout)
			if err != nil {
				return err
			}
			last = screen
			fmt.Printf("[%s]\n%s\n", screen.Timestamp.Format("15:04:05.000"), screen.ASCII('█', ' '))
		}

		if screenPNG != "" {
			if err := writePNG(screenPNG, last); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", screenPNG)
		}
		return nil
	})
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
