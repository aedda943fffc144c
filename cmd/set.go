// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var setPoints int

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change spectrum analyzer settings",
	Long: `Change the settings of a connected spectrum analyzer.

Settings the device confirms (range, amplitudes, sweep points, module, DSP
mode, tracking) are sent and then waited for; the confirmed configuration is
printed. Frequencies accept k, M and G suffixes.

Negative values must follow '--', for example:
  rfestat set amps -- -110 -20`,
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device-wide commands (LCD, baud rate, hold, reboot, power off)",
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deviceCmd)

	rangeCmd := &cobra.Command{
		Use:   "range <start> <stop>",
		Short: "Set the sweep start and stop frequency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, stop, err := parseFrequencyPair(args)
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if setPoints > 0 {
					return printConfig(d.SetStartStopSweepPoints(ctx, start, stop, setPoints))
				}
				return printConfig(d.SetStartStop(ctx, start, stop))
			})
		},
	}
	rangeCmd.Flags().IntVar(&setPoints, "points", 0, "Also set the sweep points (plus models)")

	centerCmd := &cobra.Command{
		Use:   "center <center> <span>",
		Short: "Set the sweep center frequency and span",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			center, span, err := parseFrequencyPair(args)
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if setPoints > 0 {
					return printConfig(d.SetCenterSpanSweepPoints(ctx, center, span, setPoints))
				}
				return printConfig(d.SetCenterSpan(ctx, center, span))
			})
		},
	}
	centerCmd.Flags().IntVar(&setPoints, "points", 0, "Also set the sweep points (plus models)")

	ampsCmd := &cobra.Command{
		Use:   "amps <min-dBm> <max-dBm>",
		Short: "Set the amplitude scale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid amplitude %q", args[0])
			}
			hi, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amplitude %q", args[1])
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				return printConfig(d.SetMinMaxAmps(ctx, lo, hi))
			})
		},
	}

	pointsCmd := &cobra.Command{
		Use:   "points <n>",
		Short: "Set the sweep points (plus models)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid point count %q", args[0])
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				return printConfig(d.SetSweepPoints(ctx, n))
			})
		},
	}

	moduleCmd := &cobra.Command{
		Use:   "module main|expansion",
		Short: "Activate the main or expansion module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expansion bool
			switch normalize(args[0]) {
			case "main":
			case "expansion", "exp":
				expansion = true
			default:
				return fmt.Errorf("unknown module %q (use main or expansion)", args[0])
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.ActivateModule(ctx, expansion); err != nil {
					return err
				}
				return printConfig(d.Config())
			})
		},
	}

	calcCmd := &cobra.Command{
		Use:   "calc <mode>",
		Short: "Set the trace calculator (normal, max, avg, overwrite, maxhold, maxhistorical)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseCalcMode(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.SetCalcMode(mode); err != nil {
					return err
				}
				fmt.Printf("Calculator mode: %s\n", mode)
				return nil
			})
		},
	}

	dspCmd := &cobra.Command{
		Use:   "dsp <mode>",
		Short: "Set the DSP mode (auto, filter, fast, noimage)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseDspMode(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.SetDspMode(ctx, mode); err != nil {
					return err
				}
				fmt.Printf("DSP mode: %s\n", mode)
				return nil
			})
		},
	}

	inputCmd := &cobra.Command{
		Use:   "input <stage>",
		Short: "Set the input stage (direct, att30, lna25, att60, lna12)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseInputStage(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.SetInputStage(stage); err != nil {
					return err
				}
				fmt.Printf("Input stage: %s\n", stage)
				return nil
			})
		},
	}

	offsetCmd := &cobra.Command{
		Use:   "offset <dB>",
		Short: "Set the amplitude offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid offset %q", args[0])
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.SetOffsetDB(db); err != nil {
					return err
				}
				fmt.Printf("Amplitude offset: %d dB\n", db)
				return nil
			})
		},
	}

	wifiCmd := &cobra.Command{
		Use:   "wifi 2.4|5|off",
		Short: "Start or stop the Wi-Fi analyzer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if normalize(args[0]) == "off" {
				return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
					return d.StopWifiAnalyzer()
				})
			}
			band, err := parseWifiBand(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				return d.StartWifiAnalyzer(band)
			})
		},
	}

	trackingCmd := &cobra.Command{
		Use:   "tracking <start> <step>",
		Short: "Start tracking mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, step, err := parseFrequencyPair(args)
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				status, err := d.RequestTracking(ctx, start, step)
				if err != nil {
					return err
				}
				fmt.Printf("Tracking: %s\n", status)
				return nil
			})
		},
	}

	setCmd.AddCommand(rangeCmd, centerCmd, ampsCmd, pointsCmd, moduleCmd, calcCmd,
		dspCmd, inputCmd, offsetCmd, wifiCmd, trackingCmd)

	lcdCmd := &cobra.Command{
		Use:   "lcd on|off",
		Short: "Turn the LCD on or off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if on {
					return d.EnableLcd()
				}
				return d.DisableLcd()
			})
		},
	}

	baudCmd := &cobra.Command{
		Use:   "baud <rate>",
		Short: "Switch the device and the port to a new baud rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baud, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid baud rate %q", args[0])
			}
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				if err := d.SetBaudRate(baud); err != nil {
					return err
				}
				fmt.Printf("Baud rate: %d\n", d.BaudRate())
				return nil
			})
		},
	}

	deviceCmd.AddCommand(lcdCmd, baudCmd,
		deviceAction("hold", "Stop streaming until the next config request", (*rfe.Device).Hold),
		deviceAction("reboot", "Reboot the device", (*rfe.Device).Reboot),
		deviceAction("poweroff", "Switch the device off", (*rfe.Device).PowerOff),
	)
}

// deviceAction builds a command that runs one argument-less operation.
func deviceAction(use, short string, action func(*rfe.Device) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
				return action(d)
			})
		},
	}
}

func parseFrequencyPair(args []string) (uint64, uint64, error) {
	a, err := parseFrequency(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseFrequency(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// printConfig prints a confirmed configuration.
func printConfig(cfg rfe.AnalyzerConfig, err error) error {
	if err != nil {
		return err
	}
	fmt.Print(rfe.FormatMessage(cfg))
	return nil
}
