// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	sweepCount    int
	sweepChart    bool
	sweepRows     int
	sweepWidth    int
	sweepPeakOnly bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Read spectrum sweeps from an analyzer",
	Long: `Wait for the next sweeps from a spectrum analyzer and print them.

By default every sample is printed as a frequency/amplitude pair. With --peak
only the strongest sample of each sweep is printed, and with --chart each
sweep is drawn as a bar chart.

Use --count 0 to read sweeps until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().IntVarP(&sweepCount, "count", "n", 1, "Number of sweeps to read (0 = until interrupted)")
	sweepCmd.Flags().BoolVar(&sweepChart, "chart", false, "Draw each sweep as a bar chart")
	sweepCmd.Flags().IntVar(&sweepRows, "rows", 32, "Chart rows (samples are grouped by maximum)")
	sweepCmd.Flags().IntVar(&sweepWidth, "width", 60, "Chart bar width in cells")
	sweepCmd.Flags().BoolVar(&sweepPeakOnly, "peak", false, "Print only the peak of each sweep")
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
		id, err := d.Identity()
		if err != nil {
			return err
		}
		if id.Generator {
			return fmt.Errorf("%s is a signal generator and does not sweep", id.MainModel)
		}
		logger.Info().Str("connection", info).Msg("Reading sweeps")

		for i := 0; sweepCount == 0 || i < sweepCount; i++ {
			sweep, err := d.WaitForNextSweep(ctx, sweepTimeout)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			cfg, err := d.Config()
			if err != nil {
				return err
			}

			switch {
			case sweepPeakOnly:
				fmt.Println(formatPeak(cfg, sweep))
			case sweepChart:
				fmt.Println(renderSweepChart(cfg, sweep, sweepRows, sweepWidth))
			default:
				fmt.Print(formatSweep(cfg, sweep))
			}
		}
		return nil
	})
}

// sampleHz returns the frequency of sample i.
func sampleHz(cfg rfe.AnalyzerConfig, i int) uint64 {
	return cfg.StartHz + uint64(i)*cfg.StepHz
}

func formatSweep(cfg rfe.AnalyzerConfig, s rfe.Sweep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s, %d points\n", s.Timestamp.Format("15:04:05.000"), len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		fmt.Fprintf(&b, "%d\t%.1f\n", sampleHz(cfg, i), a)
	}
	return b.String()
}

func formatPeak(cfg rfe.AnalyzerConfig, s rfe.Sweep) string {
	i, a, ok := s.Peak()
	if !ok {
		return "(empty sweep)"
	}
	return fmt.Sprintf("[%s] peak %.1f dBm at %s", s.Timestamp.Format("15:04:05.000"), a, rfe.FormatFrequency(sampleHz(cfg, i)))
}

// bucket groups samples into at most rows groups and keeps the maximum of
// each. starts holds the first sample index of every group.
func bucket(amps []float32, rows int) (maxima []float32, starts []int) {
	if rows <= 0 || rows > len(amps) {
		rows = len(amps)
	}
	for r := 0; r < rows; r++ {
		lo := r * len(amps) / rows
		hi := (r + 1) * len(amps) / rows
		m := amps[lo]
		for _, a := range amps[lo+1 : hi] {
			if a > m {
				m = a
			}
		}
		maxima = append(maxima, m)
		starts = append(starts, lo)
	}
	return maxima, starts
}

// barLen scales a within [lo, hi] dBm to [0, width] cells.
func barLen(a float32, lo, hi int16, width int) int {
	if hi <= lo || width <= 0 {
		return 0
	}
	frac := (float64(a) - float64(lo)) / float64(hi-lo)
	switch {
	case frac < 0:
		frac = 0
	case frac > 1:
		frac = 1
	}
	return int(frac*float64(width) + 0.5)
}

func renderSweepChart(cfg rfe.AnalyzerConfig, s rfe.Sweep, rows, width int) string {
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Width(14).
		Align(lipgloss.Right)

	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	midStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s  %s .. %s  %d..%d dBm",
		s.Timestamp.Format("15:04:05.000"), rfe.FormatFrequency(cfg.StartHz),
		rfe.FormatFrequency(cfg.StopHz()), cfg.MinAmpDBm, cfg.MaxAmpDBm)))
	b.WriteString("\n")
	if len(s.Amplitudes) == 0 {
		return b.String()
	}

	maxima, starts := bucket(s.Amplitudes, rows)
	for i, a := range maxima {
		n := barLen(a, cfg.MinAmpDBm, cfg.MaxAmpDBm, width)
		style := lowStyle
		switch {
		case n*3 >= width*2:
			style = highStyle
		case n*3 >= width:
			style = midStyle
		}
		b.WriteString(labelStyle.Render(rfe.FormatFrequency(sampleHz(cfg, starts[i]))))
		b.WriteString(" ")
		b.WriteString(style.Render(strings.Repeat("█", n)))
		b.WriteString(fmt.Sprintf(" %.1f\n", a))
	}
	return b.String()
}
