// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/Thermoquad/rfestat/pkg/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll        bool
	statsInterval  int
	useTUI         bool
	monitorPassive bool
)

// statsPushInterval throttles statistics snapshots sent to the display.
const statsPushInterval = 250 * time.Millisecond

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the frame stream and detect anomalies",
	Long: `Track frames, undecodable data and suspicious values with statistics.

This command inspects each frame and detects:
  - Unknown frames and decode failures
  - Unrecognized codes in configuration and status messages
  - Out-of-range configurations and empty sweeps
  - Bytes discarded while resynchronizing, EEOT drops and oversized frames

By default the device is connected and identified first. With --passive the
port is only opened and listened to, which also works while another program
drives the device.

By default, only anomalies are displayed. Use --show-all to display valid
frames too. The TUI also shows the latest sweep as a bar chart.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just anomalies)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval in text mode (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&monitorPassive, "passive", false, "Listen without connecting")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorPassive {
		ctx, cancel := signalContext()
		defer cancel()

		conn, info, err := OpenConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		events := make(chan tea.Msg, 256)
		go feedPassive(ctx, conn, events)
		return runMonitorUI(ctx, info, events)
	}

	frames := make(chan rfe.Message, 256)
	hook := func(_ []byte, m rfe.Message) {
		// The reader must never block on the display
		select {
		case frames <- m:
		default:
		}
	}
	return withDeviceOptions(func(o *rfe.Options) { o.FrameHook = hook }, func(ctx context.Context, d *rfe.Device, info string) error {
		events := make(chan tea.Msg, 256)
		go feedDevice(ctx, d, frames, events)
		return runMonitorUI(ctx, info, events)
	})
}

func runMonitorUI(ctx context.Context, source string, events <-chan tea.Msg) error {
	if useTUI {
		return runTUIMode(ctx, source, events)
	}
	return runTextMode(ctx, source, events)
}

// send delivers msg unless ctx ends first.
func send(ctx context.Context, events chan<- tea.Msg, msg tea.Msg) bool {
	select {
	case events <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// feedPassive frames conn itself and keeps its own statistics.
func feedPassive(ctx context.Context, conn transport.Port, events chan<- tea.Msg) {
	stats := rfe.NewStatistics()
	framer := rfe.NewFramer()
	framer.SetMaxFrameLen(maxFrameLen)
	synchronized := false
	var lastPush time.Time

	err := streamFramesWith(ctx, conn, framer, func(_ []byte, m rfe.Message) {
		anomalies := rfe.Inspect(m)
		stats.Update(m, anomalies)
		stats.SetFramerCounters(framer)

		if !synchronized {
			synchronized = true
			send(ctx, events, syncMsg{skipped: framer.Discarded()})
		}
		send(ctx, events, frameMsg{message: m, anomalies: anomalies})
		if len(anomalies) > 0 || time.Since(lastPush) >= statsPushInterval {
			lastPush = time.Now()
			send(ctx, events, statsMsg(*stats))
		}
	})
	send(ctx, events, statsMsg(*stats))
	send(ctx, events, disconnectedMsg{err: err})
}

// feedDevice forwards frames from the device hook with the device's own
// statistics.
func feedDevice(ctx context.Context, d *rfe.Device, frames <-chan rfe.Message, events chan<- tea.Msg) {
	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()
	synchronized := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.Done():
			send(ctx, events, statsMsg(d.Stats()))
			send(ctx, events, disconnectedMsg{err: d.Err()})
			return
		case <-ticker.C:
			send(ctx, events, statsMsg(d.Stats()))
		case m := <-frames:
			if !synchronized {
				synchronized = true
				send(ctx, events, syncMsg{skipped: d.Stats().DiscardedBytes})
			}
			send(ctx, events, frameMsg{message: m, anomalies: rfe.Inspect(m)})
		}
	}
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, source string, events <-chan tea.Msg) error {
	m := newMonitorModel(source, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case ev := <-events:
				p.Send(ev)
			case <-ctx.Done():
				p.Quit()
				return
			case <-done:
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// printAnomalies prints the anomalies of one frame in highlighted format
func printAnomalies(m rfe.Message, anomalies []rfe.Anomaly) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s\n", timestamp, rfe.FormatMessageType(m))

	for i, a := range anomalies {
		switch a.Type {
		case rfe.AnomalyDecodeError, rfe.AnomalyUnknownPrefix, rfe.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m (%s)\n", i+1, a.Message, a.Type)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m (%s)\n", i+1, a.Message, a.Type)
		}
	}

	if u, ok := m.(rfe.Unknown); ok {
		fmt.Printf("  Raw: % X\n", u.Raw)
		fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
		return
	}
	fmt.Print(rfe.FormatBody(m))
	fmt.Println()
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, source string, events <-chan tea.Msg) error {
	fmt.Printf("rfestat - Monitor\n")
	fmt.Printf("Connection: %s\n", source)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := rfe.NewStatistics()
	interval := time.Duration(statsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()

	printStats := func() {
		fmt.Println()
		fmt.Print(stats.String())
		fmt.Println()
	}

	for {
		select {
		case <-ctx.Done():
			printStats()
			return nil

		case ev := <-events:
			switch ev := ev.(type) {
			case syncMsg:
				if ev.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", ev.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			case statsMsg:
				*stats = rfe.Statistics(ev)
			case frameMsg:
				if len(ev.anomalies) > 0 {
					printAnomalies(ev.message, ev.anomalies)
				} else if showAll {
					fmt.Print(rfe.FormatMessage(ev.message))
				}
			case disconnectedMsg:
				printStats()
				return ev.err
			}

		case <-statsTicker.C:
			printStats()
		}
	}
}
