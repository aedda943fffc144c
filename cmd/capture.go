// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/rfestat/pkg/capture"
	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/Thermoquad/rfestat/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	captureDuration time.Duration
	capturePassive  bool
	captureSpeed    float64
	captureConnect  bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record and replay raw wire captures",
	Long: `Record the raw byte stream read from a device into a capture file, and
play captures back later.

The file format follows the extension: .cbor for a compact CBOR stream, or
.parquet for a columnar file that analysis tools can open directly. Every
chunk is stored with its arrival offset so replays keep the original timing.`,
}

var captureRecordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record the wire stream of a device",
	Long: `Connect to a device and record every byte it sends until --duration
elapses or Ctrl+C is pressed.

By default the connection handshake is made and recorded too, so the
capture can later be replayed with 'capture replay --connect'. With --passive
the port is only opened and listened to.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptureRecord,
}

var captureReplayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Play a capture back",
	Long: `Play a capture back through the framer and decoder and print every
message, like raw_log does for a live connection.

With --connect the capture is used as the transport of a full device
connection instead: the handshake runs against the recorded bytes and the
identity and sweep count are reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptureReplay,
}

var captureInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize a capture",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaptureInfo,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureRecordCmd, captureReplayCmd, captureInfoCmd)

	captureRecordCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	captureRecordCmd.Flags().BoolVar(&capturePassive, "passive", false, "Record without a handshake")

	captureReplayCmd.Flags().Float64Var(&captureSpeed, "speed", 0, "Replay speed (1 = recorded timing, 0 = as fast as possible)")
	captureReplayCmd.Flags().BoolVar(&captureConnect, "connect", false, "Connect a device over the capture")
}

// captureSource names the connection the flags select, for capture metadata.
func captureSource() (string, int) {
	switch {
	case wsURL != "":
		return wsURL, 0
	case tcpAddress != "":
		return "tcp://" + tcpAddress, 0
	}
	baud := rfe.DefaultBaudRates[0]
	if len(baudRates) > 0 {
		baud = baudRates[0]
	}
	return portName, baud
}

// tappedPort hands every chunk read to tap.
type tappedPort struct {
	transport.Port
	tap func([]byte)
}

func (p tappedPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n > 0 {
		p.tap(b[:n])
	}
	return n, err
}

func (p tappedPort) SetReadTimeout(d time.Duration) error {
	if rt, ok := p.Port.(transport.ReadTimeoutSetter); ok {
		return rt.SetReadTimeout(d)
	}
	return nil
}

func runCaptureRecord(cmd *cobra.Command, args []string) error {
	path := args[0]
	name, baud := captureSource()
	rec, err := capture.Create(path, capture.Metadata{Port: name, Baud: baud})
	if err != nil {
		return err
	}
	defer rec.Close()

	fmt.Printf("rfestat - Capture\n")
	fmt.Printf("File: %s\n", path)
	if captureDuration > 0 {
		fmt.Printf("Duration: %v\n", captureDuration)
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	start := time.Now()
	if capturePassive {
		err = recordPassive(rec)
	} else {
		err = withDeviceOptions(func(o *rfe.Options) { o.Tap = rec.Tap }, func(ctx context.Context, d *rfe.Device, info string) error {
			logger.Info().Str("connection", info).Msg("Recording")
			return waitCapture(ctx, d.Done())
		})
	}
	if err != nil {
		return err
	}
	if err := rec.Close(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	chunks, n := rec.Counts()
	fmt.Printf("\n--- Capture summary ---\n")
	fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Chunks: %d\n", chunks)
	fmt.Printf("Bytes: %d\n", n)
	return nil
}

// waitCapture blocks until the capture should stop.
func waitCapture(ctx context.Context, disconnected <-chan struct{}) error {
	var deadline <-chan time.Time
	if captureDuration > 0 {
		timer := time.NewTimer(captureDuration)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-ctx.Done():
	case <-deadline:
	case <-disconnected:
		logger.Warn().Msg("Device disconnected")
	}
	return nil
}

func recordPassive(rec *capture.Recorder) error {
	ctx, cancel := signalContext()
	defer cancel()
	if captureDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, captureDuration)
		defer stop()
	}

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info().Str("connection", connInfo).Msg("Recording passively")

	frames := 0
	err = streamFrames(ctx, tappedPort{Port: conn, tap: rec.Tap}, func([]byte, rfe.Message) {
		frames++
	})
	fmt.Printf("Frames: %d\n", frames)
	return err
}

func runCaptureReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	port, meta, err := capture.OpenReplay(args[0], capture.ReplayOptions{
		Speed: captureSpeed,
		EOF:   !captureConnect,
	})
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("rfestat - Capture Replay\n")
	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Source: %s", meta.Port)
	if meta.Baud > 0 {
		fmt.Printf(" @ %d baud", meta.Baud)
	}
	fmt.Printf("\nRecorded: %s\n", meta.Started.Format(time.RFC3339))
	fmt.Printf("Chunks: %d\n\n", port.Remaining())

	if !captureConnect {
		stats := rfe.NewStatistics()
		err := streamFrames(ctx, port, func(_ []byte, m rfe.Message) {
			stats.Update(m, rfe.Inspect(m))
			fmt.Print(rfe.FormatMessage(m))
		})
		fmt.Printf("\n%s", stats)
		return err
	}

	opts, err := engineOptions()
	if err != nil {
		return err
	}
	d, err := rfe.Connect(ctx, port, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	var sweeps atomic.Int64
	if err := d.SetCallback(rfe.CategorySweep, func(rfe.Message) { sweeps.Add(1) }); err != nil {
		return err
	}
	fmt.Print(formatDevice(d))

	// The replay goes quiet once the capture is exhausted
	for port.Remaining() > 0 && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-d.Done():
			return d.Err()
		case <-time.After(rfe.DefaultPollInterval):
		}
	}
	// Let the reader finish the last chunk
	select {
	case <-ctx.Done():
	case <-time.After(rfe.DefaultPollInterval):
	}
	if err := d.RemoveCallback(rfe.CategorySweep); err != nil {
		return err
	}
	stats := d.Stats()
	fmt.Printf("\nSweeps replayed: %d\n", sweeps.Load())
	fmt.Print(stats.String())
	return nil
}

// summarizeCapture frames the concatenated chunks of a capture.
func summarizeCapture(chunks []capture.Chunk) *rfe.Statistics {
	stats := rfe.NewStatistics()
	framer := rfe.NewFramer()
	framer.SetMaxFrameLen(maxFrameLen)
	decoder := rfe.NewDecoder()
	for _, frame := range framer.Push(capture.Concat(chunks)) {
		m := decoder.Decode(frame)
		stats.Update(m, rfe.Inspect(m))
	}
	stats.SetFramerCounters(framer)
	return stats
}

func runCaptureInfo(cmd *cobra.Command, args []string) error {
	meta, chunks, err := capture.Load(args[0])
	if err != nil {
		return err
	}

	var total int
	var span time.Duration
	for _, c := range chunks {
		total += len(c.Data)
	}
	if len(chunks) > 0 {
		span = chunks[len(chunks)-1].At
	}
	stats := summarizeCapture(chunks)

	fmt.Printf("File:     %s\n", args[0])
	fmt.Printf("Source:   %s\n", meta.Port)
	if meta.Baud > 0 {
		fmt.Printf("Baud:     %d\n", meta.Baud)
	}
	fmt.Printf("Recorded: %s\n", meta.Started.Format(time.RFC3339))
	fmt.Printf("Length:   %v\n", span)
	fmt.Printf("Chunks:   %d\n", len(chunks))
	fmt.Printf("Bytes:    %d\n", total)
	fmt.Printf("Frames:   %d (%d sweeps, %d configs, %d errors)\n",
		stats.TotalFrames, stats.Sweeps, stats.Configs, stats.Errors())
	return nil
}
