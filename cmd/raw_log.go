// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/Thermoquad/rfestat/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	rawLogRequest bool
	rawLogHex     bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously frame, decode and display RF Explorer messages as they arrive.

The connection is opened passively: no handshake is made and nothing is
sent unless --request is given, in which case a config request (C0) is sent
once so a quiet device starts streaming.

Supports serial, WebSocket and TCP connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogRequest, "request", false, "Send a config request after connecting")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print each frame as hex")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("rfestat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogRequest {
		if _, err := conn.Write(rfe.NewRequestConfigCommand().Bytes()); err != nil {
			return fmt.Errorf("send config request: %w", err)
		}
	}

	return streamFrames(ctx, conn, func(frame []byte, m rfe.Message) {
		if rawLogHex {
			fmt.Printf("% X\n", frame)
		}
		if u, ok := m.(rfe.Unknown); ok {
			fmt.Printf("[ERROR] %v\n", u.Err)
			return
		}
		fmt.Print(rfe.FormatMessage(m))
	})
}

// streamFrames reads conn until ctx ends or the connection fails, handing
// each decoded frame to fn. The port is closed when ctx ends so a blocked
// Read returns.
func streamFrames(ctx context.Context, conn transport.Port, fn func(frame []byte, m rfe.Message)) error {
	framer := rfe.NewFramer()
	framer.SetMaxFrameLen(maxFrameLen)
	return streamFramesWith(ctx, conn, framer, fn)
}

// streamFramesWith is streamFrames over a caller-owned framer, so its
// counters can be read from fn.
func streamFramesWith(ctx context.Context, conn transport.Port, framer *rfe.Framer, fn func(frame []byte, m rfe.Message)) error {
	if rt, ok := conn.(transport.ReadTimeoutSetter); ok {
		if err := rt.SetReadTimeout(rfe.DefaultPollInterval); err != nil {
			logger.Debug().Err(err).Msg("Read timeout not supported")
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	decoder := rfe.NewDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		for _, frame := range framer.Push(buf[:n]) {
			fn(frame, decoder.Decode(frame))
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				logger.Info().Msg("Connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}
