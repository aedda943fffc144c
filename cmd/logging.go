// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger is the engine logger shared by all commands.
var logger = zerolog.Nop()

// newLogger builds a console logger tagged with the app name. Logs go to
// stderr so they never mix with command output on stdout.
func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "rfestat").Logger()
}

func initLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", level)
	}
	logger = newLogger(os.Stderr, lvl)
	log.Logger = logger
	return nil
}
