// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rfestat - RF Explorer protocol tool
//
// A CLI tool for discovering, configuring and monitoring RF Explorer
// spectrum analyzers and signal generators.

package main

import (
	"os"

	"github.com/Thermoquad/rfestat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
