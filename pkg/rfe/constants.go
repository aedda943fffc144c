// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rfe provides a Go implementation of the RF Explorer serial protocol.
//
// RF Explorer spectrum analyzers and signal generators speak a mixed
// ASCII/binary protocol over a CP210x USB serial bridge. This package provides
// stream framing, message decoding, device state tracking, command encoding
// with capability validation, and callback/blocking-wait event delivery.
package rfe

import "time"

// Frame start bytes
const (
	ASCIIStart  = '#'
	BinaryStart = '$'
	DspStart    = 'D'
)

// Incoming message prefixes
const (
	PrefixAnalyzerConfig     = "#C2-F:"
	PrefixAnalyzerSetup      = "#C2-M:"
	PrefixGeneratorSetup     = "#C3-M:"
	PrefixGeneratorConfig    = "#C3-*:"
	PrefixGeneratorConfigExp = "#C5-*:"
	PrefixCwConfig           = "#C3-G:"
	PrefixCwConfigExp        = "#C5-G:"
	PrefixAmpSweepConfig     = "#C3-A:"
	PrefixAmpSweepConfigExp  = "#C5-A:"
	PrefixFreqSweepConfig    = "#C3-F:"
	PrefixFreqSweepConfigExp = "#C5-F:"
	PrefixSerialNumber       = "#Sn"
	PrefixTemperature        = "#T:"
	PrefixDspMode            = "DSP:"
	PrefixInputStage         = "#a"
	PrefixTrackingStatus     = "#K"
	PrefixSweepStandard      = "$S"
	PrefixSweepExt           = "$s"
	PrefixSweepLarge         = "$z"
	PrefixScreenData         = "$D"
)

// Size limits
const (
	DefaultMaxFrameLen = 131072
	ScreenWidth        = 128
	ScreenHeight       = 64
	ScreenRows         = ScreenHeight / 8
	ScreenDataLen      = ScreenRows * ScreenWidth
	SerialNumberLen    = 16
)

// Sweep point limits
const (
	MinSweepPoints    = 112
	MaxSweepPointsExt = 4096
	MaxSweepPoints    = 65535
	sweepPointsStep   = 16
)

// Amplitude limits (dBm)
const (
	MinAmpDBm = -120
	MaxAmpDBm = 35
)

// Generator limits
const (
	MaxGeneratorSteps = 9999
	MaxStepDelay      = 65535 * time.Millisecond
	MinExpPowerDBm    = -40.0
	MinExpansionDBm   = -70.0
	MaxExpPowerDBm    = 10.0
)

// Default timeouts
const (
	DefaultSweepTimeout      = 2 * time.Second
	DefaultCommandTimeout    = 2 * time.Second
	DefaultHandshakeTimeout  = 3 * time.Second
	DefaultScreenDataTimeout = 2 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
)

// USB identity of the CP210x bridge used by every RF Explorer
const (
	USBVendorID  = 0x10C4
	USBProductID = 0xEA60
)

// DefaultBaudRates lists the rates tried in order when opening a port.
var DefaultBaudRates = []int{500000, 2400}

// eeotMarker is the early-end-of-transmission sequence that aborts a partial
// binary record.
var eeotMarker = []byte{0xFF, 0xFE, 0xFF, 0xFE, 0x00}
