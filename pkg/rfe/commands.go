// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Command builder functions create unvalidated commands. Device methods and
// the Encoder check parameters against the device before building them.

// Command is an outgoing command body. Bytes adds the '#' and length header.
type Command struct {
	Name string
	Body []byte
}

// Bytes returns the wire form: '#', total length, body.
func (c Command) Bytes() []byte {
	out := make([]byte, 0, len(c.Body)+2)
	out = append(out, ASCIIStart, byte(len(c.Body)+2))
	return append(out, c.Body...)
}

func (c Command) String() string {
	return fmt.Sprintf("%s %q", c.Name, c.Body)
}

func newCommand(name, body string) Command {
	return Command{Name: name, Body: []byte(body)}
}

func khz(hz uint64) uint64 {
	return uint64(math.Round(float64(hz) / 1000))
}

// ============================================================================
// Common commands
// ============================================================================

// NewRequestConfigCommand asks the device to report its setup and config.
func NewRequestConfigCommand() Command { return newCommand("RequestConfig", "C0") }

// NewRequestSerialNumberCommand asks the device for its serial number.
func NewRequestSerialNumberCommand() Command { return newCommand("RequestSerialNumber", "Cn") }

// NewLcdCommand turns the device LCD on or off.
func NewLcdCommand(on bool) Command {
	if on {
		return newCommand("EnableLcd", "L1")
	}
	return newCommand("DisableLcd", "L0")
}

// NewDumpScreenCommand starts or stops streaming of LCD captures.
func NewDumpScreenCommand(on bool) Command {
	if on {
		return newCommand("EnableDumpScreen", "D1")
	}
	return newCommand("DisableDumpScreen", "D0")
}

// NewHoldCommand stops data transmission until the next config request.
func NewHoldCommand() Command { return newCommand("Hold", "CH") }

// NewRebootCommand reboots the device.
func NewRebootCommand() Command { return newCommand("Reboot", "r") }

// NewPowerOffCommand turns the device off.
func NewPowerOffCommand() Command { return newCommand("PowerOff", "S") }

// NewBaudRateCommand switches the device serial rate. ok is false for rates
// the device does not support.
func NewBaudRateCommand(baud int) (Command, bool) {
	code, ok := BaudCode(baud)
	if !ok {
		return Command{}, false
	}
	return Command{Name: "SetBaudRate", Body: []byte{'c', code}}, true
}

// ============================================================================
// Spectrum analyzer commands
// ============================================================================

// NewAnalyzerConfigCommand sets the sweep range and amplitude scale.
func NewAnalyzerConfigCommand(startHz, stopHz uint64, minAmpDBm, maxAmpDBm int) Command {
	return newCommand("SetConfig", fmt.Sprintf("C2-F:%07d,%07d,%04d,%04d",
		khz(startHz), khz(stopHz), maxAmpDBm, minAmpDBm))
}

// NewSwitchModuleCommand activates the main or expansion radio module.
func NewSwitchModuleCommand(expansion bool) Command {
	if expansion {
		return Command{Name: "SwitchModuleExp", Body: []byte{'C', 'M', 1}}
	}
	return Command{Name: "SwitchModuleMain", Body: []byte{'C', 'M', 0}}
}

// NewAnalyzerTrackingCommand starts tracking mode from startHz in stepHz
// increments.
func NewAnalyzerTrackingCommand(startHz, stepHz uint64) Command {
	return newCommand("StartTracking", fmt.Sprintf("C3-K:%07d,%07d", khz(startHz), khz(stepHz)))
}

// NewWifiAnalyzerCommand starts the Wi-Fi analyzer on band.
func NewWifiAnalyzerCommand(band WifiBand) Command {
	return Command{Name: "StartWifiAnalyzer", Body: []byte{'C', 'W', byte(band)}}
}

// NewStopWifiAnalyzerCommand stops the Wi-Fi analyzer.
func NewStopWifiAnalyzerCommand() Command {
	return Command{Name: "StopWifiAnalyzer", Body: []byte{'C', 'W', 0}}
}

// NewCalcModeCommand sets the trace calculator mode.
func NewCalcModeCommand(mode CalcMode) Command {
	return Command{Name: "SetCalcMode", Body: []byte{'C', '+', byte(mode)}}
}

// NewTrackingStepCommand moves tracking to step n. Shared by analyzers and
// generators.
func NewTrackingStepCommand(step uint16) Command {
	body := []byte{'k', 0, 0}
	binary.BigEndian.PutUint16(body[1:], step)
	return Command{Name: "TrackingStep", Body: body}
}

// NewDspModeCommand sets the DSP mode.
func NewDspModeCommand(mode DspMode) Command {
	return Command{Name: "SetDspMode", Body: []byte{'C', 'p', byte(mode)}}
}

// NewOffsetDBCommand sets the amplitude offset.
func NewOffsetDBCommand(offset int8) Command {
	return Command{Name: "SetOffsetDB", Body: []byte{'C', 'O', byte(offset)}}
}

// NewInputStageCommand sets the front-end input stage.
func NewInputStageCommand(stage InputStage) Command {
	return Command{Name: "SetInputStage", Body: []byte{'a', byte(stage)}}
}

// NewSweepPointsCommand sets the number of sweep points. Counts up to 4096
// use the one byte encoding in multiples of 16; larger counts use the two
// byte encoding.
func NewSweepPointsCommand(points int) Command {
	if points <= MaxSweepPointsExt {
		return Command{Name: "SetSweepPointsExt", Body: []byte{'C', 'J', byte(points/sweepPointsStep - 1)}}
	}
	body := []byte{'C', 'j', 0, 0}
	binary.BigEndian.PutUint16(body[2:], uint16(points))
	return Command{Name: "SetSweepPointsLarge", Body: body}
}

// ============================================================================
// Signal generator commands
// ============================================================================

// NewRfPowerCommand turns the generator output on or off.
func NewRfPowerCommand(on bool) Command {
	if on {
		return newCommand("RfPowerOn", "CP1")
	}
	return newCommand("RfPowerOff", "CP0")
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}

// NewCwCommand starts a CW carrier on the main module.
func NewCwCommand(cwHz uint64, att Attenuation, level PowerLevel) Command {
	return newCommand("StartCw", fmt.Sprintf("C3-F:%07d,%d,%d", khz(cwHz), att, level))
}

// NewCwExpCommand starts a CW carrier on the expansion module.
func NewCwExpCommand(cwHz uint64, powerDBm float64) Command {
	return newCommand("StartCwExp", fmt.Sprintf("C5-F:%07d,%+05.1f", khz(cwHz), powerDBm))
}

// NewAmpSweepCommand starts an amplitude sweep on the main module.
func NewAmpSweepCommand(cwHz uint64, startAtt Attenuation, startLevel PowerLevel, stopAtt Attenuation, stopLevel PowerLevel, delay time.Duration) Command {
	return newCommand("StartAmpSweep", fmt.Sprintf("C3-A:%07d,%d,%d,%d,%d,%05d",
		khz(cwHz), startAtt, startLevel, stopAtt, stopLevel, ms(delay)))
}

// NewAmpSweepExpCommand starts an amplitude sweep on the expansion module.
func NewAmpSweepExpCommand(cwHz uint64, startDBm, stepDB, stopDBm float64, delay time.Duration) Command {
	return newCommand("StartAmpSweepExp", fmt.Sprintf("C5-A:%07d,%+05.1f,%+05.1f,%05.1f,%05d",
		khz(cwHz), startDBm, stepDB, stopDBm, ms(delay)))
}

// NewFreqSweepCommand starts a frequency sweep on the main module.
func NewFreqSweepCommand(startHz uint64, att Attenuation, level PowerLevel, steps uint16, stepHz uint64, delay time.Duration) Command {
	return newCommand("StartFreqSweep", fmt.Sprintf("C3-F:%07d,%d,%d,%04d,%07d,%05d",
		khz(startHz), att, level, steps, khz(stepHz), ms(delay)))
}

// NewFreqSweepExpCommand starts a frequency sweep on the expansion module.
func NewFreqSweepExpCommand(startHz uint64, powerDBm float64, steps uint16, stepHz uint64, delay time.Duration) Command {
	return newCommand("StartFreqSweepExp", fmt.Sprintf("C5-F:%07d,%+05.1f,%04d,%07d,%05d",
		khz(startHz), powerDBm, steps, khz(stepHz), ms(delay)))
}

// NewGeneratorTrackingCommand starts generator tracking on the main module.
func NewGeneratorTrackingCommand(startHz uint64, att Attenuation, level PowerLevel, steps uint16, stepHz uint64) Command {
	return newCommand("StartTracking", fmt.Sprintf("C3-T:%07d,%d,%d,%04d,%07d",
		khz(startHz), att, level, steps, khz(stepHz)))
}

// NewGeneratorTrackingExpCommand starts generator tracking on the expansion
// module.
func NewGeneratorTrackingExpCommand(startHz uint64, powerDBm float64, steps uint16, stepHz uint64) Command {
	return newCommand("StartTrackingExp", fmt.Sprintf("C5-T:%07d,%+05.1f,%04d,%07d",
		khz(startHz), powerDBm, steps, khz(stepHz)))
}
