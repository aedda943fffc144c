// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// commandSpec is one entry of the textual command language shared by encode,
// gen and the control command line.
type commandSpec struct {
	name  string
	args  string
	help  string
	build func(e *rfe.Encoder, a *argReader) (rfe.Command, error)
}

// argReader hands out positional arguments and keeps the first parse error.
type argReader struct {
	args []string
	pos  int
	err  error
}

func (a *argReader) next(name string) string {
	if a.err != nil {
		return ""
	}
	if a.pos >= len(a.args) {
		a.err = fmt.Errorf("missing argument <%s>", name)
		return ""
	}
	a.pos++
	return a.args[a.pos-1]
}

func (a *argReader) fail(err error) {
	if a.err == nil && err != nil {
		a.err = err
	}
}

func (a *argReader) freq(name string) uint64 {
	s := a.next(name)
	if a.err != nil {
		return 0
	}
	hz, err := parseFrequency(s)
	a.fail(err)
	return hz
}

func (a *argReader) int(name string) int {
	s := a.next(name)
	if a.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		a.fail(fmt.Errorf("invalid %s %q", name, s))
	}
	return v
}

func (a *argReader) float(name string) float64 {
	s := a.next(name)
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		a.fail(fmt.Errorf("invalid %s %q", name, s))
	}
	return v
}

func (a *argReader) duration(name string) time.Duration {
	s := a.next(name)
	if a.err != nil {
		return 0
	}
	// Bare numbers are milliseconds, as on the wire
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		a.fail(fmt.Errorf("invalid %s %q", name, s))
	}
	return d
}

func (a *argReader) onOff(name string) bool {
	s := a.next(name)
	if a.err != nil {
		return false
	}
	v, err := parseOnOff(s)
	a.fail(err)
	return v
}

func (a *argReader) att(name string) rfe.Attenuation {
	s := a.next(name)
	if a.err != nil {
		return rfe.AttenuationUnknown
	}
	v, err := parseAttenuation(s)
	a.fail(err)
	return v
}

func (a *argReader) level(name string) rfe.PowerLevel {
	s := a.next(name)
	if a.err != nil {
		return rfe.PowerLevelUnknown
	}
	v, err := parsePowerLevel(s)
	a.fail(err)
	return v
}

// done reports the first error, or an error for unused arguments.
func (a *argReader) done() error {
	if a.err != nil {
		return a.err
	}
	if a.pos < len(a.args) {
		return fmt.Errorf("unexpected argument %q", a.args[a.pos])
	}
	return nil
}

// parsed builds cmd only when every argument parsed.
func parsed(a *argReader, build func() (rfe.Command, error)) (rfe.Command, error) {
	if err := a.done(); err != nil {
		return rfe.Command{}, err
	}
	return build()
}

func fixed(cmd rfe.Command) func(*rfe.Encoder, *argReader) (rfe.Command, error) {
	return func(_ *rfe.Encoder, a *argReader) (rfe.Command, error) {
		return parsed(a, func() (rfe.Command, error) { return cmd, nil })
	}
}

var commandTable = []commandSpec{
	// Common
	{"request-config", "", "Request setup and config (C0)", fixed(rfe.NewRequestConfigCommand())},
	{"serial", "", "Request the serial number (Cn)", fixed(rfe.NewRequestSerialNumberCommand())},
	{"hold", "", "Stop streaming until the next config request", fixed(rfe.NewHoldCommand())},
	{"reboot", "", "Reboot the device", fixed(rfe.NewRebootCommand())},
	{"poweroff", "", "Switch the device off", fixed(rfe.NewPowerOffCommand())},
	{"lcd", "on|off", "Turn the LCD on or off", func(_ *rfe.Encoder, a *argReader) (rfe.Command, error) {
		on := a.onOff("state")
		return parsed(a, func() (rfe.Command, error) { return rfe.NewLcdCommand(on), nil })
	}},
	{"dump", "on|off", "Start or stop screen dumps", func(_ *rfe.Encoder, a *argReader) (rfe.Command, error) {
		on := a.onOff("state")
		return parsed(a, func() (rfe.Command, error) { return rfe.NewDumpScreenCommand(on), nil })
	}},
	{"baud", "<rate>", "Switch the device baud rate", func(_ *rfe.Encoder, a *argReader) (rfe.Command, error) {
		baud := a.int("rate")
		return parsed(a, func() (rfe.Command, error) {
			cmd, ok := rfe.NewBaudRateCommand(baud)
			if !ok {
				return rfe.Command{}, fmt.Errorf("unsupported baud rate %d", baud)
			}
			return cmd, nil
		})
	}},
	{"tracking-step", "<step>", "Advance a tracking sweep", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		step := a.int("step")
		return parsed(a, func() (rfe.Command, error) { return e.TrackingStep(step) })
	}},

	// Spectrum analyzer
	{"config", "<start> <stop> <min-dBm> <max-dBm>", "Set sweep range and amplitude scale", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, stop := a.freq("start"), a.freq("stop")
		lo, hi := a.int("min-dBm"), a.int("max-dBm")
		return parsed(a, func() (rfe.Command, error) { return e.AnalyzerConfig(start, stop, lo, hi) })
	}},
	{"center", "<center> <span> <min-dBm> <max-dBm>", "Set sweep by center and span", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		center, span := a.freq("center"), a.freq("span")
		lo, hi := a.int("min-dBm"), a.int("max-dBm")
		return parsed(a, func() (rfe.Command, error) {
			start, stop, err := rfe.CenterSpanToStartStop("set center span", center, span)
			if err != nil {
				return rfe.Command{}, err
			}
			return e.AnalyzerConfig(start, stop, lo, hi)
		})
	}},
	{"points", "<n>", "Set sweep points (plus models)", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		n := a.int("n")
		return parsed(a, func() (rfe.Command, error) {
			cmd, _, err := e.SweepPoints(n)
			return cmd, err
		})
	}},
	{"module", "main|expansion", "Activate a radio module", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		name := normalize(a.next("module"))
		return parsed(a, func() (rfe.Command, error) {
			var expansion bool
			switch name {
			case "main":
			case "expansion", "exp":
				expansion = true
			default:
				return rfe.Command{}, fmt.Errorf("unknown module %q (use main or expansion)", name)
			}
			cmd, ok, err := e.SwitchModule(expansion)
			if err == nil && !ok {
				err = fmt.Errorf("%s module already active", name)
			}
			return cmd, err
		})
	}},
	{"calc", "<mode>", "Set the trace calculator", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		s := a.next("mode")
		return parsed(a, func() (rfe.Command, error) {
			mode, err := parseCalcMode(s)
			if err != nil {
				return rfe.Command{}, err
			}
			return e.CalcMode(mode)
		})
	}},
	{"dsp", "<mode>", "Set the DSP mode", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		s := a.next("mode")
		return parsed(a, func() (rfe.Command, error) {
			mode, err := parseDspMode(s)
			if err != nil {
				return rfe.Command{}, err
			}
			return e.DspMode(mode)
		})
	}},
	{"input", "<stage>", "Set the input stage", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		s := a.next("stage")
		return parsed(a, func() (rfe.Command, error) {
			stage, err := parseInputStage(s)
			if err != nil {
				return rfe.Command{}, err
			}
			return e.InputStage(stage)
		})
	}},
	{"offset", "<dB>", "Set the amplitude offset", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		db := a.int("dB")
		return parsed(a, func() (rfe.Command, error) { return e.OffsetDB(db) })
	}},
	{"wifi", "2.4|5", "Start the Wi-Fi analyzer", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		s := a.next("band")
		return parsed(a, func() (rfe.Command, error) {
			band, err := parseWifiBand(s)
			if err != nil {
				return rfe.Command{}, err
			}
			return e.WifiAnalyzer(band)
		})
	}},
	{"stop-wifi", "", "Stop the Wi-Fi analyzer", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		return parsed(a, e.StopWifiAnalyzer)
	}},
	{"tracking", "<start> <step>", "Start analyzer tracking", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, step := a.freq("start"), a.freq("step")
		return parsed(a, func() (rfe.Command, error) { return e.AnalyzerTracking(start, step) })
	}},

	// Signal generator
	{"rf", "on|off", "Turn the generator output on or off", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		on := a.onOff("state")
		return parsed(a, func() (rfe.Command, error) { return e.RfPower(on) })
	}},
	{"cw", "<freq> <att> <level>", "Start a CW carrier (main module)", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		freq, att, level := a.freq("freq"), a.att("att"), a.level("level")
		return parsed(a, func() (rfe.Command, error) { return e.Cw(freq, att, level) })
	}},
	{"cw-exp", "<freq> <dBm>", "Start a CW carrier by power", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		freq, dbm := a.freq("freq"), a.float("dBm")
		return parsed(a, func() (rfe.Command, error) { return e.CwExp(freq, dbm) })
	}},
	{"amp-sweep", "<freq> <start-att> <start-level> <stop-att> <stop-level> <delay>", "Start an amplitude sweep (main module)", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		freq := a.freq("freq")
		startAtt, startLevel := a.att("start-att"), a.level("start-level")
		stopAtt, stopLevel := a.att("stop-att"), a.level("stop-level")
		delay := a.duration("delay")
		return parsed(a, func() (rfe.Command, error) {
			return e.AmpSweep(freq, startAtt, startLevel, stopAtt, stopLevel, delay)
		})
	}},
	{"amp-sweep-exp", "<freq> <start-dBm> <step-dB> <stop-dBm> <delay>", "Start an amplitude sweep by power", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		freq := a.freq("freq")
		start, step, stop := a.float("start-dBm"), a.float("step-dB"), a.float("stop-dBm")
		delay := a.duration("delay")
		return parsed(a, func() (rfe.Command, error) { return e.AmpSweepExp(freq, start, step, stop, delay) })
	}},
	{"freq-sweep", "<start> <att> <level> <steps> <step> <delay>", "Start a frequency sweep (main module)", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, att, level := a.freq("start"), a.att("att"), a.level("level")
		steps, step, delay := a.int("steps"), a.freq("step"), a.duration("delay")
		return parsed(a, func() (rfe.Command, error) { return e.FreqSweep(start, att, level, steps, step, delay) })
	}},
	{"freq-sweep-exp", "<start> <dBm> <steps> <step> <delay>", "Start a frequency sweep by power", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, dbm := a.freq("start"), a.float("dBm")
		steps, step, delay := a.int("steps"), a.freq("step"), a.duration("delay")
		return parsed(a, func() (rfe.Command, error) { return e.FreqSweepExp(start, dbm, steps, step, delay) })
	}},
	{"gen-tracking", "<start> <att> <level> <steps> <step>", "Start generator tracking (main module)", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, att, level := a.freq("start"), a.att("att"), a.level("level")
		steps, step := a.int("steps"), a.freq("step")
		return parsed(a, func() (rfe.Command, error) { return e.GeneratorTracking(start, att, level, steps, step) })
	}},
	{"gen-tracking-exp", "<start> <dBm> <steps> <step>", "Start generator tracking by power", func(e *rfe.Encoder, a *argReader) (rfe.Command, error) {
		start, dbm := a.freq("start"), a.float("dBm")
		steps, step := a.int("steps"), a.freq("step")
		return parsed(a, func() (rfe.Command, error) { return e.GeneratorTrackingExp(start, dbm, steps, step) })
	}},
}

// findCommand looks a command up by name.
func findCommand(name string) (commandSpec, bool) {
	for _, c := range commandTable {
		if c.name == name {
			return c, true
		}
	}
	return commandSpec{}, false
}

// buildCommand parses a command line such as "cw 2.4G off highest" and
// builds it against e.
func buildCommand(e *rfe.Encoder, fields []string) (rfe.Command, error) {
	if len(fields) == 0 {
		return rfe.Command{}, fmt.Errorf("empty command")
	}
	spec, ok := findCommand(strings.ToLower(fields[0]))
	if !ok {
		return rfe.Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd, err := spec.build(e, &argReader{args: fields[1:]})
	if err != nil {
		return rfe.Command{}, fmt.Errorf("%s: %w", spec.name, err)
	}
	return cmd, nil
}

// commandUsage lists the command language, one command per line.
func commandUsage() string {
	specs := make([]commandSpec, len(commandTable))
	copy(specs, commandTable)
	sort.Slice(specs, func(i, j int) bool { return specs[i].name < specs[j].name })

	var b strings.Builder
	for _, c := range specs {
		usage := strings.TrimSpace(c.name + " " + c.args)
		fmt.Fprintf(&b, "  %-58s %s\n", usage, c.help)
	}
	return b.String()
}
