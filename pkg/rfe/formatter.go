// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a message into a human-readable string
func FormatMessage(m Message) string {
	header := FormatMessageType(m)
	if ts, ok := capturedAt(m); ok && !ts.IsZero() {
		header = fmt.Sprintf("[%s] %s", ts.Format("15:04:05.000"), header)
	}
	return header + "\n" + FormatBody(m)
}

// FormatMessageType returns the human-readable name for a message
func FormatMessageType(m Message) string {
	switch v := m.(type) {
	case AnalyzerConfig:
		return "ANALYZER_CONFIG"
	case GeneratorConfig:
		if v.Exp {
			return "GENERATOR_CONFIG_EXP"
		}
		return "GENERATOR_CONFIG"
	case CwConfig:
		if v.Exp {
			return "CW_CONFIG_EXP"
		}
		return "CW_CONFIG"
	case AmpSweepConfig:
		if v.Exp {
			return "AMP_SWEEP_CONFIG_EXP"
		}
		return "AMP_SWEEP_CONFIG"
	case FreqSweepConfig:
		if v.Exp {
			return "FREQ_SWEEP_CONFIG_EXP"
		}
		return "FREQ_SWEEP_CONFIG"
	case Sweep:
		return "SWEEP"
	case ScreenData:
		return "SCREEN_DATA"
	case Setup:
		if v.Generator {
			return "GENERATOR_SETUP"
		}
		return "ANALYZER_SETUP"
	case SerialNumber:
		return "SERIAL_NUMBER"
	case Temperature:
		return "TEMPERATURE"
	case DspMode:
		return "DSP_MODE"
	case TrackingStatus:
		return "TRACKING_STATUS"
	case InputStage:
		return "INPUT_STAGE"
	default:
		return "UNKNOWN"
	}
}

// FormatBody formats the fields of a message, one indented line per group
func FormatBody(m Message) string {
	switch v := m.(type) {
	case AnalyzerConfig:
		result := fmt.Sprintf("  Start: %s, Stop: %s, Center: %s, Span: %s\n",
			FormatFrequency(v.StartHz), FormatFrequency(v.StopHz()),
			FormatFrequency(v.CenterHz()), FormatFrequency(v.SpanHz()))
		result += fmt.Sprintf("  Amplitude: %d..%d dBm, Points: %d, Step: %s\n",
			v.MinAmpDBm, v.MaxAmpDBm, v.SweepPoints, FormatFrequency(v.StepHz))
		module := "Main"
		if v.ExpansionActive {
			module = "Expansion"
		}
		result += fmt.Sprintf("  Mode: %s, Module: %s, Range: %s..%s, Max Span: %s\n",
			v.Mode, module, FormatFrequency(v.MinFreqHz), FormatFrequency(v.MaxFreqHz), FormatFrequency(v.MaxSpanHz))
		var extras []string
		if v.HasRbw {
			extras = append(extras, "RBW: "+FormatFrequency(v.RbwHz))
		}
		if v.HasOffset {
			extras = append(extras, fmt.Sprintf("Offset: %d dB", v.AmpOffsetDB))
		}
		if v.HasCalcMode {
			extras = append(extras, "Calc: "+v.CalcMode.String())
		}
		if len(extras) > 0 {
			result += "  " + strings.Join(extras, ", ") + "\n"
		}
		return result

	case GeneratorConfig:
		result := fmt.Sprintf("  Start: %s, CW: %s, Steps: %d x %s\n",
			FormatFrequency(v.StartHz), FormatFrequency(v.CwHz), v.TotalSteps, FormatFrequency(v.StepHz))
		if v.Exp {
			result += fmt.Sprintf("  Power: %.1f dBm, Sweep: %.1f..%.1f dBm step %.1f dB\n",
				v.PowerDBm, v.StartPowerDBm, v.StopPowerDBm, v.StepPowerDB)
		} else {
			result += fmt.Sprintf("  Output: %s, Sweep: %s..%s in %d steps\n",
				formatOutput(v.Attenuation, v.PowerLevel),
				formatOutput(v.StartAttenuation, v.StartPowerLevel),
				formatOutput(v.StopAttenuation, v.StopPowerLevel), v.SweepPowerSteps)
		}
		result += fmt.Sprintf("  RF: %s, Delay: %s\n", v.RfPower, v.SweepDelay)
		return result

	case CwConfig:
		output := formatOutput(v.Attenuation, v.PowerLevel)
		if v.Exp {
			output = fmt.Sprintf("%.1f dBm", v.PowerDBm)
		}
		return fmt.Sprintf("  CW: %s, Output: %s, RF: %s, Steps: %d x %s\n",
			FormatFrequency(v.CwHz), output, v.RfPower, v.TotalSteps, FormatFrequency(v.StepHz))

	case AmpSweepConfig:
		if v.Exp {
			return fmt.Sprintf("  CW: %s, Sweep: %.1f..%.1f dBm step %.1f dB, RF: %s, Delay: %s\n",
				FormatFrequency(v.CwHz), v.StartPowerDBm, v.StopPowerDBm, v.StepPowerDB, v.RfPower, v.SweepDelay)
		}
		return fmt.Sprintf("  CW: %s, Sweep: %s..%s in %d steps, RF: %s, Delay: %s\n",
			FormatFrequency(v.CwHz),
			formatOutput(v.StartAttenuation, v.StartPowerLevel),
			formatOutput(v.StopAttenuation, v.StopPowerLevel),
			v.SweepPowerSteps, v.RfPower, v.SweepDelay)

	case FreqSweepConfig:
		output := formatOutput(v.Attenuation, v.PowerLevel)
		if v.Exp {
			output = fmt.Sprintf("%.1f dBm", v.PowerDBm)
		}
		return fmt.Sprintf("  Start: %s, Steps: %d x %s, Output: %s, RF: %s, Delay: %s\n",
			FormatFrequency(v.StartHz), v.TotalSteps, FormatFrequency(v.StepHz), output, v.RfPower, v.SweepDelay)

	case Sweep:
		idx, peak, ok := v.Peak()
		if !ok {
			return "  (no samples)\n"
		}
		return fmt.Sprintf("  Samples: %d, Peak: %.1f dBm at #%d\n", len(v.Amplitudes), peak, idx)

	case ScreenData:
		lit := 0
		for _, b := range v.Bytes() {
			for ; b != 0; b &= b - 1 {
				lit++
			}
		}
		return fmt.Sprintf("  %dx%d pixels, %d lit\n", ScreenWidth, ScreenHeight, lit)

	case Setup:
		expansion := "none"
		if v.HasExpansion() {
			expansion = v.ExpansionModel.String()
		}
		return fmt.Sprintf("  Model: %s, Expansion: %s, Firmware: %s\n", v.MainModel, expansion, v.Firmware)

	case SerialNumber:
		return fmt.Sprintf("  Serial: %s\n", string(v))

	case Temperature:
		return fmt.Sprintf("  Range: %s\n", v)

	case DspMode:
		return fmt.Sprintf("  Mode: %s (%d)\n", v, uint8(v))

	case TrackingStatus:
		return fmt.Sprintf("  Status: %s\n", v)

	case InputStage:
		return fmt.Sprintf("  Stage: %s\n", v)

	case Unknown:
		return fmt.Sprintf("  Error: %v\n  Raw: %q\n", v.Err, truncate(v.Raw, 64))

	default:
		return "  (no payload)\n"
	}
}

func formatOutput(att Attenuation, level PowerLevel) string {
	return fmt.Sprintf("%s/%s", att, level)
}

// FormatFrequency renders a frequency with the largest fitting unit
func FormatFrequency(hz uint64) string {
	switch {
	case hz >= 1_000_000_000:
		return trimZeros(fmt.Sprintf("%.6f", float64(hz)/1e9)) + " GHz"
	case hz >= 1_000_000:
		return trimZeros(fmt.Sprintf("%.6f", float64(hz)/1e6)) + " MHz"
	case hz >= 1_000:
		return trimZeros(fmt.Sprintf("%.3f", float64(hz)/1e3)) + " kHz"
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatUptime renders a connection age as "1 hour and 3 minutes"
func FormatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	var parts []string
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	} else if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + last
}
