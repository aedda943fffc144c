// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"errors"
	"fmt"
)

// AnomalyType classifies something suspicious about a decoded message.
type AnomalyType int

const (
	AnomalyDecodeError AnomalyType = iota
	AnomalyUnknownPrefix
	AnomalyUnknownCode
	AnomalyInvalidRange
	AnomalyLengthMismatch
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyDecodeError:
		return "decode error"
	case AnomalyUnknownPrefix:
		return "unknown prefix"
	case AnomalyUnknownCode:
		return "unknown code"
	case AnomalyInvalidRange:
		return "invalid range"
	case AnomalyLengthMismatch:
		return "length mismatch"
	default:
		return fmt.Sprintf("AnomalyType(%d)", int(a))
	}
}

// Anomaly describes one problem found in a message.
type Anomaly struct {
	Type    AnomalyType
	Message string
}

func (a Anomaly) Error() string {
	return a.Message
}

// Inspect checks a decoded message for anomalies. An empty result means the
// message looks sane.
func Inspect(m Message) []Anomaly {
	var out []Anomaly
	add := func(t AnomalyType, format string, args ...any) {
		out = append(out, Anomaly{Type: t, Message: fmt.Sprintf(format, args...)})
	}

	switch v := m.(type) {
	case Unknown:
		if errors.Is(v.Err, ErrUnknownPrefix) {
			add(AnomalyUnknownPrefix, "unknown frame %q", truncate(v.Raw, 16))
		} else {
			add(AnomalyDecodeError, "%v", v.Err)
		}

	case AnalyzerConfig:
		if v.Mode == ModeUnknown {
			add(AnomalyUnknownCode, "unrecognized mode")
		}
		if v.HasCalcMode && v.CalcMode == CalcModeUnknown {
			add(AnomalyUnknownCode, "unrecognized calc mode")
		}
		if v.SweepPoints == 0 {
			add(AnomalyInvalidRange, "config reports zero sweep points")
		}
		if v.MinAmpDBm >= v.MaxAmpDBm {
			add(AnomalyInvalidRange, "amplitude bottom %d dBm not below top %d dBm", v.MinAmpDBm, v.MaxAmpDBm)
		}
		if v.MinFreqHz > v.MaxFreqHz {
			add(AnomalyInvalidRange, "min frequency %d Hz above max %d Hz", v.MinFreqHz, v.MaxFreqHz)
		} else if v.StartHz < v.MinFreqHz || v.StopHz() > v.MaxFreqHz {
			add(AnomalyInvalidRange, "sweep %d..%d Hz outside %d..%d Hz", v.StartHz, v.StopHz(), v.MinFreqHz, v.MaxFreqHz)
		}

	case Setup:
		if v.MainModel == ModelUnknown {
			add(AnomalyUnknownCode, "unrecognized main model")
		}
		if v.ExpansionModel == ModelUnknown {
			add(AnomalyUnknownCode, "unrecognized expansion model")
		}

	case Sweep:
		if len(v.Amplitudes) == 0 {
			add(AnomalyLengthMismatch, "empty sweep")
		}

	case GeneratorConfig:
		if v.RfPower == RfPowerUnknown {
			add(AnomalyUnknownCode, "unrecognized rf power state")
		}
		if !v.Exp && (v.Attenuation == AttenuationUnknown || v.PowerLevel == PowerLevelUnknown) {
			add(AnomalyUnknownCode, "unrecognized output setting")
		}

	case CwConfig:
		if v.RfPower == RfPowerUnknown {
			add(AnomalyUnknownCode, "unrecognized rf power state")
		}

	case FreqSweepConfig:
		if v.RfPower == RfPowerUnknown {
			add(AnomalyUnknownCode, "unrecognized rf power state")
		}

	case Temperature:
		if v == TemperatureUnknown {
			add(AnomalyUnknownCode, "unrecognized temperature band")
		}
	case DspMode:
		if v == DspModeUnknown {
			add(AnomalyUnknownCode, "unrecognized dsp mode")
		}
	case TrackingStatus:
		if v == TrackingUnknown {
			add(AnomalyUnknownCode, "unrecognized tracking status")
		}
	case InputStage:
		if v == InputStageUnknown {
			add(AnomalyUnknownCode, "unrecognized input stage")
		}
	}

	return out
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
