// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// parseFrequency parses a frequency in Hz. A k, M or G suffix scales the
// value, an optional trailing "Hz" is ignored: "433.92M", "2.4GHz", "100k".
func parseFrequency(s string) (uint64, error) {
	v := strings.TrimSpace(s)
	if len(v) > 2 && strings.EqualFold(v[len(v)-2:], "hz") {
		v = v[:len(v)-2]
	}

	scale := 1.0
	if v != "" {
		switch v[len(v)-1] {
		case 'k', 'K':
			scale = 1e3
		case 'M':
			scale = 1e6
		case 'g', 'G':
			scale = 1e9
		}
		if scale != 1 {
			v = v[:len(v)-1]
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	hz := math.Round(f * scale)
	if hz > math.MaxUint64/2 {
		return 0, fmt.Errorf("frequency %q out of range", s)
	}
	return uint64(hz), nil
}

// normalize lowers s and drops separators so "No Image", "no-image" and
// "noimage" compare equal.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

func parseDspMode(s string) (rfe.DspMode, error) {
	switch normalize(s) {
	case "auto", "0":
		return rfe.DspModeAuto, nil
	case "filter", "1":
		return rfe.DspModeFilter, nil
	case "fast", "2":
		return rfe.DspModeFast, nil
	case "noimage", "noimg", "3":
		return rfe.DspModeNoImg, nil
	}
	return rfe.DspModeUnknown, fmt.Errorf("unknown DSP mode %q (use auto, filter, fast or noimage)", s)
}

func parseCalcMode(s string) (rfe.CalcMode, error) {
	switch normalize(s) {
	case "normal", "0":
		return rfe.CalcModeNormal, nil
	case "max", "1":
		return rfe.CalcModeMax, nil
	case "avg", "average", "2":
		return rfe.CalcModeAvg, nil
	case "overwrite", "3":
		return rfe.CalcModeOverwrite, nil
	case "maxhold", "4":
		return rfe.CalcModeMaxHold, nil
	case "maxhistorical", "5":
		return rfe.CalcModeMaxHistorical, nil
	}
	return rfe.CalcModeUnknown, fmt.Errorf("unknown calculator mode %q", s)
}

func parseInputStage(s string) (rfe.InputStage, error) {
	switch normalize(s) {
	case "direct", "0":
		return rfe.InputStageDirect, nil
	case "att30", "attenuator30", "attenuator30db", "1":
		return rfe.InputStageAttenuator30, nil
	case "lna25", "lna25db", "2":
		return rfe.InputStageLna25, nil
	case "att60", "attenuator60", "attenuator60db", "3":
		return rfe.InputStageAttenuator60, nil
	case "lna12", "lna12db", "4":
		return rfe.InputStageLna12, nil
	}
	return rfe.InputStageUnknown, fmt.Errorf("unknown input stage %q (use direct, att30, lna25, att60 or lna12)", s)
}

func parseWifiBand(s string) (rfe.WifiBand, error) {
	switch normalize(s) {
	case "24", "24g", "24ghz", "2g":
		return rfe.WifiBand2_4GHz, nil
	case "5", "5g", "5ghz":
		return rfe.WifiBand5GHz, nil
	}
	return 0, fmt.Errorf("unknown Wi-Fi band %q (use 2.4 or 5)", s)
}

func parseAttenuation(s string) (rfe.Attenuation, error) {
	switch normalize(s) {
	case "on", "true", "0":
		return rfe.AttenuationOn, nil
	case "off", "false", "1":
		return rfe.AttenuationOff, nil
	}
	return rfe.AttenuationUnknown, fmt.Errorf("unknown attenuation %q (use on or off)", s)
}

func parsePowerLevel(s string) (rfe.PowerLevel, error) {
	switch normalize(s) {
	case "lowest", "0":
		return rfe.PowerLevelLowest, nil
	case "low", "1":
		return rfe.PowerLevelLow, nil
	case "high", "2":
		return rfe.PowerLevelHigh, nil
	case "highest", "3":
		return rfe.PowerLevelHighest, nil
	}
	return rfe.PowerLevelUnknown, fmt.Errorf("unknown power level %q (use 0-3 or lowest, low, high, highest)", s)
}

// parseOnOff parses the argument of the toggle commands.
func parseOnOff(s string) (bool, error) {
	switch normalize(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
