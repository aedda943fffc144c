// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// ============================================================
// Frequency Tests
// ============================================================

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"2400000000", 2_400_000_000, false},
		{"2.4G", 2_400_000_000, false},
		{"2.4GHz", 2_400_000_000, false},
		{"433.92M", 433_920_000, false},
		{"433.92MHz", 433_920_000, false},
		{"100k", 100_000, false},
		{"100kHz", 100_000, false},
		{" 15M ", 15_000_000, false},
		{"5Hz", 5, false},
		{"", 0, true},
		{"Hz", 0, true},
		{"-1M", 0, true},
		{"abc", 0, true},
		{"1.5m", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFrequency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFrequency(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

// ============================================================
// Enum Parser Tests
// ============================================================

func TestParseDspMode(t *testing.T) {
	tests := []struct {
		in   string
		want rfe.DspMode
	}{
		{"auto", rfe.DspModeAuto},
		{"Filter", rfe.DspModeFilter},
		{"fast", rfe.DspModeFast},
		{"No Image", rfe.DspModeNoImg},
		{"no-img", rfe.DspModeNoImg},
		{"3", rfe.DspModeNoImg},
	}
	for _, tt := range tests {
		got, err := parseDspMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseDspMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseDspMode("slow"); err == nil {
		t.Error("parseDspMode(slow) should fail")
	}
}

func TestParseCalcMode(t *testing.T) {
	tests := []struct {
		in   string
		want rfe.CalcMode
	}{
		{"normal", rfe.CalcModeNormal},
		{"max", rfe.CalcModeMax},
		{"average", rfe.CalcModeAvg},
		{"overwrite", rfe.CalcModeOverwrite},
		{"max-hold", rfe.CalcModeMaxHold},
		{"Max Historical", rfe.CalcModeMaxHistorical},
	}
	for _, tt := range tests {
		got, err := parseCalcMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseCalcMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseCalcMode("6"); err == nil {
		t.Error("parseCalcMode(6) should fail")
	}
}

func TestParseInputStage(t *testing.T) {
	tests := []struct {
		in   string
		want rfe.InputStage
	}{
		{"direct", rfe.InputStageDirect},
		{"att30", rfe.InputStageAttenuator30},
		{"LNA 25dB", rfe.InputStageLna25},
		{"attenuator_60", rfe.InputStageAttenuator60},
		{"4", rfe.InputStageLna12},
	}
	for _, tt := range tests {
		got, err := parseInputStage(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseInputStage(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseInputStage("lna40"); err == nil {
		t.Error("parseInputStage(lna40) should fail")
	}
}

func TestParseWifiBand(t *testing.T) {
	for _, in := range []string{"2.4", "2.4GHz", "2.4g"} {
		if got, err := parseWifiBand(in); err != nil || got != rfe.WifiBand2_4GHz {
			t.Errorf("parseWifiBand(%q) = %v, %v, want 2.4GHz", in, got, err)
		}
	}
	if got, err := parseWifiBand("5GHz"); err != nil || got != rfe.WifiBand5GHz {
		t.Errorf("parseWifiBand(5GHz) = %v, %v, want 5GHz", got, err)
	}
	if _, err := parseWifiBand("6"); err == nil {
		t.Error("parseWifiBand(6) should fail")
	}
}

func TestParseGeneratorLevels(t *testing.T) {
	if got, err := parseAttenuation("on"); err != nil || got != rfe.AttenuationOn {
		t.Errorf("parseAttenuation(on) = %v, %v, want On", got, err)
	}
	if got, err := parseAttenuation("OFF"); err != nil || got != rfe.AttenuationOff {
		t.Errorf("parseAttenuation(OFF) = %v, %v, want Off", got, err)
	}
	if _, err := parseAttenuation("half"); err == nil {
		t.Error("parseAttenuation(half) should fail")
	}

	if got, err := parsePowerLevel("highest"); err != nil || got != rfe.PowerLevelHighest {
		t.Errorf("parsePowerLevel(highest) = %v, %v, want Highest", got, err)
	}
	if got, err := parsePowerLevel("1"); err != nil || got != rfe.PowerLevelLow {
		t.Errorf("parsePowerLevel(1) = %v, %v, want Low", got, err)
	}
	if _, err := parsePowerLevel("4"); err == nil {
		t.Error("parsePowerLevel(4) should fail")
	}
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ENABLE", true, false},
		{"off", false, false},
		{"0", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := parseOnOff(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseOnOff(%q) = %v, %v, want %v (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
