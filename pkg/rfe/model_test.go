// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import "testing"

func TestModel_CapabilityRangesOrdered(t *testing.T) {
	for code := 0; code < 256; code++ {
		m := Model(code)
		caps := m.Capabilities()
		if caps.MinFreqHz > caps.MaxFreqHz {
			t.Errorf("%v: MinFreqHz %d > MaxFreqHz %d", m, caps.MinFreqHz, caps.MaxFreqHz)
		}
		if caps.MinSpanHz > caps.MaxSpanHz {
			t.Errorf("%v: MinSpanHz %d > MaxSpanHz %d", m, caps.MinSpanHz, caps.MaxSpanHz)
		}
	}
}

func TestModelFromCode(t *testing.T) {
	tests := []struct {
		code int
		want Model
	}{
		{0, Model433M},
		{6, Model6G},
		{14, Model6GPlus},
		{60, Model6Gen},
		{255, ModelNone},
		{7, ModelUnknown},
		{19, ModelUnknown},
		{99, ModelUnknown},
		{-1, ModelUnknown},
		{300, ModelUnknown},
	}
	for _, tt := range tests {
		if got := ModelFromCode(tt.code); got != tt.want {
			t.Errorf("ModelFromCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestModel_UnknownHasNoCapabilities(t *testing.T) {
	for _, m := range []Model{ModelUnknown, ModelNone, Model(42)} {
		caps := m.Capabilities()
		if caps.ContainsFreq(caps.MinFreqHz) {
			t.Errorf("%v: ContainsFreq accepted a frequency, want empty capabilities", m)
		}
		if caps.ContainsSpan(1_000_000) {
			t.Errorf("%v: ContainsSpan accepted a span, want empty capabilities", m)
		}
		if m.Known() {
			t.Errorf("%v.Known() = true, want false", m)
		}
	}
}

func TestModel_Flags(t *testing.T) {
	tests := []struct {
		model     Model
		plus      bool
		wifi      bool
		generator bool
	}{
		{ModelWSub1G, false, false, false},
		{Model6G, false, true, false},
		{ModelWSub1GPlus, true, false, false},
		{Model6GPlus, true, true, false},
		{Model6Gen, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.model.String(), func(t *testing.T) {
			caps := tt.model.Capabilities()
			if caps.PlusTier != tt.plus {
				t.Errorf("PlusTier = %v, want %v", caps.PlusTier, tt.plus)
			}
			if caps.WifiAnalyzer != tt.wifi {
				t.Errorf("WifiAnalyzer = %v, want %v", caps.WifiAnalyzer, tt.wifi)
			}
			if tt.model.IsGenerator() != tt.generator {
				t.Errorf("IsGenerator() = %v, want %v", tt.model.IsGenerator(), tt.generator)
			}
		})
	}
}

func TestCapabilities_ContainsFreqInclusive(t *testing.T) {
	caps := Model6G.Capabilities()
	tests := []struct {
		hz   uint64
		want bool
	}{
		{caps.MinFreqHz - 1, false},
		{caps.MinFreqHz, true},
		{caps.MaxFreqHz, true},
		{caps.MaxFreqHz + 1, false},
	}
	for _, tt := range tests {
		if got := caps.ContainsFreq(tt.hz); got != tt.want {
			t.Errorf("ContainsFreq(%d) = %v, want %v", tt.hz, got, tt.want)
		}
	}
}

func TestModel_String(t *testing.T) {
	tests := []struct {
		model Model
		want  string
	}{
		{Model24GPlus, "2.4G+"},
		{ModelUnknown, "Unknown"},
		{Model(42), "Unknown(42)"},
		{ModelNone, "None"},
	}
	for _, tt := range tests {
		if got := tt.model.String(); got != tt.want {
			t.Errorf("Model(%d).String() = %q, want %q", uint8(tt.model), got, tt.want)
		}
	}
}
