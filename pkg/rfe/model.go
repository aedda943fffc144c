// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import "fmt"

// Model identifies an RF Explorer radio module by its wire code.
type Model uint8

// Known models
const (
	Model433M          Model = 0
	Model868M          Model = 1
	Model915M          Model = 2
	ModelWSub1G        Model = 3
	Model24G           Model = 4
	ModelWSub3G        Model = 5
	Model6G            Model = 6
	ModelWSub1GPlus    Model = 10
	ModelProAudio      Model = 11
	Model24GPlus       Model = 12
	Model4GPlus        Model = 13
	Model6GPlus        Model = 14
	ModelMW5G3G        Model = 16
	ModelMW5G4G        Model = 17
	ModelMW5G5G        Model = 18
	ModelUnknown       Model = 19
	Model6Gen          Model = 60
	Model6GenExpansion Model = 61
	ModelNone          Model = 255
)

// Capabilities describes the frequency ranges and feature flags of a model.
type Capabilities struct {
	MinFreqHz    uint64
	MaxFreqHz    uint64
	MinSpanHz    uint64
	MaxSpanHz    uint64
	PlusTier     bool
	WifiAnalyzer bool
	Generator    bool
}

type modelInfo struct {
	name string
	caps Capabilities
}

// modelTable is indexed by wire code. Codes without a name are unknown.
var modelTable = [256]modelInfo{
	Model433M:          {"433M", Capabilities{MinFreqHz: 430_000_000, MaxFreqHz: 440_000_000, MinSpanHz: 112_000, MaxSpanHz: 10_000_000}},
	Model868M:          {"868M", Capabilities{MinFreqHz: 860_000_000, MaxFreqHz: 870_000_000, MinSpanHz: 112_000, MaxSpanHz: 10_000_000}},
	Model915M:          {"915M", Capabilities{MinFreqHz: 910_000_000, MaxFreqHz: 920_000_000, MinSpanHz: 112_000, MaxSpanHz: 10_000_000}},
	ModelWSub1G:        {"WSUB1G", Capabilities{MinFreqHz: 240_000_000, MaxFreqHz: 960_000_000, MinSpanHz: 112_000, MaxSpanHz: 300_000_000}},
	Model24G:           {"2.4G", Capabilities{MinFreqHz: 2_350_000_000, MaxFreqHz: 2_550_000_000, MinSpanHz: 2_000_000, MaxSpanHz: 85_000_000, WifiAnalyzer: true}},
	ModelWSub3G:        {"WSUB3G", Capabilities{MinFreqHz: 15_000_000, MaxFreqHz: 2_700_000_000, MinSpanHz: 112_000, MaxSpanHz: 600_000_000, WifiAnalyzer: true}},
	Model6G:            {"6G", Capabilities{MinFreqHz: 4_850_000_000, MaxFreqHz: 6_100_000_000, MinSpanHz: 2_000_000, MaxSpanHz: 600_000_000, WifiAnalyzer: true}},
	ModelWSub1GPlus:    {"WSUB1G+", Capabilities{MinFreqHz: 50_000, MaxFreqHz: 960_000_000, MinSpanHz: 100_000, MaxSpanHz: 959_950_000, PlusTier: true}},
	ModelProAudio:      {"ProAudio", Capabilities{MinFreqHz: 15_000_000, MaxFreqHz: 2_700_000_000, MinSpanHz: 112_000, MaxSpanHz: 600_000_000, PlusTier: true}},
	Model24GPlus:       {"2.4G+", Capabilities{MinFreqHz: 2_350_000_000, MaxFreqHz: 2_550_000_000, MinSpanHz: 2_000_000, MaxSpanHz: 85_000_000, PlusTier: true, WifiAnalyzer: true}},
	Model4GPlus:        {"4G+", Capabilities{MinFreqHz: 240_000_000, MaxFreqHz: 4_000_000_000, MinSpanHz: 2_000_000, MaxSpanHz: 960_000_000, PlusTier: true, WifiAnalyzer: true}},
	Model6GPlus:        {"6G+", Capabilities{MinFreqHz: 240_000_000, MaxFreqHz: 6_100_000_000, MinSpanHz: 2_000_000, MaxSpanHz: 960_000_000, PlusTier: true, WifiAnalyzer: true}},
	ModelMW5G3G:        {"MW5G3G", Capabilities{MinFreqHz: 15_000_000, MaxFreqHz: 3_000_000_000, MinSpanHz: 112_000, MaxSpanHz: 300_000_000, PlusTier: true}},
	ModelMW5G4G:        {"MW5G4G", Capabilities{MinFreqHz: 15_000_000, MaxFreqHz: 4_000_000_000, MinSpanHz: 112_000, MaxSpanHz: 300_000_000, PlusTier: true}},
	ModelMW5G5G:        {"MW5G5G", Capabilities{MinFreqHz: 15_000_000, MaxFreqHz: 5_000_000_000, MinSpanHz: 112_000, MaxSpanHz: 300_000_000, PlusTier: true}},
	Model6Gen:          {"6GEN", Capabilities{MinFreqHz: 23_400_000, MaxFreqHz: 6_000_000_000, MaxSpanHz: 6_000_000_000, Generator: true}},
	Model6GenExpansion: {"6GEN-EXP", Capabilities{MinFreqHz: 100_000, MaxFreqHz: 6_000_000_000, MaxSpanHz: 6_000_000_000, Generator: true}},
	ModelNone:          {"None", Capabilities{}},
}

// ModelFromCode maps a wire code to a Model. Codes this build does not know
// map to ModelUnknown.
func ModelFromCode(code int) Model {
	if code < 0 || code >= len(modelTable) || modelTable[code].name == "" {
		return ModelUnknown
	}
	return Model(code)
}

// Known reports whether the model is in the capability table.
func (m Model) Known() bool {
	return m != ModelUnknown && m != ModelNone && modelTable[m].name != ""
}

// Capabilities returns a copy of the model's capabilities. Unknown models
// return the empty set, which fails every range check.
func (m Model) Capabilities() Capabilities {
	if !m.Known() {
		return Capabilities{}
	}
	return modelTable[m].caps
}

// IsGenerator reports whether the model is a signal generator module.
func (m Model) IsGenerator() bool {
	return m.Capabilities().Generator
}

func (m Model) String() string {
	switch {
	case m == ModelUnknown:
		return "Unknown"
	case modelTable[m].name != "":
		return modelTable[m].name
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// ContainsFreq reports whether hz lies inside [MinFreqHz, MaxFreqHz].
func (c Capabilities) ContainsFreq(hz uint64) bool {
	return c.MaxFreqHz > 0 && hz >= c.MinFreqHz && hz <= c.MaxFreqHz
}

// ContainsSpan reports whether hz lies inside [MinSpanHz, MaxSpanHz].
func (c Capabilities) ContainsSpan(hz uint64) bool {
	return c.MaxSpanHz > 0 && hz >= c.MinSpanHz && hz <= c.MaxSpanHz
}

// RadioModule is one of the (at most two) radio modules of a device.
type RadioModule struct {
	Model     Model
	Expansion bool
}

func (r RadioModule) String() string {
	if r.Expansion {
		return fmt.Sprintf("%s (expansion)", r.Model)
	}
	return fmt.Sprintf("%s (main)", r.Model)
}
