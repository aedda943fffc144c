// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"fmt"
	"time"
)

// Category groups messages for callback registration and blocking waits.
type Category int

const (
	CategoryConfig Category = iota
	CategoryConfigAmpSweep
	CategoryConfigCw
	CategoryConfigFreqSweep
	CategorySweep
	CategoryScreenData
	CategoryIdentity
	CategoryTemperature
	CategoryDspMode
	CategoryTrackingStatus
	CategoryInputStage
	CategoryUnknown
	numCategories
)

var categoryNames = [numCategories]string{
	"Config", "ConfigAmpSweep", "ConfigCw", "ConfigFreqSweep", "Sweep",
	"ScreenData", "Identity", "Temperature", "DspMode", "TrackingStatus",
	"InputStage", "Unknown",
}

// Categories returns every message category in declaration order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category by its String name.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// Message is a decoded frame. The set of implementations is closed.
type Message interface {
	Category() Category
	isMessage()
}

// AnalyzerConfig is the spectrum analyzer configuration (#C2-F).
type AnalyzerConfig struct {
	StartHz         uint64
	StepHz          uint64
	MaxAmpDBm       int16
	MinAmpDBm       int16
	SweepPoints     uint32
	ExpansionActive bool
	Mode            Mode
	MinFreqHz       uint64
	MaxFreqHz       uint64
	MaxSpanHz       uint64

	// Reported by newer firmware only
	HasRbw      bool
	RbwHz       uint64
	HasOffset   bool
	AmpOffsetDB int16
	HasCalcMode bool
	CalcMode    CalcMode

	Timestamp time.Time
}

// StopHz returns start + step*(points-1).
func (c AnalyzerConfig) StopHz() uint64 {
	if c.SweepPoints == 0 {
		return c.StartHz
	}
	return c.StartHz + c.StepHz*uint64(c.SweepPoints-1)
}

// CenterHz returns the midpoint of start and stop.
func (c AnalyzerConfig) CenterHz() uint64 {
	return (c.StartHz + c.StopHz()) / 2
}

// SpanHz returns stop - start.
func (c AnalyzerConfig) SpanHz() uint64 {
	return c.StopHz() - c.StartHz
}

// GeneratorConfig is the signal generator configuration (#C3-* and #C5-*).
// Exp selects which group of power fields is meaningful.
type GeneratorConfig struct {
	Exp        bool
	StartHz    uint64
	CwHz       uint64
	TotalSteps uint32
	StepHz     uint64
	RfPower    RfPower
	SweepDelay time.Duration

	// Main module (#C3-*)
	Attenuation      Attenuation
	PowerLevel       PowerLevel
	SweepPowerSteps  uint16
	StartAttenuation Attenuation
	StartPowerLevel  PowerLevel
	StopAttenuation  Attenuation
	StopPowerLevel   PowerLevel

	// Expansion module (#C5-*)
	PowerDBm      float64
	StepPowerDB   float64
	StartPowerDBm float64
	StopPowerDBm  float64

	Timestamp time.Time
}

// CwConfig is the CW transmitter configuration (#C3-G and #C5-G).
type CwConfig struct {
	Exp         bool
	CwHz        uint64
	TotalSteps  uint32
	StepHz      uint64
	Attenuation Attenuation
	PowerLevel  PowerLevel
	RfPower     RfPower
	PowerDBm    float64
	Timestamp   time.Time
}

// AmpSweepConfig is the amplitude sweep configuration (#C3-A and #C5-A).
type AmpSweepConfig struct {
	Exp              bool
	CwHz             uint64
	SweepPowerSteps  uint16
	StartAttenuation Attenuation
	StartPowerLevel  PowerLevel
	StopAttenuation  Attenuation
	StopPowerLevel   PowerLevel
	RfPower          RfPower
	SweepDelay       time.Duration
	StartPowerDBm    float64
	StepPowerDB      float64
	StopPowerDBm     float64
	Timestamp        time.Time
}

// FreqSweepConfig is the frequency sweep configuration (#C3-F and #C5-F).
type FreqSweepConfig struct {
	Exp         bool
	StartHz     uint64
	TotalSteps  uint32
	StepHz      uint64
	Attenuation Attenuation
	PowerLevel  PowerLevel
	RfPower     RfPower
	SweepDelay  time.Duration
	PowerDBm    float64
	Timestamp   time.Time
}

// Sweep is one trace of amplitude samples in dBm.
type Sweep struct {
	Amplitudes []float32
	Timestamp  time.Time
}

// Clone returns a deep copy of the sweep.
func (s Sweep) Clone() Sweep {
	out := s
	out.Amplitudes = append([]float32(nil), s.Amplitudes...)
	return out
}

// Peak returns the index and amplitude of the strongest sample.
func (s Sweep) Peak() (int, float32, bool) {
	if len(s.Amplitudes) == 0 {
		return 0, 0, false
	}
	idx := 0
	for i, a := range s.Amplitudes {
		if a > s.Amplitudes[idx] {
			idx = i
		}
	}
	return idx, s.Amplitudes[idx], true
}

// Setup is the identity announced by the device (#C2-M and #C3-M).
type Setup struct {
	MainModel      Model
	ExpansionModel Model
	Firmware       string
	Generator      bool
}

// HasExpansion reports whether an expansion module is installed.
func (s Setup) HasExpansion() bool {
	return s.ExpansionModel != ModelNone
}

// SerialNumber is the device serial number (#Sn).
type SerialNumber string

// Unknown is a frame that could not be decoded. Err holds the reason.
type Unknown struct {
	Raw []byte
	Err error
}

func (AnalyzerConfig) Category() Category  { return CategoryConfig }
func (GeneratorConfig) Category() Category { return CategoryConfig }
func (CwConfig) Category() Category        { return CategoryConfigCw }
func (AmpSweepConfig) Category() Category  { return CategoryConfigAmpSweep }
func (FreqSweepConfig) Category() Category { return CategoryConfigFreqSweep }
func (Sweep) Category() Category           { return CategorySweep }
func (ScreenData) Category() Category      { return CategoryScreenData }
func (Setup) Category() Category           { return CategoryIdentity }
func (SerialNumber) Category() Category    { return CategoryIdentity }
func (Temperature) Category() Category     { return CategoryTemperature }
func (DspMode) Category() Category         { return CategoryDspMode }
func (TrackingStatus) Category() Category  { return CategoryTrackingStatus }
func (InputStage) Category() Category      { return CategoryInputStage }
func (Unknown) Category() Category         { return CategoryUnknown }

func (AnalyzerConfig) isMessage()  {}
func (GeneratorConfig) isMessage() {}
func (CwConfig) isMessage()        {}
func (AmpSweepConfig) isMessage()  {}
func (FreqSweepConfig) isMessage() {}
func (Sweep) isMessage()           {}
func (ScreenData) isMessage()      {}
func (Setup) isMessage()           {}
func (SerialNumber) isMessage()    {}
func (Temperature) isMessage()     {}
func (DspMode) isMessage()         {}
func (TrackingStatus) isMessage()  {}
func (InputStage) isMessage()      {}
func (Unknown) isMessage()         {}

// capturedAt returns the capture time of messages that carry one.
func capturedAt(m Message) (time.Time, bool) {
	switch v := m.(type) {
	case Sweep:
		return v.Timestamp, true
	case ScreenData:
		return v.Timestamp, true
	case AnalyzerConfig:
		return v.Timestamp, true
	case GeneratorConfig:
		return v.Timestamp, true
	case CwConfig:
		return v.Timestamp, true
	case AmpSweepConfig:
		return v.Timestamp, true
	case FreqSweepConfig:
		return v.Timestamp, true
	}
	return time.Time{}, false
}
