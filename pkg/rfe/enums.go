// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import "fmt"

// Mode is the operating mode reported in the analyzer config.
type Mode uint8

const (
	ModeSpectrumAnalyzer Mode = 0
	ModeRfGenerator      Mode = 1
	ModeWifiAnalyzer     Mode = 2
	ModeAnalyzerTracking Mode = 5
	ModeRfSniffer        Mode = 6
	ModeCwTransmitter    Mode = 60
	ModeSweepFrequency   Mode = 61
	ModeSweepAmplitude   Mode = 62
	ModeGeneratorTrack   Mode = 63
	ModeUnknown          Mode = 255
)

var modeNames = map[Mode]string{
	ModeSpectrumAnalyzer: "Spectrum Analyzer",
	ModeRfGenerator:      "RF Generator",
	ModeWifiAnalyzer:     "Wi-Fi Analyzer",
	ModeAnalyzerTracking: "Analyzer Tracking",
	ModeRfSniffer:        "RF Sniffer",
	ModeCwTransmitter:    "CW Transmitter",
	ModeSweepFrequency:   "Sweep Frequency",
	ModeSweepAmplitude:   "Sweep Amplitude",
	ModeGeneratorTrack:   "Generator Tracking",
	ModeUnknown:          "Unknown",
}

func modeFromCode(code int) Mode {
	if _, ok := modeNames[Mode(code)]; ok && code >= 0 && code < 256 {
		return Mode(code)
	}
	return ModeUnknown
}

func (m Mode) String() string {
	return modeNames[modeFromCode(int(m))]
}

// CalcMode is the trace calculator mode of an analyzer.
type CalcMode uint8

const (
	CalcModeNormal CalcMode = iota
	CalcModeMax
	CalcModeAvg
	CalcModeOverwrite
	CalcModeMaxHold
	CalcModeMaxHistorical
	CalcModeUnknown CalcMode = 255
)

var calcModeNames = [...]string{"Normal", "Max", "Avg", "Overwrite", "Max Hold", "Max Historical"}

func calcModeFromCode(code int) CalcMode {
	if code >= 0 && code < len(calcModeNames) {
		return CalcMode(code)
	}
	return CalcModeUnknown
}

func (c CalcMode) String() string {
	if int(c) < len(calcModeNames) {
		return calcModeNames[c]
	}
	return "Unknown"
}

// DspMode is the digital signal processing mode of an analyzer.
type DspMode uint8

const (
	DspModeAuto DspMode = iota
	DspModeFilter
	DspModeFast
	DspModeNoImg
	DspModeUnknown DspMode = 255
)

var dspModeNames = [...]string{"Auto", "Filter", "Fast", "No Image"}

func dspModeFromCode(code int) DspMode {
	if code >= 0 && code < len(dspModeNames) {
		return DspMode(code)
	}
	return DspModeUnknown
}

func (d DspMode) String() string {
	if int(d) < len(dspModeNames) {
		return dspModeNames[d]
	}
	return "Unknown"
}

// InputStage is the analyzer front-end setting. Values are the ASCII wire
// bytes.
type InputStage byte

const (
	InputStageDirect       InputStage = '0'
	InputStageAttenuator30 InputStage = '1'
	InputStageLna25        InputStage = '2'
	InputStageAttenuator60 InputStage = '3'
	InputStageLna12        InputStage = '4'
	InputStageUnknown      InputStage = 0xFF
)

var inputStageNames = map[InputStage]string{
	InputStageDirect:       "Direct",
	InputStageAttenuator30: "Attenuator 30dB",
	InputStageLna25:        "LNA 25dB",
	InputStageAttenuator60: "Attenuator 60dB",
	InputStageLna12:        "LNA 12dB",
}

func inputStageFromByte(b byte) InputStage {
	if _, ok := inputStageNames[InputStage(b)]; ok {
		return InputStage(b)
	}
	return InputStageUnknown
}

func (i InputStage) String() string {
	if name, ok := inputStageNames[i]; ok {
		return name
	}
	return "Unknown"
}

// TrackingStatus reports whether analyzer tracking mode is running.
type TrackingStatus uint8

const (
	TrackingDisabled TrackingStatus = 0
	TrackingEnabled  TrackingStatus = 1
	TrackingUnknown  TrackingStatus = 255
)

func trackingStatusFromByte(b byte) TrackingStatus {
	switch b {
	case 0:
		return TrackingDisabled
	case 1:
		return TrackingEnabled
	default:
		return TrackingUnknown
	}
}

func (t TrackingStatus) String() string {
	switch t {
	case TrackingDisabled:
		return "Disabled"
	case TrackingEnabled:
		return "Enabled"
	default:
		return "Unknown"
	}
}

// Temperature is the generator's reported temperature band. Values are the
// ASCII wire digits.
type Temperature byte

const (
	TemperatureMinus10To0 Temperature = '0'
	Temperature0To10      Temperature = '1'
	Temperature10To20     Temperature = '2'
	Temperature20To30     Temperature = '3'
	Temperature30To40     Temperature = '4'
	Temperature40To50     Temperature = '5'
	Temperature50To60     Temperature = '6'
	TemperatureUnknown    Temperature = 0xFF
)

func temperatureFromByte(b byte) Temperature {
	if b >= '0' && b <= '6' {
		return Temperature(b)
	}
	return TemperatureUnknown
}

// RangeCelsius returns the band limits in degrees Celsius.
func (t Temperature) RangeCelsius() (low, high int, ok bool) {
	if t < TemperatureMinus10To0 || t > Temperature50To60 {
		return 0, 0, false
	}
	low = int(t-'0')*10 - 10
	return low, low + 10, true
}

func (t Temperature) String() string {
	low, high, ok := t.RangeCelsius()
	if !ok {
		return "Unknown"
	}
	return fmt.Sprintf("%d..%d °C", low, high)
}

// Attenuation is the generator's output attenuator state.
type Attenuation uint8

const (
	AttenuationOn      Attenuation = 0
	AttenuationOff     Attenuation = 1
	AttenuationUnknown Attenuation = 255
)

func attenuationFromCode(code int) Attenuation {
	switch code {
	case 0:
		return AttenuationOn
	case 1:
		return AttenuationOff
	default:
		return AttenuationUnknown
	}
}

func (a Attenuation) String() string {
	switch a {
	case AttenuationOn:
		return "On"
	case AttenuationOff:
		return "Off"
	default:
		return "Unknown"
	}
}

// PowerLevel is the generator's discrete output power level.
type PowerLevel uint8

const (
	PowerLevelLowest  PowerLevel = 0
	PowerLevelLow     PowerLevel = 1
	PowerLevelHigh    PowerLevel = 2
	PowerLevelHighest PowerLevel = 3
	PowerLevelUnknown PowerLevel = 255
)

func powerLevelFromCode(code int) PowerLevel {
	if code >= 0 && code <= 3 {
		return PowerLevel(code)
	}
	return PowerLevelUnknown
}

func (p PowerLevel) String() string {
	switch p {
	case PowerLevelLowest:
		return "Lowest"
	case PowerLevelLow:
		return "Low"
	case PowerLevelHigh:
		return "High"
	case PowerLevelHighest:
		return "Highest"
	default:
		return "Unknown"
	}
}

// RfPower is the generator's RF output state.
type RfPower uint8

const (
	RfPowerOn      RfPower = 0
	RfPowerOff     RfPower = 1
	RfPowerUnknown RfPower = 255
)

func rfPowerFromCode(code int) RfPower {
	switch code {
	case 0:
		return RfPowerOn
	case 1:
		return RfPowerOff
	default:
		return RfPowerUnknown
	}
}

func (r RfPower) String() string {
	switch r {
	case RfPowerOn:
		return "On"
	case RfPowerOff:
		return "Off"
	default:
		return "Unknown"
	}
}

// WifiBand selects the band scanned by the Wi-Fi analyzer.
type WifiBand uint8

const (
	WifiBand2_4GHz WifiBand = 1
	WifiBand5GHz   WifiBand = 2
)

func (w WifiBand) String() string {
	switch w {
	case WifiBand2_4GHz:
		return "2.4GHz"
	case WifiBand5GHz:
		return "5GHz"
	default:
		return fmt.Sprintf("WifiBand(%d)", uint8(w))
	}
}

// baudCodes maps supported baud rates to the code byte of the baud command.
var baudCodes = map[int]byte{
	1200:   '1',
	2400:   '2',
	4800:   '3',
	9600:   '4',
	19200:  '5',
	38400:  '6',
	57600:  '7',
	115200: '8',
	500000: '0',
}

// BaudCode returns the command code for a baud rate.
func BaudCode(baud int) (byte, bool) {
	code, ok := baudCodes[baud]
	return code, ok
}
