// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

const (
	setup6G          = "#C2-M:006,255,01.12B26"
	setup6GPlus      = "#C2-M:014,255,01.12B26"
	setupWithExp     = "#C2-M:003,004,01.12"
	setupGenerator   = "#C3-M:060,255,01.15"
	setupGeneratorEx = "#C3-M:060,061,01.15"
	configWSub1GMain = "#C2-F:0430000,0089285,-010,-120,0112,0,000,0240000,0960000,0300000"
)

func encoderFor(t *testing.T, frames ...string) *Encoder {
	t.Helper()
	s := NewState()
	applyFrames(t, s, frames...)
	return NewEncoder(s)
}

// ============================================================
// Wire Form
// ============================================================

func TestCommand_Bytes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"request config", NewRequestConfigCommand(), []byte("#\x04C0")},
		{"serial number", NewRequestSerialNumberCommand(), []byte("#\x04Cn")},
		{"hold", NewHoldCommand(), []byte("#\x04CH")},
		{"reboot", NewRebootCommand(), []byte("#\x03r")},
		{"power off", NewPowerOffCommand(), []byte("#\x03S")},
		{"lcd on", NewLcdCommand(true), []byte("#\x04L1")},
		{"dump screen off", NewDumpScreenCommand(false), []byte("#\x04D0")},
		{"switch to expansion", NewSwitchModuleCommand(true), []byte{'#', 5, 'C', 'M', 1}},
		{"tracking step", NewTrackingStepCommand(0x1234), []byte{'#', 5, 'k', 0x12, 0x34}},
		{"negative offset", NewOffsetDBCommand(-10), []byte{'#', 5, 'C', 'O', 0xF6}},
		{"input stage", NewInputStageCommand(InputStageLna25), []byte{'#', 4, 'a', '2'}},
		{"dsp mode", NewDspModeCommand(DspModeFast), []byte{'#', 5, 'C', 'p', 2}},
		{"calc mode", NewCalcModeCommand(CalcModeMax), []byte{'#', 5, 'C', '+', 1}},
		{"rf power on", NewRfPowerCommand(true), []byte("#\x05CP1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommand_LengthByteCountsHeader(t *testing.T) {
	cmd := NewAnalyzerConfigCommand(5_000_000_000, 5_100_000_000, -100, -10)
	wire := cmd.Bytes()
	if int(wire[1]) != len(wire) {
		t.Errorf("length byte = %d, want %d", wire[1], len(wire))
	}
	if got, want := string(wire[2:]), "C2-F:5000000,5100000,-010,-100"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestNewBaudRateCommand(t *testing.T) {
	cmd, ok := NewBaudRateCommand(500000)
	if !ok || string(cmd.Body) != "c0" {
		t.Errorf("NewBaudRateCommand(500000) = %q, %v, want \"c0\", true", cmd.Body, ok)
	}
	cmd, ok = NewBaudRateCommand(115200)
	if !ok || string(cmd.Body) != "c8" {
		t.Errorf("NewBaudRateCommand(115200) = %q, %v, want \"c8\", true", cmd.Body, ok)
	}
	if _, ok := NewBaudRateCommand(12345); ok {
		t.Error("NewBaudRateCommand(12345) ok = true, want false")
	}
}

func TestNewSweepPointsCommand(t *testing.T) {
	tests := []struct {
		points int
		want   []byte
	}{
		{112, []byte{'C', 'J', 6}},
		{4096, []byte{'C', 'J', 255}},
		{4112, []byte{'C', 'j', 0x10, 0x10}},
		{65535, []byte{'C', 'j', 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		if got := NewSweepPointsCommand(tt.points).Body; !bytes.Equal(got, tt.want) {
			t.Errorf("NewSweepPointsCommand(%d) = %v, want %v", tt.points, got, tt.want)
		}
	}
}

func TestExpectedSweepPoints(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 112},
		{111, 112},
		{112, 112},
		{120, 112},
		{1000, 992},
		{5000, 4992},
	}
	for _, tt := range tests {
		if got := ExpectedSweepPoints(tt.n); got != tt.want {
			t.Errorf("ExpectedSweepPoints(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestCenterSpanToStartStop(t *testing.T) {
	start, stop, err := CenterSpanToStartStop("test", 2_450_000_000, 20_000_000)
	if err != nil {
		t.Fatalf("CenterSpanToStartStop() error = %v", err)
	}
	if start != 2_440_000_000 || stop != 2_460_000_000 {
		t.Errorf("CenterSpanToStartStop() = %d, %d, want 2440000000, 2460000000", start, stop)
	}
	if _, _, err := CenterSpanToStartStop("test", 1_000, 10_000); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("span below 0 Hz error = %v, want ErrInvalidInput", err)
	}
}

// ============================================================
// Analyzer Validation
// ============================================================

func TestEncoder_AnalyzerConfig(t *testing.T) {
	e := encoderFor(t, setup6G, testConfigLine)

	tests := []struct {
		name     string
		start    uint64
		stop     uint64
		min, max int
		wantErr  error
	}{
		{"valid", 5_000_000_000, 5_100_000_000, -100, -10, nil},
		{"range at limits", 4_850_000_000, 5_450_000_000, -120, 35, nil},
		{"stop above max", 5_000_000_000, 6_200_000_000, -100, -10, ErrInvalidInput},
		{"start below min", 4_000_000_000, 5_000_000_000, -100, -10, ErrInvalidInput},
		{"start not below stop", 5_000_000_000, 5_000_000_000, -100, -10, ErrInvalidInput},
		{"span too narrow", 5_000_000_000, 5_001_000_000, -100, -10, ErrInvalidInput},
		{"span too wide", 4_900_000_000, 6_000_000_000, -100, -10, ErrInvalidInput},
		{"amps inverted", 5_000_000_000, 5_100_000_000, -10, -100, ErrInvalidInput},
		{"amp too low", 5_000_000_000, 5_100_000_000, -121, -10, ErrInvalidInput},
		{"amp too high", 5_000_000_000, 5_100_000_000, -100, 36, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := e.AnalyzerConfig(tt.start, tt.stop, tt.min, tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("AnalyzerConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AnalyzerConfig() error = %v", err)
			}
			if cmd.Name != "SetConfig" {
				t.Errorf("Name = %q, want SetConfig", cmd.Name)
			}
		})
	}
}

func TestEncoder_RequiresSetup(t *testing.T) {
	e := NewEncoder(NewState())
	if _, err := e.AnalyzerConfig(5_000_000_000, 5_100_000_000, -100, -10); !errors.Is(err, ErrNoData) {
		t.Errorf("AnalyzerConfig() error = %v, want ErrNoData", err)
	}
	if _, err := e.RfPower(true); !errors.Is(err, ErrNoData) {
		t.Errorf("RfPower() error = %v, want ErrNoData", err)
	}
}

func TestEncoder_WrongDeviceKind(t *testing.T) {
	analyzer := encoderFor(t, setup6G, testConfigLine)
	generator := encoderFor(t, setupGenerator)

	if _, err := analyzer.RfPower(true); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("analyzer RfPower() error = %v, want ErrInvalidOperation", err)
	}
	if _, err := analyzer.Cw(1_000_000_000, AttenuationOff, PowerLevelLow); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("analyzer Cw() error = %v, want ErrInvalidOperation", err)
	}
	if _, err := generator.DspMode(DspModeFast); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("generator DspMode() error = %v, want ErrInvalidOperation", err)
	}
	if _, err := generator.AnalyzerConfig(5_000_000_000, 5_100_000_000, -100, -10); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("generator AnalyzerConfig() error = %v, want ErrInvalidOperation", err)
	}
	if _, err := generator.TrackingStep(3); err != nil {
		t.Errorf("generator TrackingStep() error = %v, want nil", err)
	}
}

func TestEncoder_SweepPoints(t *testing.T) {
	if _, _, err := encoderFor(t, setup6G, testConfigLine).SweepPoints(1000); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("SweepPoints() on non-plus model error = %v, want ErrInvalidOperation", err)
	}

	e := encoderFor(t, setup6GPlus, testConfigLine)
	tests := []struct {
		points   int
		expected int
		wantErr  error
	}{
		{50, 112, nil},
		{1000, 992, nil},
		{5000, 4992, nil},
		{0, 0, ErrInvalidInput},
		{70000, 0, ErrInvalidInput},
	}
	for _, tt := range tests {
		_, expected, err := e.SweepPoints(tt.points)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("SweepPoints(%d) error = %v, want %v", tt.points, err, tt.wantErr)
			continue
		}
		if expected != tt.expected {
			t.Errorf("SweepPoints(%d) expected = %d, want %d", tt.points, expected, tt.expected)
		}
	}
}

func TestEncoder_SwitchModule(t *testing.T) {
	e := encoderFor(t, setupWithExp, configWSub1GMain)

	if _, ok, err := e.SwitchModule(false); err != nil || ok {
		t.Errorf("SwitchModule(main) = ok %v, err %v, want no-op", ok, err)
	}
	cmd, ok, err := e.SwitchModule(true)
	if err != nil || !ok {
		t.Fatalf("SwitchModule(exp) = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(cmd.Body, []byte{'C', 'M', 1}) {
		t.Errorf("SwitchModule(exp) body = %v, want CM 1", cmd.Body)
	}

	noExp := encoderFor(t, setup6G, testConfigLine)
	if _, _, err := noExp.SwitchModule(true); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("SwitchModule(exp) without expansion error = %v, want ErrInvalidOperation", err)
	}
}

func TestEncoder_WifiAnalyzer(t *testing.T) {
	if _, err := encoderFor(t, setupWithExp, configWSub1GMain).WifiAnalyzer(WifiBand2_4GHz); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("WifiAnalyzer() on WSUB1G error = %v, want ErrInvalidOperation", err)
	}

	e := encoderFor(t, setup6G, testConfigLine)
	cmd, err := e.WifiAnalyzer(WifiBand5GHz)
	if err != nil {
		t.Fatalf("WifiAnalyzer() error = %v", err)
	}
	if !bytes.Equal(cmd.Body, []byte{'C', 'W', 2}) {
		t.Errorf("WifiAnalyzer() body = %v, want CW 2", cmd.Body)
	}
	if _, err := e.WifiAnalyzer(WifiBand(7)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("WifiAnalyzer(7) error = %v, want ErrInvalidInput", err)
	}
}

func TestEncoder_AnalyzerSettings(t *testing.T) {
	e := encoderFor(t, setup6G, testConfigLine)

	tests := []struct {
		name    string
		build   func() (Command, error)
		wantErr error
	}{
		{"offset in range", func() (Command, error) { return e.OffsetDB(-128) }, nil},
		{"offset out of range", func() (Command, error) { return e.OffsetDB(200) }, ErrInvalidInput},
		{"dsp mode", func() (Command, error) { return e.DspMode(DspModeNoImg) }, nil},
		{"unknown dsp mode", func() (Command, error) { return e.DspMode(DspModeUnknown) }, ErrInvalidInput},
		{"input stage", func() (Command, error) { return e.InputStage(InputStageAttenuator60) }, nil},
		{"unknown input stage", func() (Command, error) { return e.InputStage(InputStage('9')) }, ErrInvalidInput},
		{"calc mode", func() (Command, error) { return e.CalcMode(CalcModeMaxHold) }, nil},
		{"unknown calc mode", func() (Command, error) { return e.CalcMode(CalcModeUnknown) }, ErrInvalidInput},
		{"tracking", func() (Command, error) { return e.AnalyzerTracking(5_000_000_000, 100_000) }, nil},
		{"tracking zero step", func() (Command, error) { return e.AnalyzerTracking(5_000_000_000, 0) }, ErrInvalidInput},
		{"tracking out of range", func() (Command, error) { return e.AnalyzerTracking(1_000_000_000, 100_000) }, ErrInvalidInput},
		{"tracking step too large", func() (Command, error) { return e.TrackingStep(70000) }, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ============================================================
// Generator Validation
// ============================================================

func TestNearestPowerSetting(t *testing.T) {
	tests := []struct {
		dbm       float64
		wantAtt   Attenuation
		wantLevel PowerLevel
		wantDBm   float64
	}{
		{-40, AttenuationOn, PowerLevelLowest, -40},
		{-50, AttenuationOn, PowerLevelLowest, -40},
		{-32, AttenuationOn, PowerLevelHighest, -31},
		{-8, AttenuationOff, PowerLevelLow, -7},
		{5, AttenuationOff, PowerLevelHighest, -1},
		// Halfway between -31 and -10
		{-20.5, AttenuationOff, PowerLevelLowest, -10},
	}
	for _, tt := range tests {
		att, level, dbm := NearestPowerSetting(tt.dbm)
		if att != tt.wantAtt || level != tt.wantLevel || dbm != tt.wantDBm {
			t.Errorf("NearestPowerSetting(%v) = %v/%v/%v, want %v/%v/%v",
				tt.dbm, att, level, dbm, tt.wantAtt, tt.wantLevel, tt.wantDBm)
		}
	}
}

func TestRoundTenth(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0.25, 0.3},
		{-0.25, -0.3},
		{-12.04, -12.0},
		{7.0, 7.0},
	}
	for _, tt := range tests {
		if got := RoundTenth(tt.in); got != tt.want {
			t.Errorf("RoundTenth(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEncoder_CwExp(t *testing.T) {
	t.Run("with expansion", func(t *testing.T) {
		e := encoderFor(t, setupGeneratorEx)
		cmd, err := e.CwExp(1_000_000_000, -12.04)
		if err != nil {
			t.Fatalf("CwExp() error = %v", err)
		}
		if got, want := string(cmd.Body), "C5-F:1000000,-12.0"; got != want {
			t.Errorf("CwExp() body = %q, want %q", got, want)
		}
		if _, err := e.CwExp(1_000_000_000, -65); err != nil {
			t.Errorf("CwExp(-65 dBm) error = %v, want nil", err)
		}
		if _, err := e.CwExp(1_000_000_000, -75); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CwExp(-75 dBm) error = %v, want ErrInvalidInput", err)
		}
		if _, err := e.CwExp(50_000, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CwExp(50 kHz) error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("main module only", func(t *testing.T) {
		e := encoderFor(t, setupGenerator)
		cmd, err := e.CwExp(1_000_000_000, -8)
		if err != nil {
			t.Fatalf("CwExp() error = %v", err)
		}
		if got, want := string(cmd.Body), "C3-F:1000000,1,1"; got != want {
			t.Errorf("CwExp() body = %q, want %q", got, want)
		}
		if _, err := e.CwExp(1_000_000_000, -50); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CwExp(-50 dBm) error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestEncoder_AmpSweepExp(t *testing.T) {
	e := encoderFor(t, setupGeneratorEx)

	cmd, err := e.AmpSweepExp(2_400_000_000, -30, 0.5, -10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("AmpSweepExp() error = %v", err)
	}
	if got, want := string(cmd.Body), "C5-A:2400000,-30.0,+00.5,-10.0,00100"; got != want {
		t.Errorf("AmpSweepExp() body = %q, want %q", got, want)
	}

	tests := []struct {
		name              string
		start, step, stop float64
		delay             time.Duration
	}{
		{"start above stop", -10, 1, -30, 0},
		{"zero step", -30, 0, -10, 0},
		{"step wider than range", -30, 25, -10, 0},
		{"delay too long", -30, 1, -10, 70 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.AmpSweepExp(2_400_000_000, tt.start, tt.step, tt.stop, tt.delay); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("AmpSweepExp() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEncoder_FreqSweep(t *testing.T) {
	e := encoderFor(t, setupGenerator)

	cmd, err := e.FreqSweep(1_000_000_000, AttenuationOff, PowerLevelHigh, 100, 1_000_000, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("FreqSweep() error = %v", err)
	}
	if got, want := string(cmd.Body), "C3-F:1000000,1,2,0100,0001000,00050"; got != want {
		t.Errorf("FreqSweep() body = %q, want %q", got, want)
	}

	if _, err := e.FreqSweep(1_000_000_000, AttenuationOff, PowerLevelHigh, 0, 1_000_000, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("FreqSweep(0 steps) error = %v, want ErrInvalidInput", err)
	}
	if _, err := e.FreqSweep(5_900_000_000, AttenuationOff, PowerLevelHigh, 200, 1_000_000, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("FreqSweep(stop beyond max) error = %v, want ErrInvalidInput", err)
	}
	if _, err := e.FreqSweep(1_000_000_000, AttenuationUnknown, PowerLevelHigh, 10, 1_000_000, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("FreqSweep(unknown attenuation) error = %v, want ErrInvalidInput", err)
	}
}

func TestEncoder_GeneratorTrackingExpFallsBack(t *testing.T) {
	e := encoderFor(t, setupGenerator)
	cmd, err := e.GeneratorTrackingExp(1_000_000_000, -36, 10, 1_000_000)
	if err != nil {
		t.Fatalf("GeneratorTrackingExp() error = %v", err)
	}
	if got, want := string(cmd.Body), "C3-T:1000000,0,1,0010,0001000"; got != want {
		t.Errorf("GeneratorTrackingExp() body = %q, want %q", got, want)
	}
}
