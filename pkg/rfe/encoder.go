// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"math"
	"time"
)

// Encoder validates command parameters against the capabilities of the
// active radio module and the current device state, then builds the command.
// Validation never performs I/O.
type Encoder struct {
	state *State
}

// NewEncoder creates an encoder reading from state.
func NewEncoder(state *State) *Encoder {
	return &Encoder{state: state}
}

// ============================================================================
// Validation helpers
// ============================================================================

func (e *Encoder) analyzer(op string) (Setup, RadioModule, error) {
	setup, err := e.state.Setup()
	if err != nil {
		return Setup{}, RadioModule{}, err
	}
	if setup.Generator {
		return Setup{}, RadioModule{}, invalidOperation(op, "not supported by signal generators")
	}
	module, err := e.state.ActiveModule()
	if err != nil {
		return Setup{}, RadioModule{}, err
	}
	return setup, module, nil
}

func (e *Encoder) generator(op string) (Setup, error) {
	setup, err := e.state.Setup()
	if err != nil {
		return Setup{}, err
	}
	if !setup.Generator {
		return Setup{}, invalidOperation(op, "not supported by spectrum analyzers")
	}
	return setup, nil
}

// ValidateStartStop checks a sweep range against model capabilities.
func ValidateStartStop(op string, caps Capabilities, startHz, stopHz uint64) error {
	if startHz >= stopHz {
		return invalidInput(op, "start %d Hz must be below stop %d Hz", startHz, stopHz)
	}
	if !caps.ContainsFreq(startHz) {
		return invalidInput(op, "start %d Hz outside %d..%d Hz", startHz, caps.MinFreqHz, caps.MaxFreqHz)
	}
	if !caps.ContainsFreq(stopHz) {
		return invalidInput(op, "stop %d Hz outside %d..%d Hz", stopHz, caps.MinFreqHz, caps.MaxFreqHz)
	}
	if span := stopHz - startHz; !caps.ContainsSpan(span) {
		return invalidInput(op, "span %d Hz outside %d..%d Hz", span, caps.MinSpanHz, caps.MaxSpanHz)
	}
	return nil
}

// ValidateAmps checks an amplitude scale.
func ValidateAmps(op string, minAmpDBm, maxAmpDBm int) error {
	if minAmpDBm < MinAmpDBm || minAmpDBm > MaxAmpDBm {
		return invalidInput(op, "bottom amplitude %d dBm outside %d..%d dBm", minAmpDBm, MinAmpDBm, MaxAmpDBm)
	}
	if maxAmpDBm < MinAmpDBm || maxAmpDBm > MaxAmpDBm {
		return invalidInput(op, "top amplitude %d dBm outside %d..%d dBm", maxAmpDBm, MinAmpDBm, MaxAmpDBm)
	}
	if minAmpDBm >= maxAmpDBm {
		return invalidInput(op, "bottom amplitude %d dBm must be below top %d dBm", minAmpDBm, maxAmpDBm)
	}
	return nil
}

// ExpectedSweepPoints returns the sweep length the device reports after a
// sweep points request for n.
func ExpectedSweepPoints(n int) int {
	if n < MinSweepPoints {
		return MinSweepPoints
	}
	return n / sweepPointsStep * sweepPointsStep
}

// CenterSpanToStartStop converts a center/span pair to a start/stop pair.
func CenterSpanToStartStop(op string, centerHz, spanHz uint64) (uint64, uint64, error) {
	half := spanHz / 2
	if half > centerHz {
		return 0, 0, invalidInput(op, "span %d Hz extends below 0 Hz around center %d Hz", spanHz, centerHz)
	}
	return centerHz - half, centerHz + (spanHz - half), nil
}

// ============================================================================
// Analyzer commands
// ============================================================================

// AnalyzerConfig validates and builds a sweep range command.
func (e *Encoder) AnalyzerConfig(startHz, stopHz uint64, minAmpDBm, maxAmpDBm int) (Command, error) {
	const op = "set config"
	_, module, err := e.analyzer(op)
	if err != nil {
		return Command{}, err
	}
	if err := ValidateStartStop(op, module.Model.Capabilities(), startHz, stopHz); err != nil {
		return Command{}, err
	}
	if err := ValidateAmps(op, minAmpDBm, maxAmpDBm); err != nil {
		return Command{}, err
	}
	return NewAnalyzerConfigCommand(startHz, stopHz, minAmpDBm, maxAmpDBm), nil
}

// SweepPoints validates a sweep length change and returns the command with
// the sweep length the device will report.
func (e *Encoder) SweepPoints(points int) (Command, int, error) {
	const op = "set sweep points"
	_, module, err := e.analyzer(op)
	if err != nil {
		return Command{}, 0, err
	}
	if !module.Model.Capabilities().PlusTier {
		return Command{}, 0, invalidOperation(op, "%s is not a plus model", module.Model)
	}
	if points <= 0 || points > MaxSweepPoints {
		return Command{}, 0, invalidInput(op, "%d points outside 1..%d", points, MaxSweepPoints)
	}
	expected := ExpectedSweepPoints(points)
	return NewSweepPointsCommand(expected), expected, nil
}

// SwitchModule validates a module change. It returns ok false when the
// requested module is already active.
func (e *Encoder) SwitchModule(expansion bool) (cmd Command, ok bool, err error) {
	const op = "activate module"
	setup, module, err := e.analyzer(op)
	if err != nil {
		return Command{}, false, err
	}
	if expansion && !setup.HasExpansion() {
		return Command{}, false, invalidOperation(op, "no expansion module installed")
	}
	if module.Expansion == expansion {
		return Command{}, false, nil
	}
	return NewSwitchModuleCommand(expansion), true, nil
}

// WifiAnalyzer validates and builds a Wi-Fi analyzer start command.
func (e *Encoder) WifiAnalyzer(band WifiBand) (Command, error) {
	const op = "start wifi analyzer"
	_, module, err := e.analyzer(op)
	if err != nil {
		return Command{}, err
	}
	if !module.Model.Capabilities().WifiAnalyzer {
		return Command{}, invalidOperation(op, "%s has no Wi-Fi analyzer", module.Model)
	}
	if band != WifiBand2_4GHz && band != WifiBand5GHz {
		return Command{}, invalidInput(op, "unknown band %s", band)
	}
	return NewWifiAnalyzerCommand(band), nil
}

// StopWifiAnalyzer builds a Wi-Fi analyzer stop command.
func (e *Encoder) StopWifiAnalyzer() (Command, error) {
	if _, _, err := e.analyzer("stop wifi analyzer"); err != nil {
		return Command{}, err
	}
	return NewStopWifiAnalyzerCommand(), nil
}

// AnalyzerTracking validates and builds a tracking start command.
func (e *Encoder) AnalyzerTracking(startHz, stepHz uint64) (Command, error) {
	const op = "request tracking"
	_, module, err := e.analyzer(op)
	if err != nil {
		return Command{}, err
	}
	if caps := module.Model.Capabilities(); !caps.ContainsFreq(startHz) {
		return Command{}, invalidInput(op, "start %d Hz outside %d..%d Hz", startHz, caps.MinFreqHz, caps.MaxFreqHz)
	}
	if stepHz == 0 {
		return Command{}, invalidInput(op, "step must be positive")
	}
	return NewAnalyzerTrackingCommand(startHz, stepHz), nil
}

// CalcMode validates and builds a calculator mode command.
func (e *Encoder) CalcMode(mode CalcMode) (Command, error) {
	const op = "set calc mode"
	if _, _, err := e.analyzer(op); err != nil {
		return Command{}, err
	}
	if calcModeFromCode(int(mode)) == CalcModeUnknown {
		return Command{}, invalidInput(op, "unknown calc mode %d", mode)
	}
	return NewCalcModeCommand(mode), nil
}

// DspMode validates and builds a DSP mode command.
func (e *Encoder) DspMode(mode DspMode) (Command, error) {
	const op = "set dsp mode"
	if _, _, err := e.analyzer(op); err != nil {
		return Command{}, err
	}
	if dspModeFromCode(int(mode)) == DspModeUnknown {
		return Command{}, invalidInput(op, "unknown dsp mode %d", mode)
	}
	return NewDspModeCommand(mode), nil
}

// InputStage validates and builds an input stage command.
func (e *Encoder) InputStage(stage InputStage) (Command, error) {
	const op = "set input stage"
	if _, _, err := e.analyzer(op); err != nil {
		return Command{}, err
	}
	if inputStageFromByte(byte(stage)) == InputStageUnknown {
		return Command{}, invalidInput(op, "unknown input stage 0x%02X", byte(stage))
	}
	return NewInputStageCommand(stage), nil
}

// OffsetDB validates and builds an amplitude offset command.
func (e *Encoder) OffsetDB(offset int) (Command, error) {
	const op = "set offset"
	if _, _, err := e.analyzer(op); err != nil {
		return Command{}, err
	}
	if offset < math.MinInt8 || offset > math.MaxInt8 {
		return Command{}, invalidInput(op, "offset %d dB outside %d..%d dB", offset, math.MinInt8, math.MaxInt8)
	}
	return NewOffsetDBCommand(int8(offset)), nil
}

// ============================================================================
// Generator commands
// ============================================================================

// generatorCaps returns the capabilities of the main or expansion generator.
func (e *Encoder) generatorCaps(op string, exp bool) (Setup, Capabilities, error) {
	setup, err := e.generator(op)
	if err != nil {
		return Setup{}, Capabilities{}, err
	}
	if exp && setup.HasExpansion() {
		return setup, setup.ExpansionModel.Capabilities(), nil
	}
	return setup, setup.MainModel.Capabilities(), nil
}

func checkGeneratorFreq(op, name string, caps Capabilities, hz uint64) error {
	if !caps.ContainsFreq(hz) {
		return invalidInput(op, "%s %d Hz outside %d..%d Hz", name, hz, caps.MinFreqHz, caps.MaxFreqHz)
	}
	return nil
}

func checkSteps(op string, steps int) error {
	if steps < 1 || steps > MaxGeneratorSteps {
		return invalidInput(op, "steps %d outside 1..%d", steps, MaxGeneratorSteps)
	}
	return nil
}

func checkDelay(op string, delay time.Duration) error {
	if delay < 0 || delay > MaxStepDelay {
		return invalidInput(op, "step delay %s outside 0..%s", delay, MaxStepDelay)
	}
	return nil
}

func checkLevels(op string, att Attenuation, level PowerLevel) error {
	if attenuationFromCode(int(att)) == AttenuationUnknown {
		return invalidInput(op, "unknown attenuation %d", att)
	}
	if powerLevelFromCode(int(level)) == PowerLevelUnknown {
		return invalidInput(op, "unknown power level %d", level)
	}
	return nil
}

func checkExpPower(op string, setup Setup, dbm float64) error {
	lo := MinExpPowerDBm
	if setup.HasExpansion() {
		lo = MinExpansionDBm
	}
	if math.IsNaN(dbm) || dbm < lo || dbm > MaxExpPowerDBm {
		return invalidInput(op, "power %.1f dBm outside %.1f..%.1f dBm", dbm, lo, MaxExpPowerDBm)
	}
	return nil
}

// RoundTenth rounds half away from zero to 0.1 dB.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// powerTable lists the main generator's discrete output powers in dBm.
var powerTable = []struct {
	att   Attenuation
	level PowerLevel
	dbm   float64
}{
	{AttenuationOn, PowerLevelLowest, -40},
	{AttenuationOn, PowerLevelLow, -37},
	{AttenuationOn, PowerLevelHigh, -34},
	{AttenuationOn, PowerLevelHighest, -31},
	{AttenuationOff, PowerLevelLowest, -10},
	{AttenuationOff, PowerLevelLow, -7},
	{AttenuationOff, PowerLevelHigh, -4},
	{AttenuationOff, PowerLevelHighest, -1},
}

// NearestPowerSetting maps a power in dBm to the closest discrete output of
// the main generator. Ties go to the higher power.
func NearestPowerSetting(dbm float64) (Attenuation, PowerLevel, float64) {
	best := powerTable[0]
	for _, p := range powerTable[1:] {
		if math.Abs(dbm-p.dbm) <= math.Abs(dbm-best.dbm) {
			best = p
		}
	}
	return best.att, best.level, best.dbm
}

// Cw validates and builds a CW command for the main module.
func (e *Encoder) Cw(cwHz uint64, att Attenuation, level PowerLevel) (Command, error) {
	const op = "start cw"
	_, caps, err := e.generatorCaps(op, false)
	if err != nil {
		return Command{}, err
	}
	if err := checkGeneratorFreq(op, "cw", caps, cwHz); err != nil {
		return Command{}, err
	}
	if err := checkLevels(op, att, level); err != nil {
		return Command{}, err
	}
	return NewCwCommand(cwHz, att, level), nil
}

// CwExp validates and builds a CW command with a power in dBm. Without an
// expansion module the power is mapped to the nearest main module setting.
func (e *Encoder) CwExp(cwHz uint64, powerDBm float64) (Command, error) {
	const op = "start cw exp"
	setup, caps, err := e.generatorCaps(op, true)
	if err != nil {
		return Command{}, err
	}
	if err := checkGeneratorFreq(op, "cw", caps, cwHz); err != nil {
		return Command{}, err
	}
	if err := checkExpPower(op, setup, powerDBm); err != nil {
		return Command{}, err
	}
	if !setup.HasExpansion() {
		att, level, _ := NearestPowerSetting(powerDBm)
		return NewCwCommand(cwHz, att, level), nil
	}
	return NewCwExpCommand(cwHz, RoundTenth(powerDBm)), nil
}

// AmpSweep validates and builds an amplitude sweep for the main module.
func (e *Encoder) AmpSweep(cwHz uint64, startAtt Attenuation, startLevel PowerLevel, stopAtt Attenuation, stopLevel PowerLevel, delay time.Duration) (Command, error) {
	const op = "start amplitude sweep"
	_, caps, err := e.generatorCaps(op, false)
	if err != nil {
		return Command{}, err
	}
	if err := checkGeneratorFreq(op, "cw", caps, cwHz); err != nil {
		return Command{}, err
	}
	if err := checkLevels(op, startAtt, startLevel); err != nil {
		return Command{}, err
	}
	if err := checkLevels(op, stopAtt, stopLevel); err != nil {
		return Command{}, err
	}
	if err := checkDelay(op, delay); err != nil {
		return Command{}, err
	}
	return NewAmpSweepCommand(cwHz, startAtt, startLevel, stopAtt, stopLevel, delay), nil
}

// AmpSweepExp validates and builds an amplitude sweep with powers in dBm.
// Without an expansion module start and stop map to main module settings and
// the step is set by the device.
func (e *Encoder) AmpSweepExp(cwHz uint64, startDBm, stepDB, stopDBm float64, delay time.Duration) (Command, error) {
	const op = "start amplitude sweep exp"
	setup, caps, err := e.generatorCaps(op, true)
	if err != nil {
		return Command{}, err
	}
	if err := checkGeneratorFreq(op, "cw", caps, cwHz); err != nil {
		return Command{}, err
	}
	if err := checkExpPower(op, setup, startDBm); err != nil {
		return Command{}, err
	}
	if err := checkExpPower(op, setup, stopDBm); err != nil {
		return Command{}, err
	}
	if startDBm >= stopDBm {
		return Command{}, invalidInput(op, "start %.1f dBm must be below stop %.1f dBm", startDBm, stopDBm)
	}
	if err := checkDelay(op, delay); err != nil {
		return Command{}, err
	}
	if !setup.HasExpansion() {
		startAtt, startLevel, _ := NearestPowerSetting(startDBm)
		stopAtt, stopLevel, _ := NearestPowerSetting(stopDBm)
		return NewAmpSweepCommand(cwHz, startAtt, startLevel, stopAtt, stopLevel, delay), nil
	}
	if stepDB <= 0 || stepDB > stopDBm-startDBm {
		return Command{}, invalidInput(op, "step %.1f dB outside 0..%.1f dB", stepDB, stopDBm-startDBm)
	}
	return NewAmpSweepExpCommand(cwHz, RoundTenth(startDBm), RoundTenth(stepDB), RoundTenth(stopDBm), delay), nil
}

func (e *Encoder) checkFreqSweep(op string, caps Capabilities, startHz uint64, steps int, stepHz uint64) error {
	if err := checkGeneratorFreq(op, "start", caps, startHz); err != nil {
		return err
	}
	if err := checkSteps(op, steps); err != nil {
		return err
	}
	if stepHz == 0 {
		return invalidInput(op, "step must be positive")
	}
	return checkGeneratorFreq(op, "stop", caps, startHz+stepHz*uint64(steps))
}

// FreqSweep validates and builds a frequency sweep for the main module.
func (e *Encoder) FreqSweep(startHz uint64, att Attenuation, level PowerLevel, steps int, stepHz uint64, delay time.Duration) (Command, error) {
	const op = "start frequency sweep"
	_, caps, err := e.generatorCaps(op, false)
	if err != nil {
		return Command{}, err
	}
	if err := e.checkFreqSweep(op, caps, startHz, steps, stepHz); err != nil {
		return Command{}, err
	}
	if err := checkLevels(op, att, level); err != nil {
		return Command{}, err
	}
	if err := checkDelay(op, delay); err != nil {
		return Command{}, err
	}
	return NewFreqSweepCommand(startHz, att, level, uint16(steps), stepHz, delay), nil
}

// FreqSweepExp validates and builds a frequency sweep with a power in dBm.
func (e *Encoder) FreqSweepExp(startHz uint64, powerDBm float64, steps int, stepHz uint64, delay time.Duration) (Command, error) {
	const op = "start frequency sweep exp"
	setup, caps, err := e.generatorCaps(op, true)
	if err != nil {
		return Command{}, err
	}
	if err := e.checkFreqSweep(op, caps, startHz, steps, stepHz); err != nil {
		return Command{}, err
	}
	if err := checkExpPower(op, setup, powerDBm); err != nil {
		return Command{}, err
	}
	if err := checkDelay(op, delay); err != nil {
		return Command{}, err
	}
	if !setup.HasExpansion() {
		att, level, _ := NearestPowerSetting(powerDBm)
		return NewFreqSweepCommand(startHz, att, level, uint16(steps), stepHz, delay), nil
	}
	return NewFreqSweepExpCommand(startHz, RoundTenth(powerDBm), uint16(steps), stepHz, delay), nil
}

// GeneratorTracking validates and builds a generator tracking command.
func (e *Encoder) GeneratorTracking(startHz uint64, att Attenuation, level PowerLevel, steps int, stepHz uint64) (Command, error) {
	const op = "start tracking"
	_, caps, err := e.generatorCaps(op, false)
	if err != nil {
		return Command{}, err
	}
	if err := e.checkFreqSweep(op, caps, startHz, steps, stepHz); err != nil {
		return Command{}, err
	}
	if err := checkLevels(op, att, level); err != nil {
		return Command{}, err
	}
	return NewGeneratorTrackingCommand(startHz, att, level, uint16(steps), stepHz), nil
}

// GeneratorTrackingExp validates and builds a generator tracking command
// with a power in dBm.
func (e *Encoder) GeneratorTrackingExp(startHz uint64, powerDBm float64, steps int, stepHz uint64) (Command, error) {
	const op = "start tracking exp"
	setup, caps, err := e.generatorCaps(op, true)
	if err != nil {
		return Command{}, err
	}
	if err := e.checkFreqSweep(op, caps, startHz, steps, stepHz); err != nil {
		return Command{}, err
	}
	if err := checkExpPower(op, setup, powerDBm); err != nil {
		return Command{}, err
	}
	if !setup.HasExpansion() {
		att, level, _ := NearestPowerSetting(powerDBm)
		return NewGeneratorTrackingCommand(startHz, att, level, uint16(steps), stepHz), nil
	}
	return NewGeneratorTrackingExpCommand(startHz, RoundTenth(powerDBm), uint16(steps), stepHz), nil
}

// RfPower builds an RF output command for a generator.
func (e *Encoder) RfPower(on bool) (Command, error) {
	if _, err := e.generator("rf power"); err != nil {
		return Command{}, err
	}
	return NewRfPowerCommand(on), nil
}

// TrackingStep builds a tracking step command. It is valid on both device
// kinds.
func (e *Encoder) TrackingStep(step int) (Command, error) {
	const op = "tracking step"
	if _, err := e.state.Setup(); err != nil {
		return Command{}, err
	}
	if step < 0 || step > math.MaxUint16 {
		return Command{}, invalidInput(op, "step %d outside 0..%d", step, math.MaxUint16)
	}
	return NewTrackingStepCommand(uint16(step)), nil
}
