// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import "sync"

// slot holds the latest value of one state field.
type slot[T any] struct {
	value T
	ok    bool
}

func (s *slot[T]) set(v T) {
	s.value = v
	s.ok = true
}

func (s *slot[T]) get(op string) (T, error) {
	if !s.ok {
		var zero T
		return zero, noData(op)
	}
	return s.value, nil
}

// State is the last known configuration of one device. Apply is called by
// the device reader only; getters return copies and are safe for concurrent
// use.
type State struct {
	mu sync.RWMutex

	setup          slot[Setup]
	serialNumber   slot[SerialNumber]
	analyzerConfig slot[AnalyzerConfig]
	generator      slot[GeneratorConfig]
	cw             slot[CwConfig]
	ampSweep       slot[AmpSweepConfig]
	freqSweep      slot[FreqSweepConfig]
	sweep          slot[Sweep]
	screen         slot[ScreenData]
	temperature    slot[Temperature]
	dspMode        slot[DspMode]
	tracking       slot[TrackingStatus]
	inputStage     slot[InputStage]
}

// NewState creates an empty state.
func NewState() *State {
	return &State{}
}

// Apply updates the fields carried by m. Unknown messages change nothing.
func (s *State) Apply(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := m.(type) {
	case Setup:
		s.setup.set(v)
	case SerialNumber:
		s.serialNumber.set(v)
	case AnalyzerConfig:
		s.analyzerConfig.set(v)
	case GeneratorConfig:
		s.generator.set(v)
	case CwConfig:
		s.cw.set(v)
	case AmpSweepConfig:
		s.ampSweep.set(v)
	case FreqSweepConfig:
		s.freqSweep.set(v)
	case Sweep:
		s.sweep.set(v.Clone())
		// The device's sweep length wins over the configured one.
		if s.analyzerConfig.ok && s.analyzerConfig.value.SweepPoints != uint32(len(v.Amplitudes)) {
			s.analyzerConfig.value.SweepPoints = uint32(len(v.Amplitudes))
		}
	case ScreenData:
		s.screen.set(v)
	case Temperature:
		s.temperature.set(v)
	case DspMode:
		s.dspMode.set(v)
	case TrackingStatus:
		s.tracking.set(v)
	case InputStage:
		s.inputStage.set(v)
	}
}

// Setup returns the identity announced by the device.
func (s *State) Setup() (Setup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setup.get("setup")
}

// SerialNumber returns the device serial number.
func (s *State) SerialNumber() (SerialNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serialNumber.get("serial number")
}

// Config returns the latest analyzer configuration.
func (s *State) Config() (AnalyzerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzerConfig.get("config")
}

// GeneratorConfig returns the latest generator configuration.
func (s *State) GeneratorConfig() (GeneratorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator.get("generator config")
}

// CwConfig returns the latest CW configuration.
func (s *State) CwConfig() (CwConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cw.get("cw config")
}

// AmpSweepConfig returns the latest amplitude sweep configuration.
func (s *State) AmpSweepConfig() (AmpSweepConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ampSweep.get("amplitude sweep config")
}

// FreqSweepConfig returns the latest frequency sweep configuration.
func (s *State) FreqSweepConfig() (FreqSweepConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freqSweep.get("frequency sweep config")
}

// Sweep returns a copy of the latest sweep.
func (s *State) Sweep() (Sweep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sweep, err := s.sweep.get("sweep")
	if err != nil {
		return sweep, err
	}
	return sweep.Clone(), nil
}

// ScreenData returns the latest screen capture.
func (s *State) ScreenData() (ScreenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen.get("screen data")
}

// Temperature returns the latest temperature band.
func (s *State) Temperature() (Temperature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.temperature.get("temperature")
}

// DspMode returns the latest DSP mode.
func (s *State) DspMode() (DspMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dspMode.get("dsp mode")
}

// TrackingStatus returns the latest tracking status.
func (s *State) TrackingStatus() (TrackingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking.get("tracking status")
}

// InputStage returns the latest input stage.
func (s *State) InputStage() (InputStage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputStage.get("input stage")
}

// ActiveModule returns the radio module currently in use. Analyzers report
// it in their config; generators use the expansion module when one is
// installed.
func (s *State) ActiveModule() (RadioModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setup, err := s.setup.get("active module")
	if err != nil {
		return RadioModule{}, err
	}
	if setup.Generator {
		if setup.HasExpansion() {
			return RadioModule{Model: setup.ExpansionModel, Expansion: true}, nil
		}
		return RadioModule{Model: setup.MainModel}, nil
	}
	cfg, err := s.analyzerConfig.get("active module")
	if err != nil {
		return RadioModule{}, err
	}
	if cfg.ExpansionActive {
		return RadioModule{Model: setup.ExpansionModel, Expansion: true}, nil
	}
	return RadioModule{Model: setup.MainModel}, nil
}

// ready reports whether the handshake has observed setup and a config.
func (s *State) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setup.ok && (s.analyzerConfig.ok || s.generator.ok)
}
