// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"errors"
	"sync"
	"testing"
)

// ============================================================
// State Helpers
// ============================================================

func applyFrames(t *testing.T, s *State, frames ...string) {
	t.Helper()
	for _, fr := range frames {
		m := Decode([]byte(fr))
		if u, ok := m.(Unknown); ok {
			t.Fatalf("Decode(%q) failed: %v", fr, u.Err)
		}
		s.Apply(m)
	}
}

func analyzerState(t *testing.T, setup string) *State {
	t.Helper()
	s := NewState()
	applyFrames(t, s, setup, testConfigLine)
	return s
}

func samples(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// ============================================================
// State Tests
// ============================================================

func TestState_NoDataBeforeApply(t *testing.T) {
	s := NewState()

	checks := map[string]error{}
	_, checks["Setup"] = s.Setup()
	_, checks["Config"] = s.Config()
	_, checks["Sweep"] = s.Sweep()
	_, checks["ScreenData"] = s.ScreenData()
	_, checks["Temperature"] = s.Temperature()
	_, checks["InputStage"] = s.InputStage()
	_, checks["ActiveModule"] = s.ActiveModule()

	for name, err := range checks {
		if !errors.Is(err, ErrNoData) {
			t.Errorf("%s() error = %v, want ErrNoData", name, err)
		}
	}
	if s.ready() {
		t.Error("ready() = true on empty state")
	}
}

func TestState_ApplyConfigAndSetup(t *testing.T) {
	s := analyzerState(t, "#C2-M:006,255,01.12B26")

	setup, err := s.Setup()
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if setup.MainModel != Model6G {
		t.Errorf("MainModel = %v, want 6G", setup.MainModel)
	}
	cfg, err := s.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.SweepPoints != 112 {
		t.Errorf("SweepPoints = %d, want 112", cfg.SweepPoints)
	}
	if !s.ready() {
		t.Error("ready() = false after setup and config")
	}
}

func TestState_SweepLengthOverridesConfig(t *testing.T) {
	s := analyzerState(t, "#C2-M:006,255,01.12B26")

	s.Apply(Decode(concat([]byte{'$', 'S', 56}, samples(56, 0x50))))

	sweep, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(sweep.Amplitudes) != 56 {
		t.Errorf("len(Sweep().Amplitudes) = %d, want 56", len(sweep.Amplitudes))
	}
	cfg, _ := s.Config()
	if cfg.SweepPoints != 56 {
		t.Errorf("Config().SweepPoints = %d, want 56", cfg.SweepPoints)
	}
	if want := cfg.StartHz + cfg.StepHz*55; cfg.StopHz() != want {
		t.Errorf("StopHz() = %d, want %d", cfg.StopHz(), want)
	}
}

func TestState_SweepIsCopied(t *testing.T) {
	s := NewState()
	s.Apply(Decode([]byte{'$', 'S', 2, 10, 20}))

	first, _ := s.Sweep()
	first.Amplitudes[0] = 99

	second, _ := s.Sweep()
	if second.Amplitudes[0] != -5 {
		t.Errorf("stored sweep changed through a returned copy: %v", second.Amplitudes)
	}
}

func TestState_UnknownInputStageIsReported(t *testing.T) {
	s := NewState()
	applyFrames(t, s, "#a9")

	stage, err := s.InputStage()
	if err != nil {
		t.Fatalf("InputStage() error = %v, want nil", err)
	}
	if stage != InputStageUnknown {
		t.Errorf("InputStage() = %v, want InputStageUnknown", stage)
	}
}

func TestState_UnknownMessageChangesNothing(t *testing.T) {
	s := analyzerState(t, "#C2-M:006,255,01.12B26")
	before, _ := s.Config()

	s.Apply(Decode([]byte("#ZZ:garbage")))

	after, _ := s.Config()
	if before != after {
		t.Errorf("Config changed after Unknown: %+v -> %+v", before, after)
	}
}

func TestState_ActiveModule(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
		want   RadioModule
	}{
		{
			name:   "analyzer main",
			frames: []string{"#C2-M:003,004,01.12", "#C2-F:0430000,0089285,-010,-120,0112,0,000,0240000,0960000,0300000"},
			want:   RadioModule{Model: ModelWSub1G},
		},
		{
			name:   "analyzer expansion",
			frames: []string{"#C2-M:003,004,01.12", "#C2-F:2400000,0089285,-010,-120,0112,1,000,2350000,2550000,0085000"},
			want:   RadioModule{Model: Model24G, Expansion: true},
		},
		{
			name:   "generator with expansion",
			frames: []string{"#C3-M:060,061,01.15", "#C3-*:0510000,0186525,0005,0001000,0,3,0000,0,0,1,3,0,00100"},
			want:   RadioModule{Model: Model6GenExpansion, Expansion: true},
		},
		{
			name:   "generator without expansion",
			frames: []string{"#C3-M:060,255,01.15"},
			want:   RadioModule{Model: Model6Gen},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			applyFrames(t, s, tt.frames...)
			got, err := s.ActiveModule()
			if err != nil {
				t.Fatalf("ActiveModule() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ActiveModule() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_ConcurrentReaders(t *testing.T) {
	s := analyzerState(t, "#C2-M:006,255,01.12B26")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if sw, err := s.Sweep(); err == nil {
					// A sweep is either fully old or fully new
					first := sw.Amplitudes[0]
					for _, a := range sw.Amplitudes {
						if a != first {
							t.Errorf("torn sweep observed: %v", sw.Amplitudes)
							return
						}
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		s.Apply(Decode(concat([]byte{'$', 'S', 112}, samples(112, byte(i%200)))))
	}
	close(stop)
	wg.Wait()
}
