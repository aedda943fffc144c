// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	tea "github.com/charmbracelet/bubbletea"
)

// ============================================================
// Monitor Model Tests
// ============================================================

func updateMonitor(t *testing.T, m monitorModel, msg tea.Msg) monitorModel {
	t.Helper()
	next, _ := m.Update(msg)
	mm, ok := next.(monitorModel)
	if !ok {
		t.Fatalf("Update() returned %T, want monitorModel", next)
	}
	return mm
}

func TestMonitorModel_Anomalies(t *testing.T) {
	m := newMonitorModel("test", false)

	bad := rfe.Unknown{Raw: []byte("#??"), Err: errors.New("bad frame")}
	m = updateMonitor(t, m, frameMsg{
		message:   bad,
		anomalies: []rfe.Anomaly{{Type: rfe.AnomalyDecodeError, Message: "bad frame"}},
	})

	if len(m.eventLog) != 1 {
		t.Fatalf("eventLog = %d entries, want 1", len(m.eventLog))
	}
	if !m.eventLog[0].isError || !strings.Contains(m.eventLog[0].message, "bad frame") {
		t.Errorf("eventLog[0] = %+v, want error entry for the anomaly", m.eventLog[0])
	}
}

func TestMonitorModel_ShowAll(t *testing.T) {
	m := newMonitorModel("test", false)
	sweep := rfe.Sweep{Amplitudes: []float32{-90, -40}, Timestamp: time.Now()}

	m = updateMonitor(t, m, frameMsg{message: sweep})
	if len(m.eventLog) != 0 {
		t.Errorf("eventLog = %d entries, want 0 for valid frames", len(m.eventLog))
	}
	if m.sweep == nil || len(m.sweep.Amplitudes) != 2 {
		t.Errorf("sweep = %v, want latest sweep kept", m.sweep)
	}

	m = updateMonitor(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if !m.showAll {
		t.Fatal("showAll = false after 'a', want true")
	}
	m = updateMonitor(t, m, frameMsg{message: sweep})
	if len(m.eventLog) != 1 || !strings.Contains(m.eventLog[0].message, "SWEEP") {
		t.Errorf("eventLog = %+v, want one SWEEP entry", m.eventLog)
	}
}

func TestMonitorModel_ConfigChange(t *testing.T) {
	m := newMonitorModel("test", false)
	cfg := testSweepConfig()

	m = updateMonitor(t, m, frameMsg{message: cfg})
	m = updateMonitor(t, m, frameMsg{message: cfg})
	if len(m.eventLog) != 1 {
		t.Errorf("eventLog = %d entries, want 1 for an unchanged config", len(m.eventLog))
	}

	cfg.StartHz += cfg.StepHz
	m = updateMonitor(t, m, frameMsg{message: cfg})
	if len(m.eventLog) != 2 {
		t.Errorf("eventLog = %d entries, want 2 after a change", len(m.eventLog))
	}
}

func TestMonitorModel_SyncAndStats(t *testing.T) {
	m := newMonitorModel("test", false)

	m = updateMonitor(t, m, syncMsg{skipped: 12})
	if !m.synchronized || m.skipped != 12 {
		t.Errorf("synchronized = %v, skipped = %d, want true, 12", m.synchronized, m.skipped)
	}

	stats := rfe.NewStatistics()
	stats.Update(rfe.Sweep{Amplitudes: []float32{-50}}, nil)
	m = updateMonitor(t, m, statsMsg(*stats))
	if m.stats.Sweeps != 1 {
		t.Errorf("stats.Sweeps = %d, want 1", m.stats.Sweeps)
	}

	m = updateMonitor(t, m, disconnectedMsg{err: errors.New("unplugged")})
	if !m.disconnected {
		t.Error("disconnected = false, want true")
	}
}

func TestMonitorModel_LogLimit(t *testing.T) {
	m := newMonitorModel("test", false)
	for i := 0; i < m.maxLogEntries+20; i++ {
		m.addLogEntry("event", false)
	}
	if len(m.eventLog) != m.maxLogEntries {
		t.Errorf("eventLog = %d entries, want %d", len(m.eventLog), m.maxLogEntries)
	}
}

func TestMonitorModel_View(t *testing.T) {
	m := newMonitorModel("Serial: /dev/ttyUSB0", false)
	cfg := testSweepConfig()
	m = updateMonitor(t, m, frameMsg{message: cfg})
	m = updateMonitor(t, m, frameMsg{message: rfe.Sweep{Amplitudes: []float32{-90, -40, -80}, Timestamp: time.Now()}})

	out := m.View()
	for _, want := range []string{"RFESTAT - MONITOR", "/dev/ttyUSB0", "Latest Sweep:", "-40.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

// ============================================================
// Control Model Tests
// ============================================================

func updateControl(t *testing.T, m controlModel, msg tea.Msg) controlModel {
	t.Helper()
	next, _ := m.Update(msg)
	switch v := next.(type) {
	case controlModel:
		return v
	case *controlModel:
		return *v
	}
	t.Fatalf("Update() returned %T, want controlModel", next)
	return m
}

func newTestControlModel() controlModel {
	cm := newConnectionManager(context.Background(), rfe.Options{})
	return initialControlModel(cm)
}

func TestControlModel_Discovery(t *testing.T) {
	m := newTestControlModel()
	id := rfe.Identity{Firmware: "01.26", MainModel: rfe.Model6G, ExpansionModel: rfe.ModelNone}

	m = updateControl(t, m, deviceFoundMsg{port: "/dev/ttyUSB1", info: "Serial", identity: id})
	m = updateControl(t, m, deviceFoundMsg{port: "/dev/ttyUSB0", info: "Serial", identity: id})
	m = updateControl(t, m, discoveryCompleteMsg{count: 2})

	if !m.discoveryDone {
		t.Error("discoveryDone = false, want true")
	}
	if len(m.devices) != 2 || m.devices[0].port != "/dev/ttyUSB0" {
		t.Errorf("devices = %+v, want two sorted by port", m.devices)
	}
	if m.focusedField != focusCommandInput {
		t.Errorf("focusedField = %d, want command input", m.focusedField)
	}

	m = updateControl(t, m, connectionLostMsg{port: "/dev/ttyUSB0"})
	if m.devices[0].connected {
		t.Error("devices[0].connected = true after loss, want false")
	}
	m = updateControl(t, m, reconnectedMsg{port: "/dev/ttyUSB0", info: "Serial again", identity: id})
	if !m.devices[0].connected || m.devices[0].info != "Serial again" {
		t.Errorf("devices[0] = %+v, want reconnected", m.devices[0])
	}
}

func TestControlModel_ProcessEvents(t *testing.T) {
	m := newTestControlModel()
	cfg := testSweepConfig()

	m = updateControl(t, m, controlBatchMsg{events: []controlEvent{
		{port: "/dev/ttyUSB0", message: cfg},
		{port: "/dev/ttyUSB0", message: rfe.Sweep{Amplitudes: []float32{-90, -40, -80}}},
		{port: "/dev/ttyUSB0", message: rfe.DspModeFast},
		{port: "/dev/ttyUSB0", message: rfe.DspModeFilter},
	}})

	view := m.views["/dev/ttyUSB0"]
	if view == nil || view.config == nil || view.sweep == nil {
		t.Fatalf("views = %+v, want config and sweep recorded", view)
	}
	if len(view.status) != 1 {
		t.Errorf("status = %q, want the DSP line replaced in place", view.status)
	}
}

func TestDeviceView_SetStatus(t *testing.T) {
	var v deviceView
	v.setStatus("DSP_MODE: Fast")
	v.setStatus("TEMPERATURE: 10..20 C")
	v.setStatus("DSP_MODE: Filter")

	want := []string{"DSP_MODE: Filter", "TEMPERATURE: 10..20 C"}
	if len(v.status) != len(want) {
		t.Fatalf("status = %q, want %q", v.status, want)
	}
	for i := range want {
		if v.status[i] != want[i] {
			t.Errorf("status[%d] = %q, want %q", i, v.status[i], want[i])
		}
	}
}

func TestControlModel_CommandLine(t *testing.T) {
	m := newTestControlModel()

	m.cmdInput.SetValue("help")
	next, _ := m.runCommandLine()
	m = *next.(*controlModel)
	if len(m.eventLog) != len(commandTable) {
		t.Errorf("help logged %d lines, want %d", len(m.eventLog), len(commandTable))
	}
	if m.cmdInput.Value() != "" {
		t.Errorf("cmdInput = %q after run, want empty", m.cmdInput.Value())
	}

	m.cmdInput.SetValue("hold")
	next, _ = m.runCommandLine()
	m = *next.(*controlModel)
	last := m.eventLog[len(m.eventLog)-1]
	if !last.isError || last.message != "No device selected" {
		t.Errorf("last event = %+v, want no device error", last)
	}
	if len(m.history) != 2 || m.history[1] != "hold" {
		t.Errorf("history = %q, want [help hold]", m.history)
	}
}
