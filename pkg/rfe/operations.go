// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"context"
	"time"

	"github.com/Thermoquad/rfestat/pkg/transport"
)

// ============================================================================
// Common commands
// ============================================================================

// RequestConfig asks the device to resend its setup and configuration.
func (d *Device) RequestConfig() error {
	return d.send("request config", NewRequestConfigCommand())
}

// RequestSerialNumber asks for the serial number and waits for the reply.
func (d *Device) RequestSerialNumber(ctx context.Context) (SerialNumber, error) {
	const op = "request serial number"
	m, err := d.sendAndWait(ctx, op, NewRequestSerialNumberCommand(), CategoryIdentity, func(m Message) bool {
		_, ok := m.(SerialNumber)
		return ok
	})
	if err != nil {
		return "", err
	}
	return m.(SerialNumber), nil
}

// EnableLcd turns the device display on.
func (d *Device) EnableLcd() error { return d.send("enable lcd", NewLcdCommand(true)) }

// DisableLcd turns the device display off.
func (d *Device) DisableLcd() error { return d.send("disable lcd", NewLcdCommand(false)) }

// EnableDumpScreen starts streaming LCD captures.
func (d *Device) EnableDumpScreen() error {
	return d.send("enable dump screen", NewDumpScreenCommand(true))
}

// DisableDumpScreen stops streaming LCD captures.
func (d *Device) DisableDumpScreen() error {
	return d.send("disable dump screen", NewDumpScreenCommand(false))
}

// Hold pauses sweep streaming.
func (d *Device) Hold() error { return d.send("hold", NewHoldCommand()) }

// Reboot restarts the device and closes the handle.
func (d *Device) Reboot() error {
	if err := d.send("reboot", NewRebootCommand()); err != nil {
		return err
	}
	return d.Close()
}

// PowerOff switches the device off and closes the handle.
func (d *Device) PowerOff() error {
	if err := d.send("power off", NewPowerOffCommand()); err != nil {
		return err
	}
	return d.Close()
}

// SetBaudRate switches the device to a new serial rate, then follows with
// the local port when it supports reconfiguration.
func (d *Device) SetBaudRate(baud int) error {
	const op = "set baud rate"
	cmd, ok := NewBaudRateCommand(baud)
	if !ok {
		return invalidInput(op, "unsupported baud rate %d", baud)
	}
	if err := d.send(op, cmd); err != nil {
		return err
	}
	setter, ok := d.port.(transport.BaudRateSetter)
	if !ok {
		d.log.Warn().Int("baud", baud).Msg("Port cannot change rate, device and host now disagree")
		return invalidOperation(op, "port does not support changing the baud rate")
	}
	d.writeMu.Lock()
	err := setter.SetBaudRate(baud)
	d.writeMu.Unlock()
	if err != nil {
		return ioError(op, err)
	}
	d.baud.Store(int64(baud))
	d.log.Info().Int("baud", baud).Msg("Baud rate changed")
	return nil
}

// TrackingStep advances a tracking sweep to step.
func (d *Device) TrackingStep(step int) error {
	cmd, err := d.encoder.TrackingStep(step)
	if err != nil {
		return err
	}
	return d.send("tracking step", cmd)
}

// ============================================================================
// Analyzer commands
// ============================================================================

// configTolerance is the slack allowed between a requested and a reported
// sweep edge; the device quantizes to kHz and to its step size.
func configTolerance(c AnalyzerConfig) uint64 {
	if c.StepHz > 1000 {
		return c.StepHz
	}
	return 1000
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func configMatches(startHz, stopHz uint64, minAmpDBm, maxAmpDBm int) func(Message) bool {
	return func(m Message) bool {
		c, ok := m.(AnalyzerConfig)
		if !ok {
			return false
		}
		tol := configTolerance(c)
		return absDiff(c.StartHz, startHz) <= tol &&
			absDiff(c.StopHz(), stopHz) <= tol &&
			int(c.MinAmpDBm) == minAmpDBm &&
			int(c.MaxAmpDBm) == maxAmpDBm
	}
}

// SetConfig sets the sweep range and amplitude scale and waits for the
// device to confirm.
func (d *Device) SetConfig(ctx context.Context, startHz, stopHz uint64, minAmpDBm, maxAmpDBm int) (AnalyzerConfig, error) {
	cmd, err := d.encoder.AnalyzerConfig(startHz, stopHz, minAmpDBm, maxAmpDBm)
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.sendAndConfirmConfig(ctx, "set config", cmd, configMatches(startHz, stopHz, minAmpDBm, maxAmpDBm))
}

// sendAndConfirmConfig sends cmd and waits for a config accepted by match.
// The device does not announce a config that did not change, so a current
// config that already matches confirms the command.
func (d *Device) sendAndConfirmConfig(ctx context.Context, op string, cmd Command, match func(Message) bool) (AnalyzerConfig, error) {
	sub := d.disp.Subscribe(CategoryConfig)
	defer sub.Cancel()
	if err := d.send(op, cmd); err != nil {
		return AnalyzerConfig{}, err
	}
	if cfg, err := d.state.Config(); err == nil && match(cfg) {
		return cfg, nil
	}
	m, err := sub.Wait(ctx, d.opts.CommandTimeout, match)
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return m.(AnalyzerConfig), nil
}

// SetStartStop changes the sweep range, keeping the amplitude scale.
func (d *Device) SetStartStop(ctx context.Context, startHz, stopHz uint64) (AnalyzerConfig, error) {
	cfg, err := d.state.Config()
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.SetConfig(ctx, startHz, stopHz, int(cfg.MinAmpDBm), int(cfg.MaxAmpDBm))
}

// SetStartStopSweepPoints changes the sweep length, then the sweep range,
// keeping the amplitude scale.
func (d *Device) SetStartStopSweepPoints(ctx context.Context, startHz, stopHz uint64, points int) (AnalyzerConfig, error) {
	cfg, err := d.state.Config()
	if err != nil {
		return AnalyzerConfig{}, err
	}
	minAmp, maxAmp := int(cfg.MinAmpDBm), int(cfg.MaxAmpDBm)
	if _, _, err := d.encoder.SweepPoints(points); err != nil {
		return AnalyzerConfig{}, err
	}
	if _, err := d.encoder.AnalyzerConfig(startHz, stopHz, minAmp, maxAmp); err != nil {
		return AnalyzerConfig{}, err
	}
	if _, err := d.SetSweepPoints(ctx, points); err != nil {
		return AnalyzerConfig{}, err
	}
	return d.SetConfig(ctx, startHz, stopHz, minAmp, maxAmp)
}

// SetCenterSpan changes the sweep range given as center and span.
func (d *Device) SetCenterSpan(ctx context.Context, centerHz, spanHz uint64) (AnalyzerConfig, error) {
	startHz, stopHz, err := CenterSpanToStartStop("set center span", centerHz, spanHz)
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.SetStartStop(ctx, startHz, stopHz)
}

// SetCenterSpanSweepPoints changes the range and the sweep length.
func (d *Device) SetCenterSpanSweepPoints(ctx context.Context, centerHz, spanHz uint64, points int) (AnalyzerConfig, error) {
	startHz, stopHz, err := CenterSpanToStartStop("set center span", centerHz, spanHz)
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.SetStartStopSweepPoints(ctx, startHz, stopHz, points)
}

// SetMinMaxAmps changes the amplitude scale, keeping the sweep range.
func (d *Device) SetMinMaxAmps(ctx context.Context, minAmpDBm, maxAmpDBm int) (AnalyzerConfig, error) {
	cfg, err := d.state.Config()
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.SetConfig(ctx, cfg.StartHz, cfg.StopHz(), minAmpDBm, maxAmpDBm)
}

// SetSweepPoints changes the sweep length on plus models and waits for a
// config reporting the length the device settled on.
func (d *Device) SetSweepPoints(ctx context.Context, points int) (AnalyzerConfig, error) {
	const op = "set sweep points"
	cmd, expected, err := d.encoder.SweepPoints(points)
	if err != nil {
		return AnalyzerConfig{}, err
	}
	return d.sendAndConfirmConfig(ctx, op, cmd, func(m Message) bool {
		c, ok := m.(AnalyzerConfig)
		return ok && int(c.SweepPoints) == expected
	})
}

// ActivateModule switches between the main and the expansion module. It is
// a no-op when the module is already active.
func (d *Device) ActivateModule(ctx context.Context, expansion bool) error {
	const op = "activate module"
	cmd, ok, err := d.encoder.SwitchModule(expansion)
	if err != nil || !ok {
		return err
	}
	_, err = d.sendAndWait(ctx, op, cmd, CategoryConfig, func(m Message) bool {
		c, ok := m.(AnalyzerConfig)
		return ok && c.ExpansionActive == expansion
	})
	return err
}

// SetCalcMode selects the trace calculator.
func (d *Device) SetCalcMode(mode CalcMode) error {
	cmd, err := d.encoder.CalcMode(mode)
	if err != nil {
		return err
	}
	return d.send("set calc mode", cmd)
}

// SetDspMode selects the DSP mode and waits for the device to report it.
// Nothing is sent when the mode is already active.
func (d *Device) SetDspMode(ctx context.Context, mode DspMode) error {
	cmd, err := d.encoder.DspMode(mode)
	if err != nil {
		return err
	}
	if current, err := d.state.DspMode(); err == nil && current == mode {
		return nil
	}
	_, err = d.sendAndWait(ctx, "set dsp mode", cmd, CategoryDspMode, func(m Message) bool {
		return m == mode
	})
	return err
}

// SetInputStage selects the input attenuator or LNA.
func (d *Device) SetInputStage(stage InputStage) error {
	cmd, err := d.encoder.InputStage(stage)
	if err != nil {
		return err
	}
	return d.send("set input stage", cmd)
}

// SetOffsetDB sets the amplitude offset.
func (d *Device) SetOffsetDB(offset int) error {
	cmd, err := d.encoder.OffsetDB(offset)
	if err != nil {
		return err
	}
	return d.send("set offset", cmd)
}

// StartWifiAnalyzer starts the built-in Wi-Fi analyzer.
func (d *Device) StartWifiAnalyzer(band WifiBand) error {
	cmd, err := d.encoder.WifiAnalyzer(band)
	if err != nil {
		return err
	}
	return d.send("start wifi analyzer", cmd)
}

// StopWifiAnalyzer stops the Wi-Fi analyzer.
func (d *Device) StopWifiAnalyzer() error {
	cmd, err := d.encoder.StopWifiAnalyzer()
	if err != nil {
		return err
	}
	return d.send("stop wifi analyzer", cmd)
}

// RequestTracking starts tracking mode and waits for the status report.
func (d *Device) RequestTracking(ctx context.Context, startHz, stepHz uint64) (TrackingStatus, error) {
	cmd, err := d.encoder.AnalyzerTracking(startHz, stepHz)
	if err != nil {
		return TrackingUnknown, err
	}
	m, err := d.sendAndWait(ctx, "request tracking", cmd, CategoryTrackingStatus, nil)
	if err != nil {
		return TrackingUnknown, err
	}
	return m.(TrackingStatus), nil
}

// ============================================================================
// Generator commands
// ============================================================================

func (d *Device) sendBuilt(op string, cmd Command, err error) error {
	if err != nil {
		return err
	}
	return d.send(op, cmd)
}

// StartCw starts a CW signal on the main module.
func (d *Device) StartCw(cwHz uint64, att Attenuation, level PowerLevel) error {
	cmd, err := d.encoder.Cw(cwHz, att, level)
	return d.sendBuilt("start cw", cmd, err)
}

// StartCwExp starts a CW signal with a power in dBm.
func (d *Device) StartCwExp(cwHz uint64, powerDBm float64) error {
	cmd, err := d.encoder.CwExp(cwHz, powerDBm)
	return d.sendBuilt("start cw exp", cmd, err)
}

// StartAmpSweep starts an amplitude sweep on the main module.
func (d *Device) StartAmpSweep(cwHz uint64, startAtt Attenuation, startLevel PowerLevel, stopAtt Attenuation, stopLevel PowerLevel, delay time.Duration) error {
	cmd, err := d.encoder.AmpSweep(cwHz, startAtt, startLevel, stopAtt, stopLevel, delay)
	return d.sendBuilt("start amplitude sweep", cmd, err)
}

// StartAmpSweepExp starts an amplitude sweep with powers in dBm.
func (d *Device) StartAmpSweepExp(cwHz uint64, startDBm, stepDB, stopDBm float64, delay time.Duration) error {
	cmd, err := d.encoder.AmpSweepExp(cwHz, startDBm, stepDB, stopDBm, delay)
	return d.sendBuilt("start amplitude sweep exp", cmd, err)
}

// StartFreqSweep starts a frequency sweep on the main module.
func (d *Device) StartFreqSweep(startHz uint64, att Attenuation, level PowerLevel, steps int, stepHz uint64, delay time.Duration) error {
	cmd, err := d.encoder.FreqSweep(startHz, att, level, steps, stepHz, delay)
	return d.sendBuilt("start frequency sweep", cmd, err)
}

// StartFreqSweepExp starts a frequency sweep with a power in dBm.
func (d *Device) StartFreqSweepExp(startHz uint64, powerDBm float64, steps int, stepHz uint64, delay time.Duration) error {
	cmd, err := d.encoder.FreqSweepExp(startHz, powerDBm, steps, stepHz, delay)
	return d.sendBuilt("start frequency sweep exp", cmd, err)
}

// StartTracking starts generator tracking on the main module.
func (d *Device) StartTracking(startHz uint64, att Attenuation, level PowerLevel, steps int, stepHz uint64) error {
	cmd, err := d.encoder.GeneratorTracking(startHz, att, level, steps, stepHz)
	return d.sendBuilt("start tracking", cmd, err)
}

// StartTrackingExp starts generator tracking with a power in dBm.
func (d *Device) StartTrackingExp(startHz uint64, powerDBm float64, steps int, stepHz uint64) error {
	cmd, err := d.encoder.GeneratorTrackingExp(startHz, powerDBm, steps, stepHz)
	return d.sendBuilt("start tracking exp", cmd, err)
}

// RfPowerOn enables the generator output.
func (d *Device) RfPowerOn() error {
	cmd, err := d.encoder.RfPower(true)
	return d.sendBuilt("rf power on", cmd, err)
}

// RfPowerOff disables the generator output.
func (d *Device) RfPowerOff() error {
	cmd, err := d.encoder.RfPower(false)
	return d.sendBuilt("rf power off", cmd, err)
}
