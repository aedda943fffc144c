// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Decoder converts frames into messages. It holds no stream state; a zero
// Decoder is ready to use.
type Decoder struct {
	// Now supplies capture timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewDecoder creates a decoder stamping messages with the wall clock.
func NewDecoder() *Decoder {
	return &Decoder{Now: time.Now}
}

type frameParser func(d *Decoder, body []byte) (Message, error)

// parsers is keyed by frame prefix. No prefix is a prefix of another.
var parsers = []struct {
	prefix string
	parse  frameParser
}{
	{PrefixAnalyzerConfig, (*Decoder).analyzerConfig},
	{PrefixAnalyzerSetup, (*Decoder).analyzerSetup},
	{PrefixGeneratorSetup, (*Decoder).generatorSetup},
	{PrefixGeneratorConfig, (*Decoder).generatorConfig},
	{PrefixGeneratorConfigExp, (*Decoder).generatorConfigExp},
	{PrefixCwConfig, (*Decoder).cwConfig},
	{PrefixCwConfigExp, (*Decoder).cwConfigExp},
	{PrefixAmpSweepConfig, (*Decoder).ampSweepConfig},
	{PrefixAmpSweepConfigExp, (*Decoder).ampSweepConfigExp},
	{PrefixFreqSweepConfig, (*Decoder).freqSweepConfig},
	{PrefixFreqSweepConfigExp, (*Decoder).freqSweepConfigExp},
	{PrefixSerialNumber, (*Decoder).serialNumber},
	{PrefixTemperature, (*Decoder).temperature},
	{PrefixDspMode, (*Decoder).dspMode},
	{PrefixInputStage, (*Decoder).inputStage},
	{PrefixTrackingStatus, (*Decoder).trackingStatus},
	{PrefixSweepStandard, (*Decoder).sweepStandard},
	{PrefixSweepExt, (*Decoder).sweepExt},
	{PrefixSweepLarge, (*Decoder).sweepLarge},
	{PrefixScreenData, (*Decoder).screenData},
}

// ErrUnknownPrefix is attached to Unknown messages whose prefix is not
// recognized.
var ErrUnknownPrefix = errors.New("unknown frame prefix")

// Decode converts one frame into exactly one message. Frames that cannot be
// parsed become Unknown with the reason in Err.
func (d *Decoder) Decode(frame []byte) Message {
	if len(frame) > 0 && frame[0] != BinaryStart {
		frame = bytes.TrimSuffix(frame, crlf)
	}
	for _, p := range parsers {
		if !bytes.HasPrefix(frame, []byte(p.prefix)) {
			continue
		}
		msg, err := p.parse(d, frame[len(p.prefix):])
		if err != nil {
			return Unknown{Raw: bytes.Clone(frame), Err: fmt.Errorf("%s: %w", p.prefix, err)}
		}
		return msg
	}
	return Unknown{Raw: bytes.Clone(frame), Err: ErrUnknownPrefix}
}

// Decode converts one frame using the wall clock for timestamps.
func Decode(frame []byte) Message {
	return NewDecoder().Decode(frame)
}

func (d *Decoder) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// ============================================================================
// Field reader
// ============================================================================

// fields reads fixed width, comma separated ASCII fields. The first error
// sticks and later reads return zero values.
type fields struct {
	b   []byte
	pos int
	err error
}

func (f *fields) fail(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("offset %d: %s", f.pos, fmt.Sprintf(format, args...))
	}
}

func (f *fields) take(n int, name string) string {
	if f.err != nil {
		return ""
	}
	if f.pos+n > len(f.b) {
		f.fail("%s: want %d bytes, have %d", name, n, len(f.b)-f.pos)
		return ""
	}
	s := string(f.b[f.pos : f.pos+n])
	f.pos += n
	return s
}

func (f *fields) comma() {
	if f.err != nil {
		return
	}
	if f.pos >= len(f.b) || f.b[f.pos] != ',' {
		f.fail("expected ','")
		return
	}
	f.pos++
}

// optionalComma consumes a comma if one follows and reports whether it did.
func (f *fields) optionalComma() bool {
	if f.err != nil || f.pos >= len(f.b) || f.b[f.pos] != ',' {
		return false
	}
	f.pos++
	return true
}

func (f *fields) uint(n int, name string) uint64 {
	s := f.take(n, name)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		f.fail("%s: %q is not an unsigned number", name, s)
	}
	return v
}

func (f *fields) int(n int, name string) int64 {
	s := f.take(n, name)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f.fail("%s: %q is not a number", name, s)
	}
	return v
}

func (f *fields) float(n int, name string) float64 {
	s := f.take(n, name)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.fail("%s: %q is not a decimal", name, s)
	}
	return v
}

// digits reads a run of minN to maxN decimal digits.
func (f *fields) digits(minN, maxN int, name string) uint64 {
	if f.err != nil {
		return 0
	}
	n := 0
	for f.pos+n < len(f.b) && n < maxN && f.b[f.pos+n] >= '0' && f.b[f.pos+n] <= '9' {
		n++
	}
	if n < minN {
		f.fail("%s: want %d to %d digits, have %d", name, minN, maxN, n)
		return 0
	}
	return f.uint(n, name)
}

func (f *fields) khz(n int, name string) uint64 {
	return f.uint(n, name) * 1000
}

func (f *fields) flag(name string) bool {
	s := f.take(1, name)
	switch {
	case f.err != nil:
		return false
	case s == "0":
		return false
	case s == "1":
		return true
	}
	f.fail("%s: %q is not 0 or 1", name, s)
	return false
}

func (f *fields) rest() string {
	if f.err != nil {
		return ""
	}
	s := string(f.b[f.pos:])
	f.pos = len(f.b)
	return s
}

func (f *fields) done() error {
	if f.err == nil && f.pos != len(f.b) {
		f.fail("%d unexpected trailing bytes", len(f.b)-f.pos)
	}
	return f.err
}

func (f *fields) delay(name string) time.Duration {
	return time.Duration(f.uint(5, name)) * time.Millisecond
}

// ============================================================================
// Analyzer and identity records
// ============================================================================

func (d *Decoder) analyzerConfig(body []byte) (Message, error) {
	f := fields{b: body}
	c := AnalyzerConfig{Timestamp: d.now()}
	c.StartHz = f.khz(7, "start")
	f.comma()
	c.StepHz = f.uint(7, "step")
	f.comma()
	c.MaxAmpDBm = int16(f.int(4, "amp top"))
	f.comma()
	c.MinAmpDBm = int16(f.int(4, "amp bottom"))
	f.comma()
	c.SweepPoints = uint32(f.digits(4, 5, "sweep points"))
	f.comma()
	c.ExpansionActive = f.flag("active module")
	f.comma()
	c.Mode = modeFromCode(int(f.uint(3, "mode")))
	f.comma()
	c.MinFreqHz = f.khz(7, "min freq")
	f.comma()
	c.MaxFreqHz = f.khz(7, "max freq")
	f.comma()
	c.MaxSpanHz = f.khz(7, "max span")
	if f.optionalComma() {
		c.RbwHz = f.khz(5, "rbw")
		c.HasRbw = f.err == nil
	}
	if f.optionalComma() {
		c.AmpOffsetDB = int16(f.int(4, "amp offset"))
		c.HasOffset = f.err == nil
	}
	if f.optionalComma() {
		c.CalcMode = calcModeFromCode(int(f.uint(3, "calc mode")))
		c.HasCalcMode = f.err == nil
	}
	return c, f.done()
}

func (d *Decoder) analyzerSetup(body []byte) (Message, error) {
	return d.setup(body, false)
}

func (d *Decoder) generatorSetup(body []byte) (Message, error) {
	return d.setup(body, true)
}

func (d *Decoder) setup(body []byte, generator bool) (Message, error) {
	f := fields{b: body}
	mainCode := f.uint(3, "main model")
	f.comma()
	expCode := f.uint(3, "expansion model")
	f.comma()
	firmware := f.rest()
	if err := f.done(); err != nil {
		return nil, err
	}
	if firmware == "" {
		return nil, errors.New("missing firmware version")
	}
	s := Setup{
		MainModel:      ModelFromCode(int(mainCode)),
		ExpansionModel: ModelFromCode(int(expCode)),
		Firmware:       firmware,
		Generator:      generator,
	}
	if s.MainModel == ModelNone {
		return nil, errors.New("main module reported as absent")
	}
	return s, nil
}

func (d *Decoder) serialNumber(body []byte) (Message, error) {
	if len(body) != SerialNumberLen {
		return nil, fmt.Errorf("serial number: want %d bytes, have %d", SerialNumberLen, len(body))
	}
	for _, c := range body {
		if !isAlnum(c) {
			return nil, fmt.Errorf("serial number: invalid byte 0x%02X", c)
		}
	}
	return SerialNumber(body), nil
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func (d *Decoder) temperature(body []byte) (Message, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("temperature: want 1 byte, have %d", len(body))
	}
	return temperatureFromByte(body[0]), nil
}

func (d *Decoder) dspMode(body []byte) (Message, error) {
	f := fields{b: body}
	code := f.uint(1, "dsp mode")
	if err := f.done(); err != nil {
		return nil, err
	}
	return dspModeFromCode(int(code)), nil
}

func (d *Decoder) inputStage(body []byte) (Message, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("input stage: want 1 byte, have %d", len(body))
	}
	return inputStageFromByte(body[0]), nil
}

func (d *Decoder) trackingStatus(body []byte) (Message, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("tracking status: want 1 byte, have %d", len(body))
	}
	return trackingStatusFromByte(body[0]), nil
}

// ============================================================================
// Binary records
// ============================================================================

func (d *Decoder) sweepStandard(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, errors.New("missing sample count")
	}
	return d.sweep(body[1:], int(body[0]))
}

func (d *Decoder) sweepExt(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, errors.New("missing sample count")
	}
	return d.sweep(body[1:], (int(body[0])+1)*sweepPointsStep)
}

func (d *Decoder) sweepLarge(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, errors.New("missing sample count")
	}
	return d.sweep(body[2:], int(binary.BigEndian.Uint16(body)))
}

func (d *Decoder) sweep(samples []byte, n int) (Message, error) {
	if len(samples) != n {
		return nil, fmt.Errorf("sweep: header says %d samples, have %d", n, len(samples))
	}
	s := Sweep{Amplitudes: make([]float32, n), Timestamp: d.now()}
	for i, b := range samples {
		s.Amplitudes[i] = float32(b) / -2
	}
	return s, nil
}

func (d *Decoder) screenData(body []byte) (Message, error) {
	if len(body) != ScreenDataLen {
		return nil, fmt.Errorf("screen data: want %d bytes, have %d", ScreenDataLen, len(body))
	}
	return newScreenData(body, d.now()), nil
}

// ============================================================================
// Generator records
// ============================================================================

func (d *Decoder) generatorConfig(body []byte) (Message, error) {
	f := fields{b: body}
	c := GeneratorConfig{Timestamp: d.now()}
	c.StartHz = f.khz(7, "start")
	f.comma()
	c.CwHz = f.khz(7, "cw")
	f.comma()
	c.TotalSteps = uint32(f.uint(4, "total steps"))
	f.comma()
	c.StepHz = f.khz(7, "step")
	f.comma()
	c.Attenuation = attenuationFromCode(int(f.uint(1, "attenuation")))
	f.comma()
	c.PowerLevel = powerLevelFromCode(int(f.uint(1, "power level")))
	f.comma()
	c.SweepPowerSteps = uint16(f.uint(4, "sweep power steps"))
	f.comma()
	c.StartAttenuation = attenuationFromCode(int(f.uint(1, "start attenuation")))
	f.comma()
	c.StartPowerLevel = powerLevelFromCode(int(f.uint(1, "start power level")))
	f.comma()
	c.StopAttenuation = attenuationFromCode(int(f.uint(1, "stop attenuation")))
	f.comma()
	c.StopPowerLevel = powerLevelFromCode(int(f.uint(1, "stop power level")))
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}

func (d *Decoder) generatorConfigExp(body []byte) (Message, error) {
	f := fields{b: body}
	c := GeneratorConfig{Exp: true, Timestamp: d.now()}
	c.StartHz = f.khz(7, "start")
	f.comma()
	c.CwHz = f.khz(7, "cw")
	f.comma()
	c.TotalSteps = uint32(f.uint(4, "total steps"))
	f.comma()
	c.StepHz = f.khz(7, "step")
	f.comma()
	c.PowerDBm = f.float(5, "power")
	f.comma()
	c.StepPowerDB = f.float(5, "step power")
	f.comma()
	c.StartPowerDBm = f.float(5, "start power")
	f.comma()
	c.StopPowerDBm = f.float(5, "stop power")
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}

func (d *Decoder) cwConfig(body []byte) (Message, error) {
	f := fields{b: body}
	c := CwConfig{Timestamp: d.now()}
	c.CwHz = f.khz(7, "cw")
	f.comma()
	f.khz(7, "cw repeat")
	f.comma()
	c.TotalSteps = uint32(f.uint(4, "total steps"))
	f.comma()
	c.StepHz = f.khz(7, "step")
	f.comma()
	c.Attenuation = attenuationFromCode(int(f.uint(1, "attenuation")))
	f.comma()
	c.PowerLevel = powerLevelFromCode(int(f.uint(1, "power level")))
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	return c, f.done()
}

func (d *Decoder) cwConfigExp(body []byte) (Message, error) {
	f := fields{b: body}
	c := CwConfig{Exp: true, Timestamp: d.now()}
	c.CwHz = f.khz(7, "cw")
	f.comma()
	c.PowerDBm = f.float(5, "power")
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	return c, f.done()
}

func (d *Decoder) ampSweepConfig(body []byte) (Message, error) {
	f := fields{b: body}
	c := AmpSweepConfig{Timestamp: d.now()}
	c.CwHz = f.khz(7, "cw")
	f.comma()
	c.SweepPowerSteps = uint16(f.uint(4, "sweep power steps"))
	f.comma()
	c.StartAttenuation = attenuationFromCode(int(f.uint(1, "start attenuation")))
	f.comma()
	c.StartPowerLevel = powerLevelFromCode(int(f.uint(1, "start power level")))
	f.comma()
	c.StopAttenuation = attenuationFromCode(int(f.uint(1, "stop attenuation")))
	f.comma()
	c.StopPowerLevel = powerLevelFromCode(int(f.uint(1, "stop power level")))
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}

func (d *Decoder) ampSweepConfigExp(body []byte) (Message, error) {
	f := fields{b: body}
	c := AmpSweepConfig{Exp: true, RfPower: RfPowerUnknown, Timestamp: d.now()}
	c.CwHz = f.khz(7, "cw")
	f.comma()
	c.StartPowerDBm = f.float(5, "start power")
	f.comma()
	c.StepPowerDB = f.float(5, "step power")
	f.comma()
	c.StopPowerDBm = f.float(5, "stop power")
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}

func (d *Decoder) freqSweepConfig(body []byte) (Message, error) {
	f := fields{b: body}
	c := FreqSweepConfig{Timestamp: d.now()}
	c.StartHz = f.khz(7, "start")
	f.comma()
	c.TotalSteps = uint32(f.uint(4, "total steps"))
	f.comma()
	c.StepHz = f.khz(7, "step")
	f.comma()
	c.Attenuation = attenuationFromCode(int(f.uint(1, "attenuation")))
	f.comma()
	c.PowerLevel = powerLevelFromCode(int(f.uint(1, "power level")))
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}

func (d *Decoder) freqSweepConfigExp(body []byte) (Message, error) {
	f := fields{b: body}
	c := FreqSweepConfig{Exp: true, Timestamp: d.now()}
	c.StartHz = f.khz(7, "start")
	f.comma()
	c.TotalSteps = uint32(f.uint(4, "total steps"))
	f.comma()
	c.StepHz = f.khz(7, "step")
	f.comma()
	c.PowerDBm = f.float(5, "power")
	f.comma()
	c.RfPower = rfPowerFromCode(int(f.uint(1, "rf power")))
	f.comma()
	c.SweepDelay = f.delay("sweep delay")
	return c, f.done()
}
