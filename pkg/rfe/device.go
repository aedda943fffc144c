// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/rfestat/pkg/transport"
)

const readBufferSize = 4096

var errDeviceClosed = errors.New("device closed")

// Options configures connections. Zero values select the defaults.
type Options struct {
	Logger           *zerolog.Logger
	HandshakeTimeout time.Duration
	CommandTimeout   time.Duration
	SweepTimeout     time.Duration
	PollInterval     time.Duration
	MaxFrameLen      int
	BaudRates        []int
	Opener           transport.Opener
	Lister           transport.Lister

	// AllPorts disables the CP210x VID/PID filter of ConnectAll.
	AllPorts bool

	// Tap receives every chunk read from the port, before framing.
	Tap func(chunk []byte)
	// FrameHook receives every frame with its decoded message, before
	// callbacks run.
	FrameHook func(frame []byte, m Message)
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.SweepTimeout <= 0 {
		o.SweepTimeout = DefaultSweepTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxFrameLen <= 0 {
		o.MaxFrameLen = DefaultMaxFrameLen
	}
	if len(o.BaudRates) == 0 {
		o.BaudRates = DefaultBaudRates
	}
	if o.Opener == nil {
		o.Opener = transport.SerialOpener{ReadTimeout: o.PollInterval}
	}
	if o.Lister == nil {
		o.Lister = transport.EnumeratorLister{}
	}
	return o
}

// Identity combines the setup announcement and the serial number.
type Identity struct {
	Firmware       string
	SerialNumber   SerialNumber
	MainModel      Model
	ExpansionModel Model
	Generator      bool
}

// Device is a connected RF Explorer. One background reader owns the state;
// every method is safe for concurrent use.
type Device struct {
	name string
	port transport.Port
	opts Options
	log  zerolog.Logger

	framer  *Framer
	decoder *Decoder
	state   *State
	encoder *Encoder
	disp    *Dispatcher

	statsMu sync.Mutex
	stats   *Statistics

	writeMu sync.Mutex
	baud    atomic.Int64

	pollable   bool
	stopping   atomic.Bool
	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// newDevice starts the background reader over port.
func newDevice(port transport.Port, name string, opts Options) *Device {
	d := &Device{
		name:       name,
		port:       port,
		opts:       opts,
		log:        opts.Logger.With().Str("port", name).Logger(),
		framer:     NewFramer(),
		decoder:    NewDecoder(),
		state:      NewState(),
		disp:       NewDispatcher(),
		stats:      NewStatistics(),
		readerDone: make(chan struct{}),
	}
	d.encoder = NewEncoder(d.state)
	d.framer.SetMaxFrameLen(opts.MaxFrameLen)

	if setter, ok := port.(transport.ReadTimeoutSetter); ok {
		if err := setter.SetReadTimeout(opts.PollInterval); err == nil {
			d.pollable = true
		} else {
			d.log.Warn().Err(err).Msg("Port rejected read timeout, Close will interrupt reads")
		}
	}

	go d.readLoop()
	return d
}

// ============================================================================
// Background reader
// ============================================================================

func (d *Device) readLoop() {
	defer close(d.readerDone)

	buf := make([]byte, readBufferSize)
	for !d.stopping.Load() {
		n, err := d.port.Read(buf)
		if n > 0 {
			if d.opts.Tap != nil {
				d.opts.Tap(buf[:n])
			}
			d.process(buf[:n])
		}
		if err != nil {
			if d.stopping.Load() {
				break
			}
			d.log.Error().Err(err).Msg("Read failed, stopping reader")
			d.disp.Close(ioError("read", err))
			return
		}
	}
	d.disp.Close(ioError("read", errDeviceClosed))
}

func (d *Device) process(chunk []byte) {
	d.framer.Write(chunk)
	for {
		frame, ok := d.framer.Next()
		if !ok {
			break
		}
		m := d.decoder.Decode(frame)
		seq := d.disp.Receive()
		anomalies := Inspect(m)
		if u, isUnknown := m.(Unknown); isUnknown {
			d.log.Debug().Err(u.Err).Int("len", len(frame)).Msg("Undecodable frame")
		}

		d.state.Apply(m)

		d.statsMu.Lock()
		d.stats.Update(m, anomalies)
		d.statsMu.Unlock()

		if d.opts.FrameHook != nil {
			d.opts.FrameHook(frame, m)
		}
		d.disp.DeliverReceived(seq, m)
	}

	d.statsMu.Lock()
	d.stats.SetFramerCounters(d.framer)
	d.statsMu.Unlock()
}

// Close stops the reader, then closes the port. It is idempotent. It must
// not be called from a callback.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.stopping.Store(true)
		if d.pollable {
			<-d.readerDone
			d.closeErr = d.port.Close()
		} else {
			// The reader only wakes when the port closes; its read error is
			// suppressed by the stop flag.
			d.closeErr = d.port.Close()
			<-d.readerDone
		}
		d.disp.Close(ioError("close", errDeviceClosed))
		d.log.Debug().Msg("Device closed")
	})
	return d.closeErr
}

// Done is closed when the reader has stopped.
func (d *Device) Done() <-chan struct{} {
	return d.readerDone
}

// Err returns the error that stopped the reader, or nil while running.
func (d *Device) Err() error {
	return d.disp.Err()
}

// ============================================================================
// Accessors
// ============================================================================

// Name returns the port name the device was opened on.
func (d *Device) Name() string { return d.name }

// BaudRate returns the serial rate in use, or 0 when unknown.
func (d *Device) BaudRate() int { return int(d.baud.Load()) }

// State returns the device state.
func (d *Device) State() *State { return d.state }

// Encoder returns the command encoder bound to the device state.
func (d *Device) Encoder() *Encoder { return d.encoder }

// Stats returns a snapshot of the stream statistics.
func (d *Device) Stats() Statistics {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	s := *d.stats
	s.CalculateRates()
	return s
}

// Identity returns the firmware, models and serial number of the device.
// The serial number is empty when the device never reported it.
func (d *Device) Identity() (Identity, error) {
	setup, err := d.state.Setup()
	if err != nil {
		return Identity{}, err
	}
	serial, _ := d.state.SerialNumber()
	return Identity{
		Firmware:       setup.Firmware,
		SerialNumber:   serial,
		MainModel:      setup.MainModel,
		ExpansionModel: setup.ExpansionModel,
		Generator:      setup.Generator,
	}, nil
}

// Config returns the latest analyzer configuration.
func (d *Device) Config() (AnalyzerConfig, error) { return d.state.Config() }

// GeneratorConfig returns the latest generator configuration.
func (d *Device) GeneratorConfig() (GeneratorConfig, error) { return d.state.GeneratorConfig() }

// GeneratorCwConfig returns the latest CW configuration.
func (d *Device) GeneratorCwConfig() (CwConfig, error) { return d.state.CwConfig() }

// GeneratorAmpSweepConfig returns the latest amplitude sweep configuration.
func (d *Device) GeneratorAmpSweepConfig() (AmpSweepConfig, error) { return d.state.AmpSweepConfig() }

// GeneratorFreqSweepConfig returns the latest frequency sweep configuration.
func (d *Device) GeneratorFreqSweepConfig() (FreqSweepConfig, error) {
	return d.state.FreqSweepConfig()
}

// Sweep returns a copy of the latest sweep.
func (d *Device) Sweep() (Sweep, error) { return d.state.Sweep() }

// ScreenData returns the latest LCD capture.
func (d *Device) ScreenData() (ScreenData, error) { return d.state.ScreenData() }

// Temperature returns the latest temperature band.
func (d *Device) Temperature() (Temperature, error) { return d.state.Temperature() }

// DspMode returns the latest DSP mode.
func (d *Device) DspMode() (DspMode, error) { return d.state.DspMode() }

// TrackingStatus returns the latest tracking status.
func (d *Device) TrackingStatus() (TrackingStatus, error) { return d.state.TrackingStatus() }

// InputStage returns the latest input stage.
func (d *Device) InputStage() (InputStage, error) { return d.state.InputStage() }

// ActiveModule returns the radio module in use.
func (d *Device) ActiveModule() (RadioModule, error) { return d.state.ActiveModule() }

// ============================================================================
// Event delivery
// ============================================================================

// SetCallback registers cb for category c, replacing any earlier one. cb
// runs on the reader goroutine and must not block or call Close.
func (d *Device) SetCallback(c Category, cb Callback) error {
	return d.disp.SetCallback(c, cb)
}

// RemoveCallback removes the callback of category c. No invocation happens
// after it returns.
func (d *Device) RemoveCallback(c Category) error {
	return d.disp.RemoveCallback(c)
}

// WaitForNext blocks until a message of category c arrives after the call.
// A zero timeout selects the category default.
func (d *Device) WaitForNext(ctx context.Context, c Category, timeout time.Duration) (Message, error) {
	if timeout <= 0 && c == CategorySweep {
		timeout = d.opts.SweepTimeout
	}
	return d.disp.WaitForNext(ctx, c, timeout)
}

// Subscribe starts collecting messages of category c. Subscribing before
// Send makes sure a fast reply is not missed. Cancel the subscription when
// done.
func (d *Device) Subscribe(c Category) *Subscription {
	return d.disp.Subscribe(c)
}

// WaitForNextSweep blocks until the next sweep arrives.
func (d *Device) WaitForNextSweep(ctx context.Context, timeout time.Duration) (Sweep, error) {
	m, err := d.WaitForNext(ctx, CategorySweep, timeout)
	if err != nil {
		return Sweep{}, err
	}
	return m.(Sweep).Clone(), nil
}

// WaitForNextScreenData blocks until the next LCD capture arrives.
func (d *Device) WaitForNextScreenData(ctx context.Context, timeout time.Duration) (ScreenData, error) {
	m, err := d.WaitForNext(ctx, CategoryScreenData, timeout)
	if err != nil {
		return ScreenData{}, err
	}
	return m.(ScreenData), nil
}

// ============================================================================
// Command plumbing
// ============================================================================

// Send writes a command without validation.
func (d *Device) Send(cmd Command) error {
	return d.send(cmd.Name, cmd)
}

func (d *Device) send(op string, cmd Command) error {
	if d.stopping.Load() || d.disp.Err() != nil {
		return ioError(op, errDeviceClosed)
	}
	wire := cmd.Bytes()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if _, err := d.port.Write(wire); err != nil {
		d.log.Error().Err(err).Str("command", cmd.Name).Msg("Write failed")
		return ioError(op, err)
	}
	d.log.Debug().Str("command", cmd.Name).Hex("bytes", wire).Msg("Sent command")
	return nil
}

// sendAndWait subscribes before writing so the confirmation cannot be missed.
func (d *Device) sendAndWait(ctx context.Context, op string, cmd Command, c Category, match func(Message) bool) (Message, error) {
	sub := d.disp.Subscribe(c)
	defer sub.Cancel()
	if err := d.send(op, cmd); err != nil {
		return nil, err
	}
	return sub.Wait(ctx, d.opts.CommandTimeout, match)
}
