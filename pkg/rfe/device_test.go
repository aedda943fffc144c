// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Thermoquad/rfestat/pkg/transport"
)

// ============================================================
// Fake Device
// ============================================================

const (
	fakeSerial          = "0123456789ABCDEF"
	fakeGeneratorConfig = "#C3-*:0510000,0186525,0005,0001000,0,3,0000,0,0,1,3,0,00100"
)

// fakeRFE answers the command stream of an analyzer or generator over one
// end of a net.Pipe.
type fakeRFE struct {
	conn      net.Conn
	setup     string
	generator bool
	silent    bool

	mu        sync.Mutex
	startKHz  int
	stopKHz   int
	topDBm    int
	bottomDBm int
	points    int
	expansion bool
	bodies    []string

	done chan struct{}
}

func newFake(t *testing.T, setup string, silent bool) (*fakeRFE, *transport.ConnPort) {
	t.Helper()
	host, dev := net.Pipe()
	f := &fakeRFE{
		conn:      dev,
		setup:     setup,
		generator: strings.HasPrefix(setup, PrefixGeneratorSetup),
		silent:    silent,
		startKHz:  5249000,
		stopKHz:   5270803,
		topDBm:    -30,
		bottomDBm: -118,
		points:    112,
		done:      make(chan struct{}),
	}
	go f.serve()
	t.Cleanup(func() {
		dev.Close()
		host.Close()
	})
	return f, transport.NewConnPort(host)
}

func (f *fakeRFE) serve() {
	defer close(f.done)
	r := bufio.NewReader(f.conn)
	for {
		start, err := r.ReadByte()
		if err != nil {
			return
		}
		if start != ASCIIStart {
			continue
		}
		n, err := r.ReadByte()
		if err != nil || n < 2 {
			return
		}
		body := make([]byte, n-2)
		if _, err := io.ReadFull(r, body); err != nil {
			return
		}

		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		silent := f.silent
		f.mu.Unlock()

		if !silent {
			if err := f.respond(string(body)); err != nil {
				return
			}
		}
	}
}

func (f *fakeRFE) respond(body string) error {
	switch {
	case body == "C0":
		if err := f.writeLine(f.setup); err != nil {
			return err
		}
		if f.generator {
			return f.writeLine(fakeGeneratorConfig)
		}
		return f.writeLine(f.configLine())
	case body == "Cn":
		return f.writeLine(PrefixSerialNumber + fakeSerial)
	case strings.HasPrefix(body, "C2-F:"):
		var start, stop, top, bottom int
		if _, err := fmt.Sscanf(body, "C2-F:%d,%d,%d,%d", &start, &stop, &top, &bottom); err != nil {
			return nil
		}
		f.mu.Lock()
		f.startKHz, f.stopKHz, f.topDBm, f.bottomDBm = start, stop, top, bottom
		f.mu.Unlock()
		return f.writeLine(f.configLine())
	case len(body) == 3 && body[:2] == "CJ":
		f.mu.Lock()
		f.points = (int(body[2]) + 1) * sweepPointsStep
		f.mu.Unlock()
		return f.writeLine(f.configLine())
	case len(body) == 3 && body[:2] == "CM":
		f.mu.Lock()
		f.expansion = body[2] == 1
		f.mu.Unlock()
		return f.writeLine(f.configLine())
	case len(body) == 3 && body[:2] == "Cp":
		return f.writeLine(fmt.Sprintf("DSP:%d", body[2]))
	case strings.HasPrefix(body, "C3-K:"):
		return f.writeLine("#K\x01")
	}
	return nil
}

func (f *fakeRFE) configLine() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := (f.stopKHz - f.startKHz) * 1000 / (f.points - 1)
	exp := 0
	if f.expansion {
		exp = 1
	}
	return fmt.Sprintf("#C2-F:%07d,%07d,%04d,%04d,%04d,%d,000,4850000,6100000,0600000",
		f.startKHz, step, f.topDBm, f.bottomDBm, f.points, exp)
}

func (f *fakeRFE) writeLine(s string) error {
	return f.write([]byte(s + "\r\n"))
}

func (f *fakeRFE) write(b []byte) error {
	_, err := f.conn.Write(b)
	return err
}

// mute stops replies to later commands, like firmware that does not
// re-announce an unchanged setting.
func (f *fakeRFE) mute() {
	f.mu.Lock()
	f.silent = true
	f.mu.Unlock()
}

func (f *fakeRFE) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

// countingPort counts the bytes written through it.
type countingPort struct {
	*transport.ConnPort
	written atomic.Int64
}

func (c *countingPort) Write(p []byte) (int, error) {
	c.written.Add(int64(len(p)))
	return c.ConnPort.Write(p)
}

func testOptions() Options {
	return Options{
		HandshakeTimeout: 500 * time.Millisecond,
		CommandTimeout:   500 * time.Millisecond,
		SweepTimeout:     500 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func connectFake(t *testing.T, port transport.Port) *Device {
	t.Helper()
	d, err := Connect(testContext(t), port, testOptions())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ============================================================
// Connection Tests
// ============================================================

func TestConnect_Handshake(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	id, err := d.Identity()
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if id.MainModel != Model6G || id.ExpansionModel != ModelNone || id.Generator {
		t.Errorf("Identity() = %+v, want 6G analyzer without expansion", id)
	}
	if id.Firmware != "01.12B26" {
		t.Errorf("Firmware = %q, want %q", id.Firmware, "01.12B26")
	}

	cfg, err := d.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.StartHz != 5_249_000_000 || cfg.SweepPoints != 112 {
		t.Errorf("Config() = start %d points %d, want 5249000000 and 112", cfg.StartHz, cfg.SweepPoints)
	}

	serial, err := d.RequestSerialNumber(testContext(t))
	if err != nil {
		t.Fatalf("RequestSerialNumber() error = %v", err)
	}
	if serial != fakeSerial {
		t.Errorf("RequestSerialNumber() = %q, want %q", serial, fakeSerial)
	}
}

func TestConnect_GeneratorHandshake(t *testing.T) {
	_, port := newFake(t, setupGeneratorEx, false)
	d := connectFake(t, port)

	if _, err := d.GeneratorConfig(); err != nil {
		t.Errorf("GeneratorConfig() error = %v", err)
	}
	if _, err := d.Config(); !errors.Is(err, ErrNoData) {
		t.Errorf("Config() error = %v, want ErrNoData on a generator", err)
	}
	module, err := d.ActiveModule()
	if err != nil {
		t.Fatalf("ActiveModule() error = %v", err)
	}
	if module.Model != Model6GenExpansion || !module.Expansion {
		t.Errorf("ActiveModule() = %v, want expansion generator", module)
	}
}

func TestConnect_SilentDeviceTimesOut(t *testing.T) {
	f, port := newFake(t, setup6G, true)
	opts := testOptions()
	opts.HandshakeTimeout = 50 * time.Millisecond

	_, err := Connect(testContext(t), port, opts)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}

	// The port is closed on failure, which ends the fake.
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Error("port left open after failed handshake")
	}
	if got := f.received(); len(got) != 2 || got[0] != "C0" || got[1] != "Cn" {
		t.Errorf("handshake sent %q, want [C0 Cn]", got)
	}
}

func TestOpen_FallsBackToSecondBaudRate(t *testing.T) {
	var opened []int
	opts := testOptions()
	opts.HandshakeTimeout = 50 * time.Millisecond
	opts.Opener = transport.OpenerFunc(func(name string, baud int) (transport.Port, error) {
		opened = append(opened, baud)
		_, port := newFake(t, setup6G, baud != 2400)
		return port, nil
	})

	d, err := Open(testContext(t), "/dev/ttyUSB0", opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if d.BaudRate() != 2400 {
		t.Errorf("BaudRate() = %d, want 2400", d.BaudRate())
	}
	if d.Name() != "/dev/ttyUSB0" {
		t.Errorf("Name() = %q, want /dev/ttyUSB0", d.Name())
	}
	if len(opened) != 2 || opened[0] != 500000 {
		t.Errorf("opened at %v, want [500000 2400]", opened)
	}
}

func TestOpen_AllRatesFail(t *testing.T) {
	opts := testOptions()
	opts.HandshakeTimeout = 30 * time.Millisecond
	opts.Opener = transport.OpenerFunc(func(name string, baud int) (transport.Port, error) {
		if baud == 500000 {
			return nil, errors.New("permission denied")
		}
		_, port := newFake(t, setup6G, true)
		return port, nil
	})

	_, err := Open(testContext(t), "/dev/ttyUSB0", opts)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Open() error = %v, want ErrTimeout from the last attempt", err)
	}
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Open() error = %v, want it to include the first failure", err)
	}
}

func TestConnectAll(t *testing.T) {
	usb := func(name string) transport.PortInfo {
		return transport.PortInfo{Name: name, IsUSB: true, VID: USBVendorID, PID: USBProductID}
	}

	var mu sync.Mutex
	var opened []string
	opts := testOptions()
	opts.HandshakeTimeout = 100 * time.Millisecond
	opts.BaudRates = []int{500000}
	opts.Lister = transport.StaticLister{usb("A"), usb("B"), {Name: "C"}}
	opts.Opener = transport.OpenerFunc(func(name string, baud int) (transport.Port, error) {
		mu.Lock()
		opened = append(opened, name)
		mu.Unlock()
		if name == "C" {
			t.Errorf("ConnectAll opened non-USB port %s", name)
		}
		_, port := newFake(t, setup6G, name == "A")
		return port, nil
	})

	devices, err := ConnectAll(testContext(t), opts)
	if err != nil {
		t.Fatalf("ConnectAll() error = %v", err)
	}
	for _, d := range devices {
		defer d.Close()
	}

	if len(devices) != 1 {
		t.Fatalf("ConnectAll() returned %d devices, want 1", len(devices))
	}
	if devices[0].Name() != "B" {
		t.Errorf("device name = %q, want B", devices[0].Name())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(opened) != 2 {
		t.Errorf("opened %v, want A and B only", opened)
	}
}

func TestConnectAll_AllPorts(t *testing.T) {
	opts := testOptions()
	opts.BaudRates = []int{500000}
	opts.AllPorts = true
	opts.Lister = transport.NamedPorts("X")
	opts.Opener = transport.OpenerFunc(func(name string, baud int) (transport.Port, error) {
		_, port := newFake(t, setup6G, false)
		return port, nil
	})

	devices, err := ConnectAll(testContext(t), opts)
	if err != nil {
		t.Fatalf("ConnectAll() error = %v", err)
	}
	for _, d := range devices {
		defer d.Close()
	}
	if len(devices) != 1 {
		t.Errorf("ConnectAll() returned %d devices, want 1", len(devices))
	}
}

// ============================================================
// Command Tests
// ============================================================

func TestDevice_SetConfig(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	cfg, err := d.SetConfig(testContext(t), 5_000_000_000, 5_100_000_000, -100, -10)
	if err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if cfg.StartHz != 5_000_000_000 || cfg.MinAmpDBm != -100 || cfg.MaxAmpDBm != -10 {
		t.Errorf("SetConfig() = %+v, want start 5 GHz and -100..-10 dBm", cfg)
	}
	if diff := absDiff(cfg.StopHz(), 5_100_000_000); diff > configTolerance(cfg) {
		t.Errorf("StopHz() = %d, off by %d Hz", cfg.StopHz(), diff)
	}

	state, _ := d.Config()
	if state.StartHz != cfg.StartHz {
		t.Errorf("state StartHz = %d, want %d", state.StartHz, cfg.StartHz)
	}
}

func TestDevice_SetStartStopKeepsAmps(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	cfg, err := d.SetStartStop(testContext(t), 5_500_000_000, 5_600_000_000)
	if err != nil {
		t.Fatalf("SetStartStop() error = %v", err)
	}
	if cfg.MinAmpDBm != -118 || cfg.MaxAmpDBm != -30 {
		t.Errorf("amps = %d..%d, want -118..-30", cfg.MinAmpDBm, cfg.MaxAmpDBm)
	}
}

func TestDevice_InvalidInputWritesNothing(t *testing.T) {
	_, conn := newFake(t, setup6G, false)
	port := &countingPort{ConnPort: conn}
	d := connectFake(t, port)
	before := port.written.Load()

	_, err := d.SetStartStop(testContext(t), 5_000_000_000, 6_200_000_000)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SetStartStop() error = %v, want ErrInvalidInput", err)
	}
	if _, err := d.SetSweepPoints(testContext(t), 1000); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("SetSweepPoints() error = %v, want ErrInvalidOperation", err)
	}
	if err := d.RfPowerOn(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("RfPowerOn() error = %v, want ErrInvalidOperation", err)
	}
	if err := d.SetBaudRate(12345); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetBaudRate() error = %v, want ErrInvalidInput", err)
	}

	if after := port.written.Load(); after != before {
		t.Errorf("%d bytes written by rejected commands, want 0", after-before)
	}
}

func TestDevice_SetSweepPoints(t *testing.T) {
	_, port := newFake(t, setup6GPlus, false)
	d := connectFake(t, port)

	cfg, err := d.SetSweepPoints(testContext(t), 1000)
	if err != nil {
		t.Fatalf("SetSweepPoints() error = %v", err)
	}
	if cfg.SweepPoints != 992 {
		t.Errorf("SweepPoints = %d, want 992", cfg.SweepPoints)
	}
}

func TestDevice_ActivateModule(t *testing.T) {
	f, port := newFake(t, setupWithExp, false)
	d := connectFake(t, port)

	if err := d.ActivateModule(testContext(t), false); err != nil {
		t.Fatalf("ActivateModule(main) error = %v", err)
	}
	eventually(t, "handshake commands", func() bool { return len(f.received()) >= 2 })
	for _, body := range f.received() {
		if strings.HasPrefix(body, "CM") {
			t.Errorf("ActivateModule(main) sent %q for the active module", body)
		}
	}

	if err := d.ActivateModule(testContext(t), true); err != nil {
		t.Fatalf("ActivateModule(exp) error = %v", err)
	}
	module, _ := d.ActiveModule()
	if module.Model != Model24G || !module.Expansion {
		t.Errorf("ActiveModule() = %v, want 2.4G expansion", module)
	}
}

func TestDevice_SetDspMode(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	if err := d.SetDspMode(testContext(t), DspModeFast); err != nil {
		t.Fatalf("SetDspMode() error = %v", err)
	}
	if mode, err := d.DspMode(); err != nil || mode != DspModeFast {
		t.Errorf("DspMode() = %v, %v, want Fast", mode, err)
	}
}

func TestDevice_SetDspModeAlreadyActive(t *testing.T) {
	f, port := newFake(t, setup6G, false)
	d := connectFake(t, port)
	eventually(t, "handshake commands", func() bool { return len(f.received()) >= 2 })

	if err := d.SetDspMode(testContext(t), DspModeFast); err != nil {
		t.Fatalf("SetDspMode() error = %v", err)
	}
	sent := len(f.received())
	f.mute()

	if err := d.SetDspMode(testContext(t), DspModeFast); err != nil {
		t.Fatalf("SetDspMode() again error = %v, want nil for the active mode", err)
	}
	if got := len(f.received()); got != sent {
		t.Errorf("%d commands sent for the active mode, want 0", got-sent)
	}
}

func TestDevice_SetConfigUnchanged(t *testing.T) {
	f, port := newFake(t, setup6G, false)
	d := connectFake(t, port)
	cfg, err := d.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	f.mute()

	got, err := d.SetConfig(testContext(t), cfg.StartHz, cfg.StopHz(), int(cfg.MinAmpDBm), int(cfg.MaxAmpDBm))
	if err != nil {
		t.Fatalf("SetConfig() error = %v, want the current config to confirm", err)
	}
	if got.StartHz != cfg.StartHz {
		t.Errorf("SetConfig() StartHz = %d, want %d", got.StartHz, cfg.StartHz)
	}
	eventually(t, "config command", func() bool {
		bodies := f.received()
		return strings.HasPrefix(bodies[len(bodies)-1], "C2-F:")
	})
}

func TestDevice_SetStartStopSweepPointsOrder(t *testing.T) {
	f, port := newFake(t, setup6GPlus, false)
	d := connectFake(t, port)
	eventually(t, "handshake commands", func() bool { return len(f.received()) >= 2 })
	sent := len(f.received())

	cfg, err := d.SetStartStopSweepPoints(testContext(t), 5_000_000_000, 5_100_000_000, 512)
	if err != nil {
		t.Fatalf("SetStartStopSweepPoints() error = %v", err)
	}
	if cfg.SweepPoints != 512 || cfg.MinAmpDBm != -118 || cfg.MaxAmpDBm != -30 {
		t.Errorf("SetStartStopSweepPoints() = %+v, want 512 points and -118..-30 dBm", cfg)
	}

	bodies := f.received()[sent:]
	if len(bodies) != 2 || !strings.HasPrefix(bodies[0], "CJ") || !strings.HasPrefix(bodies[1], "C2-F:") {
		t.Errorf("commands = %q, want sweep points then config", bodies)
	}
}

func TestDevice_RequestTracking(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	status, err := d.RequestTracking(testContext(t), 5_000_000_000, 100_000)
	if err != nil {
		t.Fatalf("RequestTracking() error = %v", err)
	}
	if status != TrackingEnabled {
		t.Errorf("RequestTracking() = %v, want Enabled", status)
	}
}

func TestDevice_GeneratorCommands(t *testing.T) {
	f, port := newFake(t, setupGeneratorEx, false)
	d := connectFake(t, port)

	if err := d.StartCwExp(1_000_000_000, -12.04); err != nil {
		t.Fatalf("StartCwExp() error = %v", err)
	}
	if err := d.RfPowerOff(); err != nil {
		t.Fatalf("RfPowerOff() error = %v", err)
	}
	eventually(t, "generator commands", func() bool { return len(f.received()) == 4 })

	got := f.received()[2:]
	want := []string{"C5-F:1000000,-12.0", "CP0"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDevice_SweepStream(t *testing.T) {
	f, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	callbackSweeps := make(chan Sweep, 8)
	d.SetCallback(CategorySweep, func(m Message) {
		select {
		case callbackSweeps <- m.(Sweep):
		default:
		}
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				if f.write(sweepRecord(samples(112, 0x50)...)) != nil {
					return
				}
			}
		}
	}()

	sweep, err := d.WaitForNextSweep(testContext(t), 0)
	if err != nil {
		t.Fatalf("WaitForNextSweep() error = %v", err)
	}
	if len(sweep.Amplitudes) != 112 {
		t.Fatalf("len(Amplitudes) = %d, want 112", len(sweep.Amplitudes))
	}
	if sweep.Amplitudes[0] != -40 {
		t.Errorf("Amplitudes[0] = %v, want -40", sweep.Amplitudes[0])
	}

	select {
	case <-callbackSweeps:
	case <-time.After(2 * time.Second):
		t.Error("sweep callback never ran")
	}

	if stats := d.Stats(); stats.Sweeps == 0 || stats.Configs == 0 {
		t.Errorf("Stats() = %d sweeps, %d configs, want both non-zero", stats.Sweeps, stats.Configs)
	}
}

func TestDevice_FrameHookAndTap(t *testing.T) {
	var mu sync.Mutex
	var tapped int
	var types []string

	_, port := newFake(t, setup6G, false)
	opts := testOptions()
	opts.Tap = func(chunk []byte) {
		mu.Lock()
		tapped += len(chunk)
		mu.Unlock()
	}
	opts.FrameHook = func(frame []byte, m Message) {
		mu.Lock()
		types = append(types, FormatMessageType(m))
		mu.Unlock()
	}

	d, err := Connect(testContext(t), port, opts)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer d.Close()

	mu.Lock()
	defer mu.Unlock()
	if tapped == 0 {
		t.Error("Tap saw no bytes")
	}
	if len(types) < 2 || types[0] != "ANALYZER_SETUP" || types[1] != "ANALYZER_CONFIG" {
		t.Errorf("FrameHook saw %v, want setup then config", types)
	}
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestDevice_CloseIsIdempotent(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d, err := Connect(testContext(t), port, testOptions())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	first := d.Close()
	second := d.Close()
	if first != second {
		t.Errorf("Close() = %v then %v, want the same result", first, second)
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done() not closed after Close")
	}
	if err := d.RequestConfig(); !errors.Is(err, ErrIO) {
		t.Errorf("RequestConfig() after Close error = %v, want ErrIO", err)
	}
}

func TestDevice_CloseReleasesWaiters(t *testing.T) {
	_, port := newFake(t, setup6G, false)
	d, err := Connect(testContext(t), port, testOptions())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := d.WaitForNextSweep(context.Background(), 10*time.Second)
		errc <- err
	}()
	waitForWaiters(t, d.disp, CategorySweep, 1)

	d.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrIO) {
			t.Errorf("WaitForNextSweep() error = %v, want ErrIO", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Close")
	}
}

func TestDevice_DisconnectStopsReader(t *testing.T) {
	f, port := newFake(t, setup6G, false)
	d := connectFake(t, port)

	f.conn.Close()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader still running after disconnect")
	}
	if !errors.Is(d.Err(), ErrIO) {
		t.Errorf("Err() = %v, want ErrIO", d.Err())
	}
	if _, err := d.WaitForNextSweep(context.Background(), time.Second); !errors.Is(err, ErrIO) {
		t.Errorf("WaitForNextSweep() error = %v, want ErrIO", err)
	}
}

func TestDevice_WaitIgnoresMessageAppliedBeforeCall(t *testing.T) {
	f, port := newFake(t, setup6G, false)

	var dev atomic.Pointer[Device]
	result := make(chan error, 1)
	opts := testOptions()
	opts.FrameHook = func(_ []byte, m Message) {
		d := dev.Load()
		if d == nil || m != DspModeFilter {
			return
		}
		// The message is already applied; a wait starting now must not see it
		go func() {
			_, err := d.WaitForNext(context.Background(), CategoryDspMode, 300*time.Millisecond)
			result <- err
		}()
		for deadline := time.Now().Add(time.Second); waiterCount(d.disp, CategoryDspMode) == 0 && time.Now().Before(deadline); {
			time.Sleep(time.Millisecond)
		}
	}

	d, err := Connect(testContext(t), port, opts)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer d.Close()
	dev.Store(d)

	if err := f.writeLine("DSP:1"); err != nil {
		t.Fatalf("write DSP:1: %v", err)
	}
	select {
	case err := <-result:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("WaitForNext() error = %v, want ErrTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForNext() never returned")
	}
}
