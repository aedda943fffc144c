// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling RF Explorers",
	Long: `Control RF Explorer analyzers and generators via an interactive terminal UI.

Without --port, --url or --tcp every CP210x port is probed and each RF
Explorer found is listed. Commands typed into the command line are
validated against the selected device and sent to it; the language is the
one of 'rfestat encode' (type 'help' for the list).

Features:
  - Device discovery on every serial port
  - Live sweep peak and configuration display
  - Command line with per-device validation
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the device list and the command line. Arrow keys
navigate the device list.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// dialFunc connects one device again after a loss.
type dialFunc func(ctx context.Context) (*rfe.Device, string, error)

// managedDevice is one device and the way to reach it again.
type managedDevice struct {
	device *rfe.Device
	info   string
	dial   dialFunc
}

// connectionManager handles device lifecycles and reconnection
type connectionManager struct {
	opts    rfe.Options
	mu      sync.RWMutex
	devices map[string]*managedDevice
	p       *tea.Program
	ctx     context.Context
	events  chan controlEvent
	wg      sync.WaitGroup
}

// controlEvent is a message from one device.
type controlEvent struct {
	port    string
	message rfe.Message
}

func newConnectionManager(ctx context.Context, opts rfe.Options) *connectionManager {
	return &connectionManager{
		opts:    opts,
		devices: make(map[string]*managedDevice),
		ctx:     ctx,
		events:  make(chan controlEvent, 256),
	}
}

// device returns the connected device on port, or nil.
func (cm *connectionManager) device(port string) *rfe.Device {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if md, ok := cm.devices[port]; ok {
		return md.device
	}
	return nil
}

func (cm *connectionManager) setDevice(port string, d *rfe.Device) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if md, ok := cm.devices[port]; ok {
		md.device = d
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts, err := engineOptions()
	if err != nil {
		return err
	}

	cm := newConnectionManager(ctx, opts)
	m := initialControlModel(cm)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.discover()
	go cm.batchLoop()

	_, err = p.Run()
	cancel()
	cm.closeAll()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// discover connects the devices the flags select and reports each one.
func (cm *connectionManager) discover() {
	found := 0
	defer func() { cm.p.Send(discoveryCompleteMsg{count: found}) }()

	if wsURL != "" || tcpAddress != "" || portName != "" {
		dial := func(ctx context.Context) (*rfe.Device, string, error) {
			return connectDevice(ctx, cm.opts)
		}
		d, info, err := dial(cm.ctx)
		if err != nil {
			cm.p.Send(discoveryErrorMsg{err: err})
			return
		}
		cm.add(d, info, dial)
		found++
		return
	}

	devices, err := rfe.ConnectAll(cm.ctx, cm.opts)
	if err != nil {
		cm.p.Send(discoveryErrorMsg{err: err})
		return
	}
	for _, d := range devices {
		name := d.Name()
		dial := func(ctx context.Context) (*rfe.Device, string, error) {
			d, err := rfe.Open(ctx, name, cm.opts)
			if err != nil {
				return nil, "", err
			}
			return d, fmt.Sprintf("Serial: %s @ %d baud", name, d.BaudRate()), nil
		}
		cm.add(d, fmt.Sprintf("Serial: %s @ %d baud", name, d.BaudRate()), dial)
		found++
	}
}

// add registers a connected device and starts watching it.
func (cm *connectionManager) add(d *rfe.Device, info string, dial dialFunc) {
	port := d.Name()
	cm.mu.Lock()
	cm.devices[port] = &managedDevice{device: d, info: info, dial: dial}
	cm.mu.Unlock()

	cm.subscribe(port, d)
	cm.p.Send(deviceFoundMsg{port: port, info: info, identity: identityOf(d)})

	cm.wg.Add(1)
	go cm.watch(port, d)
}

func identityOf(d *rfe.Device) rfe.Identity {
	id, _ := d.Identity()
	return id
}

// subscribe forwards every message of d to the batch loop. The callbacks
// run on the device reader and never block.
func (cm *connectionManager) subscribe(port string, d *rfe.Device) {
	for _, c := range rfe.Categories() {
		if c == rfe.CategoryScreenData {
			continue
		}
		_ = d.SetCallback(c, func(m rfe.Message) {
			if s, ok := m.(rfe.Sweep); ok {
				m = s.Clone()
			}
			select {
			case cm.events <- controlEvent{port: port, message: m}:
			default:
			}
		})
	}
}

// watch waits for d to stop and reconnects it unless shutting down.
func (cm *connectionManager) watch(port string, d *rfe.Device) {
	defer cm.wg.Done()
	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-d.Done():
		}

		cm.p.Send(connectionLostMsg{port: port, err: d.Err()})
		d.Close()

		next, info, ok := cm.reconnect(port)
		if !ok {
			return // Shutdown requested during reconnect
		}
		d = next
		cm.setDevice(port, d)
		cm.subscribe(port, d)
		cm.p.Send(reconnectedMsg{port: port, info: info, identity: identityOf(d)})
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect(port string) (*rfe.Device, string, bool) {
	cm.mu.RLock()
	dial := cm.devices[port].dial
	cm.mu.RUnlock()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return nil, "", false
		case <-time.After(backoff):
		}

		d, info, err := dial(cm.ctx)
		if err == nil {
			return d, info, true
		}
		logger.Debug().Err(err).Str("port", port).Dur("backoff", backoff).Msg("Reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// batchLoop sends queued device events to the TUI at a fixed rate.
func (cm *connectionManager) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			var batch controlBatchMsg

			// Drain all available events
		drainLoop:
			for {
				select {
				case ev := <-cm.events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}

			if len(batch.events) > 0 {
				cm.p.Send(batch)
			}
		}
	}
}

// closeAll closes every device after the watchers have stopped.
func (cm *connectionManager) closeAll() {
	cm.wg.Wait()
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for port, md := range cm.devices {
		if md.device == nil {
			continue
		}
		if err := md.device.Close(); err != nil {
			logger.Debug().Err(err).Str("port", port).Msg("Close failed")
		}
	}
}
