// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfebind

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// Handle is an opaque device reference. Zero is never issued.
type Handle uint64

// SweepFunc receives sweeps across the boundary. The amplitudes slice is
// only valid for the duration of the call.
type SweepFunc func(amplitudes []float32, timestampMs int64, userData uintptr)

// MessageFunc receives messages of one category across the boundary.
type MessageFunc func(m rfe.Message, userData uintptr)

// Registry maps handles to devices. Handles are never reused.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	devices map[Handle]Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[Handle]Device)}
}

// Register takes ownership of d and returns its handle.
func (r *Registry) Register(d Device) (Handle, error) {
	if d == nil {
		return 0, fmt.Errorf("%w: nil device", ErrContract)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.devices[r.next] = d
	return r.next, nil
}

// RegisterAll registers each device and returns the handles in order.
func (r *Registry) RegisterAll(devices []*rfe.Device) []Handle {
	out := make([]Handle, 0, len(devices))
	for _, d := range devices {
		if h, err := r.Register(d); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// Device resolves a handle.
func (r *Registry) Device(h Handle) (Device, error) {
	if h == 0 {
		return nil, fmt.Errorf("%w: null handle", ErrContract)
	}
	r.mu.RLock()
	d, ok := r.devices[h]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown or released handle %d", ErrContract, h)
	}
	return d, nil
}

// Release closes the device and invalidates the handle.
func (r *Registry) Release(h Handle) error {
	if h == 0 {
		return fmt.Errorf("%w: null handle", ErrContract)
	}
	r.mu.Lock()
	d, ok := r.devices[h]
	delete(r.devices, h)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown or released handle %d", ErrContract, h)
	}
	return d.Close()
}

// Handles lists the live handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	out := make([]Handle, 0, len(r.devices))
	for h := range r.devices {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReleaseAll releases every handle.
func (r *Registry) ReleaseAll() {
	for _, h := range r.Handles() {
		r.Release(h)
	}
}

// ============================================================================
// Buffer fills
// ============================================================================

// SweepLength reports the number of samples in the latest sweep.
func (r *Registry) SweepLength(h Handle) (int, error) {
	d, err := r.Device(h)
	if err != nil {
		return 0, err
	}
	s, err := d.Sweep()
	if err != nil {
		return 0, err
	}
	return len(s.Amplitudes), nil
}

// FillSweep copies the latest sweep into buf.
func (r *Registry) FillSweep(h Handle, buf []float32) (written, required int, err error) {
	d, err := r.Device(h)
	if err != nil {
		return 0, 0, err
	}
	s, err := d.Sweep()
	if err != nil {
		return 0, 0, err
	}
	return FillSweep(buf, s)
}

// FillNextSweep waits for the next sweep and copies it into buf. A zero
// timeout selects the device default.
func (r *Registry) FillNextSweep(ctx context.Context, h Handle, timeout time.Duration, buf []float32) (written, required int, err error) {
	if buf == nil {
		return 0, 0, fmt.Errorf("%w: nil buffer", ErrContract)
	}
	d, err := r.Device(h)
	if err != nil {
		return 0, 0, err
	}
	s, err := d.WaitForNextSweep(ctx, timeout)
	if err != nil {
		return 0, 0, err
	}
	return FillSweep(buf, s)
}

// FillFirmware copies the firmware version as a NUL-terminated string.
func (r *Registry) FillFirmware(h Handle, buf []byte) (written, required int, err error) {
	d, err := r.Device(h)
	if err != nil {
		return 0, 0, err
	}
	id, err := d.Identity()
	if err != nil {
		return 0, 0, err
	}
	return FillString(buf, id.Firmware)
}

// FillSerialNumber copies the serial number as a NUL-terminated string.
func (r *Registry) FillSerialNumber(h Handle, buf []byte) (written, required int, err error) {
	d, err := r.Device(h)
	if err != nil {
		return 0, 0, err
	}
	id, err := d.Identity()
	if err != nil {
		return 0, 0, err
	}
	if id.SerialNumber == "" {
		return 0, 0, &rfe.Error{Kind: rfe.KindNoData, Op: "serial number"}
	}
	return FillString(buf, string(id.SerialNumber))
}

// ============================================================================
// Callbacks
// ============================================================================

// SetCallback registers fn for category c, replacing any earlier one.
func (r *Registry) SetCallback(h Handle, c rfe.Category, fn MessageFunc, userData uintptr) error {
	if fn == nil {
		return fmt.Errorf("%w: nil callback", ErrContract)
	}
	d, err := r.Device(h)
	if err != nil {
		return err
	}
	return d.SetCallback(c, func(m rfe.Message) { fn(m, userData) })
}

// SetSweepCallback registers fn for sweeps.
func (r *Registry) SetSweepCallback(h Handle, fn SweepFunc, userData uintptr) error {
	if fn == nil {
		return fmt.Errorf("%w: nil callback", ErrContract)
	}
	return r.SetCallback(h, rfe.CategorySweep, func(m rfe.Message, userData uintptr) {
		if s, ok := m.(rfe.Sweep); ok {
			fn(s.Amplitudes, s.Timestamp.UnixMilli(), userData)
		}
	}, userData)
}

// RemoveCallback unregisters the callback for c. No invocation starts after
// it returns.
func (r *Registry) RemoveCallback(h Handle, c rfe.Category) error {
	d, err := r.Device(h)
	if err != nil {
		return err
	}
	return d.RemoveCallback(c)
}
