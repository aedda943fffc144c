// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rfebind adapts the rfe engine to a foreign-function boundary:
// devices are referenced by opaque handles, variable-length results are
// copied into caller buffers with a required-length report, and callbacks
// carry an opaque user-data word.
package rfebind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// ErrContract reports a violation of the calling contract: a zero, unknown
// or released handle, or a nil buffer or callback.
var ErrContract = errors.New("rfebind: contract violation")

// BufferError reports a caller buffer too small for the result. It matches
// rfe.ErrInvalidInput.
type BufferError struct {
	Required int
	Got      int
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("buffer too small: need %d, got %d", e.Required, e.Got)
}

// Is matches rfe.ErrInvalidInput.
func (e *BufferError) Is(target error) bool {
	return target == rfe.ErrInvalidInput
}

// Result is the numeric status returned across the boundary.
type Result int32

const (
	ResultSuccess Result = iota
	ResultIncompatibleFirmware
	ResultInvalidInput
	ResultInvalidOperation
	ResultIO
	ResultNoData
	ResultContract
	ResultTimeout
)

// ResultOf maps an error to its Result. Errors of no known kind map to
// ResultIO.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrContract):
		return ResultContract
	case errors.Is(err, rfe.ErrIncompatibleFirmware):
		return ResultIncompatibleFirmware
	case errors.Is(err, rfe.ErrInvalidInput):
		return ResultInvalidInput
	case errors.Is(err, rfe.ErrInvalidOperation):
		return ResultInvalidOperation
	case errors.Is(err, rfe.ErrNoData):
		return ResultNoData
	case errors.Is(err, rfe.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	default:
		return ResultIO
	}
}

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultIncompatibleFirmware:
		return "incompatible firmware"
	case ResultInvalidInput:
		return "invalid input"
	case ResultInvalidOperation:
		return "invalid operation"
	case ResultIO:
		return "i/o error"
	case ResultNoData:
		return "no data"
	case ResultContract:
		return "contract violation"
	case ResultTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Result(%d)", int32(r))
	}
}

// Device is the part of *rfe.Device the boundary exposes.
type Device interface {
	Identity() (rfe.Identity, error)
	Sweep() (rfe.Sweep, error)
	WaitForNextSweep(ctx context.Context, timeout time.Duration) (rfe.Sweep, error)
	SetCallback(c rfe.Category, cb rfe.Callback) error
	RemoveCallback(c rfe.Category) error
	Close() error
}

var _ Device = (*rfe.Device)(nil)
