// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per Kind. Match with errors.Is.
var (
	ErrIncompatibleFirmware = errors.New("incompatible firmware")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrIO                   = errors.New("i/o failure")
	ErrNoData               = errors.New("no data received")
	ErrTimeout              = errors.New("timed out")
)

// Kind classifies an Error.
type Kind int

const (
	KindIncompatibleFirmware Kind = iota + 1
	KindInvalidInput
	KindInvalidOperation
	KindIO
	KindNoData
	KindTimeout
)

func (k Kind) sentinel() error {
	switch k {
	case KindIncompatibleFirmware:
		return ErrIncompatibleFirmware
	case KindInvalidInput:
		return ErrInvalidInput
	case KindInvalidOperation:
		return ErrInvalidOperation
	case KindIO:
		return ErrIO
	case KindNoData:
		return ErrNoData
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by device operations.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func invalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalidOperation(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidOperation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func ioError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func noData(op string) error {
	return &Error{Kind: KindNoData, Op: op}
}

func timeoutError(op string, after fmt.Stringer) error {
	return &Error{Kind: KindTimeout, Op: op, Msg: "after " + after.String()}
}
