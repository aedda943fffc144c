// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfebind

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/rfestat/pkg/rfe"
)

// FillSweep copies s into buf. required is always the sample count; when
// buf is shorter nothing is written and a *BufferError is returned. A nil
// buf is a contract violation; an empty non-nil buf queries the length.
func FillSweep(buf []float32, s rfe.Sweep) (written, required int, err error) {
	if buf == nil {
		return 0, 0, fmt.Errorf("%w: nil buffer", ErrContract)
	}
	required = len(s.Amplitudes)
	if len(buf) < required {
		return 0, required, &BufferError{Required: required, Got: len(buf)}
	}
	return copy(buf, s.Amplitudes), required, nil
}

// FillString copies s into buf followed by a NUL byte. required counts the
// terminator. Strings holding a NUL are truncated at it.
func FillString(buf []byte, s string) (written, required int, err error) {
	if buf == nil {
		return 0, 0, fmt.Errorf("%w: nil buffer", ErrContract)
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	required = len(s) + 1
	if len(buf) < required {
		return 0, required, &BufferError{Required: required, Got: len(buf)}
	}
	n := copy(buf, s)
	buf[n] = 0
	return n + 1, required, nil
}
