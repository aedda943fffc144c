// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"bytes"
	"encoding/binary"
)

var crlf = []byte{'\r', '\n'}

const frameStarts = "#$D\r\n"

// Framer splits the device byte stream into frames. ASCII records end at
// CRLF; binary records ($S, $s, $z, $D) are length prefixed and may contain
// CRLF in their payload.
type Framer struct {
	buffer      []byte
	maxFrameLen int
	discarded   uint64
	eeotDrops   uint64
	oversized   uint64
}

// NewFramer creates a framer with DefaultMaxFrameLen.
func NewFramer() *Framer {
	return &Framer{
		buffer:      make([]byte, 0, 4096),
		maxFrameLen: DefaultMaxFrameLen,
	}
}

// SetMaxFrameLen sets the longest frame the framer will wait for.
func (f *Framer) SetMaxFrameLen(n int) {
	if n <= 0 {
		n = DefaultMaxFrameLen
	}
	f.maxFrameLen = n
}

// Reset drops any buffered bytes. Counters are kept.
func (f *Framer) Reset() {
	f.buffer = f.buffer[:0]
}

// Write buffers p. Frames are extracted with Next. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buffer = append(f.buffer, p...)
	return len(p), nil
}

// Push buffers p and returns every frame completed by it.
func (f *Framer) Push(p []byte) [][]byte {
	f.Write(p)
	var frames [][]byte
	for {
		frame, ok := f.Next()
		if !ok {
			return frames
		}
		frames = append(frames, frame)
	}
}

// Pending returns the buffered bytes that do not yet form a frame.
func (f *Framer) Pending() []byte {
	return f.buffer
}

// Discarded returns the number of bytes dropped while resynchronizing.
func (f *Framer) Discarded() uint64 {
	return f.discarded
}

// EEOTDrops returns the number of partial records aborted by the EEOT marker.
func (f *Framer) EEOTDrops() uint64 {
	return f.eeotDrops
}

// Oversized returns the number of records abandoned for exceeding the
// maximum frame length.
func (f *Framer) Oversized() uint64 {
	return f.oversized
}

// Next extracts the next complete frame. The returned slice is owned by the
// caller. It returns false when more bytes are needed.
func (f *Framer) Next() ([]byte, bool) {
	for len(f.buffer) > 0 {
		switch f.buffer[0] {
		case ASCIIStart:
			frame, state := f.line()
			if state == scanWait {
				return nil, false
			}
			if state == scanFrame {
				return frame, true
			}
		case BinaryStart:
			frame, state := f.binary()
			if state == scanWait {
				return nil, false
			}
			if state == scanFrame {
				return frame, true
			}
		case DspStart:
			n := min(len(f.buffer), len(PrefixDspMode))
			if !bytes.Equal(f.buffer[:n], []byte(PrefixDspMode)[:n]) {
				f.drop(1)
				continue
			}
			if n < len(PrefixDspMode) {
				return nil, false
			}
			frame, state := f.line()
			if state == scanWait {
				return nil, false
			}
			if state == scanFrame {
				return frame, true
			}
		case '\r', '\n':
			// Terminators left behind by binary records
			f.consume(1)
		default:
			skip := bytes.IndexAny(f.buffer, frameStarts)
			if skip < 0 {
				skip = len(f.buffer)
			}
			f.drop(skip)
		}
	}
	return nil, false
}

type scanState int

const (
	scanWait scanState = iota
	scanFrame
	scanResync
)

// line extracts a CRLF terminated record starting at buffer[0].
func (f *Framer) line() ([]byte, scanState) {
	end := bytes.Index(f.buffer, crlf)
	if end < 0 {
		if len(f.buffer) > f.maxFrameLen {
			f.oversized++
			f.drop(1)
			return nil, scanResync
		}
		return nil, scanWait
	}
	if end > f.maxFrameLen {
		f.oversized++
		f.drop(1)
		return nil, scanResync
	}
	// A frame start inside the record means its tail was lost; resync on it.
	if restart := bytes.IndexAny(f.buffer[1:end], "#$"); restart >= 0 {
		f.drop(restart + 1)
		return nil, scanResync
	}
	frame := f.take(end)
	f.consume(len(crlf))
	return frame, scanFrame
}

// binary extracts a length prefixed record starting at buffer[0].
func (f *Framer) binary() ([]byte, scanState) {
	if len(f.buffer) < 2 {
		return nil, scanWait
	}

	var header, payload int
	switch f.buffer[1] {
	case 'S':
		if len(f.buffer) < 3 {
			return nil, scanWait
		}
		header, payload = 3, int(f.buffer[2])
	case 's':
		if len(f.buffer) < 3 {
			return nil, scanWait
		}
		header, payload = 3, (int(f.buffer[2])+1)*sweepPointsStep
	case 'z':
		if len(f.buffer) < 4 {
			return nil, scanWait
		}
		header, payload = 4, int(binary.BigEndian.Uint16(f.buffer[2:4]))
	case 'D':
		header, payload = 2, ScreenDataLen
	default:
		return f.line()
	}

	total := header + payload
	if total > f.maxFrameLen {
		f.oversized++
		f.drop(1)
		return nil, scanResync
	}
	// The payload is checked for EEOT whether or not it is complete, so the
	// outcome does not depend on how the stream was chunked.
	end := min(len(f.buffer), total)
	if i := bytes.Index(f.buffer[header:end], eeotMarker); i >= 0 {
		f.eeotDrops++
		f.drop(header + i + len(eeotMarker))
		return nil, scanResync
	}
	if len(f.buffer) < total {
		return nil, scanWait
	}
	return f.take(total), scanFrame
}

// take removes and returns a copy of the first n buffered bytes.
func (f *Framer) take(n int) []byte {
	frame := make([]byte, n)
	copy(frame, f.buffer[:n])
	f.consume(n)
	return frame
}

func (f *Framer) drop(n int) {
	f.discarded += uint64(n)
	f.consume(n)
}

func (f *Framer) consume(n int) {
	rest := copy(f.buffer, f.buffer[n:])
	f.buffer = f.buffer[:rest]
}
