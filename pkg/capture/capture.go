// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records the raw byte stream read from a device and replays
// it later as a transport.Port. Captures hold wire chunks with their arrival
// offsets, in CBOR or Parquet files.
package capture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Chunk is one read from the port.
type Chunk struct {
	// At is the offset from the start of the capture.
	At   time.Duration
	Data []byte
}

// Metadata describes where a capture came from.
type Metadata struct {
	Port    string
	Baud    int
	Started time.Time
}

// Format selects the on-disk encoding.
type Format int

const (
	FormatCBOR Format = iota
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return FormatCBOR, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return 0, fmt.Errorf("unknown capture extension %q (use .cbor or .parquet)", filepath.Ext(path))
	}
}

// Writer stores chunks in some encoding.
type Writer interface {
	WriteChunk(Chunk) error
	Close() error
}

// Recorder timestamps chunks and hands them to a Writer. Tap matches the
// device read hook, so a Recorder can be installed as rfe.Options.Tap.
type Recorder struct {
	mu     sync.Mutex
	w      Writer
	start  time.Time
	now    func() time.Time
	chunks int
	bytes  int64
	err    error
	closed bool
}

// NewRecorder starts a capture at start.
func NewRecorder(w Writer, start time.Time) *Recorder {
	return &Recorder{w: w, start: start, now: time.Now}
}

// Create opens path and starts a capture in the format its extension names.
func Create(path string, meta Metadata) (*Recorder, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if meta.Started.IsZero() {
		meta.Started = time.Now()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture: %w", err)
	}

	var w Writer
	switch format {
	case FormatParquet:
		w = NewParquetWriter(f, meta)
	default:
		w, err = NewCBORWriter(f, meta)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return NewRecorder(w, meta.Started), nil
}

// Tap records a copy of chunk. The first write error stops recording and is
// reported by Err and Close.
func (r *Recorder) Tap(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	c := Chunk{At: r.now().Sub(r.start), Data: bytes.Clone(chunk)}
	if err := r.w.WriteChunk(c); err != nil {
		r.err = err
		return
	}
	r.chunks++
	r.bytes += int64(len(chunk))
}

// Counts returns the number of chunks and bytes recorded.
func (r *Recorder) Counts() (chunks int, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks, r.bytes
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes and closes the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true
	if err := r.w.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// Load reads a capture file in the format its extension names.
func Load(path string) (Metadata, []Chunk, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Metadata{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	if format == FormatParquet {
		info, err := f.Stat()
		if err != nil {
			return Metadata{}, nil, err
		}
		return ReadParquet(f, info.Size())
	}
	return ReadCBOR(f)
}

// Concat joins the data of all chunks.
func Concat(chunks []Chunk) []byte {
	var n int
	for _, c := range chunks {
		n += len(c.Data)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
