// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/rfestat/pkg/transport"
)

// ReplayOptions controls how a capture is played back.
type ReplayOptions struct {
	// Speed scales the recorded timing (1 is real time). Zero delivers
	// chunks as fast as they are read.
	Speed float64
	// EOF makes Read return io.EOF after the last chunk. Otherwise the port
	// stays open and silent, like an idle device.
	EOF bool
}

// ReplayPort plays a capture back as a transport.Port. Writes are recorded
// and otherwise ignored.
type ReplayPort struct {
	opts        ReplayOptions
	readTimeout atomic.Int64
	done        chan struct{}
	closeOnce   sync.Once

	mu      sync.Mutex
	chunks  []Chunk
	next    int
	pending []byte
	start   time.Time

	writeMu sync.Mutex
	written [][]byte
}

var _ transport.Port = (*ReplayPort)(nil)

// NewReplayPort returns a port that yields chunks in order.
func NewReplayPort(chunks []Chunk, opts ReplayOptions) *ReplayPort {
	return &ReplayPort{
		opts:   opts,
		chunks: chunks,
		done:   make(chan struct{}),
	}
}

// OpenReplay loads a capture file into a ReplayPort.
func OpenReplay(path string, opts ReplayOptions) (*ReplayPort, Metadata, error) {
	meta, chunks, err := Load(path)
	if err != nil {
		return nil, meta, err
	}
	return NewReplayPort(chunks, opts), meta, nil
}

func (r *ReplayPort) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return 0, transport.ErrClosed
	default:
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	timeout := time.Duration(r.readTimeout.Load())
	if r.next >= len(r.chunks) {
		if r.opts.EOF {
			return 0, io.EOF
		}
		return 0, r.idle(timeout)
	}

	if r.start.IsZero() {
		r.start = time.Now()
	}
	if r.opts.Speed > 0 {
		due := r.start.Add(time.Duration(float64(r.chunks[r.next].At) / r.opts.Speed))
		if wait := time.Until(due); wait > 0 {
			if timeout > 0 && wait > timeout {
				return 0, r.sleep(timeout)
			}
			if err := r.sleep(wait); err != nil {
				return 0, err
			}
		}
	}

	c := r.chunks[r.next]
	r.next++
	n := copy(p, c.Data)
	r.pending = c.Data[n:]
	return n, nil
}

// idle blocks like a silent device: for the read timeout if one is set,
// otherwise until Close.
func (r *ReplayPort) idle(timeout time.Duration) error {
	if timeout > 0 {
		return r.sleep(timeout)
	}
	<-r.done
	return transport.ErrClosed
}

func (r *ReplayPort) sleep(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-r.done:
		return transport.ErrClosed
	}
}

func (r *ReplayPort) Write(p []byte) (int, error) {
	select {
	case <-r.done:
		return 0, transport.ErrClosed
	default:
	}
	r.writeMu.Lock()
	r.written = append(r.written, bytes.Clone(p))
	r.writeMu.Unlock()
	return len(p), nil
}

// Written returns the commands written to the port.
func (r *ReplayPort) Written() [][]byte {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	out := make([][]byte, len(r.written))
	copy(out, r.written)
	return out
}

// Remaining reports the number of chunks not yet read.
func (r *ReplayPort) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks) - r.next
}

// SetReadTimeout implements transport.ReadTimeoutSetter.
func (r *ReplayPort) SetReadTimeout(d time.Duration) error {
	r.readTimeout.Store(int64(d))
	return nil
}

func (r *ReplayPort) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}
