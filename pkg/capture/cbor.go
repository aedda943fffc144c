// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// cborMagic identifies the header item of a CBOR capture stream.
const cborMagic = "rfestat-capture"

const cborVersion = 1

// A CBOR capture is a sequence of top-level items: one header map followed
// by one map per chunk. Integer keys keep chunks small.
type cborHeader struct {
	Magic   string `cbor:"1,keyasint"`
	Version uint   `cbor:"2,keyasint"`
	Port    string `cbor:"3,keyasint,omitempty"`
	Baud    int    `cbor:"4,keyasint,omitempty"`
	Started int64  `cbor:"5,keyasint"`
}

type cborChunk struct {
	At   int64  `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// CBORWriter streams chunks as CBOR items.
type CBORWriter struct {
	enc *cbor.Encoder
	out io.Writer
}

// NewCBORWriter writes the header and returns a writer for the chunks. If w
// is an io.Closer it is closed by Close.
func NewCBORWriter(w io.Writer, meta Metadata) (*CBORWriter, error) {
	enc := cbor.NewEncoder(w)
	h := cborHeader{
		Magic:   cborMagic,
		Version: cborVersion,
		Port:    meta.Port,
		Baud:    meta.Baud,
		Started: meta.Started.UnixNano(),
	}
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CBORWriter{enc: enc, out: w}, nil
}

// WriteChunk implements Writer.
func (c *CBORWriter) WriteChunk(ch Chunk) error {
	if err := c.enc.Encode(cborChunk{At: int64(ch.At), Data: ch.Data}); err != nil {
		return fmt.Errorf("failed to write capture chunk: %w", err)
	}
	return nil
}

// Close implements Writer.
func (c *CBORWriter) Close() error {
	if closer, ok := c.out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadCBOR decodes a CBOR capture stream. A stream cut off inside an item
// returns the chunks before it together with the error.
func ReadCBOR(r io.Reader) (Metadata, []Chunk, error) {
	dec := cbor.NewDecoder(r)

	var h cborHeader
	if err := dec.Decode(&h); err != nil {
		return Metadata{}, nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if h.Magic != cborMagic {
		return Metadata{}, nil, fmt.Errorf("not a capture stream (magic %q)", h.Magic)
	}
	if h.Version != cborVersion {
		return Metadata{}, nil, fmt.Errorf("unsupported capture version %d", h.Version)
	}
	meta := Metadata{Port: h.Port, Baud: h.Baud, Started: time.Unix(0, h.Started)}

	var chunks []Chunk
	for {
		var c cborChunk
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return meta, chunks, nil
		}
		if err != nil {
			return meta, chunks, fmt.Errorf("failed to read chunk %d: %w", len(chunks), err)
		}
		chunks = append(chunks, Chunk{At: time.Duration(c.At), Data: c.Data})
	}
}
