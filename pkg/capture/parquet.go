// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/segmentio/parquet-go"
)

// Key-value metadata keys in a Parquet capture footer.
const (
	parquetKeyPort    = "rfestat.port"
	parquetKeyBaud    = "rfestat.baud"
	parquetKeyStarted = "rfestat.started"
)

// parquetRow is one chunk as a Parquet row.
type parquetRow struct {
	AtNanos int64  `parquet:"at_ns"`
	Data    []byte `parquet:"data"`
}

// ParquetWriter stores chunks as rows of a Parquet file. Rows are buffered
// and the file is only readable after Close.
type ParquetWriter struct {
	writer *parquet.GenericWriter[parquetRow]
	out    io.Writer
}

// NewParquetWriter creates a Parquet writer with the capture metadata in the
// file footer. If w is an io.Closer it is closed by Close.
func NewParquetWriter(w io.Writer, meta Metadata) *ParquetWriter {
	return &ParquetWriter{
		writer: parquet.NewGenericWriter[parquetRow](w,
			parquet.KeyValueMetadata(parquetKeyPort, meta.Port),
			parquet.KeyValueMetadata(parquetKeyBaud, strconv.Itoa(meta.Baud)),
			parquet.KeyValueMetadata(parquetKeyStarted, strconv.FormatInt(meta.Started.UnixNano(), 10)),
		),
		out: w,
	}
}

// WriteChunk implements Writer.
func (p *ParquetWriter) WriteChunk(c Chunk) error {
	if _, err := p.writer.Write([]parquetRow{{AtNanos: int64(c.At), Data: c.Data}}); err != nil {
		return fmt.Errorf("failed to write capture row: %w", err)
	}
	return nil
}

// Close implements Writer.
func (p *ParquetWriter) Close() error {
	err := p.writer.Close()
	if closer, ok := p.out.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadParquet reads a Parquet capture of the given size.
func ReadParquet(r io.ReaderAt, size int64) (Metadata, []Chunk, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("failed to open parquet capture: %w", err)
	}

	var meta Metadata
	meta.Port, _ = f.Lookup(parquetKeyPort)
	if v, ok := f.Lookup(parquetKeyBaud); ok {
		meta.Baud, _ = strconv.Atoi(v)
	}
	if v, ok := f.Lookup(parquetKeyStarted); ok {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.Started = time.Unix(0, ns)
		}
	}

	reader := parquet.NewGenericReader[parquetRow](io.NewSectionReader(r, 0, size))
	defer reader.Close()

	chunks := make([]Chunk, 0, reader.NumRows())
	rows := make([]parquetRow, 64)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			// The reader reuses row buffers between calls
			chunks = append(chunks, Chunk{At: time.Duration(row.AtNanos), Data: bytes.Clone(row.Data)})
		}
		if errors.Is(err, io.EOF) {
			return meta, chunks, nil
		}
		if err != nil {
			return meta, chunks, fmt.Errorf("failed to read capture rows: %w", err)
		}
		if n == 0 {
			return meta, chunks, nil
		}
	}
}
