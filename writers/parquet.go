//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of EmpClean.
//
// EmpClean is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EmpClean is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with EmpClean. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "write_batch", "append_value", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// SalaryPrecision and SalaryScale describe the decimal type of the salary column.
const (
	SalaryPrecision = 12
	SalaryScale     = 2
)

// EmployeeSchema is the Arrow schema of the clean dataset. Every column is nullable so that a
// missing salary, birth date, age or manager survives the round trip as null.
func EmployeeSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(employee.Columns))
	for i, name := range employee.Columns {
		fields[i] = arrow.Field{Name: name, Type: columnType(name), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func columnType(name string) arrow.DataType {
	switch name {
	case employee.ColEmployeeID, employee.ColManagerID, employee.ColAge:
		return arrow.PrimitiveTypes.Int64
	case employee.ColTenureYears:
		return arrow.PrimitiveTypes.Float64
	case employee.ColSalary:
		return &arrow.Decimal128Type{Precision: SalaryPrecision, Scale: SalaryScale}
	case employee.ColHireDate, employee.ColBirthDate:
		return arrow.FixedWidthTypes.Date32
	case employee.ColCreatedAt, employee.ColUpdatedAt:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
}

// WriterStats holds statistics about the Parquet writer.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	return result
}

// ParquetWriter implements core.DataSink for Parquet output with the fixed employee schema.
// The file writer is created up front, so closing a writer that saw no records still
// produces a valid file with the schema and zero rows.
type ParquetWriter struct {
	mu           sync.Mutex
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	builder      *array.RecordBuilder
	recordBuffer []core.Record
	opts         *ParquetWriterOptions
	stats        WriterStats
	closed       bool
	errorState   bool
}

// NewParquetWriter creates a Parquet writer on w. Closing the writer closes w.
func NewParquetWriter(w io.WriteCloser, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	schema := EmployeeSchema()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, &ParquetWriterError{Op: "create_writer", Err: err}
	}

	return &ParquetWriter{
		writer:       fw,
		schema:       schema,
		builder:      array.NewRecordBuilder(memory.NewGoAllocator(), schema),
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		opts:         opts,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		stats.NullValueCounts[k] = v
	}
	return stats
}

// Write implements the core.DataSink interface. Records are buffered and written in batches.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &ParquetWriterError{Op: "write", Err: err}
	}
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if err := p.flushBatch(); err != nil {
		p.errorState = true
		return err
	}
	return nil
}

// Close implements the core.DataSink interface. It flushes, writes the footer and closes the
// underlying writer.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	defer p.builder.Release()

	flushErr := p.flushBatch()
	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: err}
	}
	return flushErr
}

// flushBatch writes the buffered records as one Arrow record batch (must hold mutex).
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	start := time.Now()

	for _, record := range p.recordBuffer {
		for i, field := range p.schema.Fields() {
			value := record[field.Name]
			if value == nil {
				p.builder.Field(i).AppendNull()
				p.stats.NullValueCounts[field.Name]++
				continue
			}
			if err := appendValue(p.builder.Field(i), value); err != nil {
				// Leave the builders empty for the next batch.
				p.builder.NewRecord().Release()
				return &ParquetWriterError{Op: "append_value", Err: fmt.Errorf("field %s: %w", field.Name, err)}
			}
		}
	}

	rec := p.builder.NewRecord()
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue converts a sink value into the column's Arrow representation.
// Dates and timestamps arrive as text, see employee.CleanRecord.Record.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.Int64Builder:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		b.Append(v)
	case *array.Float64Builder:
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		b.Append(v)
	case *array.Decimal128Builder:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		unscaled := d.Shift(SalaryScale)
		if !unscaled.Equal(unscaled.Truncate(0)) {
			return fmt.Errorf("%s has more than %d decimal places", s, SalaryScale)
		}
		b.Append(decimal128.FromI64(unscaled.IntPart()))
	case *array.Date32Builder:
		t, err := toTime(value, employee.DateLayout)
		if err != nil {
			return err
		}
		b.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, err := toTime(value, time.RFC3339)
		if err != nil {
			return err
		}
		b.Append(arrow.Timestamp(t.UTC().UnixMicro()))
	case *array.StringBuilder:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		b.Append(s)
	default:
		return fmt.Errorf("unsupported builder type %T", builder)
	}
	return nil
}

func toTime(value interface{}, layout string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(layout, v)
	default:
		return time.Time{}, fmt.Errorf("unexpected %T for a date", value)
	}
}
