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

package core

import (
	"context"
)

// DataSource streams raw rows into the pipeline.
// Implementations exist for CSV, JSON lines, PostgreSQL, MongoDB and S3.
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink receives cleaned rows.
// Sinks implement whole-batch semantics: a run rewrites the destination rather than appending to it.
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// Aborter is implemented by sinks that replace their destination atomically. Abort discards
// everything written so far and releases the sink, leaving the previous contents in place.
// Close after Abort is a no-op.
type Aborter interface {
	Abort() error
}

// AbortSink discards the pending output of sink if it supports it and closes it otherwise.
func AbortSink(sink DataSink) error {
	if a, ok := sink.(Aborter); ok {
		return a.Abort()
	}
	return sink.Close()
}

// Transformer rewrites a record, for example to project or rename columns.
type Transformer interface {
	Transform(ctx context.Context, record Record) (Record, error)
}

// TransformFunc is a function adapter for the Transformer interface.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}
