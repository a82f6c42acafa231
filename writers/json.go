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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aaronlmathis/empclean/core"
)

// JSONWriterError wraps JSON-specific write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriter implements DataSink for JSON lines files.
// Keys of each line are sorted, so identical records always serialize identically.
type JSONWriter struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	closer  io.Closer
	written int64
	closed  bool
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output.
func NewJSONWriter(w io.WriteCloser) *JSONWriter {
	return &JSONWriter{
		buf:    bufio.NewWriter(w),
		closer: w,
	}
}

// Write implements the DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.buf.Write(append(data, '\n')); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	j.written++
	return nil
}

// Flush implements the DataSink interface
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.buf.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the DataSink interface
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	flushErr := j.buf.Flush()
	var closeErr error
	if j.closer != nil {
		closeErr = j.closer.Close()
	}
	if flushErr != nil {
		return &JSONWriterError{Op: "close", Err: flushErr}
	}
	if closeErr != nil {
		return &JSONWriterError{Op: "close", Err: closeErr}
	}
	return nil
}

// RecordsWritten returns the number of lines written.
func (j *JSONWriter) RecordsWritten() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}
