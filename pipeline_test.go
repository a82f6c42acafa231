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

package empclean

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/transform"
)

type sliceSource struct {
	records []core.Record
	err     error // returned after the records are exhausted instead of io.EOF
	pos     int
	closed  bool
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if s.pos >= len(s.records) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type memorySink struct {
	records  []core.Record
	writeErr error
	flushed  bool
	closed   int
}

func (m *memorySink) Write(ctx context.Context, record core.Record) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memorySink) Flush() error {
	m.flushed = true
	return nil
}

func (m *memorySink) Close() error {
	m.closed++
	return nil
}

// abortingSink is a memorySink that can discard its output.
type abortingSink struct {
	memorySink
	aborted int
}

func (a *abortingSink) Abort() error {
	a.aborted++
	a.records = nil
	return nil
}

func sourceRows() []core.Record {
	return []core.Record{
		{"employee_id": "1", "first_name": "alice", "last_name": "smith", "hire_date": "2019-03-01", "salary": "48000"},
		{"employee_id": "1", "first_name": "ALICE2", "last_name": "smith", "hire_date": "2019-03-01", "salary": "48000"},
		{"employee_id": "", "first_name": "ghost"},
		{"employee_id": "2", "first_name": "bob", "hire_date": "2099-01-01", "salary": "60000"},
		{"employee_id": "3", "first_name": "carol", "last_name": "jones", "hire_date": "2020-01-01", "salary": "$95,000.00"},
	}
}

func TestPipeline_Execute(t *testing.T) {
	src := &sliceSource{records: sourceRows()}
	a, b := &memorySink{}, &memorySink{}

	p, err := NewPipeline().
		From(src).
		To(a, b).
		WithIngestionTime(ingestedAt).
		WithWorkers(2).
		WithLogger(zaptest.NewLogger(t)).
		Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, src.closed)
	for _, sink := range []*memorySink{a, b} {
		require.Len(t, sink.records, 2)
		assert.Equal(t, int64(1), sink.records[0][employee.ColEmployeeID])
		assert.Equal(t, "Alice Smith", sink.records[0][employee.ColFullName])
		assert.Equal(t, "95000.00", sink.records[1][employee.ColSalary])
		assert.Equal(t, "Senior", sink.records[1][employee.ColSalaryBand])
		assert.True(t, sink.flushed)
		assert.Equal(t, 1, sink.closed)
	}

	r := res.Report
	assert.Equal(t, 5, r.InputRecords)
	assert.Equal(t, 1, r.MalformedRows)
	assert.Equal(t, 1, r.DuplicatesRemoved)
	assert.Equal(t, 1, r.RejectedFutureHireDate)
	assert.Equal(t, 2, r.OutputRecords)
}

func TestPipeline_FailFastOnMalformedRow(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()}).
		To(sink).
		WithIngestionTime(ingestedAt).
		WithErrorStrategy(core.FailFast).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, employee.ErrMissingEmployeeID)
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, sink.closed, "sinks without Abort are closed")
}

func TestPipeline_CollectErrors(t *testing.T) {
	var handled []error
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()}).
		To(&memorySink{}).
		WithIngestionTime(ingestedAt).
		WithErrorStrategy(core.CollectErrors).
		WithErrorHandler(core.ErrorHandlerFunc(func(ctx context.Context, record core.Record, err error) error {
			handled = append(handled, err)
			return nil
		})).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, p.Errors(), 1)
	assert.Len(t, handled, 1)
}

func TestPipeline_ReadErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	sink := &abortingSink{}
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()[:1], err: boom}).
		To(sink).
		WithIngestionTime(ingestedAt).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, sink.aborted)
	assert.Zero(t, sink.closed, "an aborted sink is never committed")
}

func TestPipeline_FailFastAbortsSinks(t *testing.T) {
	sink := &abortingSink{}
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()}).
		To(sink).
		WithIngestionTime(ingestedAt).
		WithErrorStrategy(core.FailFast).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, sink.aborted)
	assert.Zero(t, sink.closed)
}

func TestPipeline_SinkError(t *testing.T) {
	boom := errors.New("disk full")
	first := &abortingSink{}
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()}).
		To(first, &memorySink{writeErr: boom}).
		WithIngestionTime(ingestedAt).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, first.flushed)
	assert.Equal(t, 1, first.aborted, "a later sink failure aborts sinks that were already written")
	assert.Zero(t, first.closed)
}

func TestPipeline_SuccessClosesWithoutAbort(t *testing.T) {
	sink := &abortingSink{}
	p, err := NewPipeline().
		From(&sliceSource{records: sourceRows()}).
		To(sink).
		WithIngestionTime(ingestedAt).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.records, 2)
	assert.Equal(t, 1, sink.closed)
	assert.Zero(t, sink.aborted)
}

func TestPipeline_TransformRenamesColumns(t *testing.T) {
	src := &sliceSource{records: []core.Record{
		{"EmpID": "10", "Hired": "2021-05-05", "Pay": "$51,000"},
	}}
	sink := &memorySink{}
	p, err := NewPipeline().
		From(src).
		Transform(transform.Rename(map[string]string{"EmpID": "employee_id", "Hired": "hire_date", "Pay": "salary"})).
		To(sink).
		WithIngestionTime(ingestedAt).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "51000.00", sink.records[0][employee.ColSalary])
	assert.Equal(t, "Mid", sink.records[0][employee.ColSalaryBand])
}

func TestPipelineBuilder_Validation(t *testing.T) {
	_, err := NewPipeline().To(&memorySink{}).Build()
	assert.Error(t, err, "source required")

	_, err = NewPipeline().From(&sliceSource{}).Build()
	assert.Error(t, err, "sink required")

	p, err := NewPipeline().From(&sliceSource{}).To(&memorySink{}).Build()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), p.IngestedAt(), time.Minute)
	assert.Equal(t, time.UTC, p.IngestedAt().Location())
}

func TestWriteSample(t *testing.T) {
	res, err := newTestCleaner(t).Clean(context.Background(), scenarioBatch())
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, WriteSample(context.Background(), res.Rows, 1, sink))
	require.Len(t, sink.records, 1)
	assert.Len(t, sink.records[0], len(SampleColumns))
	assert.Equal(t, "Alice Smith", sink.records[0][employee.ColFullName])
	assert.Equal(t, 1, sink.closed)

	sink = &memorySink{}
	require.NoError(t, WriteSample(context.Background(), res.Rows, DefaultSampleSize, sink))
	assert.Len(t, sink.records, 2)

	failing := &abortingSink{memorySink: memorySink{writeErr: errors.New("disk full")}}
	assert.Error(t, WriteSample(context.Background(), res.Rows, 1, failing))
	assert.Equal(t, 1, failing.aborted)
	assert.Zero(t, failing.closed)
}
