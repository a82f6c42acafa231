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
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

// mockWriteCloser collects output in memory.
type mockWriteCloser struct {
	*strings.Builder
	closed    bool
	failWrite bool
	mu        sync.Mutex
}

func (m *mockWriteCloser) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Builder.Write(p)
}

func (m *mockWriteCloser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockWriteCloser) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Builder.String()
}

func newMockWriteCloser() *mockWriteCloser {
	return &mockWriteCloser{Builder: &strings.Builder{}}
}

func cleanRow(id int64) core.Record {
	return core.Record{
		employee.ColEmployeeID:  id,
		employee.ColFirstName:   "Ann",
		employee.ColLastName:    "Lee",
		employee.ColFullName:    "Ann Lee",
		employee.ColEmail:       "ann@example.com",
		employee.ColEmailDomain: "example.com",
		employee.ColHireDate:    "2020-01-01",
		employee.ColJobTitle:    "Engineer",
		employee.ColDepartment:  "R&D",
		employee.ColSalary:      "95000.00",
		employee.ColSalaryBand:  "Senior",
		employee.ColManagerID:   nil,
		employee.ColAddress:     "",
		employee.ColCity:        "",
		employee.ColState:       "",
		employee.ColZipCode:     "",
		employee.ColBirthDate:   "1990-03-04",
		employee.ColAge:         int64(34),
		employee.ColTenureYears: 4.0,
		employee.ColStatus:      "Active",
		employee.ColCreatedAt:   "2024-06-30T12:00:00Z",
		employee.ColUpdatedAt:   "2024-06-30T12:00:00Z",
	}
}

func TestCSVWriter_FixedColumns(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, cleanRow(2)))
	require.NoError(t, writer.Write(ctx, cleanRow(1)))
	require.NoError(t, writer.Close())
	assert.True(t, mock.closed)

	rows, err := csv.NewReader(strings.NewReader(mock.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, employee.Columns, rows[0])
	assert.Equal(t, "2", rows[1][0], "records keep write order")
	assert.Equal(t, "1", rows[2][0])

	idx := func(col string) int {
		for i, c := range employee.Columns {
			if c == col {
				return i
			}
		}
		t.Fatalf("no column %s", col)
		return -1
	}
	assert.Equal(t, "95000.00", rows[1][idx(employee.ColSalary)])
	assert.Equal(t, "", rows[1][idx(employee.ColManagerID)])
	assert.Equal(t, "4.0", rows[1][idx(employee.ColTenureYears)])
	assert.Equal(t, "34", rows[1][idx(employee.ColAge)])

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.NullValueCounts[employee.ColManagerID])
}

func TestCSVWriter_EmptyBatchWritesHeader(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close(), "second close is a no-op")

	assert.Equal(t, strings.Join(employee.Columns, ",")+"\n", mock.String())
}

func TestCSVWriter_Options(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock,
		WithHeaders([]string{"employee_id", "full_name"}),
		WithComma(';'),
		WithWriteHeader(false),
		WithCSVBatchSize(1),
	)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), cleanRow(5)))
	assert.Equal(t, "5;Ann Lee\n", mock.String(), "batch size 1 flushes on write")
	assert.Equal(t, int64(1), writer.Stats().FlushCount)
	require.NoError(t, writer.Close())
}

func TestCSVWriter_WriteFailure(t *testing.T) {
	mock := newMockWriteCloser()
	mock.failWrite = true
	writer, err := NewCSVWriter(mock, WithCSVBatchSize(1))
	require.NoError(t, err)

	err = writer.Write(context.Background(), cleanRow(1))
	var csvErr *CSVWriterError
	require.True(t, errors.As(err, &csvErr))
	assert.Equal(t, "flush_batch", csvErr.Op)

	err = writer.Write(context.Background(), cleanRow(2))
	assert.ErrorContains(t, err, "error state")
}

func TestFormatCSVValue(t *testing.T) {
	assert.Equal(t, "", formatCSVValue(nil))
	assert.Equal(t, "4.5", formatCSVValue(4.5))
	assert.Equal(t, "12.0", formatCSVValue(12.0))
	assert.Equal(t, "7", formatCSVValue(int64(7)))
	assert.Equal(t, "true", formatCSVValue(true))
}
