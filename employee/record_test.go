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

package employee

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/core"
)

func TestFromRecord_TextRow(t *testing.T) {
	rec := core.Record{
		"employee_id": "7",
		"first_name":  "alice",
		"last_name":   "SMITH",
		"email":       "Alice@Example.com",
		"hire_date":   "2020-01-15",
		"salary":      "$95,000.00",
		"manager_id":  "3.0",
		"address":     "   ",
		"city":        nil,
		"status":      "Inactive",
	}

	raw, err := FromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(7), raw.EmployeeID)
	require.NotNil(t, raw.FirstName)
	assert.Equal(t, "alice", *raw.FirstName)
	require.NotNil(t, raw.Salary)
	assert.Equal(t, "$95,000.00", *raw.Salary)
	require.NotNil(t, raw.ManagerID)
	assert.Equal(t, int64(3), *raw.ManagerID)
	assert.Nil(t, raw.Address, "blank cells are absent")
	assert.Nil(t, raw.City)
	assert.Nil(t, raw.State, "missing keys are absent")
	require.NotNil(t, raw.Status)
	assert.Equal(t, "Inactive", *raw.Status)
}

func TestFromRecord_TypedRow(t *testing.T) {
	hired := time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := core.Record{
		"employee_id": float64(12),
		"hire_date":   hired,
		"salary":      float64(51000.5),
		"manager_id":  int32(4),
	}

	raw, err := FromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(12), raw.EmployeeID)
	assert.Equal(t, "2019-05-01", *raw.HireDate)
	assert.Equal(t, "51000.5", *raw.Salary)
	assert.Equal(t, int64(4), *raw.ManagerID)
}

func TestFromRecord_EmployeeIDErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  core.Record
		want error
	}{
		{"missing", core.Record{"first_name": "a"}, ErrMissingEmployeeID},
		{"blank", core.Record{"employee_id": " "}, ErrMissingEmployeeID},
		{"text", core.Record{"employee_id": "abc"}, ErrInvalidEmployeeID},
		{"fraction", core.Record{"employee_id": 1.5}, ErrInvalidEmployeeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRecord(tt.rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))

			var recErr *RecordError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, ColEmployeeID, recErr.Field)
		})
	}
}

func TestFromRecord_InvalidManagerIDDropped(t *testing.T) {
	raw, err := FromRecord(core.Record{"employee_id": 1, "manager_id": "boss"})
	require.NoError(t, err)
	assert.Nil(t, raw.ManagerID)
}

func TestCleanRecord_Record(t *testing.T) {
	ts := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	age := 34
	clean := CleanRecord{
		EmployeeID:  3,
		FirstName:   "Bob",
		LastName:    "Jones",
		FullName:    "Bob Jones",
		HireDate:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Salary:      decimal.NewNullDecimal(decimal.RequireFromString("95000")),
		SalaryBand:  BandSenior,
		BirthDate:   time.Date(1990, 3, 4, 0, 0, 0, 0, time.UTC),
		Age:         &age,
		TenureYears: decimal.RequireFromString("4.5"),
		Status:      DefaultStatus,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	rec := clean.Record()
	assert.Len(t, rec, len(Columns))
	for _, col := range Columns {
		_, ok := rec[col]
		assert.True(t, ok, "missing column %s", col)
	}
	assert.Equal(t, "95000.00", rec[ColSalary])
	assert.Equal(t, "Senior", rec[ColSalaryBand])
	assert.Equal(t, "2020-01-01", rec[ColHireDate])
	assert.Equal(t, "1990-03-04", rec[ColBirthDate])
	assert.Equal(t, int64(34), rec[ColAge])
	assert.Equal(t, 4.5, rec[ColTenureYears])
	assert.Nil(t, rec[ColManagerID])
	assert.Equal(t, "2024-06-30T12:00:00Z", rec[ColCreatedAt])
}

func TestCleanRecord_RecordUnknowns(t *testing.T) {
	rec := CleanRecord{EmployeeID: 1, SalaryBand: BandUnknown}.Record()
	assert.Nil(t, rec[ColSalary])
	assert.Nil(t, rec[ColBirthDate])
	assert.Nil(t, rec[ColAge])
}

func TestRawRecord_RecordRoundTrip(t *testing.T) {
	raw := RawRecord{
		EmployeeID: 9,
		FirstName:  StringPtr("x"),
		ManagerID:  Int64Ptr(2),
	}
	back, err := FromRecord(raw.Record())
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}
