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

package validators

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/employee"
)

var ingestedAt = time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordValidator_HireDates(t *testing.T) {
	v := NewRecordValidator(ingestedAt)
	assert.Equal(t, date(2024, 6, 30), v.IngestionDate)

	tests := []struct {
		name   string
		hire   time.Time
		reason RejectionReason
		err    error
	}{
		{"past", date(2020, 1, 1), "", nil},
		{"ingestion day", date(2024, 6, 30), "", nil},
		{"day after", date(2024, 7, 1), ReasonFutureHireDate, ErrFutureHireDate},
		{"missing", time.Time{}, ReasonUnparsableHireDate, ErrUnparsableHireDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(employee.Normalized{EmployeeID: 42, HireDate: tt.hire})
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))

			var rej *RejectionError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, int64(42), rej.EmployeeID)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}

func TestRecordValidator_UsesTimestampLocation(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	// 2024-07-01 03:00 UTC is still June 30 in UTC-8.
	v := NewRecordValidator(time.Date(2024, 6, 30, 19, 0, 0, 0, loc))
	assert.Error(t, v.Validate(employee.Normalized{HireDate: date(2024, 7, 1)}))
	assert.NoError(t, v.Validate(employee.Normalized{HireDate: date(2024, 6, 30)}))
}

func TestMissingRequired(t *testing.T) {
	assert.Empty(t, MissingRequired(employee.Normalized{FirstName: "A", LastName: "B"}))
	assert.Equal(t, []string{"last_name"}, MissingRequired(employee.Normalized{FirstName: "A"}))
	assert.Equal(t, []string{"first_name", "last_name"}, MissingRequired(employee.Normalized{}))
}
