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

package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

var ingestedAt = time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC)

func TestProfile_RawBatch(t *testing.T) {
	records := []core.Record{
		{"employee_id": int64(1), "email": "A@X.COM", "salary": "$50,000", "hire_date": "2020-01-01"},
		{"employee_id": int64(1), "email": "broken", "salary": "60000", "hire_date": "2025-01-01"},
		{"employee_id": int64(2), "email": nil, "salary": nil, "hire_date": "2024-06-30", "birth_date": "2030-01-01"},
	}

	m, err := Profile(context.Background(), ingestedAt, []string{"email", "salary"}, records)
	require.NoError(t, err)

	assert.Equal(t, Metrics{
		Records:         3,
		InvalidEmails:   1,
		CurrencySymbols: 1,
		FutureDates:     2,
		Duplicates:      1,
		MissingValues:   2,
	}, m)
}

func TestProfiler_ResultAndReset(t *testing.T) {
	p := NewProfiler(ingestedAt, nil)
	require.NoError(t, p.Add(context.Background(), core.Record{"employee_id": 1, "email": "a@b"}))

	res, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, res["records"])
	assert.Equal(t, 0, res["invalid_emails"])

	p.Reset()
	assert.Equal(t, Metrics{}, p.Metrics())
}

func TestProfile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Profile(ctx, ingestedAt, nil, []core.Record{{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroupBy_Process(t *testing.T) {
	records := []core.Record{
		{"dept": "b", "v": "10.00"},
		{"dept": "a", "v": 4},
		{"dept": "b", "v": 20.5},
		{"dept": "a", "v": nil},
	}

	rows, err := NewGroupBy("dept").
		Count("n").
		Sum("v", "total").
		Min("v", "lo").
		Max("v", "hi").
		Process(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "a", rows[0]["dept"])
	assert.Equal(t, 2, rows[0]["n"])
	assert.True(t, decimal.NewFromInt(4).Equal(rows[0]["total"].(decimal.Decimal)))

	assert.Equal(t, "b", rows[1]["dept"])
	assert.True(t, decimal.RequireFromString("30.5").Equal(rows[1]["total"].(decimal.Decimal)))
	assert.True(t, decimal.NewFromInt(10).Equal(rows[1]["lo"].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("20.5").Equal(rows[1]["hi"].(decimal.Decimal)))
}

type customAgg struct{ CountAggregator }

func TestGroupBy_UncloneableAggregator(t *testing.T) {
	g := NewGroupBy("dept")
	g.add("x", &customAgg{})
	_, err := g.Process(context.Background(), []core.Record{{"dept": "a"}})
	assert.Error(t, err)
}

func TestDepartments(t *testing.T) {
	records := []core.Record{
		{employee.ColDepartment: "Sales", employee.ColSalary: "50000.00", employee.ColTenureYears: 1.5},
		{employee.ColDepartment: "Sales", employee.ColSalary: "95000.00", employee.ColTenureYears: 4.5},
		{employee.ColDepartment: "Sales", employee.ColSalary: nil, employee.ColTenureYears: 0.0},
		{employee.ColDepartment: "", employee.ColSalary: nil, employee.ColTenureYears: 2.0},
	}

	deps, err := Departments(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, deps, 2)

	assert.Equal(t, Department{Department: "", Headcount: 1, AvgTenureYears: "2.0"}, deps[0])
	assert.Equal(t, Department{
		Department:     "Sales",
		Headcount:      3,
		AvgSalary:      "72500.00",
		MinSalary:      "50000.00",
		MaxSalary:      "95000.00",
		AvgTenureYears: "2.0",
	}, deps[1])
}
