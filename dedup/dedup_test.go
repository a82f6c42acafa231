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

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/employee"
)

func TestDeduplicate_FirstOccurrenceWins(t *testing.T) {
	raws := []employee.RawRecord{
		{EmployeeID: 1, FirstName: employee.StringPtr("alice")},
		{EmployeeID: 2, FirstName: employee.StringPtr("bob")},
		{EmployeeID: 1, FirstName: employee.StringPtr("ALICE2")},
		{EmployeeID: 3},
		{EmployeeID: 2},
	}

	out, removed := Deduplicate(raws)
	require.Len(t, out, 3)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []int64{1, 2, 3}, ids(out))
	assert.Equal(t, "alice", *out[0].FirstName)
}

func TestDeduplicate_Empty(t *testing.T) {
	out, removed := Deduplicate(nil)
	assert.Empty(t, out)
	assert.Zero(t, removed)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	raws := []employee.RawRecord{{EmployeeID: 5}, {EmployeeID: 5}, {EmployeeID: 4}}
	once, _ := Deduplicate(raws)
	twice, removed := Deduplicate(once)
	assert.Equal(t, once, twice)
	assert.Zero(t, removed)
}

func TestCountDuplicates(t *testing.T) {
	assert.Equal(t, 3, CountDuplicates([]int64{1, 1, 1, 2, 2, 3}))
	assert.Zero(t, CountDuplicates(nil))
}

func ids(rs []employee.RawRecord) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.EmployeeID
	}
	return out
}
