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

package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean/employee"
)

func TestFill_DefaultsAbsentFields(t *testing.T) {
	n := employee.Normalized{
		EmployeeID: 1,
		FirstName:  "Ann",
		City:       employee.StringPtr("Boston"),
	}
	c := employee.CleanRecord{EmployeeID: 1, FirstName: "Ann"}

	defaulted := DefaultPolicy().Fill(n, &c)

	assert.Equal(t, []string{"address", "state", "zip_code", "status"}, defaulted)
	assert.Equal(t, "Active", c.Status)
	assert.Equal(t, "", c.Address)
	assert.Equal(t, "Boston", c.City)
	assert.Equal(t, "Ann", c.FirstName, "required fields untouched")
}

func TestFill_NothingMissing(t *testing.T) {
	v := employee.StringPtr("x")
	n := employee.Normalized{Address: v, City: v, State: v, ZipCode: v, Status: employee.StringPtr("Inactive")}
	c := employee.CleanRecord{}

	assert.Empty(t, DefaultPolicy().Fill(n, &c))
	assert.Equal(t, "Inactive", c.Status)
}

func TestNewPolicy_Overrides(t *testing.T) {
	p, err := NewPolicy(map[string]string{"state": "N/A"})
	require.NoError(t, err)
	assert.Equal(t, "N/A", p.Value("state"))
	assert.Equal(t, "Active", p.Value("status"))

	_, err = NewPolicy(map[string]string{"first_name": "Unknown"})
	assert.Error(t, err)
}

func TestZeroPolicyBehavesAsDefault(t *testing.T) {
	var p Policy
	c := employee.CleanRecord{}
	p.Fill(employee.Normalized{}, &c)
	assert.Equal(t, "Active", c.Status)
}
