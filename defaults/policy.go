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
	"fmt"

	"github.com/aaronlmathis/empclean/employee"
)

// Package defaults implements the missing value policy: the fill rules applied to absent
// optional fields after enrichment.

// OptionalFields lists the fields the policy may fill, in fill order.
var OptionalFields = []string{
	employee.ColAddress, employee.ColCity, employee.ColState, employee.ColZipCode, employee.ColStatus,
}

// Policy is a static substitution table for absent optional fields.
type Policy struct {
	values map[string]string
}

// DefaultPolicy returns the standard table: empty strings, and "Active" for status.
func DefaultPolicy() Policy {
	return Policy{values: map[string]string{
		employee.ColAddress: "",
		employee.ColCity:    "",
		employee.ColState:   "",
		employee.ColZipCode: "",
		employee.ColStatus:  employee.DefaultStatus,
	}}
}

// NewPolicy returns the standard table with overrides applied. Only optional fields may be
// overridden.
func NewPolicy(overrides map[string]string) (Policy, error) {
	p := DefaultPolicy()
	for field, value := range overrides {
		if _, ok := p.values[field]; !ok {
			return Policy{}, fmt.Errorf("no default can be configured for field %q", field)
		}
		p.values[field] = value
	}
	return p, nil
}

// Value returns the default for field.
func (p Policy) Value(field string) string {
	if p.values == nil {
		return DefaultPolicy().values[field]
	}
	return p.values[field]
}

// Fill copies the optional fields of n into c, substituting defaults for absent values. It
// returns the names of the fields it defaulted. Required fields are never touched.
func (p Policy) Fill(n employee.Normalized, c *employee.CleanRecord) []string {
	var defaulted []string
	fill := func(field string, src *string, dst *string) {
		if src != nil {
			*dst = *src
			return
		}
		*dst = p.Value(field)
		defaulted = append(defaulted, field)
	}

	fill(employee.ColAddress, n.Address, &c.Address)
	fill(employee.ColCity, n.City, &c.City)
	fill(employee.ColState, n.State, &c.State)
	fill(employee.ColZipCode, n.ZipCode, &c.ZipCode)
	fill(employee.ColStatus, n.Status, &c.Status)
	return defaulted
}
