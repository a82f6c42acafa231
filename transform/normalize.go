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

package transform

import (
	"fmt"
	"strings"

	"github.com/aaronlmathis/empclean/employee"
)

// FieldError reports a defect found while normalizing one field of a record.
type FieldError struct {
	EmployeeID int64
	Field      string
	Value      string
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("employee %d: %s %q: %v", e.EmployeeID, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Normalize applies the field primitives to a raw record.
//
// Defects are returned alongside the normalized record and never abort it: an invalid email
// is cleared, an unparsable date is left as the zero time and a malformed or missing salary is
// left null.
func Normalize(raw employee.RawRecord) (employee.Normalized, []error) {
	var errs []error
	fieldErr := func(field string, value *string, err error) {
		errs = append(errs, &FieldError{EmployeeID: raw.EmployeeID, Field: field, Value: valueOf(value), Err: err})
	}

	n := employee.Normalized{
		EmployeeID: raw.EmployeeID,
		FirstName:  NormalizeName(valueOf(raw.FirstName)),
		LastName:   NormalizeName(valueOf(raw.LastName)),
		JobTitle:   strings.TrimSpace(valueOf(raw.JobTitle)),
		Department: strings.TrimSpace(valueOf(raw.Department)),
		ManagerID:  raw.ManagerID,
		Address:    raw.Address,
		City:       raw.City,
		State:      raw.State,
		ZipCode:    raw.ZipCode,
		Status:     raw.Status,
	}

	if raw.Email != nil {
		email := NormalizeEmail(*raw.Email)
		if email != "" && !ValidEmail(email) {
			fieldErr(employee.ColEmail, raw.Email, ErrInvalidEmail)
			email = ""
		}
		n.Email = email
	}

	if raw.HireDate != nil {
		if t, ok := ParseDate(*raw.HireDate); ok {
			n.HireDate = t
		} else {
			fieldErr(employee.ColHireDate, raw.HireDate, ErrUnparsableDate)
		}
	}

	if raw.BirthDate != nil {
		if t, ok := ParseDate(*raw.BirthDate); ok {
			n.BirthDate = t
		} else {
			fieldErr(employee.ColBirthDate, raw.BirthDate, ErrUnparsableDate)
		}
	}

	if raw.Salary == nil {
		fieldErr(employee.ColSalary, nil, ErrMissingSalary)
	} else if d, err := NormalizeSalary(*raw.Salary); err != nil {
		fieldErr(employee.ColSalary, raw.Salary, err)
	} else {
		n.Salary.Decimal = d
		n.Salary.Valid = true
	}

	return n, errs
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
