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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/aaronlmathis/empclean/core"
)

var (
	// ErrMissingEmployeeID is returned when a source row has no employee_id.
	ErrMissingEmployeeID = errors.New("employee_id is missing")
	// ErrInvalidEmployeeID is returned when employee_id is not an integer.
	ErrInvalidEmployeeID = errors.New("employee_id is not an integer")
)

// RecordError describes a source row that cannot become a RawRecord.
type RecordError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *RecordError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("employee record %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("employee record %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// FromRecord converts a source row into a RawRecord.
// Blank text cells are treated as absent. Only employee_id is mandatory; a manager_id that is
// not an integer is dropped rather than failing the row.
func FromRecord(rec core.Record) (RawRecord, error) {
	idVal, ok := rec[ColEmployeeID]
	if !ok || isBlank(idVal) {
		return RawRecord{}, &RecordError{Field: ColEmployeeID, Err: ErrMissingEmployeeID}
	}
	id, err := toInt64(idVal)
	if err != nil {
		return RawRecord{}, &RecordError{Field: ColEmployeeID, Value: idVal, Err: ErrInvalidEmployeeID}
	}

	raw := RawRecord{
		EmployeeID: id,
		FirstName:  text(rec, ColFirstName),
		LastName:   text(rec, ColLastName),
		Email:      text(rec, ColEmail),
		HireDate:   text(rec, ColHireDate),
		BirthDate:  text(rec, ColBirthDate),
		JobTitle:   text(rec, ColJobTitle),
		Department: text(rec, ColDepartment),
		Salary:     text(rec, ColSalary),
		Address:    text(rec, ColAddress),
		City:       text(rec, ColCity),
		State:      text(rec, ColState),
		ZipCode:    text(rec, ColZipCode),
		Status:     text(rec, ColStatus),
	}
	if v, ok := rec[ColManagerID]; ok && !isBlank(v) {
		if m, err := toInt64(v); err == nil {
			raw.ManagerID = &m
		}
	}
	return raw, nil
}

// Record returns the raw row keyed by RawColumns. Absent values are nil.
func (r RawRecord) Record() core.Record {
	rec := core.Record{
		ColEmployeeID: r.EmployeeID,
		ColFirstName:  deref(r.FirstName),
		ColLastName:   deref(r.LastName),
		ColEmail:      deref(r.Email),
		ColHireDate:   deref(r.HireDate),
		ColJobTitle:   deref(r.JobTitle),
		ColDepartment: deref(r.Department),
		ColSalary:     deref(r.Salary),
		ColManagerID:  nil,
		ColAddress:    deref(r.Address),
		ColCity:       deref(r.City),
		ColState:      deref(r.State),
		ColZipCode:    deref(r.ZipCode),
		ColBirthDate:  deref(r.BirthDate),
		ColStatus:     deref(r.Status),
	}
	if r.ManagerID != nil {
		rec[ColManagerID] = *r.ManagerID
	}
	return rec
}

// Record returns the clean row keyed by Columns, in the representation the sinks expect:
// dates as YYYY-MM-DD, salary as a two-digit decimal string, tenure as float64 and
// timestamps as RFC 3339. Unknown values are nil.
func (c CleanRecord) Record() core.Record {
	rec := core.Record{
		ColEmployeeID:  c.EmployeeID,
		ColFirstName:   c.FirstName,
		ColLastName:    c.LastName,
		ColFullName:    c.FullName,
		ColEmail:       c.Email,
		ColEmailDomain: c.EmailDomain,
		ColHireDate:    c.HireDate.Format(DateLayout),
		ColJobTitle:    c.JobTitle,
		ColDepartment:  c.Department,
		ColSalary:      nil,
		ColSalaryBand:  string(c.SalaryBand),
		ColManagerID:   nil,
		ColAddress:     c.Address,
		ColCity:        c.City,
		ColState:       c.State,
		ColZipCode:     c.ZipCode,
		ColBirthDate:   nil,
		ColAge:         nil,
		ColTenureYears: c.TenureYears.InexactFloat64(),
		ColStatus:      c.Status,
		ColCreatedAt:   c.CreatedAt.Format(time.RFC3339),
		ColUpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
	if c.Salary.Valid {
		rec[ColSalary] = c.Salary.Decimal.StringFixed(2)
	}
	if c.ManagerID != nil {
		rec[ColManagerID] = *c.ManagerID
	}
	if !c.BirthDate.IsZero() {
		rec[ColBirthDate] = c.BirthDate.Format(DateLayout)
	}
	if c.Age != nil {
		rec[ColAge] = int64(*c.Age)
	}
	return rec
}

func deref(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// text reads a column as text. Dates coming from typed sources are rendered in DateLayout.
func text(rec core.Record, key string) *string {
	v, ok := rec[key]
	if !ok || isBlank(v) {
		return nil
	}
	var s string
	switch t := v.(type) {
	case time.Time:
		s = t.Format(DateLayout)
	case []byte:
		s = string(t)
	case json.Number:
		s = t.String()
	default:
		var err error
		if s, err = cast.ToStringE(v); err != nil {
			s = fmt.Sprintf("%v", v)
		}
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// toInt64 accepts integers, integral floats and base-10 strings ("7", " 7 ", "7.0").
func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return integral(f)
	case json.Number:
		return toInt64(t.String())
	case float64:
		return integral(t)
	case float32:
		return integral(float64(t))
	case bool:
		return 0, fmt.Errorf("unexpected bool %v", t)
	default:
		return cast.ToInt64E(v)
	}
}

func integral(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not integral", f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}
