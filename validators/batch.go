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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/transform"
)

// ErrInvariantViolated is wrapped by every error returned from BatchValidator.Validate.
var ErrInvariantViolated = errors.New("output invariant violated")

// FieldValidator defines value rules for one column of the clean batch.
type FieldValidator struct {
	Pattern       *regexp.Regexp                  // Regex for string values
	AllowedValues []interface{}                   // Whitelist of allowed values
	CustomFunc    func(interface{}) (bool, error) // Custom check
}

// BatchValidator checks a finished batch of clean records, as produced by
// employee.CleanRecord.Record, against the output invariants.
// It returns the first violation it finds.
type BatchValidator struct {
	IngestionDate    time.Time                   // Calendar date of the run, midnight UTC
	RequiredFields   []string                    // Columns that must be non-nil in every record
	MaxNullRate      float64                     // Maximum null rate per column (0 = unchecked)
	FieldValidators  map[string]FieldValidator   // Per-column value rules
	CustomValidators []func([]core.Record) error // Whole-batch checks
}

var salaryPattern = regexp.MustCompile(`^[0-9]+\.[0-9]{2}$`)

// NewBatchValidator returns a validator loaded with the output invariants for a run started
// at ingestedAt: unique ids, required columns, salary and email formats, known salary bands,
// no future hires and ages consistent with birth dates.
func NewBatchValidator(ingestedAt time.Time, opts ...BatchOption) *BatchValidator {
	v := &BatchValidator{
		IngestionDate: employee.IngestionDate(ingestedAt),
		RequiredFields: []string{
			employee.ColEmployeeID, employee.ColFirstName, employee.ColLastName, employee.ColFullName,
			employee.ColEmail, employee.ColEmailDomain, employee.ColHireDate, employee.ColJobTitle,
			employee.ColDepartment, employee.ColSalaryBand, employee.ColAddress, employee.ColCity,
			employee.ColState, employee.ColZipCode, employee.ColTenureYears, employee.ColStatus,
			employee.ColCreatedAt, employee.ColUpdatedAt,
		},
		FieldValidators: map[string]FieldValidator{
			employee.ColSalary:    {Pattern: salaryPattern},
			employee.ColEmail:     {CustomFunc: normalizedEmail},
			employee.ColFirstName: {CustomFunc: titleCased},
			employee.ColLastName:  {CustomFunc: titleCased},
			employee.ColSalaryBand: {AllowedValues: []interface{}{
				string(employee.BandJunior), string(employee.BandMid),
				string(employee.BandSenior), string(employee.BandUnknown),
			}},
		},
	}
	v.FieldValidators[employee.ColHireDate] = FieldValidator{CustomFunc: v.notAfterIngestion}
	v.CustomValidators = []func([]core.Record) error{uniqueIDs, v.consistentAges}

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BatchOption is a functional option for configuring BatchValidator.
type BatchOption func(*BatchValidator)

// WithMaxNullRate sets the maximum null rate allowed per column.
func WithMaxNullRate(rate float64) BatchOption {
	return func(v *BatchValidator) {
		v.MaxNullRate = rate
	}
}

// WithFieldValidator adds or replaces the rules for one column.
func WithFieldValidator(field string, fv FieldValidator) BatchOption {
	return func(v *BatchValidator) {
		if v.FieldValidators == nil {
			v.FieldValidators = make(map[string]FieldValidator)
		}
		v.FieldValidators[field] = fv
	}
}

// WithCustomValidator adds a whole-batch check.
func WithCustomValidator(fn func([]core.Record) error) BatchOption {
	return func(v *BatchValidator) {
		v.CustomValidators = append(v.CustomValidators, fn)
	}
}

// Validate checks every invariant and returns the first violation wrapped in ErrInvariantViolated.
func (v *BatchValidator) Validate(records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := v.validateFieldPresence(records); err != nil {
		return err
	}
	if err := v.validateNullRates(records); err != nil {
		return err
	}
	if err := v.validateFieldValues(records); err != nil {
		return err
	}
	for i, check := range v.CustomValidators {
		if err := check(records); err != nil {
			return fmt.Errorf("%w: batch check %d: %v", ErrInvariantViolated, i, err)
		}
	}
	return nil
}

func (v *BatchValidator) validateFieldPresence(records []core.Record) error {
	for idx, record := range records {
		for _, field := range v.RequiredFields {
			if value, exists := record[field]; !exists || value == nil {
				return fmt.Errorf("%w: record %d missing required field %s", ErrInvariantViolated, idx, field)
			}
		}
	}
	return nil
}

func (v *BatchValidator) validateNullRates(records []core.Record) error {
	if v.MaxNullRate <= 0 {
		return nil
	}
	for _, field := range employee.Columns {
		nulls := 0
		for _, record := range records {
			if value, exists := record[field]; !exists || value == nil {
				nulls++
			}
		}
		rate := float64(nulls) / float64(len(records))
		if rate > v.MaxNullRate {
			return fmt.Errorf("%w: field %s has null rate %.2f, exceeds maximum %.2f",
				ErrInvariantViolated, field, rate, v.MaxNullRate)
		}
	}
	return nil
}

func (v *BatchValidator) validateFieldValues(records []core.Record) error {
	fields := make([]string, 0, len(v.FieldValidators))
	for field := range v.FieldValidators {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for idx, record := range records {
		for _, field := range fields {
			value, exists := record[field]
			if !exists || value == nil {
				continue
			}
			if err := validateValue(field, value, v.FieldValidators[field]); err != nil {
				return fmt.Errorf("%w: record %d: %v", ErrInvariantViolated, idx, err)
			}
		}
	}
	return nil
}

func validateValue(field string, value interface{}, fv FieldValidator) error {
	if fv.Pattern != nil {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s has type %T, expected string", field, value)
		}
		if !fv.Pattern.MatchString(str) {
			return fmt.Errorf("field %s value %q does not match %s", field, str, fv.Pattern)
		}
	}

	if len(fv.AllowedValues) > 0 {
		allowed := false
		for _, a := range fv.AllowedValues {
			if value == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("field %s value %v not in allowed values", field, value)
		}
	}

	if fv.CustomFunc != nil {
		ok, err := fv.CustomFunc(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		if !ok {
			return fmt.Errorf("field %s value %v failed custom validation", field, value)
		}
	}
	return nil
}

func (v *BatchValidator) notAfterIngestion(value interface{}) (bool, error) {
	t, err := time.Parse(employee.DateLayout, cast.ToString(value))
	if err != nil {
		return false, err
	}
	return !t.After(v.IngestionDate), nil
}

func (v *BatchValidator) consistentAges(records []core.Record) error {
	for idx, record := range records {
		birth, age := record[employee.ColBirthDate], record[employee.ColAge]
		if birth == nil || age == nil {
			if birth != nil || age != nil {
				return fmt.Errorf("record %d: birth_date and age must be both known or both unknown", idx)
			}
			continue
		}
		t, err := time.Parse(employee.DateLayout, cast.ToString(birth))
		if err != nil {
			return fmt.Errorf("record %d: %w", idx, err)
		}
		want := v.IngestionDate.Year() - t.Year()
		if got := cast.ToInt(age); got != want {
			return fmt.Errorf("record %d: age %d, expected %d", idx, got, want)
		}
	}
	return nil
}

// normalizedEmail accepts the empty string or a lowercase local@domain address.
func normalizedEmail(value interface{}) (bool, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return false, err
	}
	return s == "" || (s == strings.ToLower(s) && transform.ValidEmail(s)), nil
}

func titleCased(value interface{}) (bool, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return false, err
	}
	return s == transform.NormalizeName(s), nil
}

func uniqueIDs(records []core.Record) error {
	seen := make(map[int64]int, len(records))
	for idx, record := range records {
		id, err := cast.ToInt64E(record[employee.ColEmployeeID])
		if err != nil {
			return fmt.Errorf("record %d: employee_id: %w", idx, err)
		}
		if first, dup := seen[id]; dup {
			return fmt.Errorf("employee_id %d appears in records %d and %d", id, first, idx)
		}
		seen[id] = idx
	}
	return nil
}
