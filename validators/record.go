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
	"time"

	"github.com/aaronlmathis/empclean/employee"
)

// Package validators decides which normalized records are accepted into the clean dataset
// and checks the invariants a finished batch must satisfy.

var (
	// ErrUnparsableHireDate rejects a record whose hire date is missing or not a valid date.
	ErrUnparsableHireDate = errors.New("hire date missing or unparsable")
	// ErrFutureHireDate rejects a record hired after the ingestion date.
	ErrFutureHireDate = errors.New("hire date after ingestion date")
)

// RejectionReason is the machine readable cause of a rejection, as written to the report.
type RejectionReason string

const (
	ReasonUnparsableHireDate RejectionReason = "unparsable_hire_date"
	ReasonFutureHireDate     RejectionReason = "future_hire_date"
)

// RejectionError is returned by RecordValidator.Validate for records excluded from the output.
type RejectionError struct {
	EmployeeID int64
	Reason     RejectionReason
	Err        error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("employee %d rejected (%s): %v", e.EmployeeID, e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// RecordValidator accepts or rejects a single normalized record.
type RecordValidator struct {
	// IngestionDate is the calendar date of the run, as midnight UTC.
	IngestionDate time.Time
}

// NewRecordValidator returns a validator for a run started at ingestedAt.
func NewRecordValidator(ingestedAt time.Time) RecordValidator {
	return RecordValidator{IngestionDate: employee.IngestionDate(ingestedAt)}
}

// Validate returns a *RejectionError when the record has no usable hire date or was hired
// after the ingestion date. A hire on the ingestion date itself is accepted.
func (v RecordValidator) Validate(n employee.Normalized) error {
	if n.HireDate.IsZero() {
		return &RejectionError{EmployeeID: n.EmployeeID, Reason: ReasonUnparsableHireDate, Err: ErrUnparsableHireDate}
	}
	if n.HireDate.After(v.IngestionDate) {
		return &RejectionError{
			EmployeeID: n.EmployeeID,
			Reason:     ReasonFutureHireDate,
			Err:        fmt.Errorf("%w: %s > %s", ErrFutureHireDate, n.HireDate.Format(employee.DateLayout), v.IngestionDate.Format(employee.DateLayout)),
		}
	}
	return nil
}

// MissingRequired lists the required name fields that are empty. Such records are kept.
func MissingRequired(n employee.Normalized) []string {
	var missing []string
	if n.FirstName == "" {
		missing = append(missing, employee.ColFirstName)
	}
	if n.LastName == "" {
		missing = append(missing, employee.ColLastName)
	}
	return missing
}
