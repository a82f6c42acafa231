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

package quality

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aaronlmathis/empclean/aggregate"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/transform"
	"github.com/aaronlmathis/empclean/validators"
)

// runNamespace scopes the name based run identifiers.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/aaronlmathis/empclean/run"))

// RunID derives the identifier of a run from its logical time and input size, so replaying
// the same batch at the same ingestion time yields the same id.
func RunID(ingestedAt time.Time, inputRecords int) string {
	name := fmt.Sprintf("%s|%d", ingestedAt.UTC().Format(time.RFC3339Nano), inputRecords)
	return uuid.NewSHA1(runNamespace, []byte(name)).String()
}

// Builder accumulates report counters during a run. It is not safe for concurrent use; the
// runner feeds it sequentially in input order.
type Builder struct {
	report    Report
	finalized bool
}

// NewBuilder starts a report for a run at ingestedAt.
func NewBuilder(ingestedAt time.Time) *Builder {
	return &Builder{report: Report{
		IngestedAt:       ingestedAt,
		DefaultedByField: make(map[string]int),
	}}
}

// SetInputRecords records the number of source records read, malformed rows included.
func (b *Builder) SetInputRecords(n int) {
	b.report.InputRecords = n
}

// AddMalformedRows counts source rows that could not become raw records.
func (b *Builder) AddMalformedRows(n int) {
	b.report.MalformedRows += n
}

// AddDuplicates counts records removed by deduplication.
func (b *Builder) AddDuplicates(n int) {
	b.report.DuplicatesRemoved += n
}

// AddFieldErrors classifies normalization defects.
func (b *Builder) AddFieldErrors(errs []error) {
	for _, err := range errs {
		switch {
		case errors.Is(err, transform.ErrMalformedSalary):
			b.report.MalformedSalaries++
		case errors.Is(err, transform.ErrMissingSalary):
			b.report.MissingSalaries++
		case errors.Is(err, transform.ErrInvalidEmail):
			b.report.InvalidEmails++
		case errors.Is(err, transform.ErrUnparsableDate):
			var fe *transform.FieldError
			if errors.As(err, &fe) && fe.Field == employee.ColBirthDate {
				b.report.InvalidBirthDates++
			}
		}
	}
}

// AddInvalidBirthDate counts a birth date discarded for lying after the ingestion date.
func (b *Builder) AddInvalidBirthDate() {
	b.report.InvalidBirthDates++
}

// AddMissingRequired counts a kept record with empty required name fields.
func (b *Builder) AddMissingRequired(fields []string) {
	if len(fields) > 0 {
		b.report.MissingRequiredNames++
	}
}

// Reject records a rejected record.
func (b *Builder) Reject(rej *validators.RejectionError) {
	b.report.RejectedInvalidDates++
	switch rej.Reason {
	case validators.ReasonFutureHireDate:
		b.report.RejectedFutureHireDate++
	default:
		b.report.RejectedUnparsableHireDate++
	}
	b.report.Rejections = append(b.report.Rejections, Rejection{
		EmployeeID: rej.EmployeeID,
		Reason:     rej.Reason,
		Detail:     rej.Err.Error(),
	})
}

// AddDefaulted counts fields filled by the missing value policy.
func (b *Builder) AddDefaulted(fields []string) {
	for _, f := range fields {
		b.report.FieldsDefaulted++
		b.report.DefaultedByField[f]++
	}
}

// AddOutput counts an emitted clean record.
func (b *Builder) AddOutput() {
	b.report.OutputRecords++
}

// SetProfiles attaches the before and after quality profiles.
func (b *Builder) SetProfiles(before, after aggregate.Metrics) {
	b.report.Before = before
	b.report.After = after
}

// SetDepartments attaches the per-department summaries.
func (b *Builder) SetDepartments(d []aggregate.Department) {
	b.report.Departments = d
}

// Finalize returns the finished report. The builder must not be used afterwards; further
// calls to Finalize return the same report.
func (b *Builder) Finalize() Report {
	if !b.finalized {
		b.report.RunID = RunID(b.report.IngestedAt, b.report.InputRecords)
		if b.report.Rejections == nil {
			b.report.Rejections = []Rejection{}
		}
		if b.report.Departments == nil {
			b.report.Departments = []aggregate.Department{}
		}
		b.finalized = true
	}

	r := b.report
	r.DefaultedByField = make(map[string]int, len(b.report.DefaultedByField))
	for k, v := range b.report.DefaultedByField {
		r.DefaultedByField[k] = v
	}
	r.Rejections = make([]Rejection, len(b.report.Rejections))
	copy(r.Rejections, b.report.Rejections)
	r.Departments = make([]aggregate.Department, len(b.report.Departments))
	copy(r.Departments, b.report.Departments)
	return r
}
