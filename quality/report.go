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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/aaronlmathis/empclean/aggregate"
	"github.com/aaronlmathis/empclean/validators"
)

// Package quality holds the report produced by a cleaning run and the builder that assembles
// it while the run progresses.

// Rejection records one input row excluded from the output.
type Rejection struct {
	EmployeeID int64                      `json:"employee_id"`
	Reason     validators.RejectionReason `json:"reason"`
	Detail     string                     `json:"detail"`
}

// Report summarizes a single cleaning run. It is a value: once finalized it is never modified.
type Report struct {
	RunID      string    `json:"run_id"`
	IngestedAt time.Time `json:"ingested_at"`

	InputRecords      int `json:"input_records"`
	MalformedRows     int `json:"malformed_rows"`
	DuplicatesRemoved int `json:"duplicates_removed"`

	RejectedInvalidDates       int `json:"rejected_invalid_dates"`
	RejectedUnparsableHireDate int `json:"rejected_unparsable_hire_date"`
	RejectedFutureHireDate     int `json:"rejected_future_hire_date"`

	OutputRecords int `json:"output_records"`

	FieldsDefaulted  int            `json:"fields_defaulted"`
	DefaultedByField map[string]int `json:"defaulted_by_field"`

	MalformedSalaries    int `json:"malformed_salaries"`
	MissingSalaries      int `json:"missing_salaries"`
	InvalidEmails        int `json:"invalid_emails"`
	InvalidBirthDates    int `json:"invalid_birth_dates"`
	MissingRequiredNames int `json:"missing_required_names"`

	Before aggregate.Metrics `json:"before"`
	After  aggregate.Metrics `json:"after"`

	Rejections  []Rejection            `json:"rejections"`
	Departments []aggregate.Department `json:"departments"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the headline counters.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", r.RunID)
	enc.AddInt("input_records", r.InputRecords)
	enc.AddInt("malformed_rows", r.MalformedRows)
	enc.AddInt("duplicates_removed", r.DuplicatesRemoved)
	enc.AddInt("rejected_invalid_dates", r.RejectedInvalidDates)
	enc.AddInt("output_records", r.OutputRecords)
	enc.AddInt("fields_defaulted", r.FieldsDefaulted)
	enc.AddInt("malformed_salaries", r.MalformedSalaries)
	enc.AddInt("invalid_emails", r.InvalidEmails)
	enc.AddInt("invalid_birth_dates", r.InvalidBirthDates)
	return nil
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode quality report: %w", err)
	}
	return nil
}

// WriteFile writes the report as JSON to path, replacing any existing file.
func (r Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
