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

package empclean

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/empclean/aggregate"
	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/dedup"
	"github.com/aaronlmathis/empclean/defaults"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/enrich"
	"github.com/aaronlmathis/empclean/quality"
	"github.com/aaronlmathis/empclean/transform"
	"github.com/aaronlmathis/empclean/validators"
)

// Package empclean cleans batches of raw employee records into a validated, enriched dataset
// and reports on the defects it found.
//
// The core is Cleaner.Clean, a pure function of the raw batch and the run timestamp:
//
//	Deduplicate -> per record {Normalize -> Validate -> Enrich -> Default} -> Report
//
// The Pipeline wraps it with a DataSource and any number of DataSinks:
//
//	source, _ := readers.NewCSVReader(in)
//	sink, _ := writers.NewCSVWriter(out)
//	pipeline, err := empclean.NewPipeline().
//	    From(source).
//	    To(sink).
//	    WithIngestionTime(ts).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	result, err := pipeline.Execute(ctx)
//
// Two runs over the same batch with the same ingestion time produce identical output and
// identical reports.

// Result is the outcome of one cleaning run.
type Result struct {
	// Records are the clean records in input order of their first occurrence.
	Records []employee.CleanRecord
	// Rows are Records in the sink representation, see employee.CleanRecord.Record.
	Rows   []core.Record
	Report quality.Report
}

// Cleaner runs the cleaning rules over an in-memory batch.
type Cleaner struct {
	IngestedAt      time.Time
	Workers         int
	Bands           enrich.Bands
	Policy          defaults.Policy
	Logger          *zap.Logger
	CheckInvariants bool
}

// NewCleaner returns a Cleaner for a run at ingestedAt with the standard band thresholds and
// missing value policy.
func NewCleaner(ingestedAt time.Time) *Cleaner {
	return &Cleaner{
		IngestedAt:      ingestedAt,
		Workers:         runtime.GOMAXPROCS(0),
		Bands:           enrich.DefaultBands(),
		Policy:          defaults.DefaultPolicy(),
		Logger:          zap.NewNop(),
		CheckInvariants: true,
	}
}

// outcome is the per-record result, written by exactly one worker into its own slot.
type outcome struct {
	fieldErrs   []error
	rejection   *validators.RejectionError
	futureBirth bool
	missing     []string
	defaulted   []string
	record      employee.CleanRecord
}

// Clean runs the pipeline stages over raws and returns the clean records and the finalized
// report. It only fails when ctx is cancelled or the output violates an invariant.
func (c *Cleaner) Clean(ctx context.Context, raws []employee.RawRecord) (*Result, error) {
	return c.clean(ctx, raws, 0)
}

func (c *Cleaner) clean(ctx context.Context, raws []employee.RawRecord, malformed int) (*Result, error) {
	if c.IngestedAt.IsZero() {
		return nil, errors.New("cleaner requires an ingestion time")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	builder := quality.NewBuilder(c.IngestedAt)
	builder.SetInputRecords(len(raws) + malformed)
	builder.AddMalformedRows(malformed)

	rawRows := make([]core.Record, len(raws))
	for i, r := range raws {
		rawRows[i] = r.Record()
	}
	before, err := aggregate.Profile(ctx, c.IngestedAt, employee.RawColumns, rawRows)
	if err != nil {
		return nil, err
	}

	unique, removed := dedup.Deduplicate(raws)
	builder.AddDuplicates(removed)

	validator := validators.NewRecordValidator(c.IngestedAt)
	enricher := enrich.New(c.IngestedAt, c.Bands)
	outcomes := make([]outcome, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range unique {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			outcomes[i] = c.process(unique[i], validator, enricher)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]employee.CleanRecord, 0, len(unique))
	for _, o := range outcomes {
		builder.AddFieldErrors(o.fieldErrs)
		if o.rejection != nil {
			builder.Reject(o.rejection)
			logger.Debug("record rejected",
				zap.Int64("employee_id", o.rejection.EmployeeID),
				zap.String("reason", string(o.rejection.Reason)),
				zap.Error(o.rejection.Err))
			continue
		}
		if o.futureBirth {
			builder.AddInvalidBirthDate()
		}
		builder.AddMissingRequired(o.missing)
		builder.AddDefaulted(o.defaulted)
		builder.AddOutput()
		records = append(records, o.record)
	}

	rows := make([]core.Record, len(records))
	for i, r := range records {
		rows[i] = r.Record()
	}

	if c.CheckInvariants {
		if err := validators.NewBatchValidator(c.IngestedAt).Validate(rows); err != nil {
			return nil, fmt.Errorf("clean batch failed validation: %w", err)
		}
	}

	after, err := aggregate.Profile(ctx, c.IngestedAt, employee.Columns, rows)
	if err != nil {
		return nil, err
	}
	builder.SetProfiles(before, after)

	departments, err := aggregate.Departments(ctx, rows)
	if err != nil {
		return nil, err
	}
	builder.SetDepartments(departments)

	report := builder.Finalize()
	logger.Info("cleaning run complete", zap.Object("report", report))

	return &Result{Records: records, Rows: rows, Report: report}, nil
}

// process runs the per-record stages. It touches no shared mutable state.
func (c *Cleaner) process(raw employee.RawRecord, v validators.RecordValidator, e enrich.Enricher) outcome {
	n, fieldErrs := transform.Normalize(raw)
	o := outcome{fieldErrs: fieldErrs}

	if err := v.Validate(n); err != nil {
		var rej *validators.RejectionError
		if errors.As(err, &rej) {
			o.rejection = rej
		} else {
			o.rejection = &validators.RejectionError{EmployeeID: n.EmployeeID, Reason: validators.ReasonUnparsableHireDate, Err: err}
		}
		return o
	}

	o.futureBirth = e.BirthDateInFuture(n)
	o.missing = validators.MissingRequired(n)
	o.record = e.Enrich(n)
	o.defaulted = c.Policy.Fill(n, &o.record)
	return o
}
