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

package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/dedup"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/transform"
)

// Metrics is the data quality profile of one batch of records.
type Metrics struct {
	Records         int `json:"records"`
	InvalidEmails   int `json:"invalid_emails"`
	CurrencySymbols int `json:"currency_symbols"`
	FutureDates     int `json:"future_dates"`
	Duplicates      int `json:"duplicates"`
	MissingValues   int `json:"missing_values"`
}

// Profiler is an Aggregator that measures the defects the pipeline repairs. The same profiler
// runs over the raw batch and the clean batch so the two profiles are comparable.
type Profiler struct {
	ingestionDate time.Time
	fields        []string
	metrics       Metrics
	ids           []int64
}

// NewProfiler returns a profiler for a run started at ingestedAt that counts nil values
// over fields.
func NewProfiler(ingestedAt time.Time, fields []string) *Profiler {
	return &Profiler{
		ingestionDate: employee.IngestionDate(ingestedAt),
		fields:        fields,
	}
}

// Add inspects one record.
func (p *Profiler) Add(ctx context.Context, record core.Record) error {
	p.metrics.Records++

	if email, ok := record[employee.ColEmail].(string); ok {
		if email = strings.TrimSpace(email); email != "" && !transform.ValidEmail(email) {
			p.metrics.InvalidEmails++
		}
	}

	if salary, ok := record[employee.ColSalary].(string); ok && strings.ContainsAny(salary, "$,") {
		p.metrics.CurrencySymbols++
	}

	for _, field := range []string{employee.ColHireDate, employee.ColBirthDate} {
		if s, ok := record[field].(string); ok {
			if t, parsed := transform.ParseDate(s); parsed && t.After(p.ingestionDate) {
				p.metrics.FutureDates++
			}
		}
	}

	if id, err := cast.ToInt64E(record[employee.ColEmployeeID]); err == nil {
		p.ids = append(p.ids, id)
	}

	// Sources map blank cells to nil, so only nil counts as missing. Empty strings written
	// by the missing value policy are defined values.
	for _, field := range p.fields {
		if value, exists := record[field]; !exists || value == nil {
			p.metrics.MissingValues++
		}
	}
	return nil
}

// Metrics returns the profile of the records added so far.
func (p *Profiler) Metrics() Metrics {
	m := p.metrics
	m.Duplicates = dedup.CountDuplicates(p.ids)
	return m
}

// Result returns the profile as a record.
func (p *Profiler) Result() (core.Record, error) {
	m := p.Metrics()
	return core.Record{
		"records":          m.Records,
		"invalid_emails":   m.InvalidEmails,
		"currency_symbols": m.CurrencySymbols,
		"future_dates":     m.FutureDates,
		"duplicates":       m.Duplicates,
		"missing_values":   m.MissingValues,
	}, nil
}

// Reset clears the profiler for reuse.
func (p *Profiler) Reset() {
	p.metrics = Metrics{}
	p.ids = nil
}

// Profile runs a fresh profiler over records.
func Profile(ctx context.Context, ingestedAt time.Time, fields []string, records []core.Record) (Metrics, error) {
	p := NewProfiler(ingestedAt, fields)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		if err := p.Add(ctx, record); err != nil {
			return Metrics{}, err
		}
	}
	return p.Metrics(), nil
}
