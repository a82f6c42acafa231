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

package metrics

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/aaronlmathis/empclean/aggregate"
	"github.com/aaronlmathis/empclean/quality"
	"github.com/aaronlmathis/empclean/validators"
)

// Package metrics exports a quality report as Prometheus gauges.
//
// A cleaning run is a batch job, so the gauges are pushed to a Pushgateway once the report is
// final rather than scraped.

const namespace = "empclean"

var (
	inputRecordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "input_records"),
		"Rows ingested, including malformed rows.", nil, nil)
	outputRecordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "output_records"),
		"Clean records written.", nil, nil)
	malformedRowsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "malformed_rows"),
		"Source rows that could not be read as employee records.", nil, nil)
	duplicatesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "duplicates_removed"),
		"Records dropped because their employee_id was already seen.", nil, nil)
	rejectedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "rejected_records"),
		"Records excluded from the output, by reason.", []string{"reason"}, nil)
	defaultedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "fields_defaulted"),
		"Optional fields filled from the missing value policy, by field.", []string{"field"}, nil)
	defectsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "field_defects"),
		"Field values repaired or nulled during cleaning, by defect.", []string{"defect"}, nil)
	profileDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "profile", "value"),
		"Data quality profile of the raw (before) and clean (after) batch.", []string{"stage", "metric"}, nil)
	runTimestampDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "last_run_timestamp_seconds"),
		"Ingestion timestamp of the run.", nil, nil)
)

// ReportCollector implements prometheus.Collector over a finalized report.
type ReportCollector struct {
	report quality.Report
}

// NewReportCollector returns a collector for report.
func NewReportCollector(report quality.Report) *ReportCollector {
	return &ReportCollector{report: report}
}

// Describe implements prometheus.Collector.
func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		inputRecordsDesc, outputRecordsDesc, malformedRowsDesc, duplicatesDesc,
		rejectedDesc, defaultedDesc, defectsDesc, profileDesc, runTimestampDesc,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.report
	gauge := func(desc *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), labels...)
	}

	gauge(inputRecordsDesc, r.InputRecords)
	gauge(outputRecordsDesc, r.OutputRecords)
	gauge(malformedRowsDesc, r.MalformedRows)
	gauge(duplicatesDesc, r.DuplicatesRemoved)

	gauge(rejectedDesc, r.RejectedUnparsableHireDate, string(validators.ReasonUnparsableHireDate))
	gauge(rejectedDesc, r.RejectedFutureHireDate, string(validators.ReasonFutureHireDate))

	fields := make([]string, 0, len(r.DefaultedByField))
	for f := range r.DefaultedByField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		gauge(defaultedDesc, r.DefaultedByField[f], f)
	}

	gauge(defectsDesc, r.MalformedSalaries, "malformed_salary")
	gauge(defectsDesc, r.MissingSalaries, "missing_salary")
	gauge(defectsDesc, r.InvalidEmails, "invalid_email")
	gauge(defectsDesc, r.InvalidBirthDates, "invalid_birth_date")
	gauge(defectsDesc, r.MissingRequiredNames, "missing_required_name")

	profile(ch, "before", r.Before)
	profile(ch, "after", r.After)

	if !r.IngestedAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(runTimestampDesc, prometheus.GaugeValue,
			float64(r.IngestedAt.UnixNano())/1e9)
	}
}

func profile(ch chan<- prometheus.Metric, stage string, m aggregate.Metrics) {
	for _, kv := range []struct {
		name  string
		value int
	}{
		{"records", m.Records},
		{"invalid_emails", m.InvalidEmails},
		{"currency_symbols", m.CurrencySymbols},
		{"future_dates", m.FutureDates},
		{"duplicates", m.Duplicates},
		{"missing_values", m.MissingValues},
	} {
		ch <- prometheus.MustNewConstMetric(profileDesc, prometheus.GaugeValue, float64(kv.value), stage, kv.name)
	}
}

// Push sends the report gauges to the Pushgateway at url, grouped by job and run ID.
func Push(ctx context.Context, url, job string, report quality.Report) error {
	err := push.New(url, job).
		Grouping("run_id", report.RunID).
		Collector(NewReportCollector(report)).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
