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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/aaronlmathis/empclean"
	"github.com/aaronlmathis/empclean/config"
	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/location"
	"github.com/aaronlmathis/empclean/logging"
	"github.com/aaronlmathis/empclean/metrics"
	"github.com/aaronlmathis/empclean/writers"
)

// Command empclean runs one cleaning pass over an employee dataset.
//
// Usage:
//
//	empclean [-config empclean.yaml] [-env .env] [-input raw.csv] [-output clean.csv,clean.parquet]
//
// Locations are local paths or s3://, postgres:// and mongodb:// URLs. Flags override the
// configuration file, which is overridden by EMPCLEAN_* environment variables.

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runWithArgs(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func runWithArgs(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("empclean", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file")
	envFile := fs.String("env", ".env", "path to .env file (ignored when missing)")
	input := fs.String("input", "", "input location, overrides the configuration")
	outputs := fs.String("output", "", "comma separated output locations, overrides the configuration")
	report := fs.String("report", "", "quality report location, overrides the configuration")
	sample := fs.String("sample", "", "sample export location, overrides the configuration")
	ingestionTime := fs.String("ingestion-time", "", "run timestamp in RFC 3339, overrides the configuration")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: empclean [options]\n\nCleans an employee dataset and writes a data quality report.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "error: unexpected arguments %v\n", fs.Args())
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Read(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	if *input != "" {
		cfg.Input = *input
	}
	if *outputs != "" {
		cfg.Outputs = nil
		for _, o := range strings.Split(*outputs, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Outputs = append(cfg.Outputs, o)
			}
		}
	}
	if *report != "" {
		cfg.ReportPath = *report
	}
	if *sample != "" {
		cfg.SamplePath = *sample
	}
	if *ingestionTime != "" {
		cfg.IngestionTime = *ingestionTime
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: invalid configuration: %v\n", err)
		return exitUsage
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cleaning run failed", zap.Error(err))
		return exitFailed
	}
	return exitOK
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Validate has already checked every derived value.
	ingestedAt, _ := cfg.IngestedAt()
	bands, _ := cfg.Bands()
	policy, _ := cfg.Policy()
	strategy, _ := cfg.Strategy()
	comma, _ := cfg.Comma()

	opts := location.Options{
		S3Region:    cfg.S3.Region,
		S3Endpoint:  cfg.S3.Endpoint,
		S3PathStyle: cfg.S3.PathStyle,
		CSVComma:    comma,
	}

	in, err := location.Parse(cfg.Input, opts)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	source, err := in.NewSource(ctx)
	if err != nil {
		return fmt.Errorf("input %s: %w", cfg.Input, err)
	}

	sinks := make([]core.DataSink, 0, len(cfg.Outputs))
	abort := func() {
		source.Close()
		for _, s := range sinks {
			core.AbortSink(s)
		}
	}
	for _, raw := range cfg.Outputs {
		out, err := location.Parse(raw, opts)
		if err != nil {
			abort()
			return fmt.Errorf("output: %w", err)
		}
		sink, err := out.NewSink(ctx)
		if err != nil {
			abort()
			return fmt.Errorf("output %s: %w", raw, err)
		}
		sinks = append(sinks, sink)
	}

	builder := empclean.NewPipeline().
		From(source).
		To(sinks...).
		WithSalaryBands(bands).
		WithMissingValuePolicy(policy).
		WithInvariantCheck(cfg.CheckInvariants).
		WithErrorStrategy(strategy).
		WithLogger(logger)
	if !ingestedAt.IsZero() {
		builder = builder.WithIngestionTime(ingestedAt)
	}
	if cfg.Workers > 0 {
		builder = builder.WithWorkers(cfg.Workers)
	}
	pipeline, err := builder.Build()
	if err != nil {
		abort()
		return err
	}

	logger.Info("cleaning run started",
		zap.String("input", cfg.Input),
		zap.Strings("outputs", cfg.Outputs),
		zap.Time("ingested_at", pipeline.IngestedAt()))

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}

	if err := writeReport(ctx, cfg.ReportPath, opts, result); err != nil {
		return err
	}
	logger.Info("quality report written", zap.String("location", cfg.ReportPath))

	if cfg.SamplePath != "" {
		if err := writeSample(ctx, cfg.SamplePath, cfg.SampleSize, opts, result); err != nil {
			return err
		}
		logger.Info("sample written", zap.String("location", cfg.SamplePath), zap.Int("rows", min(cfg.SampleSize, len(result.Rows))))
	}

	if cfg.Metrics.PushgatewayURL != "" {
		// The run already succeeded; a metrics outage is not worth failing it over.
		if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, result.Report); err != nil {
			logger.Warn("metrics push failed", zap.Error(err))
		}
	}
	return nil
}

func writeReport(ctx context.Context, raw string, opts location.Options, result *empclean.Result) error {
	w, err := location.Create(ctx, raw, opts)
	if err != nil {
		return fmt.Errorf("report %s: %w", raw, err)
	}
	if err := result.Report.WriteJSON(w); err != nil {
		w.Abort()
		return fmt.Errorf("report %s: %w", raw, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("report %s: %w", raw, err)
	}
	return nil
}

func writeSample(ctx context.Context, raw string, n int, opts location.Options, result *empclean.Result) error {
	sink, err := location.NewCSVSink(ctx, raw, opts, writers.WithHeaders(empclean.SampleColumns))
	if err != nil {
		return fmt.Errorf("sample %s: %w", raw, err)
	}
	if err := empclean.WriteSample(ctx, result.Rows, n, sink); err != nil {
		return fmt.Errorf("sample %s: %w", raw, err)
	}
	return nil
}
