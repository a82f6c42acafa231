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
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/defaults"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/enrich"
)

// PipelineBuilder provides a fluent API for constructing cleaning pipelines.
// Use NewPipeline() to create a new builder, then chain From, To and configuration methods.
type PipelineBuilder struct {
	pipeline      *Pipeline
	ingestionTime time.Time
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.Transformer, 0),
			strategy:     core.SkipErrors,
			cleaner:      NewCleaner(time.Time{}),
		},
	}
}

// From sets the DataSource the raw records are read from.
func (pb *PipelineBuilder) From(source core.DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a Transformer applied to every source record before it is converted into a
// raw employee record, for example transform.Rename to map foreign column names.
func (pb *PipelineBuilder) Transform(transformer core.Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// To adds DataSinks. Every clean record is written to every sink.
func (pb *PipelineBuilder) To(sinks ...core.DataSink) *PipelineBuilder {
	pb.pipeline.sinks = append(pb.pipeline.sinks, sinks...)
	return pb
}

// WithIngestionTime fixes the run timestamp. Without it Build captures the current time once.
func (pb *PipelineBuilder) WithIngestionTime(ts time.Time) *PipelineBuilder {
	pb.ingestionTime = ts
	return pb
}

// WithWorkers bounds the number of records processed concurrently.
func (pb *PipelineBuilder) WithWorkers(n int) *PipelineBuilder {
	pb.pipeline.cleaner.Workers = n
	return pb
}

// WithSalaryBands overrides the salary band thresholds.
func (pb *PipelineBuilder) WithSalaryBands(bands enrich.Bands) *PipelineBuilder {
	pb.pipeline.cleaner.Bands = bands
	return pb
}

// WithMissingValuePolicy overrides the fill rules for absent optional fields.
func (pb *PipelineBuilder) WithMissingValuePolicy(policy defaults.Policy) *PipelineBuilder {
	pb.pipeline.cleaner.Policy = policy
	return pb
}

// WithInvariantCheck enables or disables validation of the finished batch. Enabled by default.
func (pb *PipelineBuilder) WithInvariantCheck(enabled bool) *PipelineBuilder {
	pb.pipeline.cleaner.CheckInvariants = enabled
	return pb
}

// WithErrorStrategy sets how rows that cannot become raw employee records are handled.
func (pb *PipelineBuilder) WithErrorStrategy(strategy core.ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom handler for malformed rows.
func (pb *PipelineBuilder) WithErrorHandler(handler core.ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the logger. The default discards everything.
func (pb *PipelineBuilder) WithLogger(logger *zap.Logger) *PipelineBuilder {
	pb.pipeline.logger = logger
	pb.pipeline.cleaner.Logger = logger
	return pb
}

// Build validates and constructs the Pipeline.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if len(p.sinks) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one data sink")
	}
	if err := p.cleaner.Bands.Validate(); err != nil {
		return nil, fmt.Errorf("invalid salary bands: %w", err)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
		p.cleaner.Logger = p.logger
	}

	ts := pb.ingestionTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	p.cleaner.IngestedAt = ts
	return p, nil
}

// Pipeline reads a raw batch from its source, cleans it and writes the result to its sinks.
type Pipeline struct {
	transformers []core.Transformer
	source       core.DataSource
	sinks        []core.DataSink
	strategy     core.ErrorStrategy
	errorHandler core.ErrorHandler
	logger       *zap.Logger
	cleaner      *Cleaner
	errors       []error
}

// IngestedAt returns the run timestamp.
func (p *Pipeline) IngestedAt() time.Time {
	return p.cleaner.IngestedAt
}

// Errors returns the row errors collected under the CollectErrors strategy.
func (p *Pipeline) Errors() []error {
	return p.errors
}

// Execute runs the pipeline once.
//
// The whole source is read before cleaning starts. A read error aborts the run. Rows that cannot
// be converted into raw employee records are handled by the error strategy and counted as
// malformed. Every sink is written and flushed before any is closed; when the run fails, sinks
// that have not been closed yet are aborted so their destinations keep the previous batch.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	closed := make([]bool, len(p.sinks))
	defer func() {
		if p.source != nil {
			p.source.Close()
		}
		for i, sink := range p.sinks {
			if !closed[i] {
				core.AbortSink(sink)
			}
		}
	}()

	raws, malformed, err := p.readAll(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("source exhausted", zap.Int("records", len(raws)), zap.Int("malformed", malformed))

	result, err := p.cleaner.clean(ctx, raws, malformed)
	if err != nil {
		return nil, err
	}

	for i, sink := range p.sinks {
		if err := writeAll(ctx, sink, result.Rows); err != nil {
			p.logger.Error("sink failed", zap.Int("sink", i), zap.Error(err))
			return nil, fmt.Errorf("sink %d: %w", i, err)
		}
	}
	for i, sink := range p.sinks {
		closed[i] = true
		if err := sink.Close(); err != nil {
			p.logger.Error("sink close failed", zap.Int("sink", i), zap.Error(err))
			return nil, fmt.Errorf("sink %d: failed to close: %w", i, err)
		}
	}
	return result, nil
}

func (p *Pipeline) readAll(ctx context.Context) ([]employee.RawRecord, int, error) {
	var raws []employee.RawRecord
	malformed := 0

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		record, err := p.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read source: %w", err)
		}

		if len(record) == 0 {
			continue
		}

		transformed, err := p.applyTransformations(ctx, record)
		if err == nil {
			var raw employee.RawRecord
			if raw, err = employee.FromRecord(transformed); err == nil {
				raws = append(raws, raw)
				continue
			}
		}

		malformed++
		p.logger.Debug("malformed source row", zap.Error(err))
		if err := p.handleError(ctx, record, err); err != nil {
			return nil, 0, err
		}
	}
	return raws, malformed, nil
}

func (p *Pipeline) applyTransformations(ctx context.Context, record core.Record) (core.Record, error) {
	current := record
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}

// handleError applies the error strategy to a malformed row. A non-nil return stops the run.
func (p *Pipeline) handleError(ctx context.Context, record core.Record, err error) error {
	switch p.strategy {
	case core.FailFast:
		return fmt.Errorf("malformed source row: %w", err)
	case core.CollectErrors:
		p.errors = append(p.errors, err)
	}
	if p.errorHandler != nil {
		return p.errorHandler.HandleError(ctx, record, err)
	}
	return nil
}

func writeAll(ctx context.Context, sink core.DataSink, rows []core.Record) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Write(ctx, row); err != nil {
			return err
		}
	}
	return sink.Flush()
}
