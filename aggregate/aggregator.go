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
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/aaronlmathis/empclean/core"
)

// Package aggregate computes batch level summaries: the before/after quality profile of a run
// and per-department statistics of the clean dataset.

// Aggregator defines the interface for data aggregation operations.
// Aggregators process multiple records and produce a summary result.
type Aggregator interface {
	// Add processes a record for aggregation.
	Add(ctx context.Context, record core.Record) error
	// Result returns the aggregated result as a Record.
	Result() (core.Record, error)
	// Reset clears the aggregator state for reuse.
	Reset()
}

// CountAggregator counts the number of records.
type CountAggregator struct {
	count int
}

func (c *CountAggregator) Add(ctx context.Context, record core.Record) error {
	c.count++
	return nil
}

func (c *CountAggregator) Result() (core.Record, error) {
	return core.Record{"count": c.count}, nil
}

func (c *CountAggregator) Reset() {
	c.count = 0
}

// SumAggregator sums the numeric values of a field. Nil and non-numeric values are skipped.
type SumAggregator struct {
	Field string
	sum   decimal.Decimal
}

func (s *SumAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := toDecimal(record[s.Field]); ok {
		s.sum = s.sum.Add(num)
	}
	return nil
}

func (s *SumAggregator) Result() (core.Record, error) {
	return core.Record{"sum": s.sum}, nil
}

func (s *SumAggregator) Reset() {
	s.sum = decimal.Zero
}

// AvgAggregator averages the numeric values of a field, rounded to Places digits.
// The result is nil when no value was seen.
type AvgAggregator struct {
	Field  string
	Places int32
	sum    decimal.Decimal
	count  int64
}

func (a *AvgAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := toDecimal(record[a.Field]); ok {
		a.sum = a.sum.Add(num)
		a.count++
	}
	return nil
}

func (a *AvgAggregator) Result() (core.Record, error) {
	if a.count == 0 {
		return core.Record{"avg": nil}, nil
	}
	return core.Record{"avg": a.sum.DivRound(decimal.NewFromInt(a.count), a.Places)}, nil
}

func (a *AvgAggregator) Reset() {
	a.sum = decimal.Zero
	a.count = 0
}

// MinAggregator finds the minimum numeric value of a field.
type MinAggregator struct {
	Field string
	min   decimal.Decimal
	set   bool
}

func (m *MinAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := toDecimal(record[m.Field]); ok {
		if !m.set || num.LessThan(m.min) {
			m.min = num
			m.set = true
		}
	}
	return nil
}

func (m *MinAggregator) Result() (core.Record, error) {
	if !m.set {
		return core.Record{"min": nil}, nil
	}
	return core.Record{"min": m.min}, nil
}

func (m *MinAggregator) Reset() {
	m.min = decimal.Zero
	m.set = false
}

// MaxAggregator finds the maximum numeric value of a field.
type MaxAggregator struct {
	Field string
	max   decimal.Decimal
	set   bool
}

func (m *MaxAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := toDecimal(record[m.Field]); ok {
		if !m.set || num.GreaterThan(m.max) {
			m.max = num
			m.set = true
		}
	}
	return nil
}

func (m *MaxAggregator) Result() (core.Record, error) {
	if !m.set {
		return core.Record{"max": nil}, nil
	}
	return core.Record{"max": m.max}, nil
}

func (m *MaxAggregator) Reset() {
	m.max = decimal.Zero
	m.set = false
}

// toDecimal converts the representations used by clean records (decimal strings, floats,
// integers) into a decimal.
func toDecimal(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(n), true
	}
}

func cloneAggregator(aggregator Aggregator) (Aggregator, error) {
	switch agg := aggregator.(type) {
	case *CountAggregator:
		return &CountAggregator{}, nil
	case *SumAggregator:
		return &SumAggregator{Field: agg.Field}, nil
	case *AvgAggregator:
		return &AvgAggregator{Field: agg.Field, Places: agg.Places}, nil
	case *MinAggregator:
		return &MinAggregator{Field: agg.Field}, nil
	case *MaxAggregator:
		return &MaxAggregator{Field: agg.Field}, nil
	default:
		if cloner, ok := aggregator.(interface{ Clone() Aggregator }); ok {
			return cloner.Clone(), nil
		}
		return nil, fmt.Errorf("aggregator %T cannot be cloned per group", aggregator)
	}
}
