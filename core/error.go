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

package core

import "context"

// ErrorHandler observes rows that could not be turned into raw employee records.
// Returning a non-nil error stops the run; returning nil skips the row.
type ErrorHandler interface {
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorStrategy defines how the pipeline treats rows it cannot convert.
type ErrorStrategy int

const (
	// SkipErrors drops the row, counts it as malformed and continues. This is the default.
	SkipErrors ErrorStrategy = iota
	// FailFast aborts the run on the first malformed row.
	FailFast
	// CollectErrors behaves like SkipErrors and additionally hands every error to the ErrorHandler.
	CollectErrors
)

// String returns the configuration spelling of the strategy.
func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail_fast"
	case CollectErrors:
		return "collect"
	default:
		return "skip"
	}
}

// ParseErrorStrategy maps a configuration value onto an ErrorStrategy.
// Unknown values yield SkipErrors and false.
func ParseErrorStrategy(s string) (ErrorStrategy, bool) {
	switch s {
	case "", "skip", "skip_errors":
		return SkipErrors, true
	case "fail_fast", "failfast":
		return FailFast, true
	case "collect", "collect_errors":
		return CollectErrors, true
	default:
		return SkipErrors, false
	}
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}
