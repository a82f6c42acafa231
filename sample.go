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

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/transform"
)

// SampleColumns is the projection used for the sample export.
var SampleColumns = []string{
	employee.ColEmployeeID, employee.ColFullName, employee.ColEmail, employee.ColSalary,
	employee.ColSalaryBand, employee.ColAge, employee.ColTenureYears, employee.ColDepartment,
}

// DefaultSampleSize is the number of rows in the sample export.
const DefaultSampleSize = 10

// WriteSample writes the first n rows, projected onto SampleColumns, to sink and closes it.
// On failure the sink is aborted instead.
func WriteSample(ctx context.Context, rows []core.Record, n int, sink core.DataSink) (err error) {
	defer func() {
		if err != nil {
			core.AbortSink(sink)
			return
		}
		err = sink.Close()
	}()

	if n < 0 {
		n = 0
	}
	if n > len(rows) {
		n = len(rows)
	}
	project := transform.Select(SampleColumns...)
	for _, row := range rows[:n] {
		projected, err := project.Transform(ctx, row)
		if err != nil {
			return err
		}
		if err := sink.Write(ctx, projected); err != nil {
			return err
		}
	}
	return sink.Flush()
}
