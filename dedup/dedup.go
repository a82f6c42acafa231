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

package dedup

import "github.com/aaronlmathis/empclean/employee"

// Package dedup resolves duplicate employee identities before any per-record work runs.

// Deduplicate keeps one record per employee_id. The first occurrence wins and the relative
// order of first occurrences is preserved. It returns the surviving records and the number
// of records that were dropped.
func Deduplicate(raws []employee.RawRecord) ([]employee.RawRecord, int) {
	seen := make(map[int64]struct{}, len(raws))
	out := make([]employee.RawRecord, 0, len(raws))
	for _, r := range raws {
		if _, dup := seen[r.EmployeeID]; dup {
			continue
		}
		seen[r.EmployeeID] = struct{}{}
		out = append(out, r)
	}
	return out, len(raws) - len(out)
}

// CountDuplicates returns how many records in ids repeat an earlier id.
func CountDuplicates(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	dups := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			dups++
			continue
		}
		seen[id] = struct{}{}
	}
	return dups
}
