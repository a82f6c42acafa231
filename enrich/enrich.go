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

package enrich

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/empclean/employee"
)

// Package enrich derives the computed columns of a clean record: full name, email domain,
// age, tenure, salary band and the run timestamps.

var daysPerYear = decimal.RequireFromString("365.25")

// Bands holds the salary band thresholds. Junior < MidFloor <= Mid < SeniorFloor <= Senior.
type Bands struct {
	MidFloor    decimal.Decimal
	SeniorFloor decimal.Decimal
}

// DefaultBands returns the standard thresholds of 50,000 and 80,000.
func DefaultBands() Bands {
	return Bands{
		MidFloor:    decimal.NewFromInt(50000),
		SeniorFloor: decimal.NewFromInt(80000),
	}
}

// Validate checks that the thresholds are non-negative and ordered.
func (b Bands) Validate() error {
	if b.MidFloor.IsNegative() || b.SeniorFloor.IsNegative() {
		return errors.New("salary band thresholds must be non-negative")
	}
	if b.SeniorFloor.LessThan(b.MidFloor) {
		return fmt.Errorf("senior floor %s is below mid floor %s", b.SeniorFloor, b.MidFloor)
	}
	return nil
}

// Band maps a salary onto its band. A null salary is BandUnknown.
func (b Bands) Band(salary decimal.NullDecimal) employee.SalaryBand {
	switch {
	case !salary.Valid:
		return employee.BandUnknown
	case salary.Decimal.LessThan(b.MidFloor):
		return employee.BandJunior
	case salary.Decimal.LessThan(b.SeniorFloor):
		return employee.BandMid
	default:
		return employee.BandSenior
	}
}

// Enricher computes derived fields relative to a single run timestamp.
type Enricher struct {
	IngestedAt time.Time
	Bands      Bands
}

// New returns an Enricher for a run started at ingestedAt.
func New(ingestedAt time.Time, bands Bands) Enricher {
	return Enricher{IngestedAt: ingestedAt, Bands: bands}
}

// BirthDateInFuture reports whether n carries a birth date after the ingestion date.
// Enrich discards such dates.
func (e Enricher) BirthDateInFuture(n employee.Normalized) bool {
	return !n.BirthDate.IsZero() && n.BirthDate.After(employee.IngestionDate(e.IngestedAt))
}

// Enrich builds the clean record for an accepted normalized record. Optional text fields are
// left for the missing value policy.
func (e Enricher) Enrich(n employee.Normalized) employee.CleanRecord {
	ingestion := employee.IngestionDate(e.IngestedAt)

	c := employee.CleanRecord{
		EmployeeID:  n.EmployeeID,
		FirstName:   n.FirstName,
		LastName:    n.LastName,
		FullName:    FullName(n.FirstName, n.LastName),
		Email:       n.Email,
		EmailDomain: EmailDomain(n.Email),
		HireDate:    n.HireDate,
		JobTitle:    n.JobTitle,
		Department:  n.Department,
		Salary:      n.Salary,
		SalaryBand:  e.Bands.Band(n.Salary),
		ManagerID:   n.ManagerID,
		TenureYears: TenureYears(n.HireDate, ingestion),
		CreatedAt:   e.IngestedAt,
		UpdatedAt:   e.IngestedAt,
	}
	if n.Salary.Valid {
		c.Salary.Decimal = n.Salary.Decimal.Round(2)
	}

	if !n.BirthDate.IsZero() && !e.BirthDateInFuture(n) {
		c.BirthDate = n.BirthDate
		age := ingestion.Year() - n.BirthDate.Year()
		c.Age = &age
	}
	return c
}

// FullName is first + " " + last. A missing side leaves its separator in place, so "Alice" with
// no last name becomes "Alice ".
func FullName(first, last string) string {
	return first + " " + last
}

// EmailDomain returns the part after '@', or "" when there is none.
func EmailDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return domain
}

// TenureYears returns the whole days between hire and ingestion divided by 365.25, rounded to
// one fractional digit. Both dates are expected at midnight UTC.
func TenureYears(hire, ingestion time.Time) decimal.Decimal {
	if hire.IsZero() {
		return decimal.Zero
	}
	days := (ingestion.Unix() - hire.Unix()) / 86400
	return decimal.NewFromInt(days).DivRound(daysPerYear, 1)
}
