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

package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package employee holds the record types that flow through the cleaning pipeline.
//
// A RawRecord is what a source produced, a Normalized record is the result of the
// per-field cleaning primitives, and a CleanRecord is the validated, enriched row that
// is handed to the sinks.

// Column names of the raw and clean datasets.
const (
	ColEmployeeID  = "employee_id"
	ColFirstName   = "first_name"
	ColLastName    = "last_name"
	ColFullName    = "full_name"
	ColEmail       = "email"
	ColEmailDomain = "email_domain"
	ColHireDate    = "hire_date"
	ColJobTitle    = "job_title"
	ColDepartment  = "department"
	ColSalary      = "salary"
	ColSalaryBand  = "salary_band"
	ColManagerID   = "manager_id"
	ColAddress     = "address"
	ColCity        = "city"
	ColState       = "state"
	ColZipCode     = "zip_code"
	ColBirthDate   = "birth_date"
	ColAge         = "age"
	ColTenureYears = "tenure_years"
	ColStatus      = "status"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
)

// DateLayout is the only accepted external date format.
const DateLayout = "2006-01-02"

// RawColumns lists the fifteen fields of an ingested row in source order.
var RawColumns = []string{
	ColEmployeeID, ColFirstName, ColLastName, ColEmail, ColHireDate, ColJobTitle,
	ColDepartment, ColSalary, ColManagerID, ColAddress, ColCity, ColState, ColZipCode,
	ColBirthDate, ColStatus,
}

// Columns is the fixed output schema, in output order.
var Columns = []string{
	ColEmployeeID, ColFirstName, ColLastName, ColFullName, ColEmail, ColEmailDomain,
	ColHireDate, ColJobTitle, ColDepartment, ColSalary, ColSalaryBand, ColManagerID,
	ColAddress, ColCity, ColState, ColZipCode, ColBirthDate, ColAge, ColTenureYears,
	ColStatus, ColCreatedAt, ColUpdatedAt,
}

// SalaryBand is the coarse salary bucket of a clean record.
type SalaryBand string

const (
	BandJunior  SalaryBand = "Junior"
	BandMid     SalaryBand = "Mid"
	BandSenior  SalaryBand = "Senior"
	BandUnknown SalaryBand = "Unknown" // salary missing or malformed
)

// DefaultStatus is the status assigned when a row carries none.
const DefaultStatus = "Active"

// RawRecord is an employee row as ingested. Nil pointers mark absent values.
type RawRecord struct {
	EmployeeID int64
	FirstName  *string
	LastName   *string
	Email      *string
	HireDate   *string
	BirthDate  *string
	JobTitle   *string
	Department *string
	Salary     *string
	ManagerID  *int64
	Address    *string
	City       *string
	State      *string
	ZipCode    *string
	Status     *string
}

// Normalized is a raw record after field-level cleaning.
// Dates are the zero time when absent or unparsable; Email is empty when absent or invalid.
type Normalized struct {
	EmployeeID int64
	FirstName  string
	LastName   string
	Email      string
	HireDate   time.Time
	BirthDate  time.Time
	JobTitle   string
	Department string
	Salary     decimal.NullDecimal
	ManagerID  *int64

	// Optional fields stay nullable until the missing value policy runs.
	Address *string
	City    *string
	State   *string
	ZipCode *string
	Status  *string
}

// CleanRecord is a validated, enriched employee row.
type CleanRecord struct {
	EmployeeID  int64
	FirstName   string
	LastName    string
	FullName    string
	Email       string
	EmailDomain string
	HireDate    time.Time
	JobTitle    string
	Department  string
	Salary      decimal.NullDecimal
	SalaryBand  SalaryBand
	ManagerID   *int64
	Address     string
	City        string
	State       string
	ZipCode     string
	BirthDate   time.Time // zero when unknown
	Age         *int
	TenureYears decimal.Decimal
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StringPtr returns a pointer to s. Handy when building raw records in code.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// IngestionDate returns the calendar date of the run timestamp, in the timestamp's own
// location, as midnight UTC. Parsed dates use the same representation so they compare directly.
func IngestionDate(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
