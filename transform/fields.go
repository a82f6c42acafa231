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

package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aaronlmathis/empclean/employee"
)

// Package transform provides the field-level cleaning primitives of EmpClean and a couple of
// composable record transformers used around the core (column renaming, projection).
//
// The primitives are pure and stateless. They never fail a record: defects are reported back
// to the caller, which decides how to count and repair them.

var (
	// ErrMalformedSalary is returned when a salary cannot be parsed into a non-negative amount.
	ErrMalformedSalary = errors.New("malformed salary")
	// ErrMissingSalary marks a record without any salary value.
	ErrMissingSalary = errors.New("missing salary")
	// ErrInvalidEmail marks an email that is not of the form local@domain.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrUnparsableDate marks a date that is not in YYYY-MM-DD form.
	ErrUnparsableDate = errors.New("unparsable date")
)

var currencyStripper = strings.NewReplacer("$", "", ",", "")

// NormalizeSalary strips currency symbols, thousands separators and surrounding whitespace and
// parses the remainder as a decimal rounded to two fractional digits.
func NormalizeSalary(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(currencyStripper.Replace(strings.TrimSpace(text)))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q has no digits", ErrMalformedSalary, text)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedSalary, text)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrMalformedSalary, text)
	}
	return d.Round(2), nil
}

// NormalizeEmail trims and lowercases an email address. Validity is checked separately.
func NormalizeEmail(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// ValidEmail reports whether s has exactly one '@' with a non-empty local part and domain.
func ValidEmail(s string) bool {
	if strings.Count(s, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	return local != "" && domain != ""
}

// NormalizeName title-cases every whitespace separated token, treating hyphens as word
// boundaries, and collapses runs of whitespace into one space.
func NormalizeName(text string) string {
	// Casers keep internal state and must not be shared between goroutines.
	caser := cases.Title(language.Und)

	tokens := strings.Fields(text)
	for i, tok := range tokens {
		parts := strings.Split(tok, "-")
		for j, p := range parts {
			parts[j] = caser.String(p)
		}
		tokens[i] = strings.Join(parts, "-")
	}
	return strings.Join(tokens, " ")
}

// ParseDate parses an ISO YYYY-MM-DD date. Surrounding whitespace is ignored.
func ParseDate(text string) (time.Time, bool) {
	t, err := time.Parse(employee.DateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
