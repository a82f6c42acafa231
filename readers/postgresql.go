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

package readers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

// PostgresReaderError provides structured error information for Postgres reader operations
type PostgresReaderError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan", "read")
	Err error  // Underlying error
}

func (e *PostgresReaderError) Error() string {
	return fmt.Sprintf("postgres reader %s: %v", e.Op, e.Err)
}

func (e *PostgresReaderError) Unwrap() error {
	return e.Err
}

// PostgresReaderStats holds statistics about the Postgres reader
type PostgresReaderStats struct {
	RecordsRead     int64
	QueryDuration   time.Duration
	ConnectionTime  time.Duration
	NullValueCounts map[string]int64
}

// PostgresReaderOptions configures the Postgres reader
type PostgresReaderOptions struct {
	DSN             string        // Database connection string
	Query           string        // SQL query to execute
	Params          []interface{} // Optional query parameters
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	MaxOpenConns    int           // Maximum open connections
	QueryTimeout    time.Duration // Connect and query timeout
}

// PostgresReaderOption represents a configuration function for PostgresReaderOptions
type PostgresReaderOption func(*PostgresReaderOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresQuery sets the SQL query and optional parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.Query = query
		if len(params) > 0 {
			opts.Params = make([]interface{}, len(params))
			copy(opts.Params, params)
		}
	}
}

// WithPostgresTable reads the raw employee columns of table in storage order.
func WithPostgresTable(table string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.Query = RawEmployeesQuery(table)
	}
}

// WithPostgresQueryTimeout sets the timeout for connecting and running the query.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithPostgresMaxOpenConns sets the connection pool size.
func WithPostgresMaxOpenConns(n int) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.MaxOpenConns = n
	}
}

// RawEmployeesQuery builds the SELECT for the raw employee columns of table.
// Dotted names are quoted per part (schema.table).
func RawEmployeesQuery(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	cols := make([]string, len(employee.RawColumns))
	for i, c := range employee.RawColumns {
		cols[i] = pq.QuoteIdentifier(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY ctid", strings.Join(cols, ", "), strings.Join(parts, "."))
}

// withDefaults applies default values to PostgresReaderOptions
func (opts *PostgresReaderOptions) withDefaults() *PostgresReaderOptions {
	result := &PostgresReaderOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.QueryTimeout <= 0 {
		result.QueryTimeout = 30 * time.Second
	}
	if result.ConnMaxLifetime <= 0 {
		result.ConnMaxLifetime = 5 * time.Minute
	}
	if result.MaxOpenConns <= 0 {
		result.MaxOpenConns = 4
	}
	return result
}

// PostgresReader implements core.DataSource for PostgreSQL tables holding raw employee rows.
type PostgresReader struct {
	mu       sync.Mutex
	db       *sqlx.DB
	rows     *sqlx.Rows
	opts     *PostgresReaderOptions
	stats    PostgresReaderStats
	finished bool
}

// NewPostgresReader connects, runs the query and returns a reader positioned on the first row.
func NewPostgresReader(ctx context.Context, options ...PostgresReaderOption) (*PostgresReader, error) {
	opts := (&PostgresReaderOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if opts.DSN == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if opts.Query == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("query is required")}
	}

	start := time.Now()
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresReaderError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &PostgresReaderError{Op: "ping", Err: err}
	}

	reader := newPostgresReaderFromDB(db, opts)
	reader.stats.ConnectionTime = time.Since(start)
	if err := reader.query(ctx); err != nil {
		reader.Close()
		return nil, err
	}
	return reader, nil
}

func newPostgresReaderFromDB(db *sqlx.DB, opts *PostgresReaderOptions) *PostgresReader {
	return &PostgresReader{
		db:    db,
		opts:  opts,
		stats: PostgresReaderStats{NullValueCounts: make(map[string]int64)},
	}
}

// query runs the statement. The rows stay open until Close; the query context is not
// cancelled early because that would abort the open result set.
func (p *PostgresReader) query(ctx context.Context) error {
	start := time.Now()
	rows, err := p.db.QueryxContext(ctx, p.opts.Query, p.opts.Params...)
	if err != nil {
		return &PostgresReaderError{Op: "query", Err: err}
	}
	p.rows = rows
	p.stats.QueryDuration = time.Since(start)
	return nil
}

// Read implements the core.DataSource interface.
func (p *PostgresReader) Read(ctx context.Context) (core.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &PostgresReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.finished || p.rows == nil {
		return nil, io.EOF
	}
	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, &PostgresReaderError{Op: "read", Err: err}
		}
		p.finished = true
		return nil, io.EOF
	}

	values := make(map[string]interface{})
	if err := p.rows.MapScan(values); err != nil {
		return nil, &PostgresReaderError{Op: "scan", Err: err}
	}
	p.stats.RecordsRead++
	return p.toRecord(values), nil
}

// toRecord converts driver values: text arrives as []byte and is turned into string.
func (p *PostgresReader) toRecord(values map[string]interface{}) core.Record {
	record := make(core.Record, len(values))
	for column, value := range values {
		switch v := value.(type) {
		case nil:
			p.stats.NullValueCounts[column]++
			record[column] = nil
		case []byte:
			record[column] = string(v)
		default:
			record[column] = v
		}
	}
	return record
}

// Stats returns a copy of the reader statistics.
func (p *PostgresReader) Stats() PostgresReaderStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		stats.NullValueCounts[k] = v
	}
	return stats
}

// Close releases the result set and the connection pool.
func (p *PostgresReader) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.rows != nil {
		if err := p.rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing rows: %w", err))
		}
		p.rows = nil
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		p.db = nil
	}
	if len(errs) > 0 {
		return &PostgresReaderError{Op: "close", Err: fmt.Errorf("multiple errors: %v", errs)}
	}
	return nil
}
