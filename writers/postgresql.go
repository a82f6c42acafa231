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

package writers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
)

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write statistics.
type PostgresWriterStats struct {
	RecordsWritten  int64            // Total records written
	BatchesWritten  int64            // Number of batches written
	LastWriteTime   time.Time        // Time of last write
	WriteDuration   time.Duration    // Total time spent writing
	ConnectionTime  time.Duration    // Time spent establishing connection
	NullValueCounts map[string]int64 // Count of null values per column
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN             string        // PostgreSQL connection string
	TableName       string        // Target table name, optionally schema qualified
	BatchSize       int           // Number of records per INSERT batch
	CreateTable     bool          // Create table if not exists
	TruncateTable   bool          // Replace the table contents with the batch
	ConnMaxLifetime time.Duration // Max connection lifetime
	MaxOpenConns    int           // Max open connections
	QueryTimeout    time.Duration // Timeout for connecting and for the final commit
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithPostgresBatchSize sets the batch size for writes.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// withDefaults applies default values to PostgresWriterOptions.
func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	return opts
}

// validateOptions validates the PostgreSQL writer options.
func validateOptions(opts *PostgresWriterOptions) error {
	if opts.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	return nil
}

// PostgresWriter implements core.DataSink for PostgreSQL output.
//
// The whole run is one transaction: the first batch (or Close, for an empty batch) creates and
// truncates the table, batches are upserted on employee_id, and Close commits. Close commits only
// when it follows a successful Flush of everything written; otherwise, and after Abort, the
// transaction is rolled back and the previous table contents stay untouched.
type PostgresWriter struct {
	db         *sqlx.DB
	tx         *sqlx.Tx
	options    PostgresWriterOptions
	recordBuf  []core.Record
	stats      PostgresWriterStats
	errorState bool
	flushed    bool
	closed     bool
	mu         sync.Mutex
}

// NewPostgresWriter creates a new PostgreSQL writer and verifies the connection.
func NewPostgresWriter(opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := (&PostgresWriterOptions{CreateTable: true, TruncateTable: true}).withDefaults()
	for _, opt := range opts {
		opt(options)
	}
	if err := validateOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	writer := newPostgresWriter(options)
	if err := writer.connect(); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	return writer, nil
}

func newPostgresWriter(options *PostgresWriterOptions) *PostgresWriter {
	return &PostgresWriter{
		options:   *options,
		recordBuf: make([]core.Record, 0, options.BatchSize),
		stats:     PostgresWriterStats{NullValueCounts: make(map[string]int64)},
	}
}

func (w *PostgresWriter) connect() error {
	start := time.Now()
	db, err := sqlx.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(w.options.MaxOpenConns)
	db.SetConnMaxLifetime(w.options.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(w.stats.NullValueCounts))
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	for _, col := range employee.Columns {
		if record[col] == nil {
			w.stats.NullValueCounts[col]++
		}
	}
	w.flushed = false
	w.recordBuf = append(w.recordBuf, record)
	w.stats.RecordsWritten++

	if len(w.recordBuf) >= w.options.BatchSize {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.fail()
			return &PostgresWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush implements the core.DataSink interface. Rows are visible to other sessions only after Close.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "flush", Err: fmt.Errorf("writer is in error state")}
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := w.flushBufferUnsafe(ctx); err != nil {
		w.fail()
		return &PostgresWriterError{Op: "flush", Err: err}
	}
	w.flushed = true
	return nil
}

// Close implements the core.DataSink interface. It commits the run if everything written was
// flushed and no write failed, and rolls it back otherwise.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	defer w.releaseUnsafe()

	if w.errorState || !w.flushed {
		w.fail()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := w.beginUnsafe(ctx); err != nil {
		w.fail()
		return &PostgresWriterError{Op: "close", Err: err}
	}
	if err := w.tx.Commit(); err != nil {
		w.tx = nil
		return &PostgresWriterError{Op: "commit", Err: err}
	}
	w.tx = nil
	return nil
}

// Abort implements core.Aborter. It rolls the run back and releases the connection.
func (w *PostgresWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.fail()
	w.releaseUnsafe()
	return nil
}

// releaseUnsafe closes the connection pool (must hold mutex).
func (w *PostgresWriter) releaseUnsafe() {
	if w.db != nil {
		w.db.Close()
		w.db = nil
	}
}

// fail rolls the run back (must hold mutex).
func (w *PostgresWriter) fail() {
	w.errorState = true
	if w.tx != nil {
		w.tx.Rollback()
		w.tx = nil
	}
}

// beginUnsafe opens the run transaction and prepares the table once (must hold mutex).
func (w *PostgresWriter) beginUnsafe(ctx context.Context) error {
	if w.tx != nil {
		return nil
	}
	// The transaction outlives ctx: database/sql rolls back when the begin context ends.
	tx, err := w.db.BeginTxx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if w.options.CreateTable {
		if _, err := tx.ExecContext(ctx, CreateEmployeesTableSQL(w.options.TableName)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	if w.options.TruncateTable {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+quoteTable(w.options.TableName)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table: %w", err)
		}
	}
	w.tx = tx
	return nil
}

// flushBufferUnsafe upserts buffered records in one statement (must hold mutex).
func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) error {
	if len(w.recordBuf) == 0 {
		return nil
	}
	if err := w.beginUnsafe(ctx); err != nil {
		return err
	}

	start := time.Now()
	query, args := UpsertEmployeesSQL(w.options.TableName, w.recordBuf)
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	w.stats.BatchesWritten++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]
	return nil
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// sqlType is the PostgreSQL type of a clean dataset column.
func sqlType(column string) string {
	switch column {
	case employee.ColEmployeeID:
		return "BIGINT PRIMARY KEY"
	case employee.ColManagerID:
		return "BIGINT"
	case employee.ColAge:
		return "INTEGER"
	case employee.ColSalary:
		return fmt.Sprintf("NUMERIC(%d,%d)", SalaryPrecision, SalaryScale)
	case employee.ColTenureYears:
		return "NUMERIC(6,1)"
	case employee.ColHireDate:
		return "DATE NOT NULL"
	case employee.ColBirthDate:
		return "DATE"
	case employee.ColCreatedAt, employee.ColUpdatedAt:
		return "TIMESTAMPTZ NOT NULL"
	case employee.ColSalaryBand, employee.ColFirstName, employee.ColLastName, employee.ColFullName:
		return "TEXT NOT NULL"
	default:
		return "TEXT"
	}
}

// CreateEmployeesTableSQL returns the DDL of the clean dataset table.
func CreateEmployeesTableSQL(table string) string {
	cols := make([]string, len(employee.Columns))
	for i, c := range employee.Columns {
		cols[i] = pq.QuoteIdentifier(c) + " " + sqlType(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteTable(table), strings.Join(cols, ", "))
}

// UpsertEmployeesSQL returns a multi-row INSERT of records that updates existing employee_ids.
func UpsertEmployeesSQL(table string, records []core.Record) (string, []interface{}) {
	cols := make([]string, len(employee.Columns))
	updates := make([]string, 0, len(employee.Columns)-1)
	for i, c := range employee.Columns {
		cols[i] = pq.QuoteIdentifier(c)
		if c != employee.ColEmployeeID {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", cols[i], cols[i]))
		}
	}

	args := make([]interface{}, 0, len(records)*len(cols))
	rows := make([]string, len(records))
	for r, record := range records {
		placeholders := make([]string, len(cols))
		for i, c := range employee.Columns {
			args = append(args, record[c])
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		rows[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		quoteTable(table),
		strings.Join(cols, ", "),
		strings.Join(rows, ", "),
		pq.QuoteIdentifier(employee.ColEmployeeID),
		strings.Join(updates, ", "))
	return query, args
}
