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

package location

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/readers"
	"github.com/aaronlmathis/empclean/writers"
)

// Package location turns location strings from the configuration into DataSources, DataSinks
// and plain object writers.
//
//	employees.csv                          local file, format from the extension
//	s3://bucket/path/employees.jsonl       S3 object (or prefix, for sources ending in /)
//	postgres://user@host/db?table=raw      PostgreSQL table
//	mongodb://host/hr?collection=raw       MongoDB collection (source only)

// Format represents a supported sink format.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatParquet
	FormatPostgres
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	case FormatPostgres:
		return "postgres"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the file format from the path extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return 0, fmt.Errorf("cannot infer format from %q", path)
	}
}

// Location creates DataSources and DataSinks for one place.
type Location interface {
	NewSource(ctx context.Context) (core.DataSource, error)
	NewSink(ctx context.Context) (core.DataSink, error)
}

// Options carries settings that are not part of a location string.
type Options struct {
	// S3 configures the client for s3:// locations. A nil client is built from the default
	// AWS configuration on first use.
	S3Client    S3Client
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	CSVComma rune
}

// Parse parses a location string.
func Parse(raw string, opts Options) (Location, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty location")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return FileLocation{Path: raw, CSVComma: opts.CSVComma}, nil
	}

	switch u.Scheme {
	case "file":
		return FileLocation{Path: u.Path, CSVComma: opts.CSVComma}, nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("s3 location %q has no bucket", raw)
		}
		return S3Location{
			Bucket:    u.Host,
			Key:       strings.TrimPrefix(u.Path, "/"),
			Client:    opts.S3Client,
			Region:    opts.S3Region,
			Endpoint:  opts.S3Endpoint,
			PathStyle: opts.S3PathStyle,
			CSVComma:  opts.CSVComma,
		}, nil
	case "postgres", "postgresql":
		q := u.Query()
		table := q.Get("table")
		if table == "" {
			return nil, fmt.Errorf("postgres location %q needs a table parameter", raw)
		}
		q.Del("table")
		u.RawQuery = q.Encode()
		return PostgresLocation{DSN: u.String(), Table: table}, nil
	case "mongodb", "mongodb+srv":
		q := u.Query()
		collection := q.Get("collection")
		database := strings.TrimPrefix(u.Path, "/")
		if collection == "" || database == "" {
			return nil, fmt.Errorf("mongodb location %q needs a database path and a collection parameter", raw)
		}
		q.Del("collection")
		u.RawQuery = q.Encode()
		u.Path = "/"
		return MongoLocation{URI: u.String(), Database: database, Collection: collection}, nil
	default:
		return nil, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

// Object is a plain object being replaced. What is written becomes visible only when Close
// succeeds; Abort discards it and leaves the previous object in place.
type Object interface {
	io.WriteCloser
	Abort() error
}

// Create opens a plain object writer at raw, a local path or an s3:// URL. Used for the
// quality report and the sample export.
func Create(ctx context.Context, raw string, opts Options) (Object, error) {
	loc, err := Parse(raw, opts)
	if err != nil {
		return nil, err
	}
	switch l := loc.(type) {
	case FileLocation:
		return l.create()
	case S3Location:
		return l.create(ctx)
	default:
		return nil, fmt.Errorf("location %q cannot hold a plain object", raw)
	}
}

// NewCSVSink opens a CSV sink over the plain object at raw. Like every location sink it
// publishes the object only when closed after a successful flush.
func NewCSVSink(ctx context.Context, raw string, opts Options, csvOpts ...writers.WriterOptionCSV) (core.DataSink, error) {
	obj, err := Create(ctx, raw, opts)
	if err != nil {
		return nil, err
	}
	if opts.CSVComma != 0 {
		csvOpts = append([]writers.WriterOptionCSV{writers.WithComma(opts.CSVComma)}, csvOpts...)
	}
	sink, err := writers.NewCSVWriter(obj, csvOpts...)
	if err != nil {
		obj.Abort()
		return nil, err
	}
	return &replaceSink{DataSink: sink, obj: obj}, nil
}

// FileLocation reads and writes a local file.
type FileLocation struct {
	Path     string
	CSVComma rune
}

func (f FileLocation) create() (Object, error) {
	dir := filepath.Dir(f.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", f.Path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &fileObject{File: tmp, path: f.Path}, nil
}

// fileObject writes to a temporary file next to path and renames it over path on Close.
type fileObject struct {
	*os.File
	path string
	done bool
}

func (f *fileObject) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	if err := os.Rename(f.File.Name(), f.path); err != nil {
		os.Remove(f.File.Name())
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

func (f *fileObject) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	f.File.Close()
	return os.Remove(f.File.Name())
}

// NewSource opens the file for reading.
func (f FileLocation) NewSource(ctx context.Context) (core.DataSource, error) {
	format, err := FormatFromPath(f.Path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	return newStreamSource(file, format, f.CSVComma)
}

// NewSink returns a writer for the file format. The file is replaced only when the sink is
// closed after a successful flush.
func (f FileLocation) NewSink(ctx context.Context) (core.DataSink, error) {
	format, err := FormatFromPath(f.Path)
	if err != nil {
		return nil, err
	}
	file, err := f.create()
	if err != nil {
		return nil, err
	}
	return newStreamSink(file, format, f.CSVComma)
}

func newStreamSource(r io.ReadCloser, format Format, comma rune) (core.DataSource, error) {
	switch format {
	case FormatCSV:
		var opts []readers.ReaderOptionCSV
		if comma != 0 {
			opts = append(opts, readers.WithCSVComma(comma))
		}
		src, err := readers.NewCSVReader(r, opts...)
		if err != nil {
			r.Close()
			return nil, err
		}
		return src, nil
	case FormatJSON:
		return readers.NewJSONReader(r), nil
	default:
		r.Close()
		return nil, fmt.Errorf("unsupported source format %s", format)
	}
}

func newStreamSink(obj Object, format Format, comma rune) (core.DataSink, error) {
	var (
		sink core.DataSink
		err  error
	)
	switch format {
	case FormatCSV:
		var opts []writers.WriterOptionCSV
		if comma != 0 {
			opts = append(opts, writers.WithComma(comma))
		}
		sink, err = writers.NewCSVWriter(obj, opts...)
	case FormatJSON:
		sink = writers.NewJSONWriter(obj)
	case FormatParquet:
		sink, err = writers.NewParquetWriter(obj)
	default:
		err = fmt.Errorf("unsupported sink format %s", format)
	}
	if err != nil {
		obj.Abort()
		return nil, err
	}
	return &replaceSink{DataSink: sink, obj: obj}, nil
}

// replaceSink publishes its object only when Close follows a successful Flush of everything
// written. Otherwise Close behaves like Abort.
type replaceSink struct {
	core.DataSink
	obj     Object
	flushed bool
}

func (r *replaceSink) Write(ctx context.Context, record core.Record) error {
	r.flushed = false
	return r.DataSink.Write(ctx, record)
}

func (r *replaceSink) Flush() error {
	if err := r.DataSink.Flush(); err != nil {
		r.flushed = false
		return err
	}
	r.flushed = true
	return nil
}

func (r *replaceSink) Close() error {
	if !r.flushed {
		return r.Abort()
	}
	return r.DataSink.Close()
}

// Abort discards the output. The writer is closed only to release it; whatever it still
// emits goes nowhere.
func (r *replaceSink) Abort() error {
	err := r.obj.Abort()
	r.DataSink.Close()
	return err
}

// S3Client is the subset of the S3 API the location needs.
type S3Client interface {
	readers.S3API
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Location reads and writes S3 objects. A key ending in / is a prefix and can only be read.
type S3Location struct {
	Bucket    string
	Key       string
	Client    S3Client
	Region    string
	Endpoint  string
	PathStyle bool
	CSVComma  rune
}

func (s S3Location) client(ctx context.Context) (S3Client, error) {
	if s.Client != nil {
		return s.Client, nil
	}
	cfg, err := readers.NewAWSConfig(ctx, s.Region, "", aws.Credentials{})
	if err != nil {
		return nil, err
	}
	return readers.NewS3Client(cfg, s.Endpoint, s.PathStyle), nil
}

// NewSource reads one object or every supported object under a prefix.
func (s S3Location) NewSource(ctx context.Context) (core.DataSource, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	opts := []readers.ReaderOptionS3{readers.WithS3Bucket(s.Bucket)}
	if s.Key == "" || strings.HasSuffix(s.Key, "/") {
		opts = append(opts, readers.WithS3Prefix(s.Key))
	} else {
		opts = append(opts, readers.WithS3Key(s.Key))
	}
	if s.CSVComma != 0 {
		opts = append(opts, readers.WithS3CSVOptions(readers.WithCSVComma(s.CSVComma)))
	}
	return readers.NewS3ReaderWithClient(client, opts...)
}

// NewSink buffers the output and uploads it as one object on Close.
func (s S3Location) NewSink(ctx context.Context) (core.DataSink, error) {
	format, err := FormatFromPath(s.Key)
	if err != nil {
		return nil, err
	}
	w, err := s.create(ctx)
	if err != nil {
		return nil, err
	}
	return newStreamSink(w, format, s.CSVComma)
}

func (s S3Location) create(ctx context.Context) (Object, error) {
	if s.Key == "" || strings.HasSuffix(s.Key, "/") {
		return nil, fmt.Errorf("s3 location s3://%s/%s is not an object key", s.Bucket, s.Key)
	}
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return &s3Object{ctx: ctx, client: client, bucket: s.Bucket, key: s.Key}, nil
}

// s3Object buffers what is written to it and uploads it on Close. Nothing is uploaded after
// Abort, so a failed run leaves the previous object in place.
type s3Object struct {
	mu     sync.Mutex
	ctx    context.Context
	buf    bytes.Buffer
	client S3Client
	bucket string
	key    string
	done   bool
}

func (s *s3Object) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0, fmt.Errorf("s3 object %s is closed", s.key)
	}
	return s.buf.Write(p)
}

func (s *s3Object) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *s3Object) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.buf.Reset()
	return nil
}

// PostgresLocation reads raw rows from, or writes the clean batch to, a PostgreSQL table.
type PostgresLocation struct {
	DSN   string
	Table string
}

// NewSource selects the raw employee columns of the table.
func (p PostgresLocation) NewSource(ctx context.Context) (core.DataSource, error) {
	return readers.NewPostgresReader(ctx,
		readers.WithPostgresDSN(p.DSN),
		readers.WithPostgresTable(p.Table),
	)
}

// NewSink replaces the table contents with the batch.
func (p PostgresLocation) NewSink(ctx context.Context) (core.DataSink, error) {
	return writers.NewPostgresWriter(
		writers.WithPostgresDSN(p.DSN),
		writers.WithTableName(p.Table),
	)
}

// MongoLocation reads raw documents from a MongoDB collection.
type MongoLocation struct {
	URI        string
	Database   string
	Collection string
}

// NewSource returns a reader; the connection is opened on the first Read.
func (m MongoLocation) NewSource(ctx context.Context) (core.DataSource, error) {
	return readers.NewMongoReader(
		readers.WithMongoURI(m.URI),
		readers.WithMongoDB(m.Database),
		readers.WithMongoCollection(m.Collection),
	)
}

// NewSink is not supported: MongoDB is an input-only collaborator.
func (m MongoLocation) NewSink(ctx context.Context) (core.DataSink, error) {
	return nil, fmt.Errorf("mongodb locations cannot be written to")
}
