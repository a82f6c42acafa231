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
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/empclean/core"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "read")
	Key string
	Err error // Underlying error
}

func (e *S3ReaderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("s3 reader %s (key: %s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 reader
type S3ReaderStats struct {
	ObjectsListed  int64
	ObjectsRead    int64
	RecordsRead    int64
	ReadDuration   time.Duration
	ProcessedFiles []string
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Bucket         string          // S3 bucket name
	Key            string          // Single object key; takes precedence over Prefix
	Prefix         string          // Key prefix of a multi-object batch
	Region         string          // AWS region
	Profile        string          // AWS shared config profile
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom endpoint for S3-compatible services
	ForcePathStyle bool            // Use path-style addressing
	CSVOptions     []ReaderOptionCSV
}

// ReaderOptionS3 allows functional customization of S3Reader.
type ReaderOptionS3 func(*S3ReaderOptions)

// WithS3Bucket sets the bucket.
func WithS3Bucket(bucket string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Bucket = bucket }
}

// WithS3Key reads a single object.
func WithS3Key(key string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Key = key }
}

// WithS3Prefix reads every .csv, .json and .jsonl object under prefix, in key order.
func WithS3Prefix(prefix string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Prefix = prefix }
}

// WithS3Region sets the AWS region.
func WithS3Region(region string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Region = region }
}

// WithS3Profile sets the shared config profile.
func WithS3Profile(profile string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Profile = profile }
}

// WithS3Credentials sets static credentials.
func WithS3Credentials(creds aws.Credentials) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.Credentials = creds }
}

// WithS3Endpoint sets a custom endpoint, e.g. MinIO.
func WithS3Endpoint(endpoint string) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.EndpointURL = endpoint }
}

// WithS3PathStyle enables path-style addressing.
func WithS3PathStyle(pathStyle bool) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.ForcePathStyle = pathStyle }
}

// WithS3CSVOptions passes options to the CSV reader used for .csv objects.
func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(o *S3ReaderOptions) { o.CSVOptions = append(o.CSVOptions, options...) }
}

// S3API is the subset of the S3 client the reader uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader implements core.DataSource over one or more CSV or JSON-lines objects.
type S3Reader struct {
	client        S3API
	keys          []string
	listed        bool
	currentIndex  int
	currentReader core.DataSource
	stats         S3ReaderStats
	opts          S3ReaderOptions
	mu            sync.Mutex
}

// NewS3Reader creates a new S3 reader. Objects are listed on the first Read.
func NewS3Reader(options ...ReaderOptionS3) (*S3Reader, error) {
	opts, err := s3ReaderOptions(options)
	if err != nil {
		return nil, err
	}

	cfg, err := NewAWSConfig(context.Background(), opts.Region, opts.Profile, opts.Credentials)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}
	client := NewS3Client(cfg, opts.EndpointURL, opts.ForcePathStyle)
	return newS3ReaderWithClient(client, opts), nil
}

// NewS3ReaderWithClient creates an S3 reader over an existing client.
func NewS3ReaderWithClient(client S3API, options ...ReaderOptionS3) (*S3Reader, error) {
	opts, err := s3ReaderOptions(options)
	if err != nil {
		return nil, err
	}
	return newS3ReaderWithClient(client, opts), nil
}

func s3ReaderOptions(options []ReaderOptionS3) (S3ReaderOptions, error) {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.Bucket == "" {
		return opts, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}
	if opts.Key != "" && !supportedObject(opts.Key) {
		return opts, &S3ReaderError{Op: "validate_options", Key: opts.Key, Err: fmt.Errorf("unsupported object type %q", filepath.Ext(opts.Key))}
	}
	return opts, nil
}

func newS3ReaderWithClient(client S3API, opts S3ReaderOptions) *S3Reader {
	r := &S3Reader{client: client, opts: opts}
	if opts.Key != "" {
		r.keys = []string{opts.Key}
		r.listed = true
		r.stats.ObjectsListed = 1
	}
	return r
}

// NewAWSConfig loads the default AWS configuration, overridden by region, profile and static
// credentials when they are set.
func NewAWSConfig(ctx context.Context, region, profile string, creds aws.Credentials) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}
	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if creds.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		)
	}
	return cfg, nil
}

// NewS3Client builds an S3 client, optionally against a custom endpoint.
func NewS3Client(cfg aws.Config, endpoint string, pathStyle bool) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.stats.ReadDuration += time.Since(start)
	}()

	if !s.listed {
		if err := s.listObjects(ctx); err != nil {
			return nil, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, &S3ReaderError{Op: "read", Err: ctx.Err()}
		default:
		}

		if s.currentReader == nil {
			if s.currentIndex >= len(s.keys) {
				return nil, io.EOF
			}
			if err := s.openNextObject(ctx); err != nil {
				return nil, err
			}
		}

		record, err := s.currentReader.Read(ctx)
		if err == io.EOF {
			if err := s.closeCurrentReader(); err != nil {
				return nil, &S3ReaderError{Op: "close_object", Err: err}
			}
			continue
		}
		if err != nil {
			return nil, &S3ReaderError{Op: "read_record", Key: s.keys[s.currentIndex], Err: err}
		}
		s.stats.RecordsRead++
		return record, nil
	}
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCurrentReader()
}

// Stats returns S3 reader statistics
func (s *S3Reader) Stats() S3ReaderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *S3Reader) listObjects(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.opts.Bucket)}
	if s.opts.Prefix != "" {
		input.Prefix = aws.String(s.opts.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &S3ReaderError{Op: "list_objects", Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if supportedObject(key) {
				keys = append(keys, key)
			}
		}
	}
	// Record order decides which duplicate wins, so objects are read in key order.
	sort.Strings(keys)

	s.keys = keys
	s.listed = true
	s.stats.ObjectsListed = int64(len(keys))
	return nil
}

func supportedObject(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv", ".json", ".jsonl":
		return true
	}
	return false
}

func (s *S3Reader) openNextObject(ctx context.Context) error {
	key := s.keys[s.currentIndex]
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &S3ReaderError{Op: "get_object", Key: key, Err: err}
	}

	reader, err := s.createReaderForObject(result.Body, key)
	if err != nil {
		result.Body.Close()
		return &S3ReaderError{Op: "open_object", Key: key, Err: err}
	}

	s.currentReader = reader
	s.stats.ObjectsRead++
	s.stats.ProcessedFiles = append(s.stats.ProcessedFiles, key)
	return nil
}

func (s *S3Reader) createReaderForObject(body io.ReadCloser, key string) (core.DataSource, error) {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv":
		return NewCSVReader(body, append([]ReaderOptionCSV{WithCSVHasHeaders(true)}, s.opts.CSVOptions...)...)
	case ".json", ".jsonl":
		return NewJSONReader(body), nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", filepath.Ext(key))
	}
}

func (s *S3Reader) closeCurrentReader() error {
	if s.currentReader != nil {
		err := s.currentReader.Close()
		s.currentReader = nil
		s.currentIndex++
		return err
	}
	return nil
}
