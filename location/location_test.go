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
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/empclean"
	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/employee"
	"github.com/aaronlmathis/empclean/writers"
)

type brokenSource struct{}

func (brokenSource) Read(ctx context.Context) (core.Record, error) {
	return nil, errors.New("connection reset")
}

func (brokenSource) Close() error { return nil }

func runBroken(t *testing.T, sink core.DataSink) {
	t.Helper()
	p, err := empclean.NewPipeline().
		From(brokenSource{}).
		To(sink).
		WithIngestionTime(time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)).
		Build()
	require.NoError(t, err)
	_, err = p.Execute(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

type fakeS3 struct {
	objects  map[string][]byte
	putCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"data/employees.csv", FileLocation{Path: "data/employees.csv"}},
		{"file:///tmp/out.parquet", FileLocation{Path: "/tmp/out.parquet"}},
		{"s3://hr-bucket/in/raw.jsonl", S3Location{Bucket: "hr-bucket", Key: "in/raw.jsonl"}},
		{"postgres://etl@db:5432/hr?sslmode=disable&table=staging.raw", PostgresLocation{DSN: "postgres://etl@db:5432/hr?sslmode=disable", Table: "staging.raw"}},
		{"mongodb://mongo:27017/hr?collection=raw_employees", MongoLocation{URI: "mongodb://mongo:27017/", Database: "hr", Collection: "raw_employees"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		"s3:///key.csv",
		"postgres://db/hr",
		"mongodb://mongo/hr",
		"ftp://host/file.csv",
	} {
		_, err := Parse(raw, Options{})
		assert.Error(t, err, raw)
	}
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("x/EMPLOYEES.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = FormatFromPath("a.ndjson")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFromPath("a.xlsx")
	assert.Error(t, err)
	assert.Equal(t, "parquet", FormatParquet.String())
}

func TestFileLocation_SinkThenSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	loc := FileLocation{Path: path}

	sink, err := loc.NewSink(ctx)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, core.Record{employee.ColEmployeeID: int64(1), employee.ColCity: "Austin"}))
	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Close())

	src, err := loc.NewSource(ctx)
	require.NoError(t, err)
	defer src.Close()

	rec, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Austin", rec[employee.ColCity])
	_, err = src.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileLocation_CSVComma(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte("employee_id;city\n1;Reno\n"), 0o644))

	src, err := FileLocation{Path: path, CSVComma: ';'}.NewSource(context.Background())
	require.NoError(t, err)
	defer src.Close()

	rec, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Reno", rec["city"])
}

func TestS3Location_UploadOnClose(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	loc, err := Parse("s3://hr/out/clean.csv", Options{S3Client: client})
	require.NoError(t, err)

	sink, err := loc.NewSink(ctx)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, core.Record{employee.ColEmployeeID: int64(7)}))
	require.NoError(t, sink.Flush())
	assert.Empty(t, client.objects, "nothing is uploaded before Close")

	require.NoError(t, sink.Close())
	body := string(client.objects["out/clean.csv"])
	assert.True(t, strings.HasPrefix(body, strings.Join(employee.Columns, ",")+"\n7,"))
}

func TestS3Location_NoUploadWithoutFlush(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	loc, err := Parse("s3://hr/out/clean.csv", Options{S3Client: client})
	require.NoError(t, err)

	sink, err := loc.NewSink(ctx)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, core.Record{employee.ColEmployeeID: int64(7)}))
	require.NoError(t, sink.Close())
	assert.Zero(t, client.putCalls)
}

func TestS3Location_FailedRunKeepsObject(t *testing.T) {
	client := newFakeS3()
	client.objects["out/clean.parquet"] = []byte("previous")
	loc, err := Parse("s3://hr/out/clean.parquet", Options{S3Client: client})
	require.NoError(t, err)

	sink, err := loc.NewSink(context.Background())
	require.NoError(t, err)
	runBroken(t, sink)

	assert.Zero(t, client.putCalls)
	assert.Equal(t, "previous", string(client.objects["out/clean.parquet"]))
}

func TestFileLocation_FailedRunKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clean.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	sink, err := FileLocation{Path: path}.NewSink(context.Background())
	require.NoError(t, err)
	runBroken(t, sink)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the temporary file is removed")
}

func TestFileLocation_ReplacedOnClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clean.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	sink, err := FileLocation{Path: path}.NewSink(ctx)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, core.Record{employee.ColEmployeeID: int64(3)}))
	require.NoError(t, sink.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data), "the file is untouched until Close")

	require.NoError(t, sink.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"employee_id":3}`+"\n", string(data))
}

func TestS3Location_PrefixSource(t *testing.T) {
	client := newFakeS3()
	client.objects["in/a.csv"] = []byte("employee_id\n1\n")
	client.objects["in/b.csv"] = []byte("employee_id\n2\n")

	loc, err := Parse("s3://hr/in/", Options{S3Client: client})
	require.NoError(t, err)
	src, err := loc.NewSource(context.Background())
	require.NoError(t, err)
	defer src.Close()

	var ids []interface{}
	for {
		rec, err := src.Read(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, rec["employee_id"])
	}
	assert.Equal(t, []interface{}{"1", "2"}, ids)

	_, err = loc.NewSink(context.Background())
	assert.Error(t, err, "a prefix cannot be written")
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()

	w, err := Create(ctx, "s3://hr/reports/run.json", Options{S3Client: client})
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, `{"ok":true}`, string(client.objects["reports/run.json"]))

	w, err = Create(ctx, "s3://hr/reports/aborted.json", Options{S3Client: client})
	require.NoError(t, err)
	_, err = w.Write([]byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.NoError(t, w.Close())
	assert.NotContains(t, client.objects, "reports/aborted.json")

	path := filepath.Join(t.TempDir(), "r", "report.json")
	w, err = Create(ctx, path, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	aborted := filepath.Join(filepath.Dir(path), "aborted.json")
	w, err = Create(ctx, aborted, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	_, err = os.Stat(aborted)
	assert.True(t, os.IsNotExist(err))

	_, err = Create(ctx, "postgres://db/hr?table=t", Options{})
	assert.Error(t, err)
}

func TestMongoLocation_NoSink(t *testing.T) {
	_, err := MongoLocation{URI: "mongodb://m/", Database: "hr", Collection: "raw"}.NewSink(context.Background())
	assert.Error(t, err)
}

func TestNewCSVSink(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()

	sink, err := NewCSVSink(ctx, "s3://hr/sample.csv", Options{S3Client: client, CSVComma: ';'},
		writers.WithHeaders([]string{employee.ColEmployeeID, employee.ColCity}))
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, core.Record{employee.ColEmployeeID: int64(1), employee.ColCity: "Reno"}))
	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Close())
	assert.Equal(t, "employee_id;city\n1;Reno\n", string(client.objects["sample.csv"]))

	sink, err = NewCSVSink(ctx, "s3://hr/partial.csv", Options{S3Client: client})
	require.NoError(t, err)
	require.NoError(t, core.AbortSink(sink))
	assert.NotContains(t, client.objects, "partial.csv")
}
