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
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aaronlmathis/empclean/core"
)

// MongoReaderError provides structured error information for MongoDB reader operations
type MongoReaderError struct {
	Op         string // Operation that failed (e.g., "connect", "find", "decode")
	Collection string // Collection being accessed when error occurred
	Err        error  // Underlying error
}

func (e *MongoReaderError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo reader %s (collection: %s): %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo reader %s: %v", e.Op, e.Err)
}

func (e *MongoReaderError) Unwrap() error {
	return e.Err
}

// MongoReaderStats holds statistics about the MongoDB reader
type MongoReaderStats struct {
	RecordsRead     int64
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// MongoReaderOptions configures the MongoDB reader
type MongoReaderOptions struct {
	URI            string        // MongoDB connection URI
	Database       string        // Database name
	Collection     string        // Collection name
	Filter         bson.M        // Query filter
	Projection     bson.M        // Field projection
	Sort           bson.D        // Sort specification; defaults to _id ascending
	BatchSize      int32         // Cursor batch size
	Timeout        time.Duration // Connect timeout
	ReadPreference string        // primary, primaryPreferred, secondary, secondaryPreferred, nearest
}

// ReaderOptionMongo allows functional customization of MongoReader.
type ReaderOptionMongo func(*MongoReaderOptions)

// WithMongoURI sets the connection URI.
func WithMongoURI(uri string) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.URI = uri }
}

// WithMongoDB sets the database name.
func WithMongoDB(database string) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Database = database }
}

// WithMongoCollection sets the collection name.
func WithMongoCollection(collection string) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Collection = collection }
}

// WithMongoFilter restricts the documents read.
func WithMongoFilter(filter bson.M) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Filter = filter }
}

// WithMongoProjection sets the field projection.
func WithMongoProjection(projection bson.M) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Projection = projection }
}

// WithMongoSort sets the sort order. Order matters: duplicates resolve to the first document read.
func WithMongoSort(sort bson.D) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Sort = sort }
}

// WithMongoTimeout sets the connect timeout.
func WithMongoTimeout(timeout time.Duration) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.Timeout = timeout }
}

// WithMongoReadPreference sets the read preference by name.
func WithMongoReadPreference(preference string) ReaderOptionMongo {
	return func(o *MongoReaderOptions) { o.ReadPreference = preference }
}

// MongoReader implements core.DataSource for MongoDB collections of raw employee documents.
type MongoReader struct {
	client     *mongo.Client
	collection *mongo.Collection
	cursor     *mongo.Cursor
	opts       *MongoReaderOptions
	stats      MongoReaderStats
}

// NewMongoReader creates a MongoDB reader. The connection is opened on the first Read.
func NewMongoReader(options ...ReaderOptionMongo) (*MongoReader, error) {
	opts := &MongoReaderOptions{
		URI:            "mongodb://localhost:27017",
		Sort:           bson.D{{Key: "_id", Value: 1}},
		BatchSize:      1000,
		Timeout:        30 * time.Second,
		ReadPreference: "primary",
	}
	for _, option := range options {
		option(opts)
	}

	if opts.Database == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	if _, err := readPreference(opts.ReadPreference); err != nil {
		return nil, &MongoReaderError{Op: "validate", Err: err}
	}

	return &MongoReader{
		opts:  opts,
		stats: MongoReaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

func readPreference(name string) (*readpref.ReadPref, error) {
	switch name {
	case "", "primary":
		return readpref.Primary(), nil
	case "primaryPreferred":
		return readpref.PrimaryPreferred(), nil
	case "secondary":
		return readpref.Secondary(), nil
	case "secondaryPreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	default:
		return nil, fmt.Errorf("invalid read preference: %s", name)
	}
}

func (mr *MongoReader) connect(ctx context.Context) error {
	rp, err := readPreference(mr.opts.ReadPreference)
	if err != nil {
		return &MongoReaderError{Op: "build_options", Err: err}
	}
	clientOpts := options.Client().
		ApplyURI(mr.opts.URI).
		SetConnectTimeout(mr.opts.Timeout).
		SetReadPreference(rp)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return &MongoReaderError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &MongoReaderError{Op: "ping", Err: err}
	}
	mr.client = client
	mr.collection = client.Database(mr.opts.Database).Collection(mr.opts.Collection)

	findOpts := options.Find().SetBatchSize(mr.opts.BatchSize)
	if mr.opts.Projection != nil {
		findOpts.SetProjection(mr.opts.Projection)
	}
	if mr.opts.Sort != nil {
		findOpts.SetSort(mr.opts.Sort)
	}
	filter := mr.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := mr.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return &MongoReaderError{Op: "find", Collection: mr.opts.Collection, Err: err}
	}
	mr.cursor = cursor
	return nil
}

// Read implements the core.DataSource interface
func (mr *MongoReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		mr.stats.ReadDuration += time.Since(start)
	}()

	select {
	case <-ctx.Done():
		return nil, &MongoReaderError{Op: "read", Collection: mr.opts.Collection, Err: ctx.Err()}
	default:
	}

	if mr.cursor == nil {
		if err := mr.connect(ctx); err != nil {
			return nil, err
		}
	}

	if !mr.cursor.Next(ctx) {
		if err := mr.cursor.Err(); err != nil {
			return nil, &MongoReaderError{Op: "cursor_next", Collection: mr.opts.Collection, Err: err}
		}
		return nil, io.EOF
	}

	var doc bson.M
	if err := mr.cursor.Decode(&doc); err != nil {
		return nil, &MongoReaderError{Op: "decode", Collection: mr.opts.Collection, Err: err}
	}

	record := make(core.Record, len(doc))
	for key, value := range doc {
		converted := convertBSONValue(value)
		if converted == nil {
			mr.stats.NullValueCounts[key]++
		}
		record[key] = converted
	}
	mr.stats.RecordsRead++
	return record, nil
}

// Close implements the core.DataSource interface
func (mr *MongoReader) Close() error {
	ctx := context.Background()
	var errs []error
	if mr.cursor != nil {
		if err := mr.cursor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		mr.cursor = nil
	}
	if mr.client != nil {
		if err := mr.client.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
		mr.client = nil
	}
	if len(errs) > 0 {
		return &MongoReaderError{Op: "close", Collection: mr.opts.Collection, Err: fmt.Errorf("%v", errs)}
	}
	return nil
}

// Stats returns reader statistics.
func (mr *MongoReader) Stats() MongoReaderStats {
	return mr.stats
}

// convertBSONValue converts BSON values into the plain Go values employee.FromRecord accepts.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Decimal128:
		return v.String()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC()
	case primitive.Undefined, primitive.Null:
		return nil
	case int32:
		return int64(v)
	case bson.M:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertBSONValue(val)
		}
		return result
	case bson.A:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertBSONValue(val)
		}
		return result
	default:
		return v
	}
}
