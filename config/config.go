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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/empclean/core"
	"github.com/aaronlmathis/empclean/defaults"
	"github.com/aaronlmathis/empclean/enrich"
)

// Package config loads the EmpClean run configuration.
//
// Sources are applied in order, later ones winning:
//
//	defaults -> YAML file -> .env file -> EMPCLEAN_* environment variables
//
// Variables already present in the environment are never overwritten by the .env file.

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "EMPCLEAN_"

// Config represents the application configuration
type Config struct {
	Input      string   `yaml:"input"`
	Outputs    []string `yaml:"outputs"`
	ReportPath string   `yaml:"report_path"`
	SamplePath string   `yaml:"sample_path"`
	SampleSize int      `yaml:"sample_size"`

	// IngestionTime fixes the run timestamp (RFC 3339). Empty means the wall clock at start.
	IngestionTime   string            `yaml:"ingestion_time"`
	Workers         int               `yaml:"workers"` // 0 means GOMAXPROCS
	SalaryBands     BandsConfig       `yaml:"salary_bands"`
	Defaults        map[string]string `yaml:"defaults"`
	ErrorStrategy   string            `yaml:"error_strategy"`
	CheckInvariants bool              `yaml:"check_invariants"`
	CSVDelimiter    string            `yaml:"csv_delimiter"`

	S3      S3Config      `yaml:"s3"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BandsConfig holds the salary band thresholds as decimal strings.
type BandsConfig struct {
	MidFloor    string `yaml:"mid_floor"`
	SeniorFloor string `yaml:"senior_floor"`
}

// S3Config configures s3:// locations.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures the Prometheus Pushgateway export. An empty URL disables it.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		ReportPath:      "quality_report.json",
		SampleSize:      10,
		ErrorStrategy:   "skip",
		CheckInvariants: true,
		CSVDelimiter:    ",",
		SalaryBands: BandsConfig{
			MidFloor:    "50000",
			SeniorFloor: "80000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Job: "empclean",
		},
	}
}

// Load builds the configuration with Read and validates it.
func Load(path, envFile string) (*Config, error) {
	cfg, err := Read(path, envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the configuration from path (optional YAML), envFile (optional; a missing file
// is ignored) and the environment without validating it, so callers can layer flags on top.
func Read(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"INPUT":           &c.Input,
		"REPORT_PATH":     &c.ReportPath,
		"SAMPLE_PATH":     &c.SamplePath,
		"INGESTION_TIME":  &c.IngestionTime,
		"MID_FLOOR":       &c.SalaryBands.MidFloor,
		"SENIOR_FLOOR":    &c.SalaryBands.SeniorFloor,
		"ERROR_STRATEGY":  &c.ErrorStrategy,
		"CSV_DELIMITER":   &c.CSVDelimiter,
		"S3_REGION":       &c.S3.Region,
		"S3_ENDPOINT":     &c.S3.Endpoint,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FORMAT":      &c.Log.Format,
		"PUSHGATEWAY_URL": &c.Metrics.PushgatewayURL,
		"METRICS_JOB":     &c.Metrics.Job,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("OUTPUTS"); ok {
		c.Outputs = splitList(v)
	}

	ints := map[string]*int{
		"SAMPLE_SIZE": &c.SampleSize,
		"WORKERS":     &c.Workers,
	}
	for key, dst := range ints {
		if v, ok := lookupEnv(key); ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"CHECK_INVARIANTS": &c.CheckInvariants,
		"S3_PATH_STYLE":    &c.S3.PathStyle,
	}
	for key, dst := range bools {
		if v, ok := lookupEnv(key); ok {
			b, err := cast.ToBoolE(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input location is required")
	}
	if len(c.Outputs) == 0 {
		return errors.New("at least one output location is required")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if c.SampleSize < 0 {
		return errors.New("sample size cannot be negative")
	}
	if _, err := c.IngestedAt(); err != nil {
		return err
	}
	if _, err := c.Bands(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	if _, err := c.Comma(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// IngestedAt parses IngestionTime. The zero time means "now".
func (c *Config) IngestedAt() (time.Time, error) {
	if c.IngestionTime == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, c.IngestionTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ingestion time: %w", err)
	}
	return ts, nil
}

// Bands parses the salary band thresholds.
func (c *Config) Bands() (enrich.Bands, error) {
	mid, err := decimal.NewFromString(c.SalaryBands.MidFloor)
	if err != nil {
		return enrich.Bands{}, fmt.Errorf("invalid mid salary floor %q: %w", c.SalaryBands.MidFloor, err)
	}
	senior, err := decimal.NewFromString(c.SalaryBands.SeniorFloor)
	if err != nil {
		return enrich.Bands{}, fmt.Errorf("invalid senior salary floor %q: %w", c.SalaryBands.SeniorFloor, err)
	}
	bands := enrich.Bands{MidFloor: mid, SeniorFloor: senior}
	if err := bands.Validate(); err != nil {
		return enrich.Bands{}, err
	}
	return bands, nil
}

// Policy builds the missing value policy from the default overrides.
func (c *Config) Policy() (defaults.Policy, error) {
	return defaults.NewPolicy(c.Defaults)
}

// Strategy parses the error strategy.
func (c *Config) Strategy() (core.ErrorStrategy, error) {
	s, ok := core.ParseErrorStrategy(c.ErrorStrategy)
	if !ok {
		return s, fmt.Errorf("unknown error strategy %q", c.ErrorStrategy)
	}
	return s, nil
}

// Comma returns the CSV delimiter as a rune.
func (c *Config) Comma() (rune, error) {
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return 0, fmt.Errorf("csv delimiter must be a single character, got %q", c.CSVDelimiter)
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid csv delimiter %q", c.CSVDelimiter)
	}
	return r, nil
}
