// Package convert is the pipeline controller: it owns the relational sink
// for one output store, validates source configuration up front, and
// dispatches each source file to the pipeline matching its format.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"auditload/internal/ingest"
	"auditload/internal/ingest/auditfile"
	"auditload/internal/ingest/delimited"
	"auditload/internal/ingest/spreadsheet"
	"auditload/internal/metrics"
	"auditload/internal/storage"
)

// Format names the pipeline a source file is routed to.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
	FormatAuditFile   Format = "auditfile"
)

// DetectFormat maps a source path's extension to its pipeline.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "txt", "csv":
		return FormatDelimited, nil
	case "xls", "xlsx":
		return FormatSpreadsheet, nil
	case "xaf":
		return FormatAuditFile, nil
	default:
		return "", &ConfigError{Path: path, Reason: "unsupported source extension"}
	}
}

// Options configures a Converter.
type Options struct {
	// OutputPath is the store file for the default sqlite sink. The parent
	// directory must already exist.
	OutputPath string

	// SinkKind selects a registered storage backend. Empty means sqlite
	// with OutputPath as the DSN.
	SinkKind string

	// SinkDSN overrides the sink's connection string. Required for any
	// non-sqlite kind.
	SinkDSN string

	// RemoveOnClose removes the output file when the converter closes.
	// Only meaningful for the file-backed sqlite sink.
	RemoveOnClose bool

	// SourcePath is the initial source file. Optional; ChangeSource can
	// set it later.
	SourcePath string

	// Format overrides extension-based detection for SourcePath.
	Format Format
}

// SourceOption adjusts how one source file is ingested.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	format Format
	prefix string
	keyRow int
}

// WithFormat overrides extension-based format detection.
func WithFormat(f Format) SourceOption {
	return func(c *sourceConfig) { c.format = f }
}

// WithTablePrefix prepends prefix to every destination table name.
func WithTablePrefix(prefix string) SourceOption {
	return func(c *sourceConfig) { c.prefix = prefix }
}

// WithKeyRow sets the 1-based row that holds column labels. Only the
// spreadsheet pipeline honors it; delimited sources always use line 1.
func WithKeyRow(row int) SourceOption {
	return func(c *sourceConfig) { c.keyRow = row }
}

// Converter drives conversions of source files into one relational store.
// It is not safe for concurrent use; one conversion runs at a time.
type Converter struct {
	sink       storage.Sink
	outputPath string
	removeOut  bool

	source sourceConfig
	path   string
}

// New validates the configuration, opens the sink, and returns a ready
// Converter. The sink stays open until Close.
func New(ctx context.Context, opts Options) (*Converter, error) {
	kind := opts.SinkKind
	dsn := opts.SinkDSN
	if kind == "" {
		kind = "sqlite"
	}
	if kind == "sqlite" && dsn == "" {
		if opts.OutputPath == "" {
			return nil, &ConfigError{Reason: "output path required"}
		}
		dsn = opts.OutputPath
	}
	if dsn == "" {
		return nil, &ConfigError{Reason: fmt.Sprintf("sink %q requires a DSN", kind)}
	}

	if opts.OutputPath != "" {
		dir := filepath.Dir(opts.OutputPath)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return nil, &ConfigError{Path: opts.OutputPath, Reason: "output directory does not exist"}
		}
	}

	c := &Converter{
		outputPath: opts.OutputPath,
		removeOut:  opts.RemoveOnClose,
	}
	if opts.SourcePath != "" {
		var sourceOpts []SourceOption
		if opts.Format != "" {
			sourceOpts = append(sourceOpts, WithFormat(opts.Format))
		}
		if err := c.ChangeSource(opts.SourcePath, sourceOpts...); err != nil {
			return nil, err
		}
	}

	sink, err := storage.New(ctx, storage.Config{Kind: kind, DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	c.sink = sink
	return c, nil
}

// ChangeSource re-targets the converter at a new source file. The sink and
// everything already loaded into it are untouched. Must not be called while
// a Convert is in flight.
func (c *Converter) ChangeSource(path string, opts ...SourceOption) error {
	cfg := sourceConfig{keyRow: 1}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return err
		}
		cfg.format = f
	}
	if cfg.keyRow < 1 {
		cfg.keyRow = 1
	}

	fi, err := os.Stat(path)
	if err != nil {
		return &ConfigError{Path: path, Reason: "source not readable", Err: err}
	}
	if fi.IsDir() {
		return &ConfigError{Path: path, Reason: "source is a directory"}
	}

	c.source = cfg
	c.path = path
	return nil
}

// SourcePath returns the currently configured source file.
func (c *Converter) SourcePath() string { return c.path }

// Convert runs the configured source through its pipeline. Tables appear in
// the sink as they are discovered; a failure aborts the run and leaves rows
// already inserted in place.
func (c *Converter) Convert(ctx context.Context) error {
	if c.path == "" {
		return &ConfigError{Reason: "no source configured"}
	}

	start := time.Now()
	var stats ingest.Stats
	var err error

	switch c.source.format {
	case FormatDelimited:
		stats, err = delimited.Load(ctx, c.sink, c.path, c.source.prefix)
	case FormatSpreadsheet:
		stats, err = spreadsheet.Load(ctx, c.sink, c.path, c.source.prefix, c.source.keyRow)
	case FormatAuditFile:
		stats, err = auditfile.Load(ctx, c.sink, c.path, c.source.prefix)
	default:
		return &ConfigError{Path: c.path, Reason: fmt.Sprintf("unknown format %q", c.source.format)}
	}

	labels := metrics.Labels{"source": string(c.source.format)}
	metrics.IncCounter("load_tables_total", float64(stats.Tables), labels)
	metrics.IncCounter("load_rows_total", float64(stats.Rows), labels)
	metrics.ObserveHistogram("load_convert_duration_seconds", time.Since(start).Seconds(), labels)

	if err != nil {
		return &ConvertError{Path: c.path, Format: c.source.format, Err: err}
	}
	return nil
}

// Close releases the sink and, when configured, removes the output file.
// Safe to call after a failed Convert.
func (c *Converter) Close() error {
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	if c.removeOut && c.outputPath != "" {
		if err := os.Remove(c.outputPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove output: %w", err)
		}
	}
	return nil
}
