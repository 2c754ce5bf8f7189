package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"auditload/internal/convert"
	"auditload/internal/metrics"
	"auditload/internal/metrics/datadog"
	_ "auditload/internal/storage/all"
)

var version = "dev"

// run executes the CLI and returns the process exit code.
func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditload",
		Short:         "Load delimited text, spreadsheets and XAF audit files into a relational store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConvertCmd())
	return root
}

// setupMetrics installs the selected metrics backend and returns a shutdown
// function. Selection cascades flag → METRICS_BACKEND env → disabled.
func setupMetrics(backendName, jobName string, verbose bool) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	switch backendName {
	case "datadog":
		// Buffers metrics and submits periodically (default once per
		// minute) plus one final time at shutdown, so long conversions
		// produce a time series rather than a single spike.
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
		metrics.SetBackend(b)
		return func() {
			// Close stops the periodic flush loop and performs the
			// final flush.
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return func() {}
	}
}

func newConvertCmd() *cobra.Command {
	var (
		output         string
		source         string
		format         string
		prefix         string
		keyRow         int
		sinkKind       string
		sinkDSN        string
		cleanup        bool
		metricsBackend string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert one source file into the output store",
		RunE: func(cmd *cobra.Command, args []string) error {
			shutdownMetrics := setupMetrics(metricsBackend, "auditload", verbose)
			defer shutdownMetrics()

			ctx := context.Background()
			start := time.Now()

			c, err := convert.New(ctx, convert.Options{
				OutputPath:    output,
				SinkKind:      sinkKind,
				SinkDSN:       sinkDSN,
				RemoveOnClose: cleanup,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Printf("close: %v", err)
				}
			}()

			var sourceOpts []convert.SourceOption
			if format != "" {
				sourceOpts = append(sourceOpts, convert.WithFormat(convert.Format(format)))
			}
			if prefix != "" {
				sourceOpts = append(sourceOpts, convert.WithTablePrefix(prefix))
			}
			if keyRow > 1 {
				sourceOpts = append(sourceOpts, convert.WithKeyRow(keyRow))
			}
			if err := c.ChangeSource(source, sourceOpts...); err != nil {
				return err
			}

			if verbose {
				log.Printf("converting %s into %s", c.SourcePath(), output)
			}
			if err := c.Convert(ctx); err != nil {
				return err
			}
			if verbose {
				log.Printf("done in %s", time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output store file (sqlite)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "source file to convert")
	cmd.Flags().StringVar(&format, "format", "", "force source format: delimited, spreadsheet or auditfile")
	cmd.Flags().StringVar(&prefix, "prefix", "", "prefix for every destination table name")
	cmd.Flags().IntVar(&keyRow, "key-row", 1, "1-based row holding column labels (spreadsheets)")
	cmd.Flags().StringVar(&sinkKind, "sink", "", "storage backend: sqlite, postgres or mssql (default sqlite)")
	cmd.Flags().StringVar(&sinkDSN, "dsn", "", "connection string for non-sqlite sinks")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove the output store on exit")
	cmd.Flags().StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: datadog or none (env METRICS_BACKEND)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
