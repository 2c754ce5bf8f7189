// Package ingest holds the pieces shared by the three ingestion pipelines:
// run statistics and a small insert batcher that flushes buffered rows into a
// sink table.
package ingest

import (
	"context"

	"auditload/internal/storage"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Tables int64
	Rows   int64
}

// Add accumulates another run's statistics into s.
func (s *Stats) Add(o Stats) {
	s.Tables += o.Tables
	s.Rows += o.Rows
}

// batchSize is how many buffered rows a Batcher hands the sink at once.
// Inserts stay sequential and in source order; batching only amortizes
// statement preparation.
const batchSize = 256

// Batcher buffers rows for one destination table and flushes them in chunks.
// The first failing insert aborts: Flush returns the sink error and the
// batcher must not be reused after that.
type Batcher struct {
	sink    storage.Sink
	table   string
	columns []string
	buf     [][]any
	rows    int64
}

// NewBatcher returns a batcher inserting positionally against columns.
func NewBatcher(sink storage.Sink, table string, columns []string) *Batcher {
	return &Batcher{sink: sink, table: table, columns: columns}
}

// Push buffers one row, flushing when the buffer is full.
func (b *Batcher) Push(ctx context.Context, row []any) error {
	b.buf = append(b.buf, row)
	if len(b.buf) >= batchSize {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered rows to the sink.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	n, err := b.sink.InsertRows(ctx, b.table, b.columns, b.buf)
	b.rows += n
	b.buf = b.buf[:0]
	return err
}

// Rows reports how many rows the sink acknowledged so far.
func (b *Batcher) Rows() int64 { return b.rows }
