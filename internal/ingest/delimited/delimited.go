// Package delimited ingests txt/csv sources: it sniffs the encoding and
// field separator from the head of the stream, derives the column list from
// the first line, and streams the remaining lines into one destination table.
package delimited

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"auditload/internal/coerce"
	"auditload/internal/ingest"
	"auditload/internal/shape"
	"auditload/internal/sniff"
	"auditload/internal/storage"
)

// Load runs the delimited-text pipeline for one source file.
//
// The key row is always the first line: delimiter detection consumes the
// stream head, so the stream is rewound afterwards and the same line is
// re-read as the column row. Columns are sanitized key-row fields, deduped
// against the synthesized id key; every later line is parsed with the
// detected delimiter, coerced field by field, and inserted positionally.
//
// Failure to open the source or read the first line is fatal, as is any
// insert error; rows already written stay written.
func Load(ctx context.Context, sink storage.Sink, path, prefix string) (ingest.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(2)
	enc := sniff.DetectEncoding(head)

	firstLine, err := readFirstLine(sniff.DecodeReader(br, enc))
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("read first line: %w", err)
	}
	delim := sniff.DetectDelimiter(firstLine)

	// rewind so the key row is re-read as data
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ingest.Stats{}, fmt.Errorf("rewind source: %w", err)
	}

	cr := csv.NewReader(sniff.DecodeReader(bufio.NewReader(f), enc))
	cr.Comma = delim
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	line := 0
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	keyRow, err := readRec()
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("read key row: %w", err)
	}
	columns := keyColumns(keyRow)
	if len(columns) == 0 {
		return ingest.Stats{}, fmt.Errorf("key row of %s yields no columns", path)
	}

	table := shape.TableName(prefix, baseName(path))
	if err := sink.EnsureTable(ctx, storage.TableSpec{
		Name:    table,
		Columns: storage.TextColumns(columns),
	}); err != nil {
		return ingest.Stats{}, err
	}

	b := ingest.NewBatcher(sink, table, columns)
	for {
		rec, err := readRec()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ingest.Stats{Tables: 1, Rows: b.Rows()}, fmt.Errorf("read line %d: %w", line, err)
		}

		row := make([]any, len(rec))
		for i, field := range rec {
			row[i] = coerce.Coerce(coerce.Text(field))
		}
		if err := b.Push(ctx, row); err != nil {
			return ingest.Stats{Tables: 1, Rows: b.Rows()}, err
		}
	}
	if err := b.Flush(ctx); err != nil {
		return ingest.Stats{Tables: 1, Rows: b.Rows()}, err
	}

	return ingest.Stats{Tables: 1, Rows: b.Rows()}, nil
}

// readFirstLine reads up to the first newline (exclusive) for delimiter
// detection. EOF before any byte means there is nothing to ingest.
func readFirstLine(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	s, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	s = strings.TrimRight(s, "\r\n")
	if s == "" && err == io.EOF {
		return "", io.ErrUnexpectedEOF
	}
	return s, nil
}

// keyColumns turns the raw key row into sanitized, deduped column names.
// A UTF-8 byte-order mark on the first cell is stripped, mirroring what the
// UTF-16 decoders already do for their BOM.
func keyColumns(keyRow []string) []string {
	cols := make([]string, 0, len(keyRow))
	for i, h := range keyRow {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols = append(cols, shape.SanitizeIdent(strings.TrimSpace(h)))
	}
	return shape.DedupeColumns(cols, "id")
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
