// Package spreadsheet ingests xlsx workbooks: every sheet becomes one
// destination table, named after the sheet, with columns taken from a
// configurable key row.
package spreadsheet

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"auditload/internal/coerce"
	"auditload/internal/ingest"
	"auditload/internal/shape"
	"auditload/internal/storage"
)

// Load runs the spreadsheet pipeline for one workbook.
//
// keyRow is the 1-based row holding the column labels; rows above it are
// skipped. Blank labels are dropped together with their column, and every
// data row is padded or truncated to the key row's width before insert.
// Legacy BIFF workbooks are rejected by the reader and surface as an open
// error.
func Load(ctx context.Context, sink storage.Sink, path, prefix string, keyRow int) (ingest.Stats, error) {
	if keyRow < 1 {
		keyRow = 1
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var stats ingest.Stats
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return stats, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) < keyRow {
			continue
		}

		columns, keep := keyColumns(rows[keyRow-1])
		if len(columns) == 0 {
			continue
		}

		table := shape.TableName(prefix, sheet)
		if err := sink.EnsureTable(ctx, storage.TableSpec{
			Name:    table,
			Columns: storage.TextColumns(columns),
		}); err != nil {
			return stats, err
		}
		stats.Add(ingest.Stats{Tables: 1})

		b := ingest.NewBatcher(sink, table, columns)
		for _, raw := range rows[keyRow:] {
			// the sheet reader trims trailing empty cells, so absent
			// kept cells are always a suffix; pad back to full width
			row := make([]any, 0, len(columns))
			for _, i := range keep {
				if i < len(raw) {
					row = append(row, coerce.Coerce(coerce.Text(raw[i])))
				}
			}
			row = shape.NormalizeRow(row, len(columns))
			if err := b.Push(ctx, row); err != nil {
				return stats, err
			}
		}
		if err := b.Flush(ctx); err != nil {
			return stats, err
		}
		stats.Add(ingest.Stats{Rows: b.Rows()})
	}
	return stats, nil
}

// keyColumns sanitizes the key row and drops cells that end up blank.
// keep holds the source cell index of every surviving column so data rows
// can skip the dropped cells too.
func keyColumns(raw []string) (columns []string, keep []int) {
	for i, label := range raw {
		ident := shape.SanitizeIdent(label)
		if shape.IsBlankIdent(ident) {
			continue
		}
		columns = append(columns, ident)
		keep = append(keep, i)
	}
	return shape.DedupeColumns(columns, "id"), keep
}
