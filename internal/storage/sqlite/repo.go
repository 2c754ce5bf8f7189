package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"auditload/internal/storage"
)

// Repo implements storage.Sink for SQLite, the default file-backed sink.
//
// Key design points:
//   - `id INTEGER PRIMARY KEY` aliases the rowid, so SQLite both
//     auto-generates ids for tabular inserts and accepts the explicit
//     positional ids the audit-file loader supplies for transactions.
//   - All inferred columns are TEXT; values arrive already coerced to
//     string-or-nil, so no type juggling happens at this layer.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens (creating if needed) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable declares the table with CREATE TABLE IF NOT EXISTS, keeping
// repeat conversions against the same store idempotent.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows one statement execution at a time through a single
// prepared statement. The first failing row aborts the remainder.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: insert into %s with no columns", table)
	}

	stmt, err := r.db.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return n, fmt.Errorf("sqlite: %s row %d has %d values, want %d", table, i+1, len(row), len(columns))
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return n, fmt.Errorf("insert %s row %d: %w", table, i+1, err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	return n, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildCreateTableSQL generates idempotent DDL: a synthesized integer primary
// key named id, then one column per spec column (TEXT unless Integer).
func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := []string{`"id" INTEGER PRIMARY KEY`}
	for _, c := range spec.Columns {
		typ := "TEXT"
		if c.Integer {
			typ = "INTEGER"
		}
		parts = append(parts, fmt.Sprintf("%s %s", sqlIdent(c.Name), typ))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", spec.Name, strings.Join(parts, ",\n  ")), nil
}

func buildInsertSQL(table string, columns []string) string {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(colList, ", "), placeholders)
}
