package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"auditload/internal/storage"
)

// Repo implements storage.Sink for Microsoft SQL Server through database/sql
// and the "sqlserver" driver.
//
// SQL Server quirks handled here:
//   - There is no CREATE TABLE IF NOT EXISTS; existence is checked with
//     OBJECT_ID, which keeps re-runs idempotent.
//   - The synthesized key is IDENTITY(1,1); inserting the audit-file loader's
//     explicit ids requires SET IDENTITY_INSERT ON for the duration of the
//     batch, so explicit-id inserts run inside a transaction pinned to one
//     session.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a connection pool against cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty single-run loads.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: insert into %s with no columns", table)
	}

	explicitID := hasColumn(columns, "id")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if explicitID {
		if _, err := tx.ExecContext(ctx, "SET IDENTITY_INSERT "+table+" ON"); err != nil {
			return 0, fmt.Errorf("mssql: identity_insert on %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return n, fmt.Errorf("mssql: %s row %d has %d values, want %d", table, i+1, len(row), len(columns))
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return n, fmt.Errorf("mssql: insert %s row %d: %w", table, i+1, err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if explicitID {
		if _, err := tx.ExecContext(ctx, "SET IDENTITY_INSERT "+table+" OFF"); err != nil {
			return n, fmt.Errorf("mssql: identity_insert off %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := []string{"[id] BIGINT IDENTITY(1,1) PRIMARY KEY"}
	for _, c := range spec.Columns {
		typ := "NVARCHAR(MAX)"
		if c.Integer {
			typ = "BIGINT"
		}
		parts = append(parts, fmt.Sprintf("%s %s", msIdent(c.Name), typ))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		spec.Name, spec.Name, strings.Join(parts, ",\n  "),
	), nil
}

// buildInsertSQL constructs a single-row INSERT with @pN placeholders, the
// ordinal form go-mssqldb maps positional args onto.
func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(msIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
	}
	b.WriteString(")")
	return b.String()
}
