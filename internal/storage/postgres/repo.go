package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"auditload/internal/storage"
)

// Repo implements storage.Sink for Postgres.
//
// The synthesized key is `id BIGINT GENERATED BY DEFAULT AS IDENTITY`:
// BY DEFAULT (not ALWAYS) so the audit-file loader can insert its explicit
// positional transaction ids while tabular inserts still get sink-assigned
// ones. Explicit ids can leave the identity sequence behind; this loader
// never mixes explicit and assigned ids within one table, so that is fine.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool against cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: insert into %s with no columns", table)
	}

	// pgx caches prepared statements per connection, so executing the same
	// statement text row by row keeps the prepare/bind/run shape cheap.
	stmtSQL := buildInsertSQL(table, columns)

	var n int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return n, fmt.Errorf("postgres: %s row %d has %d values, want %d", table, i+1, len(row), len(columns))
		}
		cmd, err := r.pool.Exec(ctx, stmtSQL, row...)
		if err != nil {
			return n, fmt.Errorf("insert %s row %d: %w", table, i+1, err)
		}
		n += cmd.RowsAffected()
	}
	return n, nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := []string{`"id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`}
	for _, c := range spec.Columns {
		typ := "TEXT"
		if c.Integer {
			typ = "BIGINT"
		}
		parts = append(parts, fmt.Sprintf("%s %s", pgIdent(c.Name), typ))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", spec.Name, strings.Join(parts, ",\n  ")), nil
}

// buildInsertSQL constructs a single-row INSERT with $n placeholders.
// Pure and deterministic so placeholder numbering is unit-testable without a
// database.
func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")
	return b.String()
}
