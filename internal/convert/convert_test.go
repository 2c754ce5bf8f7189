package convert

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	_ "auditload/internal/storage/sqlite"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openStore(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "export.csv", want: FormatDelimited},
		{path: "export.txt", want: FormatDelimited},
		{path: "export.TXT", want: FormatDelimited},
		{path: "boek.xlsx", want: FormatSpreadsheet},
		{path: "boek.xls", want: FormatSpreadsheet},
		{path: "jaar.xaf", want: FormatAuditFile},
		{path: "jaar.XAF", want: FormatAuditFile},
		{path: "dump.json", wantErr: true},
		{path: "noext", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()

			got, err := DetectFormat(tc.path)
			if tc.wantErr {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Fatalf("err = %v, want *ConfigError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("DetectFormat(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestConvertCSVEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "accounts.csv", "id,name\n10,alice\n20,bob\n")
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: src})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	db := openStore(t, out)
	if n := countRows(t, db, "accounts"); n != 2 {
		t.Fatalf("accounts rows = %d, want 2", n)
	}

	// the source's own id column is renamed away from the synthesized key
	rows, err := db.Query(`SELECT id, id_2, name FROM accounts ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var got [][3]string
	for rows.Next() {
		var id, srcID, name string
		if err := rows.Scan(&id, &srcID, &name); err != nil {
			t.Fatal(err)
		}
		got = append(got, [3]string{id, srcID, name})
	}
	want := [][3]string{{"1", "10", "alice"}, {"2", "20", "bob"}}
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConvertXAFEndToEnd(t *testing.T) {
	t.Parallel()

	doc := `<auditfile xmlns="http://www.auditfiles.nl/XAF/3.2">
 <company>
  <transactions>
   <journal>
    <transaction><nr>T1</nr>
     <trLine><nr>1</nr><amnt>1.00</amnt></trLine>
     <trLine><nr>2</nr><amnt>2.00</amnt></trLine>
     <trLine><nr>3</nr><amnt>3.00</amnt></trLine>
    </transaction>
    <transaction><nr>T2</nr>
     <trLine><nr>1</nr><amnt>4.00</amnt></trLine>
     <trLine><nr>2</nr><amnt>5.00</amnt></trLine>
     <trLine><nr>3</nr><amnt>6.00</amnt></trLine>
    </transaction>
   </journal>
  </transactions>
 </company>
</auditfile>`

	dir := t.TempDir()
	src := writeFile(t, dir, "jaar.xaf", doc)
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: src})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	db := openStore(t, out)
	if n := countRows(t, db, "transactions"); n != 2 {
		t.Fatalf("transactions = %d, want 2", n)
	}
	if n := countRows(t, db, "trLines"); n != 6 {
		t.Fatalf("trLines = %d, want 6", n)
	}

	rows, err := db.Query(`SELECT transaction_id FROM trLines ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	want := []int64{1, 1, 1, 2, 2, 2}
	for i, w := range want {
		if ids[i] != w {
			t.Fatalf("transaction_id sequence = %v, want %v", ids, want)
		}
	}
}

func TestConvertRerunIsIdempotentOnSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "s.csv", "a,b\n1,2\n")
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: src})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	// second run against the existing table must not fail
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	db := openStore(t, out)
	if n := countRows(t, db, "s"); n != 2 {
		t.Fatalf("rows after rerun = %d, want 2", n)
	}
}

func TestChangeSourceAccumulatesIntoOneStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "a.csv", "x\n1\n")
	second := writeFile(t, dir, "b.csv", "y\n2\n3\n")
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: first})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.ChangeSource(second, WithTablePrefix("extra")); err != nil {
		t.Fatal(err)
	}
	if got := c.SourcePath(); got != second {
		t.Fatalf("SourcePath() = %q, want %q", got, second)
	}
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	db := openStore(t, out)
	if n := countRows(t, db, "a"); n != 1 {
		t.Fatalf("a rows = %d", n)
	}
	if n := countRows(t, db, "extra_b"); n != 2 {
		t.Fatalf("extra_b rows = %d", n)
	}
}

func TestNewRejectsMissingOutputDir(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "nodir", "out.db")
	_, err := New(context.Background(), Options{OutputPath: out})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestChangeSourceRejectsBadInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out.db")
	c, err := New(context.Background(), Options{OutputPath: out})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var ce *ConfigError
	if err := c.ChangeSource(filepath.Join(dir, "missing.csv")); !errors.As(err, &ce) {
		t.Fatalf("missing source: err = %v, want *ConfigError", err)
	}
	existing := writeFile(t, dir, "notes.md", "hi")
	if err := c.ChangeSource(existing); !errors.As(err, &ce) {
		t.Fatalf("bad extension: err = %v, want *ConfigError", err)
	}
	if err := c.Convert(context.Background()); !errors.As(err, &ce) {
		t.Fatalf("convert without source: err = %v, want *ConfigError", err)
	}
}

func TestConvertErrorUnwraps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "broken.xaf", "<auditfile><company>")
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: src})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	err = c.Convert(context.Background())
	var cve *ConvertError
	if !errors.As(err, &cve) {
		t.Fatalf("err = %v, want *ConvertError", err)
	}
	if cve.Format != FormatAuditFile || errors.Unwrap(cve) == nil {
		t.Fatalf("ConvertError = %+v", cve)
	}
}

func TestCloseRemovesOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "a.csv", "x\n1\n")
	out := filepath.Join(dir, "out.db")

	c, err := New(context.Background(), Options{OutputPath: out, SourcePath: src, RemoveOnClose: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Convert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output still present after Close: %v", err)
	}
}
