// Package shape holds the pure structural helpers shared by every ingestion
// pipeline: positional row reconciliation against an inferred column list and
// sanitizing of arbitrary source labels into relational identifiers.
package shape

import (
	"strconv"
	"strings"
)

// NormalizeRow reconciles a data row's arity against a previously inferred
// column list of the given width. Short rows are padded with nils on the
// right, long rows are truncated on the right; the result always has exactly
// width values. The input slice is never mutated.
//
// This is positional alignment only; no semantic column matching happens.
func NormalizeRow(row []any, width int) []any {
	if width < 0 {
		width = 0
	}
	out := make([]any, width)
	copy(out, row)
	return out
}

// SanitizeIdent maps an arbitrary source label (sheet name, tag name, header
// cell) to a safe relational identifier by replacing every character outside
// [A-Za-z0-9_] with an underscore. It is idempotent.
//
// Never apply this to data values.
func SanitizeIdent(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IsBlankIdent reports whether a sanitized identifier carries no information,
// i.e. it is empty or consists only of underscores. Such labels are dropped
// from inferred column lists.
func IsBlankIdent(ident string) bool {
	return strings.Trim(ident, "_") == ""
}

// DedupeColumns makes an inferred column list usable as DDL: any name that
// collides with a reserved name (the synthesized key columns) or with an
// earlier column gets a numeric suffix (_2, _3, ...). Input order is kept.
func DedupeColumns(cols []string, reserved ...string) []string {
	seen := make(map[string]bool, len(cols)+len(reserved))
	for _, r := range reserved {
		seen[r] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		name := c
		for n := 2; seen[name]; n++ {
			name = c + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// TableName builds the destination table name for a source label, joining the
// configured prefix (if any) with an underscore and sanitizing the result.
func TableName(prefix, label string) string {
	if prefix == "" {
		return SanitizeIdent(label)
	}
	return SanitizeIdent(prefix + "_" + label)
}
