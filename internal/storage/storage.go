// Package storage defines the relational sink boundary the ingestion
// pipelines write into, plus the backend factory registry. Backends live in
// subpackages (sqlite, postgres, mssql) and register themselves from init();
// importing internal/storage/all pulls them all in.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a sink.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific (for sqlite it is simply the output file path).
type Config struct {
	Kind string
	DSN  string
}

// Column describes one declared (non-key) column of a destination table.
// Every inferred column stores TEXT; Integer is set only for the synthesized
// foreign-key column of line-item tables.
type Column struct {
	Name    string
	Integer bool
}

// TableSpec describes a table to declare. Every table additionally gets a
// synthesized integer `id` primary key, added by the backend; the backend
// must accept both sink-assigned and explicitly inserted id values.
type TableSpec struct {
	Name    string
	Columns []Column
}

// Sink is the backend-agnostic interface for the destination store.
//
// IMPORTANT: this interface is intentionally minimal and focused on what the
// ingestion pipelines need: idempotent table declaration and positional row
// inserts. Each backend implements these semantics in its own idiomatic way.
type Sink interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// EnsureTable declares a table with create-if-not-exists semantics.
	// Re-running a conversion against an existing store must not fail here.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows positionally against the given column names.
	// A column list containing "id" carries explicit primary-key values.
	// The first failing row aborts and returns the error; rows already
	// written stay written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Factory constructs a Sink for a registered backend kind.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a sink backend under a kind (e.g. "sqlite").
//
// Call Register from an init() function in a backend package. Registering an
// empty kind, a nil factory, or the same kind twice panics; failing fast here
// avoids ambiguous backend selection at run time.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Sink using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing sink kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported sink kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// TextColumns converts plain column names into all-TEXT column specs, the
// shape every inferred table uses.
func TextColumns(names []string) []Column {
	out := make([]Column, 0, len(names))
	for _, n := range names {
		out = append(out, Column{Name: n})
	}
	return out
}
