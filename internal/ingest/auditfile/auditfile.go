// Package auditfile ingests XML audit files that carry no schema
// declaration. Repeated-record containers are discovered structurally, and
// the transaction hierarchy is rebuilt as two tables linked by a
// synthesized sequential key.
package auditfile

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"auditload/internal/coerce"
	"auditload/internal/ingest"
	"auditload/internal/shape"
	"auditload/internal/storage"
)

// node is the generic element tree: tag, accumulated text and element
// children, namespace ignored.
type node struct {
	XMLName  xml.Name
	Content  string `xml:",chardata"`
	Children []node `xml:",any"`
}

// Load runs the audit-xml pipeline for one document.
//
// Every company element gets two passes. The first turns each plural
// container (more than one child, first two children sharing a tag) into a
// table, skipping transactions and journal. The second walks all
// transaction elements into a transactions table keyed by an explicit
// 1-based document-order id, with their trLine children in a trLines table
// carrying that id as transaction_id. Column lists for each table are fixed
// by the first record encountered; later records with extra children lose
// them, records with missing children insert null.
func Load(ctx context.Context, sink storage.Sink, path, prefix string) (ingest.Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("read source: %w", err)
	}

	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return ingest.Stats{}, fmt.Errorf("parse xml: %w", err)
	}

	companies := findAll(&root, "company")
	if root.XMLName.Local == "company" {
		companies = append([]*node{&root}, companies...)
	}
	if len(companies) == 0 {
		return ingest.Stats{}, fmt.Errorf("%s holds no company element", path)
	}

	l := &loader{
		ctx:      ctx,
		sink:     sink,
		prefix:   prefix,
		declared: map[string]tableColumns{},
	}
	for _, c := range companies {
		if err := l.loadContainers(c); err != nil {
			return l.stats, err
		}
		if err := l.loadTransactions(c); err != nil {
			return l.stats, err
		}
	}
	return l.stats, nil
}

type loader struct {
	ctx    context.Context
	sink   storage.Sink
	prefix string

	// declared maps a table name to the columns fixed at declaration;
	// the same container under a later company reuses them.
	declared map[string]tableColumns
	txnSeq   int64
	stats    ingest.Stats
}

// tableColumns carries both views of a fixed column list: names as declared
// in the table (deduped against synthesized keys) and the raw record keys
// used to look field values up, index-aligned.
type tableColumns struct {
	names []string
	keys  []string
}

// containers handled by the transaction pass
var transactionContainers = map[string]bool{
	"transactions": true,
	"journal":      true,
}

func (l *loader) loadContainers(company *node) error {
	for i := range company.Children {
		container := &company.Children[i]
		name := container.XMLName.Local
		if transactionContainers[name] || !isPlural(container) {
			continue
		}

		table := shape.TableName(l.prefix, name)
		columns, err := l.declare(table, func() (tableColumns, []storage.Column) {
			keys := recordColumns(&container.Children[0], "")
			names := shape.DedupeColumns(keys, "id")
			return tableColumns{names: names, keys: keys}, storage.TextColumns(names)
		})
		if err != nil {
			return err
		}

		b := ingest.NewBatcher(l.sink, table, columns.names)
		for j := range container.Children {
			if err := b.Push(l.ctx, alignRecord(&container.Children[j], columns.keys, nil)); err != nil {
				return err
			}
		}
		if err := b.Flush(l.ctx); err != nil {
			return err
		}
		l.stats.Add(ingest.Stats{Rows: b.Rows()})
	}
	return nil
}

func (l *loader) loadTransactions(company *node) error {
	txns := findAll(company, "transaction")
	if len(txns) == 0 {
		return nil
	}

	txnTable := shape.TableName(l.prefix, "transactions")
	txnCols, err := l.declare(txnTable, func() (tableColumns, []storage.Column) {
		keys := recordColumns(txns[0], "trLine")
		names := shape.DedupeColumns(keys, "id")
		return tableColumns{names: names, keys: keys}, storage.TextColumns(names)
	})
	if err != nil {
		return err
	}

	var lineTable string
	var lineCols tableColumns
	if lines := findAll(company, "trLine"); len(lines) > 0 {
		lineTable = shape.TableName(l.prefix, "trLines")
		lineCols, err = l.declare(lineTable, func() (tableColumns, []storage.Column) {
			keys := recordColumns(lines[0], "")
			names := shape.DedupeColumns(keys, "id", "transaction_id")
			spec := append([]storage.Column{{Name: "transaction_id", Integer: true}}, storage.TextColumns(names)...)
			return tableColumns{names: names, keys: keys}, spec
		})
		if err != nil {
			return err
		}
	}

	tb := ingest.NewBatcher(l.sink, txnTable, append([]string{"id"}, txnCols.names...))
	var lb *ingest.Batcher
	if lineTable != "" {
		lb = ingest.NewBatcher(l.sink, lineTable, append([]string{"transaction_id"}, lineCols.names...))
	}

	for _, txn := range txns {
		l.txnSeq++
		id := l.txnSeq

		if err := tb.Push(l.ctx, alignRecord(txn, txnCols.keys, []any{id})); err != nil {
			return err
		}
		if lb == nil {
			continue
		}
		for i := range txn.Children {
			line := &txn.Children[i]
			if line.XMLName.Local != "trLine" {
				continue
			}
			if err := lb.Push(l.ctx, alignRecord(line, lineCols.keys, []any{id})); err != nil {
				return err
			}
		}
	}

	if err := tb.Flush(l.ctx); err != nil {
		return err
	}
	l.stats.Add(ingest.Stats{Rows: tb.Rows()})
	if lb != nil {
		if err := lb.Flush(l.ctx); err != nil {
			return err
		}
		l.stats.Add(ingest.Stats{Rows: lb.Rows()})
	}
	return nil
}

// declare ensures the table exists and fixes its column list, once per
// table name for the whole document.
func (l *loader) declare(table string, derive func() (tableColumns, []storage.Column)) (tableColumns, error) {
	if cols, ok := l.declared[table]; ok {
		return cols, nil
	}
	cols, spec := derive()
	if err := l.sink.EnsureTable(l.ctx, storage.TableSpec{Name: table, Columns: spec}); err != nil {
		return tableColumns{}, err
	}
	l.declared[table] = cols
	l.stats.Add(ingest.Stats{Tables: 1})
	return cols, nil
}

// isPlural reports the repeated-record heuristic: more than one child and
// the first two children share a tag name.
func isPlural(n *node) bool {
	return len(n.Children) > 1 && n.Children[0].XMLName.Local == n.Children[1].XMLName.Local
}

// findAll collects descendants with the given local name, document order,
// namespace ignored.
func findAll(n *node, local string) []*node {
	var out []*node
	for i := range n.Children {
		ch := &n.Children[i]
		if ch.XMLName.Local == local {
			out = append(out, ch)
		}
		out = append(out, findAll(ch, local)...)
	}
	return out
}

// recordColumns derives the column list from one record element. A direct
// child with element children of its own contributes one column per
// grandchild, named child_grandchild; any other child contributes a column
// named after its tag. Children named skip are left out entirely.
func recordColumns(rec *node, skip string) []string {
	var cols []string
	seen := map[string]bool{}
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for i := range rec.Children {
		ch := &rec.Children[i]
		if skip != "" && ch.XMLName.Local == skip {
			continue
		}
		if len(ch.Children) > 0 {
			for j := range ch.Children {
				add(shape.SanitizeIdent(ch.XMLName.Local + "_" + ch.Children[j].XMLName.Local))
			}
			continue
		}
		add(shape.SanitizeIdent(ch.XMLName.Local))
	}
	return cols
}

// recordValues extracts the record's fields under the same naming scheme
// recordColumns uses. Flattening stops at one level: a grandchild with its
// own element children yields the joined text of those children.
func recordValues(rec *node) map[string]any {
	vals := map[string]any{}
	for i := range rec.Children {
		ch := &rec.Children[i]
		if len(ch.Children) > 0 {
			for j := range ch.Children {
				g := &ch.Children[j]
				key := shape.SanitizeIdent(ch.XMLName.Local + "_" + g.XMLName.Local)
				vals[key] = flatValue(g)
			}
			continue
		}
		vals[shape.SanitizeIdent(ch.XMLName.Local)] = coerce.Coerce(coerce.Text(strings.TrimSpace(ch.Content)))
	}
	return vals
}

func flatValue(g *node) any {
	if len(g.Children) == 0 {
		return coerce.Coerce(coerce.Text(strings.TrimSpace(g.Content)))
	}
	parts := make([]coerce.Value, len(g.Children))
	for i := range g.Children {
		parts[i] = coerce.Text(strings.TrimSpace(g.Children[i].Content))
	}
	return coerce.Coerce(coerce.List(parts...))
}

// alignRecord builds an insert row: head values first, then the record's
// fields in fixed key order, nil where the record has no match.
func alignRecord(rec *node, keys []string, head []any) []any {
	vals := recordValues(rec)
	row := make([]any, 0, len(head)+len(keys))
	row = append(row, head...)
	for _, k := range keys {
		row = append(row, vals[k]) // absent key yields nil
	}
	return row
}
