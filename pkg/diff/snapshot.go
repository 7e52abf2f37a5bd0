// Package diff reduces migration-derived schemas and diagram-derived tables
// to order-independent snapshots and reports their structural differences.
package diff

import (
	"strings"

	"github.com/schemaforge/drawio-schema-diff/pkg/drawio"
	"github.com/schemaforge/drawio-schema-diff/pkg/schema"
)

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ForeignKeySummary is the canonical form of a foreign key: normalized
// local columns, referenced table, and referenced columns, in declared
// order.
type ForeignKeySummary struct {
	LocalColumns []string
	RefTable     string
	RefColumns   []string
}

func (f ForeignKeySummary) key() string {
	return strings.Join(f.LocalColumns, ",") + "->" + f.RefTable + "." + strings.Join(f.RefColumns, ",")
}

// IndexSummary is the canonical form of an index: normalized plain-column
// names (expression entries carry no column-level information), uniqueness,
// and normalized partial-index predicate.
type IndexSummary struct {
	Columns []string
	Unique  bool
	Where   string
}

func (ix IndexSummary) key() string {
	u := "-"
	if ix.Unique {
		u = "u"
	}
	return strings.Join(ix.Columns, ",") + "|" + u + "|" + ix.Where
}

// TableSummary holds one table's canonical content. Name keeps the source's
// display casing for reporting; all set members are normalized.
type TableSummary struct {
	Name        string
	Columns     map[string]struct{}
	ForeignKeys map[string]ForeignKeySummary
	Indexes     map[string]IndexSummary
}

func newTableSummary(name string) TableSummary {
	return TableSummary{
		Name:        name,
		Columns:     make(map[string]struct{}),
		ForeignKeys: make(map[string]ForeignKeySummary),
		Indexes:     make(map[string]IndexSummary),
	}
}

func (ts TableSummary) addForeignKey(fk ForeignKeySummary) {
	ts.ForeignKeys[fk.key()] = fk
}

func (ts TableSummary) addIndex(ix IndexSummary) {
	ts.Indexes[ix.key()] = ix
}

// Snapshot maps normalized table names to table summaries. Two snapshots
// compare equal exactly when the schemas they summarize are structurally
// equivalent, regardless of declaration order or duplicates.
type Snapshot struct {
	Tables map[string]TableSummary
}

// FromSchema canonicalizes a migration-derived schema.
func FromSchema(s schema.Schema) Snapshot {
	tables := make(map[string]TableSummary, len(s))
	for name, table := range s {
		ts := newTableSummary(table.Name)
		for _, col := range table.Columns {
			ts.Columns[normalize(col.Name)] = struct{}{}
		}
		for _, fk := range table.ForeignKeys {
			ts.addForeignKey(ForeignKeySummary{
				LocalColumns: normalizeAll(fk.Columns),
				RefTable:     normalize(fk.RefTable),
				RefColumns:   normalizeAll(fk.RefColumns),
			})
		}
		for _, ix := range table.Indexes {
			ts.addIndex(IndexSummary{
				Columns: normalizeAll(ix.ColumnNames()),
				Unique:  ix.Unique,
				Where:   normalize(ix.Where),
			})
		}
		tables[normalize(name)] = ts
	}
	return Snapshot{Tables: tables}
}

// FromDiagram canonicalizes extracted diagram tables. Structured FK and
// index facts come from the note-line grammar; lines matching neither
// grammar are free commentary and are skipped.
func FromDiagram(diagramTables map[string]*drawio.DiagramTable) Snapshot {
	tables := make(map[string]TableSummary, len(diagramTables))
	for _, dt := range diagramTables {
		ts := newTableSummary(dt.Name)
		for _, col := range dt.Columns {
			if col == "" {
				continue
			}
			ts.Columns[normalize(col)] = struct{}{}
		}
		for _, line := range dt.NoteLines {
			if fk, ok := ParseFKNote(line); ok {
				ts.addForeignKey(fk)
				continue
			}
			if ix, ok := ParseIndexNote(line); ok {
				ts.addIndex(ix)
			}
		}
		tables[normalize(dt.Name)] = ts
	}
	return Snapshot{Tables: tables}
}

func normalizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}
