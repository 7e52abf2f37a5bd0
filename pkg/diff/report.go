package diff

import (
	"cmp"
	"slices"
	"sort"
	"strings"
)

// Report section headers, in output order.
const (
	sectionTablesOnlyMigrations = "Tables only in migrations"
	sectionTablesOnlyDrawio     = "Tables only in draw.io"
	sectionColumnsMissing       = "Columns missing in draw.io"
	sectionColumnsExtra         = "Columns only in draw.io"
	sectionFKsMissing           = "Foreign keys missing in draw.io"
	sectionFKsExtra             = "Foreign keys only in draw.io"
	sectionIndexesMissing       = "Indexes missing in draw.io"
	sectionIndexesExtra         = "Indexes only in draw.io"
)

// Report compares a migration-derived snapshot against a diagram-derived
// one and renders the differences. Output is deterministic: every section
// sorts its items, empty sections carry an explicit (none) marker, and the
// report ends without a trailing blank line.
func Report(migration, diagram Snapshot) string {
	var lines []string
	section := func(title string, items []string) {
		lines = append(lines, title)
		if len(items) == 0 {
			lines = append(lines, "  (none)")
		} else {
			for _, item := range items {
				lines = append(lines, "  - "+item)
			}
		}
		lines = append(lines, "")
	}

	migKeys := keySet(migration.Tables)
	diaKeys := keySet(diagram.Tables)
	shared := sortedIntersection(migKeys, diaKeys)

	section(sectionTablesOnlyMigrations, tableNames(migration.Tables, sortedDifference(migKeys, diaKeys)))
	section(sectionTablesOnlyDrawio, tableNames(diagram.Tables, sortedDifference(diaKeys, migKeys)))

	var missingColumns, extraColumns []string
	for _, key := range shared {
		mig := migration.Tables[key]
		dia := diagram.Tables[key]
		if missing := columnDifference(mig.Columns, dia.Columns); len(missing) > 0 {
			missingColumns = append(missingColumns, mig.Name+": "+strings.Join(missing, ", "))
		}
		if extra := columnDifference(dia.Columns, mig.Columns); len(extra) > 0 {
			extraColumns = append(extraColumns, mig.Name+": "+strings.Join(extra, ", "))
		}
	}
	section(sectionColumnsMissing, missingColumns)
	section(sectionColumnsExtra, extraColumns)

	var missingFKs, extraFKs []string
	for _, key := range shared {
		mig := migration.Tables[key]
		dia := diagram.Tables[key]
		for _, fk := range sortedFKs(fkDifference(mig.ForeignKeys, dia.ForeignKeys)) {
			missingFKs = append(missingFKs, formatFK(mig.Name, fk))
		}
		for _, fk := range sortedFKs(fkDifference(dia.ForeignKeys, mig.ForeignKeys)) {
			extraFKs = append(extraFKs, formatFK(dia.Name, fk))
		}
	}
	section(sectionFKsMissing, missingFKs)
	section(sectionFKsExtra, extraFKs)

	var missingIndexes, extraIndexes []string
	for _, key := range shared {
		mig := migration.Tables[key]
		dia := diagram.Tables[key]
		for _, ix := range sortedIndexes(indexDifference(mig.Indexes, dia.Indexes)) {
			missingIndexes = append(missingIndexes, formatIndex(mig.Name, ix))
		}
		for _, ix := range sortedIndexes(indexDifference(dia.Indexes, mig.Indexes)) {
			extraIndexes = append(extraIndexes, formatIndex(dia.Name, ix))
		}
	}
	section(sectionIndexesMissing, missingIndexes)
	section(sectionIndexesExtra, extraIndexes)

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

func keySet(tables map[string]TableSummary) map[string]struct{} {
	keys := make(map[string]struct{}, len(tables))
	for key := range tables {
		keys[key] = struct{}{}
	}
	return keys
}

func sortedDifference(a, b map[string]struct{}) []string {
	var out []string
	for key := range a {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func sortedIntersection(a, b map[string]struct{}) []string {
	var out []string
	for key := range a {
		if _, ok := b[key]; ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func tableNames(tables map[string]TableSummary, keys []string) []string {
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = tables[key].Name
	}
	return names
}

func columnDifference(a, b map[string]struct{}) []string {
	var out []string
	for col := range a {
		if _, ok := b[col]; !ok {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

func fkDifference(a, b map[string]ForeignKeySummary) []ForeignKeySummary {
	var out []ForeignKeySummary
	for key, fk := range a {
		if _, ok := b[key]; !ok {
			out = append(out, fk)
		}
	}
	return out
}

func indexDifference(a, b map[string]IndexSummary) []IndexSummary {
	var out []IndexSummary
	for key, ix := range a {
		if _, ok := b[key]; !ok {
			out = append(out, ix)
		}
	}
	return out
}

// sortedFKs orders summaries by (ref_table, local_columns, ref_columns).
// Every field of the set key takes part in the ordering, so summaries that
// collide on the leading fields still render in a stable order.
func sortedFKs(fks []ForeignKeySummary) []ForeignKeySummary {
	slices.SortFunc(fks, func(a, b ForeignKeySummary) int {
		if c := cmp.Compare(a.RefTable, b.RefTable); c != 0 {
			return c
		}
		if c := slices.Compare(a.LocalColumns, b.LocalColumns); c != 0 {
			return c
		}
		return slices.Compare(a.RefColumns, b.RefColumns)
	})
	return fks
}

// sortedIndexes orders summaries by (columns, unique, where).
func sortedIndexes(ixs []IndexSummary) []IndexSummary {
	slices.SortFunc(ixs, func(a, b IndexSummary) int {
		if c := slices.Compare(a.Columns, b.Columns); c != 0 {
			return c
		}
		if a.Unique != b.Unique {
			if b.Unique {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Where, b.Where)
	})
	return ixs
}

func formatColumnList(columns []string) string {
	ordered := slices.Clone(columns)
	sort.Strings(ordered)
	return strings.Join(ordered, ", ")
}

func formatFK(tableName string, fk ForeignKeySummary) string {
	local := formatColumnList(fk.LocalColumns)
	if local == "" {
		local = "<none>"
	}
	target := fk.RefTable
	if target == "" {
		target = "<unknown>"
	}
	if refCols := formatColumnList(fk.RefColumns); refCols != "" {
		target += "." + refCols
	}
	return tableName + ": (" + local + ") -> " + target
}

func formatIndex(tableName string, ix IndexSummary) string {
	prefix := ""
	if ix.Unique {
		prefix = "Unique "
	}
	cols := formatColumnList(ix.Columns)
	if cols == "" {
		cols = "<none>"
	}
	text := tableName + ": " + prefix + "index on [" + cols + "]"
	if ix.Where != "" {
		text += " where " + ix.Where
	}
	return text
}
