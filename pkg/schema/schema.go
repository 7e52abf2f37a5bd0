// Package schema provides the in-memory model for a relational schema
// reconstructed from migration files or a diagram.
package schema

import "strings"

// Constraint kinds tracked in a table's constraint registry.
const (
	ConstraintPrimaryKey = "primary_key"
	ConstraintForeignKey = "foreign_key"
	ConstraintUnique     = "unique"
)

// Column represents a single table column.
type Column struct {
	Name       string
	Type       string // declared type, kept as an opaque string
	Nullable   bool
	PrimaryKey bool // derived from the table's primary-key set
}

// ForeignKey links an ordered set of local columns to columns of another
// table. Local and referenced column lists are positional and parallel.
type ForeignKey struct {
	Name       string // normalized constraint name, empty if unnamed
	Columns    []string
	RefTable   string
	RefColumns []string
}

// IndexEntry is one indexed item: either a plain column name or an opaque
// expression. Exactly one field is set.
type IndexEntry struct {
	Column string
	Expr   string
}

// Index represents a secondary index attached to a table.
type Index struct {
	Name    string
	Entries []IndexEntry
	Unique  bool
	Method  string // optional USING method
	Where   string // optional partial-index predicate
}

// ColumnNames returns the plain-column entries of the index, skipping
// expression entries.
func (ix *Index) ColumnNames() []string {
	var names []string
	for _, e := range ix.Entries {
		if e.Column != "" {
			names = append(names, e.Column)
		}
	}
	return names
}

// Table represents a single table. Columns keep insertion order; lookups are
// case-insensitive. Constraints is a registry from normalized constraint
// name to constraint kind, used to resolve DROP/RENAME CONSTRAINT without
// re-deriving the kind from shape.
type Table struct {
	Name           string
	Columns        []*Column
	PrimaryKey     map[string]struct{}
	PrimaryKeyName string
	ForeignKeys    []*ForeignKey
	Indexes        []*Index
	Constraints    map[string]string
}

// NewTable creates an empty table with the given (already normalized) name.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		PrimaryKey:  make(map[string]struct{}),
		Constraints: make(map[string]string),
	}
}

// Reset clears every column, key, index and registry entry while keeping the
// table identity. CREATE TABLE re-declares a table from scratch.
func (t *Table) Reset() {
	t.Columns = nil
	t.PrimaryKey = make(map[string]struct{})
	t.PrimaryKeyName = ""
	t.ForeignKeys = nil
	t.Indexes = nil
	t.Constraints = make(map[string]string)
}

// GetColumn returns the column with the given name, matched
// case-insensitively, or nil.
func (t *Table) GetColumn(name string) *Column {
	target := strings.ToLower(name)
	for _, c := range t.Columns {
		if strings.ToLower(c.Name) == target {
			return c
		}
	}
	return nil
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	return t.GetColumn(name) != nil
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RegisterConstraint records a named constraint in the registry and returns
// the normalized key it was stored under.
func (t *Table) RegisterConstraint(name, kind string) string {
	key := strings.ToLower(name)
	t.Constraints[key] = kind
	return key
}

// AddColumn adds a column or, if a column of the same name exists, updates
// it in place. An inline PRIMARY KEY marker joins the primary-key set.
func (t *Table) AddColumn(col *Column) {
	if existing := t.GetColumn(col.Name); existing != nil {
		existing.Type = col.Type
		existing.Nullable = col.Nullable
		existing.PrimaryKey = col.PrimaryKey
	} else {
		t.Columns = append(t.Columns, col)
	}
	if col.PrimaryKey {
		t.PrimaryKey[col.Name] = struct{}{}
	}
	t.SyncPrimaryKeyFlags()
}

// SetPrimaryKey replaces the table's primary-key column set. A named PK
// constraint supersedes any previously registered one.
func (t *Table) SetPrimaryKey(columns []string, constraintName string) {
	t.PrimaryKey = make(map[string]struct{}, len(columns))
	for _, c := range columns {
		t.PrimaryKey[c] = struct{}{}
	}
	if constraintName != "" {
		key := t.RegisterConstraint(constraintName, ConstraintPrimaryKey)
		if t.PrimaryKeyName != "" && t.PrimaryKeyName != key {
			delete(t.Constraints, t.PrimaryKeyName)
		}
		t.PrimaryKeyName = key
	}
	t.SyncPrimaryKeyFlags()
}

// AddForeignKey appends a foreign key, registering its constraint name when
// one is present.
func (t *Table) AddForeignKey(fk *ForeignKey, constraintName string) {
	if constraintName != "" {
		fk.Name = t.RegisterConstraint(constraintName, ConstraintForeignKey)
	} else if fk.Name != "" {
		fk.Name = strings.ToLower(fk.Name)
		t.Constraints[fk.Name] = ConstraintForeignKey
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
}

// AddIndex attaches an index, replacing any index of the same name.
func (t *Table) AddIndex(ix *Index) {
	if ix.Name != "" {
		for i, existing := range t.Indexes {
			if existing.Name == ix.Name {
				t.Indexes[i] = ix
				return
			}
		}
	}
	t.Indexes = append(t.Indexes, ix)
}

// GetIndex returns the index with the given normalized name, or nil.
func (t *Table) GetIndex(name string) *Index {
	for _, ix := range t.Indexes {
		if ix.Name == name {
			return ix
		}
	}
	return nil
}

// DropIndex removes the named index. It reports whether an index was found.
func (t *Table) DropIndex(name string) bool {
	for i, ix := range t.Indexes {
		if ix.Name == name {
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			return true
		}
	}
	return false
}

// DropColumn removes a column along with its primary-key membership, any
// foreign key using it locally, and the registry entries of those keys.
func (t *Table) DropColumn(name string) {
	target := strings.ToLower(name)
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if strings.ToLower(c.Name) != target {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	for pk := range t.PrimaryKey {
		if strings.ToLower(pk) == target {
			delete(t.PrimaryKey, pk)
		}
	}
	keptFKs := t.ForeignKeys[:0]
	for _, fk := range t.ForeignKeys {
		if fkUsesColumn(fk, target) {
			if fk.Name != "" {
				delete(t.Constraints, fk.Name)
			}
			continue
		}
		keptFKs = append(keptFKs, fk)
	}
	t.ForeignKeys = keptFKs
	if t.PrimaryKeyName != "" {
		if _, ok := t.Constraints[t.PrimaryKeyName]; !ok {
			t.PrimaryKeyName = ""
		}
	}
	t.SyncPrimaryKeyFlags()
}

func fkUsesColumn(fk *ForeignKey, lowered string) bool {
	for _, c := range fk.Columns {
		if strings.ToLower(c) == lowered {
			return true
		}
	}
	return false
}

// SetNullable updates a column's nullability; unknown columns are ignored.
func (t *Table) SetNullable(name string, nullable bool) {
	if col := t.GetColumn(name); col != nil {
		col.Nullable = nullable
	}
}

// SetType updates a column's declared type; unknown columns are ignored.
func (t *Table) SetType(name, dataType string) {
	if col := t.GetColumn(name); col != nil && dataType != "" {
		col.Type = strings.TrimSpace(dataType)
	}
}

// DropConstraint removes the named constraint. Dropping a name absent from
// the registry is a no-op.
func (t *Table) DropConstraint(name string) {
	key := strings.ToLower(name)
	kind, ok := t.Constraints[key]
	if !ok {
		return
	}
	delete(t.Constraints, key)
	switch kind {
	case ConstraintPrimaryKey:
		t.PrimaryKey = make(map[string]struct{})
		t.PrimaryKeyName = ""
		t.SyncPrimaryKeyFlags()
	case ConstraintForeignKey:
		kept := t.ForeignKeys[:0]
		for _, fk := range t.ForeignKeys {
			if fk.Name != key {
				kept = append(kept, fk)
			}
		}
		t.ForeignKeys = kept
	case ConstraintUnique:
		// Unique constraints are backed by a unique index of the same name.
		t.DropIndex(key)
	}
}

// RenameConstraint moves a registry entry to a new name, following the
// entry into the structure it names. Unknown old names are a no-op.
func (t *Table) RenameConstraint(oldName, newName string) {
	oldKey := strings.ToLower(oldName)
	kind, ok := t.Constraints[oldKey]
	if !ok {
		return
	}
	delete(t.Constraints, oldKey)
	newKey := strings.ToLower(newName)
	t.Constraints[newKey] = kind
	switch kind {
	case ConstraintPrimaryKey:
		t.PrimaryKeyName = newKey
	case ConstraintForeignKey:
		for _, fk := range t.ForeignKeys {
			if fk.Name == oldKey {
				fk.Name = newKey
				break
			}
		}
	case ConstraintUnique:
		if ix := t.GetIndex(oldKey); ix != nil {
			ix.Name = newKey
		}
	}
}

// RenameColumn rewrites one column name everywhere it appears inside this
// table: the column list, the primary-key set, FK local columns, and FK
// referenced columns when the table references itself. Cross-table
// propagation is handled by Schema.RenameColumn.
func (t *Table) RenameColumn(oldName, newName string) {
	oldKey := strings.ToLower(oldName)
	for _, c := range t.Columns {
		if strings.ToLower(c.Name) == oldKey {
			c.Name = newName
		}
	}
	updated := make(map[string]struct{}, len(t.PrimaryKey))
	for pk := range t.PrimaryKey {
		if strings.ToLower(pk) == oldKey {
			updated[newName] = struct{}{}
		} else {
			updated[pk] = struct{}{}
		}
	}
	t.PrimaryKey = updated
	for _, fk := range t.ForeignKeys {
		renameInList(fk.Columns, oldKey, newName)
		if fk.RefTable == t.Name {
			renameInList(fk.RefColumns, oldKey, newName)
		}
	}
	t.SyncPrimaryKeyFlags()
}

func renameInList(list []string, oldKey, newName string) {
	for i, c := range list {
		if strings.ToLower(c) == oldKey {
			list[i] = newName
		}
	}
}

// SyncPrimaryKeyFlags aligns every column's PrimaryKey flag with the
// table-level primary-key set. The set is authoritative, the flag derived.
func (t *Table) SyncPrimaryKeyFlags() {
	pk := make(map[string]struct{}, len(t.PrimaryKey))
	for name := range t.PrimaryKey {
		pk[strings.ToLower(name)] = struct{}{}
	}
	for _, c := range t.Columns {
		_, ok := pk[strings.ToLower(c.Name)]
		c.PrimaryKey = ok
	}
}

// Schema maps normalized table names to tables. Cross-references between
// tables are held by name, never by pointer, so that renames only rewrite
// name strings.
type Schema map[string]*Table

// Get looks up a table by its normalized name.
func (s Schema) Get(name string) *Table {
	return s[name]
}

// GetOrCreate returns the named table, creating an empty one on first
// reference (tolerant mode: ALTER TABLE or CREATE INDEX may arrive before
// the CREATE TABLE in a partial migration set).
func (s Schema) GetOrCreate(name string) *Table {
	if t, ok := s[name]; ok {
		return t
	}
	t := NewTable(name)
	s[name] = t
	return t
}

// RenameTable rekeys a table and rewrites every foreign key in the schema
// whose ref_table pointed at the old name, including self-references.
func (s Schema) RenameTable(oldName, newName string) {
	t, ok := s[oldName]
	if !ok {
		return
	}
	delete(s, oldName)
	t.Name = newName
	s[newName] = t
	for _, table := range s {
		for _, fk := range table.ForeignKeys {
			if fk.RefTable == oldName {
				fk.RefTable = newName
			}
		}
	}
}

// RenameColumn renames a column on the named table and rewrites every other
// table's foreign keys that reference the renamed column.
func (s Schema) RenameColumn(tableName, oldName, newName string) {
	t, ok := s[tableName]
	if !ok {
		return
	}
	t.RenameColumn(oldName, newName)
	oldKey := strings.ToLower(oldName)
	for _, other := range s {
		if other.Name == tableName {
			continue
		}
		for _, fk := range other.ForeignKeys {
			if fk.RefTable == tableName {
				renameInList(fk.RefColumns, oldKey, newName)
			}
		}
	}
}

// DropTable removes a table and strips every remaining foreign key that
// referenced it, along with those keys' registry entries.
func (s Schema) DropTable(name string) {
	if _, ok := s[name]; !ok {
		return
	}
	delete(s, name)
	for _, table := range s {
		kept := table.ForeignKeys[:0]
		for _, fk := range table.ForeignKeys {
			if fk.RefTable == name {
				if fk.Name != "" {
					delete(table.Constraints, fk.Name)
				}
				continue
			}
			kept = append(kept, fk)
		}
		table.ForeignKeys = kept
	}
}

// FindIndexOwner scans all tables for one owning an index of the given
// normalized name. ALTER INDEX addresses indexes without naming a table.
func (s Schema) FindIndexOwner(indexName string) *Table {
	for _, table := range s {
		if table.GetIndex(indexName) != nil {
			return table
		}
	}
	return nil
}
