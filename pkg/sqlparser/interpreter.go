// Package sqlparser replays a stream of DDL statements against a mutable
// schema model. It understands the subset of Postgres-flavored DDL that
// migration files typically carry; anything else degrades to a recorded
// failure without aborting the batch.
package sqlparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schemaforge/drawio-schema-diff/pkg/schema"
)

const snippetLimit = 120

const ident = `"[^"]+"|[a-zA-Z_][\w.]*`

var (
	createTableRe = regexp.MustCompile(`(?is)^CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + ident + `)\s*\((.*)\)`)
	dropTableRe   = regexp.MustCompile(`(?is)^DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?(` + ident + `)(?:\s+(?:CASCADE|RESTRICT))?\s*$`)
	alterTableRe  = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?(?:ONLY\s+)?(` + ident + `)\s+(.*)$`)

	createIndexRe = regexp.MustCompile(`(?is)^CREATE\s+(UNIQUE\s+)?INDEX\s+(?:CONCURRENTLY\s+)?(?:IF\s+NOT\s+EXISTS\s+)?(?:(` + ident + `)\s+)?ON\s+(?:ONLY\s+)?(` + ident + `)(?:\s+USING\s+([a-zA-Z_]\w*))?\s*\((.*)\)\s*$`)
	dropIndexRe   = regexp.MustCompile(`(?is)^DROP\s+INDEX\s+(?:CONCURRENTLY\s+)?(?:IF\s+EXISTS\s+)?(.+?)(?:\s+(?:CASCADE|RESTRICT))?\s*$`)
	alterIndexRe  = regexp.MustCompile(`(?is)^ALTER\s+INDEX\s+(?:IF\s+EXISTS\s+)?(` + ident + `)\s+RENAME\s+TO\s+("[^"]+"|[a-zA-Z_]\w*)\s*$`)

	constraintNameRe = regexp.MustCompile(`(?is)^CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+(.*)$`)
	primaryKeyRe     = regexp.MustCompile(`(?is)PRIMARY\s+KEY\s*\(([^)]+)\)`)
	tableForeignRe   = regexp.MustCompile(`(?is)FOREIGN\s+KEY\s*\(([^)]+)\)\s*REFERENCES\s+(` + ident + `)\s*\(([^)]+)\)`)
	tableUniqueRe    = regexp.MustCompile(`(?is)^UNIQUE\s*\(([^)]+)\)`)
	inlineForeignRe  = regexp.MustCompile(`(?is)(?:CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+)?REFERENCES\s+(` + ident + `)\s*\(([^)]+)\)`)
	inlinePrimaryRe  = regexp.MustCompile(`(?is)(?:CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+)?PRIMARY\s+KEY`)
	inlineUniqueRe   = regexp.MustCompile(`(?is)(?:CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+)?UNIQUE\b`)
	columnDefRe      = regexp.MustCompile(`(?s)^("[^"]+"|[a-zA-Z_]\w*)\s+(.*)$`)

	addColumnRe        = regexp.MustCompile(`(?is)^ADD\s+COLUMN\s+(?:IF\s+NOT\s+EXISTS\s+)?(.+)$`)
	dropColumnRe       = regexp.MustCompile(`(?is)^DROP\s+COLUMN\s+(?:IF\s+EXISTS\s+)?("[^"]+"|[a-zA-Z_]\w*)(?:\s+(?:CASCADE|RESTRICT))?\s*$`)
	setNotNullRe       = regexp.MustCompile(`(?is)^ALTER\s+COLUMN\s+("[^"]+"|[a-zA-Z_]\w*)\s+SET\s+NOT\s+NULL\s*$`)
	dropNotNullRe      = regexp.MustCompile(`(?is)^ALTER\s+COLUMN\s+("[^"]+"|[a-zA-Z_]\w*)\s+DROP\s+NOT\s+NULL\s*$`)
	alterTypeRe        = regexp.MustCompile(`(?is)^ALTER\s+COLUMN\s+("[^"]+"|[a-zA-Z_]\w*)\s+(?:SET\s+DATA\s+)?TYPE\s+(.+)$`)
	addConstraintRe    = regexp.MustCompile(`(?is)^ADD\s+CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+(.+)$`)
	dropConstraintRe   = regexp.MustCompile(`(?is)^DROP\s+CONSTRAINT\s+(?:IF\s+EXISTS\s+)?("[^"]+"|[a-zA-Z_]\w*)(?:\s+(?:CASCADE|RESTRICT))?\s*$`)
	renameConstraintRe = regexp.MustCompile(`(?is)^RENAME\s+CONSTRAINT\s+("[^"]+"|[a-zA-Z_]\w*)\s+TO\s+("[^"]+"|[a-zA-Z_]\w*)\s*$`)
	renameColumnRe     = regexp.MustCompile(`(?is)^RENAME\s+COLUMN\s+("[^"]+"|[a-zA-Z_]\w*)\s+TO\s+("[^"]+"|[a-zA-Z_]\w*)\s*$`)
	renameTableRe      = regexp.MustCompile(`(?is)^RENAME\s+TO\s+(` + ident + `)\s*$`)

	// Fallback for RENAME CONSTRAINT statements whose table reference the
	// strict ALTER TABLE grammar rejects (mixed quoting and the like).
	fallbackRenameConstraintRe = regexp.MustCompile(`(?is)ALTER\s+TABLE\s+\S+\s+RENAME\s+CONSTRAINT\s+("[^"]+"|[\w$]+)\s+TO\s+("[^"]+"|[\w$]+)`)

	indexOrderSuffixRe = regexp.MustCompile(`(?i)\s+(?:ASC|DESC|NULLS\s+(?:FIRST|LAST))\s*$`)
	bareIdentRe        = regexp.MustCompile(`^("[^"]+"|[a-zA-Z_]\w*)$`)
)

// Stop words terminating a column's type token run in a column definition.
var typeStopWords = map[string]struct{}{
	"PRIMARY": {}, "REFERENCES": {}, "NOT": {}, "NULL": {}, "DEFAULT": {},
	"UNIQUE": {}, "CHECK": {}, "CONSTRAINT": {}, "GENERATED": {}, "AS": {},
}

// Harmless statement prefixes: recognized, semantically irrelevant to the
// schema model, skipped without recording a failure.
var harmlessPrefixes = []string{
	"CREATE EXTENSION", "CREATE SEQUENCE", "CREATE TYPE", "CREATE VIEW",
	"CREATE OR REPLACE", "CREATE FUNCTION", "CREATE TRIGGER", "CREATE SCHEMA",
	"CREATE MATERIALIZED", "CREATE POLICY", "CREATE ROLE", "CREATE USER",
	"ALTER SEQUENCE", "ALTER TYPE", "ALTER FUNCTION", "ALTER SCHEMA",
	"DROP SEQUENCE", "DROP TYPE", "DROP VIEW", "DROP FUNCTION", "DROP TRIGGER",
	"DROP EXTENSION", "DROP POLICY",
	"INSERT", "UPDATE", "DELETE", "SELECT", "TRUNCATE",
	"BEGIN", "COMMIT", "ROLLBACK", "SET", "RESET", "DO",
	"GRANT", "REVOKE", "COMMENT", "ANALYZE", "VACUUM", "REINDEX",
}

// Failure records one statement the interpreter could not apply.
type Failure struct {
	File    string // source file path, empty for raw SQL input
	Stmt    int    // 1-based statement ordinal within the file
	Snippet string // truncated statement text
	Reason  string
}

func (f Failure) String() string {
	loc := f.File
	if loc == "" {
		loc = "<input>"
	}
	return fmt.Sprintf("%s: statement %d: %s: %q", loc, f.Stmt, f.Reason, f.Snippet)
}

// Result is the outcome of a replay: the accumulated schema plus every
// statement that matched no supported form. Failures are data, not errors;
// callers decide whether to escalate.
type Result struct {
	Schema   schema.Schema
	Failures []Failure
}

// Interpreter replays DDL statements in order against an owned schema.
// It is not safe for concurrent use: statement order is semantically
// significant and later statements must observe earlier mutations.
type Interpreter struct {
	schema   schema.Schema
	failures []Failure
}

// NewInterpreter returns an interpreter with an empty schema.
func NewInterpreter() *Interpreter {
	return &Interpreter{schema: make(schema.Schema)}
}

// Result returns the schema and failure list accumulated so far.
func (in *Interpreter) Result() Result {
	for _, t := range in.schema {
		t.SyncPrimaryKeyFlags()
	}
	return Result{Schema: in.schema, Failures: in.failures}
}

// Apply replays every statement in the given SQL text, in order. source is
// used only to label failures.
func (in *Interpreter) Apply(source, sql string) {
	sql = StripComments(sql)
	for i, stmt := range SplitStatements(sql) {
		in.applyStatement(source, i+1, stmt)
	}
}

// FromSQL replays a single SQL text into a fresh schema.
func FromSQL(sql string) Result {
	in := NewInterpreter()
	in.Apply("", sql)
	return in.Result()
}

// statementKind is the closed set of statement variants the interpreter
// dispatches on. Unrecognized is explicit rather than a silent fallthrough.
type statementKind int

const (
	stmtCreateTable statementKind = iota
	stmtAlterTable
	stmtDropTable
	stmtCreateIndex
	stmtDropIndex
	stmtAlterIndex
	stmtHarmless
	stmtUnrecognized
)

func classify(stmt string) statementKind {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	fields := strings.Fields(upper)
	head := strings.Join(fields, " ")
	switch {
	case strings.HasPrefix(head, "CREATE TABLE"):
		return stmtCreateTable
	case strings.HasPrefix(head, "ALTER TABLE"):
		return stmtAlterTable
	case strings.HasPrefix(head, "DROP TABLE"):
		return stmtDropTable
	case strings.HasPrefix(head, "CREATE INDEX"), strings.HasPrefix(head, "CREATE UNIQUE INDEX"):
		return stmtCreateIndex
	case strings.HasPrefix(head, "DROP INDEX"):
		return stmtDropIndex
	case strings.HasPrefix(head, "ALTER INDEX"):
		return stmtAlterIndex
	}
	for _, prefix := range harmlessPrefixes {
		if head == prefix || strings.HasPrefix(head, prefix+" ") {
			return stmtHarmless
		}
	}
	return stmtUnrecognized
}

func (in *Interpreter) applyStatement(source string, ordinal int, stmt string) {
	switch classify(stmt) {
	case stmtCreateTable:
		if !in.createTable(stmt) {
			in.fail(source, ordinal, stmt, "unparseable CREATE TABLE")
		}
	case stmtAlterTable:
		if !in.alterTable(stmt) {
			in.fail(source, ordinal, stmt, "unparseable ALTER TABLE")
		}
	case stmtDropTable:
		if !in.dropTable(stmt) {
			in.fail(source, ordinal, stmt, "unparseable DROP TABLE")
		}
	case stmtCreateIndex:
		if !in.createIndex(stmt) {
			in.fail(source, ordinal, stmt, "unparseable CREATE INDEX")
		}
	case stmtDropIndex:
		if !in.dropIndex(stmt) {
			in.fail(source, ordinal, stmt, "unparseable DROP INDEX")
		}
	case stmtAlterIndex:
		// Only RENAME TO mutates the model; other ALTER INDEX forms
		// (SET, RESET, tablespace moves) carry no schema information.
		in.alterIndex(stmt)
	case stmtHarmless:
	case stmtUnrecognized:
		if in.renameConstraintFallback(stmt) {
			return
		}
		in.fail(source, ordinal, stmt, "unsupported statement")
	}
}

func (in *Interpreter) fail(source string, ordinal int, stmt, reason string) {
	snippet := strings.Join(strings.Fields(stmt), " ")
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit] + "..."
	}
	in.failures = append(in.failures, Failure{
		File:    source,
		Stmt:    ordinal,
		Snippet: snippet,
		Reason:  reason,
	})
}

// createTable re-declares a table from scratch: the body is ingested in two
// passes, columns first, so table-level PRIMARY KEY / FOREIGN KEY clauses
// can reference columns already known.
func (in *Interpreter) createTable(stmt string) bool {
	m := createTableRe.FindStringSubmatch(stmt)
	if m == nil {
		return false
	}
	name := NormalizeIdentifier(m[1])
	table := in.schema.GetOrCreate(name)
	table.Reset()

	items := SplitTopLevelCommas(m[2])
	for _, item := range items {
		parseColumnDefinition(item, table)
	}
	for _, item := range items {
		parseTableConstraint(item, table)
	}
	table.SyncPrimaryKeyFlags()
	return true
}

func (in *Interpreter) dropTable(stmt string) bool {
	m := dropTableRe.FindStringSubmatch(stmt)
	if m == nil {
		return false
	}
	in.schema.DropTable(NormalizeIdentifier(m[1]))
	return true
}

// alterTable applies the statement's actions left to right against a current
// table handle. A RENAME TO action retargets the handle for the remaining
// actions of the same statement.
func (in *Interpreter) alterTable(stmt string) bool {
	m := alterTableRe.FindStringSubmatch(stmt)
	if m == nil {
		return in.renameConstraintFallback(stmt)
	}
	tableName := NormalizeIdentifier(m[1])
	table := in.schema.GetOrCreate(tableName)

	actionsRaw := strings.TrimSpace(m[2])
	actions := SplitTopLevelCommas(actionsRaw)
	if len(actions) == 0 {
		actions = []string{actionsRaw}
	}

	ok := true
	for _, action := range actions {
		newName, matched := in.applyAlterAction(action, table)
		if !matched {
			ok = false
			continue
		}
		if newName != "" {
			table = in.schema.GetOrCreate(newName)
		}
	}
	table.SyncPrimaryKeyFlags()
	return ok
}

// applyAlterAction applies one ALTER TABLE action. It returns the new table
// name when the action renamed the table, and whether the action matched a
// supported form.
func (in *Interpreter) applyAlterAction(action string, table *schema.Table) (string, bool) {
	action = strings.TrimSpace(action)
	if action == "" {
		return "", true
	}

	if m := addColumnRe.FindStringSubmatch(action); m != nil {
		parseColumnDefinition(strings.TrimSpace(m[1]), table)
		return "", true
	}
	if m := dropColumnRe.FindStringSubmatch(action); m != nil {
		table.DropColumn(NormalizeIdentifier(m[1]))
		return "", true
	}
	if m := setNotNullRe.FindStringSubmatch(action); m != nil {
		table.SetNullable(NormalizeIdentifier(m[1]), false)
		return "", true
	}
	if m := dropNotNullRe.FindStringSubmatch(action); m != nil {
		table.SetNullable(NormalizeIdentifier(m[1]), true)
		return "", true
	}
	if m := alterTypeRe.FindStringSubmatch(action); m != nil {
		typeDef := strings.TrimSpace(m[2])
		// A USING conversion expression is not part of the type.
		if idx := strings.Index(strings.ToUpper(typeDef), " USING "); idx >= 0 {
			typeDef = strings.TrimSpace(typeDef[:idx])
		}
		table.SetType(NormalizeIdentifier(m[1]), typeDef)
		return "", true
	}
	if m := addConstraintRe.FindStringSubmatch(action); m != nil {
		name := NormalizeIdentifier(m[1])
		parseTableConstraint("CONSTRAINT "+name+" "+strings.TrimSpace(m[2]), table)
		table.SyncPrimaryKeyFlags()
		return "", true
	}
	upper := strings.ToUpper(action)
	if strings.HasPrefix(upper, "ADD PRIMARY KEY") ||
		strings.HasPrefix(upper, "ADD FOREIGN KEY") ||
		strings.HasPrefix(upper, "ADD UNIQUE") {
		parseTableConstraint(strings.TrimSpace(action[len("ADD "):]), table)
		table.SyncPrimaryKeyFlags()
		return "", true
	}
	if m := dropConstraintRe.FindStringSubmatch(action); m != nil {
		table.DropConstraint(NormalizeIdentifier(m[1]))
		return "", true
	}
	if m := renameConstraintRe.FindStringSubmatch(action); m != nil {
		table.RenameConstraint(NormalizeIdentifier(m[1]), NormalizeIdentifier(m[2]))
		return "", true
	}
	if m := renameColumnRe.FindStringSubmatch(action); m != nil {
		in.schema.RenameColumn(table.Name, NormalizeIdentifier(m[1]), NormalizeIdentifier(m[2]))
		return "", true
	}
	if m := renameTableRe.FindStringSubmatch(action); m != nil {
		newName := NormalizeIdentifier(m[1])
		if newName != table.Name {
			in.schema.RenameTable(table.Name, newName)
			return newName, true
		}
		return "", true
	}
	return "", false
}

func (in *Interpreter) renameConstraintFallback(stmt string) bool {
	m := fallbackRenameConstraintRe.FindStringSubmatch(stmt)
	if m == nil {
		return false
	}
	oldName := NormalizeIdentifier(m[1])
	newName := NormalizeIdentifier(m[2])
	for _, table := range in.schema {
		if _, ok := table.Constraints[oldName]; ok {
			table.RenameConstraint(oldName, newName)
			return true
		}
	}
	// Known form, unknown constraint: still handled, and a no-op.
	return true
}

func (in *Interpreter) createIndex(stmt string) bool {
	head, where := cutTopLevelKeyword(stmt, "WHERE")
	m := createIndexRe.FindStringSubmatch(head)
	if m == nil {
		return false
	}
	ix := &schema.Index{
		Unique: strings.TrimSpace(m[1]) != "",
		Method: strings.ToLower(strings.TrimSpace(m[4])),
		Where:  strings.TrimSpace(where),
	}
	if m[2] != "" {
		ix.Name = NormalizeIdentifier(m[2])
	}
	for _, entry := range SplitTopLevelCommas(m[5]) {
		ix.Entries = append(ix.Entries, parseIndexEntry(entry))
	}
	table := in.schema.GetOrCreate(NormalizeIdentifier(m[3]))
	table.AddIndex(ix)
	return true
}

// parseIndexEntry classifies one indexed item as a plain column or an opaque
// expression, after stripping ordering suffixes.
func parseIndexEntry(entry string) schema.IndexEntry {
	trimmed := strings.TrimSpace(entry)
	for {
		next := indexOrderSuffixRe.ReplaceAllString(trimmed, "")
		if next == trimmed {
			break
		}
		trimmed = next
	}
	if bareIdentRe.MatchString(trimmed) {
		return schema.IndexEntry{Column: NormalizeIdentifier(trimmed)}
	}
	return schema.IndexEntry{Expr: trimmed}
}

func (in *Interpreter) dropIndex(stmt string) bool {
	m := dropIndexRe.FindStringSubmatch(stmt)
	if m == nil {
		return false
	}
	for _, name := range SplitIdentifierList(m[1]) {
		if owner := in.schema.FindIndexOwner(name); owner != nil {
			owner.DropIndex(name)
		}
	}
	return true
}

// alterIndex handles ALTER INDEX ... RENAME TO. The index namespace is not
// scoped to a table on the input surface, so the owner is found by scanning.
func (in *Interpreter) alterIndex(stmt string) {
	m := alterIndexRe.FindStringSubmatch(stmt)
	if m == nil {
		return
	}
	oldName := NormalizeIdentifier(m[1])
	owner := in.schema.FindIndexOwner(oldName)
	if owner == nil {
		return
	}
	newName := NormalizeIdentifier(m[2])
	if ix := owner.GetIndex(oldName); ix != nil {
		ix.Name = newName
		if kind, ok := owner.Constraints[oldName]; ok && kind == schema.ConstraintUnique {
			delete(owner.Constraints, oldName)
			owner.Constraints[newName] = kind
		}
	}
}

// parseColumnDefinition ingests one column item from a CREATE TABLE body or
// an ADD COLUMN action. Inline PRIMARY KEY / REFERENCES / UNIQUE markers are
// materialized through the same table methods as their table-level forms.
func parseColumnDefinition(item string, table *schema.Table) {
	item = strings.TrimSpace(item)
	if item == "" || isTableConstraintItem(item) {
		return
	}
	m := columnDefRe.FindStringSubmatch(item)
	if m == nil {
		return
	}
	rest := strings.TrimSpace(m[2])
	upperRest := strings.ToUpper(rest)

	col := &schema.Column{
		Name:       NormalizeIdentifier(m[1]),
		Type:       columnType(rest),
		Nullable:   !strings.Contains(upperRest, "NOT NULL"),
		PrimaryKey: strings.Contains(upperRest, "PRIMARY KEY"),
	}
	table.AddColumn(col)

	if col.PrimaryKey {
		if pm := inlinePrimaryRe.FindStringSubmatch(rest); pm != nil && pm[1] != "" {
			table.SetPrimaryKey(primaryKeyColumns(table), NormalizeIdentifier(pm[1]))
		}
	}

	if fm := inlineForeignRe.FindStringSubmatch(rest); fm != nil {
		var constraintName string
		if fm[1] != "" {
			constraintName = NormalizeIdentifier(fm[1])
		}
		table.AddForeignKey(&schema.ForeignKey{
			Columns:    []string{col.Name},
			RefTable:   NormalizeIdentifier(fm[2]),
			RefColumns: SplitIdentifierList(fm[3]),
		}, constraintName)
	}

	if strings.Contains(upperRest, "UNIQUE") && !col.PrimaryKey {
		um := inlineUniqueRe.FindStringSubmatch(rest)
		if um != nil {
			ix := &schema.Index{
				Unique:  true,
				Entries: []schema.IndexEntry{{Column: col.Name}},
			}
			if um[1] != "" {
				ix.Name = table.RegisterConstraint(NormalizeIdentifier(um[1]), schema.ConstraintUnique)
			}
			table.AddIndex(ix)
		}
	}
}

func isTableConstraintItem(item string) bool {
	upper := strings.ToUpper(item)
	for _, prefix := range []string{"CONSTRAINT", "PRIMARY", "FOREIGN", "UNIQUE", "CHECK"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func columnType(rest string) string {
	var parts []string
	for _, token := range strings.Fields(rest) {
		if _, stop := typeStopWords[strings.ToUpper(token)]; stop {
			break
		}
		parts = append(parts, token)
	}
	return strings.Join(parts, " ")
}

func primaryKeyColumns(table *schema.Table) []string {
	cols := make([]string, 0, len(table.PrimaryKey))
	for c := range table.PrimaryKey {
		cols = append(cols, c)
	}
	return cols
}

// extractConstraintName splits an optional leading CONSTRAINT <name> prefix
// off a constraint definition.
func extractConstraintName(definition string) (string, string) {
	definition = strings.TrimSpace(definition)
	if m := constraintNameRe.FindStringSubmatch(definition); m != nil {
		return NormalizeIdentifier(m[1]), strings.TrimSpace(m[2])
	}
	return "", definition
}

// parseTableConstraint ingests one table-level constraint clause: PRIMARY
// KEY, FOREIGN KEY or UNIQUE, optionally named. Unrecognized clauses (CHECK,
// EXCLUDE) are ignored.
func parseTableConstraint(item string, table *schema.Table) {
	constraintName, definition := extractConstraintName(item)

	if pm := primaryKeyRe.FindStringSubmatch(definition); pm != nil {
		table.SetPrimaryKey(SplitIdentifierList(pm[1]), constraintName)
	}

	if fm := tableForeignRe.FindStringSubmatch(definition); fm != nil {
		table.AddForeignKey(&schema.ForeignKey{
			Columns:    SplitIdentifierList(fm[1]),
			RefTable:   NormalizeIdentifier(fm[2]),
			RefColumns: SplitIdentifierList(fm[3]),
		}, constraintName)
	}

	if um := tableUniqueRe.FindStringSubmatch(definition); um != nil {
		ix := &schema.Index{Unique: true}
		for _, col := range SplitIdentifierList(um[1]) {
			ix.Entries = append(ix.Entries, schema.IndexEntry{Column: col})
		}
		if constraintName != "" {
			ix.Name = table.RegisterConstraint(constraintName, schema.ConstraintUnique)
		}
		table.AddIndex(ix)
	}
}
