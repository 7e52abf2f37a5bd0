// Package drawio reads and writes draw.io diagram documents. The reader
// reconstructs table/column/note structure from the loosely nested cell
// graph; the writer renders a schema as table shapes the reader can parse
// back.
package drawio

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"
)

// maxSearchDepth bounds the breadth-first label search. Parent graphs in
// hand-edited documents can be malformed or cyclic; the cap and the visited
// set are safety nets, not an optimization.
const maxSearchDepth = 6

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`\s+`)
	brRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	divEnd  = regexp.MustCompile(`(?i)</div>`)
	divOpen = regexp.MustCompile(`(?i)<div[^>]*>`)
)

// labelTokens are reserved marker badges that never count as column names.
var labelTokens = map[string]struct{}{"pk": {}, "fk": {}}

// Cell is one node of the diagram's visual graph.
type Cell struct {
	ID       string
	Value    string // rich text reduced to plain text
	RawValue string
	Style    string
	Vertex   bool
	Edge     bool
	Parent   string
	Source   string
	Target   string
}

// DiagramTable is the structural projection of one table shape: display
// name, de-duplicated column display names, and free-text note lines. It is
// never mutated after extraction.
type DiagramTable struct {
	Name      string
	Columns   []string
	NoteLines []string
}

// Edge is a resolved connector between two endpoints. An endpoint the parent
// walk could not resolve is reported with empty table and column rather than
// dropped; callers needing strict edges must filter.
type Edge struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// columnContext identifies the table and column a cell belongs to.
type columnContext struct {
	table  string
	column string
}

// document is the decoded cell forest with derived lookup structures.
type document struct {
	cells    map[string]*Cell
	order    []string            // cell ids in document order
	children map[string][]string // parent id -> child ids, document order
}

func cleanValue(value string) string {
	if value == "" {
		return ""
	}
	text := html.UnescapeString(value)
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func styleContains(style, fragment string) bool {
	return strings.Contains(strings.ToLower(style), strings.ToLower(fragment))
}

func isNoteStyle(style string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(style)), "text;")
}

// decode reads every mxCell element in the document, wherever it nests.
// Missing attributes default to empty; one bad cell never fails the parse.
func decode(r io.Reader) (*document, error) {
	doc := &document{
		cells:    make(map[string]*Cell),
		children: make(map[string][]string),
	}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse diagram XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "mxCell" {
			continue
		}
		cell := &Cell{}
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "id":
				cell.ID = attr.Value
			case "value":
				cell.RawValue = attr.Value
			case "style":
				cell.Style = attr.Value
			case "vertex":
				cell.Vertex = attr.Value == "1"
			case "edge":
				cell.Edge = attr.Value == "1"
			case "parent":
				cell.Parent = attr.Value
			case "source":
				cell.Source = attr.Value
			case "target":
				cell.Target = attr.Value
			}
		}
		if cell.ID == "" {
			continue
		}
		cell.Value = cleanValue(cell.RawValue)
		doc.cells[cell.ID] = cell
		doc.order = append(doc.order, cell.ID)
		if cell.Parent != "" {
			doc.children[cell.Parent] = append(doc.children[cell.Parent], cell.ID)
		}
	}
	return doc, nil
}

// tableAnchors returns cell id -> table display name for every vertex styled
// as a table shape with a non-empty value.
func (doc *document) tableAnchors() map[string]string {
	anchors := make(map[string]string)
	for _, id := range doc.order {
		cell := doc.cells[id]
		if cell.Vertex && cell.Value != "" && styleContains(cell.Style, "shape=table") {
			anchors[cell.ID] = cell.Value
		}
	}
	return anchors
}

// findTableAncestor walks the parent chain up to a table anchor, capped at
// maxSearchDepth like the label search. The visited set guards against
// parent cycles.
func (doc *document) findTableAncestor(cellID string, anchors map[string]string) string {
	visited := make(map[string]struct{})
	current := cellID
	for depth := 0; current != "" && depth <= maxSearchDepth; depth++ {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}
		if _, ok := anchors[current]; ok {
			return current
		}
		cell, ok := doc.cells[current]
		if !ok {
			break
		}
		current = cell.Parent
	}
	return ""
}

func isLabelValue(value string) bool {
	if value == "" {
		return true
	}
	_, reserved := labelTokens[strings.ToLower(strings.TrimSpace(value))]
	return reserved
}

// resolveColumnName runs a bounded breadth-first search for the cell's
// label: children first, then the parent (stopping at the table anchor),
// then the parent's other children. A visual "row" is frequently split
// across several nested cells (a marker cell plus a label cell) with no
// fixed structural convention, so the search deliberately crosses into
// sibling and child sub-cells. Exhausting the depth bound resolves to "".
func (doc *document) resolveColumnName(startID, tableID string) string {
	type item struct {
		id    string
		depth int
	}
	queue := []item{{startID, 0}}
	visited := make(map[string]struct{})
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if _, seen := visited[it.id]; seen || it.depth > maxSearchDepth {
			continue
		}
		visited[it.id] = struct{}{}
		node, ok := doc.cells[it.id]
		if !ok {
			continue
		}
		if node.Value != "" && !isLabelValue(node.Value) {
			return node.Value
		}
		for _, childID := range doc.children[it.id] {
			if _, seen := visited[childID]; !seen {
				queue = append(queue, item{childID, it.depth + 1})
			}
		}
		parentID := node.Parent
		if parentID == "" || parentID == tableID {
			continue
		}
		if _, seen := visited[parentID]; !seen {
			queue = append(queue, item{parentID, it.depth + 1})
		}
		for _, siblingID := range doc.children[parentID] {
			if siblingID == it.id {
				continue
			}
			if _, seen := visited[siblingID]; !seen {
				queue = append(queue, item{siblingID, it.depth + 1})
			}
		}
	}
	return ""
}

// columnMap resolves every candidate column cell (non-edge, non-anchor,
// non-note) to its owning table and label.
func (doc *document) columnMap(anchors map[string]string) map[string]columnContext {
	contexts := make(map[string]columnContext)
	for _, id := range doc.order {
		cell := doc.cells[id]
		if cell.Edge {
			continue
		}
		if _, isAnchor := anchors[id]; isAnchor {
			continue
		}
		if isNoteStyle(cell.Style) {
			continue
		}
		tableID := doc.findTableAncestor(id, anchors)
		if tableID == "" {
			continue
		}
		contexts[id] = columnContext{
			table:  anchors[tableID],
			column: doc.resolveColumnName(id, tableID),
		}
	}
	return contexts
}

// extractNoteLines reduces a note cell's rich-text value to plain lines:
// block and line breaks become newlines, remaining tags are stripped.
func extractNoteLines(rawValue string) []string {
	if rawValue == "" {
		return nil
	}
	text := brRe.ReplaceAllString(rawValue, "\n")
	text = divEnd.ReplaceAllString(text, "\n")
	text = divOpen.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = tagRe.ReplaceAllString(text, " ")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// groupMap maps each table anchor's enclosing group cell to the table name,
// so note cells parented inside the group can be attributed.
func (doc *document) groupMap(anchors map[string]string) map[string]string {
	groups := make(map[string]string)
	for _, id := range doc.order {
		if name, ok := anchors[id]; ok {
			if parent := doc.cells[id].Parent; parent != "" {
				groups[parent] = name
			}
		}
	}
	return groups
}

// noteTable walks a note cell's ancestors until one of them is a table's
// visual group. The walk is bounded by the visited set.
func (doc *document) noteTable(cell *Cell, groups map[string]string) string {
	visited := make(map[string]struct{})
	current := cell.Parent
	for current != "" {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}
		if name, ok := groups[current]; ok {
			return name
		}
		parent, ok := doc.cells[current]
		if !ok {
			break
		}
		current = parent.Parent
	}
	return ""
}

// Tables projects the document onto DiagramTables: table display names,
// per-table column names (case-insensitive de-dup, first occurrence wins),
// and attached note lines.
func (doc *document) Tables() map[string]*DiagramTable {
	anchors := doc.tableAnchors()
	contexts := doc.columnMap(anchors)
	groups := doc.groupMap(anchors)

	columns := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, id := range doc.order {
		ctx, ok := contexts[id]
		if !ok || ctx.column == "" {
			continue
		}
		normalized := strings.ToLower(ctx.column)
		recorded, ok := seen[ctx.table]
		if !ok {
			recorded = make(map[string]struct{})
			seen[ctx.table] = recorded
		}
		if _, dup := recorded[normalized]; dup {
			continue
		}
		recorded[normalized] = struct{}{}
		columns[ctx.table] = append(columns[ctx.table], ctx.column)
	}

	notes := make(map[string][]string)
	for _, id := range doc.order {
		cell := doc.cells[id]
		if !isNoteStyle(cell.Style) {
			continue
		}
		tableName := doc.noteTable(cell, groups)
		if tableName == "" {
			continue
		}
		if lines := extractNoteLines(cell.RawValue); len(lines) > 0 {
			notes[tableName] = append(notes[tableName], lines...)
		}
	}

	tables := make(map[string]*DiagramTable)
	for _, name := range anchors {
		tables[name] = &DiagramTable{
			Name:      name,
			Columns:   columns[name],
			NoteLines: notes[name],
		}
	}
	return tables
}

// resolveEndpoint walks an endpoint id up the parent chain: a table anchor
// resolves to (table, no column), a resolved column cell to (table, column).
func (doc *document) resolveEndpoint(startID string, anchors map[string]string, contexts map[string]columnContext) (columnContext, bool) {
	visited := make(map[string]struct{})
	current := startID
	for current != "" {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}
		if name, ok := anchors[current]; ok {
			return columnContext{table: name}, true
		}
		if ctx, ok := contexts[current]; ok {
			return ctx, true
		}
		cell, ok := doc.cells[current]
		if !ok {
			break
		}
		current = cell.Parent
	}
	return columnContext{}, false
}

// Edges resolves every edge cell's endpoints independently. Unresolvable
// endpoints stay blank.
func (doc *document) Edges() []Edge {
	anchors := doc.tableAnchors()
	contexts := doc.columnMap(anchors)
	var edges []Edge
	for _, id := range doc.order {
		cell := doc.cells[id]
		if !cell.Edge {
			continue
		}
		var edge Edge
		if ctx, ok := doc.resolveEndpoint(cell.Source, anchors, contexts); ok {
			edge.SourceTable, edge.SourceColumn = ctx.table, ctx.column
		}
		if ctx, ok := doc.resolveEndpoint(cell.Target, anchors, contexts); ok {
			edge.TargetTable, edge.TargetColumn = ctx.table, ctx.column
		}
		edges = append(edges, edge)
	}
	return edges
}

// DecodeTables extracts table/column/note structure from diagram XML.
func DecodeTables(r io.Reader) (map[string]*DiagramTable, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, err
	}
	return doc.Tables(), nil
}

// DecodeEdges extracts resolved connector endpoints from diagram XML.
func DecodeEdges(r io.Reader) ([]Edge, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, err
	}
	return doc.Edges(), nil
}

// ExtractTables parses a .drawio file and returns its tables keyed by
// display name.
func ExtractTables(path string) (map[string]*DiagramTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open diagram: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return DecodeTables(f)
}

// ExtractEdges parses a .drawio file and returns its edges.
func ExtractEdges(path string) ([]Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open diagram: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return DecodeEdges(f)
}
