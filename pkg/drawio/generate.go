package drawio

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/schemaforge/drawio-schema-diff/pkg/schema"
)

// Styles for the generated table shapes. The reader keys off shape=table for
// anchors and the text; prefix for note boxes, so generated documents parse
// back through the extractor.
const (
	tableStyle = "shape=table;startSize=30;container=1;collapsible=1;" +
		"childLayout=tableLayout;fixedRows=1;rowLines=0;fontStyle=1;" +
		"align=center;resizeLast=1;labelBackgroundColor=none;" +
		"fillColor=#dae8fc;strokeColor=#6c8ebf;"
	rowStyle = "shape=partialRectangle;collapsible=0;dropTarget=0;pointerEvents=0;" +
		"fillColor=none;top=0;left=0;bottom=0;right=0;" +
		"points=[[0,0.5],[1,0.5]];portConstraint=eastwest;strokeColor=#000000;"
	cellLeftStyle = "shape=partialRectangle;connectable=0;fillColor=none;" +
		"top=0;left=0;bottom=0;right=0;editable=1;overflow=hidden;fontStyle=1"
	cellRightStyle = "shape=partialRectangle;connectable=0;fillColor=none;" +
		"top=0;left=0;bottom=0;right=0;align=left;spacingLeft=6;overflow=hidden;"
	groupStyle = "group"
	noteStyle  = "text;html=1;align=left;verticalAlign=top;whiteSpace=wrap;rounded=0;"
	edgeStyle  = "edgeStyle=orthogonalEdgeStyle;rounded=0;orthogonalLoop=1;" +
		"jettySize=auto;html=1;endArrow=block;strokeColor=#999999;"
)

type xmlGeometry struct {
	XMLName  xml.Name `xml:"mxGeometry"`
	X        string   `xml:"x,attr,omitempty"`
	Y        string   `xml:"y,attr,omitempty"`
	Width    string   `xml:"width,attr,omitempty"`
	Height   string   `xml:"height,attr,omitempty"`
	Relative string   `xml:"relative,attr,omitempty"`
	As       string   `xml:"as,attr"`
}

type xmlCell struct {
	XMLName  xml.Name `xml:"mxCell"`
	ID       string   `xml:"id,attr"`
	Value    string   `xml:"value,attr,omitempty"`
	Style    string   `xml:"style,attr,omitempty"`
	Vertex   string   `xml:"vertex,attr,omitempty"`
	Edge     string   `xml:"edge,attr,omitempty"`
	Parent   string   `xml:"parent,attr,omitempty"`
	Source   string   `xml:"source,attr,omitempty"`
	Target   string   `xml:"target,attr,omitempty"`
	Geometry *xmlGeometry
}

type xmlRoot struct {
	XMLName xml.Name `xml:"root"`
	Cells   []xmlCell
}

type xmlGraphModel struct {
	XMLName  xml.Name `xml:"mxGraphModel"`
	Dx       string   `xml:"dx,attr"`
	Dy       string   `xml:"dy,attr"`
	Grid     string   `xml:"grid,attr"`
	GridSize string   `xml:"gridSize,attr"`
	Page     string   `xml:"page,attr"`
	PageW    string   `xml:"pageWidth,attr"`
	PageH    string   `xml:"pageHeight,attr"`
	Root     xmlRoot
}

type xmlDiagram struct {
	XMLName xml.Name `xml:"diagram"`
	Name    string   `xml:"name,attr"`
	ID      string   `xml:"id,attr"`
	Model   xmlGraphModel
}

type xmlFile struct {
	XMLName xml.Name `xml:"mxfile"`
	Host    string   `xml:"host,attr"`
	Version string   `xml:"version,attr"`
	Diagram xmlDiagram
}

type idGen struct{ n int }

func (g *idGen) next() string {
	g.n++
	return fmt.Sprintf("mx%d", g.n+2)
}

// GenerateOptions controls diagram generation.
type GenerateOptions struct {
	ShowTypes bool // append the declared type to column labels
	Layout    LayoutConfig
}

// Generate renders a schema as a draw.io document: one table shape per
// table with PK-badged rows, a note box carrying FK and index annotation
// lines, and an edge per foreign key between the table containers. Tables
// are placed on a simple grid in sorted-name order so output is stable.
func Generate(s schema.Schema, opts GenerateOptions) ([]byte, error) {
	cfg := opts.Layout
	cfg.applyDefaults()

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := &idGen{}
	cells := []xmlCell{
		{ID: "0"},
		{ID: "1", Parent: "0"},
	}

	perRow := cfg.perRow(len(names))
	tableIDs := make(map[string]string, len(names))
	x, y := cfg.PaddingX, cfg.PaddingY
	rowMaxHeight := 0

	for idx, name := range names {
		table := s[name]
		if idx > 0 && idx%perRow == 0 {
			x = cfg.PaddingX
			y += rowMaxHeight + cfg.GapY
			rowMaxHeight = 0
		}

		noteLines := describeTableNotes(table)
		tableH := cfg.tableHeight(len(table.Columns))
		totalH := tableH + cfg.noteHeight(len(noteLines))
		if totalH > rowMaxHeight {
			rowMaxHeight = totalH
		}

		groupID := ids.next()
		cells = append(cells, xmlCell{
			ID: groupID, Style: groupStyle, Vertex: "1", Parent: "1",
			Geometry: &xmlGeometry{
				X: itoa(x), Y: itoa(y),
				Width: itoa(cfg.TableWidth), Height: itoa(totalH),
				As: "geometry",
			},
		})

		tableID := ids.next()
		tableIDs[name] = tableID
		cells = append(cells, xmlCell{
			ID: tableID, Value: strings.ToUpper(table.Name), Style: tableStyle,
			Vertex: "1", Parent: groupID,
			Geometry: &xmlGeometry{
				Width: itoa(cfg.TableWidth), Height: itoa(tableH),
				As: "geometry",
			},
		})

		for i, col := range table.Columns {
			rowID := ids.next()
			cells = append(cells, xmlCell{
				ID: rowID, Style: rowStyle, Vertex: "1", Parent: tableID,
				Geometry: &xmlGeometry{
					Y:     itoa(cfg.HeaderHeight + i*cfg.RowHeight),
					Width: itoa(cfg.TableWidth), Height: itoa(cfg.RowHeight),
					As: "geometry",
				},
			})

			badge := ""
			badgeStyle := strings.ReplaceAll(cellLeftStyle, "fontStyle=1", "")
			if col.PrimaryKey {
				badge = "PK"
				badgeStyle = cellLeftStyle
			}
			cells = append(cells, xmlCell{
				ID: ids.next(), Value: badge, Style: badgeStyle,
				Vertex: "1", Parent: rowID,
				Geometry: &xmlGeometry{
					Width: "30", Height: itoa(cfg.RowHeight), As: "geometry",
				},
			})

			label := strings.ToUpper(col.Name)
			if opts.ShowTypes && col.Type != "" {
				label = fmt.Sprintf("%s (%s)", label, col.Type)
			}
			cells = append(cells, xmlCell{
				ID: ids.next(), Value: label, Style: cellRightStyle,
				Vertex: "1", Parent: rowID,
				Geometry: &xmlGeometry{
					X:     "30",
					Width: itoa(cfg.TableWidth - 30), Height: itoa(cfg.RowHeight),
					As: "geometry",
				},
			})
		}

		if len(noteLines) > 0 {
			cells = append(cells, xmlCell{
				ID:    ids.next(),
				Value: strings.Join(noteLines, "<br>"),
				Style: noteStyle, Vertex: "1", Parent: groupID,
				Geometry: &xmlGeometry{
					Y:      itoa(tableH + cfg.NoteMargin),
					Width:  itoa(cfg.TableWidth),
					Height: itoa(len(noteLines) * cfg.NoteLineHeight),
					As:     "geometry",
				},
			})
		}

		x += cfg.TableWidth + cfg.GapX
	}

	for _, name := range names {
		table := s[name]
		for _, fk := range table.ForeignKeys {
			src, dst := tableIDs[name], tableIDs[fk.RefTable]
			if src == "" || dst == "" {
				continue
			}
			cells = append(cells, xmlCell{
				ID: ids.next(), Style: edgeStyle, Edge: "1", Parent: "1",
				Source: src, Target: dst,
				Geometry: &xmlGeometry{Relative: "1", As: "geometry"},
			})
		}
	}

	file := xmlFile{
		Host:    "app.diagrams.net",
		Version: "28.2.3",
		Diagram: xmlDiagram{
			Name: "Page-1",
			ID:   "auto-gen",
			Model: xmlGraphModel{
				Dx: "1372", Dy: "773", Grid: "1", GridSize: "10",
				Page: "1", PageW: "850", PageH: "1100",
				Root: xmlRoot{Cells: cells},
			},
		},
	}

	out, err := xml.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal diagram: %w", err)
	}
	return append(out, '\n'), nil
}

// describeTableNotes renders a table's foreign keys and indexes as note
// lines in the annotation grammar the note parser understands.
func describeTableNotes(table *schema.Table) []string {
	var lines []string
	for _, fk := range table.ForeignKeys {
		target := fk.RefTable
		if len(fk.RefColumns) > 0 {
			target += "." + strings.Join(fk.RefColumns, ",")
		}
		lines = append(lines, fmt.Sprintf("FK %s -> %s", strings.Join(fk.Columns, ","), target))
	}
	for _, ix := range table.Indexes {
		prefix := ""
		if ix.Unique {
			prefix = "Unique "
		}
		line := fmt.Sprintf("%sIndex on [%s]", prefix, strings.Join(ix.ColumnNames(), ", "))
		if ix.Where != "" {
			line += " where " + ix.Where
		}
		lines = append(lines, line)
	}
	return lines
}

func itoa(v int) string {
	return fmt.Sprintf("%d", v)
}
