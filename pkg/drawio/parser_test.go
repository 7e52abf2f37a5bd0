package drawio

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"
)

// fixture mirrors the cell structure draw.io writes for two table shapes:
// each table anchor sits inside a group, rows split into a marker cell and a
// label cell, a note box hangs off the orders group, and one connector links
// the ORDERS user_id row to the USERS table.
const fixture = `<mxfile host="app.diagrams.net">
  <diagram name="Page-1" id="test">
    <mxGraphModel>
      <root>
        <mxCell id="0" />
        <mxCell id="1" parent="0" />
        <mxCell id="g1" style="group" vertex="1" parent="1" />
        <mxCell id="t1" value="USERS" style="shape=table;startSize=30;" vertex="1" parent="g1" />
        <mxCell id="r1" style="shape=partialRectangle;" vertex="1" parent="t1" />
        <mxCell id="b1" value="PK" style="shape=partialRectangle;" vertex="1" parent="r1" />
        <mxCell id="l1" value="&lt;b&gt;ID&lt;/b&gt;" style="shape=partialRectangle;" vertex="1" parent="r1" />
        <mxCell id="r2" style="shape=partialRectangle;" vertex="1" parent="t1" />
        <mxCell id="b2" value="" style="shape=partialRectangle;" vertex="1" parent="r2" />
        <mxCell id="l2" value="EMAIL" style="shape=partialRectangle;" vertex="1" parent="r2" />
        <mxCell id="r3" style="shape=partialRectangle;" vertex="1" parent="t1" />
        <mxCell id="l3" value="email" style="shape=partialRectangle;" vertex="1" parent="r3" />
        <mxCell id="g2" style="group" vertex="1" parent="1" />
        <mxCell id="t2" value="ORDERS" style="shape=table;startSize=30;" vertex="1" parent="g2" />
        <mxCell id="r4" style="shape=partialRectangle;" vertex="1" parent="t2" />
        <mxCell id="b4" value="PK" style="shape=partialRectangle;" vertex="1" parent="r4" />
        <mxCell id="l4" value="ID" style="shape=partialRectangle;" vertex="1" parent="r4" />
        <mxCell id="r5" style="shape=partialRectangle;" vertex="1" parent="t2" />
        <mxCell id="b5" value="FK" style="shape=partialRectangle;" vertex="1" parent="r5" />
        <mxCell id="l5" value="USER_ID" style="shape=partialRectangle;" vertex="1" parent="r5" />
        <mxCell id="n1" value="FK user_id -&gt; users.id&lt;br&gt;Index on [user_id]" style="text;html=1;align=left;" vertex="1" parent="g2" />
        <mxCell id="e1" style="edgeStyle=orthogonalEdgeStyle;" edge="1" parent="1" source="l5" target="t1" />
        <mxCell id="e2" style="edgeStyle=orthogonalEdgeStyle;" edge="1" parent="1" source="missing" target="t2" />
        <mxCell id="x1" value="floating" style="shape=partialRectangle;" vertex="1" parent="x2" />
        <mxCell id="x2" style="shape=partialRectangle;" vertex="1" parent="x1" />
      </root>
    </mxGraphModel>
  </diagram>
</mxfile>`

func TestDecodeTables(t *testing.T) {
	tables, err := DecodeTables(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d: %v", len(tables), tables)
	}

	users := tables["USERS"]
	if users == nil {
		t.Fatal("USERS table not detected")
	}
	// l1 carries rich-text markup, l3 is a case-variant duplicate of EMAIL.
	if !reflect.DeepEqual(users.Columns, []string{"ID", "EMAIL"}) {
		t.Errorf("USERS columns = %v, want [ID EMAIL]", users.Columns)
	}
	if len(users.NoteLines) != 0 {
		t.Errorf("USERS should have no notes, got %v", users.NoteLines)
	}

	orders := tables["ORDERS"]
	if orders == nil {
		t.Fatal("ORDERS table not detected")
	}
	if !reflect.DeepEqual(orders.Columns, []string{"ID", "USER_ID"}) {
		t.Errorf("ORDERS columns = %v, want [ID USER_ID]", orders.Columns)
	}
	wantNotes := []string{"FK user_id -> users.id", "Index on [user_id]"}
	if !reflect.DeepEqual(orders.NoteLines, wantNotes) {
		t.Errorf("ORDERS notes = %v, want %v", orders.NoteLines, wantNotes)
	}
}

func TestDecodeTablesIgnoresMarkerBadges(t *testing.T) {
	tables, err := DecodeTables(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	for name, table := range tables {
		for _, col := range table.Columns {
			lower := strings.ToLower(col)
			if lower == "pk" || lower == "fk" {
				t.Errorf("%s: marker badge %q leaked into columns", name, col)
			}
		}
	}
}

func TestDecodeEdges(t *testing.T) {
	edges, err := DecodeEdges(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %v", len(edges), edges)
	}

	resolved := Edge{
		SourceTable:  "ORDERS",
		SourceColumn: "USER_ID",
		TargetTable:  "USERS",
	}
	if !slices.Contains(edges, resolved) {
		t.Errorf("resolved edge missing, got %v", edges)
	}

	dangling := Edge{TargetTable: "ORDERS"}
	if !slices.Contains(edges, dangling) {
		t.Errorf("edge with unresolvable source should keep blank endpoint, got %v", edges)
	}
}

func TestDecodeTablesParentCycleTerminates(t *testing.T) {
	// x1 and x2 in the fixture parent each other; extraction must neither
	// hang nor attribute them to a table.
	tables, err := DecodeTables(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	for name, table := range tables {
		for _, col := range table.Columns {
			if strings.EqualFold(col, "floating") {
				t.Errorf("%s: cell outside any table attributed as column %q", name, col)
			}
		}
	}
}

func TestDecodeTablesDepthCapsAncestorWalk(t *testing.T) {
	// A labeled cell nested 15 wrappers below the table anchor is out of
	// range for both the upward ancestor walk and the downward label
	// search; it must not surface as a column.
	var b strings.Builder
	b.WriteString(`<mxfile><diagram><mxGraphModel><root>`)
	b.WriteString(`<mxCell id="0" /><mxCell id="1" parent="0" />`)
	b.WriteString(`<mxCell id="t1" value="USERS" style="shape=table;" vertex="1" parent="1" />`)
	b.WriteString(`<mxCell id="r1" style="shape=partialRectangle;" vertex="1" parent="t1" />`)
	b.WriteString(`<mxCell id="l1" value="ID" style="shape=partialRectangle;" vertex="1" parent="r1" />`)
	parent := "t1"
	for i := 1; i <= 14; i++ {
		id := fmt.Sprintf("w%d", i)
		fmt.Fprintf(&b, `<mxCell id=%q style="shape=partialRectangle;" vertex="1" parent=%q />`, id, parent)
		parent = id
	}
	fmt.Fprintf(&b, `<mxCell id="deep" value="BURIED" style="shape=partialRectangle;" vertex="1" parent=%q />`, parent)
	b.WriteString(`</root></mxGraphModel></diagram></mxfile>`)

	tables, err := DecodeTables(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	users := tables["USERS"]
	if users == nil {
		t.Fatal("USERS table not detected")
	}
	if !reflect.DeepEqual(users.Columns, []string{"ID"}) {
		t.Errorf("USERS columns = %v, want [ID]", users.Columns)
	}
}

func TestDecodeTablesRejectsMalformedXML(t *testing.T) {
	_, err := DecodeTables(strings.NewReader("<mxfile><unclosed"))
	if err == nil {
		t.Fatal("expected an error for malformed XML")
	}
}

func TestCleanValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"PLAIN", "PLAIN"},
		{"<b>BOLD</b>", "BOLD"},
		{"&lt;b&gt;ESCAPED&lt;/b&gt;", "ESCAPED"},
		{"  spaced   out  ", "spaced out"},
		{"<div style=\"x\">NESTED</div>", "NESTED"},
	}
	for _, tt := range tests {
		if got := cleanValue(tt.in); got != tt.want {
			t.Errorf("cleanValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractNoteLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"FK a -&gt; t.b", []string{"FK a -> t.b"}},
		{"one<br>two", []string{"one", "two"}},
		{"one<br/>two<BR>three", []string{"one", "two", "three"}},
		{"<div>one</div><div>two</div>", []string{"one", "two"}},
		{"<br><br>", nil},
	}
	for _, tt := range tests {
		if got := extractNoteLines(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("extractNoteLines(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
