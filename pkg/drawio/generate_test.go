package drawio

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/schemaforge/drawio-schema-diff/pkg/schema"
)

func exampleSchema() schema.Schema {
	users := schema.NewTable("users")
	users.AddColumn(&schema.Column{Name: "id", Type: "int", PrimaryKey: true})
	users.AddColumn(&schema.Column{Name: "email", Type: "text", Nullable: false})

	orders := schema.NewTable("orders")
	orders.AddColumn(&schema.Column{Name: "id", Type: "int", PrimaryKey: true})
	orders.AddColumn(&schema.Column{Name: "user_id", Type: "int", Nullable: true})
	orders.AddForeignKey(&schema.ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "orders_user_fkey")
	orders.AddIndex(&schema.Index{
		Name:    "orders_user_idx",
		Entries: []schema.IndexEntry{{Column: "user_id"}},
	})

	return schema.Schema{"users": users, "orders": orders}
}

func TestGenerateRoundTrip(t *testing.T) {
	out, err := Generate(exampleSchema(), GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tables, err := DecodeTables(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("generated document does not parse back: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}

	users := tables["USERS"]
	if users == nil {
		t.Fatal("USERS not found in generated document")
	}
	if !reflect.DeepEqual(users.Columns, []string{"ID", "EMAIL"}) {
		t.Errorf("USERS columns = %v", users.Columns)
	}

	orders := tables["ORDERS"]
	if orders == nil {
		t.Fatal("ORDERS not found in generated document")
	}
	if !reflect.DeepEqual(orders.Columns, []string{"ID", "USER_ID"}) {
		t.Errorf("ORDERS columns = %v", orders.Columns)
	}
	wantNotes := []string{"FK user_id -> users.id", "Index on [user_id]"}
	if !reflect.DeepEqual(orders.NoteLines, wantNotes) {
		t.Errorf("ORDERS notes = %v, want %v", orders.NoteLines, wantNotes)
	}
}

func TestGenerateEdgesConnectTableContainers(t *testing.T) {
	out, err := Generate(exampleSchema(), GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	edges, err := DecodeEdges(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d: %v", len(edges), edges)
	}
	e := edges[0]
	if e.SourceTable != "ORDERS" || e.TargetTable != "USERS" {
		t.Errorf("edge = %+v, want ORDERS -> USERS", e)
	}
}

func TestGenerateShowTypes(t *testing.T) {
	out, err := Generate(exampleSchema(), GenerateOptions{ShowTypes: true})
	if err != nil {
		t.Fatal(err)
	}
	tables, err := DecodeTables(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	users := tables["USERS"]
	if users == nil {
		t.Fatal("USERS not found")
	}
	if !reflect.DeepEqual(users.Columns, []string{"ID (int)", "EMAIL (text)"}) {
		t.Errorf("typed columns = %v", users.Columns)
	}
}

func TestGenerateStableOutput(t *testing.T) {
	a, err := Generate(exampleSchema(), GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(exampleSchema(), GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("generation is not deterministic for the same schema")
	}
}

func TestGenerateEmptySchema(t *testing.T) {
	out, err := Generate(schema.Schema{}, GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	tables, err := DecodeTables(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 0 {
		t.Errorf("empty schema produced tables: %v", tables)
	}
}

func TestLoadLayoutAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("per_row: 3\ntable_width: 420\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadLayout(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PerRow != 3 || cfg.TableWidth != 420 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	def := DefaultLayout()
	if cfg.RowHeight != def.RowHeight || cfg.GapX != def.GapX {
		t.Errorf("defaults not filled in: %+v", cfg)
	}
}

func TestLayoutPerRowAuto(t *testing.T) {
	cfg := DefaultLayout()
	tests := []struct {
		tables int
		want   int
	}{
		{0, 1},
		{1, 1},
		{4, 2},
		{5, 3},
		{9, 3},
	}
	for _, tt := range tests {
		if got := cfg.perRow(tt.tables); got != tt.want {
			t.Errorf("perRow(%d) = %d, want %d", tt.tables, got, tt.want)
		}
	}
}
