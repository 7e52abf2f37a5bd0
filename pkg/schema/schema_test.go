package schema

import (
	"testing"
)

func TestTableColumnLookup(t *testing.T) {
	table := NewTable("users")
	table.AddColumn(&Column{Name: "id", Type: "int", PrimaryKey: true})
	table.AddColumn(&Column{Name: "Email", Type: "text", Nullable: true})

	if !table.HasColumn("email") {
		t.Error("lookup should be case-insensitive")
	}
	if table.HasColumn("missing") {
		t.Error("HasColumn should return false for unknown columns")
	}

	names := table.ColumnNames()
	if len(names) != 2 || names[0] != "id" || names[1] != "Email" {
		t.Errorf("unexpected column order: %v", names)
	}

	if _, ok := table.PrimaryKey["id"]; !ok {
		t.Error("inline primary key should join the primary-key set")
	}
}

func TestAddColumnUpdatesInPlace(t *testing.T) {
	table := NewTable("users")
	table.AddColumn(&Column{Name: "id", Type: "int", Nullable: true})
	table.AddColumn(&Column{Name: "id", Type: "bigint", Nullable: false})

	if len(table.Columns) != 1 {
		t.Fatalf("expected 1 column, got %d", len(table.Columns))
	}
	if table.Columns[0].Type != "bigint" {
		t.Errorf("type = %q, want bigint", table.Columns[0].Type)
	}
}

func TestDropColumnStripsKeysAndRegistry(t *testing.T) {
	table := NewTable("orders")
	table.AddColumn(&Column{Name: "id", PrimaryKey: true})
	table.AddColumn(&Column{Name: "user_id"})
	table.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "orders_user_id_fkey")

	table.DropColumn("user_id")

	if table.HasColumn("user_id") {
		t.Error("column should be gone")
	}
	if len(table.ForeignKeys) != 0 {
		t.Error("foreign key using the column should be gone")
	}
	if _, ok := table.Constraints["orders_user_id_fkey"]; ok {
		t.Error("registry entry of the removed foreign key should be gone")
	}
}

func TestDropConstraint(t *testing.T) {
	table := NewTable("orders")
	table.AddColumn(&Column{Name: "id"})
	table.SetPrimaryKey([]string{"id"}, "orders_pkey")
	table.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "orders_user_fkey")

	table.DropConstraint("orders_user_fkey")
	if len(table.ForeignKeys) != 0 {
		t.Error("dropping a named FK constraint should remove the foreign key")
	}

	table.DropConstraint("orders_pkey")
	if len(table.PrimaryKey) != 0 {
		t.Error("dropping the PK constraint should clear the primary-key set")
	}
	if table.Columns[0].PrimaryKey {
		t.Error("column PK flag should be cleared after dropping the PK")
	}

	// Unknown names are a no-op.
	before := len(table.Constraints)
	table.DropConstraint("does_not_exist")
	if len(table.Constraints) != before {
		t.Error("dropping an unknown constraint must not change the registry")
	}
}

func TestRenameConstraint(t *testing.T) {
	table := NewTable("orders")
	table.AddForeignKey(&ForeignKey{
		Columns:  []string{"user_id"},
		RefTable: "users",
	}, "old_fkey")

	table.RenameConstraint("old_fkey", "new_fkey")

	if _, ok := table.Constraints["new_fkey"]; !ok {
		t.Error("registry should hold the new name")
	}
	if _, ok := table.Constraints["old_fkey"]; ok {
		t.Error("registry should not hold the old name")
	}
	if table.ForeignKeys[0].Name != "new_fkey" {
		t.Errorf("fk name = %q, want new_fkey", table.ForeignKeys[0].Name)
	}
}

func TestRenameTablePropagation(t *testing.T) {
	s := make(Schema)
	users := s.GetOrCreate("users")
	users.AddColumn(&Column{Name: "id", PrimaryKey: true})

	orders := s.GetOrCreate("orders")
	orders.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "")

	// Self-referential FK must follow the rename too.
	users.AddForeignKey(&ForeignKey{
		Columns:    []string{"referrer_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "")

	s.RenameTable("users", "accounts")

	if s.Get("users") != nil {
		t.Error("old key should be gone")
	}
	renamed := s.Get("accounts")
	if renamed == nil {
		t.Fatal("new key missing")
	}
	if renamed.Name != "accounts" {
		t.Errorf("table name = %q, want accounts", renamed.Name)
	}
	if orders.ForeignKeys[0].RefTable != "accounts" {
		t.Errorf("other table ref_table = %q, want accounts", orders.ForeignKeys[0].RefTable)
	}
	if renamed.ForeignKeys[0].RefTable != "accounts" {
		t.Errorf("self-referential ref_table = %q, want accounts", renamed.ForeignKeys[0].RefTable)
	}
}

func TestRenameColumnPropagation(t *testing.T) {
	s := make(Schema)
	users := s.GetOrCreate("users")
	users.AddColumn(&Column{Name: "id", PrimaryKey: true})
	users.AddForeignKey(&ForeignKey{
		Columns:    []string{"referrer_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "")

	orders := s.GetOrCreate("orders")
	orders.AddColumn(&Column{Name: "user_id"})
	orders.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "")

	s.RenameColumn("users", "id", "user_id")

	if !users.HasColumn("user_id") || users.HasColumn("id") {
		t.Error("column list not renamed")
	}
	if _, ok := users.PrimaryKey["user_id"]; !ok {
		t.Error("primary-key set not renamed")
	}
	if users.ForeignKeys[0].RefColumns[0] != "user_id" {
		t.Error("self-referential ref_columns not renamed")
	}
	if orders.ForeignKeys[0].RefColumns[0] != "user_id" {
		t.Error("other table's ref_columns not renamed")
	}
	if orders.ForeignKeys[0].Columns[0] != "user_id" {
		t.Error("other table's local columns must stay untouched by name collision")
	}
}

func TestRenameColumnInverseRestoresState(t *testing.T) {
	s := make(Schema)
	users := s.GetOrCreate("users")
	users.AddColumn(&Column{Name: "id", PrimaryKey: true})
	orders := s.GetOrCreate("orders")
	orders.AddColumn(&Column{Name: "user_id"})
	orders.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "")

	s.RenameColumn("users", "id", "uid")
	s.RenameColumn("users", "uid", "id")

	if !users.HasColumn("id") {
		t.Error("column should be restored")
	}
	if _, ok := users.PrimaryKey["id"]; !ok {
		t.Error("primary-key set should be restored")
	}
	if orders.ForeignKeys[0].RefColumns[0] != "id" {
		t.Error("referencing FK should be restored")
	}
}

func TestDropTableStripsReferences(t *testing.T) {
	s := make(Schema)
	s.GetOrCreate("users")
	orders := s.GetOrCreate("orders")
	orders.AddForeignKey(&ForeignKey{
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	}, "orders_user_fkey")
	orders.AddForeignKey(&ForeignKey{
		Columns:    []string{"parent_id"},
		RefTable:   "orders",
		RefColumns: []string{"id"},
	}, "")

	s.DropTable("users")

	if s.Get("users") != nil {
		t.Error("dropped table should be gone")
	}
	if len(orders.ForeignKeys) != 1 || orders.ForeignKeys[0].RefTable != "orders" {
		t.Errorf("only the FK referencing the dropped table should be removed, got %+v", orders.ForeignKeys)
	}
	if _, ok := orders.Constraints["orders_user_fkey"]; ok {
		t.Error("registry entry of the stripped FK should be gone")
	}
}

func TestIndexOwnership(t *testing.T) {
	s := make(Schema)
	users := s.GetOrCreate("users")
	users.AddIndex(&Index{
		Name:    "users_email_idx",
		Entries: []IndexEntry{{Column: "email"}},
		Unique:  true,
	})

	owner := s.FindIndexOwner("users_email_idx")
	if owner == nil || owner.Name != "users" {
		t.Fatalf("owner = %v, want users", owner)
	}
	if s.FindIndexOwner("missing_idx") != nil {
		t.Error("unknown index should have no owner")
	}

	if !users.DropIndex("users_email_idx") {
		t.Error("DropIndex should report the removal")
	}
	if users.DropIndex("users_email_idx") {
		t.Error("second DropIndex should report nothing to remove")
	}
}

func TestIndexColumnNamesSkipExpressions(t *testing.T) {
	ix := &Index{Entries: []IndexEntry{
		{Column: "email"},
		{Expr: "lower(name)"},
		{Column: "created_at"},
	}}
	names := ix.ColumnNames()
	if len(names) != 2 || names[0] != "email" || names[1] != "created_at" {
		t.Errorf("unexpected names: %v", names)
	}
}
