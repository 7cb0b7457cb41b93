package engine

import (
	"errors"
	"testing"

	"stratadb/src/hashindex"
	"stratadb/src/helpers"
	"stratadb/src/schema"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func mustColumn(t *testing.T, name string, dt schema.DataType, opts ...schema.ColumnOption) *schema.Column {
	t.Helper()
	col, err := schema.NewColumn(name, dt, opts...)
	if err != nil {
		t.Fatalf("Failed to build column %s: %v", name, err)
	}
	return col
}

func usersTable(t *testing.T) *Table {
	t.Helper()
	table := NewTable("users", testLogger())
	if err := table.AddColumn(mustColumn(t, "id", schema.TypeInt, schema.WithPrimaryKey())); err != nil {
		t.Fatal(err)
	}
	if err := table.AddColumn(mustColumn(t, "name", schema.TypeVarchar)); err != nil {
		t.Fatal(err)
	}
	return table
}

func userRecord(id int64, name string) *schema.Record {
	rec := schema.NewRecord(helpers.GenerateUUID())
	rec.Set("id", schema.NewInt(id))
	rec.Set("name", schema.NewText(name))
	return rec
}

func TestAddColumnDuplicate(t *testing.T) {
	table := usersTable(t)
	err := table.AddColumn(mustColumn(t, "ID", schema.TypeInt))
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Expected ErrSchema for duplicate column, got %v", err)
	}
}

func TestInsertDuplicatePrimaryKey(t *testing.T) {
	// Scenario: insert (1,'Alice') then (1,'Bob'); the second insert fails
	// and the table still holds exactly the first row.
	table := usersTable(t)
	if err := table.Insert(userRecord(1, "Alice")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := table.Insert(userRecord(1, "Bob"))
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("Expected ErrConstraint for duplicate primary key, got %v", err)
	}

	records := table.Records()
	if len(records) != 1 {
		t.Fatalf("Expected exactly 1 record, got %d", len(records))
	}
	if v, _ := records[0].Get("name"); v.Text() != "Alice" {
		t.Errorf("Expected surviving record to be Alice, got %s", v.Text())
	}
}

func TestInsertShapeAndTypeValidation(t *testing.T) {
	table := usersTable(t)

	extra := userRecord(1, "Alice")
	extra.Set("ghost", schema.NewInt(1))
	if err := table.Insert(extra); !errors.Is(err, ErrSchema) {
		t.Errorf("Expected ErrSchema for unknown field, got %v", err)
	}

	missing := schema.NewRecord(helpers.GenerateUUID())
	missing.Set("id", schema.NewInt(1))
	if err := table.Insert(missing); !errors.Is(err, ErrSchema) {
		t.Errorf("Expected ErrSchema for missing field, got %v", err)
	}

	wrongType := schema.NewRecord(helpers.GenerateUUID())
	wrongType.Set("id", schema.NewText("one"))
	wrongType.Set("name", schema.NewText("Alice"))
	if err := table.Insert(wrongType); !errors.Is(err, ErrType) {
		t.Errorf("Expected ErrType for text in INT column, got %v", err)
	}

	if len(table.Records()) != 0 {
		t.Errorf("Failed inserts must not leave partial state, got %d records", len(table.Records()))
	}

	nullRow := schema.NewRecord(helpers.GenerateUUID())
	nullRow.Set("id", schema.NewInt(1))
	nullRow.Set("name", schema.Null())
	if err := table.Insert(nullRow); err != nil {
		t.Errorf("Null values are valid regardless of declared type: %v", err)
	}
}

func TestNullsDoNotCollideOnUniqueColumns(t *testing.T) {
	table := NewTable("t", testLogger())
	if err := table.AddColumn(mustColumn(t, "email", schema.TypeVarchar, schema.WithUnique())); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		rec := schema.NewRecord(helpers.GenerateUUID())
		rec.Set("email", schema.Null())
		if err := table.Insert(rec); err != nil {
			t.Fatalf("Null values in a unique column must not collide: %v", err)
		}
	}
}

func TestUpdateMergesAndMaintainsIndexes(t *testing.T) {
	table := usersTable(t)
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		if err := table.Insert(userRecord(int64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}

	idx := hashindex.New("idx_name", "users", "name", false, testLogger())
	if err := idx.Build(table.Records()); err != nil {
		t.Fatal(err)
	}
	if err := table.RegisterIndex(idx); err != nil {
		t.Fatal(err)
	}

	count, err := table.Update(
		map[string]schema.Value{"name": schema.NewText("Dave")},
		func(rec *schema.Record) bool {
			v, _ := rec.Get("id")
			return v.Equal(schema.NewInt(2))
		},
	)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 record updated, got %d", count)
	}

	// The index must reflect the rename in the same step.
	got, _ := idx.Search(schema.NewText("Bob"))
	if len(got) != 0 {
		t.Error("Index still finds the old value after update")
	}
	got, _ = idx.Search(schema.NewText("Dave"))
	if len(got) != 1 {
		t.Error("Index does not find the new value after update")
	}

	if _, err := table.Update(map[string]schema.Value{"ghost": schema.NewInt(1)}, nil); !errors.Is(err, ErrSchema) {
		t.Errorf("Expected ErrSchema for unknown update column, got %v", err)
	}
}

func TestDeleteMaintainsIndexes(t *testing.T) {
	table := usersTable(t)
	for i, name := range []string{"Alice", "Bob"} {
		if err := table.Insert(userRecord(int64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}
	idx := hashindex.New("idx_name", "users", "name", false, testLogger())
	if err := idx.Build(table.Records()); err != nil {
		t.Fatal(err)
	}
	if err := table.RegisterIndex(idx); err != nil {
		t.Fatal(err)
	}

	count, err := table.Delete(func(rec *schema.Record) bool {
		v, _ := rec.Get("name")
		return v.Equal(schema.NewText("Alice"))
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if count != 1 || len(table.Records()) != 1 {
		t.Fatalf("Expected one record deleted, one left; got count=%d len=%d", count, len(table.Records()))
	}
	got, _ := idx.Search(schema.NewText("Alice"))
	if len(got) != 0 {
		t.Error("Deleted record still present in index")
	}
}

func TestValidateForeignKeys(t *testing.T) {
	users := usersTable(t)
	if err := users.Insert(userRecord(1, "Alice")); err != nil {
		t.Fatal(err)
	}

	orders := NewTable("orders", testLogger())
	if err := orders.AddColumn(mustColumn(t, "id", schema.TypeInt, schema.WithPrimaryKey())); err != nil {
		t.Fatal(err)
	}
	if err := orders.AddColumn(mustColumn(t, "user_id", schema.TypeInt, schema.WithForeignKey("users", "id"))); err != nil {
		t.Fatal(err)
	}

	lookup := func(name string) (*Table, error) {
		if name == "users" {
			return users, nil
		}
		return nil, errors.New("no such table")
	}

	ok := schema.NewRecord(helpers.GenerateUUID())
	ok.Set("id", schema.NewInt(1))
	ok.Set("user_id", schema.NewInt(1))
	if err := orders.ValidateForeignKeys(ok, lookup); err != nil {
		t.Errorf("Expected valid foreign key to pass: %v", err)
	}

	dangling := schema.NewRecord(helpers.GenerateUUID())
	dangling.Set("id", schema.NewInt(2))
	dangling.Set("user_id", schema.NewInt(999))
	err := orders.ValidateForeignKeys(dangling, lookup)
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("Expected ErrConstraint for dangling foreign key, got %v", err)
	}

	nullFK := schema.NewRecord(helpers.GenerateUUID())
	nullFK.Set("id", schema.NewInt(3))
	nullFK.Set("user_id", schema.Null())
	if err := orders.ValidateForeignKeys(nullFK, lookup); err != nil {
		t.Errorf("Null is always valid for a foreign key column: %v", err)
	}
}

func TestDropIndexClearsAndUnregisters(t *testing.T) {
	table := usersTable(t)
	idx := hashindex.New("idx_name", "users", "name", false, testLogger())
	if err := idx.Build(nil); err != nil {
		t.Fatal(err)
	}
	if err := table.RegisterIndex(idx); err != nil {
		t.Fatal(err)
	}
	if err := table.DropIndex("idx_name"); err != nil {
		t.Fatalf("DropIndex failed: %v", err)
	}
	if idx.Created() {
		t.Error("Dropped index must be cleared")
	}
	if err := table.DropIndex("idx_name"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Dropping a missing index should fail with ErrNotFound, got %v", err)
	}
}
